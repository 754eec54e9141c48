package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"BarForge/internal/domain/models"
	drepo "BarForge/internal/domain/repository"
	applogger "BarForge/pkg/logger"
	"BarForge/pkg/util"
)

// Client implements a BarStream backed by a vendor WebSocket that
// pushes end-of-day bar frames.
type Client struct {
	apiKey         string
	websocketURL   string
	symbols        []string
	reconnectDelay time.Duration
	pingInterval   time.Duration

	conn      *websocket.Conn
	connected bool
	l         *applogger.Logger
}

// New creates a new feed BarStream.
func New(apiKey, websocketURL string, symbols []string, reconnectDelay, pingInterval time.Duration) *Client {
	return &Client{
		apiKey:         apiKey,
		websocketURL:   websocketURL,
		symbols:        symbols,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
	}
}

func (c *Client) SetLogger(l *applogger.Logger) { c.l = l }

// Connect establishes the WebSocket connection.
func (c *Client) Connect(ctx context.Context) error {
	u := fmt.Sprintf("%s?token=%s", c.websocketURL, c.apiKey)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("feed connect: %w", err)
	}
	c.conn = conn
	c.connected = true
	if c.l != nil {
		c.l.Info("feed connected")
	}
	return nil
}

// Subscribe subscribes to configured symbols.
func (c *Client) Subscribe(ctx context.Context) error {
	if c.conn == nil || !c.connected {
		return fmt.Errorf("feed not connected")
	}
	for _, s := range c.symbols {
		msg := map[string]string{"type": "subscribe", "symbol": s}
		if err := c.conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("subscribe %s: %w", s, err)
		}
		if c.l != nil {
			c.l.Debug("feed subscribed", applogger.String("symbol", s))
		}
	}
	return nil
}

type feedBar struct {
	S string  `json:"s"`
	D string  `json:"d"` // trading day, YYYY-MM-DD
	O float64 `json:"o"`
	H float64 `json:"h"`
	L float64 `json:"l"`
	C float64 `json:"c"`
	V int64   `json:"v"`
}

type feedMessage struct {
	Type string    `json:"type"`
	Data []feedBar `json:"data"`
}

// Read streams RawBar events and errors.
func (c *Client) Read(ctx context.Context) (<-chan models.RawBar, <-chan error) {
	bars := make(chan models.RawBar, 1024)
	errs := make(chan error, 1)

	// ping loop
	go func() {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if c.conn != nil {
					_ = c.conn.WriteMessage(websocket.PingMessage, nil)
				}
			}
		}
	}()

	// read loop
	go func() {
		defer close(bars)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				if c.conn == nil {
					errs <- fmt.Errorf("feed conn nil")
					return
				}
				_, b, err := c.conn.ReadMessage()
				if err != nil {
					errs <- fmt.Errorf("feed read: %w", err)
					return
				}
				var m feedMessage
				if err := json.Unmarshal(b, &m); err != nil {
					// ignore non-bar frames
					continue
				}
				if m.Type != "bar" {
					continue
				}
				for _, d := range m.Data {
					date, ok := util.ParseDate(d.D)
					if !ok {
						continue
					}
					bar := models.RawBar{
						Symbol: d.S,
						Date:   date,
						Open:   decimal.NewFromFloat(d.O),
						High:   decimal.NewFromFloat(d.H),
						Low:    decimal.NewFromFloat(d.L),
						Close:  decimal.NewFromFloat(d.C),
						Volume: d.V,
					}
					select {
					case bars <- bar:
					default:
						// drop on backpressure
					}
				}
			}
		}
	}()

	return bars, errs
}

// Reconnect closes and reconnects.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	time.Sleep(c.reconnectDelay)
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx)
}

// Close closes the WS connection.
func (c *Client) Close() error {
	c.connected = false
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// IsConnected indicates status.
func (c *Client) IsConnected() bool { return c.connected }

var _ drepo.BarStream = (*Client)(nil)
