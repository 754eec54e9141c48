package feed

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"BarForge/internal/domain/models"
	xhttp "BarForge/pkg/http"
	applogger "BarForge/pkg/logger"
	"BarForge/pkg/util"
)

// HistoryClient pulls historical daily candles over the vendor REST API.
// It backs the backfill path; the WebSocket Client covers live bars.
type HistoryClient struct {
	apiKey  string
	baseURL string
	client  *xhttp.Client
	l       *applogger.Logger
}

func NewHistoryClient(apiKey, baseURL string, timeout time.Duration) *HistoryClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HistoryClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  xhttp.NewClient(xhttp.WithTimeout(timeout)),
	}
}

func (h *HistoryClient) SetLogger(l *applogger.Logger) { h.l = l }

// candleResponse is the vendor's column-oriented daily candle payload.
type candleResponse struct {
	Status string    `json:"s"`
	Open   []float64 `json:"o"`
	High   []float64 `json:"h"`
	Low    []float64 `json:"l"`
	Close  []float64 `json:"c"`
	Volume []int64   `json:"v"`
	Time   []int64   `json:"t"` // unix seconds, start of trading day
}

// DailyBars fetches daily candles for symbol in [from, to], ascending.
func (h *HistoryClient) DailyBars(ctx context.Context, symbol string, from, to time.Time) ([]models.RawBar, error) {
	var resp candleResponse
	err := h.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    h.baseURL + "/stock/candle",
		QueryParams: map[string][]string{
			"symbol":     {symbol},
			"resolution": {"D"},
			"from":       {strconv.FormatInt(from.Unix(), 10)},
			"to":         {strconv.FormatInt(to.Unix(), 10)},
			"token":      {h.apiKey},
		},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("fetch candles %s: %w", symbol, err)
	}
	if resp.Status == "no_data" {
		return nil, nil
	}
	if resp.Status != "ok" {
		return nil, fmt.Errorf("fetch candles %s: status %q", symbol, resp.Status)
	}

	n := len(resp.Time)
	if len(resp.Open) != n || len(resp.High) != n || len(resp.Low) != n ||
		len(resp.Close) != n || len(resp.Volume) != n {
		return nil, fmt.Errorf("fetch candles %s: ragged columns", symbol)
	}

	bars := make([]models.RawBar, 0, n)
	for i := 0; i < n; i++ {
		bars = append(bars, models.RawBar{
			Symbol: symbol,
			Date:   util.Midnight(time.Unix(resp.Time[i], 0).UTC()),
			Open:   decimal.NewFromFloat(resp.Open[i]),
			High:   decimal.NewFromFloat(resp.High[i]),
			Low:    decimal.NewFromFloat(resp.Low[i]),
			Close:  decimal.NewFromFloat(resp.Close[i]),
			Volume: resp.Volume[i],
		})
	}
	if h.l != nil {
		h.l.Debug("history fetched",
			applogger.String("symbol", symbol),
			applogger.Int("count", len(bars)))
	}
	return bars, nil
}
