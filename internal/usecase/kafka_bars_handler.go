package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"BarForge/internal/domain/models"
	domrepo "BarForge/internal/domain/repository"
	pkgkafka "BarForge/pkg/kafka"
	"BarForge/pkg/util"
)

// KafkaBarsHandler consumes daily-bar messages and lands them through
// the ingestor.
type KafkaBarsHandler struct {
	topic    string
	ingestor *Ingestor
	metrics  domrepo.Metrics
}

func NewKafkaBarsHandler(topic string, ingestor *Ingestor, metrics domrepo.Metrics) *KafkaBarsHandler {
	return &KafkaBarsHandler{topic: topic, ingestor: ingestor, metrics: metrics}
}

func (h *KafkaBarsHandler) Topic() string { return h.topic }

// incoming message schema: {symbol, date, o, h, l, c, v}
func (h *KafkaBarsHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		Symbol string  `json:"symbol"`
		Date   string  `json:"date"`
		O      float64 `json:"o"`
		H      float64 `json:"h"`
		L      float64 `json:"l"`
		C      float64 `json:"c"`
		V      int64   `json:"v"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	date, ok := util.ParseDate(m.Date)
	if !ok {
		h.metrics.RecordError("consumer_date")
		return fmt.Errorf("invalid bar date %q", m.Date)
	}
	h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(date).Seconds())

	return h.ingestor.Ingest(ctx, []models.RawBar{{
		Symbol: m.Symbol,
		Date:   date,
		Open:   decimal.NewFromFloat(m.O),
		High:   decimal.NewFromFloat(m.H),
		Low:    decimal.NewFromFloat(m.L),
		Close:  decimal.NewFromFloat(m.C),
		Volume: m.V,
	}})
}

var _ pkgkafka.MessageHandler = (*KafkaBarsHandler)(nil)
