package models

// Requests for the bars HTTP endpoints. Defined in domain for consistency and reuse.

type BarsRequest struct {
	Symbol   string `query:"symbol" json:"symbol" validate:"required"`
	Interval int    `query:"interval" json:"interval" validate:"required,oneof=3 5 8 13 21 34"`
	N        int    `query:"n" json:"n" default:"34" validate:"gte=1,lte=1000"`
}

type QuoteRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
}

type WatermarksRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
}

type RunRequest struct {
	Symbols []string `json:"symbols" validate:"required,min=1,dive,required"`
}

type BackfillRequest struct {
	Symbols []string `json:"symbols" validate:"required,min=1,dive,required"`
	From    string   `json:"from" validate:"required,datetime=2006-01-02"`
	To      string   `json:"to" validate:"required,datetime=2006-01-02"`
}

type RewindRequest struct {
	Symbol   string `json:"symbol" validate:"required"`
	Interval int    `json:"interval" validate:"required,oneof=3 5 8 13 21 34"`
	To       string `json:"to" validate:"required,datetime=2006-01-02"`
}
