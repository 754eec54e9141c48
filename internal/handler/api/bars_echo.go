package api

import (
	"errors"
	"fmt"

	"github.com/labstack/echo/v4"

	models "BarForge/internal/domain/models"
	"BarForge/internal/usecase"
	xhttp "BarForge/pkg/http"
	xlogger "BarForge/pkg/logger"
	"BarForge/pkg/util"
)

// BarsEchoHandler exposes the read API and the pipeline control
// endpoints over Echo.
type BarsEchoHandler struct {
	logger     *xlogger.Logger
	query      *usecase.BarsQueryUseCase
	pipeline   *usecase.Pipeline
	backfiller *usecase.Backfiller
}

func NewBarsEchoHandler(logger *xlogger.Logger, query *usecase.BarsQueryUseCase, pipeline *usecase.Pipeline, backfiller *usecase.Backfiller) *BarsEchoHandler {
	return &BarsEchoHandler{logger: logger, query: query, pipeline: pipeline, backfiller: backfiller}
}

func (h *BarsEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/bars", h.Bars)
	g.GET("/quote", h.Quote)
	g.GET("/watermarks", h.Watermarks)
	g.POST("/pipeline/run", h.Run)
	g.POST("/pipeline/rewind", h.Rewind)
	g.POST("/backfill", h.Backfill)
}

func (h *BarsEchoHandler) Bars(c echo.Context) error {
	req := &models.BarsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.query.GetBars(c.Request().Context(), usecase.GetBarsParams{
		Symbol:   req.Symbol,
		Interval: req.Interval,
		Limit:    req.N,
	})
	if err != nil {
		h.logger.Error("bars usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return xhttp.SuccessResponse(c, res)
}

func (h *BarsEchoHandler) Quote(c echo.Context) error {
	req := &models.QuoteRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.query.GetQuote(c.Request().Context(), req.Symbol)
	if err != nil {
		h.logger.Error("quote usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *BarsEchoHandler) Watermarks(c echo.Context) error {
	req := &models.WatermarksRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	wms, err := h.query.GetWatermarks(c.Request().Context(), req.Symbol, nil)
	if err != nil {
		h.logger.Error("watermarks usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, wms)
}

func (h *BarsEchoHandler) Run(c echo.Context) error {
	req := &models.RunRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	if err := h.pipeline.Run(c.Request().Context(), req.Symbols); err != nil {
		var rewind *models.RewindRequiredError
		if errors.As(err, &rewind) {
			h.logger.Warn("pipeline halted on retroactive correction",
				xlogger.String("symbol", rewind.Symbol),
				xlogger.Int("interval", rewind.Interval))
			return xhttp.ConflictResponse(c, err)
		}
		h.logger.Error("pipeline run error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, map[string]any{"symbols": len(req.Symbols)})
}

func (h *BarsEchoHandler) Backfill(c echo.Context) error {
	if h.backfiller == nil {
		return xhttp.AppErrorResponse(c, errors.New("backfill disabled: no feed api key configured"))
	}
	req := &models.BackfillRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	from, ok := util.ParseDate(req.From)
	if !ok {
		return xhttp.BadRequestResponse(c, fmt.Errorf("invalid from date %q", req.From))
	}
	to, ok := util.ParseDate(req.To)
	if !ok {
		return xhttp.BadRequestResponse(c, fmt.Errorf("invalid to date %q", req.To))
	}

	res, err := h.backfiller.Run(c.Request().Context(), req.Symbols, from, to)
	if err != nil {
		h.logger.Error("backfill error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *BarsEchoHandler) Rewind(c echo.Context) error {
	req := &models.RewindRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	to, ok := util.ParseDate(req.To)
	if !ok {
		return xhttp.BadRequestResponse(c, fmt.Errorf("invalid to date %q", req.To))
	}

	if err := h.pipeline.Rewind(c.Request().Context(), req.Symbol, req.Interval, to); err != nil {
		h.logger.Error("pipeline rewind error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, map[string]any{
		"symbol":   req.Symbol,
		"interval": req.Interval,
		"to":       req.To,
	})
}
