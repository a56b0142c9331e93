package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"pricedash/internal/engine"
	"pricedash/internal/gateway"
	"pricedash/internal/portfolio"
)

type Analyst interface {
	Analysis(ctx context.Context, symbol string) (string, error)
}

type Handler struct {
	engine    *engine.Engine
	analyst   Analyst
	sentiment gateway.Sentiment
}

func NewHandler(e *engine.Engine, analyst Analyst, sentiment gateway.Sentiment) *Handler {
	return &Handler{engine: e, analyst: analyst, sentiment: sentiment}
}

func (h *Handler) State(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.Snapshot())
}

func (h *Handler) SwitchSymbol(c *gin.Context) {
	var req struct {
		Symbol string `json:"symbol" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	// The load outlives an impatient client; a later switch supersedes it.
	err := h.engine.SwitchSymbol(context.WithoutCancel(c.Request.Context()), strings.ToUpper(strings.TrimSpace(req.Symbol)))
	switch {
	case errors.Is(err, engine.ErrUnknownSymbol):
		writeError(c, http.StatusBadRequest, "unknown_symbol", err)
		return
	case errors.Is(err, engine.ErrHistoryFetchFailed):
		c.JSON(http.StatusOK, gin.H{"symbol": h.engine.ActiveSymbol(), "history": "failed", "error": err.Error()})
		return
	case err != nil:
		writeError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": h.engine.ActiveSymbol(), "history": "loaded"})
}

func (h *Handler) Portfolio(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.Valuation())
}

func (h *Handler) InitPortfolio(c *gin.Context) {
	var req struct {
		Cash *float64 `json:"cash" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if err := h.engine.InitPortfolio(*req.Cash); err != nil {
		writePortfolioError(c, err)
		return
	}
	c.JSON(http.StatusCreated, h.engine.Valuation())
}

func (h *Handler) ResetPortfolio(c *gin.Context) {
	if c.Query("confirm") != "true" {
		writeError(c, http.StatusBadRequest, "confirmation_required", errors.New("reset needs confirm=true"))
		return
	}
	h.engine.ResetPortfolio()
	c.JSON(http.StatusOK, h.engine.Valuation())
}

func (h *Handler) Buy(c *gin.Context) {
	var req struct {
		Symbol string   `json:"symbol" binding:"required"`
		USD    *float64 `json:"usd" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	trade, err := h.engine.Buy(strings.ToUpper(req.Symbol), *req.USD)
	if err != nil {
		writePortfolioError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"trade": trade, "portfolio": h.engine.Valuation()})
}

func (h *Handler) Sell(c *gin.Context) {
	var req struct {
		Symbol string          `json:"symbol" binding:"required"`
		Units  json.RawMessage `json:"units" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	units, err := parseUnits(req.Units)
	if err != nil {
		writePortfolioError(c, err)
		return
	}
	trade, err := h.engine.Sell(strings.ToUpper(req.Symbol), units)
	if err != nil {
		writePortfolioError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"trade": trade, "portfolio": h.engine.Valuation()})
}

// parseUnits accepts a JSON number or a string, "all" included.
func parseUnits(raw json.RawMessage) (portfolio.Units, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return portfolio.ParseUnits(s)
	}
	var v decimal.Decimal
	if err := json.Unmarshal(raw, &v); err != nil {
		return portfolio.Units{}, fmt.Errorf("%w: units must be a number or \"all\"", portfolio.ErrInvalidAmount)
	}
	return portfolio.QtyDecimal(v), nil
}

func (h *Handler) Analysis(c *gin.Context) {
	symbol := strings.ToUpper(c.DefaultQuery("symbol", h.engine.ActiveSymbol()))
	if !h.engine.Tracked(symbol) {
		writeError(c, http.StatusBadRequest, "unknown_symbol", fmt.Errorf("%w: %s", engine.ErrUnknownSymbol, symbol))
		return
	}
	if h.analyst == nil {
		writeError(c, http.StatusNotImplemented, "analysis_unavailable", errors.New("no analysis source configured"))
		return
	}
	text, err := h.analyst.Analysis(c.Request.Context(), symbol)
	if err != nil {
		writeError(c, http.StatusBadGateway, "analysis_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "analysis": text})
}

func (h *Handler) Sentiment(c *gin.Context) {
	c.JSON(http.StatusOK, h.sentiment)
}

func writePortfolioError(c *gin.Context, err error) {
	if errors.Is(err, engine.ErrUnknownSymbol) {
		writeError(c, http.StatusBadRequest, "unknown_symbol", err)
		return
	}
	writeError(c, portfolioStatus(err), portfolio.Code(err), err)
}

func portfolioStatus(err error) int {
	switch {
	case errors.Is(err, portfolio.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, portfolio.ErrInactiveAccount),
		errors.Is(err, portfolio.ErrAlreadyActive),
		errors.Is(err, portfolio.ErrPriceUnavailable):
		return http.StatusConflict
	case errors.Is(err, portfolio.ErrInsufficientFunds),
		errors.Is(err, portfolio.ErrNoHoldings):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, status int, code string, err error) {
	c.JSON(status, gin.H{"error": err.Error(), "code": code})
}
