package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricedash/internal/engine"
	"pricedash/internal/gateway"
	"pricedash/internal/md"
)

type historyFunc func(ctx context.Context, symbol string) ([]md.Sample, error)

func (f historyFunc) History(ctx context.Context, symbol string) ([]md.Sample, error) {
	return f(ctx, symbol)
}

type analystFunc func(ctx context.Context, symbol string) (string, error)

func (f analystFunc) Analysis(ctx context.Context, symbol string) (string, error) {
	return f(ctx, symbol)
}

func newTestRouter(t *testing.T, history historyFunc, analyst Analyst) (*gin.Engine, *engine.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	if history == nil {
		history = func(context.Context, string) ([]md.Sample, error) { return nil, nil }
	}
	e, err := engine.New(engine.Options{Symbols: []string{"BTC-USD", "ETH-USD"}}, history, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	sentiment := gateway.Sentiment{Value: 30, Classification: "Fear"}
	return NewRouter(NewHandler(e, analyst, sentiment), nil), e
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	r, _ := newTestRouter(t, nil, nil)
	w := do(r, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestPortfolioLifecycle(t *testing.T) {
	r, e := newTestRouter(t, nil, nil)

	w := do(r, http.MethodPost, "/api/portfolio/buy", `{"symbol":"BTC-USD","usd":100}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "inactive_account", decode(t, w)["code"])

	w = do(r, http.MethodPost, "/api/portfolio", `{"cash":1000}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "$1,000.00", decode(t, w)["totalDisplay"])

	w = do(r, http.MethodPost, "/api/portfolio", `{"cash":500}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "already_active", decode(t, w)["code"])

	w = do(r, http.MethodPost, "/api/portfolio/buy", `{"symbol":"BTC-USD","usd":100}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "price_unavailable", decode(t, w)["code"])

	require.NoError(t, e.OnMessage([]byte(`{"symbol":"BTC-USD","price":50000}`)))

	w = do(r, http.MethodPost, "/api/portfolio/buy", `{"symbol":"btc-usd","usd":500}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	trade := decode(t, w)["trade"].(map[string]any)
	assert.Equal(t, "0.01", trade["units"])

	w = do(r, http.MethodPost, "/api/portfolio/buy", `{"symbol":"BTC-USD","usd":2000}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "insufficient_funds", decode(t, w)["code"])

	w = do(r, http.MethodPost, "/api/portfolio/sell", `{"symbol":"BTC-USD","units":"half"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_amount", decode(t, w)["code"])

	w = do(r, http.MethodPost, "/api/portfolio/sell", `{"symbol":"ETH-USD","units":"all"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	require.NoError(t, e.OnMessage([]byte(`{"symbol":"BTC-USD","price":60000}`)))
	w = do(r, http.MethodPost, "/api/portfolio/sell", `{"symbol":"BTC-USD","units":"all"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "1100", decode(t, w)["portfolio"].(map[string]any)["cash"])

	w = do(r, http.MethodPost, "/api/portfolio/sell", `{"symbol":"BTC-USD","units":0.5}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "no_holdings", decode(t, w)["code"])

	w = do(r, http.MethodDelete, "/api/portfolio", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "confirmation_required", decode(t, w)["code"])
	assert.True(t, e.Valuation().Active)

	w = do(r, http.MethodDelete, "/api/portfolio?confirm=true", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, e.Valuation().Active)
}

func TestInitRejectsBadInput(t *testing.T) {
	r, _ := newTestRouter(t, nil, nil)

	w := do(r, http.MethodPost, "/api/portfolio", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_request", decode(t, w)["code"])

	w = do(r, http.MethodPost, "/api/portfolio", `{"cash":-10}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_amount", decode(t, w)["code"])
}

func TestTradeOnUnknownSymbol(t *testing.T) {
	r, e := newTestRouter(t, nil, nil)
	w := do(r, http.MethodPost, "/api/portfolio/buy", `{"symbol":"DOGE-USD","usd":1}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "inactive_account", decode(t, w)["code"])

	require.NoError(t, e.InitPortfolio(100))
	w = do(r, http.MethodPost, "/api/portfolio/buy", `{"symbol":"DOGE-USD","usd":1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "unknown_symbol", decode(t, w)["code"])
}

func TestSellExactHoldingAsNumber(t *testing.T) {
	r, e := newTestRouter(t, nil, nil)
	require.NoError(t, e.InitPortfolio(100))
	require.NoError(t, e.OnMessage([]byte(`{"symbol":"ETH-USD","price":3}`)))

	w := do(r, http.MethodPost, "/api/portfolio/buy", `{"symbol":"ETH-USD","usd":100}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	held := e.Account().Holdings["ETH-USD"].String()

	w = do(r, http.MethodPost, "/api/portfolio/sell", `{"symbol":"ETH-USD","units":`+held+`}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, e.Account().Holdings["ETH-USD"].IsZero())
}

func TestSwitchSymbol(t *testing.T) {
	history := historyFunc(func(_ context.Context, symbol string) ([]md.Sample, error) {
		if symbol == "ETH-USD" {
			return nil, errors.New("gateway timeout")
		}
		return nil, nil
	})
	r, e := newTestRouter(t, history, nil)

	w := do(r, http.MethodPost, "/api/symbol", `{"symbol":"XRP-USD"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "unknown_symbol", decode(t, w)["code"])

	w = do(r, http.MethodPost, "/api/symbol", `{"symbol":"eth-usd"}`)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "ETH-USD", body["symbol"])
	assert.Equal(t, "failed", body["history"])
	assert.Equal(t, "ETH-USD", e.ActiveSymbol())

	w = do(r, http.MethodGet, "/api/state", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ETH-USD", decode(t, w)["symbol"])
}

func TestAnalysisAndSentiment(t *testing.T) {
	analyst := analystFunc(func(_ context.Context, symbol string) (string, error) {
		if symbol == "ETH-USD" {
			return "", errors.New("model overloaded")
		}
		return "BTC looks steady.", nil
	})
	r, _ := newTestRouter(t, nil, analyst)

	w := do(r, http.MethodGet, "/api/analysis", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "BTC looks steady.", decode(t, w)["analysis"])

	w = do(r, http.MethodGet, "/api/analysis?symbol=ETH-USD", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)

	w = do(r, http.MethodGet, "/api/sentiment", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, 30.0, body["value"])
	assert.Equal(t, "Fear", body["classification"])
}
