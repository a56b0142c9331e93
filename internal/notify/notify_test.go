package notify

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultiFansOutInOrder(t *testing.T) {
	var got []string
	m := Multi{
		Func(func(ev Event) { got = append(got, "a:"+string(ev.Kind)) }),
		nil,
		Func(func(ev Event) { got = append(got, "b:"+string(ev.Kind)) }),
	}
	m.Notify(Event{Kind: AnomalyCleared})
	assert.Equal(t, []string{"a:anomaly_cleared", "b:anomaly_cleared"}, got)
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "dash.price_changed.BTC-USD", Subject("dash", Event{Kind: PriceChanged, Symbol: "btc-usd"}))
	assert.Equal(t, "dash.portfolio_changed", Subject("dash", Event{Kind: PortfolioChanged}))
	assert.Equal(t, "history_failed.A_B_C", Subject("", Event{Kind: HistoryFailed, Symbol: "a.b*c"}))
}

func TestLogNotifierWritesHistoryFailure(t *testing.T) {
	var buf bytes.Buffer
	l := NewLog(slog.New(slog.NewTextHandler(&buf, nil)))
	l.Notify(Event{Kind: HistoryFailed, Symbol: "ETH-USD", Error: "timeout"})
	out := buf.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "symbol=ETH-USD")
	assert.Contains(t, out, "error=timeout")
}

func TestHubPushesEventsToClients(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	hub.Notify(Event{Kind: PriceChanged, Symbol: "BTC-USD", Price: PriceOf(50000), Direction: Up})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var ev Event
	require.NoError(t, json.Unmarshal(data, &ev))
	assert.Equal(t, PriceChanged, ev.Kind)
	assert.Equal(t, "BTC-USD", ev.Symbol)
	require.NotNil(t, ev.Price)
	assert.Equal(t, 50000.0, *ev.Price)
	assert.Equal(t, Up, ev.Direction)
}

func TestHubDropsClientOnDisconnect(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 10*time.Millisecond)

	hub.Notify(Event{Kind: AnomalyCleared, Symbol: "BTC-USD"})
	hub.Close()
	assert.Equal(t, 0, hub.ClientCount())
}

func TestEventKeepsZeroPrice(t *testing.T) {
	data, err := json.Marshal(Event{Kind: PriceChanged, Symbol: "BTC-USD", Price: PriceOf(0), Direction: Down})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"price":0`)

	data, err = json.Marshal(Event{Kind: BufferChanged})
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"price"`)
}
