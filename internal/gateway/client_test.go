package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryReversesNewestFirstRows(t *testing.T) {
	var gotSymbol string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/prices", r.URL.Path)
		gotSymbol = r.URL.Query().Get("symbol")
		_, _ = w.Write([]byte(`[
			{"symbol":"BTC-USD","price":102,"averagePrice":101,"timestamp":1714564920000},
			{"symbol":"BTC-USD","price":101,"timestamp":"2024-05-01T12:01:00Z"},
			{"symbol":"BTC-USD","price":null,"timestamp":"2024-05-01T12:00:30"},
			{"symbol":"BTC-USD","price":100,"averagePrice":0,"timestamp":"2024-05-01T12:00:00.250"}
		]`))
	}))
	defer srv.Close()

	samples, err := New(srv.URL+"/").History(context.Background(), "BTC-USD")
	require.NoError(t, err)
	assert.Equal(t, "BTC-USD", gotSymbol)

	require.Len(t, samples, 3)
	assert.Equal(t, []float64{100, 101, 102}, []float64{samples[0].Price, samples[1].Price, samples[2].Price})
	assert.Equal(t, 100.0, samples[0].MovingAverage)
	assert.Equal(t, 101.0, samples[1].MovingAverage)
	assert.Equal(t, 101.0, samples[2].MovingAverage)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 0, 0, 250e6, time.UTC), samples[0].Timestamp)
	assert.Equal(t, time.UnixMilli(1714564920000).UTC(), samples[2].Timestamp)
}

func TestHistoryReportsGatewayErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "database down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := New(srv.URL).History(context.Background(), "ETH-USD")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "database down")
}

func TestHistoryRejectsBadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"oops":true}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL).History(context.Background(), "ETH-USD")
	assert.Error(t, err)
}

func TestAnalysisReturnsText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/ai-analysis", r.URL.Path)
		assert.Equal(t, "SOL-USD", r.URL.Query().Get("symbol"))
		_, _ = w.Write([]byte("  Momentum is cooling.\n"))
	}))
	defer srv.Close()

	text, err := New(srv.URL).Analysis(context.Background(), "SOL-USD")
	require.NoError(t, err)
	assert.Equal(t, "Momentum is cooling.", text)
}

func TestSentimentParsesIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"name":"Fear and Greed Index","data":[{"value":"72","value_classification":"Greed","timestamp":"1714521600"}]}`))
	}))
	defer srv.Close()

	s := NewSentimentClient(srv.URL).FetchOrNeutral(context.Background())
	assert.Equal(t, Sentiment{Value: 72, Classification: "Greed"}, s)
}

func TestSentimentFallsBackToNeutral(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"server error": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		},
		"empty data": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"data":[]}`))
		},
		"non numeric": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"data":[{"value":"high","value_classification":"Greed"}]}`))
		},
	}
	for name, handler := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(handler)
			defer srv.Close()

			s := NewSentimentClient(srv.URL).FetchOrNeutral(context.Background())
			assert.Equal(t, NeutralSentiment, s)
		})
	}
}

func TestTimestampFormats(t *testing.T) {
	want := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for _, raw := range []string{`1714564800000`, `"1714564800000"`, `"2024-05-01T12:00:00Z"`, `"2024-05-01T14:00:00+02:00"`, `"2024-05-01T12:00:00"`, `"2024-05-01 12:00:00"`} {
		var ts Timestamp
		require.NoError(t, ts.UnmarshalJSON([]byte(raw)), raw)
		assert.True(t, want.Equal(ts.Time), "%s parsed as %s", raw, ts.Time)
	}

	var ts Timestamp
	assert.Error(t, ts.UnmarshalJSON([]byte(`"yesterday"`)))
}
