package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"pricedash/internal/md"
)

// Client talks to the market gateway's REST API.
type Client struct {
	baseURL string
	client  *http.Client
}

func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type priceRow struct {
	Symbol       string    `json:"symbol"`
	Price        *float64  `json:"price"`
	AveragePrice *float64  `json:"averagePrice"`
	Timestamp    Timestamp `json:"timestamp"`
}

// History fetches the latest prices for symbol. The gateway answers newest
// first; the result is oldest first. Rows without a price are skipped.
func (c *Client) History(ctx context.Context, symbol string) ([]md.Sample, error) {
	endpoint := c.baseURL + "/api/prices?" + url.Values{"symbol": {symbol}}.Encode()
	var rows []priceRow
	if err := c.getJSON(ctx, endpoint, &rows); err != nil {
		return nil, fmt.Errorf("history %s: %w", symbol, err)
	}

	samples := make([]md.Sample, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		row := rows[i]
		if row.Price == nil {
			continue
		}
		avg := *row.Price
		if row.AveragePrice != nil && *row.AveragePrice != 0 {
			avg = *row.AveragePrice
		}
		samples = append(samples, md.Sample{
			Timestamp:     row.Timestamp.Time,
			Price:         *row.Price,
			MovingAverage: avg,
		})
	}
	return samples, nil
}

// Analysis returns the gateway's AI market commentary for symbol as plain text.
func (c *Client) Analysis(ctx context.Context, symbol string) (string, error) {
	endpoint := c.baseURL + "/api/ai-analysis?" + url.Values{"symbol": {symbol}}.Encode()
	body, err := c.get(ctx, endpoint)
	if err != nil {
		return "", fmt.Errorf("analysis %s: %w", symbol, err)
	}
	return strings.TrimSpace(string(body)), nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	body, err := c.get(ctx, endpoint)
	if err != nil {
		return err
	}
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

// Timestamp accepts epoch milliseconds or an ISO-8601 string. Strings
// without a zone are read as UTC.
type Timestamp struct {
	time.Time
}

var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == "" {
		t.Time = time.Time{}
		return nil
	}
	if !strings.HasPrefix(s, `"`) {
		ms, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("timestamp %s: %w", s, err)
		}
		t.Time = time.UnixMilli(int64(ms)).UTC()
		return nil
	}

	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	if ms, err := strconv.ParseInt(str, 10, 64); err == nil {
		t.Time = time.UnixMilli(ms).UTC()
		return nil
	}
	if parsed, err := time.Parse(time.RFC3339Nano, str); err == nil {
		t.Time = parsed
		return nil
	}
	for _, layout := range localLayouts {
		if parsed, err := time.ParseInLocation(layout, str, time.UTC); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unrecognised timestamp %q", str)
}
