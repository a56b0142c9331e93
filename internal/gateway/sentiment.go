package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const DefaultSentimentURL = "https://api.alternative.me/fng/?limit=1"

// Sentiment is a 0-100 market mood reading with its label.
type Sentiment struct {
	Value          int    `json:"value"`
	Classification string `json:"classification"`
	Fallback       bool   `json:"fallback"`
}

// NeutralSentiment is shown whenever the index cannot be read.
var NeutralSentiment = Sentiment{Value: 50, Classification: "Neutral", Fallback: true}

type fearGreedResponse struct {
	Data []struct {
		Value          string `json:"value"`
		Classification string `json:"value_classification"`
	} `json:"data"`
}

type SentimentClient struct {
	url    string
	client *http.Client
}

func NewSentimentClient(url string) *SentimentClient {
	if url == "" {
		url = DefaultSentimentURL
	}
	return &SentimentClient{url: url, client: &http.Client{Timeout: 10 * time.Second}}
}

// Fetch reads the current index value.
func (s *SentimentClient) Fetch(ctx context.Context) (Sentiment, error) {
	c := &Client{client: s.client}
	var resp fearGreedResponse
	if err := c.getJSON(ctx, s.url, &resp); err != nil {
		return Sentiment{}, fmt.Errorf("sentiment: %w", err)
	}
	if len(resp.Data) == 0 {
		return Sentiment{}, errors.New("sentiment: empty response")
	}
	value, err := strconv.Atoi(strings.TrimSpace(resp.Data[0].Value))
	if err != nil {
		return Sentiment{}, fmt.Errorf("sentiment: value %q: %w", resp.Data[0].Value, err)
	}
	if value < 0 || value > 100 {
		return Sentiment{}, fmt.Errorf("sentiment: value %d out of range", value)
	}
	return Sentiment{Value: value, Classification: resp.Data[0].Classification}, nil
}

// FetchOrNeutral never fails; any error yields NeutralSentiment.
func (s *SentimentClient) FetchOrNeutral(ctx context.Context) Sentiment {
	sentiment, err := s.Fetch(ctx)
	if err != nil {
		slog.Warn("sentiment unavailable, using neutral", "error", err)
		return NeutralSentiment
	}
	return sentiment
}
