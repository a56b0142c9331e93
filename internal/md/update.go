package md

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

var ErrMalformedMessage = errors.New("malformed price message")

// Update is one price tick pushed by the feed.
type Update struct {
	Symbol       string
	Price        float64
	AveragePrice float64
	HasAverage   bool
	IsAnomaly    bool
}

// Average returns the feed supplied moving average, or the price itself when the
// feed did not send one.
func (u Update) Average() float64 {
	if u.HasAverage && u.AveragePrice != 0 {
		return u.AveragePrice
	}
	return u.Price
}

type rawUpdate struct {
	Symbol       *string  `json:"symbol"`
	Price        *float64 `json:"price"`
	AveragePrice *float64 `json:"averagePrice"`
	IsAnomaly    *bool    `json:"isAnomaly"`
}

// DecodeUpdate parses a feed message body. Any shape problem is reported as
// ErrMalformedMessage.
func DecodeUpdate(body []byte) (Update, error) {
	var raw rawUpdate
	if err := json.Unmarshal(body, &raw); err != nil {
		return Update{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if raw.Symbol == nil || strings.TrimSpace(*raw.Symbol) == "" {
		return Update{}, fmt.Errorf("%w: missing symbol", ErrMalformedMessage)
	}
	if raw.Price == nil {
		return Update{}, fmt.Errorf("%w: missing price", ErrMalformedMessage)
	}

	u := Update{
		Symbol: *raw.Symbol,
		Price:  *raw.Price,
	}
	if raw.AveragePrice != nil {
		u.AveragePrice = *raw.AveragePrice
		u.HasAverage = true
	}
	if raw.IsAnomaly != nil {
		u.IsAnomaly = *raw.IsAnomaly
	}
	if err := u.Validate(); err != nil {
		return Update{}, err
	}
	return u, nil
}

func (u Update) Validate() error {
	if strings.TrimSpace(u.Symbol) == "" {
		return fmt.Errorf("%w: missing symbol", ErrMalformedMessage)
	}
	if math.IsNaN(u.Price) || math.IsInf(u.Price, 0) || u.Price < 0 {
		return fmt.Errorf("%w: invalid price %v", ErrMalformedMessage, u.Price)
	}
	if u.HasAverage && (math.IsNaN(u.AveragePrice) || math.IsInf(u.AveragePrice, 0)) {
		return fmt.Errorf("%w: invalid average price %v", ErrMalformedMessage, u.AveragePrice)
	}
	return nil
}
