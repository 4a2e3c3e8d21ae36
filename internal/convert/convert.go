// Package convert provides token/USD conversion arithmetic over the cached
// price pipeline. Amounts cross the boundary as decimal strings to avoid
// floating-point drift accumulating across the stack.
package convert

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/yourorg/ring-price-oracle/internal/model"
	"github.com/yourorg/ring-price-oracle/internal/oracle"
)

// Conversion is the result of a token/USD conversion. Exactly one of
// TokenAmount/USDAmount is the computed side, but both are always populated.
type Conversion struct {
	TokenAmount string  `json:"tokenAmount"`
	USDAmount   string  `json:"usdAmount"`
	Rate        string  `json:"rate"`
	Timestamp   int64   `json:"timestamp"`
	Confidence  float64 `json:"confidence"`
}

// Converter performs conversions using a single cached price resolution per call.
type Converter struct {
	svc *oracle.Service
}

// New creates a converter over the given price service.
func New(svc *oracle.Service) *Converter {
	return &Converter{svc: svc}
}

// ToUSD converts a token amount to USD at the current rate.
func (c *Converter) ToUSD(ctx context.Context, amount string) (Conversion, error) {
	value, err := parseAmount(amount)
	if err != nil {
		return Conversion{}, err
	}

	quote, _ := c.svc.USDPrice(ctx)
	rate, ok := quote.ParsedPrice()
	if !ok {
		return Conversion{}, fmt.Errorf("resolved rate %q is unusable", quote.Price)
	}

	return Conversion{
		TokenAmount: model.FormatPrice(value),
		USDAmount:   model.FormatPrice(value * rate),
		Rate:        quote.Price,
		Timestamp:   quote.Timestamp,
		Confidence:  quote.Confidence,
	}, nil
}

// FromUSD converts a USD amount to tokens at the current rate.
func (c *Converter) FromUSD(ctx context.Context, usdAmount string) (Conversion, error) {
	value, err := parseAmount(usdAmount)
	if err != nil {
		return Conversion{}, err
	}

	quote, _ := c.svc.USDPrice(ctx)
	rate, ok := quote.ParsedPrice()
	if !ok || rate == 0 {
		return Conversion{}, fmt.Errorf("resolved rate %q is unusable for division", quote.Price)
	}

	return Conversion{
		TokenAmount: model.FormatPrice(value / rate),
		USDAmount:   model.FormatPrice(value),
		Rate:        quote.Price,
		Timestamp:   quote.Timestamp,
		Confidence:  quote.Confidence,
	}, nil
}

// parseAmount validates a caller-supplied decimal string.
func parseAmount(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, fmt.Errorf("invalid amount %q: must be a non-negative finite decimal", s)
	}
	return v, nil
}
