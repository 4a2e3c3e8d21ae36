// Package fetch provides the off-chain fallback price providers consulted when
// the on-chain feed is unavailable.
package fetch

import (
	"context"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/yourorg/ring-price-oracle/internal/model"
)

// QuoteProvider is the narrow interface every fallback provider implements.
// Each provider owns its response-schema parsing and error boundary, so one
// provider's API changes cannot affect the others' code paths.
type QuoteProvider interface {
	// Name identifies the provider in configuration and logs.
	Name() string

	// FetchQuote retrieves a spot price, or an error treated as "no quote".
	FetchQuote(ctx context.Context) (*model.PriceQuote, error)
}

// newRetryClient creates a new HTTP client with retry capabilities
func newRetryClient() *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.RetryMax = 3
	c.RetryWaitMin = 500 * time.Millisecond
	c.RetryWaitMax = 3 * time.Second
	c.Logger = nil
	return c
}
