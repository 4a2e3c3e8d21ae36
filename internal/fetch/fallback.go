package fetch

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/ring-price-oracle/internal/config"
	"github.com/yourorg/ring-price-oracle/internal/model"
)

// FallbackSet tries the off-chain providers in a fixed order and returns the
// first parseable quote. Provider failures are logged and never escalated; no
// merging or averaging across providers occurs. Each provider call runs under
// its own timeout, so one hung provider cannot stall the chain behind it.
type FallbackSet struct {
	providers []QuoteProvider
	timeout   time.Duration
}

// NewFallbackSet builds the ordered provider chain from configuration.
// Providers that are disabled or unconfigured are left out entirely.
func NewFallbackSet(cfg config.Config) *FallbackSet {
	set := &FallbackSet{timeout: cfg.SourceTimeout}
	if set.timeout <= 0 {
		set.timeout = 5 * time.Second
	}
	if cfg.CoingeckoEnabled {
		set.providers = append(set.providers, NewCoingeckoClient(cfg.CoingeckoURL, cfg.CoingeckoTokenID))
	}
	if cfg.CMCAPIKey != "" {
		set.providers = append(set.providers, NewCMCClient(cfg.CMCURL, cfg.TokenSymbol, cfg.CMCAPIKey))
	}
	if cfg.ExchangeEnabled {
		set.providers = append(set.providers, NewTickerClient(cfg.ExchangeURL))
	}
	return set
}

// NewFallbackSetWithProviders builds a set from explicit providers, in order.
// Tests use it to substitute instrumented fakes.
func NewFallbackSetWithProviders(providers ...QuoteProvider) *FallbackSet {
	return &FallbackSet{providers: providers, timeout: 5 * time.Second}
}

// WithTimeout overrides the per-provider call timeout.
func (s *FallbackSet) WithTimeout(timeout time.Duration) *FallbackSet {
	if timeout > 0 {
		s.timeout = timeout
	}
	return s
}

// Providers returns the names of the configured providers in try order.
func (s *FallbackSet) Providers() []string {
	names := make([]string, len(s.providers))
	for i, p := range s.providers {
		names[i] = p.Name()
	}
	return names
}

// TryFallbacks consults each provider in order and returns the first usable
// quote, or nil when every provider fails. The allowed set restricts which
// providers may be consulted for the requesting chain; a nil or empty set
// permits none. Every attempt is recorded on the trace.
func (s *FallbackSet) TryFallbacks(ctx context.Context, allowed map[string]bool, trace *model.ResolutionTrace) *model.PriceQuote {
	for _, provider := range s.providers {
		if !allowed[provider.Name()] {
			continue
		}

		quote, err := s.fetch(ctx, provider)
		if err != nil {
			logrus.Warnf("Fallback provider %s failed: %v", provider.Name(), err)
			trace.Record(sourceTag(provider), 0, err)
			continue
		}

		trace.Record(quote.Source, 0, nil)
		return quote
	}
	return nil
}

// fetch runs one provider call under the per-source timeout.
func (s *FallbackSet) fetch(ctx context.Context, p QuoteProvider) (*model.PriceQuote, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return p.FetchQuote(callCtx)
}

// sourceTag maps a provider to its provenance tag for trace entries recorded
// before a quote exists.
func sourceTag(p QuoteProvider) model.Source {
	switch p.Name() {
	case "coingecko":
		return model.SourceFallbackA
	case "coinmarketcap":
		return model.SourceFallbackB
	case "exchange":
		return model.SourceFallbackC
	default:
		return model.Source(p.Name())
	}
}
