// Package oracle composes the cache, resolver, and breaker into the price
// service the rest of the application consumes. The service is explicitly
// constructed and passed down; there is no hidden module-level singleton, so
// tests can substitute fake feeds and fake providers freely.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/ring-price-oracle/internal/aggregate"
	"github.com/yourorg/ring-price-oracle/internal/cache"
	"github.com/yourorg/ring-price-oracle/internal/circuitbreaker"
	"github.com/yourorg/ring-price-oracle/internal/config"
	"github.com/yourorg/ring-price-oracle/internal/model"
	"github.com/yourorg/ring-price-oracle/internal/resolve"
	"github.com/yourorg/ring-price-oracle/internal/types"
	"github.com/yourorg/ring-price-oracle/internal/validation"
)

// Sentinel errors surfaced to callers.
var (
	// ErrUnsupportedToken means the caller asked about a token this oracle
	// does not track. A programming error on the caller's side, failed loudly.
	ErrUnsupportedToken = errors.New("unsupported token")

	// ErrNoPriceAvailable means every chain's resolution failed.
	ErrNoPriceAvailable = errors.New("no price available")
)

// QuoteSink receives every freshly resolved quote, for export/telemetry.
type QuoteSink func(model.PriceQuote)

// Service answers price questions about the single tracked token. Individual
// source failures never propagate: the unpinned price path degrades to a
// low-confidence default rather than blocking the caller, and consumers that
// need to know a quote is untrustworthy inspect Confidence.
type Service struct {
	cfg      config.Config
	resolver *resolve.Resolver
	cache    *cache.PriceCache
	breaker  *circuitbreaker.CircuitBreaker
	sink     QuoteSink
	now      func() time.Time
}

// NewService wires the resolver and cache into a price service.
func NewService(cfg config.Config, resolver *resolve.Resolver, priceCache *cache.PriceCache) *Service {
	return &Service{
		cfg:      cfg,
		resolver: resolver,
		cache:    priceCache,
		now:      time.Now,
	}
}

// WithBreaker attaches a circuit breaker guarding the serving path.
func (s *Service) WithBreaker(cb *circuitbreaker.CircuitBreaker) *Service {
	s.breaker = cb
	return s
}

// WithQuoteSink attaches a sink notified of every freshly resolved quote.
func (s *Service) WithQuoteSink(sink QuoteSink) *Service {
	s.sink = sink
	return s
}

// TokenSymbol returns the symbol of the tracked token.
func (s *Service) TokenSymbol() string { return s.cfg.TokenSymbol }

// USDPrice returns the token's USD price from the default chain, degrading
// through fallback providers, other chains, and finally the default quote.
// It never fails: callers always get a well-formed quote.
func (s *Service) USDPrice(ctx context.Context) (model.PriceQuote, *model.ResolutionTrace) {
	return s.price(ctx, s.cfg.DefaultChainID, false)
}

// PriceForChain returns the token's price resolved for one specific chain.
// Only the tracked token is supported; anything else is rejected loudly.
func (s *Service) PriceForChain(ctx context.Context, symbol string, chainID types.ChainID) (model.PriceQuote, *model.ResolutionTrace, error) {
	if symbol != s.cfg.TokenSymbol {
		return model.PriceQuote{}, nil, fmt.Errorf("%w: %s", ErrUnsupportedToken, symbol)
	}
	quote, trace := s.price(ctx, chainID, true)
	return quote, trace, nil
}

// price runs the cached resolution pipeline for one chain. pinned restricts
// resolution to that chain; unpinned requests may fall through to other
// chains' feeds.
func (s *Service) price(ctx context.Context, chainID types.ChainID, pinned bool) (model.PriceQuote, *model.ResolutionTrace) {
	trace := &model.ResolutionTrace{}

	if cached := s.cache.Get(s.cfg.TokenSymbol, chainID); cached != nil {
		trace.CacheHit = true
		return *cached, trace
	}

	quote := s.resolver.Resolve(ctx, chainID, pinned, trace)
	if quote == nil {
		logrus.Warnf("All price sources failed for chain %d, substituting default quote", chainID)
		return s.defaultQuote(), trace
	}

	if s.breaker != nil {
		if err := s.breaker.Check(*quote); err != nil {
			if last := s.breaker.LastGoodQuote(); last != nil {
				logrus.Warnf("Quote rejected by circuit breaker (%v), serving last good quote", err)
				return *last, trace
			}
			logrus.Warnf("Quote rejected by circuit breaker (%v), substituting default quote", err)
			return s.defaultQuote(), trace
		}
	}

	if quote.IsCacheEligible() {
		s.cache.Set(s.cfg.TokenSymbol, *quote, chainID)
	}
	if s.sink != nil {
		s.sink(*quote)
	}

	return *quote, trace
}

// AllChains resolves the price on every configured chain concurrently.
// Best-effort: chains whose resolution fails are omitted, not errors.
func (s *Service) AllChains(ctx context.Context) map[types.ChainID]model.PriceQuote {
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		quotes = make(map[types.ChainID]model.PriceQuote)
	)

	for id := range s.cfg.Chains {
		wg.Add(1)
		go func(id types.ChainID) {
			defer wg.Done()

			quote := s.resolver.Resolve(ctx, id, true, nil)
			if quote == nil {
				return
			}
			if quote.ChainID == 0 {
				quote.ChainID = int64(id)
			}

			mu.Lock()
			quotes[id] = *quote
			mu.Unlock()
		}(id)
	}

	wg.Wait()
	return validation.FilterInvalid(quotes)
}

// BestPrice returns the single most trustworthy quote across chains: highest
// confidence first, most recent timestamp on ties.
func (s *Service) BestPrice(ctx context.Context) (model.PriceQuote, error) {
	quotes := s.AllChains(ctx)
	best, chainID, ok := aggregate.Best(quotes)
	if !ok {
		return model.PriceQuote{}, ErrNoPriceAvailable
	}
	if best.ChainID == 0 {
		best.ChainID = int64(chainID)
	}
	return best, nil
}

// ClearCache drops every cached quote. Operator action.
func (s *Service) ClearCache() {
	s.cache.Clear()
	logrus.Info("Price cache cleared")
}

// defaultQuote is the degraded placeholder served when everything fails.
func (s *Service) defaultQuote() model.PriceQuote {
	return model.PriceQuote{
		Price:      s.cfg.DefaultPrice,
		Timestamp:  s.now().UnixMilli(),
		Source:     model.SourceDefault,
		Confidence: model.ConfidenceDefault,
	}
}
