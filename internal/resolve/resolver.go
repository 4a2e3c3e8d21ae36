// Package resolve implements the priority-ordered price resolution pipeline:
// on-chain feed first, then the chain's permitted fallback providers, then the
// other configured chains' feeds when no chain was pinned.
package resolve

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/ring-price-oracle/internal/chain"
	"github.com/yourorg/ring-price-oracle/internal/fetch"
	"github.com/yourorg/ring-price-oracle/internal/model"
	"github.com/yourorg/ring-price-oracle/internal/types"
)

var errMalformedAnswer = errors.New("feed answer did not parse as a non-negative finite decimal")

// Resolver walks the source chain for a price. It never fails the caller:
// exhausting every source yields nil, and deciding what to do about that is
// the caller's business.
type Resolver struct {
	registry  *chain.Registry
	fallbacks *fetch.FallbackSet
	chains    map[types.ChainID]types.ChainOracleConfig
	timeout   time.Duration
}

// New creates a resolver over the given feed registry and fallback providers.
func New(registry *chain.Registry, fallbacks *fetch.FallbackSet, chains map[types.ChainID]types.ChainOracleConfig, timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Resolver{
		registry:  registry,
		fallbacks: fallbacks,
		chains:    chains,
		timeout:   timeout,
	}
}

// Resolve attempts, in order: the chain's on-chain feed, the chain's permitted
// fallback providers, and — only when pinned is false — every other configured
// chain's feed, stopping at the first success. A token may keep a healthy feed
// on one chain while the default chain's RPC is degraded, which is what the
// cross-chain pass exists for.
func (r *Resolver) Resolve(ctx context.Context, chainID types.ChainID, pinned bool, trace *model.ResolutionTrace) *model.PriceQuote {
	if quote := r.readFeed(ctx, chainID, trace); quote != nil {
		return quote
	}

	if quote := r.fallbacks.TryFallbacks(ctx, r.allowedFallbacks(chainID), trace); quote != nil {
		return quote
	}

	if !pinned {
		for _, other := range r.registry.ChainIDs() {
			if other == chainID {
				continue
			}
			if quote := r.readFeed(ctx, other, trace); quote != nil {
				return quote
			}
		}
	}

	return nil
}

// readFeed reads the latest round from one chain's feed. Contract-read errors
// and malformed answers are swallowed with a warning; they are never fatal.
func (r *Resolver) readFeed(ctx context.Context, chainID types.ChainID, trace *model.ResolutionTrace) *model.PriceQuote {
	cfg, ok := r.chains[chainID]
	if !ok || !cfg.FeedEnabled {
		return nil
	}
	reader, ok := r.registry.Reader(chainID)
	if !ok {
		return nil
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	round, err := reader.LatestRoundData(callCtx)
	if err != nil {
		logrus.Warnf("On-chain feed read failed for chain %d: %v", chainID, err)
		trace.Record(model.SourceOnChainFeed, int64(chainID), err)
		return nil
	}

	updatedAt := round.UpdatedAtUnix()
	confidence := model.ConfidenceOnChainStale
	if time.Since(time.Unix(updatedAt, 0)) < model.FeedFreshWindow {
		confidence = model.ConfidenceOnChainFresh
	}

	quote := &model.PriceQuote{
		Price:      round.PriceString(),
		Timestamp:  updatedAt * 1000,
		Source:     model.SourceOnChainFeed,
		Confidence: confidence,
		ChainID:    int64(chainID),
	}
	if _, ok := quote.ParsedPrice(); !ok {
		logrus.Warnf("On-chain feed for chain %d produced unusable price %q", chainID, quote.Price)
		trace.Record(model.SourceOnChainFeed, int64(chainID), errMalformedAnswer)
		return nil
	}

	trace.Record(model.SourceOnChainFeed, int64(chainID), nil)
	return quote
}

// allowedFallbacks builds the provider allow-set from the chain's policy.
func (r *Resolver) allowedFallbacks(chainID types.ChainID) map[string]bool {
	cfg, ok := r.chains[chainID]
	if !ok {
		return nil
	}
	allowed := make(map[string]bool, len(cfg.Fallbacks))
	for _, name := range cfg.Fallbacks {
		allowed[name] = true
	}
	return allowed
}
