// Package model defines the core data structures for the ring price oracle.
package model

import (
	"math"
	"strconv"
	"time"
)

// Source identifies where a quote came from.
type Source string

// Quote provenance tags.
const (
	SourceOnChainFeed Source = "on_chain_feed"
	SourceFallbackA   Source = "fallback_provider_a"
	SourceFallbackB   Source = "fallback_provider_b"
	SourceFallbackC   Source = "fallback_provider_c"
	SourceDefault     Source = "default"
)

// Confidence bands assigned per source. On-chain freshness is judged against
// FeedFreshWindow; anything older still resolves but at the stale band.
const (
	ConfidenceOnChainFresh = 0.9
	ConfidenceOnChainStale = 0.7
	ConfidenceFallbackA    = 0.8
	ConfidenceFallbackB    = 0.75
	ConfidenceFallbackC    = 0.7
	ConfidenceDefault      = 0.1

	// CacheEligibleThreshold is the confidence a quote must exceed to be cached.
	CacheEligibleThreshold = 0.5
)

// FeedFreshWindow is how recent an on-chain update must be to earn the fresh band.
const FeedFreshWindow = time.Hour

// PriceQuote is the atomic result unit: the USD exchange rate of one unit of
// the tracked token, with provenance and trustworthiness attached.
type PriceQuote struct {
	// Price is a decimal string, formatted to 6 decimal places.
	Price string `json:"price"`

	// Timestamp is when the source last updated this value, in milliseconds
	// since epoch. Not the fetch time.
	Timestamp int64 `json:"timestamp"`

	// Source tags the provenance of the quote.
	Source Source `json:"source"`

	// Confidence is a heuristic trust score in [0,1].
	Confidence float64 `json:"confidence"`

	// ChainID identifies which chain produced this quote. Zero for
	// chain-agnostic fallback sources.
	ChainID int64 `json:"chainId,omitempty"`
}

// ParsedPrice returns the numeric price. A quote whose price does not parse as
// a non-negative finite decimal reports ok=false and must be treated as absent.
func (q PriceQuote) ParsedPrice() (float64, bool) {
	v, err := strconv.ParseFloat(q.Price, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, false
	}
	return v, true
}

// IsCacheEligible reports whether the quote is trustworthy enough to cache.
func (q PriceQuote) IsCacheEligible() bool {
	return q.Confidence > CacheEligibleThreshold
}

// FormatPrice renders a price to the fixed 6-decimal-place string used for all
// quotes regardless of source, keeping conversion math consistent downstream.
func FormatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

// SourceAttempt records one step of a resolution pass for observability.
type SourceAttempt struct {
	Source  Source `json:"source"`
	ChainID int64  `json:"chainId,omitempty"`
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
}

// ResolutionTrace collects every source attempt made while resolving a price,
// so callers can see which sources were tried and why each failed without
// digging through logs.
type ResolutionTrace struct {
	// CacheHit is set when the quote was served from cache and no source was
	// consulted.
	CacheHit bool `json:"cacheHit,omitempty"`

	Attempts []SourceAttempt `json:"attempts"`
}

// Record appends an attempt to the trace. Safe on a nil trace so callers that
// don't care about telemetry can pass nil throughout.
func (t *ResolutionTrace) Record(source Source, chainID int64, err error) {
	if t == nil {
		return
	}
	a := SourceAttempt{Source: source, ChainID: chainID, OK: err == nil}
	if err != nil {
		a.Error = err.Error()
	}
	t.Attempts = append(t.Attempts, a)
}
