// Package aggregate selects and summarizes quotes gathered across chains.
package aggregate

import (
	"sort"

	"github.com/yourorg/ring-price-oracle/internal/model"
	"github.com/yourorg/ring-price-oracle/internal/types"
)

// Best returns the most trustworthy quote from a multi-chain map: highest
// confidence wins, ties broken by the most recent timestamp. ok is false when
// the map is empty.
func Best(quotes map[types.ChainID]model.PriceQuote) (model.PriceQuote, types.ChainID, bool) {
	var (
		best      model.PriceQuote
		bestChain types.ChainID
		found     bool
	)

	for _, id := range sortedChainIDs(quotes) {
		q := quotes[id]
		if !found || better(q, best) {
			best = q
			bestChain = id
			found = true
		}
	}

	return best, bestChain, found
}

// better ranks confidence first, recency second.
func better(a, b model.PriceQuote) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	return a.Timestamp > b.Timestamp
}

// MedianPrice returns the median numeric price across chains, skipping quotes
// whose price does not parse. Robust against a single chain reporting a
// skewed value.
func MedianPrice(quotes map[types.ChainID]model.PriceQuote) (float64, bool) {
	values := make([]float64, 0, len(quotes))
	for _, q := range quotes {
		if v, ok := q.ParsedPrice(); ok {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return 0, false
	}

	sort.Float64s(values)
	n := len(values)
	if n%2 == 0 {
		return (values[n/2-1] + values[n/2]) / 2, true
	}
	return values[n/2], true
}

// Spread returns the relative gap between the highest and lowest price across
// chains, as a fraction of the lowest. Large spreads hint at a degraded feed.
func Spread(quotes map[types.ChainID]model.PriceQuote) (float64, bool) {
	var minPrice, maxPrice float64
	seen := false
	for _, q := range quotes {
		v, ok := q.ParsedPrice()
		if !ok {
			continue
		}
		if !seen {
			minPrice, maxPrice = v, v
			seen = true
			continue
		}
		if v < minPrice {
			minPrice = v
		}
		if v > maxPrice {
			maxPrice = v
		}
	}
	if !seen || minPrice == 0 {
		return 0, false
	}
	return (maxPrice - minPrice) / minPrice, true
}

// sortedChainIDs gives a deterministic iteration order over the quote map.
func sortedChainIDs(quotes map[types.ChainID]model.PriceQuote) []types.ChainID {
	ids := make([]types.ChainID, 0, len(quotes))
	for id := range quotes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
