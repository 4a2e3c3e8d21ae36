package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/ring-price-oracle/internal/model"
	"github.com/yourorg/ring-price-oracle/internal/types"
)

func quote(price string, confidence float64, timestamp int64) model.PriceQuote {
	return model.PriceQuote{
		Price:      price,
		Timestamp:  timestamp,
		Source:     model.SourceFallbackA,
		Confidence: confidence,
	}
}

func TestBest(t *testing.T) {
	tests := []struct {
		name      string
		quotes    map[types.ChainID]model.PriceQuote
		wantPrice string
		wantChain types.ChainID
		wantOK    bool
	}{
		{
			name:   "empty map",
			quotes: map[types.ChainID]model.PriceQuote{},
			wantOK: false,
		},
		{
			name: "single quote",
			quotes: map[types.ChainID]model.PriceQuote{
				types.ChainPolygon: quote("0.420000", 0.8, 1000),
			},
			wantPrice: "0.420000",
			wantChain: types.ChainPolygon,
			wantOK:    true,
		},
		{
			name: "higher confidence wins regardless of age",
			quotes: map[types.ChainID]model.PriceQuote{
				types.ChainPolygon:  quote("0.400000", 0.9, 1000),
				types.ChainEthereum: quote("0.410000", 0.75, 9000),
			},
			wantPrice: "0.400000",
			wantChain: types.ChainPolygon,
			wantOK:    true,
		},
		{
			name: "confidence tie broken by recency",
			quotes: map[types.ChainID]model.PriceQuote{
				types.ChainPolygon:  quote("0.400000", 0.9, 1000),
				types.ChainEthereum: quote("0.410000", 0.9, 2000),
			},
			wantPrice: "0.410000",
			wantChain: types.ChainEthereum,
			wantOK:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			best, chainID, ok := Best(tt.quotes)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantPrice, best.Price)
				assert.Equal(t, tt.wantChain, chainID)
			}
		})
	}
}

func TestMedianPrice(t *testing.T) {
	quotes := map[types.ChainID]model.PriceQuote{
		types.ChainEthereum: quote("0.400000", 0.9, 1000),
		types.ChainPolygon:  quote("0.500000", 0.9, 1000),
		types.ChainBase:     quote("0.900000", 0.9, 1000),
	}

	median, ok := MedianPrice(quotes)
	require.True(t, ok)
	assert.InDelta(t, 0.5, median, 1e-9)
}

func TestMedianPrice_EvenCountAverages(t *testing.T) {
	quotes := map[types.ChainID]model.PriceQuote{
		types.ChainEthereum: quote("0.400000", 0.9, 1000),
		types.ChainPolygon:  quote("0.600000", 0.9, 1000),
	}

	median, ok := MedianPrice(quotes)
	require.True(t, ok)
	assert.InDelta(t, 0.5, median, 1e-9)
}

func TestMedianPrice_SkipsUnparseable(t *testing.T) {
	quotes := map[types.ChainID]model.PriceQuote{
		types.ChainEthereum: quote("not-a-price", 0.9, 1000),
		types.ChainPolygon:  quote("0.500000", 0.9, 1000),
	}

	median, ok := MedianPrice(quotes)
	require.True(t, ok)
	assert.InDelta(t, 0.5, median, 1e-9)

	_, ok = MedianPrice(map[types.ChainID]model.PriceQuote{
		types.ChainEthereum: quote("not-a-price", 0.9, 1000),
	})
	assert.False(t, ok)
}

func TestSpread(t *testing.T) {
	quotes := map[types.ChainID]model.PriceQuote{
		types.ChainEthereum: quote("0.400000", 0.9, 1000),
		types.ChainPolygon:  quote("0.500000", 0.9, 1000),
	}

	spread, ok := Spread(quotes)
	require.True(t, ok)
	assert.InDelta(t, 0.25, spread, 1e-9)
}

func TestSpread_Empty(t *testing.T) {
	_, ok := Spread(nil)
	assert.False(t, ok)
}
