package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/ring-price-oracle/internal/model"
)

// fakeProvider is an instrumented QuoteProvider for asserting call order.
type fakeProvider struct {
	name   string
	source model.Source
	price  string
	err    error
	calls  int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) FetchQuote(ctx context.Context) (*model.PriceQuote, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &model.PriceQuote{
		Price:      f.price,
		Timestamp:  time.Now().UnixMilli(),
		Source:     f.source,
		Confidence: 0.75,
	}, nil
}

func allowAll() map[string]bool {
	return map[string]bool{"coingecko": true, "coinmarketcap": true, "exchange": true}
}

func TestTryFallbacks_FixedOrderFirstSuccessWins(t *testing.T) {
	a := &fakeProvider{name: "coingecko", source: model.SourceFallbackA, err: errors.New("rate limited")}
	b := &fakeProvider{name: "coinmarketcap", source: model.SourceFallbackB, price: "0.420000"}
	c := &fakeProvider{name: "exchange", source: model.SourceFallbackC, price: "0.410000"}

	set := NewFallbackSetWithProviders(a, b, c)
	trace := &model.ResolutionTrace{}

	quote := set.TryFallbacks(context.Background(), allowAll(), trace)

	require.NotNil(t, quote)
	assert.Equal(t, model.SourceFallbackB, quote.Source)
	assert.Equal(t, "0.420000", quote.Price)

	assert.Equal(t, 1, a.calls, "provider A must be consulted first")
	assert.Equal(t, 1, b.calls, "provider B must be consulted after A failed")
	assert.Equal(t, 0, c.calls, "provider C must not be consulted once B succeeded")

	require.Len(t, trace.Attempts, 2)
	assert.False(t, trace.Attempts[0].OK)
	assert.True(t, trace.Attempts[1].OK)
}

func TestTryFallbacks_AllFail(t *testing.T) {
	a := &fakeProvider{name: "coingecko", source: model.SourceFallbackA, err: errors.New("down")}
	b := &fakeProvider{name: "coinmarketcap", source: model.SourceFallbackB, err: errors.New("down")}
	c := &fakeProvider{name: "exchange", source: model.SourceFallbackC, err: errors.New("down")}

	set := NewFallbackSetWithProviders(a, b, c)
	trace := &model.ResolutionTrace{}

	assert.Nil(t, set.TryFallbacks(context.Background(), allowAll(), trace))
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
	assert.Equal(t, 1, c.calls)
	assert.Len(t, trace.Attempts, 3)
}

func TestTryFallbacks_ChainPolicyRestrictsProviders(t *testing.T) {
	a := &fakeProvider{name: "coingecko", source: model.SourceFallbackA, err: errors.New("down")}
	b := &fakeProvider{name: "coinmarketcap", source: model.SourceFallbackB, price: "0.420000"}

	set := NewFallbackSetWithProviders(a, b)

	// L2 policy: only the first aggregator is trusted.
	quote := set.TryFallbacks(context.Background(), map[string]bool{"coingecko": true}, nil)

	assert.Nil(t, quote)
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 0, b.calls, "provider not in the chain's allow-set must be skipped")
}

// slowProvider blocks until its context is cancelled.
type slowProvider struct {
	name string
}

func (p *slowProvider) Name() string { return p.name }

func (p *slowProvider) FetchQuote(ctx context.Context) (*model.PriceQuote, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(30 * time.Second):
		return nil, errors.New("unreachable")
	}
}

func TestTryFallbacks_HungProviderDoesNotStallTheChain(t *testing.T) {
	hung := &slowProvider{name: "coingecko"}
	b := &fakeProvider{name: "coinmarketcap", source: model.SourceFallbackB, price: "0.420000"}

	set := NewFallbackSetWithProviders(hung, b).WithTimeout(50 * time.Millisecond)
	trace := &model.ResolutionTrace{}

	start := time.Now()
	quote := set.TryFallbacks(context.Background(), allowAll(), trace)
	elapsed := time.Since(start)

	require.NotNil(t, quote)
	assert.Equal(t, model.SourceFallbackB, quote.Source)
	assert.Less(t, elapsed, time.Second, "a hung provider must be cut off at the per-source timeout")

	require.Len(t, trace.Attempts, 2)
	assert.False(t, trace.Attempts[0].OK)
	assert.True(t, trace.Attempts[1].OK)
}

func TestTryFallbacks_SlowHTTPProviderIsBounded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(10 * time.Second):
		}
	}))
	defer srv.Close()

	slow := NewCoingeckoClient(srv.URL, "ring")
	b := &fakeProvider{name: "coinmarketcap", source: model.SourceFallbackB, price: "0.420000"}

	set := NewFallbackSetWithProviders(slow, b).WithTimeout(100 * time.Millisecond)

	start := time.Now()
	quote := set.TryFallbacks(context.Background(), allowAll(), nil)
	elapsed := time.Since(start)

	require.NotNil(t, quote)
	assert.Equal(t, model.SourceFallbackB, quote.Source)
	assert.Less(t, elapsed, 2*time.Second)
}

func TestTryFallbacks_EmptyAllowSetPermitsNone(t *testing.T) {
	a := &fakeProvider{name: "coingecko", source: model.SourceFallbackA, price: "0.420000"}
	set := NewFallbackSetWithProviders(a)

	assert.Nil(t, set.TryFallbacks(context.Background(), nil, nil))
	assert.Equal(t, 0, a.calls)
}
