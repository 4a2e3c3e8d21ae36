package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/ring-price-oracle/internal/model"
)

func TestCoingeckoClient_FetchQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/simple/price", r.URL.Path)
		assert.Equal(t, "ring", r.URL.Query().Get("ids"))
		fmt.Fprint(w, `{"ring":{"usd":0.1234,"last_updated_at":1700000000}}`)
	}))
	defer srv.Close()

	client := NewCoingeckoClient(srv.URL, "ring")
	quote, err := client.FetchQuote(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "0.123400", quote.Price)
	assert.Equal(t, model.SourceFallbackA, quote.Source)
	assert.Equal(t, model.ConfidenceFallbackA, quote.Confidence)
	assert.Equal(t, int64(1700000000000), quote.Timestamp)
	assert.Zero(t, quote.ChainID, "fallback quotes are chain-agnostic")
}

func TestCoingeckoClient_TokenNotListed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	client := NewCoingeckoClient(srv.URL, "ring")
	quote, err := client.FetchQuote(context.Background())

	assert.Error(t, err)
	assert.Nil(t, quote)
}

func TestCMCClient_FetchQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("X-CMC_PRO_API_KEY"))
		assert.Equal(t, "RING", r.URL.Query().Get("symbol"))
		fmt.Fprint(w, `{"data":{"RING":{"quote":{"USD":{"price":0.4567,"last_updated":"2024-01-15T10:00:00Z"}}}}}`)
	}))
	defer srv.Close()

	client := NewCMCClient(srv.URL, "RING", "test-key")
	quote, err := client.FetchQuote(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "0.456700", quote.Price)
	assert.Equal(t, model.SourceFallbackB, quote.Source)
	assert.Equal(t, model.ConfidenceFallbackB, quote.Confidence)
}

func TestCMCClient_UnconfiguredKey(t *testing.T) {
	client := NewCMCClient("http://unused", "RING", "")

	assert.False(t, client.Configured())
	_, err := client.FetchQuote(context.Background())
	assert.Error(t, err)
}

func TestTickerClient_FetchQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"price":"0.39"}`)
	}))
	defer srv.Close()

	client := NewTickerClient(srv.URL)
	quote, err := client.FetchQuote(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "0.390000", quote.Price, "prices are normalized to 6 decimal places")
	assert.Equal(t, model.SourceFallbackC, quote.Source)
}

func TestTickerClient_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad pair", http.StatusBadRequest)
	}))
	defer srv.Close()

	client := NewTickerClient(srv.URL)
	quote, err := client.FetchQuote(context.Background())

	assert.Error(t, err)
	assert.Nil(t, quote)
}

func TestTickerClient_UnparseablePrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"price":"not-a-number"}`)
	}))
	defer srv.Close()

	client := NewTickerClient(srv.URL)
	quote, err := client.FetchQuote(context.Background())

	assert.Error(t, err, "an unparseable price is treated as absent, not zero")
	assert.Nil(t, quote)
}
