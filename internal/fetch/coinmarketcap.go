package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/yourorg/ring-price-oracle/internal/model"
)

// CMCClient is fallback provider B: an alternate aggregator that requires an
// API key. Callers skip it entirely when no key is configured.
type CMCClient struct {
	url        string
	symbol     string
	apiKey     string
	httpClient *http.Client
}

// NewCMCClient creates a new CoinMarketCap quotes client.
func NewCMCClient(url, symbol, apiKey string) *CMCClient {
	return &CMCClient{
		url:        url,
		symbol:     symbol,
		apiKey:     apiKey,
		httpClient: newRetryClient().StandardClient(),
	}
}

// Name implements QuoteProvider.
func (c *CMCClient) Name() string { return "coinmarketcap" }

// Configured reports whether the provider has an API key and can be consulted.
func (c *CMCClient) Configured() bool { return c.apiKey != "" }

// FetchQuote retrieves the token's USD quote.
func (c *CMCClient) FetchQuote(ctx context.Context) (*model.PriceQuote, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("coinmarketcap API key not configured")
	}

	req, err := http.NewRequestWithContext(ctx, "GET", fmt.Sprintf("%s?symbol=%s", c.url, c.symbol), nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("X-CMC_PRO_API_KEY", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coinmarketcap request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("coinmarketcap API error: status %d, body: %s", resp.StatusCode, string(body))
	}

	var response struct {
		Data map[string]struct {
			Quote struct {
				USD struct {
					Price       float64 `json:"price"`
					LastUpdated string  `json:"last_updated"`
				} `json:"USD"`
			} `json:"quote"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("error decoding coinmarketcap response: %w", err)
	}

	entry, ok := response.Data[c.symbol]
	if !ok {
		return nil, fmt.Errorf("symbol %q not listed in coinmarketcap response", c.symbol)
	}

	updatedAt := time.Now()
	if entry.Quote.USD.LastUpdated != "" {
		if parsed, err := time.Parse(time.RFC3339, entry.Quote.USD.LastUpdated); err == nil {
			updatedAt = parsed
		}
	}

	quote := &model.PriceQuote{
		Price:      model.FormatPrice(entry.Quote.USD.Price),
		Timestamp:  updatedAt.UnixMilli(),
		Source:     model.SourceFallbackB,
		Confidence: model.ConfidenceFallbackB,
	}
	if _, ok := quote.ParsedPrice(); !ok {
		return nil, fmt.Errorf("coinmarketcap returned unusable price %q", quote.Price)
	}
	return quote, nil
}
