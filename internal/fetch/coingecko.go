package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/ring-price-oracle/internal/model"
)

// CoingeckoClient is fallback provider A: a general crypto price aggregator
// queried by token ID.
type CoingeckoClient struct {
	baseURL    string
	tokenID    string
	httpClient *http.Client
}

// NewCoingeckoClient creates a new CoinGecko simple-price client.
func NewCoingeckoClient(baseURL, tokenID string) *CoingeckoClient {
	return &CoingeckoClient{
		baseURL:    baseURL,
		tokenID:    tokenID,
		httpClient: newRetryClient().StandardClient(),
	}
}

// Name implements QuoteProvider.
func (c *CoingeckoClient) Name() string { return "coingecko" }

// FetchQuote retrieves the token's USD spot price.
func (c *CoingeckoClient) FetchQuote(ctx context.Context) (*model.PriceQuote, error) {
	url := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd&include_last_updated_at=true",
		c.baseURL, c.tokenID)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	logrus.Debugf("Fetching spot price from coingecko: %s", c.baseURL)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coingecko request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("coingecko API error: status %d, body: %s", resp.StatusCode, string(body))
	}

	var response map[string]struct {
		USD           float64 `json:"usd"`
		LastUpdatedAt int64   `json:"last_updated_at"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("error decoding coingecko response: %w", err)
	}

	entry, ok := response[c.tokenID]
	if !ok {
		return nil, fmt.Errorf("token %q not listed in coingecko response", c.tokenID)
	}

	updatedAt := entry.LastUpdatedAt
	if updatedAt == 0 {
		updatedAt = time.Now().Unix()
	}

	quote := &model.PriceQuote{
		Price:      model.FormatPrice(entry.USD),
		Timestamp:  updatedAt * 1000,
		Source:     model.SourceFallbackA,
		Confidence: model.ConfidenceFallbackA,
	}
	if _, ok := quote.ParsedPrice(); !ok {
		return nil, fmt.Errorf("coingecko returned unusable price %q", quote.Price)
	}
	return quote, nil
}
