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

// TickerClient is fallback provider C: a plain exchange ticker endpoint that
// answers with a single decimal price string.
type TickerClient struct {
	url        string
	httpClient *http.Client
}

// NewTickerClient creates a new exchange ticker client.
func NewTickerClient(url string) *TickerClient {
	return &TickerClient{
		url:        url,
		httpClient: newRetryClient().StandardClient(),
	}
}

// Name implements QuoteProvider.
func (c *TickerClient) Name() string { return "exchange" }

// FetchQuote retrieves the last traded price from the exchange ticker.
// The ticker carries no source timestamp, so the fetch time is used.
func (c *TickerClient) FetchQuote(ctx context.Context) (*model.PriceQuote, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("exchange ticker request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("exchange ticker API error: status %d, body: %s", resp.StatusCode, string(body))
	}

	var data struct {
		Price string `json:"price"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("error decoding exchange ticker response: %w", err)
	}

	quote := &model.PriceQuote{
		Price:      data.Price,
		Timestamp:  time.Now().UnixMilli(),
		Source:     model.SourceFallbackC,
		Confidence: model.ConfidenceFallbackC,
	}
	parsed, ok := quote.ParsedPrice()
	if !ok {
		return nil, fmt.Errorf("exchange ticker returned unusable price %q", data.Price)
	}
	quote.Price = model.FormatPrice(parsed)
	return quote, nil
}
