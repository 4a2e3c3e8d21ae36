// Package export ships resolved quotes to an external webhook in batches, so
// the wider platform can observe what the oracle is serving without polling it.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"

	"github.com/yourorg/ring-price-oracle/internal/model"
)

// Config holds settings for the quote exporter.
type Config struct {
	Enabled    bool
	WebhookURL string
	APIKey     string
	BatchSize  int
	Interval   time.Duration
}

// Exporter batches quotes and POSTs them to the configured webhook on an
// interval, or earlier when the batch fills up.
type Exporter struct {
	cfg        Config
	httpClient *http.Client

	mu    sync.Mutex
	batch []model.PriceQuote

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates and starts a quote exporter.
func New(cfg Config) (*Exporter, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("exporter is disabled")
	}
	if cfg.WebhookURL == "" {
		return nil, fmt.Errorf("exporter requires a webhook URL")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 2
	retryClient.Logger = nil

	ctx, cancel := context.WithCancel(context.Background())
	e := &Exporter{
		cfg:        cfg,
		httpClient: retryClient.StandardClient(),
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	go e.loop(ctx)

	return e, nil
}

// AddQuote queues a quote for export. Triggers an immediate flush when the
// batch is full.
func (e *Exporter) AddQuote(quote model.PriceQuote) {
	e.mu.Lock()
	e.batch = append(e.batch, quote)
	full := len(e.batch) >= e.cfg.BatchSize
	e.mu.Unlock()

	if full {
		e.Flush()
	}
}

// Flush sends the pending batch, if any.
func (e *Exporter) Flush() {
	e.mu.Lock()
	if len(e.batch) == 0 {
		e.mu.Unlock()
		return
	}
	pending := e.batch
	e.batch = nil
	e.mu.Unlock()

	if err := e.send(pending); err != nil {
		logrus.Warnf("Quote export failed, dropping %d quotes: %v", len(pending), err)
	}
}

// Stop flushes remaining quotes and stops the export loop.
func (e *Exporter) Stop() {
	e.cancel()
	<-e.done
	e.Flush()
}

func (e *Exporter) loop(ctx context.Context) {
	defer close(e.done)

	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Flush()
		}
	}
}

func (e *Exporter) send(quotes []model.PriceQuote) error {
	payload, err := json.Marshal(map[string]interface{}{
		"quotes":     quotes,
		"exportedAt": time.Now().Unix(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal export payload: %w", err)
	}

	req, err := http.NewRequest("POST", e.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create export request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("export request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	logrus.Debugf("Exported %d quotes to webhook", len(quotes))
	return nil
}
