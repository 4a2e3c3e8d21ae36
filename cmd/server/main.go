// Package main is the entry point for the Ring price oracle service: a small
// HTTP adapter over the multi-source price resolution pipeline the rest of
// the platform calls for quotes and conversions.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/yourorg/ring-price-oracle/internal/cache"
	"github.com/yourorg/ring-price-oracle/internal/chain"
	"github.com/yourorg/ring-price-oracle/internal/circuitbreaker"
	"github.com/yourorg/ring-price-oracle/internal/config"
	"github.com/yourorg/ring-price-oracle/internal/convert"
	"github.com/yourorg/ring-price-oracle/internal/export"
	"github.com/yourorg/ring-price-oracle/internal/fetch"
	"github.com/yourorg/ring-price-oracle/internal/model"
	"github.com/yourorg/ring-price-oracle/internal/oracle"
	"github.com/yourorg/ring-price-oracle/internal/otel"
	"github.com/yourorg/ring-price-oracle/internal/resolve"
	"github.com/yourorg/ring-price-oracle/internal/types"
)

// startTime records when the service was initialized for uptime reporting
var startTime = time.Now()

// Server represents the oracle HTTP server instance
type Server struct {
	cfg       config.Config
	service   *oracle.Service
	converter *convert.Converter
	breaker   *circuitbreaker.CircuitBreaker
	exporter  *export.Exporter
	metrics   *serverMetrics
	rateLimit *rate.Limiter
	server    *http.Server
}

// serverMetrics holds Prometheus metrics for the server
type serverMetrics struct {
	requestCounter   *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	sourceErrors     *prometheus.CounterVec
	cacheHits        prometheus.Counter
	cacheMisses      prometheus.Counter
	servedPrice      prometheus.Gauge
	servedConfidence prometheus.Gauge
}

// registerMetrics sets up Prometheus metrics collection
func registerMetrics() *serverMetrics {
	m := &serverMetrics{
		requestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oracle_requests_total",
				Help: "Total number of requests processed",
			},
			[]string{"endpoint", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "oracle_request_duration_seconds",
				Help:    "Request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		sourceErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oracle_source_errors_total",
				Help: "Total number of price source failures",
			},
			[]string{"source"},
		),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "oracle_cache_hits_total",
			Help: "Price requests served from cache",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "oracle_cache_misses_total",
			Help: "Price requests that went through resolution",
		}),
		servedPrice: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "oracle_served_price_usd",
			Help: "Last served USD price",
		}),
		servedConfidence: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "oracle_served_confidence",
			Help: "Confidence of the last served quote",
		}),
	}

	prometheus.MustRegister(
		m.requestCounter,
		m.requestDuration,
		m.sourceErrors,
		m.cacheHits,
		m.cacheMisses,
		m.servedPrice,
		m.servedConfidence,
	)

	return m
}

// main is the entry point for the application
func main() {
	setupLogging()

	cfg := config.Load()
	shutdownTracer := otel.InitTracer(cfg.OtelEndpoint)
	defer shutdownTracer()

	registry := chain.NewRegistry(cfg.Chains)
	fallbacks := fetch.NewFallbackSet(cfg)
	resolver := resolve.New(registry, fallbacks, cfg.Chains, cfg.SourceTimeout)
	priceCache := cache.New(cfg.CacheTTL)

	service := oracle.NewService(cfg, resolver, priceCache)

	var breaker *circuitbreaker.CircuitBreaker
	if cfg.BreakerEnabled {
		breaker = circuitbreaker.New(circuitbreaker.Thresholds{
			MaxPrice:       cfg.MaxPrice,
			MaxPriceChange: cfg.MaxPriceChange,
			MinConfidence:  cfg.MinConfidence,
		}).WithResetDelay(cfg.CircuitResetDelay).WithTripCallback(func(reason string, _ model.PriceQuote) {
			logrus.Warnf("Circuit breaker tripped: %s", reason)
		})
		service.WithBreaker(breaker)
	}

	var exporter *export.Exporter
	if cfg.ExportEnabled {
		var err error
		exporter, err = export.New(export.Config{
			Enabled:    true,
			WebhookURL: cfg.ExportURL,
			APIKey:     cfg.ExportAPIKey,
			BatchSize:  cfg.ExportBatch,
			Interval:   cfg.ExportInterval,
		})
		if err != nil {
			logrus.Warnf("Failed to initialize quote exporter: %v", err)
		} else {
			service.WithQuoteSink(exporter.AddQuote)
			logrus.Info("Quote exporter initialized")
		}
	}

	server := NewServer(cfg, service, convert.New(service), breaker, exporter)
	server.Start()
}

// setupLogging configures the logging for the application
func setupLogging() {
	logFormat := strings.ToLower(os.Getenv("LOG_FORMAT"))
	logLevel := strings.ToLower(os.Getenv("LOG_LEVEL"))

	switch logFormat {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	switch logLevel {
	case "debug":
		logrus.SetLevel(logrus.DebugLevel)
	case "info":
		logrus.SetLevel(logrus.InfoLevel)
	case "warn", "warning":
		logrus.SetLevel(logrus.WarnLevel)
	case "error":
		logrus.SetLevel(logrus.ErrorLevel)
	default:
		logrus.SetLevel(logrus.InfoLevel)
	}

	logrus.Info("Logging configured")
}

// NewServer creates a new server instance
func NewServer(cfg config.Config, service *oracle.Service, converter *convert.Converter, breaker *circuitbreaker.CircuitBreaker, exporter *export.Exporter) *Server {
	rps := getEnvFloat("RATE_LIMIT_RPS", 10.0)
	burst := getEnvInt("RATE_LIMIT_BURST", 20)

	s := &Server{
		cfg:       cfg,
		service:   service,
		converter: converter,
		breaker:   breaker,
		exporter:  exporter,
		metrics:   registerMetrics(),
		rateLimit: rate.NewLimiter(rate.Limit(rps), burst),
	}

	logrus.WithFields(logrus.Fields{
		"port":          cfg.Port,
		"token":         cfg.TokenSymbol,
		"default_chain": cfg.DefaultChainID,
		"chains":        len(cfg.Chains),
		"cache_ttl":     cfg.CacheTTL,
		"breaker":       cfg.BreakerEnabled,
	}).Info("Server initialized")

	return s
}

// Start begins the HTTP server and sets up graceful shutdown
func (s *Server) Start() {
	mux := http.NewServeMux()

	mux.HandleFunc("/price", s.handlePrice)
	mux.HandleFunc("/price/all", s.handleAllChains)
	mux.HandleFunc("/price/best", s.handleBestPrice)
	mux.HandleFunc("/convert", s.handleConvert)
	mux.HandleFunc("/cache/clear", s.handleCacheClear)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	mux.Handle("/metrics", promhttp.Handler())

	s.server = &http.Server{
		Addr:         ":" + s.cfg.Port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logrus.Infof("Server starting on port %s", s.cfg.Port)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Error starting server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		logrus.Fatalf("Server shutdown failed: %v", err)
	}
	if s.exporter != nil {
		s.exporter.Stop()
	}

	logrus.Info("Server stopped")
}

// handlePrice serves the tracked token's USD price. An optional chain query
// parameter pins resolution to one chain; trace=1 attaches the resolution path.
func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if !s.allow(w, "price") {
		return
	}

	ctx, span := otel.Tracer().Start(r.Context(), "price")
	defer span.End()

	var (
		quote model.PriceQuote
		trace *model.ResolutionTrace
	)

	if chainParam := r.URL.Query().Get("chain"); chainParam != "" {
		chainID, err := strconv.ParseInt(chainParam, 10, 64)
		if err != nil {
			s.errorResponse(w, "price", http.StatusBadRequest, "invalid chain parameter")
			return
		}
		quote, trace, err = s.service.PriceForChain(ctx, s.service.TokenSymbol(), types.ChainID(chainID))
		if err != nil {
			otel.RecordError(ctx, err)
			s.errorResponse(w, "price", http.StatusBadRequest, err.Error())
			return
		}
	} else {
		quote, trace = s.service.USDPrice(ctx)
	}

	s.observeTrace(trace)
	s.observeQuote(quote)

	response := map[string]interface{}{
		"symbol": s.service.TokenSymbol(),
		"quote":  quote,
	}
	if r.URL.Query().Get("trace") == "1" {
		response["trace"] = trace
	}

	s.metrics.requestCounter.WithLabelValues("price", "success").Inc()
	s.metrics.requestDuration.WithLabelValues("price").Observe(time.Since(start).Seconds())
	s.writeJSON(w, http.StatusOK, response)
}

// handleAllChains serves the per-chain quote map. Best-effort: failed chains
// are absent.
func (s *Server) handleAllChains(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if !s.allow(w, "price_all") {
		return
	}

	ctx, span := otel.Tracer().Start(r.Context(), "price_all")
	defer span.End()

	quotes := s.service.AllChains(ctx)

	s.metrics.requestCounter.WithLabelValues("price_all", "success").Inc()
	s.metrics.requestDuration.WithLabelValues("price_all").Observe(time.Since(start).Seconds())
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"symbol": s.service.TokenSymbol(),
		"quotes": quotes,
	})
}

// handleBestPrice serves the most trustworthy quote across chains.
func (s *Server) handleBestPrice(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if !s.allow(w, "price_best") {
		return
	}

	ctx, span := otel.Tracer().Start(r.Context(), "price_best")
	defer span.End()

	quote, err := s.service.BestPrice(ctx)
	if err != nil {
		otel.RecordError(ctx, err)
		status := http.StatusInternalServerError
		if errors.Is(err, oracle.ErrNoPriceAvailable) {
			status = http.StatusServiceUnavailable
		}
		s.errorResponse(w, "price_best", status, err.Error())
		return
	}

	s.observeQuote(quote)
	s.metrics.requestCounter.WithLabelValues("price_best", "success").Inc()
	s.metrics.requestDuration.WithLabelValues("price_best").Observe(time.Since(start).Seconds())
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"symbol": s.service.TokenSymbol(),
		"quote":  quote,
	})
}

// convertRequest is the body of a POST /convert call.
type convertRequest struct {
	Direction string `json:"direction"` // "to_usd" or "from_usd"
	Amount    string `json:"amount"`
}

// handleConvert performs a token/USD conversion at the current cached rate.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.allow(w, "convert") {
		return
	}

	ctx, span := otel.Tracer().Start(r.Context(), "convert")
	defer span.End()

	var req convertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, "convert", http.StatusBadRequest, "invalid request body")
		return
	}

	var (
		result convert.Conversion
		err    error
	)
	switch req.Direction {
	case "to_usd":
		result, err = s.converter.ToUSD(ctx, req.Amount)
	case "from_usd":
		result, err = s.converter.FromUSD(ctx, req.Amount)
	default:
		s.errorResponse(w, "convert", http.StatusBadRequest, "direction must be to_usd or from_usd")
		return
	}
	if err != nil {
		otel.RecordError(ctx, err)
		s.errorResponse(w, "convert", http.StatusBadRequest, err.Error())
		return
	}

	s.metrics.requestCounter.WithLabelValues("convert", "success").Inc()
	s.metrics.requestDuration.WithLabelValues("convert").Observe(time.Since(start).Seconds())
	s.writeJSON(w, http.StatusOK, result)
}

// handleCacheClear drops every cached quote. Operator action via POST.
func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.service.ClearCache()
	s.metrics.requestCounter.WithLabelValues("cache_clear", "success").Inc()
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "cache cleared"})
}

// handleHealth is a simple health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":    "OK",
		"version":   "1.0.0",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleStatus provides detailed service status information
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":  "operational",
		"uptime":  time.Since(startTime).String(),
		"version": "1.0.0",
		"token":   s.service.TokenSymbol(),
		"configuration": map[string]interface{}{
			"default_chain": s.cfg.DefaultChainID,
			"chains":        len(s.cfg.Chains),
			"cache_ttl":     s.cfg.CacheTTL.String(),
			"breaker":       s.cfg.BreakerEnabled,
		},
	}

	if s.breaker != nil {
		status["circuit_state"] = s.breaker.GetState()
		if last := s.breaker.LastGoodQuote(); last != nil {
			status["last_good_price"] = last.Price
			status["last_good_timestamp"] = time.UnixMilli(last.Timestamp).Format(time.RFC3339)
		}
	}

	s.writeJSON(w, http.StatusOK, status)
}

// allow applies rate limiting and reports whether the request may proceed.
func (s *Server) allow(w http.ResponseWriter, endpoint string) bool {
	if !s.rateLimit.Allow() {
		s.errorResponse(w, endpoint, http.StatusTooManyRequests, "rate limit exceeded")
		return false
	}
	return true
}

// observeTrace feeds cache and source-failure telemetry into Prometheus.
func (s *Server) observeTrace(trace *model.ResolutionTrace) {
	if trace == nil {
		return
	}
	if trace.CacheHit {
		s.metrics.cacheHits.Inc()
		return
	}
	s.metrics.cacheMisses.Inc()
	for _, attempt := range trace.Attempts {
		if !attempt.OK {
			s.metrics.sourceErrors.WithLabelValues(string(attempt.Source)).Inc()
		}
	}
}

// observeQuote records the served quote's price and confidence.
func (s *Server) observeQuote(quote model.PriceQuote) {
	if price, ok := quote.ParsedPrice(); ok {
		s.metrics.servedPrice.Set(price)
	}
	s.metrics.servedConfidence.Set(quote.Confidence)
}

// errorResponse returns a formatted JSON error response
func (s *Server) errorResponse(w http.ResponseWriter, endpoint string, statusCode int, errorMsg string) {
	logrus.Warn(errorMsg)
	s.metrics.requestCounter.WithLabelValues(endpoint, "error").Inc()
	s.writeJSON(w, statusCode, map[string]string{"error": errorMsg})
}

func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}
