// Package config provides configuration loading and management for the application.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/yourorg/ring-price-oracle/internal/types"
)

// Config holds all application configuration
type Config struct {
	// HTTP server port
	Port string

	// Symbol of the token this oracle tracks
	TokenSymbol string

	// Chain consulted when a caller does not pin one
	DefaultChainID types.ChainID

	// Per-chain oracle configuration, keyed by chain ID
	Chains map[types.ChainID]types.ChainOracleConfig

	// How long cached quotes stay usable
	CacheTTL time.Duration

	// Price substituted when every source fails
	DefaultPrice string

	// Fallback provider endpoints and switches
	CoingeckoURL     string
	CoingeckoTokenID string
	CoingeckoEnabled bool
	CMCURL           string
	CMCAPIKey        string
	ExchangeURL      string
	ExchangeEnabled  bool

	// Timeout applied to each individual source call
	SourceTimeout time.Duration

	// OpenTelemetry endpoint for observability
	OtelEndpoint string

	// Circuit breaker settings
	BreakerEnabled    bool
	MaxPrice          float64
	MaxPriceChange    float64
	MinConfidence     float64
	CircuitResetDelay time.Duration

	// Quote webhook export settings
	ExportEnabled  bool
	ExportURL      string
	ExportAPIKey   string
	ExportInterval time.Duration
	ExportBatch    int
}

// Load creates a new Config from environment variables
func Load() Config {
	return Config{
		Port:           GetEnvOrDefault("PORT", "8080"),
		TokenSymbol:    strings.ToUpper(GetEnvOrDefault("TOKEN_SYMBOL", "RING")),
		DefaultChainID: types.ChainID(GetEnvAsInt("DEFAULT_CHAIN_ID", int(types.ChainPolygon))),
		Chains:         LoadChainConfigs(),
		CacheTTL:       time.Duration(GetEnvAsInt("CACHE_TTL_SECONDS", 300)) * time.Second,
		DefaultPrice:   GetEnvOrDefault("DEFAULT_PRICE", "1.00"),

		CoingeckoURL:     GetEnvOrDefault("COINGECKO_URL", "https://api.coingecko.com/api/v3"),
		CoingeckoTokenID: GetEnvOrDefault("COINGECKO_TOKEN_ID", "ring"),
		CoingeckoEnabled: GetEnvAsBool("COINGECKO_ENABLED", true),
		CMCURL:           GetEnvOrDefault("CMC_URL", "https://pro-api.coinmarketcap.com/v1/cryptocurrency/quotes/latest"),
		CMCAPIKey:        os.Getenv("CMC_API_KEY"),
		ExchangeURL:      GetEnvOrDefault("EXCHANGE_TICKER_URL", "https://api.binance.com/api/v3/ticker/price?symbol=RINGUSDT"),
		ExchangeEnabled:  GetEnvAsBool("EXCHANGE_TICKER_ENABLED", true),

		SourceTimeout: GetEnvAsDuration("SOURCE_TIMEOUT", 5*time.Second),
		OtelEndpoint:  GetEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", ""),

		BreakerEnabled:    GetEnvAsBool("BREAKER_ENABLED", true),
		MaxPrice:          GetEnvAsFloat("BREAKER_MAX_PRICE", 1000.0),
		MaxPriceChange:    GetEnvAsFloat("BREAKER_MAX_PRICE_CHANGE", 0.5), // 50% jump between checks
		MinConfidence:     GetEnvAsFloat("BREAKER_MIN_CONFIDENCE", 0.0),
		CircuitResetDelay: GetEnvAsDuration("CIRCUIT_RESET_DELAY", 5*time.Minute),

		ExportEnabled:  GetEnvAsBool("QUOTE_EXPORT_ENABLED", false),
		ExportURL:      os.Getenv("QUOTE_EXPORT_URL"),
		ExportAPIKey:   os.Getenv("QUOTE_EXPORT_API_KEY"),
		ExportInterval: GetEnvAsDuration("QUOTE_EXPORT_INTERVAL", time.Minute),
		ExportBatch:    GetEnvAsInt("QUOTE_EXPORT_BATCH_SIZE", 100),
	}
}

// GetEnv retrieves an environment variable and whether it exists
func GetEnv(key string) (string, bool) {
	value, exists := os.LookupEnv(key)
	return value, exists
}

// GetEnvOrDefault retrieves an environment variable or returns the default value if not set
func GetEnvOrDefault(key, defaultValue string) string {
	if value, exists := GetEnv(key); exists {
		return value
	}
	return defaultValue
}

// GetEnvAsInt retrieves an environment variable as an integer with a default value
func GetEnvAsInt(key string, defaultValue int) int {
	if value, exists := GetEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetEnvAsFloat retrieves an environment variable as a float with a default value
func GetEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := GetEnv(key); exists {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// GetEnvAsBool retrieves an environment variable as a boolean with a default value
func GetEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := GetEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// GetEnvAsDuration retrieves an environment variable as a duration with a default value
func GetEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := GetEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
