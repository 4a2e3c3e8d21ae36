package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/ring-price-oracle/internal/types"
)

func TestEnvHelpers(t *testing.T) {
	t.Setenv("TEST_STR", "hello")
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_FLOAT", "0.5")
	t.Setenv("TEST_BOOL", "true")
	t.Setenv("TEST_DUR", "30s")
	t.Setenv("TEST_BAD_INT", "not-a-number")

	assert.Equal(t, "hello", GetEnvOrDefault("TEST_STR", "fallback"))
	assert.Equal(t, "fallback", GetEnvOrDefault("TEST_MISSING", "fallback"))
	assert.Equal(t, 42, GetEnvAsInt("TEST_INT", 7))
	assert.Equal(t, 7, GetEnvAsInt("TEST_BAD_INT", 7))
	assert.Equal(t, 0.5, GetEnvAsFloat("TEST_FLOAT", 1.0))
	assert.True(t, GetEnvAsBool("TEST_BOOL", false))
	assert.Equal(t, 30*time.Second, GetEnvAsDuration("TEST_DUR", time.Minute))
	assert.Equal(t, time.Minute, GetEnvAsDuration("TEST_MISSING", time.Minute))
}

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "RING", cfg.TokenSymbol)
	assert.Equal(t, types.ChainPolygon, cfg.DefaultChainID)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.Equal(t, "1.00", cfg.DefaultPrice)
	assert.Equal(t, 5*time.Second, cfg.SourceTimeout)
}

func TestLoadChainConfigs_FromEnvVars(t *testing.T) {
	t.Setenv("POLYGON_RPC_URL", "https://polygon-rpc.example")
	t.Setenv("POLYGON_FEED_ADDRESS", "0xAB594600376Ec9fD91F8e885dADF0CE036862dE0")

	chains := LoadChainConfigs()

	cfg, ok := chains[types.ChainPolygon]
	require.True(t, ok)
	assert.True(t, cfg.FeedEnabled)
	assert.Equal(t, "https://polygon-rpc.example", cfg.RPCEndpoint)
	assert.Equal(t, []string{"coingecko", "coinmarketcap", "exchange"}, cfg.Fallbacks)

	// Chains without an RPC endpoint are not configured at all.
	_, ok = chains[types.ChainEthereum]
	assert.False(t, ok)
}

func TestLoadChainConfigs_L2FallbackPolicy(t *testing.T) {
	t.Setenv("BASE_RPC_URL", "https://base-rpc.example")

	chains := LoadChainConfigs()

	cfg, ok := chains[types.ChainBase]
	require.True(t, ok)
	assert.Equal(t, []string{"coingecko"}, cfg.Fallbacks)
}

func TestLoadChainConfigs_FallbackOverride(t *testing.T) {
	t.Setenv("POLYGON_RPC_URL", "https://polygon-rpc.example")
	t.Setenv("POLYGON_FALLBACKS", "Exchange, CoinGecko")

	chains := LoadChainConfigs()

	assert.Equal(t, []string{"exchange", "coingecko"}, chains[types.ChainPolygon].Fallbacks)
}

func TestLoadChainConfigs_JSONBlobTakesPrecedence(t *testing.T) {
	t.Setenv("POLYGON_RPC_URL", "https://ignored.example")
	t.Setenv("CHAIN_CONFIG", `[
		{"chain_id":1,"feed_enabled":true,"feed_address":"0xAB594600376Ec9fD91F8e885dADF0CE036862dE0","rpc_endpoint":"https://eth-rpc.example","fallbacks":["coingecko"]},
		{"chain_id":0,"rpc_endpoint":"https://orphan.example"}
	]`)

	chains := LoadChainConfigs()

	require.Len(t, chains, 1, "entries missing a chain ID are dropped; env vars are ignored")
	cfg, ok := chains[types.ChainEthereum]
	require.True(t, ok)
	assert.Equal(t, "https://eth-rpc.example", cfg.RPCEndpoint)
}

func TestLoadChainConfigs_MalformedJSONFallsBackToEnv(t *testing.T) {
	t.Setenv("CHAIN_CONFIG", "{not json")
	t.Setenv("POLYGON_RPC_URL", "https://polygon-rpc.example")

	chains := LoadChainConfigs()

	_, ok := chains[types.ChainPolygon]
	assert.True(t, ok)
}
