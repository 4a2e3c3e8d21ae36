package config

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/yourorg/ring-price-oracle/internal/types"
)

// chainEnvName maps the env-var prefix for each known chain.
var chainEnvName = map[types.ChainID]string{
	types.ChainEthereum: "ETHEREUM",
	types.ChainOptimism: "OPTIMISM",
	types.ChainPolygon:  "POLYGON",
	types.ChainBase:     "BASE",
	types.ChainArbitrum: "ARBITRUM",
}

// LoadChainConfigs builds the per-chain oracle configuration. A CHAIN_CONFIG
// JSON blob takes precedence; otherwise each known chain is read from
// <NAME>_RPC_URL, <NAME>_FEED_ADDRESS, <NAME>_FEED_ENABLED and <NAME>_FALLBACKS.
// Chains with no RPC endpoint are skipped here, never at call time.
func LoadChainConfigs() map[types.ChainID]types.ChainOracleConfig {
	if raw := os.Getenv("CHAIN_CONFIG"); raw != "" {
		var entries []types.ChainOracleConfig
		if err := json.Unmarshal([]byte(raw), &entries); err != nil {
			logrus.Warnf("Invalid CHAIN_CONFIG JSON, falling back to per-chain env vars: %v", err)
		} else {
			chains := make(map[types.ChainID]types.ChainOracleConfig, len(entries))
			for _, entry := range entries {
				if entry.ChainID == 0 || entry.RPCEndpoint == "" {
					logrus.Warnf("Skipping chain config entry with missing chain ID or RPC endpoint: %+v", entry)
					continue
				}
				chains[entry.ChainID] = entry
			}
			return chains
		}
	}

	chains := make(map[types.ChainID]types.ChainOracleConfig)
	for id, name := range chainEnvName {
		rpc := os.Getenv(name + "_RPC_URL")
		if rpc == "" {
			continue
		}
		chains[id] = types.ChainOracleConfig{
			ChainID:     id,
			FeedEnabled: GetEnvAsBool(name+"_FEED_ENABLED", true),
			FeedAddress: os.Getenv(name + "_FEED_ADDRESS"),
			RPCEndpoint: rpc,
			Fallbacks:   splitList(GetEnvOrDefault(name+"_FALLBACKS", defaultFallbacks(id))),
		}
	}
	return chains
}

// defaultFallbacks encodes the chain policy: mainnet chains may use the full
// provider chain, L2s trust only the first aggregator.
func defaultFallbacks(id types.ChainID) string {
	switch id {
	case types.ChainEthereum, types.ChainPolygon:
		return "coingecko,coinmarketcap,exchange"
	default:
		return "coingecko"
	}
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, strings.ToLower(trimmed))
		}
	}
	return out
}
