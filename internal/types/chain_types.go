// Package types contains shared type definitions used across multiple packages
package types

// ChainID identifies a blockchain network by its canonical numeric chain ID.
type ChainID int64

// Supported blockchain networks
const (
	ChainEthereum ChainID = 1
	ChainOptimism ChainID = 10
	ChainPolygon  ChainID = 137
	ChainBase     ChainID = 8453
	ChainArbitrum ChainID = 42161
)

// ChainName returns a human-readable name for known chains.
func ChainName(id ChainID) string {
	switch id {
	case ChainEthereum:
		return "ethereum"
	case ChainOptimism:
		return "optimism"
	case ChainPolygon:
		return "polygon"
	case ChainBase:
		return "base"
	case ChainArbitrum:
		return "arbitrum"
	default:
		return "unknown"
	}
}

// ChainOracleConfig holds the static per-chain oracle configuration loaded
// once at startup.
type ChainOracleConfig struct {
	ChainID     ChainID `json:"chain_id"`
	FeedEnabled bool    `json:"feed_enabled"`
	FeedAddress string  `json:"feed_address"`
	RPCEndpoint string  `json:"rpc_endpoint"`
	// Fallbacks lists which fallback providers are permitted for this chain.
	// L2 chains typically trust only one fallback provider, or none.
	Fallbacks []string `json:"fallbacks"`
}
