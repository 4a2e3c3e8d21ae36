package chain

import (
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"

	"github.com/yourorg/ring-price-oracle/internal/types"
)

// Registry holds one read-only feed reader per configured chain. It is built
// once at startup; chains that cannot be configured are rejected here, not at
// call time.
type Registry struct {
	readers map[types.ChainID]Reader
	order   []types.ChainID
}

// NewRegistry dials each enabled chain's RPC endpoint and wires a feed reader
// for its configured aggregator address. Misconfigured chains are skipped with
// a warning.
func NewRegistry(chains map[types.ChainID]types.ChainOracleConfig) *Registry {
	r := &Registry{readers: make(map[types.ChainID]Reader)}

	for id, cfg := range chains {
		if !cfg.FeedEnabled {
			continue
		}
		if !common.IsHexAddress(cfg.FeedAddress) {
			logrus.Warnf("Skipping feed for chain %d: invalid feed address %q", id, cfg.FeedAddress)
			continue
		}
		client, err := ethclient.Dial(cfg.RPCEndpoint)
		if err != nil {
			logrus.Warnf("Skipping feed for chain %d: RPC dial failed: %v", id, err)
			continue
		}
		reader, err := NewFeedReader(client, common.HexToAddress(cfg.FeedAddress))
		if err != nil {
			logrus.Warnf("Skipping feed for chain %d: %v", id, err)
			continue
		}
		r.readers[id] = reader
		r.order = append(r.order, id)
		logrus.Infof("Registered price feed for chain %s (%d)", types.ChainName(id), id)
	}

	sort.Slice(r.order, func(i, j int) bool { return r.order[i] < r.order[j] })
	return r
}

// NewRegistryWithReaders builds a registry from pre-constructed readers.
// Used in tests to substitute fake feeds.
func NewRegistryWithReaders(readers map[types.ChainID]Reader) *Registry {
	r := &Registry{readers: make(map[types.ChainID]Reader, len(readers))}
	for id, reader := range readers {
		r.readers[id] = reader
		r.order = append(r.order, id)
	}
	sort.Slice(r.order, func(i, j int) bool { return r.order[i] < r.order[j] })
	return r
}

// Reader returns the feed reader for a chain, if one was configured.
func (r *Registry) Reader(id types.ChainID) (Reader, bool) {
	reader, ok := r.readers[id]
	return reader, ok
}

// ChainIDs lists every chain with a registered feed reader.
func (r *Registry) ChainIDs() []types.ChainID {
	ids := make([]types.ChainID, len(r.order))
	copy(ids, r.order)
	return ids
}
