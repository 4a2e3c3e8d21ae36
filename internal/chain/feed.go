// Package chain provides read-only access to on-chain price feed aggregators.
package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// aggregatorABI is the read surface of a Chainlink-style price feed aggregator.
const aggregatorABI = `[{"inputs":[],"name":"latestRoundData","outputs":[{"internalType":"uint80","name":"roundId","type":"uint80"},{"internalType":"int256","name":"answer","type":"int256"},{"internalType":"uint256","name":"startedAt","type":"uint256"},{"internalType":"uint256","name":"updatedAt","type":"uint256"},{"internalType":"uint80","name":"answeredInRound","type":"uint80"}],"stateMutability":"view","type":"function"}]`

// feedDecimals is the fixed decimal scale of the aggregator's integer answer.
const feedDecimals = 8

var feedScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(feedDecimals), nil)

// RoundData is the raw result of a latestRoundData call.
type RoundData struct {
	RoundID         *big.Int
	Answer          *big.Int
	StartedAt       *big.Int
	UpdatedAt       *big.Int
	AnsweredInRound *big.Int
}

// PriceString renders the scaled integer answer as a 6-decimal-place USD price.
func (r RoundData) PriceString() string {
	return new(big.Rat).SetFrac(r.Answer, feedScale).FloatString(6)
}

// UpdatedAtUnix returns the feed's last update time as Unix seconds.
func (r RoundData) UpdatedAtUnix() int64 {
	return r.UpdatedAt.Int64()
}

// Reader reads the latest round from a single price feed contract.
type Reader interface {
	LatestRoundData(ctx context.Context) (RoundData, error)
}

// ContractCaller is the slice of the ethclient surface the feed reader needs.
// *ethclient.Client satisfies it; tests substitute fakes.
type ContractCaller interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// FeedReader reads a price feed aggregator contract over an RPC connection.
type FeedReader struct {
	caller  ContractCaller
	address common.Address
	abi     abi.ABI
}

// NewFeedReader creates a reader for the aggregator at the given address.
func NewFeedReader(caller ContractCaller, address common.Address) (*FeedReader, error) {
	parsed, err := abi.JSON(strings.NewReader(aggregatorABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse aggregator ABI: %w", err)
	}
	return &FeedReader{caller: caller, address: address, abi: parsed}, nil
}

// LatestRoundData performs the eth_call and decodes the round tuple.
func (f *FeedReader) LatestRoundData(ctx context.Context) (RoundData, error) {
	data, err := f.abi.Pack("latestRoundData")
	if err != nil {
		return RoundData{}, fmt.Errorf("failed to pack latestRoundData call: %w", err)
	}

	raw, err := f.caller.CallContract(ctx, ethereum.CallMsg{To: &f.address, Data: data}, nil)
	if err != nil {
		return RoundData{}, fmt.Errorf("feed contract call failed: %w", err)
	}

	values, err := f.abi.Unpack("latestRoundData", raw)
	if err != nil {
		return RoundData{}, fmt.Errorf("failed to unpack latestRoundData result: %w", err)
	}
	if len(values) != 5 {
		return RoundData{}, fmt.Errorf("unexpected latestRoundData result arity: %d", len(values))
	}

	round := RoundData{}
	var ok bool
	if round.RoundID, ok = values[0].(*big.Int); !ok {
		return RoundData{}, fmt.Errorf("malformed roundId in feed response")
	}
	if round.Answer, ok = values[1].(*big.Int); !ok {
		return RoundData{}, fmt.Errorf("malformed answer in feed response")
	}
	if round.StartedAt, ok = values[2].(*big.Int); !ok {
		return RoundData{}, fmt.Errorf("malformed startedAt in feed response")
	}
	if round.UpdatedAt, ok = values[3].(*big.Int); !ok {
		return RoundData{}, fmt.Errorf("malformed updatedAt in feed response")
	}
	if round.AnsweredInRound, ok = values[4].(*big.Int); !ok {
		return RoundData{}, fmt.Errorf("malformed answeredInRound in feed response")
	}

	if round.Answer.Sign() < 0 {
		return RoundData{}, fmt.Errorf("feed reported negative answer: %s", round.Answer)
	}

	return round, nil
}
