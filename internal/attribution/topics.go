package attribution

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	// TransferTopic is shared by ERC20 and ERC721 transfers.
	TransferTopic          = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))
	IncreaseLiquidityTopic = crypto.Keccak256Hash([]byte("IncreaseLiquidity(uint256,uint128,uint256,uint256)"))
	DecreaseLiquidityTopic = crypto.Keccak256Hash([]byte("DecreaseLiquidity(uint256,uint128,uint256,uint256)"))
	PoolMintTopic          = crypto.Keccak256Hash([]byte("Mint(address,address,int24,int24,uint128,uint256,uint256)"))
	PoolBurnTopic          = crypto.Keccak256Hash([]byte("Burn(address,int24,int24,uint128,uint256,uint256)"))
)

// LogFilter selects logs from a transaction receipt.
type LogFilter struct {
	// Emitter restricts matches to one contract when set.
	Emitter common.Address
	// ExcludeEmitter rejects logs from one contract when set.
	ExcludeEmitter common.Address
	Topic0         common.Hash
	// Topics is the exact topic count including topic0, or 0 for any.
	Topics int
	Match  func(log *types.Log) bool
}

func (f LogFilter) matches(log *types.Log) bool {
	if log == nil || len(log.Topics) == 0 || log.Topics[0] != f.Topic0 {
		return false
	}
	if f.Topics > 0 && len(log.Topics) != f.Topics {
		return false
	}
	if f.Emitter != (common.Address{}) && log.Address != f.Emitter {
		return false
	}
	if f.ExcludeEmitter != (common.Address{}) && log.Address == f.ExcludeEmitter {
		return false
	}
	if f.Match != nil && !f.Match(log) {
		return false
	}
	return true
}

// FindLog scans logs in order and returns the first match.
func FindLog(logs []*types.Log, filter LogFilter) (*types.Log, bool) {
	for _, log := range logs {
		if filter.matches(log) {
			return log, true
		}
	}
	return nil, false
}

// FindLogNear prefers the first match at or after index, falling back to the
// first match anywhere in the receipt.
func FindLogNear(logs []*types.Log, index uint, filter LogFilter) (*types.Log, bool) {
	var first *types.Log
	for _, log := range logs {
		if !filter.matches(log) {
			continue
		}
		if log.Index >= index {
			return log, true
		}
		if first == nil {
			first = log
		}
	}
	return first, first != nil
}

// FindLogBefore prefers the last match strictly before index, falling back to
// the first match anywhere in the receipt.
func FindLogBefore(logs []*types.Log, index uint, filter LogFilter) (*types.Log, bool) {
	var before, first *types.Log
	for _, log := range logs {
		if !filter.matches(log) {
			continue
		}
		if first == nil {
			first = log
		}
		if log.Index < index {
			before = log
		}
	}
	if before != nil {
		return before, true
	}
	return first, first != nil
}

// TopicAddress extracts an address stored in an indexed topic.
func TopicAddress(topic common.Hash) common.Address {
	return common.BytesToAddress(topic.Bytes())
}

// TopicUint extracts an unsigned integer stored in an indexed topic.
func TopicUint(topic common.Hash) *big.Int {
	return new(big.Int).SetBytes(topic.Bytes())
}
