package attribution

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"lpAttribution/internal/model"
)

// Meta is the log context shared by every event.
type Meta struct {
	Address     common.Address
	BlockNumber uint64
	TxHash      common.Hash
	LogIndex    uint
	TxOrigin    common.Address
	// Receipt holds every log of the transaction in log-index order.
	Receipt []*types.Log
}

// Event is a decoded liquidity event the engine can apply.
type Event interface {
	EventMeta() *Meta
	Kind() string
}

// PoolCreated is a factory announcement of a new pool.
type PoolCreated struct {
	Meta
	Pool        common.Address
	Token0      common.Address
	Token1      common.Address
	PoolKind    model.PoolKind
	TickSpacing int32
}

// LPTransfer is an ERC20 Transfer of constant-product LP tokens.
type LPTransfer struct {
	Meta
	From  common.Address
	To    common.Address
	Value *big.Int
}

// Mint is a constant-product pool Mint.
type Mint struct {
	Meta
	Sender  common.Address
	Amount0 *big.Int
	Amount1 *big.Int
}

// Burn is a constant-product pool Burn.
type Burn struct {
	Meta
	Sender  common.Address
	To      common.Address
	Amount0 *big.Int
	Amount1 *big.Int
}

// IncreaseLiquidity is emitted by the position manager.
type IncreaseLiquidity struct {
	Meta
	TokenID   *big.Int
	Liquidity *big.Int
	Amount0   *big.Int
	Amount1   *big.Int
}

// DecreaseLiquidity is emitted by the position manager.
type DecreaseLiquidity struct {
	Meta
	TokenID   *big.Int
	Liquidity *big.Int
	Amount0   *big.Int
	Amount1   *big.Int
}

// PositionTransfer is an ERC721 Transfer of a position NFT.
type PositionTransfer struct {
	Meta
	From    common.Address
	To      common.Address
	TokenID *big.Int
}

// PoolLiquidity is a concentrated pool's own Mint or Burn.
type PoolLiquidity struct {
	Meta
	Owner  common.Address
	Amount *big.Int
	Burn   bool
}

func (e *PoolCreated) EventMeta() *Meta       { return &e.Meta }
func (e *LPTransfer) EventMeta() *Meta        { return &e.Meta }
func (e *Mint) EventMeta() *Meta              { return &e.Meta }
func (e *Burn) EventMeta() *Meta              { return &e.Meta }
func (e *IncreaseLiquidity) EventMeta() *Meta { return &e.Meta }
func (e *DecreaseLiquidity) EventMeta() *Meta { return &e.Meta }
func (e *PositionTransfer) EventMeta() *Meta  { return &e.Meta }
func (e *PoolLiquidity) EventMeta() *Meta     { return &e.Meta }

func (e *PoolCreated) Kind() string       { return "pool_created" }
func (e *LPTransfer) Kind() string        { return "lp_transfer" }
func (e *Mint) Kind() string              { return "mint" }
func (e *Burn) Kind() string              { return "burn" }
func (e *IncreaseLiquidity) Kind() string { return "increase_liquidity" }
func (e *DecreaseLiquidity) Kind() string { return "decrease_liquidity" }
func (e *PositionTransfer) Kind() string  { return "position_transfer" }

func (e *PoolLiquidity) Kind() string {
	if e.Burn {
		return "pool_burn"
	}
	return "pool_mint"
}
