package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// LPShare is the LP-token balance a holder owns in a constant-product pool.
type LPShare struct {
	Pool   common.Address
	Holder common.Address
	Amount *big.Int
}

// Clone returns a deep copy of the share.
func (s *LPShare) Clone() *LPShare {
	if s == nil {
		return nil
	}
	c := *s
	c.Amount = cloneBig(s.Amount)
	return &c
}

// DepositAttribution is the token-denominated deposited basis a user holds in a pool.
type DepositAttribution struct {
	Pool    common.Address
	User    common.Address
	Token   common.Address
	Balance *big.Int
}

// Clone returns a deep copy of the attribution.
func (a *DepositAttribution) Clone() *DepositAttribution {
	if a == nil {
		return nil
	}
	c := *a
	c.Balance = cloneBig(a.Balance)
	return &c
}

// Position tracks a concentrated-liquidity position NFT.
type Position struct {
	TokenID     *big.Int
	Owner       common.Address
	Pool        common.Address
	Token0      common.Address
	Token1      common.Address
	TickSpacing int32
	TickLower   int32
	TickUpper   int32
	Liquidity   *big.Int
	Deposited0  *big.Int
	Deposited1  *big.Int
	// Rejected marks positions whose pool is known to be outside the whitelist.
	Rejected bool
}

// Bound reports whether the position has a pool.
func (p *Position) Bound() bool {
	return p.Pool != (common.Address{})
}

// Clone returns a deep copy of the position.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	c := *p
	c.TokenID = cloneBig(p.TokenID)
	c.Liquidity = cloneBig(p.Liquidity)
	c.Deposited0 = cloneBig(p.Deposited0)
	c.Deposited1 = cloneBig(p.Deposited1)
	return &c
}

// PositionInfo is the on-chain view of a position returned by the position manager.
type PositionInfo struct {
	Token0      common.Address
	Token1      common.Address
	TickSpacing int32
	TickLower   int32
	TickUpper   int32
	Liquidity   *big.Int
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}
