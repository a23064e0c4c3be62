package model

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// PoolKind distinguishes constant-product pools from concentrated-liquidity pools.
type PoolKind uint8

const (
	PoolKindUnknown PoolKind = iota
	PoolKindConstantProduct
	PoolKindConcentrated
)

func (k PoolKind) String() string {
	switch k {
	case PoolKindConstantProduct:
		return "constant_product"
	case PoolKindConcentrated:
		return "concentrated"
	default:
		return "unknown"
	}
}

// ParsePoolKind is the inverse of PoolKind.String.
func ParsePoolKind(value string) PoolKind {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "constant_product", "v2", "cp":
		return PoolKindConstantProduct
	case "concentrated", "cl", "v3":
		return PoolKindConcentrated
	default:
		return PoolKindUnknown
	}
}

// Pool is a whitelisted pool known to the registry. Token0 and Token1 are
// set at most once.
type Pool struct {
	Address      common.Address
	Kind         PoolKind
	Token0       common.Address
	Token1       common.Address
	TickSpacing  int32
	CreatedBlock uint64
}

// HasTokens reports whether both token addresses are resolved.
func (p *Pool) HasTokens() bool {
	return p.Token0 != (common.Address{}) && p.Token1 != (common.Address{})
}

// Tokens returns the resolved pool tokens, skipping unresolved ones.
func (p *Pool) Tokens() []common.Address {
	out := make([]common.Address, 0, 2)
	if p.Token0 != (common.Address{}) {
		out = append(out, p.Token0)
	}
	if p.Token1 != (common.Address{}) {
		out = append(out, p.Token1)
	}
	return out
}

// Clone returns a copy of the pool.
func (p *Pool) Clone() *Pool {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
