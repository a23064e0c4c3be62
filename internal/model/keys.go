package model

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// AddressKey renders an address as lowercase hex.
func AddressKey(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}

// ShareID is the composite id of an LP share.
func ShareID(pool, holder common.Address) string {
	return AddressKey(pool) + "-" + AddressKey(holder)
}

// AttributionID is the composite id of a deposit attribution.
func AttributionID(pool, user, token common.Address) string {
	return AddressKey(pool) + "-" + AddressKey(user) + "-" + AddressKey(token)
}

// PositionID is the id of a position NFT.
func PositionID(tokenID *big.Int) string {
	if tokenID == nil {
		return "0"
	}
	return tokenID.String()
}

// PoolKeyID identifies a concentrated-liquidity pool by its creation parameters.
func PoolKeyID(token0, token1 common.Address, tickSpacing int32) string {
	return fmt.Sprintf("%s-%s-%d", AddressKey(token0), AddressKey(token1), tickSpacing)
}
