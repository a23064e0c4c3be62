package model

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestKeysAreLowercase(t *testing.T) {
	pool := common.HexToAddress("0xA0D736dd7386230De3AA2E6B4F60D36a5Ded2291")
	user := common.HexToAddress("0x00000000000000000000000000000000000000AB")
	token := common.HexToAddress("0x00000000000000000000000000000000000000CD")

	got := AttributionID(pool, user, token)
	want := "0xa0d736dd7386230de3aa2e6b4f60d36a5ded2291-0x00000000000000000000000000000000000000ab-0x00000000000000000000000000000000000000cd"
	if got != want {
		t.Fatalf("unexpected id %s", got)
	}
	if ShareID(pool, user) != AddressKey(pool)+"-"+AddressKey(user) {
		t.Fatalf("unexpected share id %s", ShareID(pool, user))
	}
	if PoolKeyID(user, token, -60) != "0x00000000000000000000000000000000000000ab-0x00000000000000000000000000000000000000cd--60" {
		t.Fatalf("unexpected pool key %s", PoolKeyID(user, token, -60))
	}
	if PositionID(big.NewInt(77)) != "77" {
		t.Fatalf("unexpected position id")
	}
}

func TestScratchResetClearsState(t *testing.T) {
	s := NewTxScratch(common.Hash{1}, common.Address{2})
	if s.State() != ScratchEmpty {
		t.Fatalf("new scratch should be empty")
	}
	s.RecipientReady = true
	s.MintLP = big.NewInt(10)
	if s.State() != ScratchAwaitingPair {
		t.Fatalf("expected awaiting pair")
	}
	s.Reset()
	if s.State() != ScratchEmpty || s.MintLP.Sign() != 0 {
		t.Fatalf("reset should clear fields")
	}
}

func TestPositionCloneIsDeep(t *testing.T) {
	p := &Position{TokenID: big.NewInt(1), Liquidity: big.NewInt(5), Deposited0: big.NewInt(7), Deposited1: big.NewInt(9)}
	c := p.Clone()
	c.Liquidity.SetInt64(0)
	if p.Liquidity.Int64() != 5 {
		t.Fatalf("clone shares liquidity pointer")
	}
}
