package dex

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

type fakeCaller struct {
	parsed  abi.ABI
	results map[string][]interface{}
	blocks  []*big.Int
	calls   int
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	f.calls++
	f.blocks = append(f.blocks, block)
	for name, method := range f.parsed.Methods {
		if !bytes.Equal(msg.Data[:4], method.ID) {
			continue
		}
		outputs, ok := f.results[name]
		if !ok {
			return nil, errors.New("execution reverted")
		}
		return method.Outputs.Pack(outputs...)
	}
	return nil, errors.New("unknown selector")
}

func TestReaderPosition(t *testing.T) {
	npmABI, err := PositionManagerABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	token0 := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	token1 := common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	owner := common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc")
	caller := &fakeCaller{
		parsed: npmABI,
		results: map[string][]interface{}{
			"positions": {
				big.NewInt(0), common.Address{}, token0, token1,
				big.NewInt(100), big.NewInt(-200), big.NewInt(400),
				big.NewInt(5000), big.NewInt(0), big.NewInt(0), big.NewInt(0), big.NewInt(0),
			},
			"ownerOf": {owner},
		},
	}
	reader := NewReader(caller, ReaderConfig{PositionManager: common.HexToAddress("0x827922686190790b37229fd06084350E74485b72")}, nil)

	info, err := reader.Position(context.Background(), big.NewInt(7), 1234)
	if err != nil {
		t.Fatalf("position: %v", err)
	}
	if info.Token0 != token0 || info.Token1 != token1 {
		t.Fatalf("token mismatch: %+v", info)
	}
	if info.TickSpacing != 100 || info.TickLower != -200 || info.TickUpper != 400 {
		t.Fatalf("tick mismatch: %+v", info)
	}
	if info.Liquidity.Cmp(big.NewInt(5000)) != 0 {
		t.Fatalf("liquidity mismatch: %s", info.Liquidity)
	}
	if caller.blocks[0] == nil || caller.blocks[0].Uint64() != 1234 {
		t.Fatalf("expected historical read at 1234")
	}

	got, err := reader.OwnerOf(context.Background(), big.NewInt(7), 0)
	if err != nil {
		t.Fatalf("owner of: %v", err)
	}
	if got != owner {
		t.Fatalf("owner mismatch: %s", got.Hex())
	}
	if caller.blocks[1] != nil {
		t.Fatalf("block 0 should read latest")
	}
}

func TestReaderWithoutPositionManager(t *testing.T) {
	reader := NewReader(&fakeCaller{}, ReaderConfig{}, nil)
	if _, err := reader.Position(context.Background(), big.NewInt(1), 1); err == nil {
		t.Fatalf("expected error without position manager")
	}
	if _, err := reader.PoolFor(context.Background(), common.Address{1}, common.Address{2}, 1); err == nil {
		t.Fatalf("expected error without factory")
	}
}

func TestReaderPoolTokensAndFactory(t *testing.T) {
	pairABI, err := PairABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	token0 := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	token1 := common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	caller := &fakeCaller{parsed: pairABI, results: map[string][]interface{}{
		"token0": {token0},
		"token1": {token1},
	}}
	reader := NewReader(caller, ReaderConfig{}, nil)
	got0, got1, err := reader.PoolTokens(context.Background(), common.Address{9})
	if err != nil {
		t.Fatalf("pool tokens: %v", err)
	}
	if got0 != token0 || got1 != token1 {
		t.Fatalf("token mismatch")
	}

	factoryABI, err := CLFactoryABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	pool := common.HexToAddress("0xdddddddddddddddddddddddddddddddddddddddd")
	factoryCaller := &fakeCaller{parsed: factoryABI, results: map[string][]interface{}{"getPool": {pool}}}
	reader = NewReader(factoryCaller, ReaderConfig{CLFactory: common.Address{5}}, nil)
	got, err := reader.PoolFor(context.Background(), token0, token1, 200)
	if err != nil {
		t.Fatalf("pool for: %v", err)
	}
	if got != pool {
		t.Fatalf("pool mismatch: %s", got.Hex())
	}
}

func TestReaderTokenMetaIsCached(t *testing.T) {
	erc20, err := erc20StringABI.get()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	caller := &fakeCaller{parsed: erc20, results: map[string][]interface{}{
		"decimals": {uint8(18)},
		"symbol":   {"WETH"},
		"name":     {"Wrapped Ether"},
	}}
	reader := NewReader(caller, ReaderConfig{}, nil)
	token := common.HexToAddress("0x4200000000000000000000000000000000000006")

	meta, err := reader.TokenMeta(context.Background(), token)
	if err != nil {
		t.Fatalf("token meta: %v", err)
	}
	if meta.Decimals != 18 || meta.Symbol != "WETH" || meta.Name != "Wrapped Ether" {
		t.Fatalf("meta mismatch: %+v", meta)
	}
	calls := caller.calls
	if _, err := reader.TokenMeta(context.Background(), token); err != nil {
		t.Fatalf("token meta: %v", err)
	}
	if caller.calls != calls {
		t.Fatalf("expected cached metadata")
	}
}
