package attribution

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"lpAttribution/internal/model"
	"lpAttribution/internal/storage/memory"
)

var (
	poolV2   = common.HexToAddress("0xa0d736dd7386230de3aa2e6b4f60d36a5ded2291")
	poolCL   = common.HexToAddress("0x40a8e39aba67debedab94f76d21114ab39909c5a")
	poolDark = common.HexToAddress("0x00000000000000000000000000000000000d4a2c")
	tokenA   = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	tokenB   = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	npm      = common.HexToAddress("0x827922686190790b37229fd06084350E74485b72")
	router   = common.HexToAddress("0xe01")
	feeTo    = common.HexToAddress("0xfee")
	user1    = common.HexToAddress("0x1a")
	user2    = common.HexToAddress("0x2b")
	signer   = common.HexToAddress("0x5c")
)

type fakePosition struct {
	info   model.PositionInfo
	minted uint64
}

type fakeReader struct {
	pools     map[common.Address][2]common.Address
	positions map[string]fakePosition
	owners    map[string]common.Address
	factory   map[string]common.Address
}

func newFakeReader() *fakeReader {
	return &fakeReader{
		pools: map[common.Address][2]common.Address{
			poolV2:   {tokenA, tokenB},
			poolCL:   {tokenA, tokenB},
			poolDark: {tokenA, tokenB},
		},
		positions: make(map[string]fakePosition),
		owners:    make(map[string]common.Address),
		factory:   make(map[string]common.Address),
	}
}

func (f *fakeReader) PoolTokens(_ context.Context, pool common.Address) (common.Address, common.Address, error) {
	tokens, ok := f.pools[pool]
	if !ok {
		return common.Address{}, common.Address{}, errors.New("execution reverted")
	}
	return tokens[0], tokens[1], nil
}

func (f *fakeReader) Position(_ context.Context, tokenID *big.Int, block uint64) (model.PositionInfo, error) {
	p, ok := f.positions[tokenID.String()]
	if !ok || block < p.minted {
		return model.PositionInfo{}, errors.New("invalid token id")
	}
	return p.info, nil
}

func (f *fakeReader) OwnerOf(_ context.Context, tokenID *big.Int, _ uint64) (common.Address, error) {
	owner, ok := f.owners[tokenID.String()]
	if !ok {
		return common.Address{}, errors.New("invalid token id")
	}
	return owner, nil
}

func (f *fakeReader) PoolFor(_ context.Context, token0, token1 common.Address, tickSpacing int32) (common.Address, error) {
	addr, ok := f.factory[model.PoolKeyID(token0, token1, tickSpacing)]
	if !ok {
		return common.Address{}, errors.New("factory unavailable")
	}
	return addr, nil
}

func (f *fakeReader) addPosition(id int64, minted uint64, tickSpacing int32, liquidity int64) {
	f.positions[big.NewInt(id).String()] = fakePosition{
		info: model.PositionInfo{
			Token0:      tokenA,
			Token1:      tokenB,
			TickSpacing: tickSpacing,
			TickLower:   -100,
			TickUpper:   100,
			Liquidity:   big.NewInt(liquidity),
		},
		minted: minted,
	}
}

type harness struct {
	t       *testing.T
	engine  *Engine
	store   *memory.Store
	reader  *fakeReader
	metrics *Metrics
	nextTx  int64
}

type harnessOption func(*Config)

func withPolicy(policy WithdrawerPolicy) harnessOption {
	return func(cfg *Config) { cfg.WithdrawerPolicy = policy }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	whitelist, err := NewWhitelist([]string{poolV2.Hex(), poolCL.Hex()})
	require.NoError(t, err)

	cfg := Config{
		Whitelist:       whitelist,
		Intermediaries:  []common.Address{router},
		PositionManager: npm,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	store := memory.NewStore()
	reader := newFakeReader()
	metrics := NewMetrics(prometheus.NewRegistry())
	engine, err := New(cfg, Deps{
		Store:   store,
		Reader:  reader,
		Metrics: metrics,
		Logger:  zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	return &harness{t: t, engine: engine, store: store, reader: reader, metrics: metrics}
}

// basis returns the attributed balance of user in pool for token.
func (h *harness) basis(pool, user, token common.Address) int64 {
	return h.engine.Ledger().BalanceOf(pool, user, token).Int64()
}

func (h *harness) share(pool, holder common.Address) int64 {
	return h.engine.Shares().ShareOf(pool, holder).Int64()
}

// txFixture accumulates the logs of one transaction and the events decoded
// from them.
type txFixture struct {
	h      *harness
	hash   common.Hash
	block  uint64
	origin common.Address
	logs   []*types.Log
	events []Event
}

func (h *harness) tx(block uint64) *txFixture {
	h.nextTx++
	return &txFixture{
		h:      h,
		hash:   common.BigToHash(big.NewInt(h.nextTx)),
		block:  block,
		origin: signer,
	}
}

func (f *txFixture) from(origin common.Address) *txFixture {
	f.origin = origin
	return f
}

func (f *txFixture) add(emitter common.Address, topics ...common.Hash) Meta {
	idx := uint(len(f.logs))
	f.logs = append(f.logs, &types.Log{
		Address:     emitter,
		Topics:      topics,
		BlockNumber: f.block,
		TxHash:      f.hash,
		Index:       idx,
	})
	return Meta{Address: emitter, BlockNumber: f.block, TxHash: f.hash, LogIndex: idx, TxOrigin: f.origin}
}

// rawLog appends a log that no handler sees, such as a forwarding transfer
// emitted in a pool the test does not feed to the engine.
func (f *txFixture) rawLog(emitter common.Address, topics ...common.Hash) *txFixture {
	f.add(emitter, topics...)
	return f
}

func (f *txFixture) lpTransfer(pool, from, to common.Address, value int64) *txFixture {
	meta := f.add(pool, TransferTopic, addrTopic(from), addrTopic(to))
	f.events = append(f.events, &LPTransfer{Meta: meta, From: from, To: to, Value: big.NewInt(value)})
	return f
}

func (f *txFixture) mint(pool common.Address, amount0, amount1 int64) *txFixture {
	meta := f.add(pool, crypto256("Mint(address,uint256,uint256)"), addrTopic(router))
	f.events = append(f.events, &Mint{Meta: meta, Sender: router, Amount0: big.NewInt(amount0), Amount1: big.NewInt(amount1)})
	return f
}

func (f *txFixture) burn(pool, to common.Address, amount0, amount1 int64) *txFixture {
	meta := f.add(pool, crypto256("Burn(address,address,uint256,uint256)"), addrTopic(router), addrTopic(to))
	f.events = append(f.events, &Burn{Meta: meta, Sender: router, To: to, Amount0: big.NewInt(amount0), Amount1: big.NewInt(amount1)})
	return f
}

func (f *txFixture) poolCreated(pool common.Address, kind model.PoolKind, tickSpacing int32) *txFixture {
	meta := f.add(common.HexToAddress("0xfac"), crypto256("PoolCreated(address,address,int24,address)"))
	f.events = append(f.events, &PoolCreated{Meta: meta, Pool: pool, Token0: tokenA, Token1: tokenB, PoolKind: kind, TickSpacing: tickSpacing})
	return f
}

func (f *txFixture) poolMint(pool common.Address) *txFixture {
	meta := f.add(pool, PoolMintTopic, addrTopic(npm), int24Topic(-100), int24Topic(100))
	f.events = append(f.events, &PoolLiquidity{Meta: meta, Owner: npm, Amount: big.NewInt(1)})
	return f
}

func (f *txFixture) poolBurn(pool common.Address) *txFixture {
	meta := f.add(pool, PoolBurnTopic, addrTopic(npm), int24Topic(-100), int24Topic(100))
	f.events = append(f.events, &PoolLiquidity{Meta: meta, Owner: npm, Amount: big.NewInt(1), Burn: true})
	return f
}

func (f *txFixture) nftTransfer(from, to common.Address, id int64) *txFixture {
	meta := f.add(npm, TransferTopic, addrTopic(from), addrTopic(to), common.BigToHash(big.NewInt(id)))
	f.events = append(f.events, &PositionTransfer{Meta: meta, From: from, To: to, TokenID: big.NewInt(id)})
	return f
}

func (f *txFixture) increase(id, liquidity, amount0, amount1 int64) *txFixture {
	meta := f.add(npm, IncreaseLiquidityTopic, common.BigToHash(big.NewInt(id)))
	f.events = append(f.events, &IncreaseLiquidity{Meta: meta, TokenID: big.NewInt(id), Liquidity: big.NewInt(liquidity), Amount0: big.NewInt(amount0), Amount1: big.NewInt(amount1)})
	return f
}

func (f *txFixture) decrease(id, liquidity, amount0, amount1 int64) *txFixture {
	meta := f.add(npm, DecreaseLiquidityTopic, common.BigToHash(big.NewInt(id)))
	f.events = append(f.events, &DecreaseLiquidity{Meta: meta, TokenID: big.NewInt(id), Liquidity: big.NewInt(liquidity), Amount0: big.NewInt(amount0), Amount1: big.NewInt(amount1)})
	return f
}

// run feeds every event with the complete receipt, then ends the transaction.
func (f *txFixture) run() {
	ctx := context.Background()
	for _, ev := range f.events {
		ev.EventMeta().Receipt = f.logs
		f.h.engine.Handle(ctx, ev)
	}
	f.h.engine.EndTransaction(f.hash)
}

// runWithoutEnd feeds the events but leaves the transaction open.
func (f *txFixture) runWithoutEnd() {
	ctx := context.Background()
	for _, ev := range f.events {
		ev.EventMeta().Receipt = f.logs
		f.h.engine.Handle(ctx, ev)
	}
}

func addrTopic(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}

func int24Topic(value int64) common.Hash {
	v := big.NewInt(value)
	if value < 0 {
		v.Add(v, new(big.Int).Lsh(big.NewInt(1), 256))
	}
	return common.BigToHash(v)
}

func crypto256(signature string) common.Hash {
	return crypto.Keccak256Hash([]byte(signature))
}
