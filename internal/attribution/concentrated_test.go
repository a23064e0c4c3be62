package attribution

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lpAttribution/internal/model"
)

func newCLHarness(t *testing.T) *harness {
	t.Helper()
	h := newHarness(t)
	h.tx(50).poolCreated(poolCL, model.PoolKindConcentrated, 100).run()
	return h
}

func (h *harness) position(id int64) *model.Position {
	h.t.Helper()
	pos, ok := h.store.Position(big.NewInt(id))
	require.True(h.t, ok, "position %d not tracked", id)
	return pos
}

func TestPositionMintCreditsOwner(t *testing.T) {
	h := newCLHarness(t)
	h.reader.addPosition(7, 100, 100, 5000)

	h.tx(100).from(user1).
		poolMint(poolCL).
		nftTransfer(zeroAddr, user1, 7).
		increase(7, 5000, 500, 700).
		run()

	assert.Equal(t, int64(500), h.basis(poolCL, user1, tokenA))
	assert.Equal(t, int64(700), h.basis(poolCL, user1, tokenB))

	pos := h.position(7)
	assert.Equal(t, poolCL, pos.Pool)
	assert.Equal(t, user1, pos.Owner)
	assert.Equal(t, int64(5000), pos.Liquidity.Int64())
	assert.Equal(t, int64(500), pos.Deposited0.Int64())
	assert.False(t, pos.Rejected)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.PositionsBound))
}

func TestPositionDecreaseRemovesProportionalDeposit(t *testing.T) {
	h := newCLHarness(t)
	h.reader.addPosition(7, 100, 100, 5000)
	h.tx(100).poolMint(poolCL).nftTransfer(zeroAddr, user1, 7).increase(7, 5000, 500, 700).run()

	h.tx(110).from(user1).poolBurn(poolCL).decrease(7, 2500, 499, 699).run()

	assert.Equal(t, int64(250), h.basis(poolCL, user1, tokenA))
	assert.Equal(t, int64(350), h.basis(poolCL, user1, tokenB))
	pos := h.position(7)
	assert.Equal(t, int64(2500), pos.Liquidity.Int64())
	assert.Equal(t, int64(250), pos.Deposited0.Int64())

	h.tx(111).from(user1).poolBurn(poolCL).decrease(7, 2500, 250, 350).run()
	assert.Zero(t, h.basis(poolCL, user1, tokenA))
	assert.Zero(t, h.basis(poolCL, user1, tokenB))
	assert.Zero(t, h.position(7).Liquidity.Sign())
}

func TestPositionTransferMovesDeposit(t *testing.T) {
	h := newCLHarness(t)
	h.reader.addPosition(7, 100, 100, 5000)
	h.tx(100).poolMint(poolCL).nftTransfer(zeroAddr, user1, 7).increase(7, 5000, 500, 700).run()

	h.tx(120).nftTransfer(user1, user2, 7).run()
	assert.Zero(t, h.basis(poolCL, user1, tokenA))
	assert.Equal(t, int64(500), h.basis(poolCL, user2, tokenA))
	assert.Equal(t, int64(700), h.basis(poolCL, user2, tokenB))
	assert.Equal(t, user2, h.position(7).Owner)

	// The new owner withdraws half.
	h.tx(121).from(user2).poolBurn(poolCL).decrease(7, 2500, 250, 350).run()
	assert.Equal(t, int64(250), h.basis(poolCL, user2, tokenA))
	assert.Zero(t, h.basis(poolCL, user1, tokenA))
}

func TestPositionCustodyKeepsOwner(t *testing.T) {
	h := newCLHarness(t)
	h.reader.addPosition(7, 100, 100, 5000)
	h.tx(100).poolMint(poolCL).nftTransfer(zeroAddr, user1, 7).increase(7, 5000, 500, 700).run()

	h.tx(120).nftTransfer(user1, router, 7).run()
	assert.Equal(t, int64(500), h.basis(poolCL, user1, tokenA))
	assert.Zero(t, h.basis(poolCL, router, tokenA))
	assert.Equal(t, user1, h.position(7).Owner)

	// Liquidity removed while in custody still debits the owner.
	h.tx(121).from(signer).poolBurn(poolCL).decrease(7, 5000, 500, 700).run()
	assert.Zero(t, h.basis(poolCL, user1, tokenA))
}

func TestPositionInNonWhitelistedPoolIsRejected(t *testing.T) {
	h := newCLHarness(t)
	h.reader.addPosition(8, 100, 200, 1000)
	h.reader.factory[model.PoolKeyID(tokenA, tokenB, 200)] = poolDark

	h.tx(100).from(user1).
		nftTransfer(zeroAddr, user1, 8).
		increase(8, 1000, 100, 100).
		run()

	pos := h.position(8)
	assert.True(t, pos.Rejected)
	assert.False(t, pos.Bound())
	assert.Zero(t, h.basis(poolDark, user1, tokenA))

	h.tx(101).from(user1).decrease(8, 1000, 100, 100).run()
	assert.Zero(t, h.basis(poolDark, user1, tokenA))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.EventsSkipped.WithLabelValues("decrease_liquidity", "not_whitelisted")))
}

func TestLateBoundPositionCreditsAccumulatedDeposit(t *testing.T) {
	h := newCLHarness(t)
	// No pool-key entry and no factory answer for this tick spacing.
	h.reader.addPosition(9, 100, 300, 1000)

	h.tx(100).from(user1).
		nftTransfer(zeroAddr, user1, 9).
		increase(9, 1000, 40, 60).
		run()

	pos := h.position(9)
	assert.False(t, pos.Bound())
	assert.Equal(t, int64(40), pos.Deposited0.Int64())
	assert.Zero(t, h.basis(poolCL, user1, tokenA))

	h.tx(105).from(user1).poolBurn(poolCL).decrease(9, 500, 20, 30).run()

	assert.Equal(t, poolCL, h.position(9).Pool)
	assert.Equal(t, int64(20), h.basis(poolCL, user1, tokenA))
	assert.Equal(t, int64(30), h.basis(poolCL, user1, tokenB))
}

func TestPreexistingPositionKeepsLiquidityBaseline(t *testing.T) {
	h := newCLHarness(t)
	h.reader.addPosition(10, 10, 100, 1000)
	h.reader.owners["10"] = user2

	h.tx(100).poolMint(poolCL).increase(10, 100, 10, 20).run()

	pos := h.position(10)
	assert.Equal(t, int64(1100), pos.Liquidity.Int64())
	assert.Equal(t, int64(10), pos.Deposited0.Int64())
	assert.Equal(t, user2, pos.Owner)
	assert.Equal(t, int64(10), h.basis(poolCL, user2, tokenA))
	assert.Zero(t, h.basis(poolCL, signer, tokenA))

	// Removing the whole position only removes what was observed.
	h.tx(101).from(user2).poolBurn(poolCL).decrease(10, 1100, 999, 999).run()
	assert.Zero(t, h.basis(poolCL, user2, tokenA))
	assert.Zero(t, h.position(10).Deposited1.Sign())
}

func TestPositionOwnerFromReceiptTransfer(t *testing.T) {
	h := newCLHarness(t)
	h.reader.addPosition(11, 100, 100, 1000)

	h.tx(100).
		poolMint(poolCL).
		rawLog(npm, TransferTopic, addrTopic(zeroAddr), addrTopic(user2), common.BigToHash(big.NewInt(11))).
		increase(11, 1000, 5, 6).
		run()

	assert.Equal(t, int64(5), h.basis(poolCL, user2, tokenA))
	assert.Zero(t, h.basis(poolCL, signer, tokenA))
}

func TestPositionOwnerFallsBackToOrigin(t *testing.T) {
	h := newCLHarness(t)
	h.reader.addPosition(12, 100, 100, 1000)

	h.tx(100).poolMint(poolCL).increase(12, 1000, 5, 6).run()

	assert.Equal(t, int64(5), h.basis(poolCL, signer, tokenA))
	assert.Equal(t, signer, h.position(12).Owner)
}

func TestPoolLiquidityFromOtherOwnerIsIgnored(t *testing.T) {
	h := newCLHarness(t)
	f := h.tx(100)
	meta := f.add(poolCL, PoolMintTopic, addrTopic(user1), int24Topic(-10), int24Topic(10))
	f.events = append(f.events, &PoolLiquidity{Meta: meta, Owner: user1, Amount: big.NewInt(1)})
	f.run()

	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.EventsSkipped.WithLabelValues("pool_mint", "unmanaged_position")))
}

func TestForeignPositionManagerIsIgnored(t *testing.T) {
	h := newCLHarness(t)
	h.reader.addPosition(7, 100, 100, 5000)
	f := h.tx(100)
	meta := f.add(common.HexToAddress("0xbad"), IncreaseLiquidityTopic, common.BigToHash(big.NewInt(7)))
	f.events = append(f.events, &IncreaseLiquidity{Meta: meta, TokenID: big.NewInt(7), Liquidity: big.NewInt(1), Amount0: big.NewInt(1), Amount1: big.NewInt(1)})
	f.run()

	_, ok := h.store.Position(big.NewInt(7))
	assert.False(t, ok)
}
