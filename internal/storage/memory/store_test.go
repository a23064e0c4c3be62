package memory

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lpAttribution/internal/model"
)

func TestStoreCopiesOnReadAndWrite(t *testing.T) {
	s := NewStore()
	pool := common.HexToAddress("0x1")
	user := common.HexToAddress("0x2")

	share := &model.LPShare{Pool: pool, Holder: user, Amount: big.NewInt(100)}
	s.SaveShare(share)
	share.Amount.SetInt64(1)

	got, ok := s.Share(pool, user)
	require.True(t, ok)
	assert.Equal(t, int64(100), got.Amount.Int64())

	got.Amount.SetInt64(5)
	again, _ := s.Share(pool, user)
	assert.Equal(t, int64(100), again.Amount.Int64(), "mutating a loaded copy must not leak")
}

func TestStoreIndexesConcentratedPools(t *testing.T) {
	s := NewStore()
	t0 := common.HexToAddress("0xa")
	t1 := common.HexToAddress("0xb")
	addr := common.HexToAddress("0xc")

	s.SavePool(&model.Pool{Address: addr, Kind: model.PoolKindConcentrated, Token0: t0, Token1: t1, TickSpacing: 100})
	got, ok := s.PoolByKey(model.PoolKeyID(t0, t1, 100))
	require.True(t, ok)
	assert.Equal(t, addr, got)

	s.SavePool(&model.Pool{Address: common.HexToAddress("0xd"), Kind: model.PoolKindConstantProduct, Token0: t0, Token1: t1})
	_, ok = s.PoolByKey(model.PoolKeyID(t0, t1, 0))
	assert.False(t, ok)
}

func TestStoreSnapshotRestore(t *testing.T) {
	s := NewStore()
	pool := common.HexToAddress("0x1")
	token := common.HexToAddress("0x3")
	s.SavePool(&model.Pool{Address: pool, Kind: model.PoolKindConstantProduct, Token0: token, Token1: common.HexToAddress("0x4")})
	s.SaveToken(model.TokenMeta{Address: token.Hex(), Decimals: 18, Symbol: "TKN"})
	for i := int64(1); i <= 3; i++ {
		s.SaveAttribution(&model.DepositAttribution{Pool: pool, User: common.BigToAddress(big.NewInt(10 - i)), Token: token, Balance: big.NewInt(i)})
	}
	s.SavePosition(&model.Position{TokenID: big.NewInt(9), Liquidity: big.NewInt(1), Deposited0: big.NewInt(2), Deposited1: big.NewInt(3)})
	s.SavePosition(&model.Position{TokenID: big.NewInt(2), Liquidity: big.NewInt(1), Deposited0: big.NewInt(2), Deposited1: big.NewInt(3)})

	snap := s.Snapshot()
	require.Len(t, snap.Attributions, 3)
	assert.Equal(t, int64(3), snap.Attributions[0].Balance.Int64(), "sorted by user address")
	require.Len(t, snap.Positions, 2)
	assert.Equal(t, int64(2), snap.Positions[0].TokenID.Int64())

	restored := NewStore()
	restored.Restore(snap)
	assert.Equal(t, snap, restored.Snapshot())
	assert.Len(t, restored.Attributions(common.BigToAddress(big.NewInt(9))), 1)
}
