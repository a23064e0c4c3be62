package storage

import (
	"context"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lpAttribution/internal/model"
)

func TestWriteAndReadSnapshot(t *testing.T) {
	pool := common.HexToAddress("0xa0d736dd7386230de3aa2e6b4f60d36a5ded2291")
	user := common.HexToAddress("0x00000000000000000000000000000000000000a1")
	token := common.HexToAddress("0x4200000000000000000000000000000000000006")

	snap := model.Snapshot{
		Pools:        []*model.Pool{{Address: pool, Kind: model.PoolKindConstantProduct, Token0: token, CreatedBlock: 7}},
		Tokens:       []model.TokenMeta{{Address: token.Hex(), Decimals: 18, Symbol: "WETH"}},
		Shares:       []*model.LPShare{{Pool: pool, Holder: user, Amount: big.NewInt(100)}},
		Attributions: []*model.DepositAttribution{{Pool: pool, User: user, Token: token, Balance: big.NewInt(1000)}},
		Positions: []*model.Position{{
			TokenID:    big.NewInt(12),
			Owner:      user,
			TickLower:  -60,
			Liquidity:  big.NewInt(3),
			Deposited0: big.NewInt(4),
			Deposited1: new(big.Int),
		}},
	}

	path := filepath.Join(t.TempDir(), "out", "snapshot.jsonl")
	require.NoError(t, WriteSnapshot(path, snap))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 5)
	assert.Contains(t, lines[3], `"entity":"deposit_attribution"`)
	assert.Contains(t, lines[3], `"amount":"1000"`)

	loaded, ok, err := ReadSnapshot(path)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, loaded.Pools, 1)
	assert.Equal(t, pool, loaded.Pools[0].Address)
	assert.Equal(t, common.Address{}, loaded.Pools[0].Token1)
	assert.Equal(t, uint64(7), loaded.Pools[0].CreatedBlock)
	assert.Equal(t, token.Hex(), loaded.Tokens[0].Address)
	assert.Equal(t, int64(100), loaded.Shares[0].Amount.Int64())
	assert.Equal(t, int64(1000), loaded.Attributions[0].Balance.Int64())
	require.Len(t, loaded.Positions, 1)
	assert.Equal(t, int64(12), loaded.Positions[0].TokenID.Int64())
	assert.Equal(t, int32(-60), loaded.Positions[0].TickLower)
	assert.Equal(t, int64(4), loaded.Positions[0].Deposited0.Int64())
	assert.False(t, loaded.Positions[0].Bound())
}

func TestReadSnapshotMissingFile(t *testing.T) {
	_, ok, err := ReadSnapshot(filepath.Join(t.TempDir(), "absent.jsonl"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReadSnapshotRejectsUnknownEntity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"entity":"swap","id":"1"}`+"\n"), 0o644))
	_, _, err := ReadSnapshot(path)
	assert.Error(t, err)
}

func TestJsonlStorageAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs.jsonl")
	sink := NewJsonlStorage(path)

	require.NoError(t, sink.PutLogBatch([]model.LogRecord{{BlockNumber: 1, TxFrom: "0xabc"}}))
	require.NoError(t, sink.PutLogBatch(nil))
	require.NoError(t, sink.PutLogBatch([]model.LogRecord{{BlockNumber: 2}}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"tx_from":"0xabc"`)
}

func TestSnapshotFileStore(t *testing.T) {
	var store SnapshotStore = SnapshotFile{Path: filepath.Join(t.TempDir(), "nested", "snapshot.jsonl")}
	ctx := context.Background()

	empty, err := store.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty.Pools)

	pool := common.HexToAddress("0x40a8e39aba67debedab94f76d21114ab39909c5a")
	require.NoError(t, store.SaveSnapshot(ctx, model.Snapshot{
		Pools: []*model.Pool{{Address: pool, Kind: model.PoolKindConcentrated, TickSpacing: 100}},
	}))

	loaded, err := store.LoadSnapshot(ctx)
	require.NoError(t, err)
	require.Len(t, loaded.Pools, 1)
	assert.Equal(t, pool, loaded.Pools[0].Address)
	assert.Equal(t, int32(100), loaded.Pools[0].TickSpacing)
}
