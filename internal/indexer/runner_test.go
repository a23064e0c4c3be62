package indexer

import (
	"context"
	"errors"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"lpAttribution/internal/model"
)

type fakeChain struct {
	latest      uint64
	logs        []types.Log
	origins     map[common.Hash]common.Address
	filterFails int
	filterCalls int
	originCalls int
}

func (f *fakeChain) GetChainID(context.Context) (*big.Int, error) { return big.NewInt(8453), nil }

func (f *fakeChain) LatestBlockNumber(context.Context) (uint64, error) { return f.latest, nil }

func (f *fakeChain) BlockTimestamp(_ context.Context, number uint64) (uint64, error) {
	return 1_700_000_000 + number*2, nil
}

func (f *fakeChain) FilterLogs(_ context.Context, from, to uint64, _ []common.Address, _ []common.Hash) ([]types.Log, error) {
	f.filterCalls++
	if f.filterFails > 0 {
		f.filterFails--
		return nil, errors.New("rate limited")
	}
	var out []types.Log
	for _, log := range f.logs {
		if log.BlockNumber >= from && log.BlockNumber <= to {
			out = append(out, log)
		}
	}
	return out, nil
}

func (f *fakeChain) TransactionOrigin(_ context.Context, _, txHash common.Hash, _ uint) (common.Address, error) {
	f.originCalls++
	origin, ok := f.origins[txHash]
	if !ok {
		return common.Address{}, errors.New("not found")
	}
	return origin, nil
}

type memorySink struct {
	records []model.LogRecord
}

func (m *memorySink) PutLogBatch(logs []model.LogRecord) error {
	m.records = append(m.records, logs...)
	return nil
}

func TestRunnerStampsOriginAndCheckpoints(t *testing.T) {
	pool := common.HexToAddress("0xa0d736dd7386230de3aa2e6b4f60d36a5ded2291")
	signer := common.HexToAddress("0x00000000000000000000000000000000000000a1")
	txA := common.HexToHash("0xa")
	txB := common.HexToHash("0xb")

	chain := &fakeChain{
		latest: 20,
		logs: []types.Log{
			{Address: pool, BlockNumber: 11, TxHash: txA, Index: 0},
			{Address: pool, BlockNumber: 11, TxHash: txA, Index: 0},
			{Address: pool, BlockNumber: 12, TxHash: txB, Index: 3, Removed: true},
			{Address: pool, BlockNumber: 15, TxHash: txB, Index: 4},
		},
		origins:     map[common.Hash]common.Address{txA: signer, txB: signer},
		filterFails: 1,
	}
	sink := &memorySink{}
	checkpoint := filepath.Join(t.TempDir(), "checkpoint.json")

	runner := NewRunner(RunConfig{
		FromBlock:         10,
		Addresses:         []common.Address{pool},
		BatchSize:         5,
		CheckpointPath:    checkpoint,
		CheckpointEnabled: true,
		MaxRetries:        2,
		RetryBackoff:      time.Millisecond,
		ResolveOrigin:     true,
	}, chain, sink, nil)

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(sink.records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(sink.records))
	}
	if sink.records[0].TxFrom != signer.Hex() {
		t.Fatalf("tx origin not stamped: %q", sink.records[0].TxFrom)
	}
	if sink.records[1].Timestamp != 1_700_000_030 {
		t.Fatalf("unexpected timestamp %d", sink.records[1].Timestamp)
	}
	if chain.filterCalls != 4 {
		t.Fatalf("expected one retried and three ranges, got %d filter calls", chain.filterCalls)
	}

	last, ok, err := NewCheckpointStore(checkpoint, true).Load(context.Background())
	if err != nil || !ok || last != 20 {
		t.Fatalf("checkpoint mismatch: %d %v %v", last, ok, err)
	}

	// A second run resumes after the checkpoint and has nothing to do.
	chain.filterCalls = 0
	if err := NewRunner(RunConfig{
		FromBlock:         10,
		Addresses:         []common.Address{pool},
		BatchSize:         5,
		CheckpointPath:    checkpoint,
		CheckpointEnabled: true,
	}, chain, sink, nil).Run(context.Background()); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if chain.filterCalls != 0 {
		t.Fatalf("expected no fetches after resume, got %d", chain.filterCalls)
	}
}

func TestRunnerWithoutOriginSkipsLookups(t *testing.T) {
	pool := common.HexToAddress("0xa0d736dd7386230de3aa2e6b4f60d36a5ded2291")
	chain := &fakeChain{
		latest: 3,
		logs:   []types.Log{{Address: pool, BlockNumber: 2, TxHash: common.HexToHash("0xc")}},
	}
	sink := &memorySink{}

	runner := NewRunner(RunConfig{
		Addresses: []common.Address{pool},
		BatchSize: 10,
	}, chain, sink, nil)
	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if chain.originCalls != 0 {
		t.Fatalf("unexpected origin lookups: %d", chain.originCalls)
	}
	if len(sink.records) != 1 || sink.records[0].TxFrom != "" {
		t.Fatalf("unexpected records: %+v", sink.records)
	}
}

func TestRetryPolicyStopsOnContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := RetryPolicy{MaxRetries: 5, Backoff: time.Hour}.Do(ctx, func(context.Context) error {
		calls++
		cancel()
		return errors.New("boom")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}
}
