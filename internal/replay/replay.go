// Package replay feeds raw log records through the attribution engine in
// (block, transaction, log index) order and checkpoints progress at block
// boundaries.
package replay

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"lpAttribution/internal/attribution"
	"lpAttribution/internal/dex"
	"lpAttribution/internal/model"
)

// Engine is the subset of attribution.Engine the replayer drives.
type Engine interface {
	Handle(ctx context.Context, event attribution.Event)
	EndTransaction(tx common.Hash)
}

// Sink persists engine state up to a block.
type Sink interface {
	Flush(ctx context.Context, block uint64) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, block uint64) error

func (f SinkFunc) Flush(ctx context.Context, block uint64) error { return f(ctx, block) }

// Config controls a replay.
type Config struct {
	Input string
	// FlushBlocks is the number of completed blocks between flushes.
	FlushBlocks uint64
	Receipts    ReceiptSource
	// Origins resolves tx origins for records ingested without one.
	Origins    OriginFetcher
	StateStore StateStore
	Sink       Sink
}

// Stats summarizes a replay.
type Stats struct {
	Records      int
	Resumed      int
	Duplicates   int
	Transactions int
	Events       int
	Undecodable  int
	Failed       int
	LastBlock    uint64
}

// Replayer drives an Engine from a raw-log JSONL file.
type Replayer struct {
	cfg     Config
	engine  Engine
	decoder dex.Decoder
	logger  *zap.Logger
}

func NewReplayer(cfg Config, engine Engine, decoder dex.Decoder, logger *zap.Logger) *Replayer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Receipts == nil {
		cfg.Receipts = InputReceipts{}
	}
	if cfg.FlushBlocks == 0 {
		cfg.FlushBlocks = 1000
	}
	return &Replayer{cfg: cfg, engine: engine, decoder: decoder, logger: logger}
}

type txGroup struct {
	hash    common.Hash
	block   uint64
	records []model.LogRecord
	logs    []*types.Log
}

// Run replays every record after the stored checkpoint.
func (r *Replayer) Run(ctx context.Context) (Stats, error) {
	var stats Stats
	if r.engine == nil {
		return stats, fmt.Errorf("engine is nil")
	}
	if r.decoder == nil {
		return stats, fmt.Errorf("decoder is nil")
	}

	resumeAfter, resuming, err := r.loadState(ctx)
	if err != nil {
		return stats, err
	}

	records, err := r.readRecords(resumeAfter, resuming, &stats)
	if err != nil {
		return stats, err
	}
	groups, err := groupByTransaction(records)
	if err != nil {
		return stats, err
	}

	var (
		currentBlock  uint64
		haveBlock     bool
		lastFlushed   = resumeAfter
		blocksUnsaved uint64
	)
	for _, group := range groups {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		default:
		}

		if haveBlock && group.block != currentBlock {
			blocksUnsaved++
			if blocksUnsaved >= r.cfg.FlushBlocks {
				if err := r.flush(ctx, currentBlock); err != nil {
					return stats, err
				}
				lastFlushed = currentBlock
				blocksUnsaved = 0
			}
		}
		currentBlock, haveBlock = group.block, true

		if err := r.replayTransaction(ctx, group, &stats); err != nil {
			return stats, err
		}
		stats.Transactions++
		stats.LastBlock = group.block
	}

	if haveBlock && currentBlock != lastFlushed {
		if err := r.flush(ctx, currentBlock); err != nil {
			return stats, err
		}
	}

	r.logger.Info("attribute complete",
		zap.Int("records", stats.Records),
		zap.Int("resumed", stats.Resumed),
		zap.Int("transactions", stats.Transactions),
		zap.Int("events", stats.Events),
		zap.Int("undecodable", stats.Undecodable),
		zap.Int("failed", stats.Failed),
		zap.Uint64("last_block", stats.LastBlock),
	)
	return stats, nil
}

func (r *Replayer) replayTransaction(ctx context.Context, group *txGroup, stats *Stats) error {
	defer r.engine.EndTransaction(group.hash)

	receipt := r.cfg.Receipts.Receipt(ctx, group.hash, group.logs)
	origin, err := resolveOrigin(ctx, r.cfg.Origins, group.records[0].TxFrom, group.logs[0])
	if err != nil {
		return err
	}

	for _, record := range group.records {
		if !r.decoder.CanDecode(record.Topic0()) {
			stats.Undecodable++
			continue
		}
		typed, err := r.decoder.Decode(record)
		if err != nil {
			stats.Failed++
			r.logger.Warn("decode log", zap.Error(err), zap.String("tx", record.TxHash), zap.Uint64("log_index", record.LogIndex))
			continue
		}
		event, err := ToEvent(typed, receipt, origin)
		if err != nil {
			stats.Failed++
			r.logger.Warn("convert event", zap.Error(err), zap.String("tx", record.TxHash), zap.String("event", typed.EventName))
			continue
		}
		r.engine.Handle(ctx, event)
		stats.Events++
	}
	return nil
}

func (r *Replayer) flush(ctx context.Context, block uint64) error {
	if r.cfg.Sink != nil {
		if err := r.cfg.Sink.Flush(ctx, block); err != nil {
			return fmt.Errorf("flush block %d: %w", block, err)
		}
	}
	if r.cfg.StateStore != nil {
		if err := r.cfg.StateStore.Save(ctx, block); err != nil {
			return fmt.Errorf("save state: %w", err)
		}
	}
	r.logger.Info("checkpoint", zap.Uint64("block", block))
	return nil
}

func (r *Replayer) loadState(ctx context.Context) (uint64, bool, error) {
	if r.cfg.StateStore == nil {
		return 0, false, nil
	}
	last, ok, err := r.cfg.StateStore.Load(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("load state: %w", err)
	}
	if ok {
		r.logger.Info("resume from checkpoint", zap.Uint64("last_processed", last))
	}
	return last, ok, nil
}

func (r *Replayer) readRecords(resumeAfter uint64, resuming bool, stats *Stats) ([]model.LogRecord, error) {
	file, err := os.Open(r.cfg.Input)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	seen := make(map[string]struct{})
	records := make([]model.LogRecord, 0, 1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		stats.Records++

		var record model.LogRecord
		if err := json.Unmarshal(line, &record); err != nil {
			stats.Failed++
			r.logger.Warn("parse log record", zap.Error(err))
			continue
		}
		if record.Removed {
			continue
		}
		if resuming && record.BlockNumber <= resumeAfter {
			stats.Resumed++
			continue
		}
		id := record.ID()
		if _, ok := seen[id]; ok {
			stats.Duplicates++
			continue
		}
		seen[id] = struct{}{}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan input: %w", err)
	}
	return records, nil
}

// groupByTransaction orders records by (block, tx index, log index) and
// splits them per transaction.
func groupByTransaction(records []model.LogRecord) ([]*txGroup, error) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.BlockNumber != b.BlockNumber {
			return a.BlockNumber < b.BlockNumber
		}
		if a.TxIndex != b.TxIndex {
			return a.TxIndex < b.TxIndex
		}
		return a.LogIndex < b.LogIndex
	})

	var groups []*txGroup
	var current *txGroup
	for _, record := range records {
		log, err := ToLog(record)
		if err != nil {
			return nil, fmt.Errorf("log %s/%d: %w", record.TxHash, record.LogIndex, err)
		}
		if current == nil || current.hash != log.TxHash || current.block != record.BlockNumber {
			current = &txGroup{hash: log.TxHash, block: record.BlockNumber}
			groups = append(groups, current)
		}
		current.records = append(current.records, record)
		current.logs = append(current.logs, log)
	}
	return groups, nil
}
