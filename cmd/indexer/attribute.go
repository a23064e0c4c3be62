package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lpAttribution/internal/attribution"
	"lpAttribution/internal/chain"
	"lpAttribution/internal/config"
	"lpAttribution/internal/dex"
	"lpAttribution/internal/indexer"
	"lpAttribution/internal/replay"
	"lpAttribution/internal/storage"
	"lpAttribution/internal/storage/memory"
	"lpAttribution/internal/storage/postgres"
)

const attributionStateName = "attribution"

func runAttribute(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadAttribute(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.StateFile != "" && cfg.PGDSN == "" && cfg.SnapshotOut == "" {
		return fmt.Errorf("state-file requires pg-dsn or snapshot-out to resume from")
	}

	engineCfg, err := engineConfig(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := attribution.NewMetrics(registry)
	if cfg.MetricsAddr != "" {
		shutdown := serveMetrics(cfg.MetricsAddr, registry, logger)
		defer shutdown()
	}

	var pg *postgres.Store
	if cfg.PGDSN != "" {
		pg, err = postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pg.Close()
		if err := pg.Migrate(ctx); err != nil {
			return err
		}
	}

	snapshots := snapshotStores(pg, cfg.SnapshotOut)
	store := memory.NewStore()
	if err := restoreSnapshot(ctx, store, snapshots, logger); err != nil {
		return err
	}

	watchlist := replay.NewWatchlist()
	deps := attribution.Deps{
		Store:   store,
		Sources: watchlist,
		Metrics: metrics,
		Logger:  logger,
	}
	replayCfg := replay.Config{
		Input:       cfg.Input,
		FlushBlocks: cfg.FlushBlocks,
		StateStore:  stateStore(cfg, pg),
		Sink:        snapshotSink(store, snapshots, logger),
	}

	if cfg.RPCURL != "" {
		chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
		if err != nil {
			return fmt.Errorf("connect rpc: %w", err)
		}
		defer chainClient.Close()

		reader := dex.NewReader(chainClient, dex.ReaderConfig{
			PositionManager: engineCfg.PositionManager,
			CLFactory:       common.HexToAddress(cfg.CLFactory),
		}, logger)
		deps.Reader = reader
		deps.Tokens = reader
		replayCfg.Origins = chainClient
		if cfg.FetchReceipts {
			replayCfg.Receipts = replay.NewChainReceipts(chainClient, logger)
		}
	} else {
		logger.Warn("no rpc configured, contract reads are disabled")
	}

	engine, err := attribution.New(engineCfg, deps)
	if err != nil {
		return err
	}

	decoder, err := dex.NewLiquidityDecoder(dex.DecoderConfig{})
	if err != nil {
		return err
	}

	logger.Info("attribute start",
		zap.String("input", cfg.Input),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
		zap.String("snapshot_out", cfg.SnapshotOut),
		zap.Int("whitelist", engineCfg.Whitelist.Len()),
		zap.Int("intermediaries", len(engineCfg.Intermediaries)),
		zap.String("withdrawer_policy", engineCfg.WithdrawerPolicy.String()),
		zap.Uint64("from_block", engineCfg.FromBlock),
		zap.Uint64("batch_size", cfg.FlushBlocks),
		zap.Bool("fetch_receipts", cfg.FetchReceipts),
	)

	if _, err := replay.NewReplayer(replayCfg, engine, decoder, logger).Run(ctx); err != nil {
		return err
	}

	tracked := watchlist.Addresses()
	addresses := make([]string, 0, len(tracked))
	for _, addr := range tracked {
		addresses = append(addresses, addr.Hex())
	}
	logger.Info("tracked pools", zap.Strings("addresses", addresses))
	return nil
}

func engineConfig(cfg config.AttributeConfig) (attribution.Config, error) {
	whitelist, err := attribution.NewWhitelist(cfg.Whitelist)
	if err != nil {
		return attribution.Config{}, err
	}
	intermediaries, err := indexer.ParseAddresses(cfg.Intermediaries)
	if err != nil {
		return attribution.Config{}, fmt.Errorf("intermediaries: %w", err)
	}
	policy, err := attribution.ParseWithdrawerPolicy(cfg.WithdrawerPolicy)
	if err != nil {
		return attribution.Config{}, err
	}
	var manager common.Address
	if cfg.PositionManager != "" {
		manager = common.HexToAddress(cfg.PositionManager)
	}
	return attribution.Config{
		Whitelist:        whitelist,
		Intermediaries:   intermediaries,
		PositionManager:  manager,
		WithdrawerPolicy: policy,
		FromBlock:        cfg.FromBlock,
	}, nil
}

// snapshotStores lists where the ledger is persisted. The first one is the
// source of truth on restart.
func snapshotStores(pg *postgres.Store, snapshotPath string) []storage.SnapshotStore {
	var stores []storage.SnapshotStore
	if pg != nil {
		stores = append(stores, pg)
	}
	if snapshotPath != "" {
		stores = append(stores, storage.SnapshotFile{Path: snapshotPath})
	}
	return stores
}

func restoreSnapshot(ctx context.Context, store *memory.Store, snapshots []storage.SnapshotStore, logger *zap.Logger) error {
	if len(snapshots) == 0 {
		return nil
	}
	snap, err := snapshots[0].LoadSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("restore snapshot: %w", err)
	}
	store.Restore(snap)
	logger.Info("snapshot restored",
		zap.Int("pools", len(snap.Pools)),
		zap.Int("shares", len(snap.Shares)),
		zap.Int("attributions", len(snap.Attributions)),
		zap.Int("positions", len(snap.Positions)),
	)
	return nil
}

func stateStore(cfg config.AttributeConfig, pg *postgres.Store) replay.StateStore {
	switch {
	case cfg.StateFile != "":
		return indexer.NewCheckpointStore(cfg.StateFile, true)
	case pg != nil:
		return &replay.DBStateStore{Store: pg, Name: attributionStateName}
	default:
		return nil
	}
}

func snapshotSink(store *memory.Store, snapshots []storage.SnapshotStore, logger *zap.Logger) replay.Sink {
	return replay.SinkFunc(func(ctx context.Context, block uint64) error {
		snap := store.Snapshot()
		for _, target := range snapshots {
			if err := target.SaveSnapshot(ctx, snap); err != nil {
				return err
			}
		}
		logger.Debug("snapshot flushed",
			zap.Uint64("block", block),
			zap.Int("shares", len(snap.Shares)),
			zap.Int("attributions", len(snap.Attributions)),
			zap.Int("positions", len(snap.Positions)),
		)
		return nil
	})
}

func serveMetrics(addr string, registry *prometheus.Registry, logger *zap.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("metrics listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
