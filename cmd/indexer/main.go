package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"lpAttribution/internal/chain"
	"lpAttribution/internal/config"
	"lpAttribution/internal/dex"
	"lpAttribution/internal/indexer"
	"lpAttribution/internal/storage"
)

func main() {
	root := &cobra.Command{
		Use:          "indexer",
		Short:        "LP deposit attribution indexer",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch raw logs for watched contracts",
		RunE:  runIndexer,
	}

	runCmd.Flags().String("rpc", "", "RPC URL")
	runCmd.Flags().Uint64("from", 0, "start block (inclusive)")
	runCmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means latest")
	runCmd.Flags().StringSlice("address", nil, "contract addresses (comma-separated)")
	runCmd.Flags().StringSlice("topic0", nil, "topic0 signatures (comma-separated), defaults to every liquidity event")
	runCmd.Flags().Uint64("batch-size", 2000, "blocks per batch")
	runCmd.Flags().String("out", "./data/logs.jsonl", "output JSONL path")
	runCmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path")
	runCmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	runCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	runCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	runCmd.Flags().Bool("resolve-origin", true, "record each log's transaction sender")
	runCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(runCmd)

	decodeCmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode raw logs into typed events",
		RunE:  runDecode,
	}

	decodeCmd.Flags().String("in", "", "input raw logs JSONL")
	decodeCmd.Flags().String("out", "./data/typed_events.jsonl", "output typed events JSONL")
	decodeCmd.Flags().String("errors", "./data/decode_errors.jsonl", "decode errors JSONL")
	decodeCmd.Flags().String("topic0-map", "", "extra topic0->event mappings (comma-separated key=value)")
	decodeCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(decodeCmd)

	attributeCmd := &cobra.Command{
		Use:   "attribute",
		Short: "Replay raw logs into per-user deposit attributions",
		RunE:  runAttribute,
	}

	attributeCmd.Flags().String("rpc", "", "RPC URL for contract reads (archive node for historical positions)")
	attributeCmd.Flags().String("in", "", "input raw logs JSONL")
	attributeCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	attributeCmd.Flags().Uint64("batch-size", 1000, "blocks between snapshot flushes")
	attributeCmd.Flags().String("state-file", "", "optional local state file for progress tracking")
	attributeCmd.Flags().StringSlice("whitelist", nil, "pool addresses to attribute (comma-separated)")
	attributeCmd.Flags().StringSlice("intermediaries", nil, "router/zapper addresses that never own liquidity (comma-separated)")
	attributeCmd.Flags().String("position-manager", "", "concentrated-liquidity position manager address")
	attributeCmd.Flags().String("cl-factory", "", "concentrated-liquidity factory address")
	attributeCmd.Flags().String("withdrawer-policy", "lp-sender,burn-recipient,tx-origin", "burn withdrawer precedence")
	attributeCmd.Flags().Uint64("from-block", 0, "ignore events below this block")
	attributeCmd.Flags().String("snapshot-out", "", "optional JSONL snapshot path")
	attributeCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9102)")
	attributeCmd.Flags().Bool("fetch-receipts", false, "fetch full receipts over RPC instead of using input logs")
	attributeCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(attributeCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runIndexer(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}

	addresses, err := indexer.ParseAddresses(cfg.Addresses)
	if err != nil {
		return err
	}
	if len(addresses) == 0 {
		return fmt.Errorf("address list is required")
	}

	topics := cfg.Topic0
	if len(topics) == 0 {
		decoder, err := dex.NewLiquidityDecoder(dex.DecoderConfig{})
		if err != nil {
			return err
		}
		topics = decoder.Topics()
	}
	topic0, err := indexer.ParseTopic0(topics)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	storageSink := storage.NewJsonlStorage(cfg.Out)

	runner := indexer.NewRunner(indexer.RunConfig{
		FromBlock:         cfg.FromBlock,
		ToBlock:           cfg.ToBlock,
		Addresses:         addresses,
		Topic0:            topic0,
		BatchSize:         cfg.BatchSize,
		CheckpointPath:    cfg.Checkpoint,
		CheckpointEnabled: cfg.CheckpointEnabled,
		MaxRetries:        cfg.MaxRetries,
		RetryBackoff:      cfg.RetryBackoff,
		ResolveOrigin:     cfg.ResolveOrigin,
	}, chainClient, storageSink, logger)

	logger.Info("indexer start",
		zap.String("rpc", cfg.RPCURL),
		zap.Uint64("from", cfg.FromBlock),
		zap.Uint64("to", cfg.ToBlock),
		zap.Int("addresses", len(addresses)),
		zap.Int("topic0", len(topic0)),
		zap.Uint64("batch_size", cfg.BatchSize),
		zap.String("out", cfg.Out),
		zap.Bool("checkpoint_enabled", cfg.CheckpointEnabled),
		zap.String("checkpoint", cfg.Checkpoint),
		zap.Bool("resolve_origin", cfg.ResolveOrigin),
	)

	return runner.Run(ctx)
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
