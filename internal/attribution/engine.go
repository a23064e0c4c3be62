// Package attribution replays AMM liquidity events and keeps, per user, pool
// and token, the amount of each token the user has deposited and not yet
// withdrawn.
package attribution

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Config configures an Engine.
type Config struct {
	Whitelist        Whitelist
	Intermediaries   []common.Address
	PositionManager  common.Address
	WithdrawerPolicy WithdrawerPolicy
	// FromBlock drops events below this height.
	FromBlock uint64
}

// Deps are the engine's collaborators. Only Store is required.
type Deps struct {
	Store   Store
	Reader  ContractReader
	Tokens  TokenSource
	Sources DataSources
	Metrics *Metrics
	Logger  *zap.Logger
}

// Engine applies events to the share and attribution ledgers. It is not safe
// for concurrent use; events must be fed in (block, log index) order.
type Engine struct {
	cfg      Config
	store    Store
	reader   ContractReader
	registry *Registry
	resolver *Resolver
	scratch  *Scratchpad
	shares   *ShareLedger
	ledger   *Ledger
	metrics  *Metrics
	logger   *zap.Logger
}

// New builds an engine.
func New(cfg Config, deps Deps) (*Engine, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(cfg.WithdrawerPolicy) == 0 {
		cfg.WithdrawerPolicy = DefaultWithdrawerPolicy
	}

	ledger := NewLedger(deps.Store, deps.Metrics, logger)
	return &Engine{
		cfg:      cfg,
		store:    deps.Store,
		reader:   deps.Reader,
		registry: NewRegistry(deps.Store, cfg.Whitelist, deps.Reader, deps.Tokens, deps.Sources, deps.Metrics, logger),
		resolver: NewResolver(NewAddressSet(cfg.Intermediaries...), logger),
		scratch:  NewScratchpad(),
		shares:   NewShareLedger(deps.Store, ledger, deps.Metrics, logger),
		ledger:   ledger,
		metrics:  deps.Metrics,
		logger:   logger,
	}, nil
}

// Handle applies one event. Contract reads use a context detached from ctx's
// cancellation so a handler never stops halfway through its writes.
func (e *Engine) Handle(ctx context.Context, event Event) {
	meta := event.EventMeta()
	if meta.BlockNumber < e.cfg.FromBlock {
		e.metrics.skipped(event.Kind(), "before_from_block")
		return
	}
	ctx = context.WithoutCancel(ctx)

	switch ev := event.(type) {
	case *PoolCreated:
		e.handlePoolCreated(ctx, ev)
	case *LPTransfer:
		e.handleLPTransfer(ctx, ev)
	case *Mint:
		e.handleMint(ctx, ev)
	case *Burn:
		e.handleBurn(ctx, ev)
	case *IncreaseLiquidity:
		e.handleIncreaseLiquidity(ctx, ev)
	case *DecreaseLiquidity:
		e.handleDecreaseLiquidity(ctx, ev)
	case *PositionTransfer:
		e.handlePositionTransfer(ctx, ev)
	case *PoolLiquidity:
		e.handlePoolLiquidity(ctx, ev)
	default:
		e.metrics.skipped(event.Kind(), "unsupported")
		return
	}
	e.metrics.block(meta.BlockNumber)
}

// EndTransaction discards whatever scratch state tx left behind. Leftovers
// mean a mint or burn never saw its counterpart.
func (e *Engine) EndTransaction(tx common.Hash) {
	for _, rec := range e.scratch.EndTransaction(tx) {
		e.metrics.scratch("discarded")
		e.logger.Warn("discarding unpaired scratch",
			zap.String("tx", tx.Hex()),
			zap.String("pool", rec.Pool.Hex()),
			zap.Bool("recipient_ready", rec.RecipientReady),
			zap.Bool("amounts_ready", rec.AmountsReady),
			zap.String("pending_lp", rec.PendingLP.String()),
			zap.String("burned_lp", rec.BurnedLP.String()),
		)
	}
}

// OpenScratch returns the number of live scratch records.
func (e *Engine) OpenScratch() int {
	return e.scratch.Open()
}

// Ledger exposes the attribution ledger for queries.
func (e *Engine) Ledger() *Ledger {
	return e.ledger
}

// Shares exposes the LP share ledger for queries.
func (e *Engine) Shares() *ShareLedger {
	return e.shares
}

// Registry exposes the pool registry.
func (e *Engine) Registry() *Registry {
	return e.registry
}

func (e *Engine) handlePoolCreated(ctx context.Context, ev *PoolCreated) {
	pool := e.registry.RegisterIfWhitelisted(ctx, ev.Pool, ev.Token0, ev.Token1, ev.PoolKind, ev.TickSpacing, ev.BlockNumber)
	if pool == nil {
		e.metrics.skipped(ev.Kind(), "not_whitelisted")
		return
	}
	e.metrics.handled(ev.Kind())
}
