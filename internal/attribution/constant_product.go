package attribution

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"lpAttribution/internal/model"
)

func (e *Engine) constantProductPool(ctx context.Context, ev Event) (*model.Pool, bool) {
	meta := ev.EventMeta()
	pool := e.registry.Resolve(ctx, meta.Address, model.PoolKindConstantProduct)
	if pool == nil {
		e.metrics.skipped(ev.Kind(), "not_whitelisted")
		return nil, false
	}
	if meta.BlockNumber < pool.CreatedBlock {
		e.metrics.skipped(ev.Kind(), "before_pool_created")
		return nil, false
	}
	return pool, true
}

func (e *Engine) handleLPTransfer(ctx context.Context, ev *LPTransfer) {
	pool, ok := e.constantProductPool(ctx, ev)
	if !ok {
		return
	}
	zero := common.Address{}

	switch {
	case ev.From == zero && ev.To == zero:
		// Permanently locked minimum liquidity.
		e.metrics.skipped(ev.Kind(), "locked_liquidity")
		return
	case ev.From == zero:
		e.handleMintTransfer(pool, ev)
	case ev.To == pool.Address:
		e.scratch.RecordPendingBurn(ev.TxHash, pool.Address, ev.From, ev.Value)
	case ev.From == pool.Address && ev.To == zero:
		e.scratch.RecordBurned(ev.TxHash, pool.Address, ev.Value)
	case ev.To == zero:
		e.metrics.skipped(ev.Kind(), "burn_outside_pool")
		return
	case e.resolver.IsIntermediary(ev.From) || e.resolver.IsIntermediary(ev.To):
		// Routers hold LP only in transit; the basis stays with the user.
		e.metrics.skipped(ev.Kind(), "intermediary_hop")
		return
	default:
		e.shares.MoveProportional(pool, ev.From, ev.To, ev.Value)
	}
	e.metrics.handled(ev.Kind())
}

func (e *Engine) handleMintTransfer(pool *model.Pool, ev *LPTransfer) {
	minted := ev.To
	recipient, strategy := e.resolver.Resolve(Request{
		Candidates: []common.Address{minted},
		TxOrigin:   ev.TxOrigin,
		Receipt:    ev.Receipt,
		LogIndex:   ev.LogIndex,
		Correlate: &Correlation{
			Filter: LogFilter{
				Emitter: pool.Address,
				Topic0:  TransferTopic,
				Topics:  3,
				Match: func(log *types.Log) bool {
					return TopicAddress(log.Topics[1]) == minted
				},
			},
			AddressTopic: 2,
		},
	})
	if recipient == (common.Address{}) {
		e.logger.Warn("mint recipient unresolved",
			zap.String("tx", ev.TxHash.Hex()),
			zap.String("pool", pool.Address.Hex()),
		)
		return
	}
	if recipient != minted {
		e.logger.Debug("mint recipient resolved through intermediary",
			zap.String("tx", ev.TxHash.Hex()),
			zap.String("minted_to", minted.Hex()),
			zap.String("recipient", recipient.Hex()),
			zap.String("strategy", strategy),
		)
	}

	e.shares.Credit(pool.Address, recipient, ev.Value)
	e.scratch.RecordMintTransfer(ev.TxHash, pool.Address, recipient, ev.Value)
	e.finalizeMint(pool, ev.TxHash)
}

func (e *Engine) handleMint(ctx context.Context, ev *Mint) {
	pool, ok := e.constantProductPool(ctx, ev)
	if !ok {
		return
	}
	e.scratch.RecordMintAmounts(ev.TxHash, pool.Address, ev.Amount0, ev.Amount1)
	e.finalizeMint(pool, ev.TxHash)
	e.metrics.handled(ev.Kind())
}

// finalizeMint credits the deposit once both the LP transfer and the Mint
// event of a transaction have been seen, in either order.
func (e *Engine) finalizeMint(pool *model.Pool, tx common.Hash) {
	rec, ok := e.scratch.Peek(tx, pool.Address)
	if !ok || !rec.MintReady() {
		return
	}
	if !pool.HasTokens() {
		e.logger.Warn("pool tokens unknown, deposit not attributed",
			zap.String("pool", pool.Address.Hex()),
			zap.String("tx", tx.Hex()),
		)
	}
	e.ledger.Increase(pool.Address, rec.MintRecipient, pool.Token0, rec.Amount0)
	e.ledger.Increase(pool.Address, rec.MintRecipient, pool.Token1, rec.Amount1)
	e.scratch.Clear(tx, pool.Address)
	e.metrics.scratch("finalized")
}

func (e *Engine) handleBurn(ctx context.Context, ev *Burn) {
	pool, ok := e.constantProductPool(ctx, ev)
	if !ok {
		return
	}

	rec, hasScratch := e.scratch.Peek(ev.TxHash, pool.Address)
	if !hasScratch {
		e.metrics.skipped(ev.Kind(), "no_lp_burned")
		return
	}
	defer func() {
		e.scratch.Clear(ev.TxHash, pool.Address)
		e.metrics.scratch("cleared")
	}()

	removed := rec.BurnedLP
	if removed.Sign() <= 0 {
		removed = rec.PendingLP
	}
	if removed.Sign() <= 0 {
		e.metrics.skipped(ev.Kind(), "no_lp_burned")
		return
	}

	sender := rec.PendingSender
	withdrawer, strategy := e.resolver.Resolve(Request{
		Candidates: e.holders(pool, e.cfg.WithdrawerPolicy.candidates(sender, ev.To, ev.TxOrigin)),
		TxOrigin:   ev.TxOrigin,
		Receipt:    ev.Receipt,
		LogIndex:   ev.LogIndex,
		Correlate: &Correlation{
			Filter: LogFilter{
				Emitter: pool.Address,
				Topic0:  TransferTopic,
				Topics:  3,
				Match: func(log *types.Log) bool {
					return TopicAddress(log.Topics[2]) == sender
				},
			},
			AddressTopic: 1,
		},
	})

	balance := e.shares.ShareOf(pool.Address, withdrawer)
	if withdrawer == (common.Address{}) || balance.Sign() <= 0 {
		e.metrics.skipped(ev.Kind(), "untracked_withdrawer")
		e.logger.Debug("burn by untracked holder",
			zap.String("tx", ev.TxHash.Hex()),
			zap.String("pool", pool.Address.Hex()),
			zap.String("withdrawer", withdrawer.Hex()),
			zap.String("strategy", strategy),
		)
		return
	}

	for _, token := range pool.Tokens() {
		e.ledger.DecreaseProportional(pool.Address, withdrawer, token, removed, balance)
	}
	e.shares.Debit(pool.Address, withdrawer, removed)
	e.metrics.handled(ev.Kind())
}

// holders keeps the candidates that hold LP in pool, preserving order.
func (e *Engine) holders(pool *model.Pool, candidates []common.Address) []common.Address {
	out := candidates[:0:0]
	for _, candidate := range candidates {
		if e.shares.ShareOf(pool.Address, candidate).Sign() > 0 {
			out = append(out, candidate)
		}
	}
	return out
}
