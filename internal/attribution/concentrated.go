package attribution

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"lpAttribution/internal/model"
)

func (e *Engine) fromPositionManager(meta *Meta) bool {
	return e.cfg.PositionManager == (common.Address{}) || meta.Address == e.cfg.PositionManager
}

// loadPosition returns the tracked position, initializing it from chain on
// first sight. The bool is false for positions in non-whitelisted pools.
func (e *Engine) loadPosition(ctx context.Context, meta *Meta, tokenID *big.Int) (*model.Position, bool) {
	if pos, ok := e.store.Position(tokenID); ok {
		return pos, !pos.Rejected
	}
	pos := e.initPosition(ctx, meta, tokenID)
	e.store.SavePosition(pos)
	return pos, !pos.Rejected
}

// initPosition reads the position's immutable fields. The liquidity baseline
// is what existed before this block; deposits start at zero because earlier
// deposits were never observed.
func (e *Engine) initPosition(ctx context.Context, meta *Meta, tokenID *big.Int) *model.Position {
	pos := &model.Position{
		TokenID:    new(big.Int).Set(tokenID),
		Liquidity:  new(big.Int),
		Deposited0: new(big.Int),
		Deposited1: new(big.Int),
	}
	if e.reader == nil {
		e.metrics.degraded("position")
		return pos
	}

	var info model.PositionInfo
	var err error
	baseline := false
	if meta.BlockNumber > 0 {
		info, err = e.reader.Position(ctx, tokenID, meta.BlockNumber-1)
		baseline = err == nil
	}
	if !baseline {
		info, err = e.reader.Position(ctx, tokenID, meta.BlockNumber)
		if err != nil {
			e.metrics.degraded("position")
			e.logger.Warn("position read failed",
				zap.String("token_id", tokenID.String()),
				zap.Uint64("block", meta.BlockNumber),
				zap.Error(err),
			)
			return pos
		}
	}

	pos.Token0 = info.Token0
	pos.Token1 = info.Token1
	pos.TickSpacing = info.TickSpacing
	pos.TickLower = info.TickLower
	pos.TickUpper = info.TickUpper
	if baseline && info.Liquidity != nil {
		pos.Liquidity = new(big.Int).Set(info.Liquidity)
	}
	e.bindByKey(ctx, pos)
	return pos
}

// bindByKey binds a position through the pool-key index, falling back to the
// factory. Without an answer the position stays unbound.
func (e *Engine) bindByKey(ctx context.Context, pos *model.Position) {
	if pos.Token0 == (common.Address{}) || pos.Token1 == (common.Address{}) {
		return
	}
	if addr, ok := e.registry.PoolForKey(pos.Token0, pos.Token1, pos.TickSpacing); ok {
		e.bind(ctx, pos, addr)
		return
	}
	if e.reader == nil {
		return
	}
	addr, err := e.reader.PoolFor(ctx, pos.Token0, pos.Token1, pos.TickSpacing)
	if err != nil {
		e.metrics.degraded("pool_for")
		e.logger.Debug("pool lookup failed", zap.String("token_id", pos.TokenID.String()), zap.Error(err))
		return
	}
	if addr == (common.Address{}) {
		return
	}
	e.bind(ctx, pos, addr)
}

// bindFromReceipt binds an unbound position to the pool whose own Mint or
// Burn log precedes the position manager event in the same transaction.
func (e *Engine) bindFromReceipt(ctx context.Context, meta *Meta, pos *model.Position, topic0 common.Hash) {
	npm := e.cfg.PositionManager
	log, ok := FindLogBefore(meta.Receipt, meta.LogIndex, LogFilter{
		Topic0:         topic0,
		Topics:         4,
		ExcludeEmitter: npm,
		Match: func(log *types.Log) bool {
			return npm == (common.Address{}) || TopicAddress(log.Topics[1]) == npm
		},
	})
	if !ok {
		return
	}
	e.bind(ctx, pos, log.Address)
}

// bind sets the position's pool once. A non-whitelisted pool marks the
// position rejected. Deposits accumulated while unbound are credited to the
// current owner.
func (e *Engine) bind(ctx context.Context, pos *model.Position, poolAddr common.Address) bool {
	if pos.Bound() {
		if pos.Pool != poolAddr {
			e.logger.Warn("position already bound to another pool",
				zap.String("token_id", pos.TokenID.String()),
				zap.String("bound", pos.Pool.Hex()),
				zap.String("candidate", poolAddr.Hex()),
			)
		}
		return pos.Pool == poolAddr
	}
	if pos.Rejected {
		return false
	}

	pool := e.registry.Resolve(ctx, poolAddr, model.PoolKindConcentrated)
	if pool == nil {
		pos.Rejected = true
		e.logger.Debug("position in non-whitelisted pool",
			zap.String("token_id", pos.TokenID.String()),
			zap.String("pool", poolAddr.Hex()),
		)
		return false
	}

	pos.Pool = pool.Address
	if pos.Token0 == (common.Address{}) {
		pos.Token0 = pool.Token0
	}
	if pos.Token1 == (common.Address{}) {
		pos.Token1 = pool.Token1
	}
	if pos.TickSpacing == 0 {
		pos.TickSpacing = pool.TickSpacing
	}
	e.metrics.bound()

	if usable(pos.Owner, nil) && (positive(pos.Deposited0) || positive(pos.Deposited1)) {
		e.ledger.Increase(pos.Pool, pos.Owner, pos.Token0, pos.Deposited0)
		e.ledger.Increase(pos.Pool, pos.Owner, pos.Token1, pos.Deposited1)
		e.logger.Info("late-bound position basis credited",
			zap.String("token_id", pos.TokenID.String()),
			zap.String("pool", pos.Pool.Hex()),
			zap.String("owner", pos.Owner.Hex()),
		)
	}
	return true
}

// positionOwner resolves who a liquidity change belongs to: the tracked NFT
// holder, then a same-transaction NFT transfer, then ownerOf, then the signer.
func (e *Engine) positionOwner(ctx context.Context, meta *Meta, pos *model.Position) common.Address {
	tokenID := pos.TokenID
	req := Request{
		Candidates: []common.Address{pos.Owner},
		TxOrigin:   meta.TxOrigin,
		Receipt:    meta.Receipt,
		LogIndex:   meta.LogIndex,
		Correlate: &Correlation{
			Filter: LogFilter{
				Emitter: e.cfg.PositionManager,
				Topic0:  TransferTopic,
				Topics:  4,
				Match: func(log *types.Log) bool {
					return TopicUint(log.Topics[3]).Cmp(tokenID) == 0
				},
			},
			AddressTopic: 2,
		},
	}
	if e.reader != nil {
		req.Lookup = func() (common.Address, bool) {
			owner, err := e.reader.OwnerOf(ctx, tokenID, meta.BlockNumber)
			if err != nil {
				e.metrics.degraded("owner_of")
				return common.Address{}, false
			}
			return owner, true
		}
	}
	owner, _ := e.resolver.Resolve(req)
	return owner
}

func (e *Engine) handleIncreaseLiquidity(ctx context.Context, ev *IncreaseLiquidity) {
	if !e.fromPositionManager(&ev.Meta) {
		e.metrics.skipped(ev.Kind(), "foreign_manager")
		return
	}
	pos, ok := e.loadPosition(ctx, &ev.Meta, ev.TokenID)
	if !ok {
		e.metrics.skipped(ev.Kind(), "not_whitelisted")
		return
	}
	if !pos.Bound() {
		e.bindFromReceipt(ctx, &ev.Meta, pos, PoolMintTopic)
		if pos.Rejected {
			e.store.SavePosition(pos)
			e.metrics.skipped(ev.Kind(), "not_whitelisted")
			return
		}
	}

	owner := e.positionOwner(ctx, &ev.Meta, pos)
	if owner != (common.Address{}) {
		pos.Owner = owner
	}
	pos.Liquidity.Add(pos.Liquidity, orZero(ev.Liquidity))
	pos.Deposited0.Add(pos.Deposited0, orZero(ev.Amount0))
	pos.Deposited1.Add(pos.Deposited1, orZero(ev.Amount1))
	e.store.SavePosition(pos)

	if !pos.Bound() {
		e.metrics.skipped(ev.Kind(), "unbound")
		return
	}
	e.ledger.Increase(pos.Pool, owner, pos.Token0, ev.Amount0)
	e.ledger.Increase(pos.Pool, owner, pos.Token1, ev.Amount1)
	e.metrics.handled(ev.Kind())
}

func (e *Engine) handleDecreaseLiquidity(ctx context.Context, ev *DecreaseLiquidity) {
	if !e.fromPositionManager(&ev.Meta) {
		e.metrics.skipped(ev.Kind(), "foreign_manager")
		return
	}
	pos, ok := e.loadPosition(ctx, &ev.Meta, ev.TokenID)
	if !ok {
		e.metrics.skipped(ev.Kind(), "not_whitelisted")
		return
	}
	if !pos.Bound() {
		e.bindFromReceipt(ctx, &ev.Meta, pos, PoolBurnTopic)
		if pos.Rejected {
			e.store.SavePosition(pos)
			e.metrics.skipped(ev.Kind(), "not_whitelisted")
			return
		}
	}

	before := pos.Liquidity
	if !positive(before) || !positive(ev.Liquidity) {
		e.store.SavePosition(pos)
		e.metrics.skipped(ev.Kind(), "no_liquidity")
		return
	}

	owner := e.positionOwner(ctx, &ev.Meta, pos)
	if owner != (common.Address{}) {
		pos.Owner = owner
	}
	ratio := Ratio(ev.Liquidity, before)
	removed0 := ApplyRatio(pos.Deposited0, ratio)
	removed1 := ApplyRatio(pos.Deposited1, ratio)
	pos.Deposited0.Sub(pos.Deposited0, removed0)
	pos.Deposited1.Sub(pos.Deposited1, removed1)
	pos.Liquidity, _ = SubClamped(before, ev.Liquidity)
	e.store.SavePosition(pos)

	if !pos.Bound() {
		e.metrics.skipped(ev.Kind(), "unbound")
		return
	}
	e.ledger.Decrease(pos.Pool, owner, pos.Token0, removed0)
	e.ledger.Decrease(pos.Pool, owner, pos.Token1, removed1)
	e.metrics.handled(ev.Kind())
}

func (e *Engine) handlePositionTransfer(ctx context.Context, ev *PositionTransfer) {
	if !e.fromPositionManager(&ev.Meta) {
		e.metrics.skipped(ev.Kind(), "foreign_manager")
		return
	}
	pos, ok := e.loadPosition(ctx, &ev.Meta, ev.TokenID)
	if !ok {
		e.metrics.skipped(ev.Kind(), "not_whitelisted")
		return
	}
	zero := common.Address{}

	switch {
	case ev.From == zero:
		if !e.resolver.IsIntermediary(ev.To) {
			pos.Owner = ev.To
		}
	case ev.To == zero:
		pos.Owner = zero
	case e.resolver.IsIntermediary(ev.To):
		// Staking or router custody keeps the basis with the current owner.
	default:
		prev := pos.Owner
		if prev == zero {
			prev = ev.From
		}
		if pos.Bound() && prev != ev.To {
			e.ledger.Move(pos.Pool, prev, ev.To, pos.Token0, pos.Deposited0)
			e.ledger.Move(pos.Pool, prev, ev.To, pos.Token1, pos.Deposited1)
		}
		pos.Owner = ev.To
	}
	e.store.SavePosition(pos)
	e.metrics.handled(ev.Kind())
}

// handlePoolLiquidity binds the position behind a concentrated pool's own
// Mint or Burn by finding the matching position manager event.
func (e *Engine) handlePoolLiquidity(ctx context.Context, ev *PoolLiquidity) {
	pool := e.registry.Resolve(ctx, ev.Address, model.PoolKindConcentrated)
	if pool == nil {
		e.metrics.skipped(ev.Kind(), "not_whitelisted")
		return
	}
	npm := e.cfg.PositionManager
	if npm != (common.Address{}) && ev.Owner != npm {
		e.metrics.skipped(ev.Kind(), "unmanaged_position")
		return
	}

	topic := IncreaseLiquidityTopic
	if ev.Burn {
		topic = DecreaseLiquidityTopic
	}
	log, ok := FindLogNear(ev.Receipt, ev.LogIndex, LogFilter{Emitter: npm, Topic0: topic, Topics: 2})
	if !ok {
		e.metrics.skipped(ev.Kind(), "no_position_event")
		return
	}

	tokenID := TopicUint(log.Topics[1])
	pos, ok := e.loadPosition(ctx, &ev.Meta, tokenID)
	if !ok {
		e.metrics.skipped(ev.Kind(), "not_whitelisted")
		return
	}
	if !pos.Bound() {
		e.bind(ctx, pos, pool.Address)
		e.store.SavePosition(pos)
	}
	e.metrics.handled(ev.Kind())
}
