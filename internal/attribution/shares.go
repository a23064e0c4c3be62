package attribution

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"lpAttribution/internal/model"
)

// ShareLedger tracks constant-product LP-token balances per holder.
type ShareLedger struct {
	store   Store
	ledger  *Ledger
	metrics *Metrics
	logger  *zap.Logger
}

// NewShareLedger builds a share ledger that moves basis through ledger.
func NewShareLedger(store Store, ledger *Ledger, metrics *Metrics, logger *zap.Logger) *ShareLedger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ShareLedger{store: store, ledger: ledger, metrics: metrics, logger: logger}
}

// ShareOf returns the holder's balance, zero when absent.
func (s *ShareLedger) ShareOf(pool, holder common.Address) *big.Int {
	share, ok := s.store.Share(pool, holder)
	if !ok {
		return new(big.Int)
	}
	return share.Amount
}

// Credit adds amount to the holder's balance.
func (s *ShareLedger) Credit(pool, holder common.Address, amount *big.Int) {
	if !positive(amount) || holder == (common.Address{}) {
		return
	}
	share, ok := s.store.Share(pool, holder)
	if !ok {
		share = &model.LPShare{Pool: pool, Holder: holder, Amount: new(big.Int)}
	}
	share.Amount.Add(share.Amount, amount)
	s.store.SaveShare(share)
}

// Debit subtracts amount, clamping at zero, and returns what was removed.
func (s *ShareLedger) Debit(pool, holder common.Address, amount *big.Int) *big.Int {
	if !positive(amount) {
		return new(big.Int)
	}
	share, ok := s.store.Share(pool, holder)
	if !ok {
		return new(big.Int)
	}
	before := new(big.Int).Set(share.Amount)
	next, residue := SubClamped(share.Amount, amount)
	if residue.Sign() > 0 {
		s.metrics.clamped("share")
	}
	share.Amount = next
	s.store.SaveShare(share)
	return before.Sub(before, next)
}

// MoveProportional transfers amount of LP shares and the same fraction of
// every token basis the sender holds in the pool. An untracked sender is a
// no-op.
func (s *ShareLedger) MoveProportional(pool *model.Pool, from, to common.Address, amount *big.Int) *big.Int {
	if pool == nil || from == to || !positive(amount) {
		return new(big.Int)
	}
	balance := s.ShareOf(pool.Address, from)
	if balance.Sign() <= 0 {
		s.logger.Debug("lp transfer from untracked holder",
			zap.String("pool", pool.Address.Hex()),
			zap.String("from", from.Hex()),
		)
		return new(big.Int)
	}

	for _, token := range pool.Tokens() {
		s.ledger.MoveProportional(pool.Address, from, to, token, amount, balance)
	}

	moved := s.Debit(pool.Address, from, amount)
	s.Credit(pool.Address, to, moved)
	return moved
}
