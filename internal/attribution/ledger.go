package attribution

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"lpAttribution/internal/model"
)

// Ledger keeps the token-denominated deposited basis per (pool, user, token).
// Balances never go negative.
type Ledger struct {
	store   Store
	metrics *Metrics
	logger  *zap.Logger
}

// NewLedger builds a ledger over store.
func NewLedger(store Store, metrics *Metrics, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{store: store, metrics: metrics, logger: logger}
}

// BalanceOf returns the current basis, zero when absent.
func (l *Ledger) BalanceOf(pool, user, token common.Address) *big.Int {
	attr, ok := l.store.Attribution(pool, user, token)
	if !ok {
		return new(big.Int)
	}
	return attr.Balance
}

// Increase adds amount to the basis, creating the record at zero if absent.
func (l *Ledger) Increase(pool, user, token common.Address, amount *big.Int) {
	if !positive(amount) || !writable(user, token) {
		return
	}
	attr := l.load(pool, user, token)
	attr.Balance.Add(attr.Balance, amount)
	l.store.SaveAttribution(attr)
}

// Decrease subtracts amount, clamping at zero. It returns the amount actually
// removed.
func (l *Ledger) Decrease(pool, user, token common.Address, amount *big.Int) *big.Int {
	if !positive(amount) || !writable(user, token) {
		return new(big.Int)
	}
	attr, ok := l.store.Attribution(pool, user, token)
	if !ok {
		return new(big.Int)
	}
	before := new(big.Int).Set(attr.Balance)
	next, residue := SubClamped(attr.Balance, amount)
	if residue.Sign() > 0 {
		l.metrics.clamped("basis")
		l.logger.Debug("basis decrease clamped",
			zap.String("pool", pool.Hex()),
			zap.String("user", user.Hex()),
			zap.String("token", token.Hex()),
			zap.String("residue", residue.String()),
		)
	}
	attr.Balance = next
	l.store.SaveAttribution(attr)
	return before.Sub(before, next)
}

// DecreaseProportional removes floor(balance * num / den), bounded to
// [0, balance], and returns the deduction.
func (l *Ledger) DecreaseProportional(pool, user, token common.Address, num, den *big.Int) *big.Int {
	if !writable(user, token) {
		return new(big.Int)
	}
	attr, ok := l.store.Attribution(pool, user, token)
	if !ok {
		return new(big.Int)
	}
	deduction := Proportion(attr.Balance, num, den)
	if deduction.Sign() == 0 {
		return deduction
	}
	attr.Balance.Sub(attr.Balance, deduction)
	l.store.SaveAttribution(attr)
	return deduction
}

// Move transfers up to amount of basis from one user to another. The
// recipient is credited with exactly what was removed from the sender.
func (l *Ledger) Move(pool, from, to, token common.Address, amount *big.Int) *big.Int {
	if from == to {
		return new(big.Int)
	}
	moved := l.Decrease(pool, from, token, amount)
	l.Increase(pool, to, token, moved)
	return moved
}

// MoveProportional transfers floor(balance * num / den) of the sender's
// basis to the recipient.
func (l *Ledger) MoveProportional(pool, from, to, token common.Address, num, den *big.Int) *big.Int {
	if from == to {
		return new(big.Int)
	}
	moved := l.DecreaseProportional(pool, from, token, num, den)
	l.Increase(pool, to, token, moved)
	return moved
}

func (l *Ledger) load(pool, user, token common.Address) *model.DepositAttribution {
	if attr, ok := l.store.Attribution(pool, user, token); ok {
		return attr
	}
	return &model.DepositAttribution{Pool: pool, User: user, Token: token, Balance: new(big.Int)}
}

func writable(user, token common.Address) bool {
	return user != (common.Address{}) && token != (common.Address{})
}
