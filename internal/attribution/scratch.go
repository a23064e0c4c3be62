package attribution

import (
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"lpAttribution/internal/model"
)

type scratchKey struct {
	tx   common.Hash
	pool common.Address
}

// Scratchpad holds per-(transaction, pool) partial observations. Records are
// removed when a mint finalizes, a burn clears them, or the transaction ends.
type Scratchpad struct {
	records map[scratchKey]*model.TxScratch
}

// NewScratchpad returns an empty scratchpad.
func NewScratchpad() *Scratchpad {
	return &Scratchpad{records: make(map[scratchKey]*model.TxScratch)}
}

// Get returns the record for (tx, pool), creating it if absent.
func (s *Scratchpad) Get(tx common.Hash, pool common.Address) *model.TxScratch {
	key := scratchKey{tx: tx, pool: pool}
	rec, ok := s.records[key]
	if !ok {
		rec = model.NewTxScratch(tx, pool)
		s.records[key] = rec
	}
	return rec
}

// Peek returns the record for (tx, pool) without creating it.
func (s *Scratchpad) Peek(tx common.Hash, pool common.Address) (*model.TxScratch, bool) {
	rec, ok := s.records[scratchKey{tx: tx, pool: pool}]
	return rec, ok
}

// RecordMintTransfer stores the resolved recipient of a zero-address LP mint.
// A later mint transfer in the same transaction replaces the earlier one.
func (s *Scratchpad) RecordMintTransfer(tx common.Hash, pool, recipient common.Address, amount *big.Int) *model.TxScratch {
	rec := s.Get(tx, pool)
	rec.MintRecipient = recipient
	rec.MintLP = new(big.Int).Set(orZero(amount))
	rec.RecipientReady = true
	return rec
}

// RecordMintAmounts stores the token amounts of a pool Mint event.
func (s *Scratchpad) RecordMintAmounts(tx common.Hash, pool common.Address, amount0, amount1 *big.Int) *model.TxScratch {
	rec := s.Get(tx, pool)
	rec.Amount0 = new(big.Int).Set(orZero(amount0))
	rec.Amount1 = new(big.Int).Set(orZero(amount1))
	rec.AmountsReady = true
	return rec
}

// RecordPendingBurn stores an LP transfer into the pool ahead of a burn.
func (s *Scratchpad) RecordPendingBurn(tx common.Hash, pool, sender common.Address, amount *big.Int) *model.TxScratch {
	rec := s.Get(tx, pool)
	rec.PendingSender = sender
	rec.PendingLP = new(big.Int).Add(rec.PendingLP, orZero(amount))
	return rec
}

// RecordBurned stores the LP amount the pool destroyed.
func (s *Scratchpad) RecordBurned(tx common.Hash, pool common.Address, amount *big.Int) *model.TxScratch {
	rec := s.Get(tx, pool)
	rec.BurnedLP = new(big.Int).Add(rec.BurnedLP, orZero(amount))
	return rec
}

// Clear resets and removes the record for (tx, pool).
func (s *Scratchpad) Clear(tx common.Hash, pool common.Address) {
	key := scratchKey{tx: tx, pool: pool}
	if rec, ok := s.records[key]; ok {
		rec.Reset()
		delete(s.records, key)
	}
}

// EndTransaction removes every record of tx and returns the ones that still
// held observations, ordered by pool.
func (s *Scratchpad) EndTransaction(tx common.Hash) []*model.TxScratch {
	var leftover []*model.TxScratch
	for key, rec := range s.records {
		if key.tx != tx {
			continue
		}
		if rec.State() != model.ScratchEmpty {
			leftover = append(leftover, rec)
		}
		delete(s.records, key)
	}
	sort.Slice(leftover, func(i, j int) bool {
		return leftover[i].Pool.Hex() < leftover[j].Pool.Hex()
	})
	return leftover
}

// Open returns the number of live records.
func (s *Scratchpad) Open() int {
	return len(s.records)
}
