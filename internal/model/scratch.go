package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ScratchState is the lifecycle stage of a transaction scratch record.
type ScratchState uint8

const (
	ScratchEmpty ScratchState = iota
	ScratchAwaitingPair
)

func (s ScratchState) String() string {
	if s == ScratchAwaitingPair {
		return "awaiting_pair"
	}
	return "empty"
}

// TxScratch holds the partial mint/burn observations of one transaction in
// one pool. It never outlives the transaction.
type TxScratch struct {
	TxHash common.Hash
	Pool   common.Address

	MintRecipient  common.Address
	MintLP         *big.Int
	RecipientReady bool

	Amount0      *big.Int
	Amount1      *big.Int
	AmountsReady bool

	PendingSender common.Address
	PendingLP     *big.Int
	BurnedLP      *big.Int
}

// NewTxScratch returns an empty record for tx and pool.
func NewTxScratch(tx common.Hash, pool common.Address) *TxScratch {
	s := &TxScratch{TxHash: tx, Pool: pool}
	s.Reset()
	return s
}

// Reset clears every observation, keeping the key.
func (s *TxScratch) Reset() {
	s.MintRecipient = common.Address{}
	s.MintLP = new(big.Int)
	s.RecipientReady = false
	s.Amount0 = new(big.Int)
	s.Amount1 = new(big.Int)
	s.AmountsReady = false
	s.PendingSender = common.Address{}
	s.PendingLP = new(big.Int)
	s.BurnedLP = new(big.Int)
}

// State reports whether any observation is pending.
func (s *TxScratch) State() ScratchState {
	if s.RecipientReady || s.AmountsReady ||
		s.PendingSender != (common.Address{}) ||
		s.PendingLP.Sign() != 0 || s.BurnedLP.Sign() != 0 {
		return ScratchAwaitingPair
	}
	return ScratchEmpty
}

// MintReady reports whether both halves of a mint have been observed.
func (s *TxScratch) MintReady() bool {
	return s.RecipientReady && s.AmountsReady
}
