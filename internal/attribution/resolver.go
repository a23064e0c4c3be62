package attribution

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// AddressSet is a set of addresses.
type AddressSet map[common.Address]struct{}

// NewAddressSet builds a set from addrs.
func NewAddressSet(addrs ...common.Address) AddressSet {
	set := make(AddressSet, len(addrs))
	for _, addr := range addrs {
		set[addr] = struct{}{}
	}
	return set
}

// Contains reports membership.
func (s AddressSet) Contains(addr common.Address) bool {
	_, ok := s[addr]
	return ok
}

// Correlation describes the same-transaction Transfer that reveals who an
// intermediary acted for.
type Correlation struct {
	Filter LogFilter
	// AddressTopic is the topic index holding the beneficiary.
	AddressTopic int
}

// Request carries everything the strategies may consult.
type Request struct {
	// Candidates are direct addresses in priority order.
	Candidates []common.Address
	TxOrigin   common.Address
	Receipt    []*types.Log
	LogIndex   uint
	Correlate  *Correlation
	// Lookup performs a contract read for the owner. It is only invoked when
	// the cheaper strategies fail.
	Lookup func() (common.Address, bool)
}

// Strategy is one way of resolving the economic owner of an action.
type Strategy interface {
	Name() string
	Resolve(req Request, intermediaries AddressSet) (common.Address, bool)
}

// DirectStrategy returns the first candidate that is neither zero nor an
// intermediary.
type DirectStrategy struct{}

func (DirectStrategy) Name() string { return "direct" }

func (DirectStrategy) Resolve(req Request, intermediaries AddressSet) (common.Address, bool) {
	for _, candidate := range req.Candidates {
		if usable(candidate, intermediaries) {
			return candidate, true
		}
	}
	return common.Address{}, false
}

// CorrelatedTransferStrategy scans the receipt for a matching Transfer and
// reads the beneficiary from it.
type CorrelatedTransferStrategy struct{}

func (CorrelatedTransferStrategy) Name() string { return "correlated_transfer" }

func (CorrelatedTransferStrategy) Resolve(req Request, intermediaries AddressSet) (common.Address, bool) {
	if req.Correlate == nil || len(req.Receipt) == 0 {
		return common.Address{}, false
	}
	filter := req.Correlate.Filter
	topic := req.Correlate.AddressTopic
	inner := filter.Match
	filter.Match = func(log *types.Log) bool {
		if len(log.Topics) <= topic {
			return false
		}
		if !usable(TopicAddress(log.Topics[topic]), intermediaries) {
			return false
		}
		return inner == nil || inner(log)
	}
	log, ok := FindLog(req.Receipt, filter)
	if !ok {
		return common.Address{}, false
	}
	return TopicAddress(log.Topics[topic]), true
}

// LookupStrategy asks the chain who owns the asset.
type LookupStrategy struct{}

func (LookupStrategy) Name() string { return "lookup" }

func (LookupStrategy) Resolve(req Request, intermediaries AddressSet) (common.Address, bool) {
	if req.Lookup == nil {
		return common.Address{}, false
	}
	owner, ok := req.Lookup()
	if !ok || !usable(owner, intermediaries) {
		return common.Address{}, false
	}
	return owner, true
}

// TxOriginStrategy falls back to the transaction signer.
type TxOriginStrategy struct{}

func (TxOriginStrategy) Name() string { return "tx_origin" }

func (TxOriginStrategy) Resolve(req Request, _ AddressSet) (common.Address, bool) {
	if req.TxOrigin == (common.Address{}) {
		return common.Address{}, false
	}
	return req.TxOrigin, true
}

// Resolver applies strategies in order until one succeeds.
type Resolver struct {
	strategies     []Strategy
	intermediaries AddressSet
	logger         *zap.Logger
}

// NewResolver builds a resolver with the default strategy chain: direct
// candidates, correlated transfer, contract lookup, transaction origin.
func NewResolver(intermediaries AddressSet, logger *zap.Logger, strategies ...Strategy) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if intermediaries == nil {
		intermediaries = AddressSet{}
	}
	if len(strategies) == 0 {
		strategies = []Strategy{DirectStrategy{}, CorrelatedTransferStrategy{}, LookupStrategy{}, TxOriginStrategy{}}
	}
	return &Resolver{strategies: strategies, intermediaries: intermediaries, logger: logger}
}

// IsIntermediary reports whether addr is a known router or zapper.
func (r *Resolver) IsIntermediary(addr common.Address) bool {
	return r.intermediaries.Contains(addr)
}

// Resolve returns the economic owner and the strategy that produced it. The
// zero address is returned only when every strategy fails.
func (r *Resolver) Resolve(req Request) (common.Address, string) {
	for _, strategy := range r.strategies {
		if owner, ok := strategy.Resolve(req, r.intermediaries); ok {
			return owner, strategy.Name()
		}
	}
	return common.Address{}, ""
}

func usable(addr common.Address, intermediaries AddressSet) bool {
	return addr != (common.Address{}) && !intermediaries.Contains(addr)
}
