// Package memory provides the in-process entity store the attribution engine
// replays into. Reads and writes copy entities so callers never alias stored
// state.
package memory

import (
	"math/big"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"lpAttribution/internal/model"
)

// Store is a thread-safe in-memory entity store.
type Store struct {
	mu           sync.RWMutex
	pools        map[common.Address]*model.Pool
	poolKeys     map[string]common.Address
	tokens       map[common.Address]model.TokenMeta
	shares       map[string]*model.LPShare
	attributions map[string]*model.DepositAttribution
	positions    map[string]*model.Position
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		pools:        make(map[common.Address]*model.Pool),
		poolKeys:     make(map[string]common.Address),
		tokens:       make(map[common.Address]model.TokenMeta),
		shares:       make(map[string]*model.LPShare),
		attributions: make(map[string]*model.DepositAttribution),
		positions:    make(map[string]*model.Position),
	}
}

func (s *Store) Pool(addr common.Address) (*model.Pool, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pool, ok := s.pools[addr]
	return pool.Clone(), ok
}

// SavePool stores pool and indexes concentrated pools by their creation key.
func (s *Store) SavePool(pool *model.Pool) {
	if pool == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pools[pool.Address] = pool.Clone()
	if pool.Kind == model.PoolKindConcentrated && pool.HasTokens() && pool.TickSpacing != 0 {
		s.poolKeys[model.PoolKeyID(pool.Token0, pool.Token1, pool.TickSpacing)] = pool.Address
	}
}

func (s *Store) PoolByKey(key string) (common.Address, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	addr, ok := s.poolKeys[key]
	return addr, ok
}

func (s *Store) Token(addr common.Address) (model.TokenMeta, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	meta, ok := s.tokens[addr]
	return meta, ok
}

func (s *Store) SaveToken(meta model.TokenMeta) {
	if !common.IsHexAddress(meta.Address) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[common.HexToAddress(meta.Address)] = meta
}

func (s *Store) Share(pool, holder common.Address) (*model.LPShare, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	share, ok := s.shares[model.ShareID(pool, holder)]
	return share.Clone(), ok
}

func (s *Store) SaveShare(share *model.LPShare) {
	if share == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shares[model.ShareID(share.Pool, share.Holder)] = share.Clone()
}

func (s *Store) Attribution(pool, user, token common.Address) (*model.DepositAttribution, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	attr, ok := s.attributions[model.AttributionID(pool, user, token)]
	return attr.Clone(), ok
}

func (s *Store) SaveAttribution(attr *model.DepositAttribution) {
	if attr == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attributions[model.AttributionID(attr.Pool, attr.User, attr.Token)] = attr.Clone()
}

func (s *Store) Position(tokenID *big.Int) (*model.Position, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pos, ok := s.positions[model.PositionID(tokenID)]
	return pos.Clone(), ok
}

func (s *Store) SavePosition(pos *model.Position) {
	if pos == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions[model.PositionID(pos.TokenID)] = pos.Clone()
}

// Attributions returns every attribution of user, sorted by pool then token.
func (s *Store) Attributions(user common.Address) []*model.DepositAttribution {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.DepositAttribution
	for _, attr := range s.attributions {
		if attr.User == user {
			out = append(out, attr.Clone())
		}
	}
	sortAttributions(out)
	return out
}

// Snapshot copies every entity in deterministic order.
func (s *Store) Snapshot() model.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := model.Snapshot{
		Pools:        make([]*model.Pool, 0, len(s.pools)),
		Tokens:       make([]model.TokenMeta, 0, len(s.tokens)),
		Shares:       make([]*model.LPShare, 0, len(s.shares)),
		Attributions: make([]*model.DepositAttribution, 0, len(s.attributions)),
		Positions:    make([]*model.Position, 0, len(s.positions)),
	}
	for _, pool := range s.pools {
		snap.Pools = append(snap.Pools, pool.Clone())
	}
	sort.Slice(snap.Pools, func(i, j int) bool {
		return model.AddressKey(snap.Pools[i].Address) < model.AddressKey(snap.Pools[j].Address)
	})
	for _, meta := range s.tokens {
		snap.Tokens = append(snap.Tokens, meta)
	}
	sort.Slice(snap.Tokens, func(i, j int) bool {
		return snap.Tokens[i].Address < snap.Tokens[j].Address
	})
	for _, share := range s.shares {
		snap.Shares = append(snap.Shares, share.Clone())
	}
	sort.Slice(snap.Shares, func(i, j int) bool {
		return model.ShareID(snap.Shares[i].Pool, snap.Shares[i].Holder) < model.ShareID(snap.Shares[j].Pool, snap.Shares[j].Holder)
	})
	for _, attr := range s.attributions {
		snap.Attributions = append(snap.Attributions, attr.Clone())
	}
	sortAttributions(snap.Attributions)
	for _, pos := range s.positions {
		snap.Positions = append(snap.Positions, pos.Clone())
	}
	sort.Slice(snap.Positions, func(i, j int) bool {
		return snap.Positions[i].TokenID.Cmp(snap.Positions[j].TokenID) < 0
	})
	return snap
}

// Restore loads snap on top of the current contents.
func (s *Store) Restore(snap model.Snapshot) {
	for _, pool := range snap.Pools {
		s.SavePool(pool)
	}
	for _, meta := range snap.Tokens {
		s.SaveToken(meta)
	}
	for _, share := range snap.Shares {
		s.SaveShare(share)
	}
	for _, attr := range snap.Attributions {
		s.SaveAttribution(attr)
	}
	for _, pos := range snap.Positions {
		s.SavePosition(pos)
	}
}

func sortAttributions(attrs []*model.DepositAttribution) {
	sort.Slice(attrs, func(i, j int) bool {
		return model.AttributionID(attrs[i].Pool, attrs[i].User, attrs[i].Token) <
			model.AttributionID(attrs[j].Pool, attrs[j].User, attrs[j].Token)
	})
}
