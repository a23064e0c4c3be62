package replay

import (
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"lpAttribution/internal/model"
)

// Watchlist collects the pools the engine admitted. Its addresses are what a
// follow-up `run` needs to fetch.
type Watchlist struct {
	mu    sync.Mutex
	pools map[common.Address]model.PoolKind
}

func NewWatchlist() *Watchlist {
	return &Watchlist{pools: make(map[common.Address]model.PoolKind)}
}

// Track records pool.
func (w *Watchlist) Track(pool common.Address, kind model.PoolKind) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pools[pool] = kind
}

// Kind reports the kind a pool was tracked with.
func (w *Watchlist) Kind(pool common.Address) (model.PoolKind, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	kind, ok := w.pools[pool]
	return kind, ok
}

// Addresses returns the tracked pools sorted by address.
func (w *Watchlist) Addresses() []common.Address {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]common.Address, 0, len(w.pools))
	for addr := range w.pools {
		out = append(out, addr)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Cmp(out[j]) < 0
	})
	return out
}
