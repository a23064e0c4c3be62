package attribution

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"lpAttribution/internal/model"
)

// Whitelist is the injected set of pools the engine attributes.
type Whitelist struct {
	set AddressSet
}

// NewWhitelist parses hex addresses case-insensitively.
func NewWhitelist(addrs []string) (Whitelist, error) {
	set := make(AddressSet, len(addrs))
	for _, raw := range addrs {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if !common.IsHexAddress(raw) {
			return Whitelist{}, fmt.Errorf("invalid whitelist address: %s", raw)
		}
		set[common.HexToAddress(raw)] = struct{}{}
	}
	return Whitelist{set: set}, nil
}

// Contains reports whether addr is whitelisted.
func (w Whitelist) Contains(addr common.Address) bool {
	return w.set.Contains(addr)
}

// Len returns the whitelist size.
func (w Whitelist) Len() int {
	return len(w.set)
}

// Registry admits whitelisted pools and records their tokens.
type Registry struct {
	store     Store
	reader    ContractReader
	tokens    TokenSource
	sources   DataSources
	whitelist Whitelist
	metrics   *Metrics
	logger    *zap.Logger

	// pools whose token read was already attempted
	tokenReads map[common.Address]struct{}
}

// NewRegistry builds a registry. reader, tokens and sources may be nil.
func NewRegistry(store Store, whitelist Whitelist, reader ContractReader, tokens TokenSource, sources DataSources, metrics *Metrics, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		store:      store,
		reader:     reader,
		tokens:     tokens,
		sources:    sources,
		whitelist:  whitelist,
		metrics:    metrics,
		logger:     logger,
		tokenReads: make(map[common.Address]struct{}),
	}
}

// RegisterIfWhitelisted records a pool announced by a factory. Non-whitelisted
// pools are ignored and nil is returned. Known pools keep their tokens.
func (r *Registry) RegisterIfWhitelisted(ctx context.Context, addr, token0, token1 common.Address, kind model.PoolKind, tickSpacing int32, block uint64) *model.Pool {
	if !r.whitelist.Contains(addr) {
		return nil
	}
	pool, existed := r.store.Pool(addr)
	if !existed {
		pool = &model.Pool{Address: addr, Kind: kind, CreatedBlock: block}
	}
	if pool.Kind == model.PoolKindUnknown {
		pool.Kind = kind
	}
	if pool.CreatedBlock == 0 || (block > 0 && block < pool.CreatedBlock) {
		pool.CreatedBlock = block
	}
	if kind == model.PoolKindConcentrated && pool.TickSpacing == 0 {
		pool.TickSpacing = tickSpacing
	}
	r.setTokens(ctx, pool, token0, token1)
	r.store.SavePool(pool)

	if !existed {
		r.admitted(pool)
	}
	return pool
}

// Resolve returns the whitelisted pool at addr, registering it on first sight
// and reading its tokens from chain. The read happens at most once per pool;
// a failed read leaves the tokens empty.
func (r *Registry) Resolve(ctx context.Context, addr common.Address, kind model.PoolKind) *model.Pool {
	if !r.whitelist.Contains(addr) {
		return nil
	}
	if pool, ok := r.store.Pool(addr); ok {
		if pool.HasTokens() {
			return pool
		}
		r.fillTokens(ctx, pool)
		return pool
	}

	pool := &model.Pool{Address: addr, Kind: kind}
	r.fillTokens(ctx, pool)
	r.store.SavePool(pool)
	r.admitted(pool)
	return pool
}

// PoolForKey looks up a concentrated pool by (token0, token1, tickSpacing).
func (r *Registry) PoolForKey(token0, token1 common.Address, tickSpacing int32) (common.Address, bool) {
	return r.store.PoolByKey(model.PoolKeyID(token0, token1, tickSpacing))
}

func (r *Registry) fillTokens(ctx context.Context, pool *model.Pool) {
	if r.reader == nil {
		return
	}
	if _, tried := r.tokenReads[pool.Address]; tried {
		return
	}
	r.tokenReads[pool.Address] = struct{}{}
	token0, token1, err := r.reader.PoolTokens(ctx, pool.Address)
	if err != nil {
		r.metrics.degraded("pool_tokens")
		r.logger.Warn("pool token read failed", zap.String("pool", pool.Address.Hex()), zap.Error(err))
		return
	}
	r.setTokens(ctx, pool, token0, token1)
	r.store.SavePool(pool)
}

func (r *Registry) setTokens(ctx context.Context, pool *model.Pool, token0, token1 common.Address) {
	if pool.Token0 == (common.Address{}) && token0 != (common.Address{}) {
		pool.Token0 = token0
		r.recordToken(ctx, token0)
	}
	if pool.Token1 == (common.Address{}) && token1 != (common.Address{}) {
		pool.Token1 = token1
		r.recordToken(ctx, token1)
	}
}

func (r *Registry) recordToken(ctx context.Context, token common.Address) {
	if _, ok := r.store.Token(token); ok {
		return
	}
	meta := model.TokenMeta{Address: token.Hex()}
	if r.tokens != nil {
		fetched, err := r.tokens.TokenMeta(ctx, token)
		if err != nil {
			r.metrics.degraded("token_meta")
		}
		if fetched.Address != "" {
			meta = fetched
		}
	}
	r.store.SaveToken(meta)
}

func (r *Registry) admitted(pool *model.Pool) {
	r.metrics.registered(pool.Kind.String())
	r.logger.Info("pool registered",
		zap.String("pool", pool.Address.Hex()),
		zap.String("kind", pool.Kind.String()),
		zap.String("token0", pool.Token0.Hex()),
		zap.String("token1", pool.Token1.Hex()),
	)
	if r.sources != nil {
		r.sources.Track(pool.Address, pool.Kind)
	}
}
