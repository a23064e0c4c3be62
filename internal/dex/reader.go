package dex

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"lpAttribution/internal/model"
)

// Caller executes read-only contract calls.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// ReaderConfig names the contracts the reader talks to.
type ReaderConfig struct {
	PositionManager common.Address
	CLFactory       common.Address
}

// Reader performs the historical contract reads the attribution engine needs.
type Reader struct {
	caller Caller
	cfg    ReaderConfig
	tokens *TokenMetaCache
	logger *zap.Logger
}

// NewReader builds a reader over caller.
func NewReader(caller Caller, cfg ReaderConfig, logger *zap.Logger) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{
		caller: caller,
		cfg:    cfg,
		tokens: NewTokenMetaCache(),
		logger: logger,
	}
}

// PoolTokens reads token0 and token1 from a pool.
func (r *Reader) PoolTokens(ctx context.Context, pool common.Address) (common.Address, common.Address, error) {
	pairABI, err := PairABI()
	if err != nil {
		return common.Address{}, common.Address{}, fmt.Errorf("parse pair abi: %w", err)
	}

	values, err := r.call(ctx, pool, pairABI, "token0", nil)
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	token0, err := asAddress(values[0])
	if err != nil {
		return common.Address{}, common.Address{}, fmt.Errorf("token0: %w", err)
	}

	values, err = r.call(ctx, pool, pairABI, "token1", nil)
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	token1, err := asAddress(values[0])
	if err != nil {
		return common.Address{}, common.Address{}, fmt.Errorf("token1: %w", err)
	}
	return token0, token1, nil
}

// Position reads positions(tokenId) from the position manager at block.
func (r *Reader) Position(ctx context.Context, tokenID *big.Int, block uint64) (model.PositionInfo, error) {
	if r.cfg.PositionManager == (common.Address{}) {
		return model.PositionInfo{}, fmt.Errorf("position manager not configured")
	}
	npmABI, err := PositionManagerABI()
	if err != nil {
		return model.PositionInfo{}, fmt.Errorf("parse position manager abi: %w", err)
	}

	values, err := r.call(ctx, r.cfg.PositionManager, npmABI, "positions", blockArg(block), tokenID)
	if err != nil {
		return model.PositionInfo{}, err
	}
	if len(values) < 8 {
		return model.PositionInfo{}, fmt.Errorf("unexpected positions values: %d", len(values))
	}

	token0, err := asAddress(values[2])
	if err != nil {
		return model.PositionInfo{}, fmt.Errorf("token0: %w", err)
	}
	token1, err := asAddress(values[3])
	if err != nil {
		return model.PositionInfo{}, fmt.Errorf("token1: %w", err)
	}
	ticks := make([]int32, 0, 3)
	for _, value := range values[4:7] {
		raw, err := asBigInt(value)
		if err != nil {
			return model.PositionInfo{}, err
		}
		tick, err := int24FromBig(raw)
		if err != nil {
			return model.PositionInfo{}, err
		}
		ticks = append(ticks, tick)
	}
	liquidity, err := asBigInt(values[7])
	if err != nil {
		return model.PositionInfo{}, fmt.Errorf("liquidity: %w", err)
	}

	return model.PositionInfo{
		Token0:      token0,
		Token1:      token1,
		TickSpacing: ticks[0],
		TickLower:   ticks[1],
		TickUpper:   ticks[2],
		Liquidity:   liquidity,
	}, nil
}

// OwnerOf reads the current holder of a position NFT at block.
func (r *Reader) OwnerOf(ctx context.Context, tokenID *big.Int, block uint64) (common.Address, error) {
	if r.cfg.PositionManager == (common.Address{}) {
		return common.Address{}, fmt.Errorf("position manager not configured")
	}
	npmABI, err := PositionManagerABI()
	if err != nil {
		return common.Address{}, fmt.Errorf("parse position manager abi: %w", err)
	}
	values, err := r.call(ctx, r.cfg.PositionManager, npmABI, "ownerOf", blockArg(block), tokenID)
	if err != nil {
		return common.Address{}, err
	}
	return asAddress(values[0])
}

// PoolFor asks the concentrated-liquidity factory for the pool created with
// the given parameters.
func (r *Reader) PoolFor(ctx context.Context, token0, token1 common.Address, tickSpacing int32) (common.Address, error) {
	if r.cfg.CLFactory == (common.Address{}) {
		return common.Address{}, fmt.Errorf("cl factory not configured")
	}
	factoryABI, err := CLFactoryABI()
	if err != nil {
		return common.Address{}, fmt.Errorf("parse cl factory abi: %w", err)
	}
	values, err := r.call(ctx, r.cfg.CLFactory, factoryABI, "getPool", nil, token0, token1, big.NewInt(int64(tickSpacing)))
	if err != nil {
		return common.Address{}, err
	}
	return asAddress(values[0])
}

// TokenMeta returns cached ERC20 metadata, fetching it on first use. A failed
// fetch is cached as a partial record so the token is not retried.
func (r *Reader) TokenMeta(ctx context.Context, token common.Address) (model.TokenMeta, error) {
	if meta, ok := r.tokens.Get(token); ok {
		return meta, nil
	}
	meta, err := FetchTokenMeta(ctx, r.caller, token, r.logger)
	if err != nil {
		r.logger.Warn("token metadata fetch failed", zap.String("token", token.Hex()), zap.Error(err))
	}
	r.tokens.Set(token, meta)
	return meta, err
}

func (r *Reader) call(ctx context.Context, to common.Address, parsed abi.ABI, method string, block *big.Int, args ...interface{}) ([]interface{}, error) {
	if r.caller == nil {
		return nil, fmt.Errorf("caller is nil")
	}
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &to, Data: data}
	resp, err := r.caller.CallContract(ctx, msg, block)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("unpack %s: empty result", method)
	}
	return values, nil
}

func blockArg(block uint64) *big.Int {
	if block == 0 {
		return nil
	}
	return new(big.Int).SetUint64(block)
}
