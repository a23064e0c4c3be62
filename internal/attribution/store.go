package attribution

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"lpAttribution/internal/model"
)

// Store is the entity store the engine reads and writes. Loads return copies;
// a change is only visible after the matching Save.
type Store interface {
	Pool(addr common.Address) (*model.Pool, bool)
	SavePool(pool *model.Pool)
	PoolByKey(key string) (common.Address, bool)

	Token(addr common.Address) (model.TokenMeta, bool)
	SaveToken(meta model.TokenMeta)

	Share(pool, holder common.Address) (*model.LPShare, bool)
	SaveShare(share *model.LPShare)

	Attribution(pool, user, token common.Address) (*model.DepositAttribution, bool)
	SaveAttribution(attr *model.DepositAttribution)

	Position(tokenID *big.Int) (*model.Position, bool)
	SavePosition(pos *model.Position)
}

// ContractReader performs historical contract reads. Every method may fail;
// callers degrade instead of aborting.
type ContractReader interface {
	PoolTokens(ctx context.Context, pool common.Address) (common.Address, common.Address, error)
	Position(ctx context.Context, tokenID *big.Int, block uint64) (model.PositionInfo, error)
	OwnerOf(ctx context.Context, tokenID *big.Int, block uint64) (common.Address, error)
	PoolFor(ctx context.Context, token0, token1 common.Address, tickSpacing int32) (common.Address, error)
}

// TokenSource resolves ERC20 metadata for pool tokens.
type TokenSource interface {
	TokenMeta(ctx context.Context, token common.Address) (model.TokenMeta, error)
}

// DataSources is told about every pool the registry admits so the caller can
// start following its events.
type DataSources interface {
	Track(pool common.Address, kind model.PoolKind)
}
