package replay

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// ReceiptSource returns every log of a transaction in log-index order. local
// holds the transaction's logs found in the input.
type ReceiptSource interface {
	Receipt(ctx context.Context, tx common.Hash, local []*types.Log) []*types.Log
}

// InputReceipts treats the input's own logs as the receipt.
type InputReceipts struct{}

func (InputReceipts) Receipt(_ context.Context, _ common.Hash, local []*types.Log) []*types.Log {
	return local
}

// ReceiptFetcher reads a full receipt over RPC.
type ReceiptFetcher interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// ChainReceipts fetches receipts from the chain and caches them per
// transaction. A failed fetch falls back to the input logs.
type ChainReceipts struct {
	fetcher ReceiptFetcher
	logger  *zap.Logger

	mu    sync.Mutex
	cache map[common.Hash][]*types.Log
}

func NewChainReceipts(fetcher ReceiptFetcher, logger *zap.Logger) *ChainReceipts {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChainReceipts{
		fetcher: fetcher,
		logger:  logger,
		cache:   make(map[common.Hash][]*types.Log),
	}
}

func (c *ChainReceipts) Receipt(ctx context.Context, tx common.Hash, local []*types.Log) []*types.Log {
	c.mu.Lock()
	cached, ok := c.cache[tx]
	c.mu.Unlock()
	if ok {
		return cached
	}

	receipt, err := c.fetcher.TransactionReceipt(ctx, tx)
	if err != nil || receipt == nil {
		c.logger.Warn("receipt fetch failed, using input logs", zap.String("tx", tx.Hex()), zap.Error(err))
		return local
	}

	c.mu.Lock()
	c.cache[tx] = receipt.Logs
	c.mu.Unlock()
	return receipt.Logs
}

// OriginFetcher resolves a transaction's signer.
type OriginFetcher interface {
	TransactionOrigin(ctx context.Context, blockHash, txHash common.Hash, txIndex uint) (common.Address, error)
}

func resolveOrigin(ctx context.Context, fetcher OriginFetcher, recorded string, log *types.Log) (common.Address, error) {
	if recorded != "" {
		origin, err := parseAddress(recorded)
		if err != nil {
			return common.Address{}, fmt.Errorf("tx_from: %w", err)
		}
		return origin, nil
	}
	if fetcher == nil {
		return common.Address{}, nil
	}
	origin, err := fetcher.TransactionOrigin(ctx, log.BlockHash, log.TxHash, log.TxIndex)
	if err != nil {
		return common.Address{}, fmt.Errorf("tx origin %s: %w", log.TxHash.Hex(), err)
	}
	return origin, nil
}
