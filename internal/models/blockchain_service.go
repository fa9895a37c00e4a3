package models

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// BalanceReader reads ERC-20 balances from the chain.
// Network failures are returned as errors wrapping ErrUpstreamUnavailable, never as a zero balance.
type BalanceReader interface {
	GetTokenBalance(ctx context.Context, token, owner common.Address) (*big.Int, error)
	GetTokenDecimals(ctx context.Context, token common.Address) (uint8, error)
}

// Slot0 is the subset of a Uniswap V3 pool's slot0 the price math needs.
type Slot0 struct {
	SqrtPriceX96 *big.Int
	Tick         *big.Int
}

// PoolReader reads Uniswap V3 style pool state.
type PoolReader interface {
	GetPoolSlot0(ctx context.Context, pool common.Address) (*Slot0, error)
	GetPoolTokens(ctx context.Context, pool common.Address) (token0, token1 common.Address, err error)
	GetTokenDecimals(ctx context.Context, token common.Address) (uint8, error)
}

// BlockchainService is everything the service reads from Arbitrum.
type BlockchainService interface {
	BalanceReader
	PoolReader
	Close() error
}
