package price

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/anthroposcity/actgate/internal/models"
	"github.com/anthroposcity/actgate/pkg/logger"
)

const floatPrec = 256

// q96 is 2^96, the fixed-point scale of sqrtPriceX96
var q96 = new(big.Float).SetPrec(floatPrec).SetInt(new(big.Int).Lsh(big.NewInt(1), 96))

// OnChain derives the ACT spot price from an ACT/WETH pool and a WETH/stable pool.
// Nothing is cached: every call re-reads both pools.
type OnChain struct {
	logger     *logger.Logger
	pools      models.PoolReader
	token      common.Address
	tokenPool  common.Address
	stablePool common.Address
}

func NewOnChain(pools models.PoolReader, token, tokenPool, stablePool common.Address, logger *logger.Logger) *OnChain {
	return &OnChain{logger: logger, pools: pools, token: token, tokenPool: tokenPool, stablePool: stablePool}
}

// PriceFromSqrtPriceX96 returns the price of token0 expressed in token1:
// (sqrtPriceX96 / 2^96)^2 * 10^(decimals0 - decimals1).
func PriceFromSqrtPriceX96(sqrtPriceX96 *big.Int, decimals0, decimals1 uint8) *big.Float {
	ratio := new(big.Float).SetPrec(floatPrec).SetInt(sqrtPriceX96)
	ratio.Quo(ratio, q96)
	price := new(big.Float).SetPrec(floatPrec).Mul(ratio, ratio)

	exp := int64(decimals0) - int64(decimals1)
	scale := new(big.Float).SetPrec(floatPrec).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(abs(exp)), nil))
	if exp >= 0 {
		return price.Mul(price, scale)
	}
	return price.Quo(price, scale)
}

// Stats only fills Price: pools say nothing about holders or market cap.
func (o *OnChain) Stats(ctx context.Context) (*models.TokenStats, error) {
	price, err := o.priceUSD(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrPriceUnavailable, err)
	}
	return &models.TokenStats{Price: price}, nil
}

func (o *OnChain) priceUSD(ctx context.Context) (float64, error) {
	// WETH per ACT
	wethPerToken, weth, err := o.quote(ctx, o.tokenPool, o.token)
	if err != nil {
		return 0, fmt.Errorf("token pool: %w", err)
	}
	// stable per WETH
	usdPerWETH, _, err := o.quote(ctx, o.stablePool, weth)
	if err != nil {
		return 0, fmt.Errorf("stable pool: %w", err)
	}

	usd, _ := new(big.Float).SetPrec(floatPrec).Mul(wethPerToken, usdPerWETH).Float64()
	if !validPrice(usd) {
		return 0, fmt.Errorf("derived unusable price %v", usd)
	}
	o.logger.Debug("Derived ACT price from pools", "price_usd", usd)
	return usd, nil
}

// quote returns how much of the pool's other token one unit of base is worth,
// along with that other token's address. Pool ordering is read, not assumed.
func (o *OnChain) quote(ctx context.Context, pool, base common.Address) (*big.Float, common.Address, error) {
	token0, token1, err := o.pools.GetPoolTokens(ctx, pool)
	if err != nil {
		return nil, common.Address{}, err
	}

	var other common.Address
	switch base {
	case token0:
		other = token1
	case token1:
		other = token0
	default:
		return nil, common.Address{}, fmt.Errorf("pool %s does not hold %s", pool.Hex(), base.Hex())
	}

	slot0, err := o.pools.GetPoolSlot0(ctx, pool)
	if err != nil {
		return nil, common.Address{}, err
	}
	if slot0.SqrtPriceX96 == nil || slot0.SqrtPriceX96.Sign() <= 0 {
		return nil, common.Address{}, fmt.Errorf("pool %s is not initialized", pool.Hex())
	}
	o.logger.Debug("Pool state read", "pool", pool.Hex(), "sqrt_price_x96", slot0.SqrtPriceX96.String(), "tick", slot0.Tick)

	decimals0, err := o.pools.GetTokenDecimals(ctx, token0)
	if err != nil {
		return nil, common.Address{}, err
	}
	decimals1, err := o.pools.GetTokenDecimals(ctx, token1)
	if err != nil {
		return nil, common.Address{}, err
	}

	price := PriceFromSqrtPriceX96(slot0.SqrtPriceX96, decimals0, decimals1)
	if base == token1 {
		price = new(big.Float).SetPrec(floatPrec).Quo(big.NewFloat(1).SetPrec(floatPrec), price)
	}
	return price, other, nil
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
