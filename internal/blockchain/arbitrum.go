package blockchain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/anthroposcity/actgate/internal/models"
	"github.com/anthroposcity/actgate/pkg/logger"
)

const (
	// CallTimeout bounds a single eth_call round-trip
	CallTimeout = 10 * time.Second
)

// Arbitrum reads token and pool state over JSON-RPC.
type Arbitrum struct {
	logger *logger.Logger
	apiURL string
	client *ethclient.Client
	caller bind.ContractCaller

	erc20ABI abi.ABI
	poolABI  abi.ABI

	// decimals never change for a deployed token
	mu       sync.RWMutex
	decimals map[common.Address]uint8
}

// NewArbitrum creates a new Arbitrum instance. Run must be called before use.
func NewArbitrum(apiURL string, logger *logger.Logger) *Arbitrum {
	return &Arbitrum{apiURL: apiURL, logger: logger, decimals: make(map[common.Address]uint8)}
}

// NewArbitrumWithCaller builds a reader on top of an existing contract caller.
func NewArbitrumWithCaller(caller bind.ContractCaller, logger *logger.Logger) (*Arbitrum, error) {
	a := &Arbitrum{caller: caller, logger: logger, decimals: make(map[common.Address]uint8)}
	if err := a.BuildBindings(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Arbitrum) Run() error {
	err := a.ConnectToRPC()
	if err != nil {
		return fmt.Errorf("failed to connect to the Arbitrum RPC server: %w", err)
	}
	err = a.BuildBindings()
	if err != nil {
		return fmt.Errorf("failed to build bindings: %w", err)
	}
	return nil
}

func (a *Arbitrum) ConnectToRPC() error {
	client, err := ethclient.Dial(a.apiURL)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", a.apiURL, err)
	}
	a.client = client
	a.caller = client
	return nil
}

func (a *Arbitrum) BuildBindings() error {
	parsed, err := abi.JSON(strings.NewReader(ERC20ABI))
	if err != nil {
		return fmt.Errorf("failed to parse ERC-20 ABI: %w", err)
	}
	a.erc20ABI = parsed

	parsed, err = abi.JSON(strings.NewReader(UniswapV3PoolABI))
	if err != nil {
		return fmt.Errorf("failed to parse pool ABI: %w", err)
	}
	a.poolABI = parsed

	return nil
}

func (a *Arbitrum) Close() error {
	if a.client != nil {
		a.client.Close()
	}
	return nil
}

// call runs a view function and wraps any failure as an upstream outage.
func (a *Arbitrum) call(ctx context.Context, contractABI abi.ABI, address common.Address, method string, params ...interface{}) ([]interface{}, error) {
	ctx, cancel := context.WithTimeout(ctx, CallTimeout)
	defer cancel()

	contract := bind.NewBoundContract(address, contractABI, a.caller, nil, nil)
	results := []interface{}{}
	if err := contract.Call(&bind.CallOpts{Context: ctx}, &results, method, params...); err != nil {
		return nil, fmt.Errorf("%w: %s on %s: %v", models.ErrUpstreamUnavailable, method, address.Hex(), err)
	}
	return results, nil
}

// GetTokenBalance returns the raw balance in the token's smallest unit
func (a *Arbitrum) GetTokenBalance(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	results, err := a.call(ctx, a.erc20ABI, token, methodBalanceOf, owner)
	if err != nil {
		return nil, err
	}
	balance, ok := results[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected balanceOf result type %T", results[0])
	}
	a.logger.Debug("Token balance read", "token", token.Hex(), "owner", owner.Hex(), "balance", balance.String())
	return balance, nil
}

func (a *Arbitrum) GetTokenDecimals(ctx context.Context, token common.Address) (uint8, error) {
	a.mu.RLock()
	cached, ok := a.decimals[token]
	a.mu.RUnlock()
	if ok {
		return cached, nil
	}

	results, err := a.call(ctx, a.erc20ABI, token, methodDecimals)
	if err != nil {
		return 0, err
	}
	decimals, ok := results[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("unexpected decimals result type %T", results[0])
	}

	a.mu.Lock()
	a.decimals[token] = decimals
	a.mu.Unlock()
	return decimals, nil
}

func (a *Arbitrum) GetPoolSlot0(ctx context.Context, pool common.Address) (*models.Slot0, error) {
	results, err := a.call(ctx, a.poolABI, pool, methodSlot0)
	if err != nil {
		return nil, err
	}
	sqrtPrice, ok := results[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected sqrtPriceX96 result type %T", results[0])
	}
	tick, ok := results[1].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected tick result type %T", results[1])
	}
	return &models.Slot0{SqrtPriceX96: sqrtPrice, Tick: tick}, nil
}

func (a *Arbitrum) GetPoolTokens(ctx context.Context, pool common.Address) (common.Address, common.Address, error) {
	results, err := a.call(ctx, a.poolABI, pool, methodToken0)
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	token0, ok := results[0].(common.Address)
	if !ok {
		return common.Address{}, common.Address{}, fmt.Errorf("unexpected token0 result type %T", results[0])
	}

	results, err = a.call(ctx, a.poolABI, pool, methodToken1)
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	token1, ok := results[0].(common.Address)
	if !ok {
		return common.Address{}, common.Address{}, fmt.Errorf("unexpected token1 result type %T", results[0])
	}
	return token0, token1, nil
}
