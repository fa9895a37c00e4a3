package verification

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/anthroposcity/actgate/internal/models"
	"github.com/anthroposcity/actgate/pkg/logger"
	"github.com/anthroposcity/actgate/pkg/validation"
)

// SignatureVerifier checks a signature over the fixed challenge.
type SignatureVerifier interface {
	Verify(address, signature string) bool
}

// Engine turns (address, signature) into a pass/fail decision.
type Engine struct {
	logger     *logger.Logger
	signatures SignatureVerifier
	balances   models.BalanceReader
	prices     models.PriceResolver

	token     common.Address
	decimals  uint8 // 0 means ask the contract
	threshold decimal.Decimal
}

// NewEngine creates a verification engine for token with a USD threshold.
func NewEngine(
	signatures SignatureVerifier,
	balances models.BalanceReader,
	prices models.PriceResolver,
	token common.Address,
	decimals uint8,
	minUSD float64,
	logger *logger.Logger,
) *Engine {
	return &Engine{
		logger:     logger,
		signatures: signatures,
		balances:   balances,
		prices:     prices,
		token:      token,
		decimals:   decimals,
		threshold:  decimal.NewFromFloat(minUSD),
	}
}

// Threshold returns the minimum USD value as configured.
func (e *Engine) Threshold() decimal.Decimal {
	return e.threshold
}

// Verify runs, in order and stopping at the first failure: signature check, address
// normalization, balance read, price lookup, threshold comparison.
// The returned outcome is always safe to show to the user; the error wraps a models sentinel.
func (e *Engine) Verify(ctx context.Context, address, signature string) (*models.VerificationOutcome, error) {
	if !e.signatures.Verify(address, signature) {
		return fail(models.ReasonSignatureInvalid, "Signature verification failed."), models.ErrSignatureInvalid
	}

	checksummed := validation.ChecksumAddress(address)
	owner := common.HexToAddress(checksummed)

	raw, err := e.balances.GetTokenBalance(ctx, e.token, owner)
	if err != nil {
		e.logger.Error("Failed to read ACT balance", "wallet", checksummed, "error", err)
		return fail(models.ReasonUpstreamUnavailable, "Failed to check ACT balance on Arbitrum. Please try again."),
			wrap(models.ErrUpstreamUnavailable, err)
	}
	if raw.Sign() == 0 {
		return fail(models.ReasonZeroBalance, "This wallet holds no ACT tokens."), models.ErrZeroBalance
	}

	decimals, err := e.tokenDecimals(ctx)
	if err != nil {
		e.logger.Error("Failed to read ACT decimals", "error", err)
		return fail(models.ReasonUpstreamUnavailable, "Failed to check ACT balance on Arbitrum. Please try again."),
			wrap(models.ErrUpstreamUnavailable, err)
	}

	stats, err := e.prices.Stats(ctx)
	if err != nil {
		e.logger.Error("Failed to resolve ACT price", "error", err)
		return fail(models.ReasonPriceUnavailable, "ACT price is currently unavailable. Please try again shortly."),
			wrap(models.ErrPriceUnavailable, err)
	}

	balance := HumanBalance(raw, decimals)
	usd := balance.Mul(decimal.NewFromFloat(stats.Price))
	usdValue, _ := usd.Float64()

	if usd.LessThan(e.threshold) {
		e.logger.Info("ACT value below threshold",
			"wallet", checksummed, "raw_balance", raw.String(), "price", stats.Price, "usd_value", usd.StringFixed(4))
		outcome := fail(models.ReasonInsufficientValue, fmt.Sprintf(
			"Insufficient ACT value. Minimum required: $%s, current: $%s",
			e.threshold.StringFixed(2), usd.StringFixed(2)))
		outcome.WalletAddress = checksummed
		outcome.Balance = balance.String()
		outcome.RawBalance = raw.String()
		outcome.USDValue = &usdValue
		return outcome, models.ErrInsufficientValue
	}

	e.logger.Info("ACT ownership verified", "wallet", checksummed, "balance", balance.String(), "usd_value", usd.StringFixed(4))
	return &models.VerificationOutcome{
		Success:       true,
		Message:       "Verification successful.",
		WalletAddress: checksummed,
		Balance:       balance.String(),
		RawBalance:    raw.String(),
		USDValue:      &usdValue,
	}, nil
}

func (e *Engine) tokenDecimals(ctx context.Context) (uint8, error) {
	if e.decimals != 0 {
		return e.decimals, nil
	}
	return e.balances.GetTokenDecimals(ctx, e.token)
}

// HumanBalance divides a raw token amount by 10^decimals without truncating the integer part.
func HumanBalance(raw *big.Int, decimals uint8) decimal.Decimal {
	return decimal.NewFromBigInt(raw, -int32(decimals))
}

func fail(reason models.Reason, message string) *models.VerificationOutcome {
	return &models.VerificationOutcome{Success: false, Reason: reason, Message: message}
}

// wrap tags err with sentinel unless it already carries it
func wrap(sentinel, err error) error {
	if errors.Is(err, sentinel) {
		return err
	}
	return fmt.Errorf("%w: %v", sentinel, err)
}
