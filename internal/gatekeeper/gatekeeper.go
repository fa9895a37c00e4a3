package gatekeeper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/anthroposcity/actgate/internal/config"
	"github.com/anthroposcity/actgate/internal/models"
	"github.com/anthroposcity/actgate/pkg/logger"
	"github.com/anthroposcity/actgate/pkg/validation"
)

// Gatekeeper is the request-facing core of actgate.
// It resolves identities and runs the one-way Member to Publisher promotion.
type Gatekeeper struct {
	logger *logger.Logger
	config *config.Config

	repo        models.Repository
	auth        models.Authenticator
	provider    models.IdentityProvider
	engine      models.VerificationEngine
	prices      models.PriceResolver
	notificator models.NotificationService

	now func() time.Time
}

// NewGatekeeper creates a new Gatekeeper instance
func NewGatekeeper(
	repo models.Repository,
	auth models.Authenticator,
	provider models.IdentityProvider,
	engine models.VerificationEngine,
	prices models.PriceResolver,
	notificator models.NotificationService,
	logger *logger.Logger,
	config *config.Config,
) *Gatekeeper {
	return &Gatekeeper{
		logger:      logger,
		config:      config,
		repo:        repo,
		auth:        auth,
		provider:    provider,
		engine:      engine,
		prices:      prices,
		notificator: notificator,
		now:         time.Now,
	}
}

// ComputeStatus applies the OR rule: either a verified local record or the external
// Publisher entitlement makes a Publisher.
func ComputeStatus(in models.StatusInputs) models.Status {
	if in.LocalVerified || in.ExternalEntitled {
		return models.StatusPublisher
	}
	return models.StatusMember
}

// Resolve authenticates the caller and derives their identity for experienceID.
func (g *Gatekeeper) Resolve(ctx context.Context, r *http.Request, experienceID string) (*models.UserIdentity, error) {
	if g.config.SimulationEnabled() {
		return g.simulatedIdentity(), nil
	}
	if experienceID == "" {
		experienceID = g.config.DefaultExperienceID
	}

	userID, err := g.auth.Authenticate(ctx, r)
	if err != nil {
		return nil, err
	}
	if err := g.checkPurchase(ctx, userID, experienceID); err != nil {
		return nil, err
	}
	return g.identityOf(ctx, userID)
}

// HandleVerification checks, in order: authentication, purchase, not already Publisher,
// request body. Only then is the verification engine invoked, and only its success is persisted.
func (g *Gatekeeper) HandleVerification(ctx context.Context, r *http.Request, req *models.VerificationRequest) (*models.VerificationOutcome, error) {
	if g.config.SimulationEnabled() {
		return g.simulatedVerification(), nil
	}

	userID, err := g.auth.Authenticate(ctx, r)
	if err != nil {
		return reject(models.ReasonUnauthorized, "Authentication required."), err
	}
	if err := g.checkPurchase(ctx, userID, g.config.DefaultExperienceID); err != nil {
		return reject(models.ReasonFor(err), failureMessage(err)), err
	}

	identity, err := g.identityOf(ctx, userID)
	if err != nil {
		return reject(models.ReasonFor(err), failureMessage(err)), err
	}
	if identity.Status == models.StatusPublisher {
		g.logger.Info("Verification refused, user is already a Publisher", "user_id", userID)
		return reject(models.ReasonAlreadyVerified, "Wallet already verified."), models.ErrAlreadyVerified
	}

	if err := validateRequest(req); err != nil {
		return reject(models.ReasonValidation, err.Error()), err
	}

	outcome, err := g.engine.Verify(ctx, req.Address, req.Signature)
	if err != nil {
		g.logger.Info("Verification failed", "user_id", userID, "reason", models.ReasonFor(err))
		return outcome, err
	}

	if err := g.repo.UpsertVerification(ctx, userID, outcome.WalletAddress, g.now()); err != nil {
		g.logger.Error("Failed to record verification", "user_id", userID, "wallet", outcome.WalletAddress, "error", err)
		failed := *outcome
		failed.Success = false
		failed.Reason = models.ReasonPersistenceFailure
		failed.Message = "verification succeeded but could not be recorded, please retry"
		return &failed, fmt.Errorf("%w: %v", models.ErrPersistenceFailure, err)
	}
	g.logger.Info("User promoted to Publisher", "user_id", userID, "wallet", outcome.WalletAddress)

	if g.config.WhopGrantPublisher && g.config.WhopPublisherProductID != "" {
		if err := g.provider.GrantProduct(ctx, g.config.WhopPublisherProductID, userID); err != nil {
			g.logger.Error("Failed to grant Publisher product", "user_id", userID, "error", err)
			outcome.Message += " Publisher membership will be synced shortly."
		}
	}

	if g.notificator != nil {
		notification := &models.Notification{
			UserID:        userID,
			WalletAddress: outcome.WalletAddress,
		}
		if outcome.USDValue != nil {
			notification.USDValue = *outcome.USDValue
		}
		go g.notificator.SendNotification(notification)
	}

	return outcome, nil
}

// TokenStats returns the current ACT market snapshot.
func (g *Gatekeeper) TokenStats(ctx context.Context) (*models.TokenStats, error) {
	stats, err := g.prices.Stats(ctx)
	if err != nil {
		g.logger.Error("Failed to fetch ACT stats", "error", err)
		return nil, err
	}
	return stats, nil
}

// checkPurchase fails with ErrForbidden when userID has no access to experienceID.
func (g *Gatekeeper) checkPurchase(ctx context.Context, userID, experienceID string) error {
	entitlement, err := g.provider.CheckEntitlement(ctx, experienceID, userID)
	switch {
	case errors.Is(err, models.ErrNotFound) && g.config.EntitledOnNotFound:
		g.logger.Warn("Experience not found on identity provider, defaulting to entitled",
			"user_id", userID, "experience_id", experienceID)
		return nil
	case errors.Is(err, models.ErrNotFound):
		return fmt.Errorf("%w: experience %s not found", models.ErrForbidden, experienceID)
	case err != nil:
		g.logger.Error("Failed to check purchase", "user_id", userID, "experience_id", experienceID, "error", err)
		return err
	}
	if !entitlement.HasAccess {
		return models.ErrForbidden
	}
	return nil
}

func (g *Gatekeeper) identityOf(ctx context.Context, userID string) (*models.UserIdentity, error) {
	record, err := g.repo.FindVerification(ctx, userID)
	if err != nil {
		g.logger.Error("Failed to load verification record", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to load verification record: %w", err)
	}

	inputs := models.StatusInputs{
		LocalVerified:    record != nil && record.IsVerified,
		ExternalEntitled: g.hasPublisherProduct(ctx, userID),
	}
	status := ComputeStatus(inputs)

	identity := &models.UserIdentity{
		UserID: userID,
		Status: status,
	}
	// verified always comes with the wallet that proved it; an external-only Publisher has none
	if inputs.LocalVerified && record.WalletAddress != "" {
		identity.ACTVerification = models.ACTVerification{
			Verified:      true,
			WalletAddress: record.WalletAddress,
			Network:       models.NetworkArbitrum,
			Token:         models.TokenACT,
		}
	}
	return identity, nil
}

// hasPublisherProduct never fails: an unreachable provider counts as not entitled.
func (g *Gatekeeper) hasPublisherProduct(ctx context.Context, userID string) bool {
	if g.config.WhopPublisherProductID == "" {
		return false
	}
	entitlement, err := g.provider.CheckEntitlement(ctx, g.config.WhopPublisherProductID, userID)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			g.logger.Warn("Failed to check Publisher product", "user_id", userID, "error", err)
		}
		return false
	}
	return entitlement.HasAccess
}

func validateRequest(req *models.VerificationRequest) error {
	if req == nil || req.Address == "" || req.Signature == "" {
		return fmt.Errorf("%w: address and signature are required", models.ErrValidation)
	}
	if err := validation.ValidateAddress(req.Address); err != nil {
		return fmt.Errorf("%w: %v", models.ErrValidation, err)
	}
	return nil
}

func reject(reason models.Reason, message string) *models.VerificationOutcome {
	return &models.VerificationOutcome{Success: false, Reason: reason, Message: message}
}

// failureMessage keeps upstream details out of user-facing text.
func failureMessage(err error) string {
	switch models.ReasonFor(err) {
	case models.ReasonForbidden:
		return "This app requires a purchase."
	case models.ReasonUpstreamUnavailable:
		return "Identity provider is unavailable. Please try again."
	}
	return "Internal error."
}
