package models

import (
	"context"
	"net/http"
)

// PriceResolver returns the current USD price of ACT.
// Failures wrap ErrPriceUnavailable; a returned price is always positive and finite.
type PriceResolver interface {
	Stats(ctx context.Context) (*TokenStats, error)
}

// Entitlement is the identity provider's answer to an access check.
type Entitlement struct {
	HasAccess   bool   `json:"has_access"`
	AccessLevel string `json:"access_level"`
}

// IdentityProvider is the external community platform.
type IdentityProvider interface {
	// VerifyCredential validates a user token and returns the user id.
	VerifyCredential(ctx context.Context, token string) (string, error)
	// CheckEntitlement returns ErrNotFound when resourceID does not exist on the platform.
	CheckEntitlement(ctx context.Context, resourceID, userID string) (*Entitlement, error)
	// GrantProduct creates a membership of productID for userID.
	GrantProduct(ctx context.Context, productID, userID string) error
}

// Authenticator turns an incoming request into a verified user id.
type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) (string, error)
}

// VerificationEngine decides whether address holds enough ACT, proven by signature.
type VerificationEngine interface {
	Verify(ctx context.Context, address, signature string) (*VerificationOutcome, error)
}

// GatekeeperI is the request-facing core used by the HTTP API.
type GatekeeperI interface {
	// Resolve returns the caller's current identity for experienceID.
	Resolve(ctx context.Context, r *http.Request, experienceID string) (*UserIdentity, error)
	// HandleVerification runs the one-way Member to Publisher transition.
	HandleVerification(ctx context.Context, r *http.Request, req *VerificationRequest) (*VerificationOutcome, error)
	// TokenStats returns the gating token market snapshot.
	TokenStats(ctx context.Context) (*TokenStats, error)
}

// APIServer is the outer HTTP surface.
type APIServer interface {
	Start()
	Shutdown() error
}
