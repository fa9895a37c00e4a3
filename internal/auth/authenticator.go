package auth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/anthroposcity/actgate/internal/models"
	"github.com/anthroposcity/actgate/pkg/logger"
)

// Authenticator tries each extractor in order and verifies the credential it finds.
// The first credential the provider accepts wins.
type Authenticator struct {
	logger     *logger.Logger
	provider   models.IdentityProvider
	extractors []CredentialExtractor
}

// NewAuthenticator creates an Authenticator. With no extractors, DefaultExtractors is used.
func NewAuthenticator(provider models.IdentityProvider, logger *logger.Logger, extractors ...CredentialExtractor) *Authenticator {
	if len(extractors) == 0 {
		extractors = DefaultExtractors()
	}
	return &Authenticator{
		logger:     logger,
		provider:   provider,
		extractors: extractors,
	}
}

func (a *Authenticator) Authenticate(ctx context.Context, r *http.Request) (string, error) {
	tried := 0
	for _, extractor := range a.extractors {
		credential, ok := extractor.Extract(r)
		if !ok {
			continue
		}
		tried++
		userID, err := a.provider.VerifyCredential(ctx, credential)
		if err != nil {
			a.logger.Debug("Credential rejected", "transport", extractor.Name(), "error", err)
			continue
		}
		return userID, nil
	}
	if tried == 0 {
		return "", fmt.Errorf("%w: no credential provided", models.ErrUnauthorized)
	}
	return "", fmt.Errorf("%w: no valid credential among %d provided", models.ErrUnauthorized, tried)
}
