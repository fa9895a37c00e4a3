package whop

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/anthroposcity/actgate/internal/models"
)

// TokenIssuer is the issuer claim of user tokens minted by the Whop app proxy
const TokenIssuer = "urn:whopcom:exp-proxy"

// TokenVerifier validates ES256 user tokens and extracts the user id from the subject.
type TokenVerifier struct {
	key   *ecdsa.PublicKey
	appID string
}

// NewTokenVerifier parses the PEM encoded public key. appID, when set, must match the audience.
func NewTokenVerifier(publicKeyPEM, appID string) (*TokenVerifier, error) {
	key, err := jwt.ParseECPublicKeyFromPEM([]byte(publicKeyPEM))
	if err != nil {
		return nil, fmt.Errorf("failed to parse Whop public key: %w", err)
	}
	return &TokenVerifier{key: key, appID: appID}, nil
}

func (v *TokenVerifier) Verify(token string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodES256.Alg()}),
		jwt.WithIssuer(TokenIssuer),
	}
	if v.appID != "" {
		opts = append(opts, jwt.WithAudience(v.appID))
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return v.key, nil
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrUnauthorized, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: token has no subject", models.ErrUnauthorized)
	}
	return claims.Subject, nil
}
