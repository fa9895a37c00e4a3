package whop

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TestSigner mints user tokens the way the Whop app proxy does. It is a test helper.
type TestSigner struct {
	key   *ecdsa.PrivateKey
	AppID string
}

func NewTestSigner(appID string) (*TestSigner, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	return &TestSigner{key: key, AppID: appID}, nil
}

// PublicKeyPEM returns the PKIX PEM block TokenVerifier expects.
func (s *TestSigner) PublicKeyPEM() string {
	der, err := x509.MarshalPKIXPublicKey(&s.key.PublicKey)
	if err != nil {
		panic(err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
}

// Mint signs a token for userID valid for an hour.
func (s *TestSigner) Mint(userID string) string {
	return s.MintWithClaims(jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    TokenIssuer,
		Audience:  jwt.ClaimStrings{s.AppID},
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
}

func (s *TestSigner) MintWithClaims(claims jwt.RegisteredClaims) string {
	token, err := jwt.NewWithClaims(jwt.SigningMethodES256, claims).SignedString(s.key)
	if err != nil {
		panic(err)
	}
	return token
}
