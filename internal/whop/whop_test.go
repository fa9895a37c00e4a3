package whop

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/anthroposcity/actgate/internal/models"
	"github.com/anthroposcity/actgate/pkg/logger"
)

func TestTokenVerifier(t *testing.T) {
	signer, err := NewTestSigner("app_actgate")
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	intruder, err := NewTestSigner("app_actgate")
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	verifier, err := NewTokenVerifier(signer.PublicKeyPEM(), "app_actgate")
	if err != nil {
		t.Fatalf("verifier: %v", err)
	}

	userID, err := verifier.Verify(signer.Mint("user_123"))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if userID != "user_123" {
		t.Fatalf("expected user_123, got %s", userID)
	}

	rejected := map[string]string{
		"foreign key": intruder.Mint("user_123"),
		"wrong audience": signer.MintWithClaims(jwt.RegisteredClaims{
			Subject: "user_123", Issuer: TokenIssuer, Audience: jwt.ClaimStrings{"app_other"},
		}),
		"wrong issuer": signer.MintWithClaims(jwt.RegisteredClaims{
			Subject: "user_123", Issuer: "someone", Audience: jwt.ClaimStrings{"app_actgate"},
		}),
		"expired": signer.MintWithClaims(jwt.RegisteredClaims{
			Subject: "user_123", Issuer: TokenIssuer, Audience: jwt.ClaimStrings{"app_actgate"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		}),
		"no subject": signer.MintWithClaims(jwt.RegisteredClaims{
			Issuer: TokenIssuer, Audience: jwt.ClaimStrings{"app_actgate"},
		}),
		"garbage": "not-a-jwt",
	}
	for name, token := range rejected {
		t.Run(name, func(t *testing.T) {
			if _, err := verifier.Verify(token); !errors.Is(err, models.ErrUnauthorized) {
				t.Fatalf("expected unauthorized, got %v", err)
			}
		})
	}
}

func TestClientWithoutVerifierRejects(t *testing.T) {
	client := NewClient("http://whop.invalid", "key", nil, logger.NewNop())
	if _, err := client.VerifyCredential(context.Background(), "anything"); !errors.Is(err, models.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestCheckEntitlement(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/users/user_1/access/exp_1":
			_ = json.NewEncoder(w).Encode(map[string]any{"has_access": true, "access_level": "customer"})
		case "/users/user_2/access/exp_1":
			_ = json.NewEncoder(w).Encode(map[string]any{"has_access": false, "access_level": "no_access"})
		case "/users/user_1/access/exp_missing":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	client := NewClient(srv.URL+"/", "secret", nil, logger.NewNop())
	ctx := context.Background()

	ent, err := client.CheckEntitlement(ctx, "exp_1", "user_1")
	if err != nil || !ent.HasAccess || ent.AccessLevel != "customer" {
		t.Fatalf("expected access, got %+v, %v", ent, err)
	}

	ent, err = client.CheckEntitlement(ctx, "exp_1", "user_2")
	if err != nil || ent.HasAccess {
		t.Fatalf("expected no access, got %+v, %v", ent, err)
	}

	if _, err := client.CheckEntitlement(ctx, "exp_missing", "user_1"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	if _, err := client.CheckEntitlement(ctx, "exp_broken", "user_1"); !errors.Is(err, models.ErrUpstreamUnavailable) {
		t.Fatalf("expected upstream unavailable, got %v", err)
	}
}

func TestGrantProduct(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/memberships" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "secret", nil, logger.NewNop())
	if err := client.GrantProduct(context.Background(), "prod_pub", "user_1"); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if got["user_id"] != "user_1" || got["product_id"] != "prod_pub" {
		t.Fatalf("unexpected grant body %+v", got)
	}
}

func TestUnreachableIsUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	client := NewClient(srv.URL, "secret", nil, logger.NewNop())
	if _, err := client.CheckEntitlement(context.Background(), "exp_1", "user_1"); !errors.Is(err, models.ErrUpstreamUnavailable) {
		t.Fatalf("expected upstream unavailable, got %v", err)
	}
}
