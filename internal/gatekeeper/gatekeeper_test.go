package gatekeeper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/anthroposcity/actgate/internal/config"
	"github.com/anthroposcity/actgate/internal/models"
	"github.com/anthroposcity/actgate/internal/repository"
	"github.com/anthroposcity/actgate/pkg/logger"
)

const (
	experienceID = "exp_default"
	publisherID  = "prod_publisher"
	wallet       = "0x742d35Cc6634C0532925a3b844Bc454e4438f44e"
)

// headerAuth trusts the X-Test-User header.
type headerAuth struct{}

func (headerAuth) Authenticate(_ context.Context, r *http.Request) (string, error) {
	if id := r.Header.Get("X-Test-User"); id != "" {
		return id, nil
	}
	return "", models.ErrUnauthorized
}

type fakeProvider struct {
	mu      sync.Mutex
	access  map[string]bool  // resourceID -> has access
	errs    map[string]error // resourceID -> error
	grants  []string
	grantFn func() error
}

func (p *fakeProvider) VerifyCredential(context.Context, string) (string, error) {
	return "", models.ErrUnauthorized
}

func (p *fakeProvider) CheckEntitlement(_ context.Context, resourceID, _ string) (*models.Entitlement, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.errs[resourceID]; err != nil {
		return nil, err
	}
	return &models.Entitlement{HasAccess: p.access[resourceID]}, nil
}

func (p *fakeProvider) GrantProduct(_ context.Context, productID, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.grants = append(p.grants, productID)
	if p.grantFn != nil {
		return p.grantFn()
	}
	return nil
}

type fakeEngine struct {
	calls   int
	outcome *models.VerificationOutcome
	err     error
}

func (e *fakeEngine) Verify(context.Context, string, string) (*models.VerificationOutcome, error) {
	e.calls++
	return e.outcome, e.err
}

type fakePrices struct{}

func (fakePrices) Stats(context.Context) (*models.TokenStats, error) {
	return &models.TokenStats{Price: 0.02}, nil
}

type chanNotificator chan *models.Notification

func (c chanNotificator) SendNotification(n *models.Notification) { c <- n }

type brokenRepo struct{ *repository.MemoryDB }

func (brokenRepo) UpsertVerification(context.Context, string, string, time.Time) error {
	return errors.New("connection reset")
}

func successOutcome() *models.VerificationOutcome {
	usd := 20.0
	return &models.VerificationOutcome{Success: true, Message: "Verification successful.", WalletAddress: wallet, Balance: "1000", USDValue: &usd}
}

type fixture struct {
	gk       *Gatekeeper
	repo     *repository.MemoryDB
	provider *fakeProvider
	engine   *fakeEngine
	notified chanNotificator
	cfg      *config.Config
}

func newFixture() *fixture {
	cfg := &config.Config{
		DefaultExperienceID:    experienceID,
		WhopPublisherProductID: publisherID,
		EntitledOnNotFound:     true,
		MinUSDThreshold:        10,
	}
	f := &fixture{
		repo:     repository.NewMemoryDB(),
		provider: &fakeProvider{access: map[string]bool{experienceID: true}, errs: map[string]error{}},
		engine:   &fakeEngine{outcome: successOutcome()},
		notified: make(chanNotificator, 4),
		cfg:      cfg,
	}
	f.gk = NewGatekeeper(f.repo, headerAuth{}, f.provider, f.engine, fakePrices{}, f.notified, logger.NewNop(), cfg)
	return f
}

func request(user string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/identity", nil)
	if user != "" {
		r.Header.Set("X-Test-User", user)
	}
	return r
}

func validRequest() *models.VerificationRequest {
	return &models.VerificationRequest{Address: wallet, Signature: "0xsig"}
}

func TestComputeStatus(t *testing.T) {
	cases := []struct {
		in   models.StatusInputs
		want models.Status
	}{
		{models.StatusInputs{}, models.StatusMember},
		{models.StatusInputs{LocalVerified: true}, models.StatusPublisher},
		{models.StatusInputs{ExternalEntitled: true}, models.StatusPublisher},
		{models.StatusInputs{LocalVerified: true, ExternalEntitled: true}, models.StatusPublisher},
	}
	for _, tc := range cases {
		for i := 0; i < 3; i++ {
			if got := ComputeStatus(tc.in); got != tc.want {
				t.Fatalf("ComputeStatus(%+v) = %s, want %s", tc.in, got, tc.want)
			}
		}
	}
}

func TestResolve(t *testing.T) {
	ctx := context.Background()

	t.Run("unauthenticated", func(t *testing.T) {
		f := newFixture()
		if _, err := f.gk.Resolve(ctx, request(""), experienceID); !errors.Is(err, models.ErrUnauthorized) {
			t.Fatalf("expected unauthorized, got %v", err)
		}
	})

	t.Run("no purchase", func(t *testing.T) {
		f := newFixture()
		f.provider.access[experienceID] = false
		if _, err := f.gk.Resolve(ctx, request("user_1"), experienceID); !errors.Is(err, models.ErrForbidden) {
			t.Fatalf("expected forbidden, got %v", err)
		}
	})

	t.Run("member", func(t *testing.T) {
		f := newFixture()
		identity, err := f.gk.Resolve(ctx, request("user_1"), experienceID)
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if identity.UserID != "user_1" || identity.Status != models.StatusMember || identity.ACTVerification.Verified {
			t.Fatalf("unexpected identity %+v", identity)
		}
	})

	t.Run("publisher from local record", func(t *testing.T) {
		f := newFixture()
		_ = f.repo.UpsertVerification(ctx, "user_1", wallet, time.Now())
		identity, err := f.gk.Resolve(ctx, request("user_1"), experienceID)
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if identity.Status != models.StatusPublisher || identity.ACTVerification.WalletAddress != wallet {
			t.Fatalf("unexpected identity %+v", identity)
		}
		if identity.ACTVerification.Network != models.NetworkArbitrum {
			t.Fatalf("expected network %s, got %s", models.NetworkArbitrum, identity.ACTVerification.Network)
		}
	})

	t.Run("publisher from external product", func(t *testing.T) {
		f := newFixture()
		f.provider.access[publisherID] = true
		identity, err := f.gk.Resolve(ctx, request("user_1"), experienceID)
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if identity.Status != models.StatusPublisher {
			t.Fatalf("expected publisher, got %s", identity.Status)
		}
		if identity.ACTVerification.Verified || identity.ACTVerification.WalletAddress != "" {
			t.Fatalf("no wallet was proven, got %+v", identity.ACTVerification)
		}
	})

	t.Run("experience not found defaults to entitled", func(t *testing.T) {
		f := newFixture()
		f.provider.errs[experienceID] = models.ErrNotFound
		identity, err := f.gk.Resolve(ctx, request("user_1"), experienceID)
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if identity.Status != models.StatusMember {
			t.Fatalf("expected member, got %s", identity.Status)
		}
	})

	t.Run("experience not found without fallback", func(t *testing.T) {
		f := newFixture()
		f.cfg.EntitledOnNotFound = false
		f.provider.errs[experienceID] = models.ErrNotFound
		if _, err := f.gk.Resolve(ctx, request("user_1"), experienceID); !errors.Is(err, models.ErrForbidden) {
			t.Fatalf("expected forbidden, got %v", err)
		}
	})

	t.Run("provider down", func(t *testing.T) {
		f := newFixture()
		f.provider.errs[experienceID] = models.ErrUpstreamUnavailable
		if _, err := f.gk.Resolve(ctx, request("user_1"), experienceID); !errors.Is(err, models.ErrUpstreamUnavailable) {
			t.Fatalf("expected upstream unavailable, got %v", err)
		}
	})

	t.Run("publisher product check failure is not fatal", func(t *testing.T) {
		f := newFixture()
		f.provider.errs[publisherID] = models.ErrUpstreamUnavailable
		identity, err := f.gk.Resolve(ctx, request("user_1"), experienceID)
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if identity.Status != models.StatusMember {
			t.Fatalf("expected member, got %s", identity.Status)
		}
	})

	t.Run("empty experience uses default", func(t *testing.T) {
		f := newFixture()
		f.provider.access = map[string]bool{experienceID: false}
		if _, err := f.gk.Resolve(ctx, request("user_1"), ""); !errors.Is(err, models.ErrForbidden) {
			t.Fatalf("expected default experience to be checked, got %v", err)
		}
	})
}

func TestResolveIsDeterministic(t *testing.T) {
	ctx := context.Background()
	for _, local := range []bool{false, true} {
		for _, external := range []bool{false, true} {
			f := newFixture()
			f.provider.access[publisherID] = external
			if local {
				_ = f.repo.UpsertVerification(ctx, "user_1", wallet, time.Now())
			}
			want := ComputeStatus(models.StatusInputs{LocalVerified: local, ExternalEntitled: external})
			for i := 0; i < 3; i++ {
				identity, err := f.gk.Resolve(ctx, request("user_1"), experienceID)
				if err != nil {
					t.Fatalf("resolve: %v", err)
				}
				if identity.Status != want {
					t.Fatalf("local=%v external=%v: got %s, want %s", local, external, identity.Status, want)
				}
				if identity.ACTVerification.Verified != local {
					t.Fatalf("local=%v external=%v: verified=%v", local, external, identity.ACTVerification.Verified)
				}
				if identity.ACTVerification.Verified && !common.IsHexAddress(identity.ACTVerification.WalletAddress) {
					t.Fatalf("verified identity without a wallet: %+v", identity.ACTVerification)
				}
			}
		}
	}
}

func TestHandleVerificationPromotes(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	outcome, err := f.gk.HandleVerification(ctx, request("user_1"), validRequest())
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !outcome.Success || outcome.WalletAddress != wallet {
		t.Fatalf("unexpected outcome %+v", outcome)
	}

	record, _ := f.repo.FindVerification(ctx, "user_1")
	if record == nil || record.WalletAddress != wallet || !record.IsVerified {
		t.Fatalf("expected persisted record, got %+v", record)
	}

	select {
	case n := <-f.notified:
		if n.UserID != "user_1" || n.USDValue != 20 {
			t.Fatalf("unexpected notification %+v", n)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected an operator notification")
	}

	identity, err := f.gk.Resolve(ctx, request("user_1"), experienceID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if identity.Status != models.StatusPublisher {
		t.Fatalf("expected publisher after verification, got %s", identity.Status)
	}
}

func TestHandleVerificationIsOneWay(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	if _, err := f.gk.HandleVerification(ctx, request("user_1"), validRequest()); err != nil {
		t.Fatalf("first verify: %v", err)
	}
	outcome, err := f.gk.HandleVerification(ctx, request("user_1"), validRequest())
	if !errors.Is(err, models.ErrAlreadyVerified) || outcome.Reason != models.ReasonAlreadyVerified {
		t.Fatalf("expected already verified, got %+v, %v", outcome, err)
	}
	if f.engine.calls != 1 {
		t.Fatalf("engine must not run for a Publisher, ran %d times", f.engine.calls)
	}
}

func TestHandleVerificationExternalPublisherRefused(t *testing.T) {
	f := newFixture()
	f.provider.access[publisherID] = true

	if _, err := f.gk.HandleVerification(context.Background(), request("user_1"), validRequest()); !errors.Is(err, models.ErrAlreadyVerified) {
		t.Fatalf("expected already verified, got %v", err)
	}
	if f.engine.calls != 0 {
		t.Fatalf("engine must not run")
	}
}

func TestHandleVerificationPreconditionOrder(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name   string
		user   string
		setup  func(f *fixture)
		req    *models.VerificationRequest
		want   error
		reason models.Reason
	}{
		{"unauthenticated beats everything", "", func(f *fixture) { f.provider.access[experienceID] = false }, nil, models.ErrUnauthorized, models.ReasonUnauthorized},
		{"no purchase beats bad body", "user_1", func(f *fixture) { f.provider.access[experienceID] = false }, nil, models.ErrForbidden, models.ReasonForbidden},
		{"already verified beats bad body", "user_1", func(f *fixture) {
			_ = f.repo.UpsertVerification(ctx, "user_1", wallet, time.Now())
		}, nil, models.ErrAlreadyVerified, models.ReasonAlreadyVerified},
		{"missing body", "user_1", func(*fixture) {}, nil, models.ErrValidation, models.ReasonValidation},
		{"missing signature", "user_1", func(*fixture) {}, &models.VerificationRequest{Address: wallet}, models.ErrValidation, models.ReasonValidation},
		{"malformed address", "user_1", func(*fixture) {}, &models.VerificationRequest{Address: "0x1234", Signature: "0xsig"}, models.ErrValidation, models.ReasonValidation},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			tc.setup(f)
			outcome, err := f.gk.HandleVerification(ctx, request(tc.user), tc.req)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if outcome.Success || outcome.Reason != tc.reason {
				t.Fatalf("unexpected outcome %+v", outcome)
			}
			if f.engine.calls != 0 {
				t.Fatalf("engine must not run when a precondition fails")
			}
		})
	}
}

func TestHandleVerificationEngineFailureIsNotPersisted(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	usd := 2.0
	f.engine.outcome = &models.VerificationOutcome{
		Reason:   models.ReasonInsufficientValue,
		Message:  "Insufficient ACT value. Minimum required: $10.00, current: $2.00",
		USDValue: &usd,
	}
	f.engine.err = models.ErrInsufficientValue

	outcome, err := f.gk.HandleVerification(ctx, request("user_1"), validRequest())
	if !errors.Is(err, models.ErrInsufficientValue) || outcome.Success {
		t.Fatalf("expected insufficient value, got %+v, %v", outcome, err)
	}
	if f.repo.Len() != 0 {
		t.Fatalf("no record may be stored after an engine failure")
	}
	identity, _ := f.gk.Resolve(ctx, request("user_1"), experienceID)
	if identity.Status != models.StatusMember {
		t.Fatalf("expected member, got %s", identity.Status)
	}
}

func TestHandleVerificationPersistenceFailure(t *testing.T) {
	f := newFixture()
	f.gk.repo = brokenRepo{f.repo}

	outcome, err := f.gk.HandleVerification(context.Background(), request("user_1"), validRequest())
	if !errors.Is(err, models.ErrPersistenceFailure) {
		t.Fatalf("expected persistence failure, got %v", err)
	}
	if outcome.Success || outcome.Reason != models.ReasonPersistenceFailure {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	if outcome.Message != "verification succeeded but could not be recorded, please retry" {
		t.Fatalf("unexpected message %q", outcome.Message)
	}
	if outcome.WalletAddress != wallet {
		t.Fatalf("expected proven wallet in outcome, got %q", outcome.WalletAddress)
	}
}

func TestHandleVerificationGrantsPublisherProduct(t *testing.T) {
	ctx := context.Background()

	t.Run("granted", func(t *testing.T) {
		f := newFixture()
		f.cfg.WhopGrantPublisher = true
		if _, err := f.gk.HandleVerification(ctx, request("user_1"), validRequest()); err != nil {
			t.Fatalf("verify: %v", err)
		}
		if len(f.provider.grants) != 1 || f.provider.grants[0] != publisherID {
			t.Fatalf("expected one grant of %s, got %v", publisherID, f.provider.grants)
		}
	})

	t.Run("grant failure keeps local record", func(t *testing.T) {
		f := newFixture()
		f.cfg.WhopGrantPublisher = true
		f.provider.grantFn = func() error { return models.ErrUpstreamUnavailable }
		outcome, err := f.gk.HandleVerification(ctx, request("user_1"), validRequest())
		if err != nil || !outcome.Success {
			t.Fatalf("grant failure must not fail verification: %+v, %v", outcome, err)
		}
		if f.repo.Len() != 1 {
			t.Fatalf("expected local record to be kept")
		}
	})

	t.Run("disabled", func(t *testing.T) {
		f := newFixture()
		if _, err := f.gk.HandleVerification(ctx, request("user_1"), validRequest()); err != nil {
			t.Fatalf("verify: %v", err)
		}
		if len(f.provider.grants) != 0 {
			t.Fatalf("expected no grant, got %v", f.provider.grants)
		}
	})
}

func TestSimulation(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.cfg.Development = true
	f.cfg.DevSimulateStatus = string(models.StatusPublisher)

	identity, err := f.gk.Resolve(ctx, request(""), experienceID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if identity.UserID != simulatedUserID || identity.Status != models.StatusPublisher || identity.ACTVerification.WalletAddress != simulatedWallet {
		t.Fatalf("unexpected simulated identity %+v", identity)
	}

	outcome, err := f.gk.HandleVerification(ctx, request(""), nil)
	if err != nil || !outcome.Success {
		t.Fatalf("expected simulated success, got %+v, %v", outcome, err)
	}
	if f.engine.calls != 0 || f.repo.Len() != 0 {
		t.Fatalf("simulation must not touch the engine or the store")
	}

	f.cfg.Development = false
	if _, err := f.gk.Resolve(ctx, request(""), experienceID); !errors.Is(err, models.ErrUnauthorized) {
		t.Fatalf("simulation must be off outside development, got %v", err)
	}
}
