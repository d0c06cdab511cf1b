package unit

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/trendyx/identity-service/config"
	"github.com/trendyx/identity-service/internal/adapters/store"
	"github.com/trendyx/identity-service/internal/domain"
	"github.com/trendyx/identity-service/internal/usecase"
	pkglog "github.com/trendyx/identity-service/pkg/log"
)

type integrationFixture struct {
	cfg     *config.Config
	store   *store.Store
	auth    usecase.Service
	bridge  usecase.IntegrationService
	events  *captureEvents
	users   store.UserRepository
	pending store.PendingSignupRepository
}

func newIntegrationFixture(t *testing.T) *integrationFixture {
	t.Helper()
	cfg := testConfig(t)
	cfg.IntegrationOrigins = []string{"https://www.trendyx.ai"}
	cfg.IntegrationRedirectURL = "https://app.trendyx.ai/welcome"
	cfg.IntegrationTokenTTL = 10 * time.Minute
	cfg.PendingSignupTTL = 30 * time.Minute
	cfg.WebhookSecret = "hook-secret"

	st := store.New(cfg.DataDir, cfg.BackupRetention)
	logger := pkglog.New(cfg.AppEnv, "error", "identity-service")
	signer, err := usecase.NewJWTSigner(cfg)
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	hasher := usecase.NewBcryptHasher(cfg.BcryptCost)
	users := store.NewUserRepository(st)
	profiles := store.NewProfileRepository(st)
	pending := store.NewPendingSignupRepository(st)
	events := &captureEvents{}

	auth := usecase.NewAuthService(
		cfg, logger, users, profiles,
		store.NewSessionRepository(st),
		store.NewRefreshTokenRepository(st),
		hasher,
		usecase.NewLockoutTracker(cfg.LockoutAttempts, cfg.LockoutWindow),
		signer, st, events,
	)
	bridge := usecase.NewIntegrationService(
		cfg, logger, auth, users, profiles,
		store.NewIntegrationTokenRepository(st),
		pending,
		hasher, st, events, st,
	)
	return &integrationFixture{cfg: cfg, store: st, auth: auth, bridge: bridge, events: events, users: users, pending: pending}
}

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestSignupHandoffRoundTrip(t *testing.T) {
	f := newIntegrationFixture(t)
	ctx := context.Background()

	grant, err := f.bridge.InitiateSignup(ctx, "trace", usecase.SignupRequest{
		Email:     "alice@example.com",
		FirstName: "Alice",
		Plan:      "pro",
	}, "https://www.trendyx.ai")
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if grant.Token == "" || !strings.Contains(grant.RedirectURL, grant.Token) {
		t.Fatalf("grant must carry the token in the redirect URL: %+v", grant)
	}

	user, tokens, setupRequired, err := f.bridge.RedeemSignup(ctx, "trace", grant.Token)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if user.Email != "alice@example.com" || user.FirstName != "Alice" {
		t.Fatalf("pending state not carried over: %+v", user)
	}
	if !setupRequired {
		t.Fatalf("placeholder password requires setup")
	}
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		t.Fatalf("redemption must sign the user in")
	}

	// Single use: the same token can never be redeemed again.
	if _, _, _, err := f.bridge.RedeemSignup(ctx, "trace", grant.Token); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken on replay, got %v", err)
	}
}

func TestInitiateSignupOriginRejected(t *testing.T) {
	f := newIntegrationFixture(t)
	_, err := f.bridge.InitiateSignup(context.Background(), "trace", usecase.SignupRequest{Email: "alice@example.com"}, "https://evil.example.com")
	if !errors.Is(err, domain.ErrOriginNotAllowed) {
		t.Fatalf("expected ErrOriginNotAllowed, got %v", err)
	}
}

func TestRedeemSignupExpiredToken(t *testing.T) {
	f := newIntegrationFixture(t)
	ctx := context.Background()
	f.cfg.IntegrationTokenTTL = -time.Minute

	grant, err := f.bridge.InitiateSignup(ctx, "trace", usecase.SignupRequest{Email: "alice@example.com"}, "https://www.trendyx.ai")
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if _, _, _, err := f.bridge.RedeemSignup(ctx, "trace", grant.Token); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("expired handoff token must be invalid, got %v", err)
	}
}

func TestLoginHandoffRoundTrip(t *testing.T) {
	f := newIntegrationFixture(t)
	ctx := context.Background()

	if _, _, err := f.auth.Register(ctx, "trace", usecase.RegisterParams{Email: "alice@example.com", Password: "Abcdef1!"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	grant, err := f.bridge.InitiateLogin(ctx, "trace", "alice@example.com", "https://www.trendyx.ai")
	if err != nil {
		t.Fatalf("initiate login: %v", err)
	}

	user, tokens, sessionID, err := f.bridge.RedeemLogin(ctx, "trace", grant.Token, "alice@example.com", "Abcdef1!", usecase.SessionMeta{})
	if err != nil {
		t.Fatalf("redeem login: %v", err)
	}
	if user.Email != "alice@example.com" || sessionID == "" || tokens.AccessToken == "" {
		t.Fatalf("unexpected login result")
	}
}

func TestRedeemLoginEmailMismatch(t *testing.T) {
	f := newIntegrationFixture(t)
	ctx := context.Background()

	if _, _, err := f.auth.Register(ctx, "trace", usecase.RegisterParams{Email: "alice@example.com", Password: "Abcdef1!"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	grant, err := f.bridge.InitiateLogin(ctx, "trace", "alice@example.com", "https://www.trendyx.ai")
	if err != nil {
		t.Fatalf("initiate login: %v", err)
	}

	_, _, _, err = f.bridge.RedeemLogin(ctx, "trace", grant.Token, "mallory@example.com", "Abcdef1!", usecase.SessionMeta{})
	if !errors.Is(err, domain.ErrEmailMismatch) {
		t.Fatalf("expected ErrEmailMismatch, got %v", err)
	}
	// The token was consumed by the failed attempt.
	if _, _, _, err := f.bridge.RedeemLogin(ctx, "trace", grant.Token, "alice@example.com", "Abcdef1!", usecase.SessionMeta{}); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("consumed token must be invalid, got %v", err)
	}
}

func TestInitiateLoginUnknownUser(t *testing.T) {
	f := newIntegrationFixture(t)
	_, err := f.bridge.InitiateLogin(context.Background(), "trace", "ghost@example.com", "https://www.trendyx.ai")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestVerifyWebhookSignature(t *testing.T) {
	f := newIntegrationFixture(t)
	body := []byte(`{"event":"user_created","data":{"email":"hook@example.com"}}`)

	if err := f.bridge.VerifyWebhook(body, signBody("hook-secret", body)); err != nil {
		t.Fatalf("valid signature rejected: %v", err)
	}
	if err := f.bridge.VerifyWebhook(body, "sha256="+signBody("hook-secret", body)); err != nil {
		t.Fatalf("prefixed signature rejected: %v", err)
	}
	if err := f.bridge.VerifyWebhook(body, signBody("wrong-secret", body)); !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
	tampered := append([]byte{}, body...)
	tampered[0] = '['
	if err := f.bridge.VerifyWebhook(tampered, signBody("hook-secret", body)); !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("tampered body must fail, got %v", err)
	}
}

func TestVerifyWebhookNoSecretConfigured(t *testing.T) {
	f := newIntegrationFixture(t)
	f.cfg.WebhookSecret = ""
	body := []byte(`{}`)
	if err := f.bridge.VerifyWebhook(body, signBody("", body)); !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("missing secret must reject everything, got %v", err)
	}
}

func TestWebhookUserLifecycle(t *testing.T) {
	f := newIntegrationFixture(t)
	ctx := context.Background()

	if err := f.bridge.HandleWebhookEvent(ctx, "trace", "user_created", map[string]interface{}{
		"email":      "hook@example.com",
		"first_name": "Hook",
	}); err != nil {
		t.Fatalf("user_created: %v", err)
	}
	user, err := f.users.FindByEmail(ctx, "hook@example.com")
	if err != nil {
		t.Fatalf("created user missing: %v", err)
	}
	if !user.EmailVerified || user.FirstName != "Hook" {
		t.Fatalf("webhook user shape wrong: %+v", user)
	}

	// Replaying the creation is a no-op, not a duplicate error.
	if err := f.bridge.HandleWebhookEvent(ctx, "trace", "user_created", map[string]interface{}{"email": "hook@example.com"}); err != nil {
		t.Fatalf("replayed user_created: %v", err)
	}

	if err := f.bridge.HandleWebhookEvent(ctx, "trace", "user_updated", map[string]interface{}{
		"email":     "hook@example.com",
		"last_name": "Handler",
	}); err != nil {
		t.Fatalf("user_updated: %v", err)
	}
	user, _ = f.users.FindByEmail(ctx, "hook@example.com")
	if user.LastName != "Handler" || user.FirstName != "Hook" {
		t.Fatalf("partial update wrong: %+v", user)
	}

	if err := f.bridge.HandleWebhookEvent(ctx, "trace", "user_deleted", map[string]interface{}{"email": "hook@example.com"}); err != nil {
		t.Fatalf("user_deleted: %v", err)
	}
	user, _ = f.users.FindByEmail(ctx, "hook@example.com")
	if user.Active {
		t.Fatalf("deletion must deactivate, not remove")
	}
	found := false
	for _, ev := range f.events.events {
		if ev.kind == "deactivated" && ev.userID == user.ID {
			found = true
		}
	}
	if !found {
		t.Fatalf("deactivation event not published: %+v", f.events.events)
	}

	if err := f.bridge.HandleWebhookEvent(ctx, "trace", "totally_unknown", nil); err != nil {
		t.Fatalf("unknown events must be ignored, got %v", err)
	}
}

func TestWebhookSubscriptionUpdated(t *testing.T) {
	f := newIntegrationFixture(t)
	ctx := context.Background()

	user, _, err := f.auth.Register(ctx, "trace", usecase.RegisterParams{Email: "alice@example.com", Password: "Abcdef1!"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := f.bridge.HandleWebhookEvent(ctx, "trace", "subscription_updated", map[string]interface{}{
		"email": "alice@example.com",
		"plan":  "enterprise",
		"settings": map[string]interface{}{
			"seats": float64(10),
		},
	}); err != nil {
		t.Fatalf("subscription_updated: %v", err)
	}

	profile, err := f.auth.GetProfile(ctx, "trace", user.ID)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if profile.Settings["plan"] != "enterprise" || profile.Settings["seats"] != float64(10) {
		t.Fatalf("settings not merged: %+v", profile.Settings)
	}
}

func TestCleanupAndStats(t *testing.T) {
	f := newIntegrationFixture(t)
	ctx := context.Background()

	grant, err := f.bridge.InitiateSignup(ctx, "trace", usecase.SignupRequest{Email: "alice@example.com"}, "https://www.trendyx.ai")
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if _, _, _, err := f.bridge.RedeemSignup(ctx, "trace", grant.Token); err != nil {
		t.Fatalf("redeem: %v", err)
	}

	tokens, _ := f.bridge.Cleanup(ctx)
	if tokens != 1 {
		t.Fatalf("used token must be swept, got %d", tokens)
	}

	stats := f.bridge.Stats()
	if stats.SignupsInitiated != 1 || stats.SignupsCompleted != 1 {
		t.Fatalf("unexpected counters: %+v", stats)
	}
	if stats.Store["users"] != 1 {
		t.Fatalf("store counts missing: %+v", stats.Store)
	}
}
