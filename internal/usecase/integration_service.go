package usecase

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/trendyx/identity-service/config"
	"github.com/trendyx/identity-service/internal/adapters/store"
	"github.com/trendyx/identity-service/internal/domain"
	pkglog "github.com/trendyx/identity-service/pkg/log"
)

// SignupRequest is the payload an external origin hands off to start a
// cross-domain signup.
type SignupRequest struct {
	Email        string
	FirstName    string
	LastName     string
	Plan         string
	ReferralCode string
}

// HandoffGrant is the single-use credential returned to the external caller.
type HandoffGrant struct {
	Token       string    `json:"token"`
	RedirectURL string    `json:"redirect_url"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// IntegrationStats are the operational counters served by the stats endpoint.
type IntegrationStats struct {
	SignupsInitiated  int64          `json:"signups_initiated"`
	SignupsCompleted  int64          `json:"signups_completed"`
	LoginsInitiated   int64          `json:"logins_initiated"`
	LoginsCompleted   int64          `json:"logins_completed"`
	RedemptionsFailed int64          `json:"redemptions_failed"`
	WebhooksReceived  int64          `json:"webhooks_received"`
	WebhooksRejected  int64          `json:"webhooks_rejected"`
	Store             map[string]int `json:"store"`
}

// StateSweeper exposes the store's integration cleanup and counters.
type StateSweeper interface {
	SweepIntegration() (tokens, signups int)
	Counts() map[string]int
}

type IntegrationService interface {
	InitiateSignup(ctx context.Context, traceID string, req SignupRequest, origin string) (*HandoffGrant, error)
	RedeemSignup(ctx context.Context, traceID, token string) (*domain.User, *Tokens, bool, error)
	InitiateLogin(ctx context.Context, traceID, email, origin string) (*HandoffGrant, error)
	RedeemLogin(ctx context.Context, traceID, token, email, password string, meta SessionMeta) (*domain.User, *Tokens, string, error)
	VerifyWebhook(payload []byte, signature string) error
	HandleWebhookEvent(ctx context.Context, traceID, event string, data map[string]interface{}) error
	Cleanup(ctx context.Context) (tokens, signups int)
	Stats() IntegrationStats
}

type integrationService struct {
	cfg      *config.Config
	logger   pkglog.Logger
	auth     Service
	users    store.UserRepository
	profiles store.ProfileRepository
	tokens   store.IntegrationTokenRepository
	pending  store.PendingSignupRepository
	hasher   PasswordHasher
	saver    Saver
	events   EventPublisher
	sweeper  StateSweeper

	signupsInitiated  atomic.Int64
	signupsCompleted  atomic.Int64
	loginsInitiated   atomic.Int64
	loginsCompleted   atomic.Int64
	redemptionsFailed atomic.Int64
	webhooksReceived  atomic.Int64
	webhooksRejected  atomic.Int64
}

func NewIntegrationService(
	cfg *config.Config,
	logger pkglog.Logger,
	auth Service,
	users store.UserRepository,
	profiles store.ProfileRepository,
	tokens store.IntegrationTokenRepository,
	pending store.PendingSignupRepository,
	hasher PasswordHasher,
	saver Saver,
	events EventPublisher,
	sweeper StateSweeper,
) IntegrationService {
	return &integrationService{
		cfg:      cfg,
		logger:   logger,
		auth:     auth,
		users:    users,
		profiles: profiles,
		tokens:   tokens,
		pending:  pending,
		hasher:   hasher,
		saver:    saver,
		events:   events,
		sweeper:  sweeper,
	}
}

func (s *integrationService) InitiateSignup(ctx context.Context, traceID string, req SignupRequest, origin string) (*HandoffGrant, error) {
	if err := s.checkOrigin(origin); err != nil {
		return nil, err
	}
	norm := normalizeEmailInput(req.Email)
	if err := validateEmail(norm); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	signup := &domain.PendingSignup{
		ID:           uuid.NewString(),
		Email:        norm,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Plan:         req.Plan,
		ReferralCode: req.ReferralCode,
		Status:       domain.SignupStatusPending,
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.cfg.PendingSignupTTL),
	}
	if err := s.pending.Create(ctx, signup); err != nil {
		return nil, err
	}

	grant, err := s.issueHandoff(ctx, domain.TokenSourceSignup, map[string]interface{}{
		"pending_signup_id": signup.ID,
		"email":             norm,
	})
	if err != nil {
		return nil, err
	}
	s.signupsInitiated.Add(1)
	s.logger.Info().Str("trace_id", traceID).Str("email", norm).Str("origin", origin).Msg("integration signup initiated")
	return grant, nil
}

func (s *integrationService) RedeemSignup(ctx context.Context, traceID, token string) (*domain.User, *Tokens, bool, error) {
	tok, err := s.tokens.Redeem(ctx, token)
	if err != nil || tok.Source != domain.TokenSourceSignup {
		s.redemptionsFailed.Add(1)
		return nil, nil, false, domain.ErrInvalidToken
	}

	pendingID, _ := tok.Payload["pending_signup_id"].(string)
	signup, err := s.pending.Find(ctx, pendingID)
	if err != nil {
		s.redemptionsFailed.Add(1)
		return nil, nil, false, domain.ErrNotFound
	}
	if signup.Status != domain.SignupStatusPending || signup.Expired(time.Now().UTC()) {
		s.redemptionsFailed.Add(1)
		return nil, nil, false, domain.ErrExpired
	}

	// The account starts with a random placeholder password; the caller is
	// told the user still has to choose a real one.
	tempPassword, err := generateTempPassword()
	if err != nil {
		return nil, nil, false, err
	}
	user, tokens, err := s.auth.Register(ctx, traceID, RegisterParams{
		Email:     signup.Email,
		Password:  tempPassword,
		FirstName: signup.FirstName,
		LastName:  signup.LastName,
	})
	if err != nil {
		s.redemptionsFailed.Add(1)
		return nil, nil, false, err
	}
	if err := s.pending.Complete(ctx, signup.ID, user.ID); err != nil {
		return nil, nil, false, err
	}

	s.signupsCompleted.Add(1)
	s.logger.Info().Str("trace_id", traceID).Str("user_id", user.ID).Msg("integration signup redeemed")
	return user, tokens, true, nil
}

func (s *integrationService) InitiateLogin(ctx context.Context, traceID, email, origin string) (*HandoffGrant, error) {
	if err := s.checkOrigin(origin); err != nil {
		return nil, err
	}
	norm := normalizeEmailInput(email)
	if err := validateEmail(norm); err != nil {
		return nil, err
	}
	if _, err := s.users.FindByEmail(ctx, norm); err != nil {
		return nil, err
	}

	grant, err := s.issueHandoff(ctx, domain.TokenSourceLogin, map[string]interface{}{"email": norm})
	if err != nil {
		return nil, err
	}
	s.loginsInitiated.Add(1)
	s.logger.Info().Str("trace_id", traceID).Str("email", norm).Str("origin", origin).Msg("integration login initiated")
	return grant, nil
}

func (s *integrationService) RedeemLogin(ctx context.Context, traceID, token, email, password string, meta SessionMeta) (*domain.User, *Tokens, string, error) {
	tok, err := s.tokens.Redeem(ctx, token)
	if err != nil || tok.Source != domain.TokenSourceLogin {
		s.redemptionsFailed.Add(1)
		return nil, nil, "", domain.ErrInvalidToken
	}
	payloadEmail, _ := tok.Payload["email"].(string)
	if payloadEmail == "" || payloadEmail != normalizeEmailInput(email) {
		s.redemptionsFailed.Add(1)
		return nil, nil, "", domain.ErrEmailMismatch
	}

	// Credentials still go through the full sign-in path, lockout included.
	user, tokens, sessionID, err := s.auth.SignIn(ctx, traceID, payloadEmail, password, meta)
	if err != nil {
		s.redemptionsFailed.Add(1)
		return nil, nil, "", err
	}
	s.loginsCompleted.Add(1)
	return user, tokens, sessionID, nil
}

// VerifyWebhook checks an HMAC-SHA256 hex signature over the raw payload
// bytes using the shared secret. Comparison is constant-time.
func (s *integrationService) VerifyWebhook(payload []byte, signature string) error {
	s.webhooksReceived.Add(1)
	if s.cfg.WebhookSecret == "" {
		s.webhooksRejected.Add(1)
		return domain.ErrInvalidSignature
	}
	mac := hmac.New(sha256.New, []byte(s.cfg.WebhookSecret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	provided := strings.TrimPrefix(strings.TrimSpace(signature), "sha256=")
	if !hmac.Equal([]byte(expected), []byte(provided)) {
		s.webhooksRejected.Add(1)
		return domain.ErrInvalidSignature
	}
	return nil
}

func (s *integrationService) HandleWebhookEvent(ctx context.Context, traceID, event string, data map[string]interface{}) error {
	email := normalizeEmailInput(stringField(data, "email"))

	switch event {
	case "user_created":
		return s.webhookUserCreated(ctx, traceID, email, data)
	case "user_updated":
		return s.webhookUserUpdated(ctx, traceID, email, data)
	case "user_deleted":
		return s.webhookUserDeleted(ctx, traceID, email)
	case "subscription_updated":
		return s.webhookSubscriptionUpdated(ctx, traceID, email, data)
	default:
		// Unknown event types are accepted and ignored so new upstream
		// events never break the webhook contract.
		s.logger.Info().Str("trace_id", traceID).Str("event", event).Msg("webhook event ignored")
		return nil
	}
}

func (s *integrationService) webhookUserCreated(ctx context.Context, traceID, email string, data map[string]interface{}) error {
	if err := validateEmail(email); err != nil {
		return err
	}
	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil
	}

	tempPassword, err := generateTempPassword()
	if err != nil {
		return err
	}
	hash, err := s.hasher.Hash(tempPassword)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	user := &domain.User{
		ID:            uuid.NewString(),
		Email:         email,
		PasswordHash:  hash,
		FirstName:     stringField(data, "first_name"),
		LastName:      stringField(data, "last_name"),
		Role:          s.cfg.DefaultRole,
		Active:        true,
		EmailVerified: true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.users.Create(ctx, user, domain.NewProfile(user.ID, now)); err != nil {
		return err
	}
	if err := s.saver.Save(); err != nil {
		return err
	}
	s.logger.Info().Str("trace_id", traceID).Str("user_id", user.ID).Msg("user created from webhook")
	return nil
}

func (s *integrationService) webhookUserUpdated(ctx context.Context, traceID, email string, data map[string]interface{}) error {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if v := stringField(data, "first_name"); v != "" {
		user.FirstName = v
	}
	if v := stringField(data, "last_name"); v != "" {
		user.LastName = v
	}
	if v, ok := data["email_verified"].(bool); ok {
		user.EmailVerified = v
	}
	user.UpdatedAt = time.Now().UTC()
	if err := s.users.Update(ctx, user); err != nil {
		return err
	}
	s.logger.Info().Str("trace_id", traceID).Str("user_id", user.ID).Msg("user updated from webhook")
	return nil
}

// webhookUserDeleted deactivates the account; users are never hard-deleted.
func (s *integrationService) webhookUserDeleted(ctx context.Context, traceID, email string) error {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	user.Active = false
	user.UpdatedAt = time.Now().UTC()
	if err := s.users.Update(ctx, user); err != nil {
		return err
	}
	if s.events != nil {
		if err := s.events.UserDeactivated(ctx, user.ID); err != nil {
			s.logger.Warn().Err(err).Str("trace_id", traceID).Msg("user deactivated event publish failed")
		}
	}
	s.logger.Info().Str("trace_id", traceID).Str("user_id", user.ID).Msg("user deactivated from webhook")
	return nil
}

func (s *integrationService) webhookSubscriptionUpdated(ctx context.Context, traceID, email string, data map[string]interface{}) error {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	settings := map[string]interface{}{}
	if plan := stringField(data, "plan"); plan != "" {
		settings["plan"] = plan
	}
	if extra, ok := data["settings"].(map[string]interface{}); ok {
		for k, v := range extra {
			settings[k] = v
		}
	}
	if len(settings) == 0 {
		return nil
	}
	if _, err := s.profiles.Merge(ctx, user.ID, domain.ProfileUpdate{Settings: settings}); err != nil {
		return err
	}
	s.logger.Info().Str("trace_id", traceID).Str("user_id", user.ID).Msg("subscription updated from webhook")
	return nil
}

func (s *integrationService) Cleanup(ctx context.Context) (int, int) {
	tokens, signups := s.sweeper.SweepIntegration()
	if tokens > 0 || signups > 0 {
		s.logger.Info().Int("tokens", tokens).Int("signups", signups).Msg("integration state swept")
	}
	return tokens, signups
}

func (s *integrationService) Stats() IntegrationStats {
	return IntegrationStats{
		SignupsInitiated:  s.signupsInitiated.Load(),
		SignupsCompleted:  s.signupsCompleted.Load(),
		LoginsInitiated:   s.loginsInitiated.Load(),
		LoginsCompleted:   s.loginsCompleted.Load(),
		RedemptionsFailed: s.redemptionsFailed.Load(),
		WebhooksReceived:  s.webhooksReceived.Load(),
		WebhooksRejected:  s.webhooksRejected.Load(),
		Store:             s.sweeper.Counts(),
	}
}

func (s *integrationService) issueHandoff(ctx context.Context, source string, payload map[string]interface{}) (*HandoffGrant, error) {
	id, err := GenerateOpaqueToken()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	token := &domain.IntegrationToken{
		ID:        id,
		Source:    source,
		Payload:   payload,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.IntegrationTokenTTL),
	}
	if err := s.tokens.Create(ctx, token); err != nil {
		return nil, err
	}
	return &HandoffGrant{
		Token:       id,
		RedirectURL: fmt.Sprintf("%s?token=%s", s.cfg.IntegrationRedirectURL, id),
		ExpiresAt:   token.ExpiresAt,
	}, nil
}

func (s *integrationService) checkOrigin(origin string) error {
	for _, allowed := range s.cfg.IntegrationOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return nil
		}
	}
	return domain.ErrOriginNotAllowed
}

// generateTempPassword builds a random placeholder that satisfies the
// password policy; the user is prompted to replace it.
func generateTempPassword() (string, error) {
	tok, err := GenerateOpaqueToken()
	if err != nil {
		return "", err
	}
	return "Tmp!" + tok[:20] + "9", nil
}

func stringField(data map[string]interface{}, key string) string {
	v, _ := data[key].(string)
	return v
}
