package usecase

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/trendyx/identity-service/config"
	"github.com/trendyx/identity-service/internal/adapters/store"
	"github.com/trendyx/identity-service/internal/domain"
	"github.com/trendyx/identity-service/internal/tokenverify"
	pkglog "github.com/trendyx/identity-service/pkg/log"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Saver persists the store synchronously after security-critical mutations.
type Saver interface {
	Save() error
}

// EventPublisher emits account lifecycle events to interested services.
// Implementations must tolerate being nil-checked away entirely.
type EventPublisher interface {
	UserRegistered(ctx context.Context, userID, email, source string) error
	UserDeactivated(ctx context.Context, userID string) error
}

// RegisterParams carries a native registration request.
type RegisterParams struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Company   string
	Role      string
}

// SessionMeta is optional network metadata recorded on the login session.
type SessionMeta struct {
	IP        string
	UserAgent string
}

type Service interface {
	Register(ctx context.Context, traceID string, p RegisterParams) (*domain.User, *Tokens, error)
	SignIn(ctx context.Context, traceID, email, password string, meta SessionMeta) (*domain.User, *Tokens, string, error)
	Refresh(ctx context.Context, traceID, sessionID, refreshToken string) (*Tokens, error)
	Logout(ctx context.Context, traceID, sessionID, refreshToken string) error
	GetProfile(ctx context.Context, traceID, userID string) (*domain.Profile, error)
	UpdateProfile(ctx context.Context, traceID, userID string, update domain.ProfileUpdate) (*domain.Profile, error)
	ChangePassword(ctx context.Context, traceID, userID, oldPassword, newPassword string) error
	VerifyToken(ctx context.Context, traceID, token string) (*tokenverify.Result, error)
	Authorize(role string, required ...string) error
}

type authService struct {
	cfg      *config.Config
	logger   pkglog.Logger
	users    store.UserRepository
	profiles store.ProfileRepository
	sessions store.SessionRepository
	refresh  store.RefreshTokenRepository
	hasher   PasswordHasher
	lockout  *LockoutTracker
	signer   JWTSigner
	saver    Saver
	events   EventPublisher
}

func NewAuthService(
	cfg *config.Config,
	logger pkglog.Logger,
	users store.UserRepository,
	profiles store.ProfileRepository,
	sessions store.SessionRepository,
	refresh store.RefreshTokenRepository,
	hasher PasswordHasher,
	lockout *LockoutTracker,
	signer JWTSigner,
	saver Saver,
	events EventPublisher,
) Service {
	return &authService{
		cfg:      cfg,
		logger:   logger,
		users:    users,
		profiles: profiles,
		sessions: sessions,
		refresh:  refresh,
		hasher:   hasher,
		lockout:  lockout,
		signer:   signer,
		saver:    saver,
		events:   events,
	}
}

func (s *authService) Register(ctx context.Context, traceID string, p RegisterParams) (*domain.User, *Tokens, error) {
	norm := normalizeEmailInput(p.Email)
	if err := validateEmail(norm); err != nil {
		return nil, nil, err
	}
	if err := validatePasswordStrength(p.Password); err != nil {
		return nil, nil, err
	}
	role := p.Role
	if role == "" {
		role = s.cfg.DefaultRole
	}

	hash, err := s.hasher.Hash(p.Password)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        norm,
		PasswordHash: hash,
		FirstName:    p.FirstName,
		LastName:     p.LastName,
		Company:      p.Company,
		Role:         role,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user, domain.NewProfile(user.ID, now)); err != nil {
		return nil, nil, err
	}

	tokens, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	if err := s.saver.Save(); err != nil {
		s.logger.Error().Err(err).Str("trace_id", traceID).Msg("registration save failed")
		return nil, nil, err
	}

	if s.events != nil {
		if err := s.events.UserRegistered(ctx, user.ID, user.Email, "native"); err != nil {
			s.logger.Warn().Err(err).Str("trace_id", traceID).Msg("user registered event publish failed")
		}
	}
	s.logger.Info().Str("trace_id", traceID).Str("user_id", user.ID).Msg("user registered")
	return user.Sanitized(), tokens, nil
}

func (s *authService) SignIn(ctx context.Context, traceID, email, password string, meta SessionMeta) (*domain.User, *Tokens, string, error) {
	norm := normalizeEmailInput(email)
	// Locked identities are rejected before any password work so the
	// response carries no timing signal about credential correctness.
	if s.lockout.IsLockedOut(norm) {
		return nil, nil, "", domain.ErrAccountLocked
	}

	user, err := s.users.FindByEmail(ctx, norm)
	if err != nil {
		s.lockout.RecordFailure(norm)
		return nil, nil, "", domain.ErrInvalidCredentials
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		s.lockout.RecordFailure(norm)
		return nil, nil, "", domain.ErrInvalidCredentials
	}
	if !user.Active {
		return nil, nil, "", domain.ErrInvalidCredentials
	}

	s.lockout.Clear(norm)
	now := time.Now().UTC()
	user.LastLoginAt = &now
	user.LoginCount++
	user.UpdatedAt = now
	if err := s.users.Update(ctx, user); err != nil {
		return nil, nil, "", err
	}

	session := &domain.Session{
		ID:             uuid.NewString(),
		UserID:         user.ID,
		Active:         true,
		IP:             meta.IP,
		UserAgent:      meta.UserAgent,
		CreatedAt:      now,
		LastActivityAt: now,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, nil, "", err
	}

	tokens, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, nil, "", err
	}
	// Usage bookkeeping is best-effort; a missing profile must not fail login.
	_ = s.profiles.IncrementUsage(ctx, user.ID, "logins")
	s.logger.Info().Str("trace_id", traceID).Str("user_id", user.ID).Str("session_id", session.ID).Msg("signin")
	return user.Sanitized(), tokens, session.ID, nil
}

func (s *authService) Refresh(ctx context.Context, traceID, sessionID, refreshToken string) (*Tokens, error) {
	if refreshToken == "" {
		return nil, domain.ErrInvalidToken
	}
	rec, err := s.refresh.FindActive(ctx, HashToken(refreshToken))
	if err != nil {
		return nil, domain.ErrInvalidToken
	}
	user, err := s.users.FindByID(ctx, rec.UserID)
	if err != nil || !user.Active {
		return nil, domain.ErrInvalidToken
	}

	access, err := s.signer.SignAccessToken(user.ID, accessClaims(user), s.cfg.AccessTTL)
	if err != nil {
		return nil, err
	}
	if sessionID != "" {
		// Keep-alive so the idle sweep does not reap sessions that are
		// still minting access tokens.
		_ = s.sessions.Touch(ctx, sessionID)
	}
	s.logger.Info().Str("trace_id", traceID).Str("user_id", user.ID).Msg("access token refreshed")
	return &Tokens{AccessToken: access, ExpiresIn: int64(s.cfg.AccessTTL.Seconds())}, nil
}

// Logout never fails: unknown session IDs and refresh tokens are no-ops.
func (s *authService) Logout(ctx context.Context, traceID, sessionID, refreshToken string) error {
	if sessionID != "" {
		_ = s.sessions.Deactivate(ctx, sessionID)
	}
	if refreshToken != "" {
		_ = s.refresh.Delete(ctx, HashToken(refreshToken))
	}
	s.logger.Info().Str("trace_id", traceID).Str("session_id", sessionID).Msg("logout")
	return nil
}

func (s *authService) GetProfile(ctx context.Context, traceID, userID string) (*domain.Profile, error) {
	if _, err := s.users.FindByID(ctx, userID); err != nil {
		return nil, err
	}
	profile, err := s.profiles.Get(ctx, userID)
	if err != nil {
		// Users registered before profiles became mandatory may lack one;
		// surface the default shape rather than a hole.
		return domain.NewProfile(userID, time.Now().UTC()), nil
	}
	return profile, nil
}

func (s *authService) UpdateProfile(ctx context.Context, traceID, userID string, update domain.ProfileUpdate) (*domain.Profile, error) {
	profile, err := s.profiles.Merge(ctx, userID, update)
	if err != nil {
		return nil, err
	}
	if err := s.saver.Save(); err != nil {
		s.logger.Error().Err(err).Str("trace_id", traceID).Msg("profile save failed")
		return nil, err
	}
	s.logger.Info().Str("trace_id", traceID).Str("user_id", userID).Msg("profile updated")
	return profile, nil
}

func (s *authService) ChangePassword(ctx context.Context, traceID, userID, oldPassword, newPassword string) error {
	if err := validatePasswordStrength(newPassword); err != nil {
		return err
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return domain.ErrInvalidCredentials
	}
	if !s.hasher.Verify(oldPassword, user.PasswordHash) {
		return domain.ErrInvalidCredentials
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	user.UpdatedAt = time.Now().UTC()
	if err := s.users.Update(ctx, user); err != nil {
		return err
	}
	if err := s.saver.Save(); err != nil {
		s.logger.Error().Err(err).Str("trace_id", traceID).Msg("password change save failed")
		return err
	}
	s.logger.Info().Str("trace_id", traceID).Str("user_id", userID).Msg("password changed")
	return nil
}

func (s *authService) VerifyToken(ctx context.Context, traceID, token string) (*tokenverify.Result, error) {
	result, err := tokenverify.Verify(s.signer, token, time.Now)
	switch {
	case err == nil:
		return result, nil
	case errors.Is(err, tokenverify.ErrTokenExpired):
		return nil, domain.ErrExpired
	default:
		return nil, domain.ErrInvalidToken
	}
}

// Authorize allows access iff the caller role intersects the required set.
// Admins always pass; an empty required set means any authenticated caller.
func (s *authService) Authorize(role string, required ...string) error {
	if len(required) == 0 || role == "admin" {
		return nil
	}
	for _, r := range required {
		if role == r {
			return nil
		}
	}
	return domain.ErrForbidden
}

func (s *authService) issueTokens(ctx context.Context, user *domain.User) (*Tokens, error) {
	access, err := s.signer.SignAccessToken(user.ID, accessClaims(user), s.cfg.AccessTTL)
	if err != nil {
		return nil, err
	}
	opaque, err := GenerateOpaqueToken()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	rec := &domain.RefreshToken{
		TokenHash: HashToken(opaque),
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.RefreshTTL),
	}
	if err := s.refresh.Create(ctx, rec); err != nil {
		return nil, err
	}
	return &Tokens{
		AccessToken:  access,
		RefreshToken: opaque,
		ExpiresIn:    int64(s.cfg.AccessTTL.Seconds()),
	}, nil
}

func accessClaims(user *domain.User) map[string]interface{} {
	return map[string]interface{}{"email": user.Email, "role": user.Role}
}

func normalizeEmailInput(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	if !emailPattern.MatchString(email) || len(email) > 255 {
		return fmt.Errorf("%w: invalid email", domain.ErrInvalidInput)
	}
	return nil
}
