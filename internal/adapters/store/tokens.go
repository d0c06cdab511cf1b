package store

import (
	"context"

	"github.com/trendyx/identity-service/internal/domain"
)

type RefreshTokenRepository interface {
	Create(ctx context.Context, token *domain.RefreshToken) error
	// FindActive resolves a token hash. Expired entries are deleted lazily on
	// lookup and reported as domain.ErrInvalidToken.
	FindActive(ctx context.Context, hash string) (*domain.RefreshToken, error)
	// Delete is idempotent; removing an unknown hash is a no-op success.
	Delete(ctx context.Context, hash string) error
}

type IntegrationTokenRepository interface {
	Create(ctx context.Context, token *domain.IntegrationToken) error
	// Redeem atomically validates and marks a token used. Absent, already
	// used and expired tokens all fail with domain.ErrInvalidToken; no two
	// callers can both observe the same token as valid. Used and expired
	// records are retained for the cleanup sweep so replay stays detectable.
	Redeem(ctx context.Context, id string) (*domain.IntegrationToken, error)
}

type PendingSignupRepository interface {
	Create(ctx context.Context, signup *domain.PendingSignup) error
	Find(ctx context.Context, id string) (*domain.PendingSignup, error)
	Complete(ctx context.Context, id, userID string) error
}

type refreshTokenRepo struct{ store *Store }

func NewRefreshTokenRepository(s *Store) RefreshTokenRepository {
	return &refreshTokenRepo{store: s}
}

func (r *refreshTokenRepo) Create(_ context.Context, token *domain.RefreshToken) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *token
	s.refresh[token.TokenHash] = &cp
	return nil
}

func (r *refreshTokenRepo) FindActive(_ context.Context, hash string) (*domain.RefreshToken, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	tok, ok := s.refresh[hash]
	if !ok {
		return nil, domain.ErrInvalidToken
	}
	if tok.Expired(s.now()) {
		delete(s.refresh, hash)
		return nil, domain.ErrInvalidToken
	}
	cp := *tok
	return &cp, nil
}

func (r *refreshTokenRepo) Delete(_ context.Context, hash string) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.refresh, hash)
	return nil
}

type integrationTokenRepo struct{ store *Store }

func NewIntegrationTokenRepository(s *Store) IntegrationTokenRepository {
	return &integrationTokenRepo{store: s}
}

func (r *integrationTokenRepo) Create(_ context.Context, token *domain.IntegrationToken) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *token
	s.tokens[token.ID] = &cp
	return nil
}

func (r *integrationTokenRepo) Redeem(_ context.Context, id string) (*domain.IntegrationToken, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	tok, ok := s.tokens[id]
	if !ok || tok.Used || tok.Expired(s.now()) {
		return nil, domain.ErrInvalidToken
	}
	tok.Used = true
	cp := *tok
	return &cp, nil
}

type pendingSignupRepo struct{ store *Store }

func NewPendingSignupRepository(s *Store) PendingSignupRepository {
	return &pendingSignupRepo{store: s}
}

func (r *pendingSignupRepo) Create(_ context.Context, signup *domain.PendingSignup) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *signup
	s.pending[signup.ID] = &cp
	return nil
}

func (r *pendingSignupRepo) Find(_ context.Context, id string) (*domain.PendingSignup, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pending[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *pendingSignupRepo) Complete(_ context.Context, id, userID string) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.Status = domain.SignupStatusCompleted
	p.UserID = userID
	return nil
}
