package store

import (
	"context"

	"github.com/trendyx/identity-service/internal/domain"
)

type SessionRepository interface {
	Create(ctx context.Context, session *domain.Session) error
	Find(ctx context.Context, id string) (*domain.Session, error)
	Touch(ctx context.Context, id string) error
	// Deactivate is idempotent: unknown or already-inactive sessions are a
	// no-op success so logout can never fail.
	Deactivate(ctx context.Context, id string) error
}

type sessionRepo struct{ store *Store }

func NewSessionRepository(s *Store) SessionRepository { return &sessionRepo{store: s} }

func (r *sessionRepo) Create(_ context.Context, session *domain.Session) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *session
	s.sessions[session.ID] = &cp
	return nil
}

func (r *sessionRepo) Find(_ context.Context, id string) (*domain.Session, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *sess
	return &cp, nil
}

func (r *sessionRepo) Touch(_ context.Context, id string) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return domain.ErrNotFound
	}
	sess.LastActivityAt = s.now()
	return nil
}

func (r *sessionRepo) Deactivate(_ context.Context, id string) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		sess.Active = false
	}
	return nil
}
