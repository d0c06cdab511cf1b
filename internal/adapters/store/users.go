package store

import (
	"context"
	"strings"

	"github.com/trendyx/identity-service/internal/domain"
)

type UserRepository interface {
	// Create inserts a user together with its default profile. The duplicate
	// check and both inserts happen in one critical section so no partial
	// user-without-profile state is ever observable.
	Create(ctx context.Context, user *domain.User, profile *domain.Profile) error
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
}

type userRepo struct{ store *Store }

func NewUserRepository(s *Store) UserRepository { return &userRepo{store: s} }

func (r *userRepo) Create(_ context.Context, user *domain.User, profile *domain.Profile) error {
	email := normalizeEmail(user.Email)
	s := r.store

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[email]; exists {
		return domain.ErrDuplicateIdentity
	}
	user.Email = email
	s.users[email] = user
	s.userEmails[user.ID] = email
	if profile != nil {
		s.profiles[user.ID] = profile
	}
	return nil
}

func (r *userRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[normalizeEmail(email)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *userRepo) FindByID(_ context.Context, id string) (*domain.User, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	email, ok := s.userEmails[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s.users[email]
	return &cp, nil
}

func (r *userRepo) Update(_ context.Context, user *domain.User) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	email, ok := s.userEmails[user.ID]
	if !ok {
		return domain.ErrNotFound
	}
	cp := *user
	cp.Email = email
	s.users[email] = &cp
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
