package store

import (
	"context"

	"github.com/trendyx/identity-service/internal/domain"
)

type ProfileRepository interface {
	Get(ctx context.Context, userID string) (*domain.Profile, error)
	// Merge applies a partial update under the store write lock: scalars are
	// replaced when set, nested maps merged key-by-key with incoming keys
	// winning. The profile is created lazily if absent. Returns the merged
	// profile.
	Merge(ctx context.Context, userID string, update domain.ProfileUpdate) (*domain.Profile, error)
	// IncrementUsage bumps a per-feature usage counter, creating the profile
	// lazily if needed. Callers that only record usage, like the sign-in
	// path, use this instead of a full Merge.
	IncrementUsage(ctx context.Context, userID, feature string) error
}

type profileRepo struct{ store *Store }

func NewProfileRepository(s *Store) ProfileRepository { return &profileRepo{store: s} }

func (r *profileRepo) Get(_ context.Context, userID string) (*domain.Profile, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyProfile(p), nil
}

func (r *profileRepo) Merge(_ context.Context, userID string, update domain.ProfileUpdate) (*domain.Profile, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.userEmails[userID]; !ok {
		return nil, domain.ErrNotFound
	}
	now := s.now()
	p, ok := s.profiles[userID]
	if !ok {
		p = domain.NewProfile(userID, now)
		s.profiles[userID] = p
	}

	if update.Avatar != nil {
		p.Avatar = *update.Avatar
	}
	if update.Bio != nil {
		p.Bio = *update.Bio
	}
	for k, v := range update.Preferences {
		p.Preferences[k] = v
	}
	for k, v := range update.Usage {
		p.Usage[k] = v
	}
	for k, v := range update.Settings {
		p.Settings[k] = v
	}
	p.UpdatedAt = now
	return copyProfile(p), nil
}

func (r *profileRepo) IncrementUsage(_ context.Context, userID, feature string) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.userEmails[userID]; !ok {
		return domain.ErrNotFound
	}
	now := s.now()
	p, ok := s.profiles[userID]
	if !ok {
		p = domain.NewProfile(userID, now)
		s.profiles[userID] = p
	}
	p.Usage[feature]++
	p.UpdatedAt = now
	return nil
}

func copyProfile(p *domain.Profile) *domain.Profile {
	cp := *p
	cp.Preferences = make(map[string]interface{}, len(p.Preferences))
	for k, v := range p.Preferences {
		cp.Preferences[k] = v
	}
	cp.Usage = make(map[string]int64, len(p.Usage))
	for k, v := range p.Usage {
		cp.Usage[k] = v
	}
	cp.Settings = make(map[string]interface{}, len(p.Settings))
	for k, v := range p.Settings {
		cp.Settings[k] = v
	}
	return &cp
}
