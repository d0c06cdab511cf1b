package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/trendyx/identity-service/internal/domain"
)

// Snapshot file names, one durable record per entity type.
const (
	usersFile    = "users.json"
	profilesFile = "profiles.json"
	sessionsFile = "sessions.json"

	backupsDir = "backups"
)

// Store owns the authoritative in-memory state and its durable snapshots.
// All map access goes through mu; snapshot writes are additionally serialized
// by saveMu so a background autosave can never interleave its file writes
// with a synchronous critical-path save.
type Store struct {
	mu sync.RWMutex

	users      map[string]*domain.User // keyed by normalized email
	userEmails map[string]string       // user ID -> email index
	profiles   map[string]*domain.Profile
	sessions   map[string]*domain.Session
	refresh    map[string]*domain.RefreshToken
	tokens     map[string]*domain.IntegrationToken
	pending    map[string]*domain.PendingSignup

	saveMu    sync.Mutex
	dataDir   string
	retention int
	now       func() time.Time
}

// New creates an empty store rooted at dataDir. retention bounds the number
// of timestamped backups kept alongside the snapshots.
func New(dataDir string, retention int) *Store {
	if retention < 1 {
		retention = 1
	}
	return &Store{
		users:      map[string]*domain.User{},
		userEmails: map[string]string{},
		profiles:   map[string]*domain.Profile{},
		sessions:   map[string]*domain.Session{},
		refresh:    map[string]*domain.RefreshToken{},
		tokens:     map[string]*domain.IntegrationToken{},
		pending:    map[string]*domain.PendingSignup{},
		dataDir:    dataDir,
		retention:  retention,
		now:        time.Now,
	}
}

// Load reads existing snapshots from the data directory. Missing files are
// not an error: the corresponding maps stay empty.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := map[string]*domain.User{}
	if err := s.readSnapshot(usersFile, &users); err != nil {
		return err
	}
	profiles := map[string]*domain.Profile{}
	if err := s.readSnapshot(profilesFile, &profiles); err != nil {
		return err
	}
	sessions := map[string]*domain.Session{}
	if err := s.readSnapshot(sessionsFile, &sessions); err != nil {
		return err
	}

	s.users = users
	s.userEmails = map[string]string{}
	for email, u := range users {
		s.userEmails[u.ID] = email
	}
	// Profiles deserialized from an older snapshot may carry nil maps.
	for _, p := range profiles {
		if p.Preferences == nil {
			p.Preferences = map[string]interface{}{}
		}
		if p.Usage == nil {
			p.Usage = map[string]int64{}
		}
		if p.Settings == nil {
			p.Settings = map[string]interface{}{}
		}
	}
	s.profiles = profiles
	s.sessions = sessions
	return nil
}

func (s *Store) readSnapshot(name string, out interface{}) error {
	data, err := os.ReadFile(filepath.Join(s.dataDir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("%w: read %s: %v", domain.ErrPersistence, name, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", domain.ErrPersistence, name, err)
	}
	return nil
}

// Save snapshots the durable maps to disk. The previous snapshots are copied
// into a timestamped backup directory before being overwritten, and backups
// beyond the retention count are pruned oldest-first.
func (s *Store) Save() error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	usersData, profilesData, sessionsData, err := s.encodeSnapshots()
	if err != nil {
		return err
	}
	return s.writeSnapshots(usersData, profilesData, sessionsData)
}

func (s *Store) encodeSnapshots() (usersData, profilesData, sessionsData []byte, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if usersData, err = json.MarshalIndent(s.users, "", "  "); err == nil {
		if profilesData, err = json.MarshalIndent(s.profiles, "", "  "); err == nil {
			sessionsData, err = json.MarshalIndent(s.sessions, "", "  ")
		}
	}
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: encode snapshot: %v", domain.ErrPersistence, err)
	}
	return usersData, profilesData, sessionsData, nil
}

func (s *Store) writeSnapshots(usersData, profilesData, sessionsData []byte) error {
	if err := os.MkdirAll(s.dataDir, 0o755); err != nil {
		return fmt.Errorf("%w: create data dir: %v", domain.ErrPersistence, err)
	}
	if err := s.backupExisting(); err != nil {
		return err
	}
	for _, snap := range []struct {
		name string
		data []byte
	}{
		{usersFile, usersData},
		{profilesFile, profilesData},
		{sessionsFile, sessionsData},
	} {
		if err := writeFileAtomic(filepath.Join(s.dataDir, snap.name), snap.data); err != nil {
			return fmt.Errorf("%w: write %s: %v", domain.ErrPersistence, snap.name, err)
		}
	}
	return s.pruneBackups()
}

// SweepSessions removes sessions idle beyond maxIdle and returns how many
// were dropped. Inactive sessions are dropped regardless of age.
func (s *Store) SweepSessions(maxIdle time.Duration) int {
	cutoff := s.now().Add(-maxIdle)
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		if !sess.Active || sess.LastActivityAt.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// SweepIntegration purges used or expired integration tokens and expired
// pending signups, bounding memory growth. Completed pending signups are
// retained until their expiry passes.
func (s *Store) SweepIntegration() (tokens, signups int) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, tok := range s.tokens {
		if tok.Used || tok.Expired(now) {
			delete(s.tokens, id)
			tokens++
		}
	}
	for id, p := range s.pending {
		if p.Expired(now) {
			delete(s.pending, id)
			signups++
		}
	}
	return tokens, signups
}

// Counts reports per-entity map sizes for operational stats.
func (s *Store) Counts() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]int{
		"users":              len(s.users),
		"profiles":           len(s.profiles),
		"sessions":           len(s.sessions),
		"refresh_tokens":     len(s.refresh),
		"integration_tokens": len(s.tokens),
		"pending_signups":    len(s.pending),
	}
}
