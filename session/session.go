// Package session authenticates admin-panel users: bcrypt-checked
// credentials and cookie sessions with lazy expiry collection.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/ArthurBabkin/ai-sales/internal/paths"
	"github.com/ArthurBabkin/ai-sales/store"
)

const DefaultTTL = time.Hour

// Record is a stored session. SessionID holds a bcrypt hash of the
// cookie value, never the value itself.
type Record struct {
	Username            string `json:"username"`
	SessionID           string `json:"sessionId"`
	ExpirationTimestamp int64  `json:"expirationTimestamp"`
}

type admin struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type Manager struct {
	db  store.Store
	ttl time.Duration
	now func() time.Time
	mu  sync.Mutex
}

func NewManager(db store.Store, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{db: db, ttl: ttl, now: time.Now}
}

// WithClock overrides the timestamp source. Tests only.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// AddAdmin appends an admin credential, storing only a bcrypt hash of
// the password.
func (m *Manager) AddAdmin(ctx context.Context, username, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var admins []admin
	if _, err := m.db.Get(ctx, paths.Admins, &admins); err != nil {
		return err
	}
	admins = append(admins, admin{Username: username, Password: string(hash)})
	return m.db.Set(ctx, paths.Admins, admins)
}

// CheckAdmin compares credentials against the stored admin list.
func (m *Manager) CheckAdmin(ctx context.Context, username, password string) (bool, error) {
	var admins []admin
	found, err := m.db.Get(ctx, paths.Admins, &admins)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}
	for _, a := range admins {
		if a.Username != username {
			continue
		}
		if bcrypt.CompareHashAndPassword([]byte(a.Password), []byte(password)) == nil {
			return true, nil
		}
	}
	return false, nil
}

func (m *Manager) sessions(ctx context.Context) ([]Record, error) {
	var sessions []Record
	found, err := m.db.Get(ctx, paths.Sessions, &sessions)
	if err != nil {
		return nil, err
	}
	if !found || sessions == nil {
		return []Record{}, nil
	}
	return sessions, nil
}

// Add issues a new session id for username and persists its hash.
// The returned plain id goes into the cookie.
func (m *Manager) Add(ctx context.Context, username string) (string, error) {
	sessionID := uuid.NewString()
	// MinCost: session ids are already high-entropy, the hash only
	// keeps the stored copy from being replayable.
	hash, err := bcrypt.GenerateFromPassword([]byte(sessionID), bcrypt.MinCost)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	sessions, err := m.sessions(ctx)
	if err != nil {
		return "", err
	}
	sessions = append(sessions, Record{
		Username:            username,
		SessionID:           string(hash),
		ExpirationTimestamp: m.now().Add(m.ttl).UnixMilli(),
	})
	if err := m.db.Set(ctx, paths.Sessions, sessions); err != nil {
		return "", err
	}
	return sessionID, nil
}

// Check reports whether the (username, sessionID) pair names a live
// session. Expired records are dropped from storage as a side effect.
func (m *Manager) Check(ctx context.Context, username, sessionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sessions, err := m.sessions(ctx)
	if err != nil {
		return false, err
	}
	nowMillis := m.now().UnixMilli()
	kept := sessions[:0]
	authorized := false
	for _, s := range sessions {
		if s.ExpirationTimestamp <= nowMillis {
			continue
		}
		kept = append(kept, s)
		if s.Username == username &&
			bcrypt.CompareHashAndPassword([]byte(s.SessionID), []byte(sessionID)) == nil {
			authorized = true
		}
	}
	if err := m.db.Set(ctx, paths.Sessions, kept); err != nil {
		return false, err
	}
	return authorized, nil
}

// Extend pushes the matching session's expiry out by the TTL,
// dropping expired records along the way.
func (m *Manager) Extend(ctx context.Context, username, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sessions, err := m.sessions(ctx)
	if err != nil {
		return err
	}
	nowMillis := m.now().UnixMilli()
	kept := sessions[:0]
	for _, s := range sessions {
		if s.Username == username &&
			bcrypt.CompareHashAndPassword([]byte(s.SessionID), []byte(sessionID)) == nil {
			s.ExpirationTimestamp = m.now().Add(m.ttl).UnixMilli()
		}
		if s.ExpirationTimestamp > nowMillis {
			kept = append(kept, s)
		}
	}
	return m.db.Set(ctx, paths.Sessions, kept)
}
