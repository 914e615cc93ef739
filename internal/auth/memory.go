package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"civicconnect.org/internal/ids"
)

// MemoryStore is an in-process Store used by tests and the database-less server mode.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[string]User
	byEmail  map[string]string
	profiles map[string]Profile
	roles    map[string]Role
	revoked  map[string]time.Time
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]User),
		byEmail:  make(map[string]string),
		profiles: make(map[string]Profile),
		roles:    make(map[string]Role),
		revoked:  make(map[string]time.Time),
		now:      time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (m *MemoryStore) CreateUser(_ context.Context, u User) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email := normalizeEmail(u.Email)
	if _, ok := m.byEmail[email]; ok {
		return nil, ErrConflict
	}
	if u.ID == "" {
		u.ID = ids.New()
	}
	now := m.now().UTC()
	u.Email = email
	u.CreatedAt, u.UpdatedAt = now, now
	m.users[u.ID] = u
	m.byEmail[email] = u.ID
	out := u
	return &out, nil
}

func (m *MemoryStore) UserByEmail(_ context.Context, email string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byEmail[normalizeEmail(email)]
	if !ok {
		return nil, ErrNotFound
	}
	u := m.users[id]
	return &u, nil
}

func (m *MemoryStore) UserByID(_ context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (m *MemoryStore) UpsertProfile(_ context.Context, p Profile) (*Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now().UTC()
	cur, ok := m.profiles[p.UserID]
	if !ok {
		cur = Profile{UserID: p.UserID, CreatedAt: now}
	}
	if p.DisplayName != "" {
		cur.DisplayName = p.DisplayName
	}
	if p.AvatarURL != "" {
		cur.AvatarURL = p.AvatarURL
	}
	cur.UpdatedAt = now
	m.profiles[p.UserID] = cur
	out := cur
	return &out, nil
}

func (m *MemoryStore) ProfileByUserID(_ context.Context, userID string) (*Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (m *MemoryStore) RoleFor(_ context.Context, userID string) (Role, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.roles[userID]
	if !ok {
		return "", ErrNotFound
	}
	return r, nil
}

func (m *MemoryStore) AssignRole(_ context.Context, userID string, role Role) error {
	if !role.Valid() {
		return ErrInvalidInput
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roles[userID] = role
	return nil
}

func (m *MemoryStore) Revoke(_ context.Context, tokenID string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for id, exp := range m.revoked {
		if now.After(exp) {
			delete(m.revoked, id)
		}
	}
	m.revoked[tokenID] = expiresAt
	return nil
}

func (m *MemoryStore) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.revoked[tokenID]
	return ok, nil
}
