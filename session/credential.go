package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCredentialNotFound is returned when no credential is persisted for a device.
var ErrCredentialNotFound = errors.New("credential not found")

// ErrCredentialCorrupt is returned when a persisted blob cannot be decoded or opened.
var ErrCredentialCorrupt = errors.New("credential corrupt")

// Cookie is one transport credential captured from the backend's cookie jar.
type Cookie struct {
	Name  string
	Value string
}

// Credential is what survives a process restart: the last issued token for a
// device and the transport cookies that the refresh endpoint expects.
type Credential struct {
	DeviceID string
	Token    string
	Cookies  []Cookie
	IssuedAt time.Time
}

// CredentialStore persists one [Credential] per device.
type CredentialStore interface {
	Save(ctx context.Context, cred *Credential, ttl time.Duration) error
	Load(ctx context.Context, deviceID string) (*Credential, error)
	Delete(ctx context.Context, deviceID string) error
}

type memoryEntry struct {
	blob      []byte
	expiresAt time.Time
}

// MemoryCredentialStore keeps encoded credentials in process memory. It is the
// default when no Redis client is configured.
type MemoryCredentialStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryCredentialStore returns an empty in-memory store.
func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (m *MemoryCredentialStore) Save(_ context.Context, cred *Credential, ttl time.Duration) error {
	if cred == nil || cred.DeviceID == "" {
		return errors.New("credential device id required")
	}
	blob, err := Encode(cred)
	if err != nil {
		return err
	}

	entry := memoryEntry{blob: blob}
	if ttl > 0 {
		entry.expiresAt = m.now().Add(ttl)
	}

	m.mu.Lock()
	m.entries[cred.DeviceID] = entry
	m.mu.Unlock()
	return nil
}

func (m *MemoryCredentialStore) Load(_ context.Context, deviceID string) (*Credential, error) {
	m.mu.Lock()
	entry, ok := m.entries[deviceID]
	if ok && !entry.expiresAt.IsZero() && !m.now().Before(entry.expiresAt) {
		delete(m.entries, deviceID)
		ok = false
	}
	m.mu.Unlock()

	if !ok {
		return nil, ErrCredentialNotFound
	}
	cred, err := Decode(entry.blob)
	if err != nil {
		return nil, errors.Join(ErrCredentialCorrupt, err)
	}
	return cred, nil
}

func (m *MemoryCredentialStore) Delete(_ context.Context, deviceID string) error {
	m.mu.Lock()
	delete(m.entries, deviceID)
	m.mu.Unlock()
	return nil
}
