package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"enclave/internal/domain"
)

const (
	knownKeysFile       = "known_keys.json"
	sealedKnownKeysFile = "known_keys.enc"
)

// KnownKeysFileStore keeps the username → public key book under a home
// directory. With a passphrase the book is sealed on disk.
type KnownKeysFileStore struct {
	dir        string
	passphrase string
	params     scryptParams
	mu         sync.Mutex
}

// KnownKeysOption configures a KnownKeysFileStore.
type KnownKeysOption func(*KnownKeysFileStore)

// WithPassphrase seals the book with a key stretched from passphrase.
func WithPassphrase(passphrase string) KnownKeysOption {
	return func(s *KnownKeysFileStore) { s.passphrase = passphrase }
}

// withScrypt lowers KDF cost for tests.
func withScrypt(p scryptParams) KnownKeysOption {
	return func(s *KnownKeysFileStore) { s.params = p }
}

// NewKnownKeysFileStore returns a store rooted at dir.
func NewKnownKeysFileStore(dir string, opts ...KnownKeysOption) *KnownKeysFileStore {
	s := &KnownKeysFileStore{dir: dir, params: defaultScrypt}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Path returns the file the book lives in.
func (s *KnownKeysFileStore) Path() string {
	if s.passphrase != "" {
		return filepath.Join(s.dir, sealedKnownKeysFile)
	}
	return filepath.Join(s.dir, knownKeysFile)
}

// LoadKnownKeys reads the book. A missing file is an empty book.
func (s *KnownKeysFileStore) LoadKnownKeys() (map[domain.Username]domain.KnownKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[domain.Username]domain.KnownKey)
	b, err := os.ReadFile(s.Path())
	if errors.Is(err, os.ErrNotExist) {
		return out, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load known keys: %w", err)
	}
	if s.passphrase != "" {
		if b, err = unseal(s.passphrase, b); err != nil {
			return nil, fmt.Errorf("load known keys: %w", err)
		}
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("load known keys: %w", err)
	}
	return out, nil
}

// SaveKnownKeys replaces the book on disk.
func (s *KnownKeysFileStore) SaveKnownKeys(keys map[domain.Username]domain.KnownKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := json.MarshalIndent(keys, "", "  ")
	if err != nil {
		return fmt.Errorf("save known keys: %w", err)
	}
	if s.passphrase != "" {
		if b, err = seal(s.passphrase, b, s.params); err != nil {
			return fmt.Errorf("save known keys: %w", err)
		}
	}
	if err := s.replace(b); err != nil {
		return fmt.Errorf("save known keys: %w", err)
	}
	return nil
}

// replace swaps the book file for b through a synced temp file in the same
// directory, so a crash leaves either the old book or the new one.
func (s *KnownKeysFileStore) replace(b []byte) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return err
	}
	path := s.Path()
	f, err := os.CreateTemp(s.dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()

	_, err = f.Write(b)
	if err == nil {
		err = f.Chmod(0o600)
	}
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

var _ domain.KnownKeyStore = (*KnownKeysFileStore)(nil)

// MemoryKnownKeys is an in-process book for sessions that should leave no
// trace on disk.
type MemoryKnownKeys struct {
	mu   sync.Mutex
	keys map[domain.Username]domain.KnownKey
}

func NewMemoryKnownKeys() *MemoryKnownKeys {
	return &MemoryKnownKeys{keys: make(map[domain.Username]domain.KnownKey)}
}

func (m *MemoryKnownKeys) LoadKnownKeys() (map[domain.Username]domain.KnownKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[domain.Username]domain.KnownKey, len(m.keys))
	for k, v := range m.keys {
		out[k] = v
	}
	return out, nil
}

func (m *MemoryKnownKeys) SaveKnownKeys(keys map[domain.Username]domain.KnownKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys = make(map[domain.Username]domain.KnownKey, len(keys))
	for k, v := range keys {
		m.keys[k] = v
	}
	return nil
}

var _ domain.KnownKeyStore = (*MemoryKnownKeys)(nil)
