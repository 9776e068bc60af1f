package presence

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"enclave/internal/crypto"
	"enclave/internal/domain"
)

// SecretCache is the part of secrets.Cache the roster invalidates.
type SecretCache interface {
	Forget(ids ...domain.ConnectionID)
	Retain(live map[domain.ConnectionID]bool)
}

// RotationWarning reports that a username now announces a different key.
type RotationWarning struct {
	Username      domain.Username
	Previous      domain.Fingerprint
	Current       domain.Fingerprint
	WasVerified   bool
	ConnectionIDs []domain.ConnectionID
}

func (w RotationWarning) String() string {
	return fmt.Sprintf("%s changed keys: %s -> %s", w.Username, w.Previous, w.Current)
}

// Roster is safe for concurrent use.
type Roster struct {
	mu      sync.RWMutex
	self    domain.ConnectionID
	members []domain.Identity
	byID    map[domain.ConnectionID]domain.Identity
	idsOf   map[domain.Username]map[domain.ConnectionID]bool
	known   map[domain.Username]domain.KnownKey

	book  domain.KnownKeyStore
	cache SecretCache
	log   logrus.FieldLogger
	now   func() time.Time
}

// NewRoster loads the known-keys book.
func NewRoster(book domain.KnownKeyStore, cache SecretCache, log logrus.FieldLogger) (*Roster, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	known, err := book.LoadKnownKeys()
	if err != nil {
		return nil, err
	}
	if known == nil {
		known = make(map[domain.Username]domain.KnownKey)
	}
	return &Roster{
		byID:  make(map[domain.ConnectionID]domain.Identity),
		idsOf: make(map[domain.Username]map[domain.ConnectionID]bool),
		known: known,
		book:  book,
		cache: cache,
		log:   log,
		now:   time.Now,
	}, nil
}

// SetSelf records the client's own connection id, which is never checked
// for rotation.
func (r *Roster) SetSelf(id domain.ConnectionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.self = id
}

// Self returns the client's connection id.
func (r *Roster) Self() domain.ConnectionID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.self
}

// Update replaces the member list and returns the rotations it revealed.
func (r *Roster) Update(list []domain.Identity) []RotationWarning {
	r.mu.Lock()
	defer r.mu.Unlock()

	members := append([]domain.Identity(nil), list...)
	sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })

	byID := make(map[domain.ConnectionID]domain.Identity, len(members))
	keysOf := make(map[domain.Username][]domain.PublicKeyBlob)
	for _, m := range members {
		byID[m.ID] = m
		if m.ID == r.self {
			continue
		}
		keysOf[m.Username] = append(keysOf[m.Username], m.PublicKey)
		if r.idsOf[m.Username] == nil {
			r.idsOf[m.Username] = make(map[domain.ConnectionID]bool)
		}
		r.idsOf[m.Username][m.ID] = true
	}

	live := make(map[domain.ConnectionID]bool, len(byID))
	for id := range byID {
		live[id] = true
	}
	r.cache.Retain(live)

	var (
		warnings []RotationWarning
		dirty    bool
		now      = r.now().UnixMilli()
	)
	for _, name := range sortedNames(keysOf) {
		keys := keysOf[name]
		rec, seen := r.known[name]
		if !seen {
			r.known[name] = domain.KnownKey{PublicKey: keys[0], FirstSeen: now}
			dirty = true
			continue
		}
		if containsKey(keys, rec.PublicKey) {
			continue
		}

		w := RotationWarning{
			Username:    name,
			Previous:    crypto.Fingerprint(rec.PublicKey),
			Current:     crypto.Fingerprint(keys[0]),
			WasVerified: rec.Verified,
		}
		for id := range r.idsOf[name] {
			w.ConnectionIDs = append(w.ConnectionIDs, id)
		}
		sort.Slice(w.ConnectionIDs, func(i, j int) bool { return w.ConnectionIDs[i] < w.ConnectionIDs[j] })
		r.cache.Forget(w.ConnectionIDs...)

		r.known[name] = domain.KnownKey{PublicKey: keys[0], FirstSeen: rec.FirstSeen, Changed: now}
		dirty = true
		warnings = append(warnings, w)
		r.log.WithFields(logrus.Fields{
			"username": name,
			"previous": w.Previous,
			"current":  w.Current,
		}).Warn("identity key changed")
	}

	// Forget connection ids that left; only the current ones matter for the
	// next rotation.
	for name, ids := range r.idsOf {
		for id := range ids {
			if !live[id] {
				delete(ids, id)
			}
		}
		if len(ids) == 0 {
			delete(r.idsOf, name)
		}
	}

	r.members = members
	r.byID = byID
	if dirty {
		r.saveLocked()
	}
	return warnings
}

func (r *Roster) saveLocked() {
	snapshot := make(map[domain.Username]domain.KnownKey, len(r.known))
	for k, v := range r.known {
		snapshot[k] = v
	}
	if err := r.book.SaveKnownKeys(snapshot); err != nil {
		r.log.WithError(err).Warn("saving known keys failed")
	}
}

// Members returns everyone in the room, the client included, ordered by
// connection id.
func (r *Roster) Members() []domain.Identity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.Identity(nil), r.members...)
}

// Peers returns Members without the client itself.
func (r *Roster) Peers() []domain.Identity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Identity, 0, len(r.members))
	for _, m := range r.members {
		if m.ID != r.self {
			out = append(out, m)
		}
	}
	return out
}

// Lookup returns the member with connection id id.
func (r *Roster) Lookup(id domain.ConnectionID) (domain.Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byID[id]
	return m, ok
}

// Find returns the first member announcing name, skipping the client itself.
func (r *Roster) Find(name domain.Username) (domain.Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.members {
		if m.Username == name && m.ID != r.self {
			return m, true
		}
	}
	return domain.Identity{}, false
}

// Known returns the book entry for name.
func (r *Roster) Known(name domain.Username) (domain.KnownKey, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	k, ok := r.known[name]
	return k, ok
}

// Verify marks the recorded key for name as checked out of band.
func (r *Roster) Verify(name domain.Username) (domain.Fingerprint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k, ok := r.known[name]
	if !ok {
		return "", fmt.Errorf("no key on record for %q", name)
	}
	k.Verified = true
	r.known[name] = k
	if err := r.book.SaveKnownKeys(r.known); err != nil {
		return "", fmt.Errorf("save known keys: %w", err)
	}
	return crypto.Fingerprint(k.PublicKey), nil
}

func containsKey(keys []domain.PublicKeyBlob, want domain.PublicKeyBlob) bool {
	canon := want.Canonical()
	for _, k := range keys {
		if k.Canonical() == canon {
			return true
		}
	}
	return false
}

func sortedNames(m map[domain.Username][]domain.PublicKeyBlob) []domain.Username {
	out := make([]domain.Username, 0, len(m))
	for name := range m {
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
