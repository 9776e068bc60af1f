package relay

import (
	"sort"
	"sync"

	"enclave/internal/domain"
)

// Presence is the member list one room should receive.
type Presence struct {
	Room    domain.RoomID
	Members []domain.Identity
}

// Directory maps connections to their announced identity. It is the only
// place identities are stored; rooms are derived by filtering.
type Directory struct {
	mu         sync.RWMutex
	identities map[domain.ConnectionID]domain.Identity
}

// NewDirectory returns an empty directory.
func NewDirectory() *Directory {
	return &Directory{identities: make(map[domain.ConnectionID]domain.Identity)}
}

// Join registers or overwrites id's identity and returns the presence
// updates to broadcast: the joined room, plus the previous room when the
// connection moved.
func (d *Directory) Join(id domain.Identity) []Presence {
	d.mu.Lock()
	defer d.mu.Unlock()

	prev, had := d.identities[id.ID]
	d.identities[id.ID] = id

	out := []Presence{{Room: id.Room, Members: d.membersLocked(id.Room)}}
	if had && prev.Room != id.Room {
		out = append(out, Presence{Room: prev.Room, Members: d.membersLocked(prev.Room)})
	}
	return out
}

// Leave removes id and returns the presence update for the room it was in.
// ok is false if id never joined.
func (d *Directory) Leave(id domain.ConnectionID) (Presence, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	prev, had := d.identities[id]
	if !had {
		return Presence{}, false
	}
	delete(d.identities, id)
	return Presence{Room: prev.Room, Members: d.membersLocked(prev.Room)}, true
}

// Lookup returns id's identity.
func (d *Directory) Lookup(id domain.ConnectionID) (domain.Identity, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ident, ok := d.identities[id]
	return ident, ok
}

// Has reports whether id is joined.
func (d *Directory) Has(id domain.ConnectionID) bool {
	_, ok := d.Lookup(id)
	return ok
}

// Members lists the identities in room.
func (d *Directory) Members(room domain.RoomID) []domain.Identity {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.membersLocked(room)
}

func (d *Directory) membersLocked(room domain.RoomID) []domain.Identity {
	out := make([]domain.Identity, 0)
	for _, ident := range d.identities {
		if ident.Room == room {
			out = append(out, ident)
		}
	}
	// Map order is random; keep lists stable for clients and logs.
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// RoomCounts returns the number of members per room.
func (d *Directory) RoomCounts() map[domain.RoomID]int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[domain.RoomID]int)
	for _, ident := range d.identities {
		out[ident.Room]++
	}
	return out
}

// Len counts joined connections.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.identities)
}
