package types

// ConnectionID addresses one live relay connection. It is assigned by the
// relay and is not stable across reconnects.
type ConnectionID string

// String returns the string form of the connection id.
func (id ConnectionID) String() string { return string(id) }

// Username is the display name a client announces on join. The relay does
// not attest it.
type Username string

// String returns the string form of the username.
func (u Username) String() string { return string(u) }

// RoomID names a presence scope.
type RoomID string

// String returns the string form of the room id.
func (r RoomID) String() string { return string(r) }

// DefaultRoom is used when a join does not name a room.
const DefaultRoom RoomID = "global"

// Join limits enforced by the relay. Usernames count characters, room ids
// count bytes.
const (
	MaxUsernameLen = 64
	MaxRoomLen     = 128
)

// EveryoneBucket is the conversation key for room-wide messages.
const EveryoneBucket = "everyone"

// Fingerprint is a short identifier for public keys presented to users.
type Fingerprint string

// String returns the string form of the fingerprint.
func (f Fingerprint) String() string { return string(f) }
