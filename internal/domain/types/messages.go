package types

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Metadata travels in cleartext next to the ciphertext so display policy can
// be applied without decrypting.
type Metadata struct {
	// ExpiresIn is a self-destruct window in seconds, counted from the relay
	// timestamp.
	ExpiresIn int64 `json:"expiresIn,omitempty"`
	// UnlocksAt is an epoch-ms instant before which the body stays hidden.
	UnlocksAt int64 `json:"unlocksAt,omitempty"`
	IsGroup   bool  `json:"isGroup,omitempty"`
}

// UnmarshalJSON accepts any JSON number for the two time fields, as browser
// clients send them; fractions are rounded up.
func (m *Metadata) UnmarshalJSON(b []byte) error {
	var raw struct {
		ExpiresIn json.Number `json:"expiresIn"`
		UnlocksAt json.Number `json:"unlocksAt"`
		IsGroup   bool        `json:"isGroup"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	expires, err := wholeNumber(raw.ExpiresIn)
	if err != nil {
		return fmt.Errorf("expiresIn: %w", err)
	}
	unlocks, err := wholeNumber(raw.UnlocksAt)
	if err != nil {
		return fmt.Errorf("unlocksAt: %w", err)
	}
	*m = Metadata{ExpiresIn: expires, UnlocksAt: unlocks, IsGroup: raw.IsGroup}
	return nil
}

func wholeNumber(n json.Number) (int64, error) {
	if n == "" {
		return 0, nil
	}
	if i, err := n.Int64(); err == nil {
		return i, nil
	}
	f, err := n.Float64()
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt64/2 {
		return 0, fmt.Errorf("out of range: %s", n)
	}
	return int64(math.Ceil(f)), nil
}

// ExpiresAt returns the epoch-ms instant the message self-destructs, or zero
// if it never does.
func (m *Metadata) ExpiresAt(timestamp int64) int64 {
	if m == nil || m.ExpiresIn <= 0 {
		return 0
	}
	return timestamp + m.ExpiresIn*1000
}

// Expired reports whether a message stamped at timestamp has self-destructed.
func (m *Metadata) Expired(now time.Time, timestamp int64) bool {
	at := m.ExpiresAt(timestamp)
	return at != 0 && now.UnixMilli() >= at
}

// Locked reports whether the time-lock still hides the message.
func (m *Metadata) Locked(now time.Time) bool {
	return m != nil && m.UnlocksAt > 0 && now.UnixMilli() < m.UnlocksAt
}

// Remaining returns how long until the lock opens, rounded up to a second.
func (m *Metadata) Remaining(now time.Time) time.Duration {
	if !m.Locked(now) {
		return 0
	}
	ms := m.UnlocksAt - now.UnixMilli()
	return time.Duration((ms+999)/1000) * time.Second
}

// Envelope is one relayed unit of ciphertext. Content and IV are standard
// base64. From and Timestamp are filled in by the relay.
type Envelope struct {
	From      ConnectionID `json:"from,omitempty"`
	To        ConnectionID `json:"to,omitempty"`
	Content   string       `json:"content"`
	IV        string       `json:"iv"`
	Metadata  *Metadata    `json:"metadata,omitempty"`
	Timestamp int64        `json:"timestamp,omitempty"`
}

// RelayedEnvelope is the relay's view of an Envelope. Metadata stays opaque
// and is forwarded byte for byte.
type RelayedEnvelope struct {
	From      ConnectionID    `json:"from,omitempty"`
	To        ConnectionID    `json:"to,omitempty"`
	Content   string          `json:"content"`
	IV        string          `json:"iv"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"`
}

// DecryptionFailedText replaces the body of a message that failed to open.
const DecryptionFailedText = "[Decryption Failed]"

// DecryptedMessage is what the message service hands to the UI.
type DecryptedMessage struct {
	From      ConnectionID `json:"from"`
	Sender    Username     `json:"sender,omitempty"`
	Text      string       `json:"text"`
	Failed    bool         `json:"failed,omitempty"`
	Metadata  *Metadata    `json:"metadata,omitempty"`
	Timestamp int64        `json:"timestamp"`
}

// Conversation returns the bucket the message belongs to: EveryoneBucket for
// group messages, the sender's connection id otherwise.
func (m DecryptedMessage) Conversation() string {
	if m.Metadata != nil && m.Metadata.IsGroup {
		return EveryoneBucket
	}
	return m.From.String()
}
