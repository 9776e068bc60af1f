package interfaces

import (
	"context"
	"encoding/json"
)

// MediaSession is the peer-to-peer media side of a call. Signals are opaque
// JSON (SDP descriptions and ICE candidates) to everything but the
// implementation.
type MediaSession interface {
	Offer(ctx context.Context) (json.RawMessage, error)
	Answer(ctx context.Context, offer json.RawMessage) (json.RawMessage, error)
	Accept(answer json.RawMessage) error
	AddCandidate(candidate json.RawMessage) error
	OnCandidate(fn func(candidate json.RawMessage))
	// Send and OnMessage carry text over the call's data channel once it is
	// connected.
	Send(text string) error
	OnMessage(fn func(data []byte))
	Close() error
}

// MediaFactory opens a fresh MediaSession for each call.
type MediaFactory func() (MediaSession, error)
