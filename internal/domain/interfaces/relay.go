package interfaces

import (
	"context"

	domaintypes "enclave/internal/domain/types"
)

// RelayClient is how client services talk to the relay. Payloads are
// JSON-encoded into the frame's data field.
type RelayClient interface {
	Emit(ctx context.Context, event string, payload any) error
}

// Deliverer pushes one event to one live connection on the relay side. It
// reports false when the connection is gone; callers treat that as a drop.
type Deliverer interface {
	Deliver(to domaintypes.ConnectionID, event string, payload any) bool
}
