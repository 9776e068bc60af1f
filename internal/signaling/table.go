package signaling

import (
	"encoding/json"
	"errors"
	"sync"

	"enclave/internal/domain"
)

var (
	// ErrUnknownPeer: the callee is not in the directory.
	ErrUnknownPeer = errors.New("unknown peer")
	// ErrNotJoined: the caller never joined.
	ErrNotJoined = errors.New("caller not joined")
	// ErrSelfCall: from and to are the same connection.
	ErrSelfCall = errors.New("cannot call self")
	// ErrNoActiveCall: the pair has no call matching the request.
	ErrNoActiveCall = errors.New("no active call with peer")
)

// Table holds the relay's per-connection call sessions. All transitions for
// both sides of a call happen under one lock, so a disconnect racing a dial
// leaves either no call or a call that Drop then tears down.
type Table struct {
	mu       sync.Mutex
	sessions map[domain.ConnectionID]*domain.CallSession
	present  func(domain.ConnectionID) bool
}

// NewTable returns an empty table. present reports directory membership.
func NewTable(present func(domain.ConnectionID) bool) *Table {
	return &Table{
		sessions: make(map[domain.ConnectionID]*domain.CallSession),
		present:  present,
	}
}

func (t *Table) state(id domain.ConnectionID) domain.CallState {
	if s, ok := t.sessions[id]; ok {
		return s.State
	}
	return domain.CallIdle
}

// linked reports whether id has an active call with peer.
func (t *Table) linked(id, peer domain.ConnectionID) (*domain.CallSession, bool) {
	s, ok := t.sessions[id]
	if !ok || !s.State.Active() || s.Remote != peer {
		return nil, false
	}
	return s, true
}

// Initiate moves from to calling and to to ringing, holding the offer until
// the callee answers or hangs up.
func (t *Table) Initiate(from, to domain.ConnectionID, offer json.RawMessage) error {
	if from == to {
		return ErrSelfCall
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.present(from) {
		return ErrNotJoined
	}
	if !t.present(to) {
		return ErrUnknownPeer
	}
	callerState, err := Next(t.state(from), Dial)
	if err != nil {
		return err
	}
	calleeState, err := Next(t.state(to), Ring)
	if err != nil {
		return err
	}

	t.sessions[from] = &domain.CallSession{Local: from, Remote: to, State: callerState}
	t.sessions[to] = &domain.CallSession{Local: to, Remote: from, State: calleeState, PendingSignal: offer}
	return nil
}

// Accept connects a ringing callee (from) with its caller (to).
func (t *Table) Accept(from, to domain.ConnectionID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	callee, ok := t.linked(from, to)
	if !ok {
		return ErrNoActiveCall
	}
	caller, ok := t.linked(to, from)
	if !ok {
		return ErrNoActiveCall
	}
	calleeNext, err := Next(callee.State, Answer)
	if err != nil {
		return err
	}
	callerNext, err := Next(caller.State, Accepted)
	if err != nil {
		return err
	}

	callee.State, callee.PendingSignal = calleeNext, nil
	caller.State = callerNext
	return nil
}

// Candidate checks that from and to share a live call.
func (t *Table) Candidate(from, to domain.ConnectionID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.linked(from, to); !ok {
		return ErrNoActiveCall
	}
	return nil
}

// End hangs up the call between from and to and resets both sides.
func (t *Table) End(from, to domain.ConnectionID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.linked(from, to); !ok {
		return ErrNoActiveCall
	}
	t.hangup(from)
	return nil
}

// Drop tears down any call id is in, for disconnects. It returns the other
// side so the caller can notify it.
func (t *Table) Drop(id domain.ConnectionID) (domain.ConnectionID, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[id]
	if !ok || !s.State.Active() {
		delete(t.sessions, id)
		return "", false
	}
	remote := s.Remote
	t.hangup(id)
	return remote, true
}

// hangup resets id and, if it still points back, its peer.
func (t *Table) hangup(id domain.ConnectionID) {
	s := t.sessions[id]
	delete(t.sessions, id)
	if s == nil {
		return
	}
	if peer, ok := t.linked(s.Remote, id); ok {
		delete(t.sessions, peer.Local)
	}
}

// Session returns a copy of id's call session; idle if it has none.
func (t *Table) Session(id domain.ConnectionID) domain.CallSession {
	t.mu.Lock()
	defer t.mu.Unlock()

	if s, ok := t.sessions[id]; ok {
		return *s
	}
	return domain.CallSession{Local: id, State: domain.CallIdle}
}

// Active counts connections with a call in progress.
func (t *Table) Active() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}
