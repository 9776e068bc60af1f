package types

import "encoding/json"

// CallState is one connection's position in the call lifecycle.
type CallState int

const (
	CallIdle CallState = iota
	CallCalling
	CallRinging
	CallConnected
)

func (s CallState) String() string {
	switch s {
	case CallIdle:
		return "idle"
	case CallCalling:
		return "calling"
	case CallRinging:
		return "ringing"
	case CallConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// Active reports whether the state belongs to a call in progress.
func (s CallState) Active() bool { return s != CallIdle }

// CallSession is the signaling view of one side of a call.
type CallSession struct {
	Local         ConnectionID    `json:"local"`
	Remote        ConnectionID    `json:"remote"`
	State         CallState       `json:"state"`
	PendingSignal json.RawMessage `json:"pendingSignal,omitempty"`
}
