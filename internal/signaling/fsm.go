package signaling

import (
	"errors"
	"fmt"

	"enclave/internal/domain"
)

// Event drives one side of a call.
type Event int

const (
	// Dial: this side sends an offer.
	Dial Event = iota
	// Ring: this side receives an offer.
	Ring
	// Answer: this side accepts a ringing call.
	Answer
	// Accepted: the other side answered our offer.
	Accepted
	// Hangup: either side ended, declined or disconnected.
	Hangup
)

func (e Event) String() string {
	switch e {
	case Dial:
		return "dial"
	case Ring:
		return "ring"
	case Answer:
		return "answer"
	case Accepted:
		return "accepted"
	case Hangup:
		return "hangup"
	default:
		return "unknown"
	}
}

var (
	// ErrBusy rejects a new call on a connection that already has one.
	ErrBusy = errors.New("call already in progress")
	// ErrInvalidTransition rejects an event the current state does not accept.
	ErrInvalidTransition = errors.New("invalid call transition")
)

// Next returns the state after ev, or an error and the unchanged state.
func Next(s domain.CallState, ev Event) (domain.CallState, error) {
	switch ev {
	case Dial, Ring:
		if s != domain.CallIdle {
			return s, ErrBusy
		}
		if ev == Dial {
			return domain.CallCalling, nil
		}
		return domain.CallRinging, nil
	case Answer:
		if s == domain.CallRinging {
			return domain.CallConnected, nil
		}
	case Accepted:
		if s == domain.CallCalling {
			return domain.CallConnected, nil
		}
	case Hangup:
		if s.Active() {
			return domain.CallIdle, nil
		}
	}
	return s, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, ev, s)
}
