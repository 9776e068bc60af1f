// Package signaling implements the call lifecycle shared by the relay and
// the client.
//
// States per connection:
//
//	idle → calling → connected → idle      (caller)
//	idle → ringing → connected → idle      (callee)
//	ringing → idle                          (decline)
//
// Next is the pure transition function. Table applies it to both sides of a
// call atomically on the relay, and enforces at most one active call per
// connection. Signals (offers, answers, candidates) are validated as WebRTC
// JSON before any state changes.
package signaling
