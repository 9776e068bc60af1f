package types

import "encoding/json"

// Event names exchanged over a relay connection.
const (
	EventSession      = "session"
	EventJoin         = "join"
	EventUsersList    = "users:list"
	EventPrivateMsg   = "message:private"
	EventTyping       = "typing"
	EventCallUser     = "callUser"
	EventAnswerCall   = "answerCall"
	EventCallAccepted = "callAccepted"
	EventICECandidate = "ice-candidate"
	EventEndCall      = "endCall"
	EventCallFailed   = "callFailed"
)

// Frame is the envelope every websocket message is wrapped in.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// SessionInfo tells a client its own connection id.
type SessionInfo struct {
	ID ConnectionID `json:"id"`
}

// JoinRequest announces an identity. Room defaults to DefaultRoom.
type JoinRequest struct {
	Username  Username       `json:"username"`
	PublicKey *PublicKeyBlob `json:"publicKey"`
	Room      RoomID         `json:"room,omitempty"`
}

// TypingRequest names exactly one of To or Room.
type TypingRequest struct {
	To   ConnectionID `json:"to,omitempty"`
	Room RoomID       `json:"room,omitempty"`
}

// TypingNotice is what recipients of a typing relay see.
type TypingNotice struct {
	From     ConnectionID `json:"from"`
	Username Username     `json:"username"`
}

// CallRequest carries an offer to the callee.
type CallRequest struct {
	UserToCall ConnectionID    `json:"userToCall"`
	SignalData json.RawMessage `json:"signalData"`
	From       ConnectionID    `json:"from,omitempty"`
	Name       Username        `json:"name,omitempty"`
}

// IncomingCall is the callee's view of a CallRequest.
type IncomingCall struct {
	Signal json.RawMessage `json:"signal"`
	From   ConnectionID    `json:"from"`
	Name   Username        `json:"name"`
}

// AnswerRequest carries the callee's answer back to the caller.
type AnswerRequest struct {
	To     ConnectionID    `json:"to"`
	Signal json.RawMessage `json:"signal"`
}

// CandidateRequest carries one ICE candidate to the other side.
type CandidateRequest struct {
	To        ConnectionID    `json:"to"`
	Candidate json.RawMessage `json:"candidate"`
}

// EndCallRequest hangs up, declines or cancels.
type EndCallRequest struct {
	To ConnectionID `json:"to"`
}

// CallFailure explains why a callUser was rejected.
type CallFailure struct {
	To     ConnectionID `json:"to"`
	Reason string       `json:"reason"`
}

// Reasons carried by CallFailure.
const (
	CallFailedBusy = "busy"
)
