package domain

import (
	interfaces "enclave/internal/domain/interfaces"
	types "enclave/internal/domain/types"
)

// Type aliases expose domain types from the types subpackage for compact imports.
type (
	ConnectionID     = types.ConnectionID
	Username         = types.Username
	RoomID           = types.RoomID
	Fingerprint      = types.Fingerprint
	PublicKeyBlob    = types.PublicKeyBlob
	SharedSecret     = types.SharedSecret
	Identity         = types.Identity
	Metadata         = types.Metadata
	Envelope         = types.Envelope
	RelayedEnvelope  = types.RelayedEnvelope
	DecryptedMessage = types.DecryptedMessage
	CallState        = types.CallState
	CallSession      = types.CallSession
	Frame            = types.Frame
	SessionInfo      = types.SessionInfo
	JoinRequest      = types.JoinRequest
	TypingRequest    = types.TypingRequest
	TypingNotice     = types.TypingNotice
	CallRequest      = types.CallRequest
	IncomingCall     = types.IncomingCall
	AnswerRequest    = types.AnswerRequest
	CandidateRequest = types.CandidateRequest
	EndCallRequest   = types.EndCallRequest
	CallFailure      = types.CallFailure
)

// Interface aliases expose domain interfaces from the interfaces subpackage.
type (
	RelayClient   = interfaces.RelayClient
	Deliverer     = interfaces.Deliverer
	MediaSession  = interfaces.MediaSession
	MediaFactory  = interfaces.MediaFactory
	KnownKey      = interfaces.KnownKey
	KnownKeyStore = interfaces.KnownKeyStore
)

// Constants re-exported from the types subpackage.
const (
	DefaultRoom          = types.DefaultRoom
	EveryoneBucket       = types.EveryoneBucket
	DecryptionFailedText = types.DecryptionFailedText
	KeyTypeEC            = types.KeyTypeEC
	CurveP256            = types.CurveP256
	SecretLength         = types.SecretLength
	MaxUsernameLen       = types.MaxUsernameLen
	MaxRoomLen           = types.MaxRoomLen

	CallIdle      = types.CallIdle
	CallCalling   = types.CallCalling
	CallRinging   = types.CallRinging
	CallConnected = types.CallConnected

	EventSession      = types.EventSession
	EventJoin         = types.EventJoin
	EventUsersList    = types.EventUsersList
	EventPrivateMsg   = types.EventPrivateMsg
	EventTyping       = types.EventTyping
	EventCallUser     = types.EventCallUser
	EventAnswerCall   = types.EventAnswerCall
	EventCallAccepted = types.EventCallAccepted
	EventICECandidate = types.EventICECandidate
	EventEndCall      = types.EventEndCall
	EventCallFailed   = types.EventCallFailed

	CallFailedBusy = types.CallFailedBusy
)
