package app

import (
	"enclave/internal/domain"
	"enclave/internal/services/call"
	"enclave/internal/services/presence"
)

// NoticeKind says what happened.
type NoticeKind int

const (
	NoticeConnected NoticeKind = iota
	NoticePresence
	NoticeRotation
	NoticeMessage
	NoticeTyping
	NoticeIncomingCall
	NoticeCallConnected
	NoticeCallEnded
	NoticeCallFailed
	NoticeCallData
	NoticeError
)

func (k NoticeKind) String() string {
	switch k {
	case NoticeConnected:
		return "connected"
	case NoticePresence:
		return "presence"
	case NoticeRotation:
		return "rotation"
	case NoticeMessage:
		return "message"
	case NoticeTyping:
		return "typing"
	case NoticeIncomingCall:
		return "incoming-call"
	case NoticeCallConnected:
		return "call-connected"
	case NoticeCallEnded:
		return "call-ended"
	case NoticeCallFailed:
		return "call-failed"
	case NoticeCallData:
		return "call-data"
	case NoticeError:
		return "error"
	default:
		return "unknown"
	}
}

// Notice is one thing the user should see. Only the fields for its Kind
// are set.
type Notice struct {
	Kind     NoticeKind
	Self     domain.ConnectionID
	Members  []domain.Identity
	Rotation *presence.RotationWarning
	Message  *domain.DecryptedMessage
	Typing   *domain.TypingNotice
	Call     call.Status
	Reason   string
	Text     string // NoticeCallData
	Err      error
}
