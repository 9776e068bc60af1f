package signaling

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pion/webrtc/v4"
)

// ErrMalformedSignal is returned for payloads that are not WebRTC JSON.
var ErrMalformedSignal = errors.New("malformed signal")

// ParseDescription decodes an SDP offer or answer and checks its type and
// body.
func ParseDescription(raw json.RawMessage, want webrtc.SDPType) (webrtc.SessionDescription, error) {
	var sd webrtc.SessionDescription
	if len(raw) == 0 {
		return sd, fmt.Errorf("%w: empty %s", ErrMalformedSignal, want)
	}
	if err := json.Unmarshal(raw, &sd); err != nil {
		return sd, fmt.Errorf("%w: %v", ErrMalformedSignal, err)
	}
	if sd.Type != want {
		return sd, fmt.Errorf("%w: want %s, got %s", ErrMalformedSignal, want, sd.Type)
	}
	if _, err := sd.Unmarshal(); err != nil {
		return sd, fmt.Errorf("%w: sdp: %v", ErrMalformedSignal, err)
	}
	return sd, nil
}

// ParseOffer is ParseDescription for offers.
func ParseOffer(raw json.RawMessage) (webrtc.SessionDescription, error) {
	return ParseDescription(raw, webrtc.SDPTypeOffer)
}

// ParseAnswer is ParseDescription for answers.
func ParseAnswer(raw json.RawMessage) (webrtc.SessionDescription, error) {
	return ParseDescription(raw, webrtc.SDPTypeAnswer)
}

// ParseCandidate decodes an ICE candidate. An empty candidate string is the
// end-of-candidates marker and is allowed.
func ParseCandidate(raw json.RawMessage) (webrtc.ICECandidateInit, error) {
	var c webrtc.ICECandidateInit
	if len(raw) == 0 {
		return c, fmt.Errorf("%w: empty candidate", ErrMalformedSignal)
	}
	if err := json.Unmarshal(raw, &c); err != nil {
		return c, fmt.Errorf("%w: %v", ErrMalformedSignal, err)
	}
	return c, nil
}
