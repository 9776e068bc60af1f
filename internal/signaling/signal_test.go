package signaling_test

import (
	"encoding/json"
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"enclave/internal/signaling"
)

const minimalSDP = "v=0\r\no=- 4215775240449105457 2 IN IP4 127.0.0.1\r\ns=-\r\nt=0 0\r\n"

func description(t *testing.T, typ webrtc.SDPType) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(webrtc.SessionDescription{Type: typ, SDP: minimalSDP})
	require.NoError(t, err)
	return raw
}

func TestParseOfferAndAnswer(t *testing.T) {
	sd, err := signaling.ParseOffer(description(t, webrtc.SDPTypeOffer))
	require.NoError(t, err)
	assert.Equal(t, webrtc.SDPTypeOffer, sd.Type)

	_, err = signaling.ParseAnswer(description(t, webrtc.SDPTypeAnswer))
	require.NoError(t, err)
}

func TestParseDescription_Rejects(t *testing.T) {
	cases := map[string]json.RawMessage{
		"empty":      nil,
		"not json":   json.RawMessage(`{`),
		"wrong type": description(t, webrtc.SDPTypeAnswer),
		"bad sdp":    json.RawMessage(`{"type":"offer","sdp":"hello"}`),
		"array":      json.RawMessage(`[1,2]`),
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := signaling.ParseOffer(raw)
			assert.ErrorIs(t, err, signaling.ErrMalformedSignal)
		})
	}
}

func TestParseCandidate(t *testing.T) {
	c, err := signaling.ParseCandidate(json.RawMessage(
		`{"candidate":"candidate:1 1 UDP 2122252543 192.0.2.1 54321 typ host","sdpMid":"0","sdpMLineIndex":0}`))
	require.NoError(t, err)
	assert.Contains(t, c.Candidate, "typ host")
	require.NotNil(t, c.SDPMid)
	assert.Equal(t, "0", *c.SDPMid)

	_, err = signaling.ParseCandidate(json.RawMessage(`{"candidate":""}`))
	assert.NoError(t, err)

	_, err = signaling.ParseCandidate(nil)
	assert.ErrorIs(t, err, signaling.ErrMalformedSignal)
	_, err = signaling.ParseCandidate(json.RawMessage(`"text"`))
	assert.ErrorIs(t, err, signaling.ErrMalformedSignal)
}
