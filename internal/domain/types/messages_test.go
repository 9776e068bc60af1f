package types_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"enclave/internal/domain/types"
)

func TestMetadata_SelfDestruct(t *testing.T) {
	const sent = int64(1_700_000_000_000)
	m := &types.Metadata{ExpiresIn: 30}

	assert.Equal(t, sent+30_000, m.ExpiresAt(sent))
	assert.False(t, m.Expired(time.UnixMilli(sent+29_999), sent))
	assert.True(t, m.Expired(time.UnixMilli(sent+30_000), sent))
}

func TestMetadata_TimeLock(t *testing.T) {
	unlock := time.UnixMilli(1_700_000_010_000)
	m := &types.Metadata{UnlocksAt: unlock.UnixMilli()}

	before := unlock.Add(-1500 * time.Millisecond)
	assert.True(t, m.Locked(before))
	assert.Equal(t, 2*time.Second, m.Remaining(before), "rounds up to whole seconds")
	assert.False(t, m.Locked(unlock))
	assert.Zero(t, m.Remaining(unlock))
}

func TestMetadata_NilIsNoPolicy(t *testing.T) {
	var m *types.Metadata
	now := time.Now()

	assert.Zero(t, m.ExpiresAt(now.UnixMilli()))
	assert.False(t, m.Expired(now, 0))
	assert.False(t, m.Locked(now))
	assert.Zero(t, m.Remaining(now))
}

func TestDecryptedMessage_Conversation(t *testing.T) {
	direct := types.DecryptedMessage{From: "conn-1"}
	group := types.DecryptedMessage{From: "conn-1", Metadata: &types.Metadata{IsGroup: true}}

	assert.Equal(t, "conn-1", direct.Conversation())
	assert.Equal(t, types.EveryoneBucket, group.Conversation())
}

func TestEnvelope_WireShape(t *testing.T) {
	env := types.Envelope{To: "b", Content: "Y3Q=", IV: "aXY=", Metadata: &types.Metadata{ExpiresIn: 5}}
	raw, err := json.Marshal(env)
	require.NoError(t, err)
	assert.JSONEq(t, `{"to":"b","content":"Y3Q=","iv":"aXY=","metadata":{"expiresIn":5}}`, string(raw))
}

func TestMetadata_AcceptsBrowserNumbers(t *testing.T) {
	var m types.Metadata
	require.NoError(t, json.Unmarshal([]byte(`{"expiresIn":1.2,"unlocksAt":1700000000000.4,"isGroup":true,"extra":1}`), &m))
	assert.Equal(t, types.Metadata{ExpiresIn: 2, UnlocksAt: 1_700_000_000_001, IsGroup: true}, m)

	require.NoError(t, json.Unmarshal([]byte(`{"expiresIn":30}`), &m))
	assert.Equal(t, types.Metadata{ExpiresIn: 30}, m)

	assert.Error(t, json.Unmarshal([]byte(`{"expiresIn":"soon"}`), &m))
	assert.Error(t, json.Unmarshal([]byte(`{"unlocksAt":1e300}`), &m))
}

func TestPublicKeyBlob(t *testing.T) {
	b := types.PublicKeyBlob{Kty: types.KeyTypeEC, Crv: types.CurveP256, X: "xx", Y: "yy", Ext: true}
	assert.Equal(t, "xx|yy", b.Canonical())
	assert.False(t, b.IsZero())
	assert.True(t, types.PublicKeyBlob{}.IsZero())
}

func TestCallState(t *testing.T) {
	assert.False(t, types.CallIdle.Active())
	for _, s := range []types.CallState{types.CallCalling, types.CallRinging, types.CallConnected} {
		assert.True(t, s.Active(), s.String())
	}
	assert.Equal(t, "ringing", types.CallRinging.String())
}
