package signaling_test

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"enclave/internal/domain"
	"enclave/internal/signaling"
)

type members struct {
	mu  sync.Mutex
	ids map[domain.ConnectionID]bool
}

func newMembers(ids ...domain.ConnectionID) *members {
	m := &members{ids: make(map[domain.ConnectionID]bool)}
	for _, id := range ids {
		m.ids[id] = true
	}
	return m
}

func (m *members) present(id domain.ConnectionID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ids[id]
}

func (m *members) remove(id domain.ConnectionID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.ids, id)
}

var offer = json.RawMessage(`{"type":"offer","sdp":"v=0"}`)

func TestInitiate_SetsBothSides(t *testing.T) {
	tbl := signaling.NewTable(newMembers("A", "B").present)

	require.NoError(t, tbl.Initiate("A", "B", offer))

	a, b := tbl.Session("A"), tbl.Session("B")
	assert.Equal(t, domain.CallCalling, a.State)
	assert.Equal(t, domain.ConnectionID("B"), a.Remote)
	assert.Equal(t, domain.CallRinging, b.State)
	assert.Equal(t, domain.ConnectionID("A"), b.Remote)
	assert.JSONEq(t, string(offer), string(b.PendingSignal))
}

func TestInitiate_UnknownPeerIsNoOp(t *testing.T) {
	tbl := signaling.NewTable(newMembers("A").present)

	assert.ErrorIs(t, tbl.Initiate("A", "ghost", offer), signaling.ErrUnknownPeer)
	assert.ErrorIs(t, tbl.Initiate("stranger", "A", offer), signaling.ErrNotJoined)
	assert.ErrorIs(t, tbl.Initiate("A", "A", offer), signaling.ErrSelfCall)
	assert.Equal(t, domain.CallIdle, tbl.Session("A").State)
	assert.Equal(t, 0, tbl.Active())
}

func TestInitiate_ExclusiveUntilEnded(t *testing.T) {
	tbl := signaling.NewTable(newMembers("A", "B", "C").present)

	require.NoError(t, tbl.Initiate("A", "B", offer))
	assert.ErrorIs(t, tbl.Initiate("A", "C", offer), signaling.ErrBusy)
	assert.ErrorIs(t, tbl.Initiate("C", "B", offer), signaling.ErrBusy)
	assert.Equal(t, domain.CallIdle, tbl.Session("C").State)

	require.NoError(t, tbl.Accept("B", "A"))
	assert.ErrorIs(t, tbl.Initiate("A", "C", offer), signaling.ErrBusy)

	require.NoError(t, tbl.End("A", "B"))
	assert.Equal(t, domain.CallIdle, tbl.Session("A").State)
	assert.Equal(t, domain.CallIdle, tbl.Session("B").State)

	require.NoError(t, tbl.Initiate("A", "C", offer))
	assert.Equal(t, domain.CallCalling, tbl.Session("A").State)
}

func TestAccept_ConnectsBothSides(t *testing.T) {
	tbl := signaling.NewTable(newMembers("A", "B").present)
	require.NoError(t, tbl.Initiate("A", "B", offer))

	assert.ErrorIs(t, tbl.Accept("A", "B"), signaling.ErrInvalidTransition, "caller cannot answer its own call")
	require.NoError(t, tbl.Accept("B", "A"))

	assert.Equal(t, domain.CallConnected, tbl.Session("A").State)
	assert.Equal(t, domain.CallConnected, tbl.Session("B").State)
	assert.Nil(t, tbl.Session("B").PendingSignal)

	assert.ErrorIs(t, tbl.Accept("B", "A"), signaling.ErrInvalidTransition)
}

func TestAccept_WithoutCall(t *testing.T) {
	tbl := signaling.NewTable(newMembers("A", "B", "C").present)
	assert.ErrorIs(t, tbl.Accept("B", "A"), signaling.ErrNoActiveCall)

	require.NoError(t, tbl.Initiate("A", "B", offer))
	assert.ErrorIs(t, tbl.Accept("B", "C"), signaling.ErrNoActiveCall)
}

func TestCandidate_OnlyDuringCall(t *testing.T) {
	tbl := signaling.NewTable(newMembers("A", "B", "C").present)

	assert.ErrorIs(t, tbl.Candidate("A", "B"), signaling.ErrNoActiveCall)

	require.NoError(t, tbl.Initiate("A", "B", offer))
	assert.NoError(t, tbl.Candidate("A", "B"))
	assert.NoError(t, tbl.Candidate("B", "A"))
	assert.ErrorIs(t, tbl.Candidate("A", "C"), signaling.ErrNoActiveCall)

	require.NoError(t, tbl.Accept("B", "A"))
	assert.NoError(t, tbl.Candidate("A", "B"))

	require.NoError(t, tbl.End("B", "A"))
	assert.ErrorIs(t, tbl.Candidate("A", "B"), signaling.ErrNoActiveCall)
}

func TestDeclineThenRedial(t *testing.T) {
	tbl := signaling.NewTable(newMembers("A", "B").present)

	require.NoError(t, tbl.Initiate("A", "B", offer))
	require.NoError(t, tbl.End("B", "A"))
	assert.Equal(t, domain.CallIdle, tbl.Session("A").State)
	assert.Equal(t, domain.CallIdle, tbl.Session("B").State)

	require.NoError(t, tbl.Initiate("A", "B", offer))
	assert.Equal(t, domain.CallCalling, tbl.Session("A").State)
	assert.Equal(t, domain.CallRinging, tbl.Session("B").State)
}

func TestEnd_FromIdleOrWrongPeer(t *testing.T) {
	tbl := signaling.NewTable(newMembers("A", "B", "C").present)
	assert.ErrorIs(t, tbl.End("A", "B"), signaling.ErrNoActiveCall)

	require.NoError(t, tbl.Initiate("A", "B", offer))
	assert.ErrorIs(t, tbl.End("C", "A"), signaling.ErrNoActiveCall)
	assert.ErrorIs(t, tbl.End("A", "C"), signaling.ErrNoActiveCall)
	assert.Equal(t, domain.CallCalling, tbl.Session("A").State)
}

func TestDrop_ResetsPeerAndReportsIt(t *testing.T) {
	m := newMembers("A", "B")
	tbl := signaling.NewTable(m.present)
	require.NoError(t, tbl.Initiate("A", "B", offer))
	require.NoError(t, tbl.Accept("B", "A"))

	m.remove("B")
	peer, ok := tbl.Drop("B")
	require.True(t, ok)
	assert.Equal(t, domain.ConnectionID("A"), peer)
	assert.Equal(t, domain.CallIdle, tbl.Session("A").State)
	assert.Equal(t, 0, tbl.Active())

	_, ok = tbl.Drop("B")
	assert.False(t, ok)
}

func TestDropRacingInitiate_IsCoherent(t *testing.T) {
	for i := 0; i < 200; i++ {
		m := newMembers("A", "B")
		tbl := signaling.NewTable(m.present)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = tbl.Initiate("A", "B", offer)
		}()
		go func() {
			defer wg.Done()
			m.remove("B")
			tbl.Drop("B")
		}()
		wg.Wait()

		a := tbl.Session("A")
		if a.State.Active() {
			t.Fatalf("iteration %d: caller left in %s with departed peer", i, a.State)
		}
		assert.Equal(t, domain.CallIdle, tbl.Session("B").State)
	}
}
