package syncstate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gonvs/nodesync/types"
)

// TestPeriodicSyncBroadcast is scenario S6 from spec §8.
func TestPeriodicSyncBroadcast(t *testing.T) {
	tr := NewTracker(10*time.Second, 5*time.Second)
	now := time.Now()

	tr.UpdateStatus("P1", types.PeerUnknown, now, false)
	tr.UpdateStatus("P2", types.PeerUnknown, now, false)

	due := tr.PeersToSyncWith(now)
	require.Len(t, due, 2)
	require.Contains(t, due, types.PeerID("P1"))
	require.Contains(t, due, types.PeerID("P2"))

	// Immediately tick again before syncStatusRefresh elapses: nothing due.
	due2 := tr.PeersToSyncWith(now.Add(time.Second))
	require.Empty(t, due2)
}

func TestClearStatusRemovesPeer(t *testing.T) {
	tr := NewTracker(time.Second, time.Millisecond)
	now := time.Now()
	tr.UpdateStatus("P1", types.PeerEqual, now, false)

	status, ok := tr.Status("P1")
	require.True(t, ok)
	require.Equal(t, types.PeerEqual, status)

	tr.ClearStatus("P1")
	_, ok = tr.Status("P1")
	require.False(t, ok)
	require.Empty(t, tr.Peers())
}

func TestPeersToSyncWithRespectsSyncInterval(t *testing.T) {
	tr := NewTracker(time.Minute, time.Millisecond)
	now := time.Now()
	tr.UpdateStatus("P1", types.PeerUnknown, now, false)

	due := tr.PeersToSyncWith(now)
	require.Len(t, due, 1)

	// Not due again until syncInterval has passed.
	due2 := tr.PeersToSyncWith(now.Add(time.Second))
	require.Empty(t, due2)

	due3 := tr.PeersToSyncWith(now.Add(2 * time.Minute))
	require.Len(t, due3, 1)
}
