// Package syncstate implements the SyncTracker of spec §4.2: per-peer
// comparison status, and the periodic sync-info broadcast schedule.
// Grounded on the teacher's blockchain/v2 schedule (per-peer state with
// lastTouched timestamps) and internal/p2p.PeerManager's up/down peer-state
// bookkeeping.
package syncstate

import (
	"sync"
	"time"

	"github.com/gonvs/nodesync/types"
)

type peerEntry struct {
	status       types.PeerSyncStatus
	lastSyncSent time.Time
}

// Tracker is the SyncTracker of spec §4.2.
type Tracker struct {
	mu    sync.Mutex
	peers map[types.PeerID]*peerEntry

	syncInterval      time.Duration
	syncStatusRefresh time.Duration
}

func NewTracker(syncInterval, syncStatusRefresh time.Duration) *Tracker {
	return &Tracker{
		peers:             make(map[types.PeerID]*peerEntry),
		syncInterval:      syncInterval,
		syncStatusRefresh: syncStatusRefresh,
	}
}

// UpdateStatus upserts peer's comparison status. now is the caller's clock
// reading; refreshSent should be true when this call is in direct response
// to a sync-info exchange we initiated, so lastSyncSent advances (spec
// §4.2: "refresh lastSyncSent if status is set in response to our
// broadcast").
func (t *Tracker) UpdateStatus(peer types.PeerID, status types.PeerSyncStatus, now time.Time, refreshSent bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.peers[peer]
	if !ok {
		e = &peerEntry{}
		t.peers[peer] = e
	}
	e.status = status
	if refreshSent {
		e.lastSyncSent = now
	}
}

// ClearStatus removes peer, atomically with its disconnect (spec §3
// invariant 4).
func (t *Tracker) ClearStatus(peer types.PeerID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.peers, peer)
}

// Status reports peer's current comparison status.
func (t *Tracker) Status(peer types.PeerID) (types.PeerSyncStatus, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.peers[peer]
	if !ok {
		return types.PeerUnknown, false
	}
	return e.status, true
}

// Peers returns every currently-tracked peer id.
func (t *Tracker) Peers() []types.PeerID {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]types.PeerID, 0, len(t.peers))
	for p := range t.peers {
		out = append(out, p)
	}
	return out
}

// PeersToSyncWith selects peers eligible for a sync-info send at now: every
// known peer whose lastSyncSent is older than syncInterval, subject to a
// hard minimum gap (syncStatusRefresh) since the last outbound sync to that
// peer (spec §4.2). It also marks the chosen peers as sent now, fulfilling
// the ordering guarantee that a peer reappearing in two consecutive ticks
// must have had an intervening outbound sync or status update.
func (t *Tracker) PeersToSyncWith(now time.Time) map[types.PeerID]struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[types.PeerID]struct{})
	for p, e := range t.peers {
		dueBySyncInterval := e.lastSyncSent.IsZero() || now.Sub(e.lastSyncSent) >= t.syncInterval
		pastMinGap := now.Sub(e.lastSyncSent) >= t.syncStatusRefresh
		if dueBySyncInterval && pastMinGap {
			out[p] = struct{}{}
			e.lastSyncSent = now
		}
	}
	return out
}
