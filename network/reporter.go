package network

import (
	"sync"

	"github.com/gonvs/nodesync/types"
)

// behaviourKind enumerates the reasons a peer's behaviour gets reported,
// mirroring the teacher's behaviour.PeerBehaviour reasons (badMessage,
// messageOutOfOrder, ...) narrowed to the three penalty hooks of spec §7.
type behaviourKind int

const (
	misbehaving behaviourKind = iota
	spamming
	nonDelivering
)

// PeerBehaviour is a single reported observation about a peer, comparable
// with == the way the teacher's behaviour.PeerBehaviour is, so tests can
// assert exact occurrences without a mock framework.
type PeerBehaviour struct {
	PeerID types.PeerID
	kind   behaviourKind
	Reason string
}

func Misbehaving(id types.PeerID, reason string) PeerBehaviour {
	return PeerBehaviour{PeerID: id, kind: misbehaving, Reason: reason}
}

func Spamming(id types.PeerID, reason string) PeerBehaviour {
	return PeerBehaviour{PeerID: id, kind: spamming, Reason: reason}
}

func NonDelivering(id types.PeerID, reason string) PeerBehaviour {
	return PeerBehaviour{PeerID: id, kind: nonDelivering, Reason: reason}
}

// Reporter receives peer-behaviour observations from the synchronizer. The
// core's default implementation never disconnects a peer itself (spec §7):
// it records the event and lets the peer manager, an external collaborator,
// apply graduated penalties.
type Reporter interface {
	Report(pb PeerBehaviour)
}

// MockReporter records every reported behaviour in memory, mirroring the
// teacher's behaviour.MockReporter. Used by the Synchronizer's own tests
// (spam, malformed-modifier, disconnect and duplicate-delivery cases) to
// assert exactly which penalty hooks fired.
type MockReporter struct {
	mu  sync.RWMutex
	obs map[types.PeerID][]PeerBehaviour
}

func NewMockReporter() *MockReporter {
	return &MockReporter{obs: map[types.PeerID][]PeerBehaviour{}}
}

func (m *MockReporter) Report(pb PeerBehaviour) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.obs[pb.PeerID] = append(m.obs[pb.PeerID], pb)
}

func (m *MockReporter) Behaviours(id types.PeerID) []PeerBehaviour {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]PeerBehaviour, len(m.obs[id]))
	copy(out, m.obs[id])
	return out
}

func (m *MockReporter) CountKind(id types.PeerID, kind behaviourKind) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, pb := range m.obs[id] {
		if pb.kind == kind {
			n++
		}
	}
	return n
}

func (m *MockReporter) MisbehavingCount(id types.PeerID) int  { return m.CountKind(id, misbehaving) }
func (m *MockReporter) SpammingCount(id types.PeerID) int     { return m.CountKind(id, spamming) }
func (m *MockReporter) NonDeliveringCount(id types.PeerID) int { return m.CountKind(id, nonDelivering) }

// NopReporter discards every observation; used where no penalty policy is
// wired up (e.g. unit tests of lower-level components).
type NopReporter struct{}

func (NopReporter) Report(PeerBehaviour) {}
