package sync

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gonvs/nodesync/codec"
	"github.com/gonvs/nodesync/config"
	"github.com/gonvs/nodesync/libs/log"
	"github.com/gonvs/nodesync/modcache"
	"github.com/gonvs/nodesync/network"
	"github.com/gonvs/nodesync/reader"
	"github.com/gonvs/nodesync/types"
	"github.com/gonvs/nodesync/viewholder"
)

var _ viewholder.ViewHolder = (*fakeViewHolder)(nil)

const testTypeId types.ModifierTypeId = 2

type fakeModifier struct {
	id types.ModifierId
}

func (m fakeModifier) Id() types.ModifierId        { return m.id }
func (m fakeModifier) TypeId() types.ModifierTypeId { return testTypeId }
func (m fakeModifier) Bytes() []byte                { return m.id[:] }

func testDecoder(declaredId types.ModifierId, payload []byte) (reader.Modifier, error) {
	if len(payload) != types.ModifierIDSize {
		return nil, fmt.Errorf("%w: short payload", types.ErrMalformedModifier)
	}
	var actual types.ModifierId
	copy(actual[:], payload)
	if actual != declaredId {
		return nil, fmt.Errorf("%w: id mismatch", types.ErrMalformedModifier)
	}
	return fakeModifier{id: actual}, nil
}

func idOf(b byte) types.ModifierId {
	var id types.ModifierId
	id[0] = b
	return id
}

type fakeHistory struct {
	mu       sync.Mutex
	contains map[types.ModifierId]bool
	compare  types.PeerSyncStatus
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{contains: map[types.ModifierId]bool{}, compare: types.PeerUnknown}
}

func (h *fakeHistory) Compare(types.SyncInfo) types.PeerSyncStatus { return h.compare }
func (h *fakeHistory) ContinuationIds(types.SyncInfo, int) []reader.TypedId { return nil }
func (h *fakeHistory) SyncInfo() types.SyncInfo                    { return types.RawSyncInfo("tip") }
func (h *fakeHistory) Contains(id types.ModifierId) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.contains[id]
}
func (h *fakeHistory) ModifierById(id types.ModifierId) (reader.Modifier, bool) {
	if h.Contains(id) {
		return fakeModifier{id: id}, true
	}
	return nil, false
}
func (h *fakeHistory) ApplicableTry(reader.Modifier) error { return nil }

type fakeMempool struct{}

func (fakeMempool) GetAll([]types.ModifierId) []reader.Modifier { return nil }
func (fakeMempool) Contains(types.ModifierId) bool              { return false }

type fakeController struct {
	mu      sync.Mutex
	sent    []network.OutboundEnvelope
	handler func(network.Envelope)
}

func newFakeController() *fakeController { return &fakeController{} }

func (f *fakeController) SendToNetwork(env network.OutboundEnvelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, env)
	return nil
}

func (f *fakeController) RegisterMessagesHandler(codes []byte, handler func(network.Envelope)) {
	f.handler = handler
}

func (f *fakeController) deliver(env network.Envelope) {
	f.handler(env)
}

func (f *fakeController) sentEnvelopes() []network.OutboundEnvelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]network.OutboundEnvelope, len(f.sent))
	copy(out, f.sent)
	return out
}

type fakeViewHolder struct {
	history reader.History
	mempool reader.Mempool
	events  chan viewholder.Event
}

func newFakeViewHolder(h reader.History, m reader.Mempool) *fakeViewHolder {
	return &fakeViewHolder{history: h, mempool: m, events: make(chan viewholder.Event, 16)}
}

func (f *fakeViewHolder) LocallyGeneratedTransaction(context.Context, reader.Modifier) error { return nil }
func (f *fakeViewHolder) ChangedCache(context.Context, *modcache.Cache)                       {}
func (f *fakeViewHolder) GetNodeViewChanges(context.Context) (reader.History, reader.Mempool, error) {
	return f.history, f.mempool, nil
}
func (f *fakeViewHolder) Events() <-chan viewholder.Event { return f.events }

func newTestSynchronizer(t *testing.T, history *fakeHistory, reporter network.Reporter) (*Synchronizer, *fakeController) {
	t.Helper()
	cfg := config.TestConfig()
	ctrl := newFakeController()
	vh := newFakeViewHolder(history, fakeMempool{})
	s := New(cfg, log.TestingLogger(), NopMetrics(), ctrl, reporter, vh, map[types.ModifierTypeId]ModifierDecoder{
		testTypeId: testDecoder,
	})
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { _ = s.Stop() })
	return s, ctrl
}

// TestInvFromYoungerPeerTriggersRequest is scenario S1 from spec §8.
func TestInvFromYoungerPeerTriggersRequest(t *testing.T) {
	a, c, d := idOf(1), idOf(3), idOf(4)
	history := newFakeHistory()
	history.contains[a] = true

	s, ctrl := newTestSynchronizer(t, history, network.NopReporter{})

	ctrl.deliver(network.Envelope{From: "P", Message: &codec.InvMessage{TypeId: testTypeId, Ids: []types.ModifierId{a, c, d}}})

	require.Eventually(t, func() bool {
		for _, env := range ctrl.sentEnvelopes() {
			if req, ok := env.Message.(*codec.RequestMessage); ok {
				return len(req.Ids) == 2
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)

	require.Equal(t, types.Requested, s.tracker.Status(c, history))
	require.Equal(t, types.Requested, s.tracker.Status(d, history))
	peer, ok := s.tracker.ExpectedPeer(c)
	require.True(t, ok)
	require.Equal(t, types.PeerID("P"), peer)
}

// TestSpamDetection is scenario S3 from spec §8.
func TestSpamDetection(t *testing.T) {
	history := newFakeHistory()
	reporter := network.NewMockReporter()
	s, ctrl := newTestSynchronizer(t, history, reporter)

	x := idOf(9)
	ctrl.deliver(network.Envelope{From: "Q", Message: &codec.ModifiersMessage{
		TypeId:    testTypeId,
		Modifiers: map[types.ModifierId][]byte{x: x[:]},
	}})

	require.Eventually(t, func() bool {
		return reporter.SpammingCount("Q") >= 1
	}, time.Second, 5*time.Millisecond)

	require.False(t, s.cache.Contains(x))
}

// TestDisconnectDuringRequestTriggersUntargetedReRequest exercises spec §5's
// disconnect-during-a-request scenario: peer P is expected for id X, P
// disconnects, and the CheckDelivery timer armed before the disconnect
// still fires carrying P as its captured peer. The handler must consult the
// tracker's live expectedPeer (cleared by delivery.Tracker.ClearPeer on
// disconnect) rather than that stale snapshot, so it falls into the
// untargeted re-request path and asks the one remaining connected peer, Q,
// instead of penalizing P.
func TestDisconnectDuringRequestTriggersUntargetedReRequest(t *testing.T) {
	history := newFakeHistory()
	reporter := network.NewMockReporter()
	cfg := config.TestConfig()
	ctrl := newFakeController()
	vh := newFakeViewHolder(history, fakeMempool{})
	s := New(cfg, log.TestingLogger(), NopMetrics(), ctrl, reporter, vh, map[types.ModifierTypeId]ModifierDecoder{
		testTypeId: testDecoder,
	})
	// Populated before Start so there is no concurrent access to s.peers:
	// the run loop is the only writer once the event loop is live.
	s.peers["P"] = struct{}{}
	s.peers["Q"] = struct{}{}
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { _ = s.Stop() })

	x := idOf(7)
	ctrl.deliver(network.Envelope{From: "P", Message: &codec.InvMessage{TypeId: testTypeId, Ids: []types.ModifierId{x}}})

	require.Eventually(t, func() bool {
		peer, ok := s.tracker.ExpectedPeer(x)
		return ok && peer == types.PeerID("P")
	}, time.Second, 5*time.Millisecond)

	vh.events <- viewholder.Event{DisconnectedPeer: &viewholder.DisconnectedPeer{Peer: "P"}}

	require.Eventually(t, func() bool {
		_, ok := s.tracker.ExpectedPeer(x)
		return !ok
	}, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		for _, env := range ctrl.sentEnvelopes() {
			req, ok := env.Message.(*codec.RequestMessage)
			if !ok {
				continue
			}
			peer, isPeer := env.Target.Peer()
			if !isPeer || peer != types.PeerID("Q") {
				continue
			}
			for _, id := range req.Ids {
				if id == x {
					return true
				}
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)

	require.Equal(t, 0, reporter.NonDeliveringCount("P"))
}

// TestInvRequestTruncatedToMaxInvObjects exercises spec §4.5 ("size bounded
// by maxInvObjects") and §6's OversizedMessage policy for the Request built
// out of handleInv: ids beyond the configured bound are dropped from the
// outbound message (deterministically, by lowest id) and left Unknown
// rather than silently marked Requested.
func TestInvRequestTruncatedToMaxInvObjects(t *testing.T) {
	history := newFakeHistory()
	cfg := config.TestConfig()
	cfg.MaxInvObjects = 3
	ctrl := newFakeController()
	vh := newFakeViewHolder(history, fakeMempool{})
	s := New(cfg, log.TestingLogger(), NopMetrics(), ctrl, network.NopReporter{}, vh, map[types.ModifierTypeId]ModifierDecoder{
		testTypeId: testDecoder,
	})
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { _ = s.Stop() })

	ids := make([]types.ModifierId, 5)
	for i := range ids {
		ids[i] = idOf(byte(i + 10))
	}

	ctrl.deliver(network.Envelope{From: "P", Message: &codec.InvMessage{TypeId: testTypeId, Ids: ids}})

	require.Eventually(t, func() bool {
		for _, env := range ctrl.sentEnvelopes() {
			if req, ok := env.Message.(*codec.RequestMessage); ok {
				return len(req.Ids) == 3
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)

	sorted := types.SortIds(ids)
	kept, dropped := sorted[:3], sorted[3:]

	var sent *codec.RequestMessage
	for _, env := range ctrl.sentEnvelopes() {
		if req, ok := env.Message.(*codec.RequestMessage); ok {
			sent = req
		}
	}
	require.NotNil(t, sent)
	require.ElementsMatch(t, kept, sent.Ids)

	for _, id := range kept {
		require.Equal(t, types.Requested, s.tracker.Status(id, history))
	}
	for _, id := range dropped {
		require.Equal(t, types.Unknown, s.tracker.Status(id, history))
	}
}

// TestDuplicateModifiersDeliveryIsSpamOnSecondCall exercises spec §8
// universal invariant 6: delivering the same Modifiers payload twice in a
// row from the same peer processes it once. The first delivery flips the
// id from Requested to Received (delivery.Tracker.OnReceive), so the
// second delivery's OnReceive call finds it no longer Requested and the
// handler classifies it as spam instead of accepting it again.
func TestDuplicateModifiersDeliveryIsSpamOnSecondCall(t *testing.T) {
	history := newFakeHistory()
	reporter := network.NewMockReporter()
	s, ctrl := newTestSynchronizer(t, history, reporter)

	id := idOf(20)
	s.tracker.Expect("R", testTypeId, []types.ModifierId{id})

	msg := &codec.ModifiersMessage{
		TypeId:    testTypeId,
		Modifiers: map[types.ModifierId][]byte{id: id[:]},
	}

	ctrl.deliver(network.Envelope{From: "R", Message: msg})

	require.Eventually(t, func() bool {
		return s.cache.Contains(id)
	}, time.Second, 5*time.Millisecond)

	sizeAfterFirst := s.cache.Size()
	require.Equal(t, 0, reporter.SpammingCount("R"))

	ctrl.deliver(network.Envelope{From: "R", Message: msg})

	require.Eventually(t, func() bool {
		return reporter.SpammingCount("R") >= 1
	}, time.Second, 5*time.Millisecond)

	require.Equal(t, sizeAfterFirst, s.cache.Size())
}

// TestHandleRequestTruncatesToFitMaxPacketSize exercises spec §4.5/§6's
// OversizedMessage policy for outbound Modifiers responses: an outgoing
// ModifiersMessage larger than cfg.MaxPacketSize has its highest-id entries
// evicted (types.SortIds order) until it fits, rather than being sent
// oversized or dropped whole.
func TestHandleRequestTruncatesToFitMaxPacketSize(t *testing.T) {
	history := newFakeHistory()
	cfg := config.TestConfig()

	ids := make([]types.ModifierId, 5)
	for i := range ids {
		ids[i] = idOf(byte(i + 30))
		history.contains[ids[i]] = true
	}
	// Each entry costs ModifierIDSize+4+len(bytes) = 32+4+32 = 68 bytes on
	// top of the 5-byte header; allow only the two lowest ids to fit.
	cfg.MaxPacketSize = 5 + 2*68

	ctrl := newFakeController()
	vh := newFakeViewHolder(history, fakeMempool{})
	s := New(cfg, log.TestingLogger(), NopMetrics(), ctrl, network.NopReporter{}, vh, map[types.ModifierTypeId]ModifierDecoder{
		testTypeId: testDecoder,
	})
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { _ = s.Stop() })

	ctrl.deliver(network.Envelope{From: "P", Message: &codec.RequestMessage{TypeId: testTypeId, Ids: ids}})

	require.Eventually(t, func() bool {
		for _, env := range ctrl.sentEnvelopes() {
			if _, ok := env.Message.(*codec.ModifiersMessage); ok {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)

	var sent *codec.ModifiersMessage
	for _, env := range ctrl.sentEnvelopes() {
		if m, ok := env.Message.(*codec.ModifiersMessage); ok {
			sent = m
		}
	}
	require.NotNil(t, sent)
	require.LessOrEqual(t, sent.Size(), cfg.MaxPacketSize)

	sorted := types.SortIds(ids)
	kept := sorted[:2]
	require.Len(t, sent.Modifiers, 2)
	for _, id := range kept {
		_, ok := sent.Modifiers[id]
		require.True(t, ok)
	}
}

// TestMalformedModifierPenalizesAndDropsToUnknown is scenario S4 from spec §8.
func TestMalformedModifierPenalizesAndDropsToUnknown(t *testing.T) {
	history := newFakeHistory()
	reporter := network.NewMockReporter()
	s, ctrl := newTestSynchronizer(t, history, reporter)

	y, z := idOf(5), idOf(6)
	s.tracker.Expect("R", testTypeId, []types.ModifierId{y})

	ctrl.deliver(network.Envelope{From: "R", Message: &codec.ModifiersMessage{
		TypeId:    testTypeId,
		Modifiers: map[types.ModifierId][]byte{y: z[:]}, // declared y, computes to z: mismatch
	}})

	require.Eventually(t, func() bool {
		return reporter.MisbehavingCount("R") >= 1
	}, time.Second, 5*time.Millisecond)

	require.Equal(t, types.Unknown, s.tracker.Status(y, history))
	require.False(t, s.cache.Contains(y))
}
