// Package delivery implements the DeliveryTracker of spec §4.1: per-id
// lifecycle status, retry attempts, and timeout scheduling, grounded on the
// teacher's blockchain/v2 scheduler (per-peer, per-id request bookkeeping
// with explicit state machine and timers) and internal/blocksync's
// peerError/CheckDelivery-style timeout signal.
package delivery

import (
	"sync"
	"time"

	"github.com/gonvs/nodesync/libs/log"
	"github.com/gonvs/nodesync/types"
)

// ApplicationReader is the minimal membership check the tracker needs to
// classify an unrecorded id as Applied vs Unknown (spec §4.1 status
// fallback). reader.History and reader.Mempool both satisfy it already.
type ApplicationReader interface {
	Contains(id types.ModifierId) bool
}

// CheckDelivery is the timer-delivered signal spec §4.1 describes: "Timers
// fire as scheduler-delivered CheckDelivery(peer?, typeId, id) messages;
// the synchronizer (not the tracker) decides to retry or give up."
type CheckDelivery struct {
	Peer   *types.PeerID
	TypeId types.ModifierTypeId
	Id     types.ModifierId
}

type entry struct {
	status       types.ModifierStatus
	attempts     int
	expectedPeer *types.PeerID
	typeId       types.ModifierTypeId
	timer        *time.Timer
}

// Tracker is the DeliveryTracker of spec §4.1.
type Tracker struct {
	mu      sync.Mutex
	entries map[types.ModifierId]*entry

	deliveryTimeout   time.Duration
	maxDeliveryChecks int

	deliver func(CheckDelivery)
	logger  log.Logger
}

// NewTracker constructs a Tracker. deliver is invoked (from a timer
// goroutine) whenever a Requested id's delivery timeout elapses; the caller
// is expected to enqueue it as an ordinary event on the synchronizer's
// single-threaded event loop rather than acting on it inline (spec §5).
func NewTracker(deliveryTimeout time.Duration, maxDeliveryChecks int, deliver func(CheckDelivery), logger log.Logger) *Tracker {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Tracker{
		entries:           make(map[types.ModifierId]*entry),
		deliveryTimeout:   deliveryTimeout,
		maxDeliveryChecks: maxDeliveryChecks,
		deliver:           deliver,
		logger:            logger,
	}
}

// Status returns the tracker's recorded status for id, falling back to the
// reader's membership check to distinguish Applied from Unknown when id is
// not recorded (spec §4.1).
func (t *Tracker) Status(id types.ModifierId, reader ApplicationReader) types.ModifierStatus {
	t.mu.Lock()
	e, ok := t.entries[id]
	t.mu.Unlock()

	if ok {
		return e.status
	}
	if reader != nil && reader.Contains(id) {
		return types.Applied
	}
	return types.Unknown
}

// Expect marks each of ids Requested from peer, provided its current status
// is Unknown or Invalid (spec §4.1 expect). Ids recorded as Requested,
// Received or Held are left untouched. Expect consults no reader: an id with
// no record (including one forgotten by ToApplied) counts as Unknown.
func (t *Tracker) Expect(peer types.PeerID, typeId types.ModifierTypeId, ids []types.ModifierId) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, id := range ids {
		e, ok := t.entries[id]
		if ok && e.status != types.Unknown && e.status != types.Invalid {
			continue
		}
		if ok && e.timer != nil {
			e.timer.Stop()
		}

		p := peer
		e = &entry{
			status:       types.Requested,
			attempts:     1,
			expectedPeer: &p,
			typeId:       typeId,
		}
		t.entries[id] = e
		t.armTimer(id, e)
	}
}

// Reexpect increments the attempt count for id, rescheduling its timeout. A
// nil peer preserves any existing expectedPeer (spec §4.1 edge policy:
// "Re-expect MUST preserve any existing expectedPeer when called with
// None"). Returns false once attempts would exceed maxDeliveryChecks, at
// which point id is forgotten (transitioned to Unknown).
func (t *Tracker) Reexpect(peer *types.PeerID, typeId types.ModifierTypeId, id types.ModifierId) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[id]
	if !ok {
		p := peer
		e = &entry{status: types.Requested, attempts: 0, typeId: typeId}
		if p != nil {
			e.expectedPeer = p
		}
		t.entries[id] = e
	}

	if e.attempts >= t.maxDeliveryChecks {
		t.forgetLocked(id)
		return false
	}

	e.attempts++
	e.status = types.Requested
	e.typeId = typeId
	if peer != nil {
		e.expectedPeer = peer
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	t.armTimer(id, e)
	return true
}

// OnReceive classifies an arriving modifier: true ("accepted") iff id was
// Requested and the sender matches the expected peer, or no peer was
// expected; false ("spam") otherwise (spec §4.1, §8 property 3).
func (t *Tracker) OnReceive(typeId types.ModifierTypeId, id types.ModifierId, peer types.PeerID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[id]
	if !ok || e.status != types.Requested {
		return false
	}
	if e.expectedPeer != nil && *e.expectedPeer != peer {
		return false
	}

	if e.timer != nil {
		e.timer.Stop()
	}
	e.status = types.Received
	e.typeId = typeId
	return true
}

// ClearPeer clears expectedPeer on every entry currently attributed to
// peer, leaving status/attempts/timer untouched (spec §5 "Disconnect during
// a request: the expected peer's entry is cleared"). An already-armed
// CheckDelivery timer for one of these ids still fires with its captured
// snapshot, so callers must consult ExpectedPeer (not the timer's own
// Peer field) when deciding how to react, the way handleCheckDelivery does.
func (t *Tracker) ClearPeer(peer types.PeerID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range t.entries {
		if e.expectedPeer != nil && *e.expectedPeer == peer {
			e.expectedPeer = nil
		}
	}
}

// Pending reports how many ids are currently Requested, for the
// DeliveryPending gauge.
func (t *Tracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, e := range t.entries {
		if e.status == types.Requested {
			n++
		}
	}
	return n
}

// ToApplied forgets id: the reader (history or mempool) is now the source
// of truth for it, so Status will report Applied via the fallback path.
func (t *Tracker) ToApplied(id types.ModifierId) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.forgetLocked(id)
}

// ToUnknown drops any tracked state for id.
func (t *Tracker) ToUnknown(id types.ModifierId) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.forgetLocked(id)
}

// ToInvalid marks id as rejected; unlike ToUnknown this leaves a durable
// record, so Status keeps reporting Invalid instead of falling back to the
// reader. Expect still treats an Invalid id as eligible for a new request.
func (t *Tracker) ToInvalid(id types.ModifierId) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[id]
	if ok && e.timer != nil {
		e.timer.Stop()
	}
	t.entries[id] = &entry{status: types.Invalid}
}

// Attempts reports the current attempt count for id, for tests.
func (t *Tracker) Attempts(id types.ModifierId) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[id]; ok {
		return e.attempts
	}
	return 0
}

// ExpectedPeer reports the peer id is currently expected from, if any.
func (t *Tracker) ExpectedPeer(id types.ModifierId) (types.PeerID, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[id]; ok && e.expectedPeer != nil {
		return *e.expectedPeer, true
	}
	return "", false
}

func (t *Tracker) forgetLocked(id types.ModifierId) {
	if e, ok := t.entries[id]; ok {
		if e.timer != nil {
			e.timer.Stop()
		}
		delete(t.entries, id)
	}
}

func (t *Tracker) armTimer(id types.ModifierId, e *entry) {
	if t.deliver == nil {
		return
	}
	typeId := e.typeId
	var peer *types.PeerID
	if e.expectedPeer != nil {
		p := *e.expectedPeer
		peer = &p
	}
	e.timer = time.AfterFunc(t.deliveryTimeout, func() {
		t.deliver(CheckDelivery{Peer: peer, TypeId: typeId, Id: id})
	})
}
