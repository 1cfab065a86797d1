// Package sync implements the Synchronizer of spec §4.4: the central
// orchestrator that owns the DeliveryTracker, SyncTracker, and
// ModifiersCache, and drives peer gossip and view-holder interaction.
// Grounded on the teacher's blockchain/v2 Reactor (one goroutine draining a
// single inbound event channel, replacing actor-style message passing per
// spec §9 REDESIGN FLAGS) and internal/mempool.Reactor's dispatch-by-message
// structure.
package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mroth/weightedrand"
	"golang.org/x/sync/errgroup"

	"github.com/gonvs/nodesync/codec"
	"github.com/gonvs/nodesync/config"
	"github.com/gonvs/nodesync/delivery"
	"github.com/gonvs/nodesync/libs/log"
	"github.com/gonvs/nodesync/libs/service"
	"github.com/gonvs/nodesync/modcache"
	"github.com/gonvs/nodesync/network"
	"github.com/gonvs/nodesync/reader"
	"github.com/gonvs/nodesync/syncstate"
	"github.com/gonvs/nodesync/types"
	"github.com/gonvs/nodesync/viewholder"
)

// ModifierDecoder deserializes a modifier's wire bytes and validates that
// its computed id matches declaredId (spec §4.4 A.4: "Failures and
// declared-id mismatch → penalize misbehavior").
type ModifierDecoder func(declaredId types.ModifierId, b []byte) (reader.Modifier, error)

// inboundQueueSize bounds the event loop's channel, matching spec §5's
// "bounded inbound queue" requirement without pulling in a separate queue
// library the way the teacher's own reactors just size a buffered channel.
const inboundQueueSize = 256

// Synchronizer is the spec §4.4 orchestrator. All of its mutable state
// (tracker, syncTracker, cache, history/mempool handles, peer set) is
// touched only from the run() goroutine, which is the single place events
// are dequeued (spec §5: "single-threaded cooperative per Synchronizer
// instance... eliminates internal locking").
type Synchronizer struct {
	*service.BaseService

	cfg     *config.Config
	logger  log.Logger
	metrics *Metrics

	tracker     *delivery.Tracker
	syncTracker *syncstate.Tracker
	cache       *modcache.Cache

	history reader.History
	mempool reader.Mempool

	controller network.Controller
	reporter   network.Reporter
	vh         viewholder.ViewHolder

	decoders map[types.ModifierTypeId]ModifierDecoder

	peers       map[types.PeerID]struct{}
	advertisers map[types.ModifierId]map[types.PeerID]struct{}

	inbound chan inboundEvent

	group  *errgroup.Group
	cancel context.CancelFunc
}

// New constructs a Synchronizer. decoders must cover every ModifierTypeId
// the application expects to receive on the wire; an id with no registered
// decoder is rejected per spec §6 ErrUnknownSerializer.
func New(
	cfg *config.Config,
	logger log.Logger,
	m *Metrics,
	controller network.Controller,
	reporter network.Reporter,
	vh viewholder.ViewHolder,
	decoders map[types.ModifierTypeId]ModifierDecoder,
) *Synchronizer {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	if m == nil {
		m = NopMetrics()
	}
	if reporter == nil {
		reporter = network.NopReporter{}
	}

	s := &Synchronizer{
		cfg:         cfg,
		logger:      logger,
		metrics:     m,
		controller:  controller,
		reporter:    reporter,
		vh:          vh,
		decoders:    decoders,
		peers:       make(map[types.PeerID]struct{}),
		advertisers: make(map[types.ModifierId]map[types.PeerID]struct{}),
		inbound:     make(chan inboundEvent, inboundQueueSize),
	}
	s.cache = modcache.NewCache(cfg.MaxModifiersCacheSize)
	s.tracker = delivery.NewTracker(cfg.DeliveryTimeout, cfg.MaxDeliveryChecks, s.onCheckDelivery, logger.With("component", "delivery"))
	s.syncTracker = syncstate.NewTracker(cfg.SyncInterval, cfg.SyncStatusRefresh)
	s.BaseService = service.NewBaseService(logger, "Synchronizer", s)
	return s
}

// onCheckDelivery is the delivery.Tracker timer callback; it only enqueues,
// matching spec §4.1's "the synchronizer (not the tracker) decides to retry
// or give up."
func (s *Synchronizer) onCheckDelivery(cd delivery.CheckDelivery) {
	select {
	case s.inbound <- inboundEvent{checkDelivery: &cd}:
	default:
		s.logger.Error("inbound queue full, dropping CheckDelivery", "id", cd.Id)
	}
}

// OnStart bootstraps initial reader handles, registers the peer message
// codes with the network controller, and starts the run loop and scheduler
// (spec §4.4 B "GetNodeViewChanges" bootstrap, §5 scheduling model).
func (s *Synchronizer) OnStart(ctx context.Context) error {
	history, mempool, err := s.vh.GetNodeViewChanges(ctx)
	if err != nil {
		return fmt.Errorf("bootstrapping node view: %w", err)
	}
	s.history = history
	s.mempool = mempool

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	g, gctx := errgroup.WithContext(runCtx)
	s.group = g

	s.controller.RegisterMessagesHandler(
		[]byte{codec.InvMessageCode, codec.RequestMessageCode, codec.ModifiersMessageCode, codec.SyncInfoMessageCode},
		func(env network.Envelope) {
			select {
			case s.inbound <- inboundEvent{peerMessage: &env}:
			case <-gctx.Done():
			}
		},
	)

	g.Go(func() error { return s.run(gctx) })
	g.Go(func() error { return s.drainViewHolderEvents(gctx) })
	g.Go(func() error { return s.scheduler(gctx) })

	return nil
}

// OnStop cancels the run loop and scheduler goroutines and waits for them.
func (s *Synchronizer) OnStop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.group != nil {
		if err := s.group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("synchronizer goroutine exited with error", "err", err)
		}
	}
}

func (s *Synchronizer) drainViewHolderEvents(ctx context.Context) error {
	events := s.vh.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			select {
			case s.inbound <- inboundEvent{viewHolder: &ev}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// scheduler ticks the periodic sync-info broadcast (spec §4.4 B
// "SendLocalSyncInfo (tick)"). Delivery timeouts are armed per-id by
// delivery.Tracker itself and need no separate sweep here.
func (s *Synchronizer) scheduler(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.SyncStatusRefresh)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			ev := viewholder.Event{SendLocalSyncInfo: &viewholder.SendLocalSyncInfo{}}
			select {
			case s.inbound <- inboundEvent{viewHolder: &ev}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// run is the single event-loop goroutine spec §5 requires: it dequeues one
// event at a time and is the only place Synchronizer state is mutated.
func (s *Synchronizer) run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-s.inbound:
			s.handle(ctx, ev)
		}
	}
}

func (s *Synchronizer) handle(ctx context.Context, ev inboundEvent) {
	correlationID := uuid.NewString()
	switch {
	case ev.peerMessage != nil:
		s.handlePeerMessage(ctx, *ev.peerMessage, correlationID)
	case ev.viewHolder != nil:
		s.handleViewHolderEvent(ctx, *ev.viewHolder, correlationID)
	case ev.checkDelivery != nil:
		s.handleCheckDelivery(ctx, *ev.checkDelivery, correlationID)
	}
	// Every branch above can change which ids are Requested (Expect,
	// Reexpect, OnReceive, ToApplied/ToUnknown/ToInvalid all pass through
	// here), so refresh the gauge once per dispatched event rather than at
	// each individual call site.
	s.metrics.DeliveryPending.Set(float64(s.tracker.Pending()))
}

func (s *Synchronizer) readerFor(typeId types.ModifierTypeId) delivery.ApplicationReader {
	if typeId.IsTransaction() {
		return s.mempool
	}
	return s.history
}

func (s *Synchronizer) broadcastInv(ctx context.Context, typeId types.ModifierTypeId, id types.ModifierId) {
	inv := &codec.InvMessage{TypeId: typeId, Ids: []types.ModifierId{id}}
	if err := s.controller.SendToNetwork(network.OutboundEnvelope{Target: network.Broadcast(), Message: inv}); err != nil {
		s.logger.Error("broadcast inv failed", "err", err)
	}
}

// pickPeer resolves the Open Question in spec §9 ("peer selection for
// untargeted re-request"): peers who have previously advertised id via Inv
// are weighted favourably, using mroth/weightedrand the way a PEX-style
// reactor would weight address-book candidates. Falls back to uniform
// selection among all connected peers when nobody has advertised it.
func (s *Synchronizer) pickPeer(id types.ModifierId) (types.PeerID, bool) {
	if len(s.peers) == 0 {
		return "", false
	}

	advertisedBy := s.advertisers[id]
	choices := make([]weightedrand.Choice, 0, len(s.peers))
	for p := range s.peers {
		weight := uint(1)
		if _, advertised := advertisedBy[p]; advertised {
			weight = 10
		}
		choices = append(choices, weightedrand.Choice{Item: p, Weight: weight})
	}

	chooser, err := weightedrand.NewChooser(choices...)
	if err != nil {
		s.logger.Error("weighted peer selection failed", "err", err)
		for p := range s.peers {
			return p, true
		}
		return "", false
	}
	return chooser.Pick().(types.PeerID), true
}

// requestDownload re-expects each of ids and sends a single Request for
// whichever subset successfully re-expected to a weighted-random connected
// peer (spec §4.4 "requestDownload"). ids is clamped to MaxInvObjects
// before any state changes so ids dropped by truncation are left untouched
// (spec §4.5, §6 OversizedMessage policy).
func (s *Synchronizer) requestDownload(ctx context.Context, typeId types.ModifierTypeId, ids []types.ModifierId) {
	ids = s.truncateIds(ids, "typeId", typeId)

	var toSend []types.ModifierId
	for _, id := range ids {
		if s.tracker.Reexpect(nil, typeId, id) {
			toSend = append(toSend, id)
		}
	}
	if len(toSend) == 0 {
		return
	}

	var anchor types.ModifierId
	if len(toSend) > 0 {
		anchor = toSend[0]
	}
	peer, ok := s.pickPeer(anchor)
	if !ok {
		s.logger.Error("no connected peer available for untargeted re-request", "typeId", typeId)
		return
	}

	req := &codec.RequestMessage{TypeId: typeId, Ids: toSend}
	if err := s.controller.SendToNetwork(network.OutboundEnvelope{Target: network.SendToPeer(peer), Message: req}); err != nil {
		s.logger.Error("requestDownload send failed", "err", err, "peer", peer)
		return
	}
	s.metrics.ModifiersRequested.Add(float64(len(toSend)))
}
