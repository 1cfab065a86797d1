package sync

import (
	"context"
	"errors"
	"time"

	"github.com/gonvs/nodesync/codec"
	"github.com/gonvs/nodesync/delivery"
	"github.com/gonvs/nodesync/network"
	"github.com/gonvs/nodesync/reader"
	"github.com/gonvs/nodesync/types"
	"github.com/gonvs/nodesync/viewholder"
)

func (s *Synchronizer) handlePeerMessage(ctx context.Context, env network.Envelope, correlationID string) {
	switch msg := env.Message.(type) {
	case *codec.SyncInfoMessage:
		s.handleSyncInfo(ctx, env.From, msg)
	case *codec.InvMessage:
		s.handleInv(ctx, env.From, msg)
	case *codec.RequestMessage:
		s.handleRequest(ctx, env.From, msg)
	case *codec.ModifiersMessage:
		s.handleModifiers(ctx, env.From, msg)
	default:
		s.logger.Error("unrecognized peer message type", "peer", env.From, "correlationID", correlationID)
	}
}

// handleSyncInfo is spec §4.4 A.1.
func (s *Synchronizer) handleSyncInfo(ctx context.Context, peer types.PeerID, msg *codec.SyncInfoMessage) {
	si := msg.SyncInfo()
	status := s.history.Compare(si)
	s.syncTracker.UpdateStatus(peer, status, time.Now(), false)

	if status == types.PeerNonsense {
		s.logger.Error("nonsense sync comparison", "peer", peer, "err", types.ErrNonsenseSync)
		return
	}
	if status != types.PeerYounger {
		return
	}

	ids := s.history.ContinuationIds(si, s.cfg.MaxInvObjects)
	if len(ids) == 0 {
		s.logger.Info("peer reported Younger but no continuation available", "peer", peer)
		return
	}

	byType := make(map[types.ModifierTypeId][]types.ModifierId)
	for _, tid := range ids {
		byType[tid.TypeId] = append(byType[tid.TypeId], tid.Id)
	}
	for typeId, typeIds := range byType {
		inv := &codec.InvMessage{TypeId: typeId, Ids: typeIds}
		if err := s.controller.SendToNetwork(network.OutboundEnvelope{Target: network.SendToPeer(peer), Message: inv}); err != nil {
			s.logger.Error("sending continuation inv failed", "err", err, "peer", peer)
		}
	}
}

// handleInv is spec §4.4 A.2.
func (s *Synchronizer) handleInv(ctx context.Context, peer types.PeerID, msg *codec.InvMessage) {
	var unknown []types.ModifierId
	for _, id := range msg.Ids {
		s.recordAdvertiser(id, peer)
		if s.tracker.Status(id, s.readerFor(msg.TypeId)) == types.Unknown {
			unknown = append(unknown, id)
		}
	}
	if len(unknown) == 0 {
		return
	}
	unknown = s.truncateIds(unknown, "peer", peer)

	req := &codec.RequestMessage{TypeId: msg.TypeId, Ids: unknown}
	if err := s.controller.SendToNetwork(network.OutboundEnvelope{Target: network.SendToPeer(peer), Message: req}); err != nil {
		s.logger.Error("sending request failed", "err", err, "peer", peer)
		return
	}
	s.tracker.Expect(peer, msg.TypeId, unknown)
	s.metrics.ModifiersRequested.Add(float64(len(unknown)))
}

func (s *Synchronizer) recordAdvertiser(id types.ModifierId, peer types.PeerID) {
	set, ok := s.advertisers[id]
	if !ok {
		set = make(map[types.PeerID]struct{})
		s.advertisers[id] = set
	}
	set[peer] = struct{}{}
}

// handleRequest is spec §4.4 A.3.
func (s *Synchronizer) handleRequest(ctx context.Context, peer types.PeerID, msg *codec.RequestMessage) {
	modifiers := make(map[types.ModifierId][]byte)
	if msg.TypeId.IsTransaction() {
		for _, mod := range s.mempool.GetAll(msg.Ids) {
			modifiers[mod.Id()] = mod.Bytes()
		}
	} else {
		for _, id := range msg.Ids {
			if mod, ok := s.history.ModifierById(id); ok {
				modifiers[id] = mod.Bytes()
			}
		}
	}
	if len(modifiers) == 0 {
		return
	}

	out := &codec.ModifiersMessage{TypeId: msg.TypeId, Modifiers: modifiers}
	s.truncateToFit(out, peer)
	if len(out.Modifiers) == 0 {
		return
	}
	if err := s.controller.SendToNetwork(network.OutboundEnvelope{Target: network.SendToPeer(peer), Message: out}); err != nil {
		s.logger.Error("sending modifiers failed", "err", err, "peer", peer)
	}
}

// truncateToFit drops entries, highest id first in types.SortIds order,
// until out fits within MaxPacketSize, logging a warning if
// anything was dropped (spec §4.5, §6 OversizedMessage policy: "truncate to
// fit; never split invariants across messages silently — log a warning on
// truncation").
func (s *Synchronizer) truncateToFit(out *codec.ModifiersMessage, peer types.PeerID) {
	if out.Size() <= s.cfg.MaxPacketSize {
		return
	}
	ids := make([]types.ModifierId, 0, len(out.Modifiers))
	for id := range out.Modifiers {
		ids = append(ids, id)
	}
	ids = types.SortIds(ids)

	dropped := 0
	for out.Size() > s.cfg.MaxPacketSize && len(ids) > 0 {
		last := ids[len(ids)-1]
		ids = ids[:len(ids)-1]
		delete(out.Modifiers, last)
		dropped++
	}
	if dropped > 0 {
		s.logger.Error("truncated outbound modifiers to fit MaxPacketSize", "peer", peer, "dropped", dropped)
	}
}

// truncateIds clamps ids to at most cfg.MaxInvObjects entries, keeping the
// lowest ids by canonical byte order via types.SortIds so the choice is
// deterministic, and logging a warning if anything was dropped (spec §4.5:
// Inv/Request messages are "size bounded by maxInvObjects"; §6
// OversizedMessage policy: "truncate to fit... log a warning on
// truncation"). Used at every site that builds an outbound Request.
func (s *Synchronizer) truncateIds(ids []types.ModifierId, logFields ...interface{}) []types.ModifierId {
	if len(ids) <= s.cfg.MaxInvObjects {
		return ids
	}
	sorted := types.SortIds(ids)
	kept := sorted[:s.cfg.MaxInvObjects]
	fields := append(append([]interface{}{}, logFields...), "dropped", len(sorted)-len(kept))
	s.logger.Error("truncated outbound request to fit MaxInvObjects", fields...)
	return kept
}

// handleModifiers is spec §4.4 A.4.
func (s *Synchronizer) handleModifiers(ctx context.Context, peer types.PeerID, msg *codec.ModifiersMessage) {
	cacheChanged := false
	for id, payload := range msg.Modifiers {
		accepted := s.tracker.OnReceive(msg.TypeId, id, peer)
		if !accepted {
			s.reporter.Report(network.Spamming(peer, "unrequested modifier delivered"))
			s.metrics.SpamDropped.Add(1)
			continue
		}

		decoder, ok := s.decoders[msg.TypeId]
		if !ok {
			s.reporter.Report(network.Misbehaving(peer, "no decoder registered for modifier type"))
			s.metrics.MisbehaviorEvents.Add(1)
			s.tracker.ToUnknown(id)
			continue
		}

		mod, err := decoder(id, payload)
		if err != nil {
			s.reporter.Report(network.Misbehaving(peer, "malformed modifier: "+err.Error()))
			s.metrics.MisbehaviorEvents.Add(1)
			s.tracker.ToUnknown(id)
			continue
		}

		if msg.TypeId.IsTransaction() {
			if err := s.vh.LocallyGeneratedTransaction(ctx, mod); err != nil {
				s.logger.Error("forwarding locally generated transaction failed", "err", err, "id", id)
			}
			continue
		}

		if s.processExpectedModifier(peer, id, mod) {
			cacheChanged = true
		}
	}

	if cacheChanged {
		evicted := s.cache.CleanOverfull()
		for _, e := range evicted {
			s.tracker.ToUnknown(e.Id)
		}
		s.metrics.CacheSize.Set(float64(s.cache.Size()))
		s.vh.ChangedCache(ctx, s.cache)
	}
}

// processExpectedModifier is spec §4.4's helper of the same name.
func (s *Synchronizer) processExpectedModifier(peer types.PeerID, id types.ModifierId, mod reader.Modifier) bool {
	if s.cache.Contains(id) || s.history.Contains(id) {
		s.logger.Error("duplicate modifier arrival", "id", id, "peer", peer)
		return false
	}

	err := s.history.ApplicableTry(mod)
	if err != nil && errors.Is(err, types.ErrPermanentlyInapplicable) {
		s.tracker.ToInvalid(id)
		s.reporter.Report(network.Misbehaving(peer, "permanently inapplicable modifier"))
		s.metrics.MisbehaviorEvents.Add(1)
		return false
	}

	s.cache.Put(id, mod)
	return true
}

// handleViewHolderEvent is spec §4.4 B.
func (s *Synchronizer) handleViewHolderEvent(ctx context.Context, ev viewholder.Event, correlationID string) {
	now := time.Now()
	switch {
	case ev.SuccessfulTransaction != nil:
		id := ev.SuccessfulTransaction.Tx.Id()
		s.tracker.ToApplied(id)
		s.metrics.ModifiersApplied.Add(1)
		s.broadcastInv(ctx, types.TransactionModifierTypeId, id)

	case ev.FailedTransaction != nil:
		s.tracker.ToUnknown(ev.FailedTransaction.Tx.Id())

	case ev.SyntacticallySuccessfulModifier != nil:
		id := ev.SyntacticallySuccessfulModifier.Mod.Id()
		s.tracker.ToApplied(id)
		s.metrics.ModifiersApplied.Add(1)

	case ev.SyntacticallyFailedModification != nil:
		s.tracker.ToUnknown(ev.SyntacticallyFailedModification.Mod.Id())

	case ev.SemanticallySuccessfulModifier != nil:
		mod := ev.SemanticallySuccessfulModifier.Mod
		s.broadcastInv(ctx, mod.TypeId(), mod.Id())

	case ev.SemanticallyFailedModification != nil:
		// Policy hook for future penalty; no state change today (spec §4.4 B).

	case ev.ChangedHistory != nil:
		s.history = ev.ChangedHistory.History

	case ev.ChangedMempool != nil:
		s.mempool = ev.ChangedMempool.Mempool

	case ev.HandshakedPeer != nil:
		peer := ev.HandshakedPeer.Peer
		s.peers[peer] = struct{}{}
		s.syncTracker.UpdateStatus(peer, types.PeerUnknown, now, false)
		s.metrics.PeersTracked.Set(float64(len(s.peers)))

	case ev.DisconnectedPeer != nil:
		peer := ev.DisconnectedPeer.Peer
		delete(s.peers, peer)
		s.syncTracker.ClearStatus(peer)
		s.tracker.ClearPeer(peer)
		for _, set := range s.advertisers {
			delete(set, peer)
		}
		s.metrics.PeersTracked.Set(float64(len(s.peers)))

	case ev.DownloadRequest != nil:
		dr := ev.DownloadRequest
		if s.tracker.Status(dr.Id, s.readerFor(dr.TypeId)) == types.Unknown {
			s.requestDownload(ctx, dr.TypeId, []types.ModifierId{dr.Id})
		}

	case ev.SendLocalSyncInfo != nil:
		due := s.syncTracker.PeersToSyncWith(now)
		if len(due) == 0 {
			return
		}
		si := codec.NewSyncInfoMessage(s.history.SyncInfo())
		if err := s.controller.SendToNetwork(network.OutboundEnvelope{Target: network.SendToPeers(due), Message: si}); err != nil {
			s.logger.Error("sending local sync info failed", "err", err)
		}
	}
}

// handleCheckDelivery is spec §4.4 B's "CheckDelivery (timer)" handler. It
// consults the tracker's live expectedPeer rather than trusting cd.Peer,
// the snapshot captured when the timer was armed: a peer disconnect between
// arming and firing clears expectedPeer (delivery.Tracker.ClearPeer), and a
// timer that still carries the departed peer must not re-target it (spec §5
// "Disconnect during a request... will find the id still Requested and
// fall into the 'no-peer' branch, triggering an untargeted re-request").
func (s *Synchronizer) handleCheckDelivery(ctx context.Context, cd delivery.CheckDelivery, correlationID string) {
	if s.tracker.Status(cd.Id, s.readerFor(cd.TypeId)) != types.Requested {
		return
	}

	if peer, ok := s.tracker.ExpectedPeer(cd.Id); ok {
		s.reporter.Report(network.NonDelivering(peer, "delivery timed out"))
		s.metrics.NonDeliveryEvents.Add(1)
		s.tracker.Reexpect(&peer, cd.TypeId, cd.Id)
		return
	}

	s.requestDownload(ctx, cd.TypeId, []types.ModifierId{cd.Id})
}
