// Package network states the contract the synchronizer needs from the
// network transport: how outbound messages are addressed, and how peer
// behaviour is reported upstream. The transport itself (framing, handshake,
// peer directory) is an external collaborator (spec §1, §6).
package network

import "github.com/gonvs/nodesync/types"

// Target selects which connected peers an outbound message is sent to,
// mirroring the teacher's p2p SendToNetwork target kinds.
type Target struct {
	kind  targetKind
	peer  types.PeerID
	peers map[types.PeerID]struct{}
}

type targetKind int

const (
	kindBroadcast targetKind = iota
	kindSendToPeer
	kindSendToPeers
	kindSendToRandom
)

// Broadcast addresses every connected peer. Used for inv fanout (spec §4.4).
func Broadcast() Target { return Target{kind: kindBroadcast} }

// SendToPeer addresses a single peer. Used for targeted inv/request/modifiers.
func SendToPeer(p types.PeerID) Target { return Target{kind: kindSendToPeer, peer: p} }

// SendToPeers addresses an explicit set of peers, used for periodic
// sync-info sends (spec §4.2 peersToSyncWith).
func SendToPeers(ps map[types.PeerID]struct{}) Target { return Target{kind: kindSendToPeers, peers: ps} }

// SendToRandom addresses exactly one connected peer, chosen by the network
// layer. The synchronizer's requestDownload does not use it: it picks the
// peer itself (pickPeer) and addresses it with SendToPeer.
func SendToRandom() Target { return Target{kind: kindSendToRandom} }

func (t Target) Kind() string {
	switch t.kind {
	case kindBroadcast:
		return "broadcast"
	case kindSendToPeer:
		return "peer"
	case kindSendToPeers:
		return "peers"
	case kindSendToRandom:
		return "random"
	default:
		return "unknown"
	}
}

func (t Target) Peer() (types.PeerID, bool) {
	return t.peer, t.kind == kindSendToPeer
}

func (t Target) Peers() (map[types.PeerID]struct{}, bool) {
	return t.peers, t.kind == kindSendToPeers
}

func (t Target) IsRandom() bool { return t.kind == kindSendToRandom }
