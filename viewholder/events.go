// Package viewholder defines the inbound event stream the node view holder
// delivers to the Synchronizer, and the outbound requests the Synchronizer
// may issue back to it. Both the view holder and its history/mempool
// snapshots are external collaborators (spec §1, §4.4 B) — this package
// only states the shape of that boundary.
package viewholder

import (
	"github.com/gonvs/nodesync/reader"
	"github.com/gonvs/nodesync/types"
)

// Event is the tagged union of every view-holder / peer-manager occurrence
// the Synchronizer reacts to (spec §4.4 B). Exactly one field is non-zero
// per delivered Event; this mirrors the teacher's typed-message approach in
// internal/p2p (one envelope, one concrete payload) rather than an
// interface with N implementations, keeping dispatch a single switch.
type Event struct {
	SuccessfulTransaction           *SuccessfulTransaction
	FailedTransaction               *FailedTransaction
	SyntacticallySuccessfulModifier *SyntacticallySuccessfulModifier
	SyntacticallyFailedModification *SyntacticallyFailedModification
	SemanticallySuccessfulModifier  *SemanticallySuccessfulModifier
	SemanticallyFailedModification  *SemanticallyFailedModification
	ChangedHistory                  *ChangedHistory
	ChangedMempool                  *ChangedMempool
	HandshakedPeer                  *HandshakedPeer
	DisconnectedPeer                *DisconnectedPeer
	DownloadRequest                 *DownloadRequest
	SendLocalSyncInfo               *SendLocalSyncInfo
}

type SuccessfulTransaction struct{ Tx reader.Modifier }

type FailedTransaction struct {
	Tx  reader.Modifier
	Err error
}

type SyntacticallySuccessfulModifier struct{ Mod reader.Modifier }

type SyntacticallyFailedModification struct {
	Mod reader.Modifier
	Err error
}

type SemanticallySuccessfulModifier struct{ Mod reader.Modifier }

type SemanticallyFailedModification struct {
	Mod reader.Modifier
	Err error
}

type ChangedHistory struct{ History reader.History }

type ChangedMempool struct{ Mempool reader.Mempool }

type HandshakedPeer struct{ Peer types.PeerID }

type DisconnectedPeer struct{ Peer types.PeerID }

type DownloadRequest struct {
	TypeId types.ModifierTypeId
	Id     types.ModifierId
}

// SendLocalSyncInfo is the periodic scheduler tick of spec §4.4 B; it
// carries no payload of its own.
type SendLocalSyncInfo struct{}
