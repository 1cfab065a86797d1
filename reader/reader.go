// Package reader defines the read-only contracts the Synchronizer holds
// against the node view holder's history and mempool. Both are external
// collaborators (spec §1); this package only states what the synchronizer
// may ask of them.
package reader

import (
	"github.com/gonvs/nodesync/types"
)

// Modifier is the generic payload type exchanged on the wire: a decoded
// transaction or a decoded persistent modifier. Concrete modifier formats
// are owned by the consensus plug-in; the synchronizer only needs its id,
// type tag and wire bytes.
type Modifier interface {
	Id() types.ModifierId
	TypeId() types.ModifierTypeId
	Bytes() []byte
}

// History is a read-only snapshot of the local chain, swapped out whenever
// the view holder emits a ChangedHistory event (spec §4.4 B).
type History interface {
	// Compare returns how a peer's SyncInfo relates to our own chain.
	Compare(si types.SyncInfo) types.PeerSyncStatus

	// ContinuationIds returns up to limit (typeId, id) pairs we would send a
	// Younger peer to catch it up, or nil if there is nothing to extend with.
	ContinuationIds(si types.SyncInfo, limit int) []TypedId

	// SyncInfo returns our current chain-tip summary.
	SyncInfo() types.SyncInfo

	// ApplicableTry reports whether mod's dependencies are satisfied and it
	// may be applied now. A non-nil, non-permanent error means dependencies
	// are missing; errors.Is(err, types.ErrPermanentlyInapplicable) means
	// mod can never become valid.
	ApplicableTry(mod Modifier) error

	// Contains reports whether mod (or an equivalent by id) is already part
	// of history.
	Contains(id types.ModifierId) bool

	// ModifierById fetches a persistent modifier already applied to history.
	ModifierById(id types.ModifierId) (Modifier, bool)
}

// Mempool is a read-only snapshot of the local transaction pool, swapped out
// whenever the view holder emits a ChangedMempool event.
type Mempool interface {
	// GetAll returns whichever of ids are currently held; missing ids are
	// silently omitted (spec §4.4 A.3).
	GetAll(ids []types.ModifierId) []Modifier

	Contains(id types.ModifierId) bool
}

// TypedId pairs a ModifierTypeId with the ModifierId it tags, the shape
// carried by Inv/Request messages.
type TypedId struct {
	TypeId types.ModifierTypeId
	Id     types.ModifierId
}
