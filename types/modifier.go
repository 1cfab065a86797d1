// Package types holds the data model shared by every component of the node
// view synchronizer: modifier identifiers, the modifier lifecycle, peer
// handles, and the synchronization-comparison result.
package types

import (
	"bytes"
	"encoding/hex"
)

// ModifierIDSize is the canonical width of a ModifierId.
const ModifierIDSize = 32

// ModifierId is an opaque fixed-width identifier for a transaction or a
// persistent modifier (block or block-section). Comparison is plain byte
// order, which is what ModifiersCache.findApplicable uses to pick
// deterministically among several applicable candidates.
type ModifierId [ModifierIDSize]byte

func (id ModifierId) String() string {
	return hex.EncodeToString(id[:])
}

// Less reports whether id sorts before other in canonical byte order.
func (id ModifierId) Less(other ModifierId) bool {
	return bytes.Compare(id[:], other[:]) < 0
}

// ModifierTypeId is a one-byte tag selecting the modifier class.
type ModifierTypeId byte

// TransactionModifierTypeId is the single distinguished ModifierTypeId that
// denotes an ephemeral transaction, living in the mempool. Every other value
// denotes a persistent modifier, applied to history.
const TransactionModifierTypeId ModifierTypeId = 1

// IsTransaction reports whether id denotes the ephemeral transaction class.
func (t ModifierTypeId) IsTransaction() bool {
	return t == TransactionModifierTypeId
}

// SortIds returns a copy of ids sorted by canonical byte order.
func SortIds(ids []ModifierId) []ModifierId {
	out := make([]ModifierId, len(ids))
	copy(out, ids)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Less(out[j-1]); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}
