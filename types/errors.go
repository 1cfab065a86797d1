package types

import "errors"

// Error kinds from spec §7. Each is a sentinel so callers can classify an
// arrival with errors.Is instead of string matching, the way the teacher's
// internal/blocksync.peerError is wrapped with fmt.Errorf("...: %w", err).
var (
	// ErrMalformedModifier: deserialization failed, or the declared id does
	// not match the computed id of the decoded payload.
	ErrMalformedModifier = errors.New("malformed modifier")

	// ErrSpam: a modifier arrived that was never requested.
	ErrSpam = errors.New("unrequested modifier delivered")

	// ErrNonDelivery: a Requested id timed out.
	ErrNonDelivery = errors.New("modifier delivery timed out")

	// ErrNonsenseSync: history.compare returned PeerNonsense.
	ErrNonsenseSync = errors.New("nonsense sync comparison")

	// ErrUnknownSerializer: no codec is registered for a ModifierTypeId.
	ErrUnknownSerializer = errors.New("no codec registered for modifier type")

	// ErrReaderUnavailable: a message arrived before the bootstrap readers
	// were delivered by the view holder.
	ErrReaderUnavailable = errors.New("history or mempool reader not yet available")

	// ErrOversizedMessage: an outbound message would exceed the configured
	// size limit and had to be truncated.
	ErrOversizedMessage = errors.New("outbound message exceeds configured limit")

	// ErrPermanentlyInapplicable: history.applicableTry reported the
	// modifier can never become applicable (as opposed to merely missing
	// dependencies right now).
	ErrPermanentlyInapplicable = errors.New("modifier is permanently inapplicable")
)
