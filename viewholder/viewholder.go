package viewholder

import (
	"context"

	"github.com/gonvs/nodesync/modcache"
	"github.com/gonvs/nodesync/reader"
)

// ViewHolder is the outbound half of the boundary (spec §4.4, "View-holder
// contract (inbound to synchronizer)" — named here from the Synchronizer's
// point of view, i.e. what it may call on the view holder). The concrete
// view holder owns history and mempool persistence; this package only
// states the calls the Synchronizer makes against it.
type ViewHolder interface {
	// LocallyGeneratedTransaction forwards a successfully parsed transaction
	// for application; a SuccessfulTransaction or FailedTransaction event
	// eventually follows on the Events channel (spec §4.4 A.4).
	LocallyGeneratedTransaction(ctx context.Context, tx reader.Modifier) error

	// ChangedCache notifies the view holder that cache membership changed,
	// handing it a read-only handle so it can pull newly applicable
	// modifiers via cache.FindApplicable (spec §4.4 A.4, §5 shared resource
	// policy).
	ChangedCache(ctx context.Context, cache *modcache.Cache)

	// GetNodeViewChanges is the bootstrap call the Synchronizer issues at
	// start to obtain its initial reader handles (spec §4.4 B,
	// "GetNodeViewChanges(history, state, vault, mempool)"). The Go
	// boundary only needs the two readers the Synchronizer itself
	// consults; state and vault are consensus-plugin concerns the
	// Synchronizer never touches directly.
	GetNodeViewChanges(ctx context.Context) (reader.History, reader.Mempool, error)

	// Events is the inbound stream of occurrences described by Event; the
	// Synchronizer's event loop selects on it alongside peer messages and
	// its own timers (spec §4.4, §5).
	Events() <-chan Event
}
