package sync

import (
	"github.com/gonvs/nodesync/delivery"
	"github.com/gonvs/nodesync/network"
	"github.com/gonvs/nodesync/viewholder"
)

// inboundEvent is the single typed variant the event loop selects on,
// re-architecting the source's actor-style message passing into one owned
// task with a bounded queue (spec §9 REDESIGN FLAGS, "Actor → single-task
// event loop"). Exactly one field is set per value.
type inboundEvent struct {
	peerMessage   *network.Envelope
	viewHolder    *viewholder.Event
	checkDelivery *delivery.CheckDelivery
}
