package network

import (
	"github.com/gogo/protobuf/proto"

	"github.com/gonvs/nodesync/types"
)

// Envelope carries one outbound or inbound message, mirroring the teacher's
// internal/p2p.Envelope. Message is typed proto.Message so every wire
// message type in package codec implements the minimal
// Reset/String/ProtoMessage contract, the same way the teacher's p2p
// transport is generic over protobuf payloads.
type Envelope struct {
	From    types.PeerID
	Message proto.Message
}

// OutboundEnvelope pairs a message with where it should go.
type OutboundEnvelope struct {
	Target  Target
	Message proto.Message
}

// Sink is what the synchronizer uses to hand outbound messages to the
// network transport without blocking (spec §5: "outbound send... must
// accept without blocking the synchronizer").
type Sink interface {
	SendToNetwork(env OutboundEnvelope) error
}

// Controller is the full contract the synchronizer needs from the network
// component: registering which message codes it wants delivered, and the
// Sink for sending.
type Controller interface {
	Sink
	RegisterMessagesHandler(codes []byte, handler func(Envelope))
}
