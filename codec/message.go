// Package codec implements the four wire message kinds of spec §4.5 and
// §6: Inv, Request, Modifiers, and SyncInfo. Each type implements the
// minimal proto.Message contract (Reset/String/ProtoMessage) so it can
// travel inside a network.Envelope the same way the teacher's internal/p2p
// messages do, even though the actual bytes-on-the-wire encoding below is
// the compact framing spec.md §6 mandates, not generated protobuf.
package codec

const (
	// InvMessageCode is the stable wire code for an Inv message.
	InvMessageCode byte = 0x01
	// RequestMessageCode is the stable wire code for a Request message.
	RequestMessageCode byte = 0x02
	// ModifiersMessageCode is the stable wire code for a Modifiers message.
	ModifiersMessageCode byte = 0x03
	// SyncInfoMessageCode is the stable wire code for a SyncInfo message.
	// The payload itself is consensus-defined and opaque to this package.
	SyncInfoMessageCode byte = 0x04
)

// protoStub gives every message type the three trivial methods required by
// proto.Message without depending on generated code, mirroring how the
// teacher treats hand-rolled types that flow through the same Envelope as
// generated ones.
type protoStub struct{}

func (protoStub) Reset()        {}
func (protoStub) ProtoMessage() {}
