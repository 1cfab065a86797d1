package types

// PeerID is a stable identity for a connected peer, the module-local
// equivalent of the teacher's p2p.NodeID / types.NodeID.
type PeerID string

// PeerHandle is the minimal contract the synchronizer needs from a
// connected peer. The concrete implementation (address, connection,
// outbound sink) is owned by the network transport, an out-of-scope
// collaborator (spec §1, §6).
type PeerHandle interface {
	ID() PeerID
	RemoteAddr() string
}
