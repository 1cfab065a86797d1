package codec

import "github.com/gonvs/nodesync/types"

// SyncInfoMessage wraps a consensus-defined SyncInfo payload. The core
// treats the payload as opaque bytes (spec §3, §6); only the consensus
// plug-in can interpret it.
type SyncInfoMessage struct {
	protoStub
	Payload []byte
}

func (m *SyncInfoMessage) String() string {
	return "SyncInfo{}"
}

func (m *SyncInfoMessage) Marshal() ([]byte, error) {
	return append([]byte(nil), m.Payload...), nil
}

func (m *SyncInfoMessage) Unmarshal(b []byte) error {
	m.Payload = append([]byte(nil), b...)
	return nil
}

// NewSyncInfoMessage wraps a types.SyncInfo for the wire.
func NewSyncInfoMessage(si types.SyncInfo) *SyncInfoMessage {
	return &SyncInfoMessage{Payload: si.Bytes()}
}

// SyncInfo unwraps the message back into a types.SyncInfo, as the opaque
// RawSyncInfo carrier — a consensus plug-in supplying a richer SyncInfo type
// would instead decode m.Payload with its own format.
func (m *SyncInfoMessage) SyncInfo() types.SyncInfo {
	return types.RawSyncInfo(m.Payload)
}
