package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/gonvs/nodesync/types"
)

// ModifiersMessage carries modifier bytes keyed by id. Wire shape (spec
// §4.5, §6): one-byte typeId, 4-byte count, then <id><4-byte len><bytes>
// repeated.
type ModifiersMessage struct {
	protoStub
	TypeId    types.ModifierTypeId
	Modifiers map[types.ModifierId][]byte
}

func (m *ModifiersMessage) String() string {
	return fmt.Sprintf("Modifiers{type=%d, n=%d}", m.TypeId, len(m.Modifiers))
}

func (m *ModifiersMessage) Marshal() ([]byte, error) {
	size := 5
	for _, b := range m.Modifiers {
		size += types.ModifierIDSize + 4 + len(b)
	}
	buf := make([]byte, 5, size)
	buf[0] = byte(m.TypeId)
	binary.BigEndian.PutUint32(buf[1:5], uint32(len(m.Modifiers)))

	// Deterministic order (by id) so Marshal is reproducible in tests.
	ids := make([]types.ModifierId, 0, len(m.Modifiers))
	for id := range m.Modifiers {
		ids = append(ids, id)
	}
	ids = types.SortIds(ids)

	for _, id := range ids {
		b := m.Modifiers[id]
		buf = append(buf, id[:]...)
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
		buf = append(buf, lenBuf[:]...)
		buf = append(buf, b...)
	}
	return buf, nil
}

func (m *ModifiersMessage) Unmarshal(b []byte) error {
	if len(b) < 5 {
		return fmt.Errorf("%w: modifiers header truncated", types.ErrMalformedModifier)
	}
	m.TypeId = types.ModifierTypeId(b[0])
	count := binary.BigEndian.Uint32(b[1:5])
	rest := b[5:]

	out := make(map[types.ModifierId][]byte, count)
	for i := uint32(0); i < count; i++ {
		if len(rest) < types.ModifierIDSize+4 {
			return fmt.Errorf("%w: modifiers entry truncated", types.ErrMalformedModifier)
		}
		var id types.ModifierId
		copy(id[:], rest[:types.ModifierIDSize])
		rest = rest[types.ModifierIDSize:]

		n := binary.BigEndian.Uint32(rest[:4])
		rest = rest[4:]
		if uint64(len(rest)) < uint64(n) {
			return fmt.Errorf("%w: modifiers payload truncated", types.ErrMalformedModifier)
		}
		payload := make([]byte, n)
		copy(payload, rest[:n])
		out[id] = payload
		rest = rest[n:]
	}
	if len(rest) != 0 {
		return fmt.Errorf("%w: trailing bytes in modifiers message", types.ErrMalformedModifier)
	}
	m.Modifiers = out
	return nil
}

// Size returns the would-be wire size, used by the sender to enforce
// maxPacketSize before calling Marshal (spec §6 OversizedMessage policy).
func (m *ModifiersMessage) Size() int {
	size := 5
	for _, b := range m.Modifiers {
		size += types.ModifierIDSize + 4 + len(b)
	}
	return size
}
