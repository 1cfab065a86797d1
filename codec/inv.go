package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/gonvs/nodesync/types"
)

// InvMessage announces ids the sender claims to know. RequestMessage asks
// the receiver to send back the named ids. Both share the exact wire shape
// of spec §4.5: one-byte typeId, then a 4-byte count, then the ids back to
// back.
type InvMessage struct {
	protoStub
	TypeId types.ModifierTypeId
	Ids    []types.ModifierId
}

func (m *InvMessage) String() string {
	return fmt.Sprintf("Inv{type=%d, n=%d}", m.TypeId, len(m.Ids))
}

func (m *InvMessage) Marshal() ([]byte, error) {
	return marshalIdList(m.TypeId, m.Ids)
}

func (m *InvMessage) Unmarshal(b []byte) error {
	typeId, ids, err := unmarshalIdList(b)
	if err != nil {
		return err
	}
	m.TypeId, m.Ids = typeId, ids
	return nil
}

type RequestMessage struct {
	protoStub
	TypeId types.ModifierTypeId
	Ids    []types.ModifierId
}

func (m *RequestMessage) String() string {
	return fmt.Sprintf("Request{type=%d, n=%d}", m.TypeId, len(m.Ids))
}

func (m *RequestMessage) Marshal() ([]byte, error) {
	return marshalIdList(m.TypeId, m.Ids)
}

func (m *RequestMessage) Unmarshal(b []byte) error {
	typeId, ids, err := unmarshalIdList(b)
	if err != nil {
		return err
	}
	m.TypeId, m.Ids = typeId, ids
	return nil
}

func marshalIdList(typeId types.ModifierTypeId, ids []types.ModifierId) ([]byte, error) {
	buf := make([]byte, 0, 5+len(ids)*types.ModifierIDSize)
	buf = append(buf, byte(typeId))
	var countBuf [4]byte
	binary.BigEndian.PutUint32(countBuf[:], uint32(len(ids)))
	buf = append(buf, countBuf[:]...)
	for _, id := range ids {
		buf = append(buf, id[:]...)
	}
	return buf, nil
}

func unmarshalIdList(b []byte) (types.ModifierTypeId, []types.ModifierId, error) {
	if len(b) < 5 {
		return 0, nil, fmt.Errorf("%w: id-list header truncated", types.ErrMalformedModifier)
	}
	typeId := types.ModifierTypeId(b[0])
	count := binary.BigEndian.Uint32(b[1:5])
	rest := b[5:]
	if uint64(count)*types.ModifierIDSize != uint64(len(rest)) {
		return 0, nil, fmt.Errorf("%w: id-list length mismatch", types.ErrMalformedModifier)
	}
	ids := make([]types.ModifierId, count)
	for i := range ids {
		copy(ids[i][:], rest[i*types.ModifierIDSize:(i+1)*types.ModifierIDSize])
	}
	return typeId, ids, nil
}
