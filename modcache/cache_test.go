package modcache

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/gonvs/nodesync/reader"
	"github.com/gonvs/nodesync/types"
)

type fakeModifier struct {
	id types.ModifierId
}

func (m fakeModifier) Id() types.ModifierId            { return m.id }
func (m fakeModifier) TypeId() types.ModifierTypeId     { return 2 }
func (m fakeModifier) Bytes() []byte                    { return m.id[:] }

// fakeHistory reports a modifier applicable iff its id is in the applicable
// set; everything else is "missing dependency" (a plain error, not
// permanently inapplicable).
type fakeHistory struct {
	applicable map[types.ModifierId]bool
}

func (h *fakeHistory) Compare(types.SyncInfo) types.PeerSyncStatus { return types.PeerEqual }
func (h *fakeHistory) ContinuationIds(types.SyncInfo, int) []reader.TypedId { return nil }
func (h *fakeHistory) SyncInfo() types.SyncInfo                    { return nil }
func (h *fakeHistory) Contains(types.ModifierId) bool              { return false }
func (h *fakeHistory) ModifierById(types.ModifierId) (reader.Modifier, bool) {
	return nil, false
}
func (h *fakeHistory) ApplicableTry(mod reader.Modifier) error {
	if h.applicable[mod.Id()] {
		return nil
	}
	return errors.New("dependency missing")
}

func idOf(b byte) types.ModifierId {
	var id types.ModifierId
	id[0] = b
	return id
}

func TestPutGetContainsRemove(t *testing.T) {
	c := NewCache(10)
	id := idOf(1)
	mod := fakeModifier{id: id}

	require.False(t, c.Contains(id))
	c.Put(id, mod)
	require.True(t, c.Contains(id))

	got, ok := c.Get(id)
	require.True(t, ok)
	require.Equal(t, mod, got)

	removed, ok := c.Remove(id)
	require.True(t, ok)
	require.Equal(t, mod, removed)
	require.False(t, c.Contains(id))
}

func TestPutIsIdempotent(t *testing.T) {
	c := NewCache(10)
	id := idOf(1)
	c.Put(id, fakeModifier{id: id})
	c.Put(id, fakeModifier{id: id})
	require.Equal(t, 1, c.Size())
}

// TestCleanOverfullEvictsOldestFirst is scenario S5 from spec §8: the cache
// never exceeds capacity, and it evicts in FIFO insertion order.
func TestCleanOverfullEvictsOldestFirst(t *testing.T) {
	c := NewCache(2)
	ids := []types.ModifierId{idOf(1), idOf(2), idOf(3)}
	for _, id := range ids {
		c.Put(id, fakeModifier{id: id})
	}
	require.Equal(t, 3, c.Size())

	evicted := c.CleanOverfull()
	require.Len(t, evicted, 1)
	require.Equal(t, ids[0], evicted[0].Id)
	require.Equal(t, 2, c.Size())
	require.False(t, c.Contains(ids[0]))
	require.True(t, c.Contains(ids[1]))
	require.True(t, c.Contains(ids[2]))
}

func TestFindApplicablePicksLowestId(t *testing.T) {
	c := NewCache(10)
	hi, lo := idOf(9), idOf(1)
	c.Put(hi, fakeModifier{id: hi})
	c.Put(lo, fakeModifier{id: lo})

	h := &fakeHistory{applicable: map[types.ModifierId]bool{hi: true, lo: true}}
	mod, ok := c.FindApplicable(h)
	require.True(t, ok)
	require.Equal(t, lo, mod.Id())
	require.False(t, c.Contains(lo))
	require.True(t, c.Contains(hi))
}

func TestFindApplicableSkipsInapplicable(t *testing.T) {
	c := NewCache(10)
	blocked, ready := idOf(1), idOf(2)
	c.Put(blocked, fakeModifier{id: blocked})
	c.Put(ready, fakeModifier{id: ready})

	h := &fakeHistory{applicable: map[types.ModifierId]bool{ready: true}}
	mod, ok := c.FindApplicable(h)
	require.True(t, ok)
	require.Equal(t, ready, mod.Id())
}

func TestFindApplicableNoneReady(t *testing.T) {
	c := NewCache(10)
	id := idOf(1)
	c.Put(id, fakeModifier{id: id})

	h := &fakeHistory{applicable: map[types.ModifierId]bool{}}
	_, ok := c.FindApplicable(h)
	require.False(t, ok)
	require.True(t, c.Contains(id))
}

// TestCapacityInvariant is universal property 4 from spec §8: after
// CleanOverfull, size never exceeds capacity, and every id is either still
// present or was returned exactly once by CleanOverfull.
func TestCapacityInvariant(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		capacity := rapid.IntRange(1, 8).Draw(rt, "capacity")
		n := rapid.IntRange(0, 20).Draw(rt, "n")

		c := NewCache(capacity)
		inserted := make(map[types.ModifierId]bool)
		for i := 0; i < n; i++ {
			id := idOf(byte(i + 1))
			c.Put(id, fakeModifier{id: id})
			inserted[id] = true
		}

		evicted := c.CleanOverfull()
		require.LessOrEqual(t, c.Size(), capacity)

		seen := make(map[types.ModifierId]bool)
		for _, e := range evicted {
			require.False(t, seen[e.Id], "id evicted more than once")
			seen[e.Id] = true
			require.False(t, c.Contains(e.Id))
		}

		for id := range inserted {
			if !seen[id] {
				require.True(t, c.Contains(id))
			}
		}
	})
}
