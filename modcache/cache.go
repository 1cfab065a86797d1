// Package modcache implements the ModifiersCache of spec §4.3: a
// capacity-bounded buffer of received-but-not-yet-applicable persistent
// modifiers. Eviction order is tracked with byte-sortable
// (sequence, id) keys built with google/orderedcode, grounded on the
// teacher's internal/p2p.peermanager use of orderedcode.Append for its own
// composite keys.
package modcache

import (
	"sort"
	"sync"
	"time"

	"github.com/google/orderedcode"

	"github.com/gonvs/nodesync/reader"
	"github.com/gonvs/nodesync/types"
)

type entry struct {
	mod        reader.Modifier
	insertedAt time.Time
	orderKey   string
}

// Cache is the ModifiersCache of spec §4.3.
type Cache struct {
	mu       sync.Mutex
	capacity int
	seq      int64
	items    map[types.ModifierId]*entry
	// order holds the orderKey of every entry, always append-only sorted
	// since seq is monotonically increasing and orderedcode preserves that
	// ordering byte-for-byte.
	order []string
}

func NewCache(capacity int) *Cache {
	return &Cache{
		capacity: capacity,
		items:    make(map[types.ModifierId]*entry),
	}
}

// Put inserts mod under id. O(1) amortized (spec §4.3).
func (c *Cache) Put(id types.ModifierId, mod reader.Modifier) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.items[id]; exists {
		return
	}

	c.seq++
	key, err := orderedcode.Append(nil, c.seq, string(id[:]))
	if err != nil {
		// orderedcode.Append only fails on unsupported Go types; our inputs
		// (int64, string) are always supported.
		panic(err)
	}
	orderKey := string(key)

	c.items[id] = &entry{mod: mod, insertedAt: time.Now(), orderKey: orderKey}
	c.order = append(c.order, orderKey)
}

func (c *Cache) Contains(id types.ModifierId) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[id]
	return ok
}

func (c *Cache) Get(id types.ModifierId) (reader.Modifier, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.items[id]
	if !ok {
		return nil, false
	}
	return e.mod, true
}

func (c *Cache) Remove(id types.ModifierId) (reader.Modifier, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.removeLocked(id)
}

func (c *Cache) removeLocked(id types.ModifierId) (reader.Modifier, bool) {
	e, ok := c.items[id]
	if !ok {
		return nil, false
	}
	delete(c.items, id)
	c.removeOrderKeyLocked(e.orderKey)
	return e.mod, true
}

func (c *Cache) removeOrderKeyLocked(key string) {
	i := sort.SearchStrings(c.order, key)
	if i < len(c.order) && c.order[i] == key {
		c.order = append(c.order[:i], c.order[i+1:]...)
	}
}

// Size returns the number of modifiers currently held.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// FindApplicable returns (and removes) a single cached modifier for which
// history.applicableTry succeeds, choosing the lowest id by byte order when
// several qualify, so repeated runs are reproducible (spec §4.3).
func (c *Cache) FindApplicable(history reader.History) (reader.Modifier, bool) {
	c.mu.Lock()
	candidateIds := make([]types.ModifierId, 0, len(c.items))
	for id := range c.items {
		candidateIds = append(candidateIds, id)
	}
	c.mu.Unlock()

	sorted := types.SortIds(candidateIds)
	for _, id := range sorted {
		c.mu.Lock()
		e, ok := c.items[id]
		c.mu.Unlock()
		if !ok {
			continue
		}
		if err := history.ApplicableTry(e.mod); err == nil {
			c.mu.Lock()
			mod, ok := c.removeLocked(id)
			c.mu.Unlock()
			if ok {
				return mod, true
			}
		}
	}
	return nil, false
}

// CleanOverfull evicts the oldest-inserted entries while size exceeds
// capacity, returning everything evicted so the caller can demote those ids
// to Unknown (spec §4.3, §4.4). After this call size <= capacity always
// holds (spec §4.3 invariant).
func (c *Cache) CleanOverfull() []EvictedModifier {
	c.mu.Lock()
	defer c.mu.Unlock()

	var evicted []EvictedModifier
	for len(c.items) > c.capacity && len(c.order) > 0 {
		oldestKey := c.order[0]
		id, ok := decodeId(oldestKey)
		if !ok {
			// corrupt key, drop it defensively so we don't spin forever
			c.order = c.order[1:]
			continue
		}
		mod, ok := c.removeLocked(id)
		if ok {
			evicted = append(evicted, EvictedModifier{Id: id, Modifier: mod})
		}
	}
	return evicted
}

// EvictedModifier is one entry CleanOverfull dropped.
type EvictedModifier struct {
	Id       types.ModifierId
	Modifier reader.Modifier
}

func decodeId(key string) (types.ModifierId, bool) {
	var seq int64
	var idStr string
	if _, err := orderedcode.Parse(key, &seq, &idStr); err != nil {
		return types.ModifierId{}, false
	}
	var id types.ModifierId
	if len(idStr) != types.ModifierIDSize {
		return types.ModifierId{}, false
	}
	copy(id[:], idStr)
	return id, true
}
