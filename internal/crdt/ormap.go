package crdt

import (
	"sort"

	"github.com/google/uuid"
)

// Item is one shopping-list entry. The counter pointer is shared between the
// lifecycle maps that reference the same item, so zeroing a tombstoned
// counter is observed through every map holding it.
type Item struct {
	Name     string     `json:"name"`
	Counter  *PNCounter `json:"pn"`
	Acquired bool       `json:"acquired"`
}

// ItemView is a read-only snapshot of an item.
type ItemView struct {
	Name     string
	Quantity int64
	Acquired bool
}

// ORMap is an observed-remove map of shopping-list items with an "acquired"
// lifecycle state. State is partitioned into three maps keyed by item id:
//
//   - AddMap: items observed live, including rehydrated tombstoned and
//     acquired records (Items filters those out).
//   - RemovedMap: tombstones, counters forced to (0, 0).
//   - AcquiredMap: items marked purchased. An acquired id also lives in
//     AddMap with the flag set, and never enters RemovedMap.
type ORMap struct {
	AddMap      map[string]*Item `json:"add_map"`
	RemovedMap  map[string]*Item `json:"removed_map"`
	AcquiredMap map[string]*Item `json:"acquired_map"`
}

// NewORMap returns an empty OR-Map.
func NewORMap() *ORMap {
	return &ORMap{
		AddMap:      make(map[string]*Item),
		RemovedMap:  make(map[string]*Item),
		AcquiredMap: make(map[string]*Item),
	}
}

// Add inserts a fresh item with a zero counter. No-op if the id is already
// present.
func (m *ORMap) Add(itemID, itemName string) {
	if _, ok := m.AddMap[itemID]; ok {
		return
	}
	m.AddMap[itemID] = &Item{Name: itemName, Counter: NewPNCounter()}
}

// Remove tombstones an item. Acquired items cannot be removed.
func (m *ORMap) Remove(itemID string) {
	it, ok := m.AddMap[itemID]
	if !ok {
		return
	}
	if _, acquired := m.AcquiredMap[itemID]; acquired {
		return
	}
	m.RemovedMap[itemID] = &Item{Name: it.Name, Counter: it.Counter, Acquired: it.Acquired}
	it.Counter.Zero()
}

// MarkAcquired moves an item into the acquired state. Tombstoned items stay
// tombstoned; the AddMap record keeps carrying the flag.
func (m *ORMap) MarkAcquired(itemID string) {
	it, ok := m.AddMap[itemID]
	if !ok {
		return
	}
	if _, removed := m.RemovedMap[itemID]; removed {
		return
	}
	acquired := &Item{Name: it.Name, Counter: it.Counter, Acquired: true}
	m.AcquiredMap[itemID] = acquired
	m.AddMap[itemID] = acquired
}

// Increment grows an item's quantity by v.
func (m *ORMap) Increment(itemID string, v uint64) {
	if it, ok := m.AddMap[itemID]; ok {
		it.Counter.Increment(v)
	}
}

// Decrement shrinks an item's quantity by v. A quantity at or below zero
// tombstones the item.
func (m *ORMap) Decrement(itemID string, v uint64) {
	it, ok := m.AddMap[itemID]
	if !ok {
		return
	}
	it.Counter.Decrement(v)
	if it.Counter.Value() <= 0 {
		m.Remove(itemID)
	}
}

// Items returns the effective visible entries: AddMap minus
// (RemovedMap ∪ AcquiredMap).
func (m *ORMap) Items() map[string]ItemView {
	out := make(map[string]ItemView, len(m.AddMap))
	for id, it := range m.AddMap {
		if _, removed := m.RemovedMap[id]; removed {
			continue
		}
		if _, acquired := m.AcquiredMap[id]; acquired {
			continue
		}
		out[id] = ItemView{Name: it.Name, Quantity: it.Counter.Value(), Acquired: it.Acquired}
	}
	return out
}

// RemovedItems returns tombstoned entries whose id is not acquired.
func (m *ORMap) RemovedItems() map[string]ItemView {
	out := make(map[string]ItemView, len(m.RemovedMap))
	for id, it := range m.RemovedMap {
		if _, acquired := m.AcquiredMap[id]; acquired {
			continue
		}
		out[id] = ItemView{Name: it.Name, Quantity: it.Counter.Value(), Acquired: it.Acquired}
	}
	return out
}

// AcquiredItems returns acquired entries whose id is not tombstoned.
func (m *ORMap) AcquiredItems() map[string]ItemView {
	out := make(map[string]ItemView, len(m.AcquiredMap))
	for id, it := range m.AcquiredMap {
		if _, removed := m.RemovedMap[id]; removed {
			continue
		}
		out[id] = ItemView{Name: it.Name, Quantity: it.Counter.Value(), Acquired: it.Acquired}
	}
	return out
}

// AllItems returns every AddMap entry, including rehydrated tombstones and
// acquired records.
func (m *ORMap) AllItems() map[string]ItemView {
	out := make(map[string]ItemView, len(m.AddMap))
	for id, it := range m.AddMap {
		out[id] = ItemView{Name: it.Name, Quantity: it.Counter.Value(), Acquired: it.Acquired}
	}
	return out
}

// Merge folds other into m. Entries with identical names under different ids
// collapse into a single entry under a freshly minted id with the max-merged
// counter, tombstones and acquired records union in, and both are rehydrated
// back into AddMap as visible-but-filtered records. other is not mutated.
//
// The fresh ids make the collapse order-sensitive, but the multiset of
// (name, quantity, acquired) converges across peer orderings: counters merge
// by max, tombstone and acquired sets are unions, and every later merge
// re-collapses.
func (m *ORMap) Merge(other *ORMap) {
	// Collapse live remote entries by name. Remote ids present in either
	// side's removed or acquired maps are not live.
	merged := make(map[string]*PNCounter)
	for _, id := range sortedItemIDs(other.AddMap) {
		if _, ok := m.RemovedMap[id]; ok {
			continue
		}
		if _, ok := m.AcquiredMap[id]; ok {
			continue
		}
		if _, ok := other.RemovedMap[id]; ok {
			continue
		}
		if _, ok := other.AcquiredMap[id]; ok {
			continue
		}
		remote := other.AddMap[id]
		ctr := remote.Counter.Clone()

		existingID := ""
		for _, localID := range sortedItemIDs(m.AddMap) {
			if m.AddMap[localID].Name == remote.Name {
				existingID = localID
				break
			}
		}
		if existingID != "" {
			local := m.AddMap[existingID]
			delete(m.AddMap, existingID)
			ctr.MergeMax(local.Counter)
			merged[remote.Name] = ctr
		} else if _, ok := merged[remote.Name]; !ok {
			merged[remote.Name] = ctr
		}
	}

	// Re-emit collapsed entries under fresh ids.
	for name, ctr := range merged {
		m.AddMap[uuid.NewString()] = &Item{Name: name, Counter: ctr}
	}

	// Tombstone union, counters forced to zero.
	for id, it := range other.RemovedMap {
		if _, ok := m.RemovedMap[id]; ok {
			continue
		}
		m.RemovedMap[id] = &Item{Name: it.Name, Counter: NewPNCounter(), Acquired: it.Acquired}
	}

	// Rehydrate tombstones into AddMap; Items filters them out.
	for id, it := range m.RemovedMap {
		m.AddMap[id] = it
	}

	// Acquired union with max-merged counters.
	for id, it := range other.AcquiredMap {
		local, ok := m.AcquiredMap[id]
		if !ok {
			local = &Item{Name: it.Name, Counter: NewPNCounter(), Acquired: it.Acquired}
			m.AcquiredMap[id] = local
		}
		local.Counter.MergeMax(it.Counter)
	}

	// Rehydrate acquired entries into AddMap as well.
	for id, it := range m.AcquiredMap {
		m.AddMap[id] = it
	}
}

func sortedItemIDs(items map[string]*Item) []string {
	ids := make([]string, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
