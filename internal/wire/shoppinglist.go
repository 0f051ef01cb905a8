package wire

import "github.com/edirooss/listmux/internal/crdt"

// PN is a PN-Counter on the wire.
type PN struct {
	P uint64 `json:"p"`
	N uint64 `json:"n"`
}

// WireItem is one shopping-list entry on the wire.
type WireItem struct {
	Name     string `json:"name"`
	PN       PN     `json:"pn"`
	Acquired bool   `json:"acquired"`
}

// ListState is the schema a shopping list travels in: the three lifecycle
// maps keyed by item id.
type ListState struct {
	AddMap      map[string]WireItem `json:"add_map"`
	RemovedMap  map[string]WireItem `json:"removed_map"`
	AcquiredMap map[string]WireItem `json:"acquired_map"`
}

// FromList captures a shopping list's state for the wire.
func FromList(l *crdt.ShoppingList) *ListState {
	if l == nil {
		return nil
	}
	return &ListState{
		AddMap:      captureItems(l.Map.AddMap),
		RemovedMap:  captureItems(l.Map.RemovedMap),
		AcquiredMap: captureItems(l.Map.AcquiredMap),
	}
}

// ToList rebuilds a shopping list from wire state. Each map gets its own
// counter instances, the same way a snapshot load rebuilds them.
func (s *ListState) ToList() *crdt.ShoppingList {
	l := crdt.NewShoppingList()
	if s == nil {
		return l
	}
	restoreItems(l.Map.AddMap, s.AddMap)
	restoreItems(l.Map.RemovedMap, s.RemovedMap)
	restoreItems(l.Map.AcquiredMap, s.AcquiredMap)
	return l
}

func captureItems(src map[string]*crdt.Item) map[string]WireItem {
	out := make(map[string]WireItem, len(src))
	for id, it := range src {
		out[id] = WireItem{
			Name:     it.Name,
			PN:       PN{P: it.Counter.P, N: it.Counter.N},
			Acquired: it.Acquired,
		}
	}
	return out
}

func restoreItems(dst map[string]*crdt.Item, src map[string]WireItem) {
	for id, it := range src {
		dst[id] = &crdt.Item{
			Name:     it.Name,
			Counter:  &crdt.PNCounter{P: it.PN.P, N: it.PN.N},
			Acquired: it.Acquired,
		}
	}
}
