package crdt

import "github.com/google/uuid"

// ShoppingList is a thin facade over the OR-Map that mints item identities.
// Name case folding is the caller's responsibility.
type ShoppingList struct {
	Map *ORMap `json:"or_map"`
}

// NewShoppingList returns an empty list.
func NewShoppingList() *ShoppingList {
	return &ShoppingList{Map: NewORMap()}
}

// AddItem inserts an item under a fresh id and bumps its quantity.
// Returns the minted item id.
func (l *ShoppingList) AddItem(name string, quantity uint64) string {
	itemID := uuid.NewString()
	l.Map.Add(itemID, name)
	l.Map.Increment(itemID, quantity)
	return itemID
}

// RemoveItem tombstones an item.
func (l *ShoppingList) RemoveItem(itemID string) {
	l.Map.Remove(itemID)
}

// MarkItemAcquired flags an item as purchased.
func (l *ShoppingList) MarkItemAcquired(itemID string) {
	l.Map.MarkAcquired(itemID)
}

// IncrementQuantity grows an item's quantity by v.
func (l *ShoppingList) IncrementQuantity(itemID string, v uint64) {
	l.Map.Increment(itemID, v)
}

// DecrementQuantity shrinks an item's quantity by v.
func (l *ShoppingList) DecrementQuantity(itemID string, v uint64) {
	l.Map.Decrement(itemID, v)
}

// Items returns the not-yet-acquired, not-removed entries.
func (l *ShoppingList) Items() map[string]ItemView {
	return l.Map.Items()
}

// AcquiredItems returns purchased entries that are not tombstoned.
func (l *ShoppingList) AcquiredItems() map[string]ItemView {
	return l.Map.AcquiredItems()
}

// AllItems returns every record the list carries.
func (l *ShoppingList) AllItems() map[string]ItemView {
	return l.Map.AllItems()
}

// Merge folds another replica's state into this one.
func (l *ShoppingList) Merge(other *ShoppingList) {
	l.Map.Merge(other.Map)
}
