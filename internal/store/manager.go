package store

import (
	"errors"
	"fmt"
	"sync"

	"github.com/edirooss/listmux/internal/crdt"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrListNotFound means the list id is unknown locally.
	ErrListNotFound = errors.New("shopping list not found")
	// ErrListDeleted means the list id is tombstoned.
	ErrListDeleted = errors.New("shopping list has been deleted")
	// ErrItemNotFound means the item id is not in the list's visible set.
	ErrItemNotFound = errors.New("item not found")
	// ErrDuplicateItem means the list already carries an item with that name.
	ErrDuplicateItem = errors.New("item already exists in the shopping list")
)

// Manager owns a set of shopping lists keyed by list id. Which ids are still
// active is itself tracked with an OR-Set, so a deleted id stays tombstoned
// through merges and a write against it is rejected.
//
// All operations serialize through one mutex; a caller never observes a list
// mid-merge.
type Manager struct {
	log *zap.Logger

	mu      sync.RWMutex
	lists   map[string]*crdt.ShoppingList
	listIDs *crdt.ORSet
}

// NewManager returns an empty manager.
func NewManager(log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		log:     log.Named("lists"),
		lists:   make(map[string]*crdt.ShoppingList),
		listIDs: crdt.NewORSet(),
	}
}

// CreateList creates an empty list under a fresh id and returns the id.
func (m *Manager) CreateList() string {
	listID := uuid.NewString()
	m.CreateListWithID(listID)
	return listID
}

// CreateListWithID creates an empty list under the given id.
func (m *Manager) CreateListWithID(listID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists[listID] = crdt.NewShoppingList()
	m.listIDs.Add(listID)
}

// DeleteList drops a list and tombstones its id. Returns false if the id is
// unknown locally.
func (m *Manager) DeleteList(listID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.lists[listID]; !ok {
		return false
	}
	delete(m.lists, listID)
	m.listIDs.Remove(listID)
	return true
}

// List returns the list for the given id.
func (m *Manager) List(listID string) (*crdt.ShoppingList, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.lists[listID]
	return l, ok
}

// Has reports whether the list id exists locally.
func (m *Manager) Has(listID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.lists[listID]
	return ok
}

// IsRemoved reports whether the list id is tombstoned.
func (m *Manager) IsRemoved(listID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listIDs.Removed(listID)
}

// Merge folds other into the list under listID, creating the list first if
// absent, and returns the post-merge state.
func (m *Manager) Merge(listID string, other *crdt.ShoppingList) *crdt.ShoppingList {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.lists[listID]
	if !ok {
		l = crdt.NewShoppingList()
		m.lists[listID] = l
		m.listIDs.Add(listID)
	}
	l.Merge(other)
	return l
}

// ActiveLists returns ids of lists not deleted.
func (m *Manager) ActiveLists() map[string]struct{} {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listIDs.Items()
}

// RemovedLists returns tombstoned list ids.
func (m *Manager) RemovedLists() map[string]struct{} {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listIDs.Tombstones()
}

// AddItem inserts an item by name. Names are expected case-folded by the
// caller; a visible item with the same name rejects the add.
func (m *Manager) AddItem(listID, itemName string, quantity uint64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.lists[listID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrListNotFound, listID)
	}
	for _, it := range l.Items() {
		if it.Name == itemName {
			return "", fmt.Errorf("%w: %s", ErrDuplicateItem, itemName)
		}
	}
	return l.AddItem(itemName, quantity), nil
}

// RemoveItem tombstones an item in the list.
func (m *Manager) RemoveItem(listID, itemID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.lists[listID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrListNotFound, listID)
	}
	l.RemoveItem(itemID)
	return nil
}

// AcquireItem flags an item as purchased.
func (m *Manager) AcquireItem(listID, itemID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.lists[listID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrListNotFound, listID)
	}
	l.MarkItemAcquired(itemID)
	return nil
}

// IncrementItem grows a visible item's quantity.
func (m *Manager) IncrementItem(listID, itemID string, v uint64) error {
	return m.adjustItem(listID, itemID, v, true)
}

// DecrementItem shrinks a visible item's quantity.
func (m *Manager) DecrementItem(listID, itemID string, v uint64) error {
	return m.adjustItem(listID, itemID, v, false)
}

func (m *Manager) adjustItem(listID, itemID string, v uint64, up bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.lists[listID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrListNotFound, listID)
	}
	if _, ok := l.Items()[itemID]; !ok {
		return fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
	}
	if up {
		l.IncrementQuantity(itemID, v)
	} else {
		l.DecrementQuantity(itemID, v)
	}
	return nil
}

// ItemIDByName resolves a visible item's id from its name.
func (m *Manager) ItemIDByName(listID, itemName string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.lists[listID]
	if !ok {
		return "", false
	}
	for id, it := range l.Items() {
		if it.Name == itemName {
			return id, true
		}
	}
	return "", false
}

// Replace installs a list under the given id without merging. Used when
// restoring from snapshots or a durable store.
func (m *Manager) Replace(listID string, l *crdt.ShoppingList) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists[listID] = l
	m.listIDs.Add(listID)
}

// Each calls fn for every list under the read lock.
func (m *Manager) Each(fn func(listID string, l *crdt.ShoppingList)) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for id, l := range m.lists {
		fn(id, l)
	}
}
