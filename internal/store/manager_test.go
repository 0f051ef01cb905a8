package store

import (
	"testing"

	"github.com/edirooss/listmux/internal/crdt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerCreateAndDelete(t *testing.T) {
	m := NewManager(nil)

	listID := m.CreateList()
	require.True(t, m.Has(listID))
	assert.Contains(t, m.ActiveLists(), listID)

	require.True(t, m.DeleteList(listID))
	assert.False(t, m.Has(listID))
	assert.True(t, m.IsRemoved(listID))
	assert.Contains(t, m.RemovedLists(), listID)

	assert.False(t, m.DeleteList("ghost"))
}

func TestManagerDeletedIDStaysTombstoned(t *testing.T) {
	m := NewManager(nil)
	m.CreateListWithID("list-1")
	m.DeleteList("list-1")

	// A write path checks IsRemoved before merging; once deleted, the id
	// reports as tombstoned.
	assert.True(t, m.IsRemoved("list-1"))
}

func TestManagerMergeCreatesWhenAbsent(t *testing.T) {
	m := NewManager(nil)

	remote := crdt.NewShoppingList()
	remote.AddItem("milk", 2)

	merged := m.Merge("list-1", remote)
	require.True(t, m.Has("list-1"))
	assert.Len(t, merged.Items(), 1)
}

func TestManagerAddItemGuards(t *testing.T) {
	m := NewManager(nil)
	m.CreateListWithID("list-1")

	id, err := m.AddItem("list-1", "milk", 2)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	_, err = m.AddItem("list-1", "milk", 1)
	assert.ErrorIs(t, err, ErrDuplicateItem)

	_, err = m.AddItem("ghost", "milk", 1)
	assert.ErrorIs(t, err, ErrListNotFound)
}

func TestManagerItemOps(t *testing.T) {
	m := NewManager(nil)
	m.CreateListWithID("list-1")
	id, err := m.AddItem("list-1", "eggs", 6)
	require.NoError(t, err)

	require.NoError(t, m.IncrementItem("list-1", id, 6))
	l, _ := m.List("list-1")
	assert.EqualValues(t, 12, l.Items()[id].Quantity)

	require.NoError(t, m.DecrementItem("list-1", id, 3))
	assert.EqualValues(t, 9, l.Items()[id].Quantity)

	assert.ErrorIs(t, m.IncrementItem("list-1", "ghost", 1), ErrItemNotFound)

	require.NoError(t, m.AcquireItem("list-1", id))
	assert.ErrorIs(t, m.IncrementItem("list-1", id, 1), ErrItemNotFound,
		"acquired items leave the visible set")
}

func TestManagerItemIDByName(t *testing.T) {
	m := NewManager(nil)
	m.CreateListWithID("list-1")
	id, err := m.AddItem("list-1", "bread", 1)
	require.NoError(t, err)

	got, ok := m.ItemIDByName("list-1", "bread")
	require.True(t, ok)
	assert.Equal(t, id, got)

	_, ok = m.ItemIDByName("list-1", "jam")
	assert.False(t, ok)
}
