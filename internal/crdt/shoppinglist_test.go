package crdt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShoppingListAddItem(t *testing.T) {
	l := NewShoppingList()
	id := l.AddItem("milk", 2)

	require.NotEmpty(t, id)
	require.Contains(t, l.Items(), id)
	assert.EqualValues(t, 2, l.Items()[id].Quantity)
}

func TestShoppingListConcurrentAddSameName(t *testing.T) {
	a := NewShoppingList()
	idA := a.AddItem("milk", 1)

	b := NewShoppingList()
	idB := b.AddItem("milk", 1)

	a.Merge(b)
	b.Merge(a)

	for _, l := range []*ShoppingList{a, b} {
		items := l.Items()
		require.Len(t, items, 1)
		for id, it := range items {
			assert.NotEqual(t, idA, id)
			assert.NotEqual(t, idB, id)
			assert.Equal(t, "milk", it.Name)
			assert.EqualValues(t, 1, it.Quantity)
		}
	}
}

func TestShoppingListLifecycle(t *testing.T) {
	l := NewShoppingList()
	id := l.AddItem("eggs", 6)

	l.IncrementQuantity(id, 6)
	assert.EqualValues(t, 12, l.Items()[id].Quantity)

	l.DecrementQuantity(id, 3)
	assert.EqualValues(t, 9, l.Items()[id].Quantity)

	l.MarkItemAcquired(id)
	assert.NotContains(t, l.Items(), id)
	assert.Contains(t, l.AcquiredItems(), id)
	assert.Contains(t, l.AllItems(), id)

	l.RemoveItem(id)
	assert.Contains(t, l.AcquiredItems(), id, "acquired item cannot be removed")
}
