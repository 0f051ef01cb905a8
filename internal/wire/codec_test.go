package wire

import (
	"testing"

	"github.com/edirooss/listmux/internal/crdt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodecRoundTrip(t *testing.T) {
	in := &Message{
		Operation:  OpGossip,
		NodeID:     "node1",
		NodeStates: map[string]string{"node2": "alive", "node3": "dead"},
		Ring:       map[string]string{"12345": "node1", "67890": "node2"},
	}

	payload, err := Encode(in)
	require.NoError(t, err)

	out, err := Decode(payload)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestDecodeGarbage(t *testing.T) {
	_, err := Decode([]byte("not zlib at all"))
	assert.Error(t, err)
}

func TestListStateCarriesLifecycle(t *testing.T) {
	l := crdt.NewShoppingList()
	milk := l.AddItem("milk", 3)
	bread := l.AddItem("bread", 1)
	sugar := l.AddItem("sugar", 2)
	l.MarkItemAcquired(sugar)
	l.RemoveItem(bread)

	payload, err := Encode(&Message{
		Operation:    OpWrite,
		ListID:       "list-1",
		ShoppingList: FromList(l),
	})
	require.NoError(t, err)

	out, err := Decode(payload)
	require.NoError(t, err)
	require.NotNil(t, out.ShoppingList)

	restored := out.ShoppingList.ToList()

	items := restored.Items()
	require.Len(t, items, 1)
	assert.EqualValues(t, 3, items[milk].Quantity)

	// Tombstoned entries travel with zeroed counters.
	require.Contains(t, restored.Map.RemovedMap, bread)
	assert.EqualValues(t, 0, restored.Map.RemovedMap[bread].Counter.Value())

	require.Contains(t, restored.AcquiredItems(), sugar)
	assert.True(t, restored.AcquiredItems()[sugar].Acquired)
	assert.EqualValues(t, 2, restored.AcquiredItems()[sugar].Quantity)
}

func TestFromListNil(t *testing.T) {
	assert.Nil(t, FromList(nil))

	var s *ListState
	l := s.ToList()
	require.NotNil(t, l)
	assert.Empty(t, l.Items())
}
