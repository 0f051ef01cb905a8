package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lists.json")

	m := NewManager(nil)
	m.CreateListWithID("list-1")
	milk, err := m.AddItem("list-1", "milk", 2)
	require.NoError(t, err)
	sugar, err := m.AddItem("list-1", "sugar", 1)
	require.NoError(t, err)
	require.NoError(t, m.AcquireItem("list-1", sugar))

	require.NoError(t, SaveSnapshot(path, m))

	restored := NewManager(nil)
	require.NoError(t, LoadSnapshot(path, restored))

	l, ok := restored.List("list-1")
	require.True(t, ok)
	require.Contains(t, l.Items(), milk)
	assert.EqualValues(t, 2, l.Items()[milk].Quantity)
	assert.Contains(t, l.AcquiredItems(), sugar)
}

func TestSnapshotMissingFile(t *testing.T) {
	m := NewManager(nil)
	require.NoError(t, LoadSnapshot(filepath.Join(t.TempDir(), "absent.json"), m))
	assert.Empty(t, m.ActiveLists())
}
