package ring

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fiveNodeRing() *Ring {
	r := New(3, 32)
	for i := 1; i <= 5; i++ {
		r.AddNode(fmt.Sprintf("node%d", i))
	}
	return r
}

func TestRingEmptyLookup(t *testing.T) {
	r := New(0, 0)
	_, err := r.GetNode("list-1")
	assert.ErrorIs(t, err, ErrEmptyRing)
}

func TestRingLookupReturnsKnownNode(t *testing.T) {
	r := fiveNodeRing()
	for i := 0; i < 100; i++ {
		node, err := r.GetNode(fmt.Sprintf("list-%d", i))
		require.NoError(t, err)
		assert.True(t, r.HasNode(node), "lookup returned unregistered node %s", node)
	}
}

func TestRingLookupDeterministic(t *testing.T) {
	r := fiveNodeRing()
	first, err := r.GetNode("list-42")
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := r.GetNode("list-42")
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestRingRemoveAndReaddRestoresMapping(t *testing.T) {
	r := fiveNodeRing()

	original := make(map[string]string)
	for i := 0; i < 50; i++ {
		key := fmt.Sprintf("list-%d", i)
		node, err := r.GetNode(key)
		require.NoError(t, err)
		original[key] = node
	}

	r.RemoveNode("node3")
	for key, was := range original {
		node, err := r.GetNode(key)
		require.NoError(t, err)
		if was == "node3" {
			assert.NotEqual(t, "node3", node, "key %s still maps to removed node", key)
		}
	}

	r.AddNode("node3")
	for key, was := range original {
		node, err := r.GetNode(key)
		require.NoError(t, err)
		assert.Equal(t, was, node, "mapping for %s not restored", key)
	}
}

func TestRingNodesInsertionOrder(t *testing.T) {
	r := fiveNodeRing()
	assert.Equal(t, []string{"node1", "node2", "node3", "node4", "node5"}, r.Nodes())

	r.RemoveNode("node2")
	assert.Equal(t, []string{"node1", "node3", "node4", "node5"}, r.Nodes())

	r.AddNode("node2")
	assert.Equal(t, []string{"node1", "node3", "node4", "node5", "node2"}, r.Nodes())
}

func TestRingNodeAddr(t *testing.T) {
	assert.Equal(t, "tcp://127.0.0.1:5003", NodeAddr("node3"))
	addr, ok := fiveNodeRing().Addr("node1")
	require.True(t, ok)
	assert.Equal(t, "tcp://127.0.0.1:5001", addr)
}

func TestRingSnapshotRoundTrip(t *testing.T) {
	r := fiveNodeRing()
	snap := r.Snapshot()
	assert.Len(t, snap, 5*3)

	other := New(3, 32)
	other.MergeRemote(snap)

	// The merged ring routes identically and learned every address.
	for i := 0; i < 20; i++ {
		key := fmt.Sprintf("list-%d", i)
		want, err := r.GetNode(key)
		require.NoError(t, err)
		got, err := other.GetNode(key)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	for _, id := range r.Nodes() {
		assert.True(t, other.HasNode(id))
	}
}

func TestRingMergeRemoteSkipsKnownAndBadKeys(t *testing.T) {
	r := fiveNodeRing()
	before := r.Snapshot()

	r.MergeRemote(map[string]string{"not-a-number": "node9"})
	assert.Equal(t, before, r.Snapshot())
	assert.False(t, r.HasNode("node9"))
}
