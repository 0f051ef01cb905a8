package node

import (
	"context"
	"testing"

	"github.com/edirooss/listmux/internal/crdt"
	"github.com/edirooss/listmux/internal/replication"
	"github.com/edirooss/listmux/internal/ring"
	"github.com/edirooss/listmux/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testNode(t *testing.T) *Node {
	t.Helper()

	rg := ring.New(3, 32)
	rg.AddNode("node1")
	rg.AddNode("node2")
	rg.AddNode("node3")

	n, err := New(Config{
		NodeID:      "node1",
		Port:        5001,
		Ring:        rg,
		Replication: replication.NewManager(nil, rg, nil, 3),
	})
	require.NoError(t, err)
	return n
}

func listWith(t *testing.T, name string, qty uint64) *wire.ListState {
	t.Helper()
	l := crdt.NewShoppingList()
	l.AddItem(name, qty)
	return wire.FromList(l)
}

func TestHandleCreate(t *testing.T) {
	n := testNode(t)
	ctx := context.Background()

	resp := n.handle(ctx, &wire.Message{Operation: wire.OpCreate, ListID: "list-1"})
	require.False(t, resp.IsError())
	assert.Equal(t, "list-1", resp.ListID)
	assert.True(t, n.Manager().Has("list-1"))

	dup := n.handle(ctx, &wire.Message{Operation: wire.OpCreate, ListID: "list-1"})
	assert.Equal(t, wire.ErrKindClient, dup.Error)

	missing := n.handle(ctx, &wire.Message{Operation: wire.OpCreate})
	assert.Equal(t, wire.ErrKindClient, missing.Error)
}

func TestHandleRead(t *testing.T) {
	n := testNode(t)
	ctx := context.Background()

	absent := n.handle(ctx, &wire.Message{Operation: wire.OpRead, ListID: "ghost"})
	assert.Equal(t, wire.ErrKindNotFound, absent.Error)

	n.handle(ctx, &wire.Message{Operation: wire.OpCreate, ListID: "list-1"})
	n.handle(ctx, &wire.Message{
		Operation:    wire.OpWrite,
		ListID:       "list-1",
		ShoppingList: listWith(t, "milk", 2),
	})

	resp := n.handle(ctx, &wire.Message{Operation: wire.OpRead, ListID: "list-1"})
	require.False(t, resp.IsError())
	require.NotNil(t, resp.ShoppingList)
	assert.Len(t, resp.ShoppingList.AddMap, 1)
}

func TestHandleWrite(t *testing.T) {
	n := testNode(t)
	ctx := context.Background()

	// A write creates the list when absent and returns the merged state.
	resp := n.handle(ctx, &wire.Message{
		Operation:    wire.OpWrite,
		ListID:       "list-1",
		ShoppingList: listWith(t, "milk", 2),
	})
	require.False(t, resp.IsError())
	require.NotNil(t, resp.ShoppingList)

	merged := resp.ShoppingList.ToList()
	require.Len(t, merged.Items(), 1)
	for _, it := range merged.Items() {
		assert.Equal(t, "milk", it.Name)
		assert.EqualValues(t, 2, it.Quantity)
	}

	noList := n.handle(ctx, &wire.Message{Operation: wire.OpWrite, ListID: "list-1"})
	assert.Equal(t, wire.ErrKindClient, noList.Error)
}

func TestHandleWriteToDeletedListConflicts(t *testing.T) {
	n := testNode(t)
	ctx := context.Background()

	n.handle(ctx, &wire.Message{Operation: wire.OpCreate, ListID: "list-1"})
	del := n.handle(ctx, &wire.Message{Operation: wire.OpDelete, ListID: "list-1"})
	require.False(t, del.IsError())

	resp := n.handle(ctx, &wire.Message{
		Operation:    wire.OpWrite,
		ListID:       "list-1",
		ShoppingList: listWith(t, "milk", 1),
	})
	assert.Equal(t, wire.ErrKindConflict, resp.Error)
}

func TestHandleDelete(t *testing.T) {
	n := testNode(t)
	ctx := context.Background()

	absent := n.handle(ctx, &wire.Message{Operation: wire.OpDelete, ListID: "ghost"})
	assert.Equal(t, wire.ErrKindNotFound, absent.Error)

	n.handle(ctx, &wire.Message{Operation: wire.OpCreate, ListID: "list-1"})
	resp := n.handle(ctx, &wire.Message{Operation: wire.OpDelete, ListID: "list-1"})
	require.False(t, resp.IsError())
	assert.Equal(t, "list-1", resp.ListID)
	assert.False(t, n.Manager().Has("list-1"))
}

func TestHandleReplicate(t *testing.T) {
	n := testNode(t)
	ctx := context.Background()

	// Replication creates the list when absent and merges without fan-out.
	resp := n.handle(ctx, &wire.Message{
		Operation:    wire.OpReplicate,
		ListID:       "list-1",
		ShoppingList: listWith(t, "milk", 2),
	})
	assert.Equal(t, wire.StatusSuccess, resp.Status)
	assert.True(t, n.Manager().Has("list-1"))

	// A nil payload replicates a deletion.
	resp = n.handle(ctx, &wire.Message{Operation: wire.OpReplicate, ListID: "list-1"})
	assert.Equal(t, wire.StatusSuccess, resp.Status)
	assert.False(t, n.Manager().Has("list-1"))

	noID := n.handle(ctx, &wire.Message{Operation: wire.OpReplicate})
	assert.Equal(t, wire.StatusError, noID.Status)
}

func TestHandleGossip(t *testing.T) {
	n := testNode(t)
	ctx := context.Background()

	remote := ring.New(3, 32)
	remote.AddNode("node4")

	resp := n.handle(ctx, &wire.Message{
		Operation:  wire.OpGossip,
		NodeID:     "node2",
		NodeStates: map[string]string{"node3": "dead"},
		Ring:       remote.Snapshot(),
	})

	assert.Equal(t, wire.StatusSuccess, resp.Status)
	assert.Equal(t, "node1", resp.NodeID)
	assert.Equal(t, "dead", resp.NodeStates["node3"])
	assert.NotEmpty(t, resp.Ring)
	assert.True(t, n.ring.HasNode("node4"))
	assert.False(t, n.ring.HasNode("node3"))
}

func TestHandlePingAndUnknown(t *testing.T) {
	n := testNode(t)
	ctx := context.Background()

	pong := n.handle(ctx, &wire.Message{Operation: wire.OpPing})
	assert.Equal(t, wire.StatusSuccess, pong.Status)

	resp := n.handle(ctx, &wire.Message{Operation: "mystery"})
	assert.Equal(t, wire.ErrKindClient, resp.Error)
}
