// Package replication fans writes out to the successor replicas of a list's
// primary node.
package replication

import (
	"context"
	"errors"
	"fmt"

	"github.com/edirooss/listmux/internal/crdt"
	"github.com/edirooss/listmux/internal/ring"
	"github.com/edirooss/listmux/internal/transport"
	"github.com/edirooss/listmux/internal/wire"
	"go.uber.org/zap"
)

// DefaultFactor is the replica count per list, primary included.
const DefaultFactor = 3

var (
	// ErrUnknownNode means the target node has no registered address.
	ErrUnknownNode = errors.New("node address not found")
	// ErrRejected means the replica answered with a non-success status.
	ErrRejected = errors.New("replication rejected by node")
)

// Manager selects replicas for a list and ships state to them. Successors
// follow physical-node insertion order after the primary, wrapping, rather
// than ring-successor order.
type Manager struct {
	log    *zap.Logger
	ring   *ring.Ring
	fabric transport.Fabric
	factor int
}

// NewManager returns a replication manager over the shared ring.
func NewManager(log *zap.Logger, rg *ring.Ring, fabric transport.Fabric, factor int) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	if factor <= 0 {
		factor = DefaultFactor
	}
	return &Manager{
		log:    log.Named("replication"),
		ring:   rg,
		fabric: fabric,
		factor: factor,
	}
}

// Factor returns the replication factor.
func (m *Manager) Factor() int { return m.factor }

// Replicas returns the nodes responsible for listID: the primary first, then
// the next distinct nodes in insertion order. Fewer nodes than the factor
// yields every node once.
func (m *Manager) Replicas(listID string) ([]string, error) {
	primary, err := m.ring.GetNode(listID)
	if err != nil {
		return nil, err
	}

	nodes := m.ring.Nodes()
	start := -1
	for i, id := range nodes {
		if id == primary {
			start = i
			break
		}
	}
	if start < 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNode, primary)
	}

	count := min(m.factor, len(nodes))
	replicas := make([]string, 0, count)
	for i := 0; i < count; i++ {
		replicas = append(replicas, nodes[(start+i)%len(nodes)])
	}
	return replicas, nil
}

// ReplicateToNode ships a list's state to one node and waits for the ack.
// A nil list means the list was deleted. Success only on an explicit
// success ack.
func (m *Manager) ReplicateToNode(ctx context.Context, nodeID, listID string, l *crdt.ShoppingList) error {
	addr, ok := m.ring.Addr(nodeID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNode, nodeID)
	}

	sock := m.fabric.NewReq()
	defer sock.Close()

	if err := sock.Dial(addr); err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}

	payload, err := wire.Encode(&wire.Message{
		Operation:    wire.OpReplicate,
		ListID:       listID,
		ShoppingList: wire.FromList(l),
	})
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	if err := sock.Send(transport.NewMessage(payload)); err != nil {
		return fmt.Errorf("send: %w", err)
	}

	reply, err := sock.Recv()
	if err != nil {
		return fmt.Errorf("recv: %w", err)
	}
	if len(reply.Frames) == 0 {
		return fmt.Errorf("recv: empty reply")
	}
	ack, err := wire.Decode(reply.Frames[len(reply.Frames)-1])
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	if ack.Status != wire.StatusSuccess {
		return fmt.Errorf("%w: %s", ErrRejected, nodeID)
	}

	m.log.Debug("replicated",
		zap.String("node", nodeID),
		zap.String("list_id", listID),
	)
	return nil
}
