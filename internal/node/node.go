// Package node implements a replica node: request handling, local CRDT
// state, gossip and replication fan-out.
package node

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/edirooss/listmux/internal/crdt"
	"github.com/edirooss/listmux/internal/gossip"
	"github.com/edirooss/listmux/internal/replication"
	"github.com/edirooss/listmux/internal/ring"
	"github.com/edirooss/listmux/internal/store"
	"github.com/edirooss/listmux/internal/transport"
	"github.com/edirooss/listmux/internal/wire"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Config wires a node's collaborators.
type Config struct {
	Log            *zap.Logger
	NodeID         string
	Port           int
	Ring           *ring.Ring
	Replication    *replication.Manager
	Fabric         transport.Fabric
	Peers          []gossip.Peer
	GossipInterval time.Duration
	BackendAddr    string
	Repo           *store.ListRepository // optional durable store
}

// Node is one replica. It serves direct requests (gossip, replication) on
// its REP endpoint and broker-routed client requests on a DEALER identified
// by its node id. Request handling is serialized so merges appear atomic.
type Node struct {
	log    *zap.Logger
	nodeID string
	port   int

	ring    *ring.Ring
	repl    *replication.Manager
	gossip  *gossip.Protocol
	manager *store.Manager
	repo    *store.ListRepository
	fabric  transport.Fabric

	backendAddr string

	mu sync.Mutex // serializes request handling
}

// New builds a node from cfg. Durable state, when a repo is configured, is
// restored before the node starts serving.
func New(cfg Config) (*Node, error) {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named(cfg.NodeID)

	manager := store.NewManager(log)
	if cfg.Repo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := cfg.Repo.LoadAll(ctx, manager); err != nil {
			return nil, fmt.Errorf("restore lists: %w", err)
		}
	}

	return &Node{
		log:         log,
		nodeID:      cfg.NodeID,
		port:        cfg.Port,
		ring:        cfg.Ring,
		repl:        cfg.Replication,
		gossip:      gossip.New(log, cfg.NodeID, cfg.Ring, cfg.Fabric, cfg.Peers, cfg.GossipInterval),
		manager:     manager,
		repo:        cfg.Repo,
		fabric:      cfg.Fabric,
		backendAddr: cfg.BackendAddr,
	}, nil
}

// Manager exposes the node's local list state.
func (n *Node) Manager() *store.Manager { return n.manager }

// Gossip exposes the node's gossip protocol.
func (n *Node) Gossip() *gossip.Protocol { return n.gossip }

// Run serves until ctx is cancelled.
func (n *Node) Run(ctx context.Context) error {
	rep := n.fabric.NewRep()
	defer rep.Close()
	if err := rep.Listen(fmt.Sprintf("tcp://*:%d", n.port)); err != nil {
		return fmt.Errorf("listen :%d: %w", n.port, err)
	}
	n.log.Info("listening for requests", zap.Int("port", n.port))

	dealer := n.fabric.NewDealer(n.nodeID)
	defer dealer.Close()
	if err := dealer.Dial(n.backendAddr); err != nil {
		return fmt.Errorf("dial broker backend %s: %w", n.backendAddr, err)
	}
	n.log.Info("connected to broker backend", zap.String("addr", n.backendAddr))

	go n.gossip.Run(ctx)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return n.serveRep(ctx, rep) })
	g.Go(func() error { return n.serveDealer(ctx, dealer) })
	return g.Wait()
}

// serveRep answers direct REQ/REP traffic: gossip exchanges and replication
// shipments from peer nodes.
func (n *Node) serveRep(ctx context.Context, rep transport.Socket) error {
	for {
		msg, err := rep.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("rep recv: %w", err)
		}
		if len(msg.Frames) == 0 {
			continue
		}
		resp := n.dispatch(ctx, msg.Frames[len(msg.Frames)-1])
		if err := rep.Send(transport.NewMessage(resp)); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("rep send: %w", err)
		}
	}
}

// serveDealer answers broker-routed client requests. Frames from the broker
// are [client_id, payload]; replies mirror that shape. After a client write
// or delete the node fans replication out in the background.
func (n *Node) serveDealer(ctx context.Context, dealer transport.Socket) error {
	for {
		msg, err := dealer.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("dealer recv: %w", err)
		}
		if len(msg.Frames) < 2 {
			n.log.Warn("malformed broker frame", zap.Int("frames", len(msg.Frames)))
			continue
		}
		clientID := msg.Frames[len(msg.Frames)-2]
		payload := msg.Frames[len(msg.Frames)-1]

		req, decodeErr := wire.Decode(payload)
		resp := n.dispatch(ctx, payload)
		if err := dealer.Send(transport.NewMessage(clientID, resp)); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("dealer send: %w", err)
		}

		// The client already got its answer; replication is best-effort.
		if decodeErr == nil && (req.Operation == wire.OpWrite || req.Operation == wire.OpDelete) {
			n.replicateToSuccessors(ctx, req.ListID)
		}
	}
}

// dispatch decodes one request, runs the matching handler under the node
// lock and encodes the response.
func (n *Node) dispatch(ctx context.Context, payload []byte) []byte {
	req, err := wire.Decode(payload)
	if err != nil {
		n.log.Warn("undecodable request", zap.Error(err))
		return n.encode(wire.Errorf(wire.ErrKindClient, "undecodable request"))
	}

	n.mu.Lock()
	resp := n.handle(ctx, req)
	n.mu.Unlock()

	return n.encode(resp)
}

func (n *Node) handle(ctx context.Context, req *wire.Message) *wire.Message {
	if req.Operation != wire.OpGossip {
		n.log.Debug("handling request",
			zap.String("operation", req.Operation),
			zap.String("list_id", req.ListID),
		)
	}

	switch req.Operation {
	case wire.OpCreate:
		return n.handleCreate(ctx, req)
	case wire.OpRead:
		return n.handleRead(req)
	case wire.OpWrite:
		return n.handleWrite(ctx, req)
	case wire.OpDelete:
		return n.handleDelete(ctx, req)
	case wire.OpReplicate:
		return n.handleReplicate(ctx, req)
	case wire.OpGossip:
		return n.handleGossip(req)
	case wire.OpPing:
		return &wire.Message{Status: wire.StatusSuccess, Detail: "pong"}
	default:
		return wire.Errorf(wire.ErrKindClient, fmt.Sprintf("unknown operation %q", req.Operation))
	}
}

func (n *Node) handleCreate(ctx context.Context, req *wire.Message) *wire.Message {
	if req.ListID == "" {
		return wire.Errorf(wire.ErrKindClient, "missing list_id")
	}
	if n.manager.Has(req.ListID) {
		return wire.Errorf(wire.ErrKindClient, fmt.Sprintf("shopping list %s already exists", req.ListID))
	}
	n.manager.CreateListWithID(req.ListID)
	n.persist(ctx, req.ListID)
	n.log.Info("created shopping list", zap.String("list_id", req.ListID))
	return &wire.Message{ListID: req.ListID}
}

func (n *Node) handleRead(req *wire.Message) *wire.Message {
	if req.ListID == "" {
		return wire.Errorf(wire.ErrKindClient, "missing list_id")
	}
	l, ok := n.manager.List(req.ListID)
	if !ok {
		return wire.Errorf(wire.ErrKindNotFound, fmt.Sprintf("shopping list %s does not exist", req.ListID))
	}
	return &wire.Message{ListID: req.ListID, ShoppingList: wire.FromList(l)}
}

func (n *Node) handleWrite(ctx context.Context, req *wire.Message) *wire.Message {
	if req.ListID == "" {
		return wire.Errorf(wire.ErrKindClient, "missing list_id")
	}
	if req.ShoppingList == nil {
		return wire.Errorf(wire.ErrKindClient, "missing shopping_list")
	}
	if n.manager.IsRemoved(req.ListID) {
		return wire.Errorf(wire.ErrKindConflict, fmt.Sprintf("shopping list %s has been deleted", req.ListID))
	}

	merged := n.manager.Merge(req.ListID, req.ShoppingList.ToList())
	n.persist(ctx, req.ListID)
	n.log.Debug("write merged", zap.String("list_id", req.ListID))
	return &wire.Message{ListID: req.ListID, ShoppingList: wire.FromList(merged)}
}

func (n *Node) handleDelete(ctx context.Context, req *wire.Message) *wire.Message {
	if req.ListID == "" {
		return wire.Errorf(wire.ErrKindClient, "missing list_id")
	}
	if !n.manager.DeleteList(req.ListID) {
		return wire.Errorf(wire.ErrKindNotFound, fmt.Sprintf("shopping list %s does not exist", req.ListID))
	}
	n.persist(ctx, req.ListID)
	n.log.Info("deleted shopping list", zap.String("list_id", req.ListID))
	return &wire.Message{ListID: req.ListID}
}

// handleReplicate merges or deletes without further fan-out. A nil payload
// means the list was deleted on the primary.
func (n *Node) handleReplicate(ctx context.Context, req *wire.Message) *wire.Message {
	if req.ListID == "" {
		return &wire.Message{Status: wire.StatusError, Detail: "missing list_id"}
	}

	if req.ShoppingList == nil {
		n.manager.DeleteList(req.ListID)
	} else {
		if !n.manager.Has(req.ListID) {
			n.manager.CreateListWithID(req.ListID)
		}
		n.manager.Merge(req.ListID, req.ShoppingList.ToList())
	}
	n.persist(ctx, req.ListID)
	n.log.Debug("replication applied", zap.String("list_id", req.ListID))
	return &wire.Message{Status: wire.StatusSuccess}
}

func (n *Node) handleGossip(req *wire.Message) *wire.Message {
	if req.NodeStates != nil {
		n.gossip.MergeStates(req.NodeStates)
	}
	if req.Ring != nil {
		n.ring.MergeRemote(req.Ring)
	}
	return &wire.Message{
		Status:     wire.StatusSuccess,
		NodeID:     n.nodeID,
		NodeStates: n.gossip.States(),
		Ring:       n.ring.Snapshot(),
	}
}

// replicateToSuccessors ships the list's current state (nil after a delete)
// to each successor replica, one background task per replica. Failures are
// logged; the next write re-propagates state because merges are idempotent.
func (n *Node) replicateToSuccessors(ctx context.Context, listID string) {
	replicas, err := n.repl.Replicas(listID)
	if err != nil {
		n.log.Warn("replica selection failed", zap.String("list_id", listID), zap.Error(err))
		return
	}

	var l *crdt.ShoppingList
	if current, ok := n.manager.List(listID); ok {
		l = current
	}

	for _, replica := range replicas {
		if replica == n.nodeID {
			continue
		}
		go func(replica string) {
			if err := n.repl.ReplicateToNode(ctx, replica, listID, l); err != nil {
				n.log.Warn("replication failed",
					zap.String("replica", replica),
					zap.String("list_id", listID),
					zap.Error(err),
				)
			}
		}(replica)
	}
}

// persist mirrors the list's state into the durable store when configured.
func (n *Node) persist(ctx context.Context, listID string) {
	if n.repo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	l, ok := n.manager.List(listID)
	if !ok {
		if err := n.repo.Delete(ctx, listID); err != nil && !errors.Is(err, store.ErrListNotFound) {
			n.log.Warn("durable delete failed", zap.String("list_id", listID), zap.Error(err))
		}
		return
	}
	if err := n.repo.Save(ctx, listID, l); err != nil {
		n.log.Warn("durable save failed", zap.String("list_id", listID), zap.Error(err))
	}
}

func (n *Node) encode(m *wire.Message) []byte {
	payload, err := wire.Encode(m)
	if err != nil {
		// Encoding a response should never fail; treat as unreachable.
		n.log.Error("response encode failed", zap.Error(err))
		return nil
	}
	return payload
}
