// Package gossip propagates node liveness and ring membership through
// periodic pairwise state exchange.
package gossip

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/edirooss/listmux/internal/ring"
	"github.com/edirooss/listmux/internal/transport"
	"github.com/edirooss/listmux/internal/wire"
	"go.uber.org/zap"
)

// Node liveness states.
const (
	StateAlive = "alive"
	StateDead  = "dead"
)

// DefaultInterval is the gossip period.
const DefaultInterval = 10 * time.Second

var errGossipEmptyReply = errors.New("empty gossip reply")

// Peer is a known cluster member.
type Peer struct {
	NodeID  string
	Address string
}

// Protocol runs one gossip task for a node. Every interval it exchanges
// {node_id, node_states, ring} with each known peer and reconciles the
// responses. A peer that cannot be contacted is marked dead for the round and
// dropped from the ring; a later successful exchange reinstates it. There is
// no backoff; recovery is re-detection on a subsequent round.
type Protocol struct {
	log    *zap.Logger
	nodeID string
	ring   *ring.Ring
	fabric transport.Fabric

	interval time.Duration
	peers    []Peer

	mu     sync.Mutex
	states map[string]string
}

// New returns a gossip protocol for nodeID over the given peers.
func New(log *zap.Logger, nodeID string, rg *ring.Ring, fabric transport.Fabric, peers []Peer, interval time.Duration) *Protocol {
	if log == nil {
		log = zap.NewNop()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Protocol{
		log:      log.Named("gossip"),
		nodeID:   nodeID,
		ring:     rg,
		fabric:   fabric,
		interval: interval,
		peers:    peers,
		states:   make(map[string]string),
	}
}

// Run gossips until ctx is cancelled.
func (p *Protocol) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Round(ctx)
		}
	}
}

// Round performs one gossip exchange with every known peer.
func (p *Protocol) Round(ctx context.Context) {
	for _, peer := range p.peers {
		if peer.NodeID == p.nodeID {
			continue
		}
		if err := p.exchange(ctx, peer); err != nil {
			p.log.Warn("gossip exchange failed",
				zap.String("peer", peer.NodeID),
				zap.Error(err),
			)
			p.MarkDead(peer.NodeID)
		}
	}
}

func (p *Protocol) exchange(ctx context.Context, peer Peer) error {
	sock := p.fabric.NewReq()
	defer sock.Close()

	if err := sock.Dial(peer.Address); err != nil {
		return err
	}

	payload, err := wire.Encode(&wire.Message{
		Operation:  wire.OpGossip,
		NodeID:     p.nodeID,
		NodeStates: p.States(),
		Ring:       p.ring.Snapshot(),
	})
	if err != nil {
		return err
	}
	if err := sock.Send(transport.NewMessage(payload)); err != nil {
		return err
	}

	reply, err := sock.Recv()
	if err != nil {
		return err
	}
	if len(reply.Frames) == 0 {
		return errGossipEmptyReply
	}
	resp, err := wire.Decode(reply.Frames[len(reply.Frames)-1])
	if err != nil {
		return err
	}
	if resp.Status != wire.StatusSuccess {
		p.log.Warn("gossip rejected", zap.String("peer", peer.NodeID))
		p.MarkDead(peer.NodeID)
		return nil
	}

	p.MarkAlive(peer.NodeID)
	if resp.NodeStates != nil {
		p.MergeStates(resp.NodeStates)
	}
	if resp.Ring != nil {
		p.ring.MergeRemote(resp.Ring)
	}
	return nil
}

// MergeStates reconciles remote liveness with the local view. An
// alive-to-dead transition drops the node from the ring; dead-to-alive
// reinstates it.
func (p *Protocol) MergeStates(remote map[string]string) {
	for nodeID, state := range remote {
		if nodeID == p.nodeID {
			continue
		}
		switch state {
		case StateDead:
			p.MarkDead(nodeID)
		case StateAlive:
			p.MarkAlive(nodeID)
		}
	}
}

// MarkDead records a node as dead and removes it from the ring unless it was
// already recorded dead (a first observation as dead also removes it).
func (p *Protocol) MarkDead(nodeID string) {
	p.mu.Lock()
	prev, known := p.states[nodeID]
	p.states[nodeID] = StateDead
	p.mu.Unlock()

	if !known || prev != StateDead {
		p.log.Info("node marked dead", zap.String("node", nodeID))
		p.ring.RemoveNode(nodeID)
	}
}

// MarkAlive records a node as alive and reinstates it in the ring on the
// dead-to-alive transition.
func (p *Protocol) MarkAlive(nodeID string) {
	p.mu.Lock()
	prev, known := p.states[nodeID]
	p.states[nodeID] = StateAlive
	p.mu.Unlock()

	if known && prev == StateDead {
		p.log.Info("node marked alive", zap.String("node", nodeID))
		p.ring.AddNode(nodeID)
	}
}

// States returns a copy of the liveness map.
func (p *Protocol) States() map[string]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]string, len(p.states))
	for id, st := range p.states {
		out[id] = st
	}
	return out
}
