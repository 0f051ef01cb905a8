// Package broker routes client requests to the primary node of each list.
package broker

import (
	"context"

	"github.com/edirooss/listmux/internal/ring"
	"github.com/edirooss/listmux/internal/transport"
	"github.com/edirooss/listmux/internal/wire"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Endpoint defaults and the backend identity literal.
const (
	DefaultFrontendAddr = "tcp://*:5558"
	DefaultBackendAddr  = "tcp://*:5559"
	BackendIdentity     = "proxy_identity"
)

var pong = []byte("pong")

// Broker is a stateless router-router fabric. The frontend faces clients;
// the backend faces nodes, each connected under its node id. The broker
// inspects a request only far enough to read its operation and list id,
// answers pings directly, and forwards everything else to the primary node
// per the ring lookup. It never synthesizes errors; node responses pass
// through untouched.
type Broker struct {
	log    *zap.Logger
	ring   *ring.Ring
	fabric transport.Fabric

	frontendAddr string
	backendAddr  string
}

// New returns a broker over the shared ring.
func New(log *zap.Logger, rg *ring.Ring, fabric transport.Fabric, frontendAddr, backendAddr string) *Broker {
	if log == nil {
		log = zap.NewNop()
	}
	if frontendAddr == "" {
		frontendAddr = DefaultFrontendAddr
	}
	if backendAddr == "" {
		backendAddr = DefaultBackendAddr
	}
	return &Broker{
		log:          log.Named("broker"),
		ring:         rg,
		fabric:       fabric,
		frontendAddr: frontendAddr,
		backendAddr:  backendAddr,
	}
}

// Run forwards traffic until ctx is cancelled.
func (b *Broker) Run(ctx context.Context) error {
	frontend := b.fabric.NewRouter("")
	defer frontend.Close()
	if err := frontend.Listen(b.frontendAddr); err != nil {
		return err
	}

	backend := b.fabric.NewRouter(BackendIdentity)
	defer backend.Close()
	if err := backend.Listen(b.backendAddr); err != nil {
		return err
	}

	b.log.Info("broker started",
		zap.String("frontend", b.frontendAddr),
		zap.String("backend", b.backendAddr),
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return b.serveFrontend(ctx, frontend, backend) })
	g.Go(func() error { return b.serveBackend(ctx, frontend, backend) })
	return g.Wait()
}

// serveFrontend routes client requests. Frames arrive as
// [client_id, delimiter, payload]; forwards leave as
// [node_id, client_id, payload] on the backend.
func (b *Broker) serveFrontend(ctx context.Context, frontend, backend transport.Socket) error {
	for {
		msg, err := frontend.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if len(msg.Frames) < 2 {
			b.log.Warn("malformed client frame", zap.Int("frames", len(msg.Frames)))
			continue
		}
		clientID := msg.Frames[0]
		payload := msg.Frames[len(msg.Frames)-1]

		req, err := wire.Decode(payload)
		if err != nil {
			b.log.Warn("undecodable client request", zap.Error(err))
			continue
		}

		if req.Operation == wire.OpPing {
			if err := frontend.Send(transport.NewMessage(clientID, nil, pong)); err != nil {
				b.log.Warn("pong send failed", zap.Error(err))
			}
			continue
		}

		if req.ListID == "" {
			b.log.Warn("unroutable request: missing list_id",
				zap.String("operation", req.Operation))
			continue
		}
		primary, err := b.ring.GetNode(req.ListID)
		if err != nil {
			b.log.Warn("ring lookup failed", zap.String("list_id", req.ListID), zap.Error(err))
			continue
		}

		b.log.Debug("forwarding request",
			zap.String("operation", req.Operation),
			zap.String("list_id", req.ListID),
			zap.String("node", primary),
		)
		if err := backend.Send(transport.NewMessage([]byte(primary), clientID, payload)); err != nil {
			b.log.Warn("backend send failed", zap.String("node", primary), zap.Error(err))
		}
	}
}

// serveBackend relays node responses back to clients. Frames arrive as
// [node_id, client_id, payload]; replies leave as
// [client_id, delimiter, payload] on the frontend.
func (b *Broker) serveBackend(ctx context.Context, frontend, backend transport.Socket) error {
	for {
		msg, err := backend.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if len(msg.Frames) < 3 {
			b.log.Warn("malformed node frame", zap.Int("frames", len(msg.Frames)))
			continue
		}
		clientID := msg.Frames[len(msg.Frames)-2]
		payload := msg.Frames[len(msg.Frames)-1]

		if err := frontend.Send(transport.NewMessage(clientID, nil, payload)); err != nil {
			b.log.Warn("frontend send failed", zap.Error(err))
		}
	}
}
