// Package client is the synchronous request/response stub used to talk to
// the broker, with a local list cache for offline operation.
package client

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/edirooss/listmux/internal/crdt"
	"github.com/edirooss/listmux/internal/store"
	"github.com/edirooss/listmux/internal/transport"
	"github.com/edirooss/listmux/internal/wire"
	"go.uber.org/zap"
)

// DefaultFrontendAddr is the broker frontend a client dials.
const DefaultFrontendAddr = "tcp://localhost:5558"

// PingTimeout bounds the availability check.
const PingTimeout = time.Second

var (
	// ErrUnavailable means the broker did not answer the availability ping.
	ErrUnavailable = errors.New("server unavailable")
	// ErrNotFound mirrors a not_found response from the primary.
	ErrNotFound = errors.New("shopping list not found")
	// ErrConflict mirrors a conflict response: the list id is tombstoned.
	ErrConflict = errors.New("shopping list has been deleted")
	// ErrRejected mirrors a client_error response.
	ErrRejected = errors.New("request rejected")
)

// Client sends compressed requests through the broker and keeps a local
// ShoppingListManager as an offline cache: when the broker is unreachable
// the caller keeps editing locally and the next successful write heals the
// divergence through the CRDT merge.
type Client struct {
	log    *zap.Logger
	fabric transport.Fabric

	frontendAddr string

	mu        sync.Mutex
	req       transport.Socket
	available bool

	manager *store.Manager
}

// New dials the broker frontend and returns a client stub.
func New(log *zap.Logger, fabric transport.Fabric, frontendAddr string) (*Client, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if frontendAddr == "" {
		frontendAddr = DefaultFrontendAddr
	}

	req := fabric.NewReq()
	if err := req.Dial(frontendAddr); err != nil {
		return nil, fmt.Errorf("dial broker %s: %w", frontendAddr, err)
	}

	return &Client{
		log:          log.Named("client"),
		fabric:       fabric,
		frontendAddr: frontendAddr,
		req:          req,
		manager:      store.NewManager(log),
	}, nil
}

// Manager exposes the local offline cache.
func (c *Client) Manager() *store.Manager { return c.manager }

// Close releases the broker connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.req.Close()
}

// CheckAvailability pings the broker on a throwaway socket with a one-second
// receive timeout.
func (c *Client) CheckAvailability() bool {
	sock := c.fabric.NewReq()
	defer sock.Close()

	if err := sock.Dial(c.frontendAddr); err != nil {
		return false
	}
	payload, err := wire.Encode(&wire.Message{Operation: wire.OpPing})
	if err != nil {
		return false
	}
	if err := sock.Send(transport.NewMessage(payload)); err != nil {
		return false
	}
	if _, err := transport.RecvTimeout(sock, PingTimeout); err != nil {
		return false
	}
	return true
}

// send ships one request and waits for the routed response.
func (c *Client) send(req *wire.Message) (*wire.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.available {
		c.available = c.CheckAvailability()
	}
	if !c.available {
		return nil, ErrUnavailable
	}

	payload, err := wire.Encode(req)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	if err := c.req.Send(transport.NewMessage(payload)); err != nil {
		c.available = false
		return nil, fmt.Errorf("send: %w", err)
	}
	reply, err := c.req.Recv()
	if err != nil {
		c.available = false
		return nil, fmt.Errorf("recv: %w", err)
	}
	if len(reply.Frames) == 0 {
		return nil, fmt.Errorf("recv: empty reply")
	}
	resp, err := wire.Decode(reply.Frames[len(reply.Frames)-1])
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := respError(resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// respError maps a node error response onto the client's sentinels.
func respError(resp *wire.Message) error {
	if !resp.IsError() {
		return nil
	}
	switch resp.Error {
	case wire.ErrKindNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, resp.Detail)
	case wire.ErrKindConflict:
		return fmt.Errorf("%w: %s", ErrConflict, resp.Detail)
	default:
		return fmt.Errorf("%w: %s", ErrRejected, resp.Detail)
	}
}

// CreateList creates an empty list on the primary.
func (c *Client) CreateList(listID string) error {
	_, err := c.send(&wire.Message{Operation: wire.OpCreate, ListID: listID})
	if err != nil {
		return err
	}
	c.log.Info("shopping list created", zap.String("list_id", listID))
	return nil
}

// GetList fetches a list's state from its primary.
func (c *Client) GetList(listID string) (*crdt.ShoppingList, error) {
	resp, err := c.send(&wire.Message{Operation: wire.OpRead, ListID: listID})
	if err != nil {
		return nil, err
	}
	if resp.ShoppingList == nil {
		return nil, fmt.Errorf("%w: empty read response", ErrRejected)
	}
	return resp.ShoppingList.ToList(), nil
}

// WriteList merges a list into the primary and returns the post-merge state.
func (c *Client) WriteList(listID string, l *crdt.ShoppingList) (*crdt.ShoppingList, error) {
	resp, err := c.send(&wire.Message{
		Operation:    wire.OpWrite,
		ListID:       listID,
		ShoppingList: wire.FromList(l),
	})
	if err != nil {
		return nil, err
	}
	if resp.ShoppingList == nil {
		return nil, fmt.Errorf("%w: empty write response", ErrRejected)
	}
	return resp.ShoppingList.ToList(), nil
}

// DeleteList deletes a list on the primary.
func (c *Client) DeleteList(listID string) error {
	_, err := c.send(&wire.Message{Operation: wire.OpDelete, ListID: listID})
	if err != nil {
		return err
	}
	c.log.Info("shopping list deleted", zap.String("list_id", listID))
	return nil
}

// SyncList pushes the local copy of listID to the cluster and installs the
// merged result back into the cache. With the broker unreachable the local
// copy stands until the next successful write.
func (c *Client) SyncList(listID string) (*crdt.ShoppingList, error) {
	local, ok := c.manager.List(listID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrListNotFound, listID)
	}
	merged, err := c.WriteList(listID, local)
	if err != nil {
		return nil, err
	}
	c.manager.Replace(listID, merged)
	return merged, nil
}
