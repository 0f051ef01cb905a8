// Package transport abstracts the message fabric behind small socket
// interfaces so the rest of the system never touches the framing library
// directly. The concrete implementation rides on go-zeromq.
package transport

import (
	"errors"
	"time"
)

var (
	// ErrRecvTimeout means no message arrived within the deadline.
	ErrRecvTimeout = errors.New("receive timed out")
)

// Message is a multi-frame payload.
type Message struct {
	Frames [][]byte
}

// NewMessage builds a message from frames.
func NewMessage(frames ...[]byte) Message {
	return Message{Frames: frames}
}

// Socket is one endpoint on the fabric.
type Socket interface {
	Listen(endpoint string) error
	Dial(endpoint string) error
	Send(Message) error
	Recv() (Message, error)
	Close() error
}

// Fabric creates sockets. Request/reply sockets pair one-to-one; router and
// dealer sockets carry identity frames for multiplexed routing.
type Fabric interface {
	NewReq() Socket
	NewRep() Socket
	NewRouter(identity string) Socket
	NewDealer(identity string) Socket
}

// RecvTimeout receives with a deadline. On timeout the socket is closed to
// release the blocked receive; the caller must treat the socket as dead.
func RecvTimeout(s Socket, d time.Duration) (Message, error) {
	type result struct {
		msg Message
		err error
	}
	ch := make(chan result, 1)
	go func() {
		msg, err := s.Recv()
		ch <- result{msg, err}
	}()

	select {
	case res := <-ch:
		return res.msg, res.err
	case <-time.After(d):
		s.Close()
		return Message{}, ErrRecvTimeout
	}
}
