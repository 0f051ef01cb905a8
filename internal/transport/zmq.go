package transport

import (
	"context"

	"github.com/go-zeromq/zmq4"
)

// ZMQFabric creates ZeroMQ-backed sockets bound to a context; cancelling the
// context tears down every socket created from it.
type ZMQFabric struct {
	ctx context.Context
}

// NewZMQFabric returns a fabric rooted at ctx.
func NewZMQFabric(ctx context.Context) *ZMQFabric {
	return &ZMQFabric{ctx: ctx}
}

func (f *ZMQFabric) NewReq() Socket {
	return &zmqSocket{sock: zmq4.NewReq(f.ctx)}
}

func (f *ZMQFabric) NewRep() Socket {
	return &zmqSocket{sock: zmq4.NewRep(f.ctx)}
}

func (f *ZMQFabric) NewRouter(identity string) Socket {
	return &zmqSocket{sock: zmq4.NewRouter(f.ctx, zmq4.WithID(zmq4.SocketIdentity(identity)))}
}

func (f *ZMQFabric) NewDealer(identity string) Socket {
	return &zmqSocket{sock: zmq4.NewDealer(f.ctx, zmq4.WithID(zmq4.SocketIdentity(identity)))}
}

type zmqSocket struct {
	sock zmq4.Socket
}

func (s *zmqSocket) Listen(endpoint string) error {
	return s.sock.Listen(endpoint)
}

func (s *zmqSocket) Dial(endpoint string) error {
	return s.sock.Dial(endpoint)
}

func (s *zmqSocket) Send(m Message) error {
	return s.sock.Send(zmq4.NewMsgFrom(m.Frames...))
}

func (s *zmqSocket) Recv() (Message, error) {
	msg, err := s.sock.Recv()
	if err != nil {
		return Message{}, err
	}
	return Message{Frames: msg.Frames}, nil
}

func (s *zmqSocket) Close() error {
	return s.sock.Close()
}
