package evtcp

import (
	"bytes"
	"context"
	"errors"
	"net"
	"strconv"
	"sync"
)

var ErrConnectionClosed = errors.New("connection closed")

type Status uint8

const (
	StatusClosed Status = iota
	StatusConnected
)

func (s Status) String() string {
	switch s {
	case StatusConnected:
		return "connected"
	default:
		return "closed"
	}
}

// Attribute is the address pair captured when a connection is accepted.
type Attribute struct {
	LocalIP    string
	LocalPort  int
	RemoteIP   string
	RemotePort int
}

func (a Attribute) Local() string {
	return net.JoinHostPort(a.LocalIP, strconv.Itoa(a.LocalPort))
}

func (a Attribute) Remote() string {
	return net.JoinHostPort(a.RemoteIP, strconv.Itoa(a.RemotePort))
}

type Connection interface {
	ID() uint64

	Attribute() Attribute

	LocalAddr() net.Addr

	RemoteAddr() net.Addr

	Status() Status

	Context() context.Context

	SetContext(context.Context)

	// Receive returns a copy of the current message: the framed prefix of
	// the input buffer when a frame length is known, otherwise all of it.
	Receive() []byte

	// Peek returns a copy of up to n bytes from the front of the input buffer.
	Peek(n int) []byte

	// Buffered is the number of input bytes not yet consumed.
	Buffered() int

	// Send queues b and arms write readiness.
	Send(b []byte) error

	Close() error

	// Pause stops read and write readiness without closing the socket.
	Pause() error

	// Resume restarts readiness. The first Resume fires OnConnect.
	Resume() error
}

type connKey struct{}

// ConnectionFromContext returns the connection stored by the server in
// every connection's initial context.
func ConnectionFromContext(ctx context.Context) (Connection, bool) {
	c, ok := ctx.Value(connKey{}).(Connection)
	return c, ok
}

var connBufferPool = NewBufferPool()

func NewBufferPool() *sync.Pool {
	return &sync.Pool{
		New: func() interface{} {
			return &bytes.Buffer{}
		},
	}
}
