// Package evtcp is a single-reactor, event-driven TCP server core.
//
// A Server accepts connections on one event loop goroutine; each
// Connection accumulates input, asks its Framer where the next message
// ends, and reports connect/message/close/error to a Handler. All
// handlers, framers and Connection methods run on the loop goroutine and
// must not block.
package evtcp

import (
	"errors"
	"net"
	"os"
	"syscall"
)

type Server interface {
	// Configure replaces the bind address, transport and socket options.
	// It has no effect once the server is bound.
	Configure(ip string, port int, transport string, socket SocketOptions)
	// SetSocketOptions merges opts into the current socket options.
	SetSocketOptions(opts SocketOptions)
	// Bind creates the listening socket. Listen calls it when needed.
	Bind() error
	// Listen binds, arms the accept watcher, installs the shutdown signal
	// handler and runs the event loop until shutdown.
	Listen() error
	// Pause stops admitting new connections; existing ones keep running.
	Pause() error
	// Resume re-arms the accept watcher after Pause.
	Resume() error
	// Shutdown drains every pooled connection and stops the loop.
	Shutdown() error
	// Addr is the bound address, nil before Bind.
	Addr() *net.TCPAddr
	Pool() *Pool
}

var (
	ErrServerClosed         = errors.New("evtcp: server closed")
	ErrNotListening         = errors.New("evtcp: server is not listening")
	ErrUnsupportedTransport = errors.New("evtcp: unsupported transport")
)

const (
	DefaultReadBufferSize = 0xFFFF
	DefaultWriteChunkSize = 0x2000
)

// SocketOptions are the platform socket options applied to the listening
// socket (ReusePort, ReuseAddr) and to every accepted socket (NoDelay,
// KeepAlive). A nil pointer means "leave as is".
type SocketOptions struct {
	ReusePort *bool
	ReuseAddr *bool
	NoDelay   *bool
	KeepAlive *bool
}

// Bool is a helper for filling SocketOptions.
func Bool(v bool) *bool {
	return &v
}

// DefaultSocketOptions enables SO_REUSEPORT.
func DefaultSocketOptions() SocketOptions {
	return SocketOptions{ReusePort: Bool(true)}
}

// Merge overlays the options set in o onto s.
func (s SocketOptions) Merge(o SocketOptions) SocketOptions {
	if o.ReusePort != nil {
		s.ReusePort = o.ReusePort
	}
	if o.ReuseAddr != nil {
		s.ReuseAddr = o.ReuseAddr
	}
	if o.NoDelay != nil {
		s.NoDelay = o.NoDelay
	}
	if o.KeepAlive != nil {
		s.KeepAlive = o.KeepAlive
	}
	return s
}

type Options struct {
	IP              string
	Port            int
	Transport       string
	Socket          SocketOptions
	Framer          Framer
	Handler         Handler
	ShutdownSignals []os.Signal
	ReadBufferSize  int
	WriteChunkSize  int
}

func NewOptions() *Options {
	return &Options{
		IP:              "0.0.0.0",
		Transport:       "tcp",
		Socket:          DefaultSocketOptions(),
		ShutdownSignals: []os.Signal{syscall.SIGQUIT},
		ReadBufferSize:  DefaultReadBufferSize,
		WriteChunkSize:  DefaultWriteChunkSize,
	}
}

func (opts *Options) SetAddr(ip string, port int) *Options {
	opts.IP = ip
	opts.Port = port
	return opts
}

func (opts *Options) SetTransport(transport string) *Options {
	opts.Transport = transport
	return opts
}

func (opts *Options) SetSocket(socket SocketOptions) *Options {
	opts.Socket = socket
	return opts
}

func (opts *Options) SetFramer(framer Framer) *Options {
	opts.Framer = framer
	return opts
}

func (opts *Options) SetHandler(handler Handler) *Options {
	opts.Handler = handler
	return opts
}

func (opts *Options) SetShutdownSignals(sigs ...os.Signal) *Options {
	opts.ShutdownSignals = sigs
	return opts
}

func (opts *Options) SetReadBufferSize(size int) *Options {
	opts.ReadBufferSize = size
	return opts
}

func (opts *Options) SetWriteChunkSize(size int) *Options {
	opts.WriteChunkSize = size
	return opts
}

func (opts *Options) normalize() {
	if opts.Transport == "" {
		opts.Transport = "tcp"
	}
	if opts.ReadBufferSize <= 0 {
		opts.ReadBufferSize = DefaultReadBufferSize
	}
	if opts.WriteChunkSize <= 0 {
		opts.WriteChunkSize = DefaultWriteChunkSize
	}
}

func checkTransport(transport string) error {
	switch transport {
	case "tcp", "tcp4", "tcp6":
		return nil
	}
	return ErrUnsupportedTransport
}
