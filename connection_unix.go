//go:build linux || darwin || netbsd || freebsd || openbsd || dragonfly

package evtcp

import (
	"bytes"
	"context"
	"net"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/dreamans/evtcp/evlog"
	"github.com/dreamans/evtcp/poller"
	"github.com/dreamans/evtcp/util"
)

var connUniqueIncr uint64

type conn struct {
	id         uint64
	fd         int
	evLoop     *EventLoop
	pool       *Pool
	notifier   notifier
	framer     Framer
	writeBuf   *bytes.Buffer
	readBuf    *bytes.Buffer
	packet     int
	chunk      int
	status     Status
	closed     util.AtomicBool
	reading    bool
	writing    bool
	unpacking  bool
	attr       Attribute
	localAddr  *net.TCPAddr
	remoteAddr *net.TCPAddr
	ctx        context.Context
	log        evlog.Logger
}

// newConnection takes ownership of fd, registers it with the loop with both
// watchers stopped, and adds it to the pool. On error fd is left open for
// the caller to release.
func newConnection(fd int, evLoop *EventLoop, pool *Pool, laddr, raddr *net.TCPAddr, framer Framer, handler Handler, chunk int) (*conn, error) {
	c := &conn{
		id:         atomic.AddUint64(&connUniqueIncr, 1),
		fd:         fd,
		evLoop:     evLoop,
		pool:       pool,
		notifier:   newNotifier(handler),
		framer:     framer,
		writeBuf:   connBufferPool.Get().(*bytes.Buffer),
		readBuf:    connBufferPool.Get().(*bytes.Buffer),
		chunk:      chunk,
		status:     StatusClosed,
		localAddr:  laddr,
		remoteAddr: raddr,
	}
	if c.chunk <= 0 {
		c.chunk = DefaultWriteChunkSize
	}
	c.attr.LocalIP, c.attr.LocalPort = util.SplitAddr(laddr)
	c.attr.RemoteIP, c.attr.RemotePort = util.SplitAddr(raddr)
	c.ctx = context.WithValue(context.Background(), connKey{}, Connection(c))
	c.log = evlog.WithFields(evlog.Fields{
		"conn_id": c.id,
		"local":   c.attr.Local(),
		"remote":  c.attr.Remote(),
	})

	c.writeBuf.Reset()
	c.readBuf.Reset()

	if err := evLoop.AddFdHandler(fd, poller.EventNone, c); err != nil {
		connBufferPool.Put(c.readBuf)
		connBufferPool.Put(c.writeBuf)
		return nil, err
	}
	if pool != nil {
		pool.Register(c)
	}

	c.log.Debugf("[NewConnection]: loc %s <--> remote %s", c.attr.Local(), c.attr.Remote())
	return c, nil
}

func (c *conn) ID() uint64 {
	return c.id
}

func (c *conn) Attribute() Attribute {
	return c.attr
}

func (c *conn) RemoteAddr() net.Addr {
	return c.remoteAddr
}

func (c *conn) LocalAddr() net.Addr {
	return c.localAddr
}

func (c *conn) Status() Status {
	return c.status
}

func (c *conn) Context() context.Context {
	return c.ctx
}

func (c *conn) SetContext(ctx context.Context) {
	c.ctx = ctx
}

func (c *conn) Receive() []byte {
	if c.closed.IsSet() {
		return nil
	}
	if c.packet > 0 {
		return c.Peek(c.packet)
	}
	return append([]byte(nil), c.readBuf.Bytes()...)
}

func (c *conn) Peek(n int) []byte {
	if c.closed.IsSet() || n <= 0 {
		return nil
	}
	b := c.readBuf.Bytes()
	if n > len(b) {
		n = len(b)
	}
	return append([]byte(nil), b[:n]...)
}

func (c *conn) Buffered() int {
	if c.closed.IsSet() {
		return 0
	}
	return c.readBuf.Len()
}

func (c *conn) Send(buffer []byte) error {
	if c.closed.IsSet() {
		return ErrConnectionClosed
	}
	if len(buffer) == 0 {
		return nil
	}
	c.writeBuf.Write(buffer)
	c.writing = true
	return c.watch()
}

func (c *conn) Pause() error {
	if c.closed.IsSet() {
		return ErrConnectionClosed
	}
	c.reading = false
	c.writing = false
	return c.watch()
}

func (c *conn) Resume() error {
	if c.closed.IsSet() {
		return ErrConnectionClosed
	}
	if c.status == StatusClosed {
		// set first so a Resume from inside OnConnect does not connect again
		c.status = StatusConnected
		c.notifier.notify(EventConnect, c, nil)
		// the connect handler may have closed us
		if c.closed.IsSet() {
			return nil
		}
	}

	c.reading = true
	if c.writeBuf.Len() > 0 {
		c.writing = true
	}
	if err := c.watch(); err != nil {
		return err
	}
	// frames that arrived before a Pause are still waiting in the buffer
	if c.framer != nil && !c.unpacking && c.readBuf.Len() > 0 {
		c.unpack()
	}
	return nil
}

func (c *conn) Close() error {
	if c.closed.IsSet() {
		return ErrConnectionClosed
	}
	c.handleClose()
	return nil
}

// watch pushes the reader/writer watcher state to the poller.
func (c *conn) watch() error {
	interest := poller.EventNone
	if c.reading {
		interest |= poller.EventRead
	}
	if c.writing {
		interest |= poller.EventWrite
	}
	if err := c.evLoop.ModifyFd(c.fd, interest); err != nil {
		c.log.Errorf("[evLoop.ModifyFd]: %s", err.Error())
		return err
	}
	return nil
}

func (c *conn) EventHandler(fd int, events poller.Event) {
	if events&poller.EventErr != 0 {
		c.handleClose()
		return
	}
	if events&poller.EventRead != 0 && c.reading {
		c.handleRead()
	}
	if events&poller.EventWrite != 0 && c.writing && !c.closed.IsSet() {
		c.handleWrite()
	}
}

func (c *conn) handleClose() {
	if !c.closed.TrySet() {
		return
	}
	c.reading = false
	c.writing = false

	if err := c.evLoop.DelFdHandler(c.fd); err != nil {
		c.log.Errorf("[evLoop.DelFdHandler]: %s", err.Error())
	}

	// buffered output gets exactly one attempt
	if c.writeBuf.Len() > 0 {
		if _, err := unix.Write(c.fd, c.writeBuf.Bytes()); err != nil && !util.WouldBlock(err) {
			c.log.Debugf("[unix.Write]: %s", err.Error())
		}
	}
	if err := unix.Close(c.fd); err != nil {
		c.log.Errorf("[unix.Close]: %s", err.Error())
	}
	c.status = StatusClosed

	c.notifier.notify(EventClose, c, nil)

	if c.pool != nil {
		c.pool.Unregister(c.id)
	}

	connBufferPool.Put(c.readBuf)
	connBufferPool.Put(c.writeBuf)
	c.readBuf = nil
	c.writeBuf = nil

	c.log.Debugf("[HandleClose]: loc %s <-x-> remote %s", c.attr.Local(), c.attr.Remote())
}

func (c *conn) handleRead() {
	buf := c.evLoop.PacketBuf()
	n, err := unix.Read(c.fd, buf)
	if n <= 0 || err != nil {
		if err != nil && util.WouldBlock(err) {
			return
		}
		if err != nil {
			c.log.Debugf("[unix.Read]: %s", err.Error())
		}
		c.handleClose()
		return
	}

	c.log.Debugf("[HandleRead]: loc %s <- remote %s, len {%d}", c.attr.Local(), c.attr.Remote(), n)

	c.readBuf.Write(buf[:n])
	c.unpack()
}

// unpack delivers every complete message in the input buffer.
func (c *conn) unpack() {
	if c.framer == nil {
		c.notifier.notify(EventMessage, c, nil)
		if !c.closed.IsSet() {
			c.readBuf.Reset()
		}
		return
	}

	c.unpacking = true
	defer func() { c.unpacking = false }()

	for !c.closed.IsSet() && c.reading && c.readBuf.Len() > 0 {
		if c.packet == 0 {
			packet := c.notifier.check(c.framer, c)
			if c.closed.IsSet() || packet <= 0 {
				return
			}
			c.packet = packet
		}
		if c.readBuf.Len() < c.packet {
			return
		}

		c.notifier.notify(EventMessage, c, nil)
		if c.closed.IsSet() {
			return
		}

		// one byte past the frame is the delimiter
		c.readBuf.Next(c.packet + 1)
		c.packet = 0
	}
}

func (c *conn) handleWrite() {
	if c.writeBuf.Len() == 0 {
		c.writing = false
		_ = c.watch()
		return
	}

	data := c.writeBuf.Bytes()
	if len(data) > c.chunk {
		data = data[:c.chunk]
	}
	n, err := unix.Write(c.fd, data)
	if err != nil {
		if util.WouldBlock(err) {
			return
		}
		c.log.Errorf("[unix.Write]: %s", err.Error())
		c.notifier.notify(EventError, c, err)
		c.handleClose()
		return
	}

	c.log.Debugf("[HandleWrite]: loc %s -> remote %s, len {%d}", c.attr.Local(), c.attr.Remote(), n)

	c.writeBuf.Next(n)
	if c.writeBuf.Len() == 0 {
		c.writeBuf.Reset()
		c.writing = false
		_ = c.watch()
	}
}
