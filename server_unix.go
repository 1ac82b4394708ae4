//go:build linux || darwin || netbsd || freebsd || openbsd || dragonfly

package evtcp

import (
	"net"
	"os"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/dreamans/evtcp/evlog"
	"github.com/dreamans/evtcp/util"
)

type server struct {
	mu         sync.Mutex
	opts       Options
	ln         *Listener
	evLoop     *EventLoop
	pool       *Pool
	signals    []os.Signal
	serving    bool
	inShutdown util.AtomicBool
}

func NewServer(opt *Options) Server {
	if opt == nil {
		opt = NewOptions()
	}
	opts := *opt
	opts.normalize()
	return &server{
		opts:    opts,
		pool:    NewPool(),
		signals: opts.ShutdownSignals,
	}
}

func (srv *server) Configure(ip string, port int, transport string, socket SocketOptions) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if srv.ln != nil {
		return
	}
	srv.opts.IP = ip
	srv.opts.Port = port
	srv.opts.Transport = transport
	srv.opts.Socket = socket
}

func (srv *server) SetSocketOptions(opts SocketOptions) {
	srv.mu.Lock()
	srv.opts.Socket = srv.opts.Socket.Merge(opts)
	srv.mu.Unlock()
}

func (srv *server) Pool() *Pool {
	return srv.pool
}

func (srv *server) Addr() *net.TCPAddr {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if srv.ln == nil {
		return nil
	}
	return srv.ln.Addr()
}

func (srv *server) Bind() error {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if srv.inShutdown.IsSet() {
		return ErrServerClosed
	}
	if srv.ln != nil {
		return nil
	}

	ln, err := NewListener(srv.opts.Transport, srv.opts.IP, srv.opts.Port, srv.opts.Socket)
	if err != nil {
		evlog.Errorf("[NewListener]: %s", err.Error())
		return err
	}
	evLoop, err := newEventLoop(srv.opts.ReadBufferSize)
	if err != nil {
		_ = ln.Close()
		return err
	}
	if err := ln.Attach(evLoop, srv.handleAccept); err != nil {
		_ = ln.Close()
		// Wait releases the poller fds once it sees the stop
		_ = evLoop.Stop()
		go evLoop.Wait()
		return err
	}
	srv.evLoop = evLoop
	srv.ln = ln
	return nil
}

func (srv *server) Listen() error {
	if err := srv.Bind(); err != nil {
		return err
	}
	srv.mu.Lock()
	if srv.inShutdown.IsSet() || srv.serving {
		srv.mu.Unlock()
		return ErrServerClosed
	}
	srv.serving = true
	srv.mu.Unlock()

	if err := srv.ln.Start(); err != nil {
		return err
	}
	stop := srv.installSignal()
	defer stop()

	evlog.Infof("[Listen]: %s", util.JoinAddr(srv.opts.Transport, srv.opts.IP, srv.ln.Addr().Port))
	srv.evLoop.Wait()
	evlog.Infof("[Listen]: event loop stopped")

	return nil
}

func (srv *server) Pause() error {
	if srv.inShutdown.IsSet() {
		return ErrServerClosed
	}
	return srv.onLoop(func() {
		if err := srv.ln.Stop(); err != nil {
			evlog.Errorf("[ln.Stop]: %s", err.Error())
		}
	})
}

func (srv *server) Resume() error {
	if srv.inShutdown.IsSet() {
		return ErrServerClosed
	}
	return srv.onLoop(func() {
		if err := srv.ln.Start(); err != nil {
			evlog.Errorf("[ln.Start]: %s", err.Error())
		}
	})
}

func (srv *server) onLoop(fn func()) error {
	srv.mu.Lock()
	evLoop := srv.evLoop
	srv.mu.Unlock()
	if evLoop == nil {
		return ErrNotListening
	}
	return evLoop.Trigger(fn)
}

// handleAccept turns an accepted fd into an active Connection.
func (srv *server) handleAccept(ncfd int, sa unix.Sockaddr) {
	if srv.inShutdown.IsSet() {
		_ = unix.Close(ncfd)
		return
	}
	if err := applyConnOptions(ncfd, srv.opts.Socket); err != nil {
		evlog.Warningf("[applyConnOptions]: %s", err.Error())
	}

	laddr := srv.ln.Addr()
	if lsa, err := unix.Getsockname(ncfd); err == nil {
		if addr := util.SockaddrToAddr(lsa); addr != nil {
			laddr = addr
		}
	}

	c, err := newConnection(ncfd, srv.evLoop, srv.pool, laddr, util.SockaddrToAddr(sa), srv.opts.Framer, srv.opts.Handler, srv.opts.WriteChunkSize)
	if err != nil {
		_ = unix.Close(ncfd)
		evlog.Errorf("[newConnection]: %s", err.Error())
		return
	}
	if err := c.Resume(); err != nil && err != ErrConnectionClosed {
		evlog.Errorf("[conn.Resume]: %s", err.Error())
		c.handleClose()
	}
}
