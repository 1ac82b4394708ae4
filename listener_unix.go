//go:build linux || darwin || netbsd || freebsd || openbsd || dragonfly

package evtcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/dreamans/evtcp/evlog"
	"github.com/dreamans/evtcp/poller"
	"github.com/dreamans/evtcp/util"
)

type AcceptHandler func(ncfd int, sa unix.Sockaddr)

// Listener owns the listening socket and its accept watcher.
type Listener struct {
	ln       *net.TCPListener
	file     *os.File
	fd       int
	watching bool
	handler  AcceptHandler
	evLoop   *EventLoop
}

// NewListener binds and listens on transport://ip:port.
func NewListener(transport, ip string, port int, opts SocketOptions) (*Listener, error) {
	if err := checkTransport(transport); err != nil {
		return nil, err
	}
	address := net.JoinHostPort(ip, strconv.Itoa(port))

	lc := net.ListenConfig{Control: listenControl(opts)}
	ln, err := lc.Listen(context.Background(), transport, address)
	if err != nil {
		return nil, fmt.Errorf("evtcp: bind %s: %w", util.JoinAddr(transport, ip, port), err)
	}
	tcpln, ok := ln.(*net.TCPListener)
	if !ok {
		_ = ln.Close()
		return nil, errors.New("could not get file descriptor")
	}
	l := &Listener{ln: tcpln, fd: -1}

	if err := l.nonblockFd(); err != nil {
		_ = ln.Close()
		return nil, err
	}

	return l, nil
}

func (l *Listener) Fd() int {
	return l.fd
}

func (l *Listener) Addr() *net.TCPAddr {
	addr, _ := l.ln.Addr().(*net.TCPAddr)
	return addr
}

// Attach registers the accept watcher (stopped) on evLoop.
func (l *Listener) Attach(evLoop *EventLoop, handler AcceptHandler) error {
	if err := evLoop.AddFdHandler(l.fd, poller.EventNone, l); err != nil {
		return err
	}
	l.evLoop = evLoop
	l.handler = handler
	return nil
}

func (l *Listener) Start() error {
	if l.evLoop == nil {
		return ErrNotListening
	}
	l.watching = true
	return l.evLoop.ModifyFd(l.fd, poller.EventRead)
}

func (l *Listener) Stop() error {
	if l.evLoop == nil {
		return ErrNotListening
	}
	l.watching = false
	return l.evLoop.ModifyFd(l.fd, poller.EventNone)
}

func (l *Listener) EventHandler(fd int, events poller.Event) {
	if events&poller.EventRead == 0 || !l.watching {
		return
	}
	ncfd, sa, err := unix.Accept(fd)
	if err != nil {
		if !util.WouldBlock(err) && err != unix.ECONNABORTED {
			evlog.Errorf("[unix.Accept]: %s", err.Error())
		}
		return
	}
	unix.CloseOnExec(ncfd)
	if err := unix.SetNonblock(ncfd, true); err != nil {
		_ = unix.Close(ncfd)
		evlog.Errorf("[unix.SetNonblock]: %s", err.Error())
		return
	}

	if l.handler != nil {
		l.handler(ncfd, sa)
	}
}

// Close releases the listening socket. Must run on the loop goroutine.
func (l *Listener) Close() error {
	if l.evLoop != nil {
		_ = l.evLoop.DelFdHandler(l.fd)
		l.evLoop = nil
	}
	l.watching = false
	err := l.file.Close()
	if lerr := l.ln.Close(); err == nil {
		err = lerr
	}
	return err
}

// nonblockFd dups the listener fd. The *os.File is kept so the duplicate
// is not closed by its finalizer.
func (l *Listener) nonblockFd() error {
	file, err := l.ln.File()
	if err != nil {
		return err
	}
	fd := int(file.Fd())
	if err = unix.SetNonblock(fd, true); err != nil {
		_ = file.Close()
		return err
	}
	l.file = file
	l.fd = fd

	return nil
}
