//go:build linux

package poller

import (
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/dreamans/evtcp/evlog"
	"github.com/dreamans/evtcp/util"
)

const (
	readEvent  = unix.EPOLLIN | unix.EPOLLPRI | unix.EPOLLRDHUP
	writeEvent = unix.EPOLLOUT
)

var (
	wakeWriteBytes = []byte{1, 0, 0, 0, 0, 0, 0, 0}
)

type Epoll struct {
	fd        int
	eventFd   int
	wakeBuf   []byte
	handler   EventHandler
	closed    util.AtomicBool
	closeDone chan struct{}

	// mu keeps wake from writing to eventFd after Wait released it
	mu       sync.RWMutex
	released bool
}

func New(handler EventHandler) (Poller, error) {
	return EpollCreate(handler)
}

func EpollCreate(handler EventHandler) (*Epoll, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}

	efd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	epoller := &Epoll{
		fd:        fd,
		handler:   handler,
		eventFd:   efd,
		wakeBuf:   make([]byte, 8),
		closeDone: make(chan struct{}),
	}

	if err := epoller.Add(epoller.eventFd, EventRead); err != nil {
		_ = unix.Close(fd)
		_ = unix.Close(efd)
		return nil, err
	}

	return epoller, nil
}

func (ep *Epoll) Trigger() error {
	if ep.closed.IsSet() {
		return ErrClosed
	}
	return ep.wake()
}

func (ep *Epoll) wake() error {
	ep.mu.RLock()
	defer ep.mu.RUnlock()
	if ep.released {
		return ErrClosed
	}
	_, err := unix.Write(ep.eventFd, wakeWriteBytes)
	if err == unix.EAGAIN {
		// counter saturated, a wakeup is already pending
		return nil
	}
	return err
}

func (ep *Epoll) Add(fd int, interest Event) error {
	return unix.EpollCtl(ep.fd, unix.EPOLL_CTL_ADD, fd, epollEvent(fd, interest))
}

func (ep *Epoll) Modify(fd int, interest Event) error {
	return unix.EpollCtl(ep.fd, unix.EPOLL_CTL_MOD, fd, epollEvent(fd, interest))
}

func (ep *Epoll) Del(fd int) error {
	return unix.EpollCtl(ep.fd, unix.EPOLL_CTL_DEL, fd, nil)
}

func (ep *Epoll) Close() error {
	if !ep.closed.TrySet() {
		return ErrClosed
	}
	return ep.wake()
}

func (ep *Epoll) Done() <-chan struct{} {
	return ep.closeDone
}

func (ep *Epoll) Wait() {
	defer func() {
		ep.mu.Lock()
		ep.released = true
		_ = unix.Close(ep.eventFd)
		_ = unix.Close(ep.fd)
		ep.mu.Unlock()
		close(ep.closeDone)
	}()

	events := make([]unix.EpollEvent, waitEventsBeginNum)
	trigger := false

	var tempDelay time.Duration
	for {
		n, err := unix.EpollWait(ep.fd, events, -1)

		if err != nil {
			if util.TemporaryErr(err) {
				continue
			}
			if tempDelay == 0 {
				tempDelay = 5 * time.Millisecond
			} else {
				tempDelay *= 2
			}
			if max := 500 * time.Millisecond; tempDelay >= max {
				tempDelay = max
			}

			evlog.Errorf("[unix.EpollWait]: %s", err.Error())
			time.Sleep(tempDelay)
			continue
		}
		tempDelay = 0

		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			if fd == ep.eventFd {
				_, _ = unix.Read(ep.eventFd, ep.wakeBuf)
				trigger = true
				continue
			}
			var event Event
			if events[i].Events&(unix.EPOLLIN|unix.EPOLLPRI|unix.EPOLLRDHUP) != 0 {
				event |= EventRead
			}
			if events[i].Events&unix.EPOLLOUT != 0 {
				event |= EventWrite
			}
			if events[i].Events&unix.EPOLLERR != 0 ||
				(events[i].Events&unix.EPOLLHUP != 0 && events[i].Events&unix.EPOLLIN == 0) {
				event |= EventErr
			}
			ep.handler(fd, event)
		}
		if trigger {
			ep.handler(-1, EventNone)
			trigger = false
		}
		if ep.closed.IsSet() {
			return
		}
		if n == len(events) {
			events = make([]unix.EpollEvent, int(float64(n)*1.5))
		}
	}
}

func epollEvent(fd int, interest Event) *unix.EpollEvent {
	var events uint32
	if interest&EventRead != 0 {
		events |= readEvent
	}
	if interest&EventWrite != 0 {
		events |= writeEvent
	}
	return &unix.EpollEvent{
		Events: events,
		Fd:     int32(fd),
	}
}
