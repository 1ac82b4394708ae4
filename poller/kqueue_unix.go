//go:build darwin || netbsd || freebsd || openbsd || dragonfly

package poller

import (
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/dreamans/evtcp/evlog"
	"github.com/dreamans/evtcp/util"
)

type KQueue struct {
	handler   EventHandler
	fd        int
	closed    util.AtomicBool
	closeDone chan struct{}

	// mu keeps wake from using fd after Wait released it
	mu       sync.RWMutex
	released bool
}

func New(handler EventHandler) (Poller, error) {
	return KQueueCreate(handler)
}

func KQueueCreate(handler EventHandler) (*KQueue, error) {
	fd, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}

	_, err = unix.Kevent(fd, []unix.Kevent_t{{
		Ident:  0,
		Filter: unix.EVFILT_USER,
		Flags:  unix.EV_ADD | unix.EV_CLEAR,
	}}, nil, nil)
	if err != nil {
		_ = unix.Close(fd)
		return nil, err
	}

	kq := &KQueue{
		handler:   handler,
		fd:        fd,
		closeDone: make(chan struct{}),
	}
	return kq, nil
}

func (kq *KQueue) Trigger() error {
	if kq.closed.IsSet() {
		return ErrClosed
	}
	return kq.wake()
}

func (kq *KQueue) wake() error {
	kq.mu.RLock()
	defer kq.mu.RUnlock()
	if kq.released {
		return ErrClosed
	}
	_, err := unix.Kevent(kq.fd, []unix.Kevent_t{{
		Ident:  0,
		Filter: unix.EVFILT_USER,
		Fflags: unix.NOTE_TRIGGER,
	}}, nil, nil)
	return err
}

func (kq *KQueue) Add(fd int, interest Event) error {
	return kq.Modify(fd, interest)
}

// Modify adds or deletes the read and write filters one by one. Deleting a
// filter that was never added reports ENOENT, which is not an error here.
func (kq *KQueue) Modify(fd int, interest Event) error {
	if err := kq.filter(fd, unix.EVFILT_READ, interest&EventRead != 0); err != nil {
		return err
	}
	return kq.filter(fd, unix.EVFILT_WRITE, interest&EventWrite != 0)
}

func (kq *KQueue) Del(fd int) error {
	return kq.Modify(fd, EventNone)
}

func (kq *KQueue) filter(fd int, filter int16, enable bool) error {
	var flags uint16 = unix.EV_DELETE
	if enable {
		flags = unix.EV_ADD
	}
	var ev unix.Kevent_t
	unix.SetKevent(&ev, fd, int(filter), int(flags))
	_, err := unix.Kevent(kq.fd, []unix.Kevent_t{ev}, nil, nil)
	if err == unix.ENOENT && !enable {
		return nil
	}
	return err
}

func (kq *KQueue) Wait() {
	defer func() {
		kq.mu.Lock()
		kq.released = true
		_ = unix.Close(kq.fd)
		kq.mu.Unlock()
		close(kq.closeDone)
	}()

	events := make([]unix.Kevent_t, waitEventsBeginNum)
	trigger := false

	var tempDelay time.Duration
	for {
		n, err := unix.Kevent(kq.fd, nil, events, nil)

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

			evlog.Errorf("[unix.Kevent]: %s", err.Error())
			time.Sleep(tempDelay)
			continue
		}
		tempDelay = 0

		for i := 0; i < n; i++ {
			if events[i].Filter == unix.EVFILT_USER {
				trigger = true
				continue
			}
			fd := int(events[i].Ident)
			var event Event
			if events[i].Flags&unix.EV_ERROR != 0 {
				event |= EventErr
			}
			if events[i].Filter == unix.EVFILT_WRITE {
				event |= EventWrite
			}
			if events[i].Filter == unix.EVFILT_READ {
				// EV_EOF still carries the last bytes; the read handler sees 0 afterwards
				event |= EventRead
			}
			kq.handler(fd, event)
		}
		if trigger {
			kq.handler(-1, EventNone)
			trigger = false
		}
		if kq.closed.IsSet() {
			return
		}
		if n == len(events) {
			events = make([]unix.Kevent_t, int(float64(n)*1.5))
		}
	}
}

func (kq *KQueue) Close() error {
	if !kq.closed.TrySet() {
		return ErrClosed
	}
	return kq.wake()
}

func (kq *KQueue) Done() <-chan struct{} {
	return kq.closeDone
}
