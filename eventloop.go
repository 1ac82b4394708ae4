package evtcp

import (
	"sync"

	"github.com/eapache/queue"

	"github.com/dreamans/evtcp/poller"
)

// EventLoop is the reactor: one goroutine runs Wait and every fd handler
// and trigger callback runs there, one at a time.
type EventLoop struct {
	mu       sync.Mutex
	poll     poller.Poller
	handlers map[int]FdHandler
	packet   []byte
	triggers *queue.Queue
}

type FdHandler interface {
	EventHandler(fd int, events poller.Event)
}

func newEventLoop(packetSize int) (*EventLoop, error) {
	if packetSize <= 0 {
		packetSize = DefaultReadBufferSize
	}
	evLoop := &EventLoop{
		handlers: make(map[int]FdHandler),
		packet:   make([]byte, packetSize),
		triggers: queue.New(),
	}
	poll, err := poller.New(evLoop.eventHandler)
	if err != nil {
		return nil, err
	}
	evLoop.poll = poll

	return evLoop, nil
}

// Trigger schedules fn on the loop goroutine. Safe from any goroutine; once
// the loop is stopped it returns poller.ErrClosed and fn never runs.
func (ev *EventLoop) Trigger(fn func()) error {
	ev.mu.Lock()
	ev.triggers.Add(fn)
	ev.mu.Unlock()

	return ev.poll.Trigger()
}

// PacketBuf is the shared read buffer; its contents are valid only until
// the next read on this loop.
func (ev *EventLoop) PacketBuf() []byte {
	return ev.packet
}

func (ev *EventLoop) AddFdHandler(fd int, interest poller.Event, handler FdHandler) error {
	if err := ev.poll.Add(fd, interest); err != nil {
		return err
	}
	ev.handlers[fd] = handler
	return nil
}

func (ev *EventLoop) ModifyFd(fd int, interest poller.Event) error {
	return ev.poll.Modify(fd, interest)
}

func (ev *EventLoop) DelFdHandler(fd int) error {
	delete(ev.handlers, fd)
	return ev.poll.Del(fd)
}

func (ev *EventLoop) Wait() {
	ev.poll.Wait()
}

// Stop makes Wait return after the current iteration. It does not block.
func (ev *EventLoop) Stop() error {
	return ev.poll.Close()
}

func (ev *EventLoop) Done() <-chan struct{} {
	return ev.poll.Done()
}

func (ev *EventLoop) eventHandler(fd int, events poller.Event) {
	if fd >= 0 {
		if handler, ok := ev.handlers[fd]; ok {
			handler.EventHandler(fd, events)
		}
		return
	}

	ev.doTriggers()
}

func (ev *EventLoop) doTriggers() {
	ev.mu.Lock()
	fns := make([]func(), 0, ev.triggers.Length())
	for ev.triggers.Length() > 0 {
		fns = append(fns, ev.triggers.Remove().(func()))
	}
	ev.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
