package poller

import "errors"

type (
	Event uint32

	// EventHandler receives readiness for fd. fd == -1 signals a Trigger wakeup.
	EventHandler func(fd int, event Event)
)

const (
	EventNone  Event = 0x0
	EventRead  Event = 0x1
	EventWrite Event = 0x2
	EventErr   Event = 0x4
)

const (
	waitEventsBeginNum = 128
)

var (
	ErrClosed = errors.New("poller is not running")
)

// Poller is a level-triggered readiness multiplexer. All methods except
// Trigger and Close are meant for the goroutine running Wait, or for use
// before Wait starts.
type Poller interface {
	// Add registers fd with the given interest (EventRead|EventWrite or EventNone).
	Add(fd int, interest Event) error
	// Modify replaces the interest set of a registered fd.
	Modify(fd int, interest Event) error
	Del(fd int) error
	// Wait dispatches events until Close is observed.
	Wait()
	// Trigger wakes Wait from any goroutine. It reports ErrClosed once
	// Close has been called.
	Trigger() error
	// Close asks Wait to return. It does not block, so it may be called
	// from inside the handler. Done is closed once Wait has returned.
	Close() error
	Done() <-chan struct{}
}
