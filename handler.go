package evtcp

import (
	"fmt"
	"runtime/debug"

	"github.com/dreamans/evtcp/evlog"
)

type Event uint8

const (
	EventConnect Event = iota + 1
	EventMessage
	EventClose
	EventError
)

func (e Event) String() string {
	switch e {
	case EventConnect:
		return "connect"
	case EventMessage:
		return "message"
	case EventClose:
		return "close"
	case EventError:
		return "error"
	}
	return "unknown"
}

// Handler receives connection events, synchronously, on the loop goroutine.
type Handler interface {
	OnConnect(c Connection)
	OnMessage(c Connection)
	OnClose(c Connection)
	OnError(c Connection, err error)
}

// HandlerFuncs adapts plain functions to Handler; nil fields are ignored.
type HandlerFuncs struct {
	Connect func(c Connection)
	Message func(c Connection)
	Close   func(c Connection)
	Error   func(c Connection, err error)
}

func (h *HandlerFuncs) OnConnect(c Connection) {
	if h.Connect != nil {
		h.Connect(c)
	}
}

func (h *HandlerFuncs) OnMessage(c Connection) {
	if h.Message != nil {
		h.Message(c)
	}
}

func (h *HandlerFuncs) OnClose(c Connection) {
	if h.Close != nil {
		h.Close(c)
	}
}

func (h *HandlerFuncs) OnError(c Connection, err error) {
	if h.Error != nil {
		h.Error(c, err)
	}
}

type defaultHandler struct{}

func (defaultHandler) OnConnect(c Connection)          {}
func (defaultHandler) OnMessage(c Connection)          {}
func (defaultHandler) OnClose(c Connection)            {}
func (defaultHandler) OnError(c Connection, err error) {}

// PanicError wraps a value recovered from a handler or framer.
type PanicError struct {
	Event Event
	Value interface{}
	Stack []byte
}

func (e *PanicError) Error() string {
	if e.Event == 0 {
		return fmt.Sprintf("evtcp: panic in framer: %v", e.Value)
	}
	return fmt.Sprintf("evtcp: panic in %s handler: %v", e.Event, e.Value)
}

// notifier is the boundary between the reactor and application code. A
// panic in a handler is recovered and logged; it never reaches the loop.
type notifier struct {
	handler Handler
}

func newNotifier(h Handler) notifier {
	if h == nil {
		h = defaultHandler{}
	}
	return notifier{handler: h}
}

func (n notifier) notify(ev Event, c Connection, err error) {
	defer func() {
		if r := recover(); r != nil {
			report(c, &PanicError{Event: ev, Value: r, Stack: debug.Stack()})
		}
	}()

	switch ev {
	case EventConnect:
		n.handler.OnConnect(c)
	case EventMessage:
		n.handler.OnMessage(c)
	case EventClose:
		n.handler.OnClose(c)
	case EventError:
		n.handler.OnError(c, err)
	}
}

// check runs the framer behind the same boundary. A panicking framer
// reports "need more data".
func (n notifier) check(f Framer, c Connection) (length int) {
	defer func() {
		if r := recover(); r != nil {
			report(c, &PanicError{Value: r, Stack: debug.Stack()})
			length = 0
		}
	}()
	return f.Check(c)
}

func report(c Connection, perr *PanicError) {
	attr := c.Attribute()
	evlog.WithFields(evlog.Fields{
		"conn_id": c.ID(),
		"remote":  attr.Remote(),
		"event":   perr.Event.String(),
	}).Errorf("%s\n%s", perr.Error(), perr.Stack)
}
