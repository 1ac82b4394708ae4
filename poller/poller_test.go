//go:build linux || darwin || netbsd || freebsd || openbsd || dragonfly

package poller

import (
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

type firing struct {
	fd    int
	event Event
}

func socketpair(t *testing.T) [2]int {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("Socketpair: %v", err)
	}
	t.Cleanup(func() {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
	})
	return fds
}

func TestPollerInterest(t *testing.T) {
	fired := make(chan firing, 64)
	p, err := New(func(fd int, ev Event) {
		// level-triggered events repeat, dropping some is fine
		select {
		case fired <- firing{fd, ev}:
		default:
		}
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	fds := socketpair(t)

	if err := p.Add(fds[0], EventNone); err != nil {
		t.Fatalf("Add: %v", err)
	}
	go p.Wait()
	defer func() {
		_ = p.Close()
		<-p.Done()
	}()

	// nothing is reported without interest, even though the fd is writable
	_, _ = unix.Write(fds[1], []byte("x"))
	expectNone(t, fired)

	if err := p.Modify(fds[0], EventRead); err != nil {
		t.Fatalf("Modify: %v", err)
	}
	expect(t, fired, fds[0], EventRead)

	if err := p.Modify(fds[0], EventNone); err != nil {
		t.Fatalf("Modify: %v", err)
	}
	drain(fired)
	_ = p.Trigger()
	expect(t, fired, -1, EventNone)
	drain(fired)
	expectNone(t, fired)

	if err := p.Modify(fds[0], EventWrite); err != nil {
		t.Fatalf("Modify: %v", err)
	}
	expect(t, fired, fds[0], EventWrite)

	if err := p.Del(fds[0]); err != nil {
		t.Fatalf("Del: %v", err)
	}
}

func TestPollerCloseFromHandler(t *testing.T) {
	var p Poller
	p, err := New(func(fd int, ev Event) {
		if fd == -1 {
			_ = p.Close()
		}
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	go p.Wait()
	_ = p.Trigger()

	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("Wait did not return")
	}
	if err := p.Close(); err != ErrClosed {
		t.Errorf("Close after stop = %v, want ErrClosed", err)
	}
	if err := p.Trigger(); err != ErrClosed {
		t.Errorf("Trigger after stop = %v, want ErrClosed", err)
	}
}

func expect(t *testing.T, fired <-chan firing, fd int, ev Event) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case f := <-fired:
			if f.fd == fd && f.event&ev == ev {
				return
			}
		case <-deadline:
			t.Fatalf("no %v event for fd %d", ev, fd)
		}
	}
}

func expectNone(t *testing.T, fired <-chan firing) {
	t.Helper()
	select {
	case f := <-fired:
		t.Fatalf("unexpected event %v for fd %d", f.event, f.fd)
	case <-time.After(50 * time.Millisecond):
	}
}

func drain(fired <-chan firing) {
	for {
		select {
		case <-fired:
		case <-time.After(20 * time.Millisecond):
			return
		}
	}
}
