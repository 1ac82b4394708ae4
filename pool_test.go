package evtcp

import (
	"context"
	"net"
	"testing"
)

type idConn struct {
	Connection
	id uint64
}

func (c idConn) ID() uint64 { return c.id }

func TestPool(t *testing.T) {
	p := NewPool()
	for i := uint64(1); i <= 3; i++ {
		p.Register(idConn{id: i})
	}
	if p.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", p.Len())
	}
	if _, ok := p.Get(2); !ok {
		t.Errorf("Get(2) missing")
	}

	all := p.All()
	for _, c := range all {
		p.Unregister(c.ID())
	}
	if len(all) != 3 {
		t.Errorf("snapshot len = %d, want 3", len(all))
	}
	if p.Len() != 0 {
		t.Errorf("Len() = %d after unregistering the snapshot", p.Len())
	}
	if _, ok := p.Get(2); ok {
		t.Errorf("Get(2) found an unregistered id")
	}

	// unknown ids are ignored
	p.Unregister(42)
}

func TestConnectionFromContextMissing(t *testing.T) {
	if _, ok := ConnectionFromContext(context.Background()); ok {
		t.Errorf("found a connection in an empty context")
	}
}

func TestAttributeFormat(t *testing.T) {
	a := Attribute{LocalIP: "::1", LocalPort: 80, RemoteIP: "10.1.1.1", RemotePort: 5}
	if a.Local() != net.JoinHostPort("::1", "80") {
		t.Errorf("Local() = %q", a.Local())
	}
	if a.Remote() != "10.1.1.1:5" {
		t.Errorf("Remote() = %q", a.Remote())
	}
}
