package evtcp

import "sync"

// Pool tracks the live connections of one server. Entries are added when a
// connection is constructed and removed by Connection.Close; the pool never
// closes anything itself.
type Pool struct {
	mu    sync.RWMutex
	conns map[uint64]Connection
}

func NewPool() *Pool {
	return &Pool{conns: make(map[uint64]Connection)}
}

func (p *Pool) Register(c Connection) {
	p.mu.Lock()
	p.conns[c.ID()] = c
	p.mu.Unlock()
}

func (p *Pool) Unregister(id uint64) {
	p.mu.Lock()
	delete(p.conns, id)
	p.mu.Unlock()
}

func (p *Pool) Get(id uint64) (Connection, bool) {
	p.mu.RLock()
	c, ok := p.conns[id]
	p.mu.RUnlock()
	return c, ok
}

func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.conns)
}

// All returns a snapshot, safe to iterate while entries close themselves.
func (p *Pool) All() []Connection {
	p.mu.RLock()
	defer p.mu.RUnlock()
	all := make([]Connection, 0, len(p.conns))
	for _, c := range p.conns {
		all = append(all, c)
	}
	return all
}
