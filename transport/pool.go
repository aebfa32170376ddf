// Pool provides an exclusive-use alternative to a single multiplexed
// Connector: instead of one connection shared by every concurrent
// Invoke, a caller checks a *Connector out, uses it alone, and returns
// it. Useful when a peer imposes per-connection concurrency limits, or
// when isolating one caller's traffic onto its own socket is wanted.
// Adapted from the teacher's transport.ConnPool, retargeted from
// net.Conn to *Connector so a pooled entry is already a live RFC
// communicator, not a bare socket.
package transport

import (
	"fmt"
	"sync"

	"mini-rfc/rfc"
)

// Pool manages a bounded set of Connector instances dialing the same
// peer address.
type Pool struct {
	mu       sync.Mutex
	conns    chan *Connector
	maxConns int
	curConns int
	factory  func() (*Connector, error)
}

// NewPool creates a pool with the given max size. Connectors are
// dialed lazily — the pool starts empty and grows on demand, exactly
// as the teacher's ConnPool does for raw net.Conn.
func NewPool(maxConns int, factory func() (*Connector, error)) *Pool {
	return &Pool{
		conns:    make(chan *Connector, maxConns),
		maxConns: maxConns,
		factory:  factory,
	}
}

// Get returns a Connector from the pool, dialing a new one if under
// capacity, or blocking for a returned one if at capacity.
func (p *Pool) Get() (*Connector, error) {
	select {
	case c := <-p.conns:
		if c.State() == rfc.StateClosed {
			return p.createNew()
		}
		return c, nil
	default:
		p.mu.Lock()
		underLimit := p.curConns < p.maxConns
		p.mu.Unlock()
		if underLimit {
			return p.createNew()
		}
		return <-p.conns, nil
	}
}

// Put returns a Connector to the pool for reuse, or drops it from the
// pool's count instead if its communicator has already reached CLOSED.
func (p *Pool) Put(c *Connector) {
	if c.State() == rfc.StateClosed {
		p.mu.Lock()
		p.curConns--
		p.mu.Unlock()
		return
	}
	p.conns <- c
}

// Close shuts the pool down and closes every pooled connector.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	close(p.conns)
	for c := range p.conns {
		c.Close()
		p.curConns--
	}
	return nil
}

func (p *Pool) createNew() (*Connector, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.curConns >= p.maxConns {
		return nil, fmt.Errorf("connector pool exhausted")
	}

	c, err := p.factory()
	if err != nil {
		return nil, err
	}
	p.curConns++
	return c, nil
}
