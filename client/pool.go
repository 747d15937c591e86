package client

import (
	"fmt"
	"sync"
	"time"

	"github.com/biogit/biogit/hash"
	"golang.org/x/sync/errgroup"
)

// DefaultPoolSize bounds how many connections Fetch/Push open for
// concurrent object transfer (spec.md §9's "runtime-configurable pool
// size" note, applied client-side: the wire protocol allows only one
// in-flight request per connection, §4.8, so concurrency here means
// multiple connections, not overlapping requests on one).
const DefaultPoolSize = 4

// Pool is a fixed set of Conns already authenticated and bound to the
// same repository, used to parallelize GET_OBJECT/PUT_OBJECT round trips
// across independent connections.
type Pool struct {
	conns chan *Conn
}

// NewPool dials size connections to addr, reusing token (stateless, so
// safe across connections) and binding each to repoPath.
func NewPool(addr, token, repoPath string, size int) (*Pool, error) {
	if size <= 0 {
		size = DefaultPoolSize
	}
	p := &Pool{conns: make(chan *Conn, size)}
	for i := 0; i < size; i++ {
		c, err := WithToken(addr, token, 10*time.Second)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("client: building pool connection %d: %w", i, err)
		}
		if err := c.TargetRepo(repoPath); err != nil {
			c.Close()
			p.Close()
			return nil, err
		}
		p.conns <- c
	}
	return p, nil
}

// Close closes every pooled connection.
func (p *Pool) Close() {
	close(p.conns)
	for c := range p.conns {
		c.Close()
	}
}

// borrow checks out a connection, blocking until one is free.
func (p *Pool) borrow() *Conn { return <-p.conns }

// release returns a connection to the pool.
func (p *Pool) release(c *Conn) { p.conns <- c }

// FetchMissing retrieves every hash in wanted, fanning the GET_OBJECT
// round trips out across the pool's connections (the fetch work-queue,
// spec.md §4.9), and returns each object's raw bytes keyed by hash.
// Hashes the server reports missing are simply absent from the result.
func (p *Pool) FetchMissing(wanted []hash.Hash) (map[hash.Hash][]byte, error) {
	var mu sync.Mutex
	out := make(map[hash.Hash][]byte, len(wanted))

	var g errgroup.Group
	for _, h := range wanted {
		h := h
		g.Go(func() error {
			c := p.borrow()
			defer p.release(c)
			raw, found, err := c.GetObject(h)
			if err != nil {
				return err
			}
			if !found {
				return nil
			}
			mu.Lock()
			out[h] = raw
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// PushMissing uploads every object in objects, fanning PUT_OBJECT out
// across the pool's connections (spec.md §4.9 step 5).
func (p *Pool) PushMissing(objects map[hash.Hash][]byte) error {
	var g errgroup.Group
	for h, raw := range objects {
		h, raw := h, raw
		g.Go(func() error {
			c := p.borrow()
			defer p.release(c)
			return c.PutObject(h, raw)
		})
	}
	return g.Wait()
}
