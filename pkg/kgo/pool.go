package kgo

import (
	"context"
	"sync"
	"time"
)

// Pool is a connection pool keyed by broker address (C3). It hands out an
// idle Conn if one is available, dials a fresh one for any checkout that
// finds none, and periodically evicts connections that have sat idle
// longer than maxConnIdle. There is no hard size cap — matching the core
// spec's "no hard size cap" invariant for this component.
type Pool struct {
	cfg ClientConfig

	mu    sync.Mutex
	conns map[string][]*Conn

	stopSweep chan struct{}
	sweepOnce sync.Once
}

// NewPool constructs a Pool and starts its idle-eviction sweep.
func NewPool(cfg ClientConfig) *Pool {
	p := &Pool{
		cfg:       cfg,
		conns:     make(map[string][]*Conn),
		stopSweep: make(chan struct{}),
	}
	go p.sweepLoop()
	return p
}

// Checkout returns the newest idle connection to addr whose age since last
// use is within maxConnIdle, otherwise dials a new one. Idle connections
// older than maxConnIdle are closed and skipped here rather than left for
// the background sweep, which only runs every maxConnIdle/4 and would
// otherwise let a just-expired connection be handed out in the gap.
// Concurrent Checkout calls for an address with no idle connection each
// dial and return their own Conn. A Checkout does not wait for another
// caller's connection to be returned, and a dialed Conn only enters the
// pool when its caller passes it to Return.
func (p *Pool) Checkout(ctx context.Context, addr string) (*Conn, error) {
	cutoff := time.Now().Add(-p.cfg.maxConnIdle)
	p.mu.Lock()
	bucket := p.conns[addr]
	for len(bucket) > 0 {
		c := bucket[len(bucket)-1]
		bucket = bucket[:len(bucket)-1]
		p.conns[addr] = bucket
		if c.Dead() {
			continue
		}
		if p.cfg.maxConnIdle > 0 && c.LastUsed().Before(cutoff) {
			c.Close()
			continue
		}
		p.mu.Unlock()
		return c, nil
	}
	p.mu.Unlock()

	c, err := DialConn(ctx, addr, p.cfg.dialFn, p.cfg.clientID, p.cfg.logger)
	if err != nil {
		return nil, err
	}
	if err := NegotiateVersions(ctx, c, p.cfg); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// Return gives a connection back to the pool for reuse. A dead connection
// is dropped instead of being pooled.
func (p *Pool) Return(addr string, c *Conn) {
	if c.Dead() {
		return
	}
	p.mu.Lock()
	p.conns[addr] = append(p.conns[addr], c)
	p.mu.Unlock()
}

func (p *Pool) sweepLoop() {
	interval := p.cfg.maxConnIdle / 4
	if interval <= 0 {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			p.evictIdle()
		case <-p.stopSweep:
			return
		}
	}
}

func (p *Pool) evictIdle() {
	cutoff := time.Now().Add(-p.cfg.maxConnIdle)
	p.mu.Lock()
	defer p.mu.Unlock()
	for addr, bucket := range p.conns {
		kept := bucket[:0]
		for _, c := range bucket {
			if c.Dead() || c.LastUsed().Before(cutoff) {
				c.Close()
				continue
			}
			kept = append(kept, c)
		}
		if len(kept) == 0 {
			delete(p.conns, addr)
		} else {
			p.conns[addr] = kept
		}
	}
}

// Close stops the sweep loop and closes every pooled connection.
func (p *Pool) Close() error {
	p.sweepOnce.Do(func() { close(p.stopSweep) })
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, bucket := range p.conns {
		for _, c := range bucket {
			c.Close()
		}
	}
	p.conns = make(map[string][]*Conn)
	return nil
}
