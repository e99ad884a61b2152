/*
  The MIT License (MIT)

  Copyright (c) 2026 the brokuene/mysql authors

  Permission is hereby granted, free of charge, to any person obtaining a copy
  of this software and associated documentation files (the "Software"), to deal
  in the Software without restriction, including without limitation the rights
  to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
  copies of the Software, and to permit persons to whom the Software is
  furnished to do so, subject to the following conditions:

  The above copyright notice and this permission notice shall be included in all
  copies or substantial portions of the Software.

  THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
  IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
  FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
  AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
  LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
  OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
  SOFTWARE.
*/

package mysql

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// _POOL_REAP_INTERVAL is how often the reaper scans the idle list.
const _POOL_REAP_INTERVAL = 30 * time.Second

// _POOL_STALE_AFTER is how long a connection may sit idle before an
// acquire pings it instead of trusting it.
const _POOL_STALE_AFTER = 5 * time.Second

// pooled wraps an idle connection with the timestamps the pool needs.
type pooled struct {
	conn     *Conn
	idleAt   time.Time
	openedAt time.Time
}

// Pool is a bounded set of connections sharing one configuration.
// Acquire hands out exclusively-owned connections; Release returns
// them. The pool discards faulted, expired and idle-timed-out
// connections and dials replacements on demand.
type Pool struct {
	cfg *Config

	// sem counts outstanding leases against PoolMaxSize; a unit is
	// held for the whole time a caller owns a connection
	sem *semaphore.Weighted

	mu     sync.Mutex
	idle   []*pooled // LIFO: most recently released last
	opened map[*Conn]time.Time
	closed bool

	done chan struct{}
	wg   sync.WaitGroup
}

// NewPool validates the configuration and starts a pool. PoolMinSize
// connections are dialed eagerly; a dial failure closes the pool and
// surfaces the error, on the grounds that a configuration that cannot
// produce one connection will not produce any.
func NewPool(cfg *Config) (*Pool, error) {
	if err := cfg.normalize(); err != nil {
		return nil, err
	}

	p := &Pool{
		cfg:    cfg,
		sem:    semaphore.NewWeighted(int64(cfg.PoolMaxSize)),
		opened: make(map[*Conn]time.Time),
		done:   make(chan struct{}),
	}

	for i := 0; i < cfg.PoolMinSize; i++ {
		c, err := Connect(cfg)
		if err != nil {
			p.Close()
			return nil, err
		}
		now := time.Now()
		p.opened[c] = now
		p.idle = append(p.idle, &pooled{conn: c, idleAt: now, openedAt: now})
	}

	p.wg.Add(1)
	go p.reaper()

	logger.WithField("max_size", cfg.PoolMaxSize).
		WithField("min_size", cfg.PoolMinSize).
		Debug("connection pool started")
	return p, nil
}

// OpenPool is NewPool for a DSN string.
func OpenPool(dsn string) (*Pool, error) {
	cfg, err := ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	return NewPool(cfg)
}

// Acquire returns an exclusively-owned connection, dialing a new one if
// no healthy idle connection exists and the pool is not at capacity.
// When the pool is exhausted, Acquire blocks until a connection is
// released or the context ends.
func (p *Pool) Acquire(ctx context.Context) (*Conn, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, myError(ErrPoolClosed)
	}
	p.mu.Unlock()

	if err := p.sem.Acquire(ctx, 1); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, myError(ErrPoolExhausted)
		}
		return nil, myError(ErrCancelled)
	}

	// the semaphore unit is now leased; either hand out a connection
	// or give the unit back
	for {
		entry := p.takeIdle()
		if entry == nil {
			break
		}

		c := entry.conn
		if p.expired(entry, time.Now()) || c.State() != StateReady {
			p.discard(c)
			continue
		}

		// an idle socket may have been closed by the server; a ping
		// settles it for connections idle beyond the staleness window
		if time.Since(entry.idleAt) > _POOL_STALE_AFTER {
			if err := c.Ping(); err != nil {
				p.discard(c)
				continue
			}
		}
		return c, nil
	}

	c, err := Connect(p.cfg)
	if err != nil {
		p.sem.Release(1)
		return nil, err
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		c.Close()
		p.sem.Release(1)
		return nil, myError(ErrPoolClosed)
	}
	p.opened[c] = time.Now()
	p.mu.Unlock()
	return c, nil
}

// Release returns a connection to the pool. Faulted, closed and
// expired connections are discarded; healthy ones go back on the idle
// list. A connection must not be used after release.
func (p *Pool) Release(c *Conn) {
	if c == nil {
		return
	}

	p.mu.Lock()
	openedAt, leased := p.opened[c]
	closed := p.closed
	p.mu.Unlock()

	if !leased {
		// not this pool's connection; refuse silently but do not
		// disturb the semaphore accounting
		c.Close()
		return
	}

	// an undrained stream still holds the command slot; drain it so a
	// healthy connection can go back on the idle list
	if c.rows != nil {
		c.rows.Close()
	}

	now := time.Now()
	healthy := c.State() == StateReady &&
		(p.cfg.PoolMaxLifetime == 0 || now.Sub(openedAt) < p.cfg.PoolMaxLifetime)

	if closed || !healthy {
		p.discard(c)
		p.sem.Release(1)
		return
	}

	p.mu.Lock()
	p.idle = append(p.idle, &pooled{conn: c, idleAt: now, openedAt: openedAt})
	p.mu.Unlock()
	p.sem.Release(1)
}

// Close shuts the pool down: idle connections are closed immediately;
// leased connections are closed as they are released. Acquire fails
// from this point on.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	idle := p.idle
	p.idle = nil
	p.mu.Unlock()

	close(p.done)
	p.wg.Wait()

	for _, entry := range idle {
		p.discard(entry.conn)
	}
	return nil
}

// Stats is a point-in-time snapshot of the pool.
type Stats struct {
	Open   int // connections currently alive (idle + leased)
	Idle   int
	InUse  int
	Max    int
	Closed bool
}

// Stats returns a snapshot of the pool's accounting.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Open:   len(p.opened),
		Idle:   len(p.idle),
		InUse:  len(p.opened) - len(p.idle),
		Max:    p.cfg.PoolMaxSize,
		Closed: p.closed,
	}
}

// takeIdle pops the most recently released idle connection.
func (p *Pool) takeIdle() *pooled {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n := len(p.idle); n > 0 {
		entry := p.idle[n-1]
		p.idle = p.idle[:n-1]
		return entry
	}
	return nil
}

// discard closes a connection and drops it from the accounting.
func (p *Pool) discard(c *Conn) {
	p.mu.Lock()
	delete(p.opened, c)
	p.mu.Unlock()
	c.Close()
}

// expired reports whether a connection has outlived PoolMaxLifetime or
// its idle allowance.
func (p *Pool) expired(entry *pooled, now time.Time) bool {
	if p.cfg.PoolMaxLifetime > 0 && now.Sub(entry.openedAt) >= p.cfg.PoolMaxLifetime {
		return true
	}
	return now.Sub(entry.idleAt) >= p.cfg.PoolIdleTimeout
}

// reaper periodically closes idle connections that exceeded their
// allowance, keeping PoolMinSize warm.
func (p *Pool) reaper() {
	defer p.wg.Done()

	ticker := time.NewTicker(_POOL_REAP_INTERVAL)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case now := <-ticker.C:
			p.reap(now)
		}
	}
}

// reap closes expired idle connections beyond the warm minimum.
func (p *Pool) reap(now time.Time) {
	var victims []*Conn

	p.mu.Lock()
	kept := p.idle[:0]
	for _, entry := range p.idle {
		if len(p.opened)-len(victims) > p.cfg.PoolMinSize && p.expired(entry, now) {
			victims = append(victims, entry.conn)
			continue
		}
		kept = append(kept, entry)
	}
	p.idle = kept
	p.mu.Unlock()

	for _, c := range victims {
		p.discard(c)
		logger.WithFields(connFields(c)).Debug("reaped idle connection")
	}
}
