// Package pool implements the bounded, per-address connection pool every
// session borrows a Connection from. One Pool instance is shared by every
// session a driver hands out; connections are exclusively owned by either
// the pool (idle) or a single session (borrowed), never both at once.
package pool

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/corvid-graph/bolt-go-driver/internal/boltconfig"
	"github.com/corvid-graph/bolt-go-driver/internal/dbtype"
	"github.com/corvid-graph/bolt-go-driver/internal/logging"
)

// waiter is a pending Acquire blocked because no idle connection and no
// pool headroom were available for any of its requested addresses.
type waiter struct {
	addresses []string
	auth      *dbtype.ReAuthToken
	wakeup    chan struct{}
	conn      dbtype.Connection
	err       error
}

// Pool is a per-address bucket of idle connections plus a FIFO queue of
// waiters, bounded by cfg.MaxConnectionPoolSize per address. Safe for
// concurrent use.
type Pool struct {
	id  string
	cfg *boltconfig.Config
	dial Dialer
	log logging.Logger
	now func() time.Time

	mu      sync.Mutex
	servers map[string]*server
	waiters list.List
	closed  bool
}

// New builds a Pool that dials new connections through dial, using cfg for
// sizing and lifetime limits. id identifies this pool instance in log
// lines (a driver typically has exactly one).
func New(cfg *boltconfig.Config, dial Dialer, log logging.Logger, id string) *Pool {
	return &Pool{
		id:      id,
		cfg:     cfg,
		dial:    dial,
		log:     log,
		now:     time.Now,
		servers: make(map[string]*server),
	}
}

// Acquire borrows a connection to one of addresses, preferring an existing
// idle connection, then growing an existing server's bucket, then opening
// a brand new server bucket, before finally queueing as a waiter. It blocks
// up to cfg.ConnectionAcquisitionTimeout (negative: forever, zero: fail
// fast), or until ctx's own deadline if that comes first.
func (p *Pool) Acquire(ctx context.Context, addresses []string, auth *dbtype.ReAuthToken) (dbtype.Connection, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return nil, &dbtype.PoolTimeoutError{Address: addresses[0]}
	}

	ctx, cancel := p.withAcquisitionTimeout(ctx)
	defer cancel()

	if c, err := p.tryExistingIdle(ctx, addresses); c != nil || err != nil {
		return c, err
	}
	if c, err := p.tryGrowExistingServer(ctx, addresses, auth); c != nil || err != nil {
		return c, err
	}
	if c, err := p.tryNewServer(ctx, addresses, auth); c != nil || err != nil {
		return c, err
	}

	if !p.anyServerExists(addresses) {
		return nil, &dbtype.PoolTimeoutError{Address: addresses[0]}
	}

	return p.waitForReturn(ctx, addresses, auth)
}

func (p *Pool) withAcquisitionTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	switch {
	case p.cfg.ConnectionAcquisitionTimeout < 0:
		return ctx, func() {}
	case p.cfg.ConnectionAcquisitionTimeout == 0:
		return context.WithDeadline(ctx, p.now())
	default:
		return context.WithTimeout(ctx, p.cfg.ConnectionAcquisitionTimeout)
	}
}

// tryExistingIdle pops idle connections off each candidate server in turn,
// discarding ones that have outlived MaxConnectionLifetime/
// ConnectionIdleTimeout or that fail a liveness probe, until it finds one
// worth returning or every bucket is drained.
func (p *Pool) tryExistingIdle(ctx context.Context, addresses []string) (dbtype.Connection, error) {
	for _, addr := range addresses {
		for {
			p.mu.Lock()
			srv := p.servers[addr]
			if srv == nil {
				p.mu.Unlock()
				break
			}
			c := srv.popIdle()
			if c == nil {
				p.mu.Unlock()
				break
			}
			p.mu.Unlock()

			if p.isExpired(c) {
				c.Close(ctx)
				p.unreg(addr)
				continue
			}
			if p.needsLivenessProbe(c) {
				c.Reset(ctx)
				if !c.IsAlive() {
					go c.Close(context.Background())
					p.unreg(addr)
					continue
				}
			}
			p.regBusy(addr)
			return c, nil
		}
	}
	return nil, nil
}

func (p *Pool) isExpired(c dbtype.Connection) bool {
	if p.cfg.MaxConnectionLifetime > 0 && p.now().Sub(c.Birthdate()) >= p.cfg.MaxConnectionLifetime {
		return true
	}
	if p.cfg.ConnectionIdleTimeout > 0 && p.now().Sub(c.IdleDate()) >= p.cfg.ConnectionIdleTimeout {
		return true
	}
	return false
}

func (p *Pool) needsLivenessProbe(c dbtype.Connection) bool {
	threshold := p.cfg.ConnectionLivenessCheckTimeout
	if threshold < 0 {
		return false
	}
	return p.now().Sub(c.IdleDate()) >= threshold
}

// tryGrowExistingServer dials a new connection for a server this pool
// already has a bucket for, provided that bucket has not reached
// MaxConnectionPoolSize.
func (p *Pool) tryGrowExistingServer(ctx context.Context, addresses []string, auth *dbtype.ReAuthToken) (dbtype.Connection, error) {
	for _, addr := range addresses {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p.mu.Lock()
		srv := p.servers[addr]
		full := srv == nil || srv.size() >= p.cfg.MaxConnectionPoolSize
		p.mu.Unlock()
		if srv == nil || full {
			continue
		}

		c, err := p.dial(ctx, addr, auth)
		if err != nil || c == nil {
			continue
		}
		p.regBusy(addr)
		return c, nil
	}
	return nil, nil
}

// tryNewServer dials a first connection for any candidate address that has
// no bucket at all yet.
func (p *Pool) tryNewServer(ctx context.Context, addresses []string, auth *dbtype.ReAuthToken) (dbtype.Connection, error) {
	for _, addr := range addresses {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p.mu.Lock()
		_, exists := p.servers[addr]
		p.mu.Unlock()
		if exists {
			continue
		}

		c, err := p.dial(ctx, addr, auth)
		if err != nil || c == nil {
			continue
		}
		p.mu.Lock()
		p.servers[addr] = &server{busy: 1}
		p.mu.Unlock()
		return c, nil
	}
	return nil, nil
}

func (p *Pool) anyServerExists(addresses []string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, addr := range addresses {
		if _, ok := p.servers[addr]; ok {
			return true
		}
	}
	return false
}

func (p *Pool) regBusy(addr string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if srv := p.servers[addr]; srv != nil {
		srv.regBusy()
	}
}

func (p *Pool) unreg(addr string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	srv := p.servers[addr]
	if srv == nil {
		return
	}
	if srv.size() == 0 {
		delete(p.servers, addr)
	}
}

// waitForReturn queues the caller as a waiter and blocks until a matching
// Release wakes it up or the acquisition deadline passes. A wakeup with a
// nil connection and nil error means a busy slot freed up without a
// connection to hand over (its owner turned out to be dead) — the waiter
// retries acquisition itself instead of waiting out the rest of the
// deadline for nothing.
func (p *Pool) waitForReturn(ctx context.Context, addresses []string, auth *dbtype.ReAuthToken) (dbtype.Connection, error) {
	for {
		w := &waiter{addresses: addresses, auth: auth, wakeup: make(chan struct{})}

		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, &dbtype.PoolTimeoutError{Address: addresses[0]}
		}
		elem := p.waiters.PushBack(w)
		p.mu.Unlock()

		select {
		case <-w.wakeup:
			if w.conn == nil && w.err == nil {
				if c, err := p.tryGrowExistingServer(ctx, addresses, auth); c != nil || err != nil {
					return c, err
				}
				if c, err := p.tryNewServer(ctx, addresses, auth); c != nil || err != nil {
					return c, err
				}
				continue
			}
			return w.conn, w.err
		case <-ctx.Done():
			p.mu.Lock()
			p.waiters.Remove(elem)
			p.mu.Unlock()
			select {
			case <-w.wakeup:
				return w.conn, w.err
			default:
				return nil, &dbtype.PoolTimeoutError{Address: addresses[0]}
			}
		}
	}
}

// Release returns a borrowed connection to the pool. A waiter queued for
// its address is woken first; otherwise it is kept idle, unless the idle
// bucket is already at MaxIdleConnectionPoolSize, in which case it is
// closed instead. A dead connection is closed and its busy slot freed, but
// a waiter for that address is still signalled to attempt acquisition
// again now that the pool has headroom.
func (p *Pool) Release(ctx context.Context, c dbtype.Connection) {
	addr := c.ServerName()

	if !c.IsAlive() {
		p.unregBusy(addr)
		go c.Close(ctx)
		p.wakeWaiterForRetry(addr)
		return
	}

	p.mu.Lock()
	if p.closed {
		if srv := p.servers[addr]; srv != nil {
			srv.unregBusy()
			if srv.size() == 0 {
				delete(p.servers, addr)
			}
		}
		p.mu.Unlock()
		go c.Close(ctx)
		return
	}
	for e := p.waiters.Front(); e != nil; e = e.Next() {
		w := e.Value.(*waiter)
		if !containsAddress(w.addresses, addr) {
			continue
		}
		p.waiters.Remove(e)
		p.mu.Unlock()
		w.conn = c
		close(w.wakeup)
		return
	}

	srv := p.servers[addr]
	if srv == nil {
		p.mu.Unlock()
		go c.Close(ctx)
		return
	}
	srv.unregBusy()
	if srv.numIdle() >= p.cfg.MaxIdleConnectionPoolSize {
		p.mu.Unlock()
		go c.Close(ctx)
		return
	}
	srv.pushIdle(c)
	p.mu.Unlock()
}

// wakeWaiterForRetry wakes the first waiter queued for addr with no
// connection attached, telling it to retry acquisition itself rather than
// keep waiting for a Release that will never hand it one directly.
func (p *Pool) wakeWaiterForRetry(addr string) {
	p.mu.Lock()
	for e := p.waiters.Front(); e != nil; e = e.Next() {
		w := e.Value.(*waiter)
		if !containsAddress(w.addresses, addr) {
			continue
		}
		p.waiters.Remove(e)
		p.mu.Unlock()
		close(w.wakeup)
		return
	}
	p.mu.Unlock()
}

func (p *Pool) unregBusy(addr string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	srv := p.servers[addr]
	if srv == nil {
		return
	}
	srv.unregBusy()
	if srv.size() == 0 {
		delete(p.servers, addr)
	}
}

func containsAddress(addresses []string, addr string) bool {
	for _, a := range addresses {
		if a == addr {
			return true
		}
	}
	return false
}

// CleanUp closes every idle connection that has outlived
// MaxConnectionLifetime or ConnectionIdleTimeout. It does not touch
// connections currently on loan; those are swept on their next Release or
// Acquire. Intended to be called periodically by the owning driver.
func (p *Pool) CleanUp() {
	p.mu.Lock()
	var toClose []dbtype.Connection
	for addr, srv := range p.servers {
		closed := srv.pruneIdle(func(c dbtype.Connection) bool { return !p.isExpired(c) })
		toClose = append(toClose, closed...)
		if srv.size() == 0 {
			delete(p.servers, addr)
		}
	}
	p.mu.Unlock()

	for _, c := range toClose {
		go c.Close(context.Background())
	}
}

// Close terminates the pool: queued waiters are released with a timeout
// error so they stop blocking, every idle connection is closed, and every
// future Acquire fails immediately. Connections still on loan are left for
// their sessions to Release, at which point Release closes them instead of
// re-idling them.
func (p *Pool) Close(ctx context.Context) {
	p.mu.Lock()
	p.closed = true
	for e := p.waiters.Front(); e != nil; e = e.Next() {
		w := e.Value.(*waiter)
		w.err = &dbtype.PoolTimeoutError{Address: w.addresses[0]}
		close(w.wakeup)
	}
	p.waiters.Init()

	var toClose []dbtype.Connection
	for addr, srv := range p.servers {
		toClose = append(toClose, srv.closeAllIdle()...)
		if srv.size() == 0 {
			delete(p.servers, addr)
		}
	}
	p.mu.Unlock()

	for _, c := range toClose {
		c.Close(ctx)
	}
}
