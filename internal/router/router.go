// Package router owns the per-database routing table: refreshing it from
// a live router connection, round-robin address selection, and forgetting
// addresses a server has told the driver are no longer a leader/available.
package router

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/corvid-graph/bolt-go-driver/internal/dbtype"
	"github.com/corvid-graph/bolt-go-driver/internal/logging"
)

var (
	errNoReaders = errors.New("no readers available")
	errNoWriters = errors.New("no writers available")
	errNoRouter  = errors.New("no router available")
)

// Pool is the subset of internal/pool.Pool the router needs: enough to
// borrow a connection to a candidate router address and hand it back.
type Pool interface {
	Acquire(ctx context.Context, addresses []string, auth *dbtype.ReAuthToken) (dbtype.Connection, error)
	Release(ctx context.Context, conn dbtype.Connection)
}

// entry is one database's cached routing table plus the round-robin
// cursors used to spread Acquire calls across its readers/writers.
type entry struct {
	table     *dbtype.RoutingTable
	expiresAt time.Time
	readerIdx uint32
	writerIdx uint32
}

// Manager owns one routing table per database, refreshed lazily and
// single-flighted so concurrent callers racing to refresh the same
// database share one ROUTE round trip instead of each issuing their own.
type Manager struct {
	initialRouter   string
	routingContext  map[string]string
	pool            Pool
	addressResolver func(string) []string
	log             logging.Logger
	id              string
	now             func() time.Time

	mu      sync.Mutex
	tables  map[string]*entry
	inflight singleflight.Group
}

// New builds a Manager that falls back to initialRouter (expanded through
// addressResolver, if non-nil) whenever a database has no cached table yet
// or every known router has been forgotten.
func New(initialRouter string, routingContext map[string]string, pool Pool, addressResolver func(string) []string, log logging.Logger) *Manager {
	return &Manager{
		initialRouter:   initialRouter,
		routingContext:  routingContext,
		pool:            pool,
		addressResolver: addressResolver,
		log:             log,
		id:              uuid.NewString(),
		now:             time.Now,
		tables:          make(map[string]*entry),
	}
}

// ReaderAddress returns the next address (round-robin) in database's
// reader set, refreshing the table first if it is missing, expired, or
// has no readers.
func (m *Manager) ReaderAddress(ctx context.Context, database string, bookmarks []string, impersonatedUser string, auth *dbtype.ReAuthToken) (string, error) {
	e, err := m.tableFor(ctx, database, bookmarks, impersonatedUser, auth, func(t *dbtype.RoutingTable) []string { return t.Readers })
	if err != nil {
		return "", err
	}
	if len(e.table.Readers) == 0 {
		return "", &dbtype.RoutingError{Database: database, Err: errNoReaders}
	}
	idx := atomic.AddUint32(&e.readerIdx, 1)
	return e.table.Readers[int(idx)%len(e.table.Readers)], nil
}

// WriterAddress returns the next address (round-robin) in database's
// writer set, refreshing the table first if it is missing, expired, or
// has no writers.
func (m *Manager) WriterAddress(ctx context.Context, database string, bookmarks []string, impersonatedUser string, auth *dbtype.ReAuthToken) (string, error) {
	e, err := m.tableFor(ctx, database, bookmarks, impersonatedUser, auth, func(t *dbtype.RoutingTable) []string { return t.Writers })
	if err != nil {
		return "", err
	}
	if len(e.table.Writers) == 0 {
		return "", &dbtype.RoutingError{Database: database, Err: errNoWriters}
	}
	idx := atomic.AddUint32(&e.writerIdx, 1)
	return e.table.Writers[int(idx)%len(e.table.Writers)], nil
}

// tableFor returns the cached entry for database if it is fresh and
// non-empty for the requested access pattern, otherwise refreshes it.
func (m *Manager) tableFor(ctx context.Context, database string, bookmarks []string, impersonatedUser string, auth *dbtype.ReAuthToken, addresses func(*dbtype.RoutingTable) []string) (*entry, error) {
	m.mu.Lock()
	e := m.tables[database]
	fresh := e != nil && m.now().Before(e.expiresAt) && len(addresses(e.table)) > 0
	m.mu.Unlock()
	if fresh {
		return e, nil
	}
	return m.refresh(ctx, database, bookmarks, impersonatedUser, auth)
}

// refresh fetches a new routing table for database via ROUTE against
// whatever routers are currently known (falling back to the initial
// router if none are, or if every known one fails). Concurrent refreshes
// of the same database share one in-flight call.
func (m *Manager) refresh(ctx context.Context, database string, bookmarks []string, impersonatedUser string, auth *dbtype.ReAuthToken) (*entry, error) {
	v, err, _ := m.inflight.Do(database, func() (any, error) {
		routers := m.candidateRouters(database)
		table, rerr := m.readTable(ctx, routers, bookmarks, database, impersonatedUser, auth)
		if rerr != nil {
			return nil, rerr
		}
		e := &entry{table: table, expiresAt: m.now().Add(table.TTL)}
		m.mu.Lock()
		m.tables[database] = e
		m.mu.Unlock()
		m.log.Debugf("router", m.id, "refreshed routing table for %q: %d readers, %d writers, %d routers",
			database, len(table.Readers), len(table.Writers), len(table.Routers))
		return e, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*entry), nil
}

func (m *Manager) candidateRouters(database string) []string {
	m.mu.Lock()
	e := m.tables[database]
	m.mu.Unlock()

	var routers []string
	if e != nil {
		routers = e.table.Routers
	}
	if len(routers) == 0 {
		if m.addressResolver != nil {
			routers = m.addressResolver(m.initialRouter)
		} else {
			routers = []string{m.initialRouter}
		}
	}
	return routers
}

// readTable tries each router in turn, using a fresh connection borrowed
// from the pool, short-circuiting on any error that is fatal rather than
// router-specific (auth failures, malformed bookmarks, unsupported
// features). The initial router is tried last, as a last resort, if every
// address the caller already knew about fails.
func (m *Manager) readTable(ctx context.Context, routers []string, bookmarks []string, database, impersonatedUser string, auth *dbtype.ReAuthToken) (*dbtype.RoutingTable, error) {
	var lastErr error = &dbtype.RoutingError{Database: database, Err: errNoRouter}

	tryAddrs := routers
	triedInitial := false
	for _, r := range tryAddrs {
		if r == m.initialRouter {
			triedInitial = true
		}
	}

	attempt := func(addr string) (*dbtype.RoutingTable, error) {
		conn, err := m.pool.Acquire(ctx, []string{addr}, auth)
		if err != nil {
			return nil, err
		}
		defer m.pool.Release(ctx, conn)
		return conn.GetRoutingTable(ctx, m.routingContext, bookmarks, database, impersonatedUser)
	}

	for _, addr := range tryAddrs {
		table, err := attempt(addr)
		if err == nil {
			return table, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if isFatalDuringDiscovery(err) {
			return nil, err
		}
		lastErr = fmt.Errorf("router %s: %w", addr, err)
	}

	if !triedInitial {
		table, err := attempt(m.initialRouter)
		if err == nil {
			return table, nil
		}
		lastErr = fmt.Errorf("router %s: %w", m.initialRouter, err)
	}

	return nil, lastErr
}

// Forget removes address from every set (readers, writers, routers) of
// database's cached table, per a Neo.TransientError.General.
// DatabaseUnavailable response.
func (m *Manager) Forget(database, address string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.tables[database]
	if e == nil {
		return
	}
	e.table.Readers = removeAddress(e.table.Readers, address)
	e.table.Writers = removeAddress(e.table.Writers, address)
	e.table.Routers = removeAddress(e.table.Routers, address)
}

// ForgetWriter removes address from just the writer set of database's
// cached table, per a NotALeader/ForbiddenOnReadOnlyDatabase response.
func (m *Manager) ForgetWriter(database, address string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.tables[database]
	if e == nil {
		return
	}
	e.table.Writers = removeAddress(e.table.Writers, address)
}

// Invalidate forces the next tableFor call for database to refresh,
// regardless of TTL.
func (m *Manager) Invalidate(database string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.tables[database]
	if e == nil {
		return
	}
	e.expiresAt = time.Time{}
}

func removeAddress(addresses []string, target string) []string {
	kept := addresses[:0]
	for _, a := range addresses {
		if a != target {
			kept = append(kept, a)
		}
	}
	return kept
}
