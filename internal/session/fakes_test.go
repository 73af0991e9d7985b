package session

import (
	"context"
	"time"

	"github.com/corvid-graph/bolt-go-driver/internal/dbtype"
)

// connFake is just enough of dbtype.Connection for the session FSM to
// drive: configurable TxBegin/TxCommit/TxRollback/Run/RunTx failures, a
// queue of Next results, and a bookmark string set by whatever COMMIT
// response is being faked.
type connFake struct {
	alive bool

	txBeginErr  error
	txCommitErr error

	runErr error
	runTx  dbtype.StreamHandle

	nextQueue []nextResult
	consumeSum *dbtype.Summary
	consumeErr error
	bufferErr  error
	bufferCalls int

	bookmark string

	selectedDatabase string
	closed           bool
}

type nextResult struct {
	record  *dbtype.Record
	summary *dbtype.Summary
	err     error
}

func newConnFake() *connFake {
	return &connFake{alive: true, runTx: int64(1)}
}

func (c *connFake) Connect(context.Context, *dbtype.ReAuthToken, string, map[string]string, dbtype.NotificationConfig) error {
	return nil
}

func (c *connFake) TxBegin(context.Context, dbtype.TxConfig, bool) (dbtype.TxHandle, error) {
	if c.txBeginErr != nil {
		return 0, c.txBeginErr
	}
	return dbtype.TxHandle(1), nil
}

func (c *connFake) TxCommit(context.Context, dbtype.TxHandle) error {
	return c.txCommitErr
}

func (c *connFake) TxRollback(context.Context, dbtype.TxHandle) error { return nil }

func (c *connFake) Run(context.Context, dbtype.Command, dbtype.TxConfig) (dbtype.StreamHandle, error) {
	if c.runErr != nil {
		return nil, c.runErr
	}
	return c.runTx, nil
}

func (c *connFake) RunTx(context.Context, dbtype.TxHandle, dbtype.Command) (dbtype.StreamHandle, error) {
	if c.runErr != nil {
		return nil, c.runErr
	}
	return c.runTx, nil
}

func (c *connFake) Keys(dbtype.StreamHandle) ([]string, error) { return []string{"n"}, nil }

func (c *connFake) Next(context.Context, dbtype.StreamHandle) (*dbtype.Record, *dbtype.Summary, error) {
	if len(c.nextQueue) == 0 {
		return nil, &dbtype.Summary{}, nil
	}
	next := c.nextQueue[0]
	c.nextQueue = c.nextQueue[1:]
	return next.record, next.summary, next.err
}

func (c *connFake) Consume(context.Context, dbtype.StreamHandle) (*dbtype.Summary, error) {
	return c.consumeSum, c.consumeErr
}

func (c *connFake) Buffer(context.Context, dbtype.StreamHandle) error {
	c.bufferCalls++
	return c.bufferErr
}

func (c *connFake) GetRoutingTable(context.Context, map[string]string, []string, string, string) (*dbtype.RoutingTable, error) {
	return nil, nil
}

func (c *connFake) SelectDatabase(db string) { c.selectedDatabase = db }
func (c *connFake) Database() string         { return c.selectedDatabase }

func (c *connFake) Bookmark() string          { return c.bookmark }
func (c *connFake) ServerName() string        { return "fake" }
func (c *connFake) ServerVersion() string      { return "fake/1.0" }
func (c *connFake) Version() dbtype.ProtocolVersion { return dbtype.ProtocolVersion{} }

func (c *connFake) IsAlive() bool        { return c.alive }
func (c *connFake) HasFailed() bool      { return false }
func (c *connFake) Birthdate() time.Time { return time.Time{} }
func (c *connFake) IdleDate() time.Time  { return time.Time{} }

func (c *connFake) Reset(context.Context)      {}
func (c *connFake) ForceReset(context.Context) {}
func (c *connFake) ReAuth(context.Context, *dbtype.ReAuthToken) error { return nil }
func (c *connFake) ResetAuth()                                       {}
func (c *connFake) GetCurrentAuth() (dbtype.TokenManager, dbtype.Token) {
	return nil, dbtype.Token{}
}

func (c *connFake) SetBoltLogger(dbtype.BoltLogger) {}
func (c *connFake) Close(context.Context)           { c.closed = true }

var _ dbtype.Connection = &connFake{}

// poolFake hands out connections from a fixed queue and records releases.
type poolFake struct {
	conns      []*connFake
	acquireErr error
	released   []dbtype.Connection
}

func (p *poolFake) Acquire(context.Context, []string, *dbtype.ReAuthToken) (dbtype.Connection, error) {
	if p.acquireErr != nil {
		return nil, p.acquireErr
	}
	if len(p.conns) == 0 {
		return newConnFake(), nil
	}
	conn := p.conns[0]
	p.conns = p.conns[1:]
	return conn, nil
}

func (p *poolFake) Release(_ context.Context, conn dbtype.Connection) {
	p.released = append(p.released, conn)
}

// routerFake always resolves to the same address and records any
// topology-forgetting calls the retry engine issues through it.
type routerFake struct {
	address         string
	readerErr       error
	writerErr       error
	invalidated     []string
	forgotten       []string
	forgottenWriter []string
}

func (r *routerFake) ReaderAddress(context.Context, string, []string, string, *dbtype.ReAuthToken) (string, error) {
	if r.readerErr != nil {
		return "", r.readerErr
	}
	return r.address, nil
}

func (r *routerFake) WriterAddress(context.Context, string, []string, string, *dbtype.ReAuthToken) (string, error) {
	if r.writerErr != nil {
		return "", r.writerErr
	}
	return r.address, nil
}

func (r *routerFake) Invalidate(database string)              { r.invalidated = append(r.invalidated, database) }
func (r *routerFake) Forget(_, address string)                 { r.forgotten = append(r.forgotten, address) }
func (r *routerFake) ForgetWriter(_, address string)           { r.forgottenWriter = append(r.forgottenWriter, address) }

var _ Pool = &poolFake{}
var _ Router = &routerFake{}
