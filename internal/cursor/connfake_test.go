package cursor

import (
	"context"
	"time"

	"github.com/corvid-graph/bolt-go-driver/internal/dbtype"
)

// nextCall is one queued response for connFake.Next.
type nextCall struct {
	record  *dbtype.Record
	summary *dbtype.Summary
	err     error
}

// connFake drives Next off a fixed queue, and Consume/Buffer off their own
// hooks, just enough surface for the cursor to exercise.
type connFake struct {
	queue      []nextCall
	consumeSum *dbtype.Summary
	consumeErr error
	bufferErr  error

	consumeCalls int
	bufferCalls  int
}

func (c *connFake) Next(context.Context, dbtype.StreamHandle) (*dbtype.Record, *dbtype.Summary, error) {
	if len(c.queue) == 0 {
		return nil, &dbtype.Summary{}, nil
	}
	next := c.queue[0]
	c.queue = c.queue[1:]
	return next.record, next.summary, next.err
}

func (c *connFake) Consume(context.Context, dbtype.StreamHandle) (*dbtype.Summary, error) {
	c.consumeCalls++
	return c.consumeSum, c.consumeErr
}

func (c *connFake) Buffer(context.Context, dbtype.StreamHandle) error {
	c.bufferCalls++
	return c.bufferErr
}

func (c *connFake) Keys(dbtype.StreamHandle) ([]string, error) { return []string{"n"}, nil }

func (c *connFake) ServerName() string                 { return "fake" }
func (c *connFake) IsAlive() bool                       { return true }
func (c *connFake) HasFailed() bool                     { return false }
func (c *connFake) Birthdate() time.Time                { return time.Time{} }
func (c *connFake) IdleDate() time.Time                 { return time.Time{} }
func (c *connFake) Close(context.Context)               {}
func (c *connFake) Reset(context.Context)               {}
func (c *connFake) ForceReset(context.Context)          {}
func (c *connFake) Bookmark() string                    { return "" }
func (c *connFake) ServerVersion() string               { return "fake/1.0" }
func (c *connFake) Version() dbtype.ProtocolVersion     { return dbtype.ProtocolVersion{} }
func (c *connFake) Database() string                    { return "" }
func (c *connFake) SelectDatabase(string)                {}
func (c *connFake) SetBoltLogger(dbtype.BoltLogger)      {}
func (c *connFake) ResetAuth()                           {}
func (c *connFake) GetCurrentAuth() (dbtype.TokenManager, dbtype.Token) {
	return nil, dbtype.Token{}
}
func (c *connFake) ReAuth(context.Context, *dbtype.ReAuthToken) error { return nil }
func (c *connFake) Connect(context.Context, *dbtype.ReAuthToken, string, map[string]string, dbtype.NotificationConfig) error {
	return nil
}
func (c *connFake) TxBegin(context.Context, dbtype.TxConfig, bool) (dbtype.TxHandle, error) {
	return 0, nil
}
func (c *connFake) TxCommit(context.Context, dbtype.TxHandle) error   { return nil }
func (c *connFake) TxRollback(context.Context, dbtype.TxHandle) error { return nil }
func (c *connFake) Run(context.Context, dbtype.Command, dbtype.TxConfig) (dbtype.StreamHandle, error) {
	return nil, nil
}
func (c *connFake) RunTx(context.Context, dbtype.TxHandle, dbtype.Command) (dbtype.StreamHandle, error) {
	return nil, nil
}
func (c *connFake) GetRoutingTable(context.Context, map[string]string, []string, string, string) (*dbtype.RoutingTable, error) {
	return nil, nil
}

var _ dbtype.Connection = &connFake{}
