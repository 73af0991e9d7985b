package retry

import (
	"context"
	"time"

	"github.com/corvid-graph/bolt-go-driver/internal/dbtype"
)

type connFake struct {
	alive bool
}

func (c *connFake) ServerName() string                 { return "fake" }
func (c *connFake) IsAlive() bool                       { return c.alive }
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
func (c *connFake) Keys(dbtype.StreamHandle) ([]string, error) { return nil, nil }
func (c *connFake) Next(context.Context, dbtype.StreamHandle) (*dbtype.Record, *dbtype.Summary, error) {
	return nil, nil, nil
}
func (c *connFake) Consume(context.Context, dbtype.StreamHandle) (*dbtype.Summary, error) {
	return nil, nil
}
func (c *connFake) Buffer(context.Context, dbtype.StreamHandle) error { return nil }
func (c *connFake) GetRoutingTable(context.Context, map[string]string, []string, string, string) (*dbtype.RoutingTable, error) {
	return nil, nil
}

var _ dbtype.Connection = &connFake{}

type routerFake struct {
	invalidated   []string
	forgotten     []string
	forgotWriters []string
}

func (r *routerFake) Invalidate(database string) {
	r.invalidated = append(r.invalidated, database)
}
func (r *routerFake) Forget(database, address string) {
	r.forgotten = append(r.forgotten, address)
}
func (r *routerFake) ForgetWriter(database, address string) {
	r.forgotWriters = append(r.forgotWriters, address)
}

var _ Router = &routerFake{}
