package dbtype

import (
	"context"
	"time"
)

// Token is an authentication token's raw wire representation: a scheme tag
// plus whatever scheme-specific fields it carries (principal, credentials,
// realm, ...). It is passed to HELLO/LOGON verbatim.
type Token struct {
	Tokens map[string]any
}

// TokenManager supplies a Connection with credentials and is consulted
// again whenever the server rejects them. Implementations must be
// thread-safe and must never call back into the driver.
type TokenManager interface {
	GetAuthToken(ctx context.Context) (Token, error)
	HandleSecurityException(ctx context.Context, token Token, err *Neo4jError) (bool, error)
}

// ProtocolVersion is the negotiated Bolt major.minor pair.
type ProtocolVersion struct {
	Major, Minor int
}

// ConnectionErrorListener lets a Connection report failures up to the pool
// and router without importing either package.
type ConnectionErrorListener interface {
	OnNeo4jError(ctx context.Context, conn Connection, err *Neo4jError) error
	OnIOError(ctx context.Context, conn Connection, err error)
	OnDialError(ctx context.Context, serverName string, err error)
}

// Connection is the abstract Bolt connection every version-specific
// implementation in internal/bolt satisfies and every layer above
// (internal/pool, internal/session, internal/router) depends on.
type Connection interface {
	Connect(ctx context.Context, auth *ReAuthToken, userAgent string, routingContext map[string]string, notificationConfig NotificationConfig) error

	TxBegin(ctx context.Context, txConfig TxConfig, syncMessages bool) (TxHandle, error)
	TxCommit(ctx context.Context, tx TxHandle) error
	TxRollback(ctx context.Context, tx TxHandle) error

	Run(ctx context.Context, cmd Command, txConfig TxConfig) (StreamHandle, error)
	RunTx(ctx context.Context, tx TxHandle, cmd Command) (StreamHandle, error)

	Keys(stream StreamHandle) ([]string, error)
	Next(ctx context.Context, stream StreamHandle) (*Record, *Summary, error)
	Consume(ctx context.Context, stream StreamHandle) (*Summary, error)
	Buffer(ctx context.Context, stream StreamHandle) error

	GetRoutingTable(ctx context.Context, routingContext map[string]string, bookmarks []string, database, impersonatedUser string) (*RoutingTable, error)

	SelectDatabase(database string)
	Database() string

	Bookmark() string
	ServerName() string
	ServerVersion() string
	Version() ProtocolVersion

	IsAlive() bool
	HasFailed() bool
	Birthdate() time.Time
	IdleDate() time.Time

	Reset(ctx context.Context)
	ForceReset(ctx context.Context)
	ReAuth(ctx context.Context, auth *ReAuthToken) error
	ResetAuth()
	GetCurrentAuth() (TokenManager, Token)

	SetBoltLogger(logger BoltLogger)
	Close(ctx context.Context)
}

// BoltLogger receives the raw wire-level trace of client/server messages,
// independent of the structured Logger used for driver diagnostics.
type BoltLogger interface {
	LogClientMessage(context string, format string, args ...any)
	LogServerMessage(context string, format string, args ...any)
}

// ClusterDiscovery is implemented by a Connection capable of running
// ROUTE/legacy-RUN-based routing table discovery.
type ClusterDiscovery interface {
	GetRoutingTable(ctx context.Context, database string, routingContext map[string]string, bookmarks []string, impersonatedUser string) (*RoutingTable, error)
}
