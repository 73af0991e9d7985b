// Package session implements the unit-of-work a caller drives: a lazily
// leased connection, a bookmark set, at most one open transaction or
// auto-commit cursor at a time, and the retry-driven ExecuteRead/
// ExecuteWrite pair that reruns a transaction function against a fresh
// connection on a retryable failure.
package session

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/corvid-graph/bolt-go-driver/internal/cursor"
	"github.com/corvid-graph/bolt-go-driver/internal/dbtype"
	"github.com/corvid-graph/bolt-go-driver/internal/logging"
	"github.com/corvid-graph/bolt-go-driver/internal/retry"
)

// Pool is the subset of internal/pool.Pool a session needs, kept local so
// this package doesn't have to import internal/pool just to borrow its
// interface.
type Pool interface {
	Acquire(ctx context.Context, addresses []string, auth *dbtype.ReAuthToken) (dbtype.Connection, error)
	Release(ctx context.Context, conn dbtype.Connection)
}

// Router is the subset of internal/router.Manager a session needs to turn
// an access mode into an address, plus the topology-forgetting calls the
// retry engine issues through the same interface.
type Router interface {
	ReaderAddress(ctx context.Context, database string, bookmarks []string, impersonatedUser string, auth *dbtype.ReAuthToken) (string, error)
	WriterAddress(ctx context.Context, database string, bookmarks []string, impersonatedUser string, auth *dbtype.ReAuthToken) (string, error)
	Invalidate(database string)
	Forget(database, address string)
	ForgetWriter(database, address string)
}

// TransactionWork is the caller's unit of work run inside ExecuteRead or
// ExecuteWrite, replayed on its own fresh transaction each retry attempt.
type TransactionWork func(tx *ManagedTransaction) (any, error)

// Config holds the per-session settings carried over from the driver's
// configuration and the caller's session options.
type Config struct {
	Database            string
	DefaultMode         dbtype.AccessMode
	ImpersonatedUser    string
	Bookmarks           []string
	BookmarkManager     BookmarkManager
	FetchSize           int
	MaxTransactionRetryTime time.Duration
	MaxDeadConnections  int
	NotificationConfig  dbtype.NotificationConfig
	Auth                *dbtype.ReAuthToken
}

// Session is the internal session/transaction FSM described by spec.md
// §4.9: a database name, access mode, bookmark set, lazy connection lease,
// and a single open cursor or transaction at any time.
type Session struct {
	log   logging.Logger
	logId string

	pool   Pool
	router Router

	database         string
	defaultMode      dbtype.AccessMode
	impersonatedUser string
	auth             *dbtype.ReAuthToken
	fetchSize        int
	maxRetryTime     time.Duration
	maxDeadConns     int
	notifications    dbtype.NotificationConfig

	bookmarks *bookmarkSet

	openTx     *Transaction
	openCursor *cursor.Cursor
}

// New constructs a Session. A fresh logId is minted with uuid.NewString so
// log lines from this session's lifetime can be correlated even across the
// several connections it may lease over its life.
func New(log logging.Logger, pool Pool, router Router, cfg Config) *Session {
	return &Session{
		log:              log,
		logId:            uuid.NewString(),
		pool:             pool,
		router:           router,
		database:         cfg.Database,
		defaultMode:      cfg.DefaultMode,
		impersonatedUser: cfg.ImpersonatedUser,
		auth:             cfg.Auth,
		fetchSize:        cfg.FetchSize,
		maxRetryTime:     cfg.MaxTransactionRetryTime,
		maxDeadConns:     cfg.MaxDeadConnections,
		notifications:    cfg.NotificationConfig,
		bookmarks:        newBookmarkSet(cfg.BookmarkManager, cfg.Database, cfg.Bookmarks),
	}
}

// LastBookmarks returns the session's current bookmark set.
func (s *Session) LastBookmarks() []string {
	return s.bookmarks.own
}

func normalizeFetchSize(requested, sessionDefault int) int {
	if requested == 0 {
		return sessionDefault
	}
	return requested
}

func (s *Session) mergeTxConfig(cfg dbtype.TxConfig) dbtype.TxConfig {
	if cfg.ImpersonatedUser == "" {
		cfg.ImpersonatedUser = s.impersonatedUser
	}
	if notificationConfigIsZero(cfg.NotificationConfig) {
		cfg.NotificationConfig = s.notifications
	}
	return cfg
}

func notificationConfigIsZero(c dbtype.NotificationConfig) bool {
	return c.MinSev == "" && len(c.DisabledCategories) == 0 && len(c.DisabledClassifications) == 0
}

// drainOpenCursor buffers whatever auto-commit cursor is still open so the
// connection it holds can be reused for the next piece of work, per
// spec.md §4.9 ("running a query when an open cursor exists first drains
// that cursor").
func (s *Session) drainOpenCursor(ctx context.Context) error {
	if s.openCursor == nil {
		return nil
	}
	c := s.openCursor
	s.openCursor = nil
	return c.Buffer(ctx)
}

func (s *Session) getConnection(ctx context.Context, mode dbtype.AccessMode, impersonatedUser string) (dbtype.Connection, string, error) {
	bookmarks, err := s.bookmarks.all(ctx)
	if err != nil {
		return nil, "", err
	}

	var address string
	if mode == dbtype.ReadMode {
		address, err = s.router.ReaderAddress(ctx, s.database, bookmarks, impersonatedUser, s.auth)
	} else {
		address, err = s.router.WriterAddress(ctx, s.database, bookmarks, impersonatedUser, s.auth)
	}
	if err != nil {
		return nil, "", err
	}

	conn, err := s.pool.Acquire(ctx, []string{address}, s.auth)
	if err != nil {
		return nil, address, err
	}
	conn.SelectDatabase(s.database)
	return conn, address, nil
}

// Run starts an auto-commit RUN: BEGIN+RUN+COMMIT elided by the server
// into one round trip, per spec.md §4.9. The returned cursor retrieves the
// session's bookmark and releases the connection back to the pool the
// first time it definitively reaches the end of its stream.
func (s *Session) Run(ctx context.Context, cmd dbtype.Command, txConfig dbtype.TxConfig) (*cursor.Cursor, error) {
	if s.openTx != nil {
		return nil, &dbtype.UsageError{Message: "session has an open explicit transaction"}
	}
	if err := s.drainOpenCursor(ctx); err != nil {
		return nil, err
	}

	txConfig = s.mergeTxConfig(txConfig)
	bookmarks, err := s.bookmarks.all(ctx)
	if err != nil {
		return nil, err
	}
	txConfig.Bookmarks = bookmarks
	cmd.FetchSize = normalizeFetchSize(cmd.FetchSize, s.fetchSize)

	conn, _, err := s.getConnection(ctx, txConfig.Mode, txConfig.ImpersonatedUser)
	if err != nil {
		return nil, err
	}

	stream, err := conn.Run(ctx, cmd, txConfig)
	if err != nil {
		s.pool.Release(ctx, conn)
		return nil, err
	}

	c := cursor.New(conn, stream, func() {
		s.bookmarks.replace(ctx, conn.Bookmark())
		s.pool.Release(ctx, conn)
	})
	s.openCursor = c
	return c, nil
}

// BeginTransaction opens an explicit transaction the caller drives with
// Commit/Rollback. Only one may be open on a session at a time.
func (s *Session) BeginTransaction(ctx context.Context, txConfig dbtype.TxConfig) (*Transaction, error) {
	if s.openTx != nil {
		return nil, &dbtype.UsageError{Message: "session already has an open transaction"}
	}
	if err := s.drainOpenCursor(ctx); err != nil {
		return nil, err
	}

	txConfig = s.mergeTxConfig(txConfig)
	bookmarks, err := s.bookmarks.all(ctx)
	if err != nil {
		return nil, err
	}
	txConfig.Bookmarks = bookmarks

	conn, address, err := s.getConnection(ctx, txConfig.Mode, txConfig.ImpersonatedUser)
	if err != nil {
		return nil, err
	}

	txHandle, err := conn.TxBegin(ctx, txConfig, false)
	if err != nil {
		s.pool.Release(ctx, conn)
		return nil, err
	}

	tx := &Transaction{
		session:   s,
		conn:      conn,
		address:   address,
		txHandle:  txHandle,
		fetchSize: s.fetchSize,
	}
	s.openTx = tx
	return tx, nil
}

// ExecuteRead runs work inside a managed read transaction, retrying on a
// retryable failure per the schedule in internal/retry.
func (s *Session) ExecuteRead(ctx context.Context, work TransactionWork, txConfig dbtype.TxConfig) (any, error) {
	txConfig.Mode = dbtype.ReadMode
	return s.executeTransaction(ctx, txConfig, work)
}

// ExecuteWrite runs work inside a managed write transaction, retrying on a
// retryable failure per the schedule in internal/retry.
func (s *Session) ExecuteWrite(ctx context.Context, work TransactionWork, txConfig dbtype.TxConfig) (any, error) {
	txConfig.Mode = dbtype.WriteMode
	return s.executeTransaction(ctx, txConfig, work)
}

func (s *Session) executeTransaction(ctx context.Context, txConfig dbtype.TxConfig, work TransactionWork) (any, error) {
	txConfig = s.mergeTxConfig(txConfig)
	state := retry.New(s.log, "session", s.logId, s.database, s.maxRetryTime, s.maxDeadConns, s.router)

	var result any
	for state.Continue(ctx) {
		var err error
		result, err = s.runOnce(ctx, txConfig, state, work)
		if err == nil {
			return result, nil
		}
	}
	return nil, state.LastErr()
}

// runOnce is grounded on the teacher's executeTransactionFunction: borrow a
// connection, BEGIN, run the caller's work, COMMIT on success (ROLLBACK on
// failure), feeding every failure point into state.OnFailure so the retry
// loop can classify it and, if it names a topology change, forget the
// stale address.
func (s *Session) runOnce(ctx context.Context, txConfig dbtype.TxConfig, state *retry.State, work TransactionWork) (any, error) {
	bookmarks, err := s.bookmarks.all(ctx)
	if err != nil {
		state.OnFailure(err, nil, "", false)
		return nil, err
	}
	txConfig.Bookmarks = bookmarks

	conn, address, err := s.getConnection(ctx, txConfig.Mode, txConfig.ImpersonatedUser)
	if err != nil {
		state.OnFailure(err, conn, address, false)
		return nil, err
	}

	txHandle, err := conn.TxBegin(ctx, txConfig, true)
	if err != nil {
		s.pool.Release(ctx, conn)
		state.OnFailure(err, conn, address, false)
		return nil, err
	}

	tx := &ManagedTransaction{conn: conn, txHandle: txHandle, fetchSize: s.fetchSize}
	result, workErr := work(tx)
	if tx.openCursor != nil {
		tx.openCursor.Buffer(ctx)
	}
	if workErr != nil {
		conn.TxRollback(ctx, txHandle)
		s.pool.Release(ctx, conn)
		state.OnFailure(workErr, conn, address, false)
		return nil, workErr
	}

	if err := conn.TxCommit(ctx, txHandle); err != nil {
		s.pool.Release(ctx, conn)
		state.OnFailure(err, conn, address, true)
		return nil, err
	}

	s.bookmarks.replace(ctx, conn.Bookmark())
	s.pool.Release(ctx, conn)
	return result, nil
}

// Close ends the session: rolling back any still-open explicit transaction
// and discarding any still-open auto-commit cursor, per spec.md §4.5's
// "dropping an unexhausted cursor asynchronously issues DISCARD(all)
// before releasing the connection".
func (s *Session) Close(ctx context.Context) error {
	var firstErr error
	if s.openTx != nil {
		if err := s.openTx.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
		s.openTx = nil
	}
	if s.openCursor != nil {
		c := s.openCursor
		s.openCursor = nil
		if _, err := c.Consume(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
