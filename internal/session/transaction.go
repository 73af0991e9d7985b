package session

import (
	"context"

	"github.com/corvid-graph/bolt-go-driver/internal/cursor"
	"github.com/corvid-graph/bolt-go-driver/internal/dbtype"
)

func transactionClosedError() error {
	return &dbtype.UsageError{Message: "transaction already closed"}
}

// ManagedTransaction is handed to a TransactionWork callback running inside
// ExecuteRead/ExecuteWrite. Grounded on the teacher's managedTransaction:
// it can Run queries but has no Commit/Rollback of its own — the retry
// loop in session.go owns the BEGIN/COMMIT/ROLLBACK framing around it.
type ManagedTransaction struct {
	conn       dbtype.Connection
	txHandle   dbtype.TxHandle
	fetchSize  int
	openCursor *cursor.Cursor
}

// Run executes cmd inside the managed transaction, draining whichever
// cursor this transaction last handed out first, since only one may be
// open at a time.
func (t *ManagedTransaction) Run(ctx context.Context, cmd dbtype.Command) (*cursor.Cursor, error) {
	if t.openCursor != nil {
		c := t.openCursor
		t.openCursor = nil
		if err := c.Buffer(ctx); err != nil {
			return nil, err
		}
	}
	cmd.FetchSize = normalizeFetchSize(cmd.FetchSize, t.fetchSize)
	stream, err := t.conn.RunTx(ctx, t.txHandle, cmd)
	if err != nil {
		return nil, err
	}
	c := cursor.New(t.conn, stream, nil)
	t.openCursor = c
	return c, nil
}

// Transaction is an explicit transaction opened by Session.BeginTransaction,
// driven by the caller through Run/Commit/Rollback/Close. Grounded on the
// teacher's explicitTransaction.
type Transaction struct {
	session    *Session
	conn       dbtype.Connection
	address    string
	txHandle   dbtype.TxHandle
	fetchSize  int
	openCursor *cursor.Cursor
	done       bool
}

// Run executes cmd inside the transaction. Only one cursor may be open on
// a transaction at a time; starting a new one buffers the previous.
func (t *Transaction) Run(ctx context.Context, cmd dbtype.Command) (*cursor.Cursor, error) {
	if t.done {
		return nil, transactionClosedError()
	}
	if t.openCursor != nil {
		c := t.openCursor
		t.openCursor = nil
		if err := c.Buffer(ctx); err != nil {
			return nil, err
		}
	}
	cmd.FetchSize = normalizeFetchSize(cmd.FetchSize, t.fetchSize)
	stream, err := t.conn.RunTx(ctx, t.txHandle, cmd)
	if err != nil {
		return nil, err
	}
	c := cursor.New(t.conn, stream, nil)
	t.openCursor = c
	return c, nil
}

// Commit sends COMMIT, replaces the session's bookmark set with the one
// returned in its metadata, and releases the underlying connection.
func (t *Transaction) Commit(ctx context.Context) error {
	if t.done {
		return transactionClosedError()
	}
	if err := t.drainCursor(ctx); err != nil {
		return err
	}
	err := t.conn.TxCommit(ctx, t.txHandle)
	if err == nil {
		t.session.bookmarks.replace(ctx, t.conn.Bookmark())
	}
	t.finish(ctx)
	return err
}

// Rollback sends ROLLBACK and releases the underlying connection without
// touching the session's bookmark set.
func (t *Transaction) Rollback(ctx context.Context) error {
	if t.done {
		return transactionClosedError()
	}
	if err := t.drainCursor(ctx); err != nil {
		return err
	}
	err := t.conn.TxRollback(ctx, t.txHandle)
	t.finish(ctx)
	return err
}

// Close rolls the transaction back if the caller never explicitly
// committed or rolled it back. Safe to call more than once.
func (t *Transaction) Close(ctx context.Context) error {
	if t.done {
		return nil
	}
	return t.Rollback(ctx)
}

func (t *Transaction) drainCursor(ctx context.Context) error {
	if t.openCursor == nil {
		return nil
	}
	c := t.openCursor
	t.openCursor = nil
	return c.Buffer(ctx)
}

func (t *Transaction) finish(ctx context.Context) {
	t.session.pool.Release(ctx, t.conn)
	t.session.openTx = nil
	t.done = true
}
