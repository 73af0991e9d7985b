// Package cursor implements the lazy, backpressured result stream a
// session hands back from Run: records are pulled from the underlying
// connection one at a time (or peeked one ahead) rather than the whole
// result set being materialised up front.
package cursor

import (
	"context"

	"github.com/corvid-graph/bolt-go-driver/internal/dbtype"
)

// Cursor is grounded on the teacher's resultWithContext: a thin wrapper
// around a dbtype.Connection + dbtype.StreamHandle pair that turns the
// connection's Next/Consume/Buffer primitives into a conventional
// advance-then-read iterator, plus one-record-of-lookahead peeking.
type Cursor struct {
	conn   dbtype.Connection
	stream dbtype.StreamHandle

	record  *dbtype.Record
	summary *dbtype.Summary
	err     error

	peekedRecord  *dbtype.Record
	peekedSummary *dbtype.Summary
	peeked        bool

	onConsumed func()
}

// New wraps stream, a handle obtained from conn.Run/RunTx. onConsumed, if
// non-nil, fires exactly once, the first time the cursor definitively
// reaches the end of the stream (via Consume or advancing past the last
// record) — a session uses it to retrieve bookmarks for an autocommit
// transaction once its result is known to be fully drained or discarded.
func New(conn dbtype.Connection, stream dbtype.StreamHandle, onConsumed func()) *Cursor {
	return &Cursor{conn: conn, stream: stream, onConsumed: onConsumed}
}

// Keys returns the field names of the result, available as soon as the
// stream's RUN has succeeded, before any record is pulled.
func (c *Cursor) Keys() ([]string, error) {
	return c.conn.Keys(c.stream)
}

// Next advances the cursor by one record and reports whether one was
// available; Record reflects the new position afterward.
func (c *Cursor) Next(ctx context.Context) bool {
	c.advance(ctx)
	return c.record != nil
}

// PeekRecord reports whether a record follows the current one, without
// advancing the cursor past it.
func (c *Cursor) PeekRecord(ctx context.Context) (*dbtype.Record, bool) {
	c.peek(ctx)
	return c.peekedRecord, c.peekedRecord != nil
}

// Record returns the record the most recent Next landed on, or nil past
// the end of the stream.
func (c *Cursor) Record() *dbtype.Record {
	return c.record
}

// Err returns the error that ended the stream, if any.
func (c *Cursor) Err() error {
	return c.err
}

// Collect pulls every remaining record into memory and returns them.
func (c *Cursor) Collect(ctx context.Context) ([]*dbtype.Record, error) {
	var records []*dbtype.Record
	for c.summary == nil && c.err == nil {
		c.advance(ctx)
		if c.record != nil {
			records = append(records, c.record)
		}
	}
	if c.err != nil {
		return nil, c.err
	}
	return records, nil
}

// Single returns the one and only record the stream was expected to
// produce, failing if it produced zero or more than one.
func (c *Cursor) Single(ctx context.Context) (*dbtype.Record, error) {
	c.advance(ctx)
	if c.err != nil {
		return nil, c.err
	}
	if c.summary != nil {
		c.err = &dbtype.UsageError{Message: "result contains no records"}
		return nil, c.err
	}
	single := c.record

	c.advance(ctx)
	if c.record != nil {
		c.summary, _ = c.conn.Consume(ctx, c.stream)
		c.fireOnConsumed()
		c.err = &dbtype.UsageError{Message: "result contains more than one record"}
		c.record = nil
		return nil, c.err
	}
	if c.err != nil {
		return nil, c.err
	}

	c.record = single
	return single, nil
}

// Consume discards every remaining record and returns the query's
// summary.
func (c *Cursor) Consume(ctx context.Context) (*dbtype.Summary, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.record = nil
	c.summary, c.err = c.conn.Consume(ctx, c.stream)
	c.fireOnConsumed()
	if c.err != nil {
		return nil, c.err
	}
	return c.summary, nil
}

// Buffer eagerly pulls every remaining record into the connection's own
// buffer without materialising them here, freeing the connection to run
// further work (or return to the pool) while this cursor still holds
// unread records. Used when a session must reuse its connection before
// the caller has finished consuming a previous auto-commit result.
func (c *Cursor) Buffer(ctx context.Context) error {
	c.err = c.conn.Buffer(ctx, c.stream)
	return c.err
}

func (c *Cursor) advance(ctx context.Context) {
	if c.peeked {
		c.record, c.peekedRecord = c.peekedRecord, nil
		c.summary, c.peekedSummary = c.peekedSummary, nil
		c.peeked = false
	} else {
		c.record, c.summary, c.err = c.conn.Next(ctx, c.stream)
	}
	if c.record == nil {
		c.fireOnConsumed()
	}
}

func (c *Cursor) peek(ctx context.Context) {
	if !c.peeked {
		c.peekedRecord, c.peekedSummary, c.err = c.conn.Next(ctx, c.stream)
		c.peeked = true
	}
}

func (c *Cursor) fireOnConsumed() {
	if c.onConsumed != nil {
		onConsumed := c.onConsumed
		c.onConsumed = nil
		onConsumed()
	}
}
