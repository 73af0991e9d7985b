package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/corvid-graph/bolt-go-driver/internal/dbtype"
	"github.com/corvid-graph/bolt-go-driver/internal/logging"
)

var ctxBg = context.Background()

func newTestSession(pool Pool, router Router) *Session {
	return New(logging.Void{}, pool, router, Config{
		Database:                "neo4j",
		FetchSize:                1000,
		MaxTransactionRetryTime:  30 * time.Second,
		MaxDeadConnections:       3,
	})
}

func TestSessionRunReleasesConnectionOnceCursorIsConsumed(t *testing.T) {
	conn := newConnFake()
	conn.bookmark = "bm:1"
	conn.nextQueue = []nextResult{{summary: &dbtype.Summary{}}}
	pool := &poolFake{conns: []*connFake{conn}}
	router := &routerFake{address: "a:1"}
	s := newTestSession(pool, router)

	c, err := s.Run(ctxBg, dbtype.Command{Cypher: "RETURN 1"}, dbtype.TxConfig{})
	if err != nil {
		t.Fatalf("Run: %s", err)
	}
	if len(pool.released) != 0 {
		t.Fatal("expected connection not yet released before the stream ends")
	}

	if c.Next(ctxBg) {
		t.Fatal("expected immediate end of stream")
	}
	if len(pool.released) != 1 {
		t.Fatalf("expected connection released once stream ended, released=%d", len(pool.released))
	}
	if got := s.LastBookmarks(); len(got) != 1 || got[0] != "bm:1" {
		t.Fatalf("expected bookmark replaced with bm:1, got %v", got)
	}
}

func TestSessionRunDrainsPreviousAutoCommitCursor(t *testing.T) {
	conn1 := newConnFake()
	conn2 := newConnFake()
	conn2.nextQueue = []nextResult{{summary: &dbtype.Summary{}}}
	pool := &poolFake{conns: []*connFake{conn1, conn2}}
	router := &routerFake{address: "a:1"}
	s := newTestSession(pool, router)

	if _, err := s.Run(ctxBg, dbtype.Command{Cypher: "RETURN 1"}, dbtype.TxConfig{}); err != nil {
		t.Fatalf("first Run: %s", err)
	}
	if _, err := s.Run(ctxBg, dbtype.Command{Cypher: "RETURN 2"}, dbtype.TxConfig{}); err != nil {
		t.Fatalf("second Run: %s", err)
	}
	if conn1.bufferCalls != 1 {
		t.Fatalf("expected the first cursor to be buffered before the second Run, bufferCalls=%d", conn1.bufferCalls)
	}
}

func TestSessionBeginTransactionRejectsSecondOpenTransaction(t *testing.T) {
	pool := &poolFake{conns: []*connFake{newConnFake()}}
	router := &routerFake{address: "a:1"}
	s := newTestSession(pool, router)

	if _, err := s.BeginTransaction(ctxBg, dbtype.TxConfig{}); err != nil {
		t.Fatalf("BeginTransaction: %s", err)
	}
	if _, err := s.BeginTransaction(ctxBg, dbtype.TxConfig{}); err == nil {
		t.Fatal("expected second BeginTransaction to fail while one is still open")
	}
}

func TestTransactionCommitReplacesBookmarkAndReleasesConnection(t *testing.T) {
	conn := newConnFake()
	conn.bookmark = "bm:42"
	pool := &poolFake{conns: []*connFake{conn}}
	router := &routerFake{address: "a:1"}
	s := newTestSession(pool, router)

	tx, err := s.BeginTransaction(ctxBg, dbtype.TxConfig{})
	if err != nil {
		t.Fatalf("BeginTransaction: %s", err)
	}
	if err := tx.Commit(ctxBg); err != nil {
		t.Fatalf("Commit: %s", err)
	}
	if got := s.LastBookmarks(); len(got) != 1 || got[0] != "bm:42" {
		t.Fatalf("expected bookmark bm:42, got %v", got)
	}
	if len(pool.released) != 1 {
		t.Fatal("expected connection released after commit")
	}
	if s.openTx != nil {
		t.Fatal("expected session to clear its open transaction after commit")
	}
}

func TestTransactionRollbackDoesNotReplaceBookmark(t *testing.T) {
	conn := newConnFake()
	conn.bookmark = "bm:should-not-be-used"
	pool := &poolFake{conns: []*connFake{conn}}
	router := &routerFake{address: "a:1"}
	s := newTestSession(pool, router)

	tx, _ := s.BeginTransaction(ctxBg, dbtype.TxConfig{})
	if err := tx.Rollback(ctxBg); err != nil {
		t.Fatalf("Rollback: %s", err)
	}
	if got := s.LastBookmarks(); len(got) != 0 {
		t.Fatalf("expected no bookmark after rollback, got %v", got)
	}
}

func TestTransactionOperationsFailOnceClosed(t *testing.T) {
	pool := &poolFake{conns: []*connFake{newConnFake()}}
	router := &routerFake{address: "a:1"}
	s := newTestSession(pool, router)

	tx, _ := s.BeginTransaction(ctxBg, dbtype.TxConfig{})
	tx.Close(ctxBg)

	if _, err := tx.Run(ctxBg, dbtype.Command{Cypher: "RETURN 1"}); err == nil {
		t.Fatal("expected Run to fail on a closed transaction")
	}
	if err := tx.Commit(ctxBg); err == nil {
		t.Fatal("expected Commit to fail on a closed transaction")
	}
	// Close is idempotent.
	if err := tx.Close(ctxBg); err != nil {
		t.Fatalf("expected a second Close to be a no-op, got %s", err)
	}
}

func TestSessionExecuteWriteRetriesOnRetryableError(t *testing.T) {
	failingConn := newConnFake()
	failingConn.txCommitErr = &dbtype.Neo4jError{Code: "Neo.ClientError.Cluster.NotALeader", Msg: "not a leader"}
	succeedingConn := newConnFake()
	succeedingConn.bookmark = "bm:committed"

	pool := &poolFake{conns: []*connFake{failingConn, succeedingConn}}
	router := &routerFake{address: "a:1"}
	s := newTestSession(pool, router)
	s.maxRetryTime = time.Minute

	calls := 0
	result, err := s.ExecuteWrite(ctxBg, func(tx *ManagedTransaction) (any, error) {
		calls++
		return "ok", nil
	}, dbtype.TxConfig{})
	if err != nil {
		t.Fatalf("ExecuteWrite: %s", err)
	}
	if result != "ok" {
		t.Fatalf("expected result %q, got %v", "ok", result)
	}
	if calls != 2 {
		t.Fatalf("expected the work function to run twice (once per attempt), ran %d times", calls)
	}
	if len(router.forgottenWriter) != 1 || router.forgottenWriter[0] != "a:1" {
		t.Fatalf("expected the writer address to be forgotten after NotALeader, got %v", router.forgottenWriter)
	}
}

func TestSessionExecuteReadDoesNotRetryClientErrors(t *testing.T) {
	conn := newConnFake()
	conn.txBeginErr = &dbtype.Neo4jError{Code: "Neo.ClientError.Statement.SyntaxError", Msg: "bad cypher"}
	pool := &poolFake{conns: []*connFake{conn}}
	router := &routerFake{address: "a:1"}
	s := newTestSession(pool, router)

	calls := 0
	_, err := s.ExecuteRead(ctxBg, func(tx *ManagedTransaction) (any, error) {
		calls++
		return nil, nil
	}, dbtype.TxConfig{})
	if err == nil {
		t.Fatal("expected ExecuteRead to surface the syntax error")
	}
	if calls != 0 {
		t.Fatalf("expected the work function never to run, ran %d times", calls)
	}
}

func TestSessionCloseDiscardsOpenAutoCommitCursor(t *testing.T) {
	conn := newConnFake()
	conn.nextQueue = []nextResult{{record: &dbtype.Record{Keys: []string{"n"}, Values: []any{1}}}}
	conn.consumeSum = &dbtype.Summary{}
	pool := &poolFake{conns: []*connFake{conn}}
	router := &routerFake{address: "a:1"}
	s := newTestSession(pool, router)

	if _, err := s.Run(ctxBg, dbtype.Command{Cypher: "RETURN 1"}, dbtype.TxConfig{}); err != nil {
		t.Fatalf("Run: %s", err)
	}
	if err := s.Close(ctxBg); err != nil {
		t.Fatalf("Close: %s", err)
	}
	if len(pool.released) != 1 {
		t.Fatalf("expected Close to release the connection held by the open cursor, released=%d", len(pool.released))
	}
}

func TestSessionCloseRollsBackOpenTransaction(t *testing.T) {
	pool := &poolFake{conns: []*connFake{newConnFake()}}
	router := &routerFake{address: "a:1"}
	s := newTestSession(pool, router)

	if _, err := s.BeginTransaction(ctxBg, dbtype.TxConfig{}); err != nil {
		t.Fatalf("BeginTransaction: %s", err)
	}
	if err := s.Close(ctxBg); err != nil {
		t.Fatalf("Close: %s", err)
	}
	if len(pool.released) != 1 {
		t.Fatal("expected Close to roll back and release the open transaction's connection")
	}
}

func TestSessionRunFailsWhileExplicitTransactionIsOpen(t *testing.T) {
	pool := &poolFake{conns: []*connFake{newConnFake(), newConnFake()}}
	router := &routerFake{address: "a:1"}
	s := newTestSession(pool, router)

	if _, err := s.BeginTransaction(ctxBg, dbtype.TxConfig{}); err != nil {
		t.Fatalf("BeginTransaction: %s", err)
	}
	if _, err := s.Run(ctxBg, dbtype.Command{Cypher: "RETURN 1"}, dbtype.TxConfig{}); err == nil {
		t.Fatal("expected Run to fail while an explicit transaction is open")
	}
}

func TestSessionGetConnectionFailurePropagatesRouterError(t *testing.T) {
	pool := &poolFake{}
	wantErr := errors.New("no writers available")
	router := &routerFake{writerErr: wantErr}
	s := newTestSession(pool, router)

	_, err := s.ExecuteWrite(ctxBg, func(tx *ManagedTransaction) (any, error) {
		return nil, nil
	}, dbtype.TxConfig{})
	if err == nil {
		t.Fatal("expected ExecuteWrite to fail when the router can't resolve a writer")
	}
}
