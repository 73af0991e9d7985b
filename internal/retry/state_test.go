package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/corvid-graph/bolt-go-driver/internal/dbtype"
	"github.com/corvid-graph/bolt-go-driver/internal/logging"
)

var ctxBg = context.Background()

func newTestState(router Router) *State {
	s := New(logging.Void{}, "TEST", "state-1", "neo4j", 10*time.Second, 2, router)
	s.Sleep = func(context.Context, time.Duration) {}
	return s
}

func TestStateRetriesOnNoConnection(t *testing.T) {
	s := newTestState(nil)
	s.OnFailure(&dbtype.PoolTimeoutError{Address: "srv1"}, nil, "", false)
	if !s.Continue(ctxBg) {
		t.Fatal("expected a missing connection to be retryable")
	}
}

func TestStateDoesNotRetryPastDeadline(t *testing.T) {
	s := newTestState(nil)
	n := time.Now()
	s.Now = func() time.Time { return n }

	s.OnFailure(&dbtype.Neo4jError{Code: "Neo.TransientError.Some.Some"}, &connFake{alive: true}, "", false)
	if !s.Continue(ctxBg) {
		t.Fatal("expected the first transient failure to be retryable")
	}

	n = n.Add(20 * time.Second)
	s.OnFailure(&dbtype.Neo4jError{Code: "Neo.TransientError.Some.Some"}, &connFake{alive: true}, "", false)
	if s.Continue(ctxBg) {
		t.Fatal("expected the retry budget to be exhausted")
	}
}

func TestStateRetriesDeadConnectionUpToMax(t *testing.T) {
	s := newTestState(nil)
	dead := &connFake{alive: false}

	for i := 0; i < 2; i++ {
		s.OnFailure(errors.New("broken pipe"), dead, "", false)
		if !s.Continue(ctxBg) {
			t.Fatalf("expected dead-connection attempt %d to be retryable", i)
		}
	}

	s.OnFailure(errors.New("broken pipe"), dead, "", false)
	if s.Continue(ctxBg) {
		t.Fatal("expected retries to stop once MaxDeadConnections is exceeded")
	}
}

func TestStateNeverRetriesDeadConnectionDuringCommit(t *testing.T) {
	s := newTestState(nil)
	s.OnFailure(errors.New("broken pipe"), &connFake{alive: false}, "", true)
	if s.Continue(ctxBg) {
		t.Fatal("expected a dead connection during commit to never be retried")
	}
	if _, ok := s.LastErr().(*CommitFailedDeadError); !ok {
		t.Fatalf("expected *CommitFailedDeadError, got %T", s.LastErr())
	}
}

func TestStateForgetsWriterOnNotALeader(t *testing.T) {
	router := &routerFake{}
	s := newTestState(router)
	s.OnFailure(&dbtype.Neo4jError{Code: "Neo.ClientError.Cluster.NotALeader"}, &connFake{alive: true}, "wr1:7687", false)
	if !s.Continue(ctxBg) {
		t.Fatal("expected NotALeader to be retryable")
	}
	if len(router.forgotWriters) != 1 || router.forgotWriters[0] != "wr1:7687" {
		t.Fatalf("expected wr1:7687 forgotten as a writer, got %v", router.forgotWriters)
	}
	if len(router.forgotten) != 0 {
		t.Fatal("expected NotALeader to leave the reader/router sets untouched")
	}
}

func TestStateForgetsEverySetOnDatabaseUnavailable(t *testing.T) {
	router := &routerFake{}
	s := newTestState(router)
	s.OnFailure(&dbtype.Neo4jError{Code: "Neo.TransientError.General.DatabaseUnavailable"}, &connFake{alive: true}, "srv1:7687", false)
	if !s.Continue(ctxBg) {
		t.Fatal("expected DatabaseUnavailable to be retryable")
	}
	if len(router.forgotten) != 1 || router.forgotten[0] != "srv1:7687" {
		t.Fatalf("expected srv1:7687 forgotten from every set, got %v", router.forgotten)
	}
}

func TestStateDoesNotRetryClientErrors(t *testing.T) {
	s := newTestState(nil)
	s.OnFailure(errors.New("bad cypher"), &connFake{alive: true}, "", false)
	if s.Continue(ctxBg) {
		t.Fatal("expected an unclassified user error to not be retried")
	}
}

func TestStateDoesNotRetryAuthFailures(t *testing.T) {
	s := newTestState(nil)
	s.OnFailure(&dbtype.Neo4jError{Code: "Neo.ClientError.Security.Unauthorized"}, nil, "", false)
	if s.Continue(ctxBg) {
		t.Fatal("expected an auth failure to not be retried")
	}
}

func TestStateBacksOffExponentiallyWithJitter(t *testing.T) {
	s := newTestState(nil)
	var delays []time.Duration
	s.Sleep = func(_ context.Context, d time.Duration) { delays = append(delays, d) }

	for i := 0; i < 3; i++ {
		s.OnFailure(&dbtype.PoolTimeoutError{Address: "srv1"}, nil, "", false)
		if !s.Continue(ctxBg) {
			t.Fatalf("expected attempt %d to be retryable", i)
		}
	}

	if len(delays) != 3 {
		t.Fatalf("expected 3 recorded delays, got %d", len(delays))
	}
	for i := 1; i < len(delays); i++ {
		if delays[i] <= delays[i-1]/2 {
			t.Fatalf("expected delay %d (%s) to roughly grow from delay %d (%s)", i, delays[i], i-1, delays[i-1])
		}
	}
}

func TestStateContinueStopsWhenContextCancelled(t *testing.T) {
	s := newTestState(nil)
	s.Sleep = sleepCtx

	ctx, cancel := context.WithCancel(ctxBg)
	cancel()

	s.OnFailure(&dbtype.PoolTimeoutError{Address: "srv1"}, nil, "", false)
	if s.Continue(ctx) {
		t.Fatal("expected Continue to stop once the context is already cancelled")
	}
}
