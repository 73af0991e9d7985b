// Package retry implements the exponential-backoff replay loop that
// shields transactional work from transient failures and topology
// changes: a retryable error forgets the stale routing address if the
// error says to, sleeps out the current throttle, and signals the
// caller to run the work again on a freshly acquired connection.
package retry

import (
	"context"
	"time"

	"github.com/corvid-graph/bolt-go-driver/internal/dbtype"
	"github.com/corvid-graph/bolt-go-driver/internal/logging"
)

// Router is the subset of router.Manager the retry engine needs to act on
// a cluster-topology error without importing internal/router directly.
type Router interface {
	Invalidate(database string)
	Forget(database, address string)
	ForgetWriter(database, address string)
}

// State drives one retryable unit of work across however many attempts
// fit in MaxTransactionRetryTime. Zero value is not usable; construct via
// New.
type State struct {
	Log                     logging.Logger
	LogName                 string
	LogId                   string
	MaxTransactionRetryTime time.Duration
	MaxDeadConnections      int
	Router                  Router
	DatabaseName            string

	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration)

	Throttle Throttler
	Errs     []error

	start      time.Time
	cause      string
	retryable  bool
	deadErrors int
	skipSleep  bool
}

// New builds a State with the schedule from §4.8: 1s initial delay,
// doubling each attempt, capped at 30s, ±20% jitter.
func New(log logging.Logger, logName, logId, database string, maxRetryTime time.Duration, maxDeadConnections int, router Router) *State {
	return &State{
		Log:                     log,
		LogName:                 logName,
		LogId:                   logId,
		DatabaseName:            database,
		MaxTransactionRetryTime: maxRetryTime,
		MaxDeadConnections:      maxDeadConnections,
		Router:                  router,
		Now:                     time.Now,
		Sleep:                   sleepCtx,
		Throttle:                Throttler(time.Second),
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// OnFailure records one attempt's outcome. conn is the connection the
// attempt ran on, or nil if the failure happened before one could be
// acquired. address, if non-empty, is forgotten from the router's
// reader/writer sets when err is a cluster-topology error.
func (s *State) OnFailure(err error, conn dbtype.Connection, address string, isCommitting bool) {
	s.retryable = false
	s.cause = ""
	s.skipSleep = false
	s.Errs = append(s.Errs, err)

	if s.start.IsZero() {
		s.start = s.Now()
	}
	if s.Now().Sub(s.start) > s.MaxTransactionRetryTime {
		s.cause = "retry budget exhausted"
		return
	}

	// A nil conn means no connection could be acquired to even attempt
	// the work; that is classified identically to any other failure
	// below rather than assumed retryable, since the underlying error
	// might just as well be a non-retryable one (bad credentials).
	if conn != nil && !conn.IsAlive() {
		if isCommitting {
			s.Errs[len(s.Errs)-1] = &CommitFailedDeadError{Inner: err}
			s.cause = "connection lost during commit"
			return
		}
		s.deadErrors++
		s.retryable = s.deadErrors <= s.MaxDeadConnections
		s.cause = "connection lost"
		s.skipSleep = true
		return
	}

	if neo4jErr, ok := err.(*dbtype.Neo4jError); ok {
		if neo4jErr.IsNotALeaderOrReadOnly() {
			if address != "" && s.Router != nil {
				s.Router.ForgetWriter(s.DatabaseName, address)
			}
			s.cause = "not a leader"
			s.retryable = true
			return
		}
		if neo4jErr.IsDatabaseUnavailable() {
			if address != "" && s.Router != nil {
				s.Router.Forget(s.DatabaseName, address)
			}
			s.cause = "database unavailable"
			s.retryable = true
			return
		}
	}

	if IsRetryable(err) {
		s.cause = "retryable error"
		s.retryable = true
	}
}

// Continue decides whether another attempt should run, sleeping out the
// current backoff first if one is owed. It returns false once the last
// recorded error was not retryable, or ctx was cancelled while sleeping.
func (s *State) Continue(ctx context.Context) bool {
	if len(s.Errs) == 0 {
		return true
	}

	if !s.retryable {
		if s.cause != "" {
			s.Log.Errorf(s.LogName, s.LogId, "transaction failed (%s): %s", s.cause, s.Errs[len(s.Errs)-1])
		}
		return false
	}

	if s.skipSleep {
		s.Log.Debugf(s.LogName, s.LogId, "retrying transaction (%s): %s", s.cause, s.Errs[len(s.Errs)-1])
	} else {
		delay := s.Throttle.delay()
		s.Throttle = s.Throttle.next()
		s.Log.Debugf(s.LogName, s.LogId, "retrying transaction (%s): %s [after %s]", s.cause, s.Errs[len(s.Errs)-1], delay)
		s.Sleep(ctx, delay)
		if ctx.Err() != nil {
			return false
		}
	}

	s.retryable = false
	return true
}

// LastErr is the error from the most recent attempt, or the
// *BudgetExhaustedError wrapping every attempt if the budget ran out
// across more than one.
func (s *State) LastErr() error {
	if len(s.Errs) == 0 {
		return nil
	}
	if s.cause == "retry budget exhausted" && len(s.Errs) > 1 {
		return &BudgetExhaustedError{Cause: s.cause, Errs: s.Errs}
	}
	return s.Errs[len(s.Errs)-1]
}
