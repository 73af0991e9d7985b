package pool

import "github.com/corvid-graph/bolt-go-driver/internal/dbtype"

// server tracks every connection this pool currently holds for one address,
// split into idle (ready to hand out) and busy (on loan to a session). Not
// safe for concurrent use; callers hold Pool.mu.
type server struct {
	idle []dbtype.Connection
	busy int
}

func (s *server) size() int {
	return len(s.idle) + s.busy
}

// popIdle removes and returns the most recently returned idle connection,
// LIFO, so a connection that is reused tends to be one the kernel still
// has warm.
func (s *server) popIdle() dbtype.Connection {
	n := len(s.idle)
	if n == 0 {
		return nil
	}
	c := s.idle[n-1]
	s.idle = s.idle[:n-1]
	return c
}

func (s *server) pushIdle(c dbtype.Connection) {
	s.idle = append(s.idle, c)
}

func (s *server) regBusy() {
	s.busy++
}

func (s *server) unregBusy() {
	s.busy--
}

func (s *server) numIdle() int {
	return len(s.idle)
}

// pruneIdle drops every idle connection keep reports false for, compacting
// the slice in place, and returns the dropped ones for the caller to close.
func (s *server) pruneIdle(keep func(dbtype.Connection) bool) []dbtype.Connection {
	var closed []dbtype.Connection
	kept := s.idle[:0]
	for _, c := range s.idle {
		if keep(c) {
			kept = append(kept, c)
		} else {
			closed = append(closed, c)
		}
	}
	s.idle = kept
	return closed
}

func (s *server) closeAllIdle() []dbtype.Connection {
	closed := s.idle
	s.idle = nil
	return closed
}
