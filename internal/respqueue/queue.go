// Package respqueue implements the connection's response pipeline: a FIFO
// of handlers, one per request already sent, matched against decoded
// responses as they arrive. A RECORD response is peeked rather than
// dequeued — its handler re-enqueues itself at the front so the next
// RECORD is routed the same way, until a terminal SUCCESS/FAILURE/IGNORED
// dequeues it for good.
package respqueue

import (
	"container/list"
	"context"
	"fmt"

	"github.com/corvid-graph/bolt-go-driver/internal/dbtype"
)

// Success carries a SUCCESS message's metadata map, shaped differently
// depending on which request it answers (HELLO, RUN, PULL, COMMIT, ...).
type Success struct {
	Meta map[string]any
}

// Record carries one RECORD message's positional field values.
type Record struct {
	Values []any
}

// Ignored marks a server IGNORED response, sent for every queued request
// once the connection has failed until RESET clears it.
type Ignored struct{}

// Handler is invoked for whichever response kind answers the request it
// was enqueued for. A nil field for an unexpected kind is a protocol
// violation and Dispatch reports it as such.
type Handler struct {
	OnSuccess func(*Success)
	OnRecord  func(*Record)
	OnFailure func(ctx context.Context, err *dbtype.Neo4jError)
	OnIgnored func(*Ignored)
}

// Queue is the ordered list of handlers awaiting a response, one per
// request appended since the last full drain.
type Queue struct {
	handlers list.List
}

func New() *Queue { return &Queue{} }

// Enqueue appends h for the next request being sent.
func (q *Queue) Enqueue(h Handler) { q.handlers.PushBack(h) }

// PushFront re-queues h ahead of everything else, used by a RECORD
// handler to keep receiving records for the stream it belongs to without
// losing its place relative to requests already in flight.
func (q *Queue) PushFront(h Handler) { q.handlers.PushFront(h) }

// IsEmpty reports whether every sent request has received its response.
func (q *Queue) IsEmpty() bool { return q.handlers.Len() == 0 }

func (q *Queue) Len() int { return q.handlers.Len() }

func (q *Queue) pop() (Handler, error) {
	front := q.handlers.Front()
	if front == nil {
		return Handler{}, fmt.Errorf("respqueue: no handler queued for incoming message")
	}
	return q.handlers.Remove(front).(Handler), nil
}

// Dispatch routes one decoded response to the oldest queued handler. It
// returns the Neo4jError from a FAILURE response after invoking OnFailure,
// so callers can both react inline and propagate the error.
func (q *Queue) Dispatch(ctx context.Context, msg any) error {
	handler, err := q.pop()
	if err != nil {
		return err
	}
	switch m := msg.(type) {
	case *Success:
		if handler.OnSuccess == nil {
			return protocolViolation("SUCCESS")
		}
		handler.OnSuccess(m)
		return nil
	case *Record:
		if handler.OnRecord == nil {
			return protocolViolation("RECORD")
		}
		handler.OnRecord(m)
		return nil
	case *dbtype.Neo4jError:
		if handler.OnFailure == nil {
			return protocolViolation("FAILURE")
		}
		handler.OnFailure(ctx, m)
		return m
	case *Ignored:
		if handler.OnIgnored == nil {
			return protocolViolation("IGNORED")
		}
		handler.OnIgnored(m)
		return nil
	default:
		return fmt.Errorf("respqueue: unrecognized response type %T", msg)
	}
}

func protocolViolation(kind string) error {
	return &dbtype.ProtocolError{Err: fmt.Sprintf("received unexpected %s response for the current request", kind)}
}
