package bolt

import (
	"container/list"
	"fmt"

	"github.com/corvid-graph/bolt-go-driver/internal/dbtype"
)

// stream tracks one RUN's result: the field names from its RUN SUCCESS,
// buffered RECORDs not yet handed to the caller, and how it ended.
type stream struct {
	handle     int64
	keys       []string
	qid        int64
	tfirst     int64
	fetchSize  int
	fifo       list.List
	sum        *dbtype.Summary
	err        error
	attached   bool
	endOfBatch bool
	discarding bool
}

func (s *stream) push(values []any) {
	s.fifo.PushBack(&dbtype.Record{Values: values, Keys: s.keys})
}

func (s *stream) emptyRecords() { s.fifo.Init() }

// bufferedNext pops one already-arrived record/summary/error without doing
// any I/O. The bool reports whether it found something to return.
func (s *stream) bufferedNext() (bool, *dbtype.Record, *dbtype.Summary, error) {
	if e := s.fifo.Front(); e != nil {
		s.fifo.Remove(e)
		return true, e.Value.(*dbtype.Record), nil, nil
	}
	if s.err != nil {
		return true, nil, nil, s.err
	}
	if s.sum != nil {
		return true, nil, s.sum, nil
	}
	return false, nil, nil, nil
}

// openStreams tracks every stream still open on a connection: at most one
// "current" (the only one that may receive PULL/DISCARD), the rest paused
// mid-batch pending a RunTx-triggered resume.
type openStreams struct {
	byHandle map[int64]*stream
	order    []int64
	curr     *stream
	nextID   int64
}

func (o *openStreams) reset() {
	o.byHandle = nil
	o.order = nil
	o.curr = nil
}

func (o *openStreams) attach(s *stream) {
	if o.byHandle == nil {
		o.byHandle = map[int64]*stream{}
	}
	o.nextID++
	s.handle = o.nextID
	o.byHandle[s.handle] = s
	o.order = append(o.order, s.handle)
	o.curr = s
}

func (o *openStreams) detach(target *stream, err error) {
	for _, h := range o.order {
		s := o.byHandle[h]
		if target != nil && s != target {
			continue
		}
		if s.err == nil && s.sum == nil {
			s.err = err
		}
	}
}

func (o *openStreams) remove(s *stream) {
	delete(o.byHandle, s.handle)
	for i, h := range o.order {
		if h == s.handle {
			o.order = append(o.order[:i], o.order[i+1:]...)
			break
		}
	}
	if o.curr == s {
		o.curr = nil
	}
}

func (o *openStreams) pause() { o.curr = nil }

func (o *openStreams) resume(s *stream) { o.curr = s }

func (o *openStreams) num() int { return len(o.byHandle) }

func (o *openStreams) getUnsafe(handle dbtype.StreamHandle) (*stream, error) {
	h, ok := handle.(int64)
	if !ok {
		return nil, fmt.Errorf("invalid stream handle %v", handle)
	}
	s, ok := o.byHandle[h]
	if !ok {
		return nil, fmt.Errorf("stream %d is not open on this connection", h)
	}
	return s, nil
}

func (o *openStreams) isSafe(s *stream) error {
	if _, ok := o.byHandle[s.handle]; !ok {
		return fmt.Errorf("stream %d does not belong to this connection", s.handle)
	}
	return nil
}
