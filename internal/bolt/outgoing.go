package bolt

import (
	"github.com/corvid-graph/bolt-go-driver/internal/frame"
	"github.com/corvid-graph/bolt-go-driver/internal/packstream"
)

// outgoing buffers one message at a time into a Chunker through an
// Encoder; callers flush the chunker themselves once they've queued
// everything they want sent in a batch.
type outgoing struct {
	chunker *frame.Chunker
	enc     *packstream.Encoder
}

func newOutgoing(chunker *frame.Chunker) *outgoing {
	return &outgoing{chunker: chunker, enc: packstream.NewEncoder(chunker, dehydrate)}
}

func (o *outgoing) appendMessage(tag packstream.StructTag, fields ...interface{}) error {
	o.chunker.BeginMessage()
	if err := o.enc.EncodeStruct(tag, fields...); err != nil {
		return err
	}
	o.chunker.EndMessage()
	return nil
}

func (o *outgoing) appendHello(meta map[string]any) error {
	return o.appendMessage(msgHello, meta)
}

func (o *outgoing) appendLogon(token map[string]any) error {
	return o.appendMessage(msgLogon, token)
}

func (o *outgoing) appendLogoff() error {
	return o.appendMessage(msgLogoff)
}

func (o *outgoing) appendGoodbye() error {
	return o.appendMessage(msgGoodbye)
}

func (o *outgoing) appendBegin(meta map[string]any) error {
	return o.appendMessage(msgBegin, meta)
}

func (o *outgoing) appendRun(cypher string, params, meta map[string]any) error {
	if params == nil {
		params = map[string]any{}
	}
	if meta == nil {
		meta = map[string]any{}
	}
	return o.appendMessage(msgRun, cypher, params, meta)
}

func (o *outgoing) appendPullN(fetchSize int) error {
	return o.appendMessage(msgPullN, map[string]any{"n": int64(fetchSize)})
}

func (o *outgoing) appendPullNQid(fetchSize int, qid int64) error {
	return o.appendMessage(msgPullN, map[string]any{"n": int64(fetchSize), "qid": qid})
}

func (o *outgoing) appendDiscardN(fetchSize int) error {
	return o.appendMessage(msgDiscardN, map[string]any{"n": int64(fetchSize)})
}

func (o *outgoing) appendDiscardNQid(fetchSize int, qid int64) error {
	return o.appendMessage(msgDiscardN, map[string]any{"n": int64(fetchSize), "qid": qid})
}

func (o *outgoing) appendCommit() error {
	return o.appendMessage(msgCommit)
}

func (o *outgoing) appendRollback() error {
	return o.appendMessage(msgRollback)
}

func (o *outgoing) appendReset() error {
	return o.appendMessage(msgReset)
}

func (o *outgoing) appendRoute(routingContext map[string]string, bookmarks []string, extras map[string]any) error {
	ctx := map[string]any{}
	for k, v := range routingContext {
		ctx[k] = v
	}
	bm := make([]interface{}, len(bookmarks))
	for i, b := range bookmarks {
		bm[i] = b
	}
	return o.appendMessage(msgRoute, ctx, bm, extras)
}

func (o *outgoing) appendRouteV43(routingContext map[string]string, bookmarks []string, database string) error {
	ctx := map[string]any{}
	for k, v := range routingContext {
		ctx[k] = v
	}
	bm := make([]interface{}, len(bookmarks))
	for i, b := range bookmarks {
		bm[i] = b
	}
	var db interface{}
	if database != "" {
		db = database
	}
	return o.appendMessage(msgRoute, ctx, bm, db)
}

func (o *outgoing) appendTelemetry(api int) error {
	return o.appendMessage(msgTelemetry, int64(api))
}
