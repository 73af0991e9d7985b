package frame

import (
	"context"
	"encoding/binary"

	"github.com/corvid-graph/bolt-go-driver/internal/racing"
)

// ProtocolError marks a framing violation: a message payload that grows
// past maxMessageSize.
type ProtocolError struct {
	Msg string
}

func (e *ProtocolError) Error() string { return "bolt framing error: " + e.Msg }

// maxMessageSize bounds how large a single dechunked message payload may
// grow. Without it a server that never sends a terminating empty chunk
// would make ReceiveMessage buffer chunks forever.
const maxMessageSize = 64 * 1024 * 1024

// Dechunker reassembles one complete message payload from a sequence of
// length-prefixed chunks terminated by an empty chunk.
type Dechunker struct {
	reader racing.Reader
}

// NewDechunker wraps a cancellation-aware reader over the connection's byte
// stream.
func NewDechunker(r racing.Reader) *Dechunker {
	return &Dechunker{reader: r}
}

// ReceiveMessage reads chunks until the terminator and returns the
// concatenated payload. Every zero-length chunk this reads ends the
// message by construction: the loop only ever asks for one more chunk at a
// time, so there is no way to observe a zero-length chunk anywhere but at
// the point a message ends. A payload that grows past maxMessageSize is
// itself the framing violation ProtocolError exists for: nothing legitimate
// on the wire produces a message that large.
func (d *Dechunker) ReceiveMessage(ctx context.Context) ([]byte, error) {
	var payload []byte
	for {
		size, err := d.readChunkHeader(ctx)
		if err != nil {
			return nil, err
		}
		if size == 0 {
			return payload, nil
		}
		if len(payload)+int(size) > maxMessageSize {
			return nil, &ProtocolError{Msg: "message payload exceeds maximum allowed size"}
		}
		chunk := make([]byte, size)
		if _, err := d.reader.ReadFull(ctx, chunk); err != nil {
			return nil, err
		}
		payload = append(payload, chunk...)
	}
}

func (d *Dechunker) readChunkHeader(ctx context.Context) (uint16, error) {
	hdr := make([]byte, 2)
	if _, err := d.reader.ReadFull(ctx, hdr); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(hdr), nil
}
