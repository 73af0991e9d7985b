// Package frame implements Bolt's chunked message framing and the
// version-negotiation handshake that precedes it.
package frame

import (
	"context"
	"encoding/binary"

	"github.com/corvid-graph/bolt-go-driver/internal/racing"
)

const maxChunkSize = 0xffff

// Chunker buffers outgoing messages, splitting each into ≤65535-byte chunks
// terminated by the empty chunk. Any number of messages may be buffered
// before Flush, which writes every buffered chunk with its own write call.
type Chunker struct {
	writer racing.Writer
	chunks [][]byte
}

// NewChunker wraps a cancellation-aware writer over the connection's byte
// stream.
func NewChunker(w racing.Writer) *Chunker {
	return &Chunker{writer: w, chunks: make([][]byte, 0, 2)}
}

func (c *Chunker) openChunk() {
	chunk := make([]byte, 0, 0x100)
	chunk = append(chunk, 0x00, 0x00)
	c.chunks = append(c.chunks, chunk)
}

// BeginMessage starts buffering a new message. Must be followed by one or
// more Write calls and a matching EndMessage.
func (c *Chunker) BeginMessage() { c.openChunk() }

// EndMessage appends the empty terminator chunk that marks the end of the
// message currently being buffered.
func (c *Chunker) EndMessage() { c.chunks = append(c.chunks, []byte{0x00, 0x00}) }

// Write appends p to the current chunk, opening additional chunks as the
// 65535-byte-per-chunk limit is reached. It implements io.Writer so an
// Encoder can write directly into it.
func (c *Chunker) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		idx := len(c.chunks) - 1
		chunk := c.chunks[idx]
		room := (maxChunkSize + 2) - len(chunk)
		if len(p) <= room {
			c.chunks[idx] = append(chunk, p...)
			written += len(p)
			return written, nil
		}
		c.chunks[idx] = append(chunk, p[:room]...)
		written += room
		p = p[room:]
		c.openChunk()
	}
	return written, nil
}

// Flush writes every buffered chunk to the underlying stream in order and
// discards them. The caller decides when to flush (§4.3's "send policy"):
// at minimum whenever a response is needed to proceed, at commit, and on
// RESET.
func (c *Chunker) Flush(ctx context.Context) error {
	for len(c.chunks) > 0 {
		chunk := c.chunks[0]
		c.chunks = c.chunks[1:]
		size := uint16(len(chunk) - 2)
		binary.BigEndian.PutUint16(chunk, size)
		if _, err := c.writer.Write(ctx, chunk); err != nil {
			return err
		}
	}
	return nil
}

// Reset discards any buffered, unflushed chunks without writing them.
func (c *Chunker) Reset() { c.chunks = c.chunks[:0] }

// Pending reports whether there are buffered bytes not yet flushed.
func (c *Chunker) Pending() bool { return len(c.chunks) > 0 }
