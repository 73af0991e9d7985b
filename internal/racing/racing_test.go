package racing

import (
	"bytes"
	"context"
	"testing"
	"time"
)

func TestReaderRespectsCancellation(t *testing.T) {
	pr, pw := newBlockingPipe()
	defer pw.Close()
	r := NewReader(pr)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	buf := make([]byte, 4)
	_, err := r.Read(ctx, buf)
	if err != ctx.Err() {
		t.Fatalf("expected context error, got %v", err)
	}
}

func TestReaderPassesThroughWithoutDeadline(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte("hello")))
	buf := make([]byte, 5)
	n, err := r.ReadFull(context.Background(), buf)
	if err != nil || n != 5 || string(buf) != "hello" {
		t.Fatalf("got n=%d err=%v buf=%q", n, err, buf)
	}
}

func TestMutexFIFOishSingleHolder(t *testing.T) {
	m := NewMutex()
	if !m.TryLock(context.Background()) {
		t.Fatal("first lock should succeed")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if m.TryLock(ctx) {
		t.Fatal("second lock should time out while held")
	}
	if !m.Unlock() {
		t.Fatal("unlock of held lock should succeed")
	}
	if m.Unlock() {
		t.Fatal("unlock of unheld lock should report false")
	}
}

type blockingPipe struct{ ch chan []byte }

func newBlockingPipe() (*blockingPipe, *blockingPipe) { p := &blockingPipe{ch: make(chan []byte)}; return p, p }

func (p *blockingPipe) Read(b []byte) (int, error) {
	data := <-p.ch
	n := copy(b, data)
	return n, nil
}

func (p *blockingPipe) Close() error { return nil }
