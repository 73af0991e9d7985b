package bolt

import (
	"context"

	"github.com/corvid-graph/bolt-go-driver/internal/frame"
	"github.com/corvid-graph/bolt-go-driver/internal/packstream"
)

// incoming reassembles and decodes one message at a time from the
// dechunker, handing back whatever hydrate produced for its struct tag.
type incoming struct {
	dechunker *frame.Dechunker
	hf        packstream.HydratorFactory
}

func newIncoming(dechunker *frame.Dechunker) *incoming {
	return &incoming{dechunker: dechunker, hf: hydratorFactory{}}
}

func (in *incoming) next(ctx context.Context) (interface{}, error) {
	payload, err := in.dechunker.ReceiveMessage(ctx)
	if err != nil {
		return nil, err
	}
	dec := packstream.NewDecoder(payload, in.hf)
	return dec.Decode()
}
