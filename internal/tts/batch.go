package tts

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// BatchSynthesizer synthesizes a whole chunk list with bounded concurrency
// and returns the buffers in chunk order. The first failure cancels the
// rest.
type BatchSynthesizer struct {
	synth       Synthesizer
	concurrency int
}

// NewBatchSynthesizer creates a BatchSynthesizer running at most
// concurrency calls at once.
func NewBatchSynthesizer(synth Synthesizer, concurrency int) *BatchSynthesizer {
	if concurrency <= 0 {
		concurrency = 5
	}
	return &BatchSynthesizer{synth: synth, concurrency: concurrency}
}

// Process synthesizes every request. onProgress, if set, is called after
// each successful chunk with the number done so far.
func (b *BatchSynthesizer) Process(ctx context.Context, reqs []SynthesisRequest, onProgress func(done int)) ([]*Audio, error) {
	results := make([]*Audio, len(reqs))
	var done int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for idx, req := range reqs {
		idx := idx
		req := req
		g.Go(func() error {
			clip, err := b.synth.Synthesize(ctx, req)
			if err != nil {
				return fmt.Errorf("segment %d: %w", idx, err)
			}
			results[idx] = clip
			if onProgress != nil {
				onProgress(int(atomic.AddInt64(&done, 1)))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
