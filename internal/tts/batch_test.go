package tts

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchSynthesizerKeepsOrder(t *testing.T) {
	b := NewBatchSynthesizer(echoSynthesizer(), 2)
	reqs := []SynthesisRequest{{Text: "one"}, {Text: "three"}, {Text: "seventeen"}}

	var progress int64
	clips, err := b.Process(context.Background(), reqs, func(done int) {
		atomic.AddInt64(&progress, 1)
	})
	require.NoError(t, err)
	require.Len(t, clips, 3)
	assert.Equal(t, []int{3}, clips[0].PCM)
	assert.Equal(t, []int{5}, clips[1].PCM)
	assert.Equal(t, []int{9}, clips[2].PCM)
	assert.Equal(t, int64(3), atomic.LoadInt64(&progress))
}

func TestBatchSynthesizerStopsOnFailure(t *testing.T) {
	boom := errors.New("boom")
	var calls int64
	synth := SynthesizerFunc(func(ctx context.Context, req SynthesisRequest) (*Audio, error) {
		atomic.AddInt64(&calls, 1)
		if req.Text == "bad" {
			return nil, boom
		}
		<-ctx.Done()
		return nil, ctx.Err()
	})

	b := NewBatchSynthesizer(synth, 4)
	_, err := b.Process(context.Background(), []SynthesisRequest{{Text: "ok"}, {Text: "bad"}, {Text: "ok"}}, nil)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "segment 1")
}
