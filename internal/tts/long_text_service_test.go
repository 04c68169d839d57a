package tts

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pablopda/linux-speech-tools/internal/metrics"
	"github.com/pablopda/linux-speech-tools/internal/segment"
	"github.com/pablopda/linux-speech-tools/internal/tts/audio"
)

const longText = "The committee met on Monday to review the budget. " +
	"Dr. Smith presented the figures, and everyone listened closely. " +
	"After a short break the discussion moved to hiring plans for the spring. " +
	"Nobody expected the meeting to run past six, but it did."

// lengthSynthesizer encodes each request as one sample holding its rune
// count. Shorter texts take longer so results arrive out of order.
func lengthSynthesizer(calls *int64) SynthesizerFunc {
	return func(ctx context.Context, req SynthesisRequest) (*Audio, error) {
		atomic.AddInt64(calls, 1)
		n := utf8.RuneCountInString(req.Text)
		select {
		case <-time.After(time.Duration(200-n) * 50 * time.Microsecond):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return &Audio{PCM: []int{n}, SampleRate: 8000, Channels: 1, BitDepth: 16}, nil
	}
}

func newTestService(t *testing.T, synth Synthesizer, m *metrics.Metrics) *LongTextService {
	t.Helper()
	engine, err := segment.New(segment.Config{TargetSize: 60, MinSize: 15, MaxSize: 120})
	require.NoError(t, err)

	svc := NewLongTextService(engine, synth, audio.NewWAVMerger(0, zerolog.Nop()),
		LongTextConfig{Threshold: 50, WorkerCount: 3}, m)
	t.Cleanup(svc.Close)
	return svc
}

func TestLongTextServicePlan(t *testing.T) {
	svc := newTestService(t, SynthesizerFunc(nil), nil)

	short := svc.Plan("Short text.")
	require.Len(t, short, 1)
	assert.Equal(t, "Short text.", short[0].Text)
	assert.False(t, IsLong(short))

	plan := svc.Plan(longText)
	assert.True(t, IsLong(plan))
	var texts []string
	for i, ch := range plan {
		assert.Equal(t, i, ch.Index)
		assert.LessOrEqual(t, ch.Length, 120)
		texts = append(texts, ch.Text)
	}
	assert.Equal(t, longText, strings.Join(texts, " "))
}

func TestLongTextServiceSynthesizeKeepsChunkOrder(t *testing.T) {
	var calls int64
	m := metrics.New()
	svc := newTestService(t, lengthSynthesizer(&calls), m)

	plan := svc.Plan(longText)
	data, err := svc.SynthesizePlan(context.Background(), SynthesisRequest{Voice: "alloy"}, plan)
	require.NoError(t, err)

	clip, err := audio.Decode(data)
	require.NoError(t, err)

	want := make([]int, len(plan))
	for i, ch := range plan {
		want[i] = ch.Length
	}
	assert.Equal(t, want, clip.PCM)
	assert.Equal(t, int64(len(plan)), atomic.LoadInt64(&calls))

	snap := m.GetSnapshot()
	assert.Equal(t, int64(1), snap.ChunkRequests)
	assert.Equal(t, int64(len(plan)), snap.ChunksProduced)
	assert.Equal(t, int64(len(plan)), snap.WorkerPoolJobs)
}

func TestLongTextServiceShortTextSingleCall(t *testing.T) {
	var calls int64
	svc := newTestService(t, lengthSynthesizer(&calls), nil)

	data, err := svc.Synthesize(context.Background(), SynthesisRequest{Text: "Hello there."})
	require.NoError(t, err)

	clip, err := audio.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, []int{12}, clip.PCM)
	assert.Equal(t, int64(1), atomic.LoadInt64(&calls))
}

func TestLongTextServiceSegmentFailure(t *testing.T) {
	boom := errors.New("upstream exploded")
	synth := SynthesizerFunc(func(ctx context.Context, req SynthesisRequest) (*Audio, error) {
		if strings.Contains(req.Text, "Dr. Smith") {
			return nil, boom
		}
		return &Audio{PCM: []int{1}, SampleRate: 8000, Channels: 1, BitDepth: 16}, nil
	})
	svc := newTestService(t, synth, nil)

	_, err := svc.Synthesize(context.Background(), SynthesisRequest{Text: longText})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "segments failed")
}

func TestLongTextServiceCancelled(t *testing.T) {
	var calls int64
	svc := newTestService(t, lengthSynthesizer(&calls), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.Synthesize(ctx, SynthesisRequest{Text: longText})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLongTextServiceAsyncReportsProgress(t *testing.T) {
	var calls int64
	svc := newTestService(t, lengthSynthesizer(&calls), nil)
	plan := svc.Plan(longText)

	var last int64
	data, err := svc.SynthesizeAsync(context.Background(), SynthesisRequest{}, plan, func(done int) {
		for {
			prev := atomic.LoadInt64(&last)
			if int64(done) <= prev || atomic.CompareAndSwapInt64(&last, prev, int64(done)) {
				return
			}
		}
	})
	require.NoError(t, err)
	assert.Equal(t, int64(len(plan)), atomic.LoadInt64(&last))

	clip, err := audio.Decode(data)
	require.NoError(t, err)
	assert.Len(t, clip.PCM, len(plan))
}
