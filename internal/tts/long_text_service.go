package tts

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pablopda/linux-speech-tools/internal/metrics"
	"github.com/pablopda/linux-speech-tools/internal/segment"
	"github.com/pablopda/linux-speech-tools/internal/tts/audio"
)

// LongTextConfig configures a LongTextService.
type LongTextConfig struct {
	Threshold   int // texts of at most this many runes go out in one call
	WorkerCount int
	RateLimit   float64 // upstream calls per second, 0 for unlimited
	RateBurst   int
}

// LongTextService synthesizes texts of any length: it chunks the text,
// synthesizes the chunks concurrently and merges the audio in order.
type LongTextService struct {
	chunker   Chunker
	synth     Synthesizer
	merger    audio.Merger
	pool      *WorkerPool
	batch     *BatchSynthesizer
	threshold int
	metrics   *metrics.Metrics
}

// NewLongTextService creates the service and starts its worker pool.
// m may be nil.
func NewLongTextService(chunker Chunker, synth Synthesizer, merger audio.Merger, cfg LongTextConfig, m *metrics.Metrics) *LongTextService {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 500
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}

	pool := NewWorkerPool(cfg.WorkerCount, synth, WithRateLimit(cfg.RateLimit, cfg.RateBurst), WithMetrics(m))
	pool.Start()

	return &LongTextService{
		chunker:   chunker,
		synth:     synth,
		merger:    merger,
		pool:      pool,
		batch:     NewBatchSynthesizer(synth, cfg.WorkerCount),
		threshold: cfg.Threshold,
		metrics:   m,
	}
}

// Plan returns the chunks text will be synthesized as. Text within the
// threshold is a single chunk.
func (s *LongTextService) Plan(text string) []segment.Chunk {
	return s.PlanWith(s.chunker, text)
}

// PlanWith is Plan using c instead of the service chunker, for requests
// that pin a language.
func (s *LongTextService) PlanWith(c Chunker, text string) []segment.Chunk {
	n := utf8.RuneCountInString(text)
	if n <= s.threshold {
		return []segment.Chunk{{Text: text, Length: n}}
	}

	chunks := c.Chunks(text)
	if s.metrics != nil {
		lengths := make([]int, len(chunks))
		for i, ch := range chunks {
			lengths[i] = ch.Length
		}
		s.metrics.RecordChunking(lengths)
	}
	logrus.WithFields(logrus.Fields{
		"length": n,
		"chunks": len(chunks),
	}).Info("Text exceeds threshold, using segmented synthesis")
	return chunks
}

// IsLong reports whether a plan needs more than one upstream call.
func IsLong(plan []segment.Chunk) bool {
	return len(plan) > 1
}

// Synthesize synthesizes req.Text and returns a WAV file.
func (s *LongTextService) Synthesize(ctx context.Context, req SynthesisRequest) ([]byte, error) {
	return s.SynthesizePlan(ctx, req, s.Plan(req.Text))
}

// SynthesizePlan synthesizes the given chunks of req through the worker
// pool and returns the merged WAV file.
func (s *LongTextService) SynthesizePlan(ctx context.Context, req SynthesisRequest, plan []segment.Chunk) ([]byte, error) {
	if ctx.Err() != nil {
		return nil, fmt.Errorf("context cancelled before synthesis: %w", ctx.Err())
	}
	if len(plan) == 0 {
		return nil, audio.ErrNoSegments
	}
	if len(plan) == 1 {
		clip, err := s.synth.Synthesize(ctx, withText(req, plan[0].Text))
		if err != nil {
			return nil, err
		}
		return audio.EncodeBytes(clip)
	}

	start := time.Now()
	jobID := uuid.New().String()
	results := make(chan *SegmentResult, len(plan))

	for _, ch := range plan {
		job := &SegmentJob{
			ID:      fmt.Sprintf("%s_seg_%d", jobID, ch.Index),
			Index:   ch.Index,
			Request: withText(req, ch.Text),
			Context: ctx,
			Results: results,
		}
		if err := s.pool.Submit(job); err != nil {
			return nil, fmt.Errorf("failed to submit segment %d: %w", ch.Index, err)
		}
	}

	clips := make([]*Audio, len(plan))
	var firstErr error
	failed := 0
	for range plan {
		select {
		case r := <-results:
			if r.Error != nil {
				failed++
				if firstErr == nil {
					firstErr = r.Error
				}
				continue
			}
			if r.Index < 0 || r.Index >= len(clips) {
				return nil, fmt.Errorf("invalid segment index: %d", r.Index)
			}
			clips[r.Index] = r.Audio
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled during result collection: %w", ctx.Err())
		case <-s.pool.Done():
			return nil, ErrPoolClosed
		}
	}
	if failed > 0 {
		return nil, fmt.Errorf("synthesis failed: %d/%d segments failed, first error: %w", failed, len(plan), firstErr)
	}

	data, err := s.merge(clips)
	if err != nil {
		return nil, err
	}

	stats := s.pool.Stats()
	logrus.WithFields(logrus.Fields{
		"segments":     len(plan),
		"bytes":        len(data),
		"duration":     time.Since(start),
		"success_rate": stats.SuccessRate,
		"avg_latency":  stats.AvgLatency,
	}).Info("Long text synthesis completed")
	return data, nil
}

// SynthesizeAsync synthesizes a plan for a background job. It does not use
// the shared pool so a slow job cannot starve interactive requests.
// onProgress receives the number of finished chunks.
func (s *LongTextService) SynthesizeAsync(ctx context.Context, req SynthesisRequest, plan []segment.Chunk, onProgress func(done int)) ([]byte, error) {
	reqs := make([]SynthesisRequest, len(plan))
	for i, ch := range plan {
		reqs[i] = withText(req, ch.Text)
	}
	clips, err := s.batch.Process(ctx, reqs, onProgress)
	if err != nil {
		return nil, err
	}
	return s.merge(clips)
}

func (s *LongTextService) merge(clips []*Audio) ([]byte, error) {
	merged, err := s.merger.Merge(clips)
	if err != nil {
		return nil, fmt.Errorf("failed to merge audio segments: %w", err)
	}
	return audio.EncodeBytes(merged)
}

// Stats returns the worker pool counters.
func (s *LongTextService) Stats() PoolStats {
	return s.pool.Stats()
}

// Close stops the worker pool.
func (s *LongTextService) Close() {
	s.pool.Close()
}

func withText(req SynthesisRequest, text string) SynthesisRequest {
	req.Text = text
	return req
}
