package tts

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/pablopda/linux-speech-tools/internal/metrics"
)

// ErrPoolClosed is returned by Submit after Close.
var ErrPoolClosed = errors.New("worker pool is closed")

// SegmentJob is the synthesis of one chunk.
type SegmentJob struct {
	ID      string
	Index   int // chunk position, used to restore order
	Request SynthesisRequest
	Context context.Context

	// Results receives exactly one SegmentResult for this job. Callers give
	// every job of a request the same buffered channel.
	Results chan<- *SegmentResult
}

// SegmentResult is the outcome of a SegmentJob.
type SegmentResult struct {
	ID       string
	Index    int
	Audio    *Audio
	Error    error
	Duration time.Duration
}

// WorkerPool runs synthesis jobs on a fixed number of goroutines, optionally
// throttled by a token bucket shared by all workers.
type WorkerPool struct {
	workers int
	jobs    chan *SegmentJob
	wg      sync.WaitGroup
	synth   Synthesizer
	limiter *rate.Limiter
	ctx     context.Context
	cancel  context.CancelFunc
	metrics *PoolMetrics
	global  *metrics.Metrics
	closed  int32
}

// PoolMetrics are the worker pool counters.
type PoolMetrics struct {
	TotalJobs     int64
	CompletedJobs int64
	FailedJobs    int64
	ActiveWorkers int
	TotalLatency  int64 // nanoseconds
	mu            sync.RWMutex
}

// PoolOption customizes a WorkerPool.
type PoolOption func(*WorkerPool)

// WithRateLimit caps upstream calls at r per second with the given burst.
// A zero rate disables limiting.
func WithRateLimit(r float64, burst int) PoolOption {
	return func(p *WorkerPool) {
		if r <= 0 {
			p.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(r), burst)
	}
}

// WithMetrics mirrors job outcomes into m.
func WithMetrics(m *metrics.Metrics) PoolOption {
	return func(p *WorkerPool) { p.global = m }
}

// NewWorkerPool creates a pool; call Start before submitting.
func NewWorkerPool(workers int, synth Synthesizer, opts ...PoolOption) *WorkerPool {
	if workers <= 0 {
		workers = 5
	}
	if workers > 50 {
		workers = 50
	}

	p := &WorkerPool{
		workers: workers,
		jobs:    make(chan *SegmentJob, workers*2),
		synth:   synth,
		metrics: &PoolMetrics{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the workers.
func (p *WorkerPool) Start() {
	p.ctx, p.cancel = context.WithCancel(context.Background())

	logrus.WithField("workers", p.workers).Info("Starting worker pool")
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	p.metrics.mu.Lock()
	p.metrics.ActiveWorkers = p.workers
	p.metrics.mu.Unlock()
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			// job.Results is buffered by the submitter, this never blocks
			job.Results <- p.processJob(job, id)
		}
	}
}

func (p *WorkerPool) processJob(job *SegmentJob, workerID int) *SegmentResult {
	start := time.Now()
	result := &SegmentResult{ID: job.ID, Index: job.Index}

	err := job.Context.Err()
	if err == nil && p.limiter != nil {
		err = p.limiter.Wait(job.Context)
	}
	if err != nil {
		result.Error = fmt.Errorf("segment %d cancelled before synthesis: %w", job.Index, err)
		p.recordFailure(result.Error)
		return result
	}

	clip, err := p.synth.Synthesize(job.Context, job.Request)
	result.Duration = time.Since(start)
	if err != nil {
		result.Error = fmt.Errorf("worker %d failed to synthesize segment %d: %w", workerID, job.Index, err)
		logrus.WithFields(logrus.Fields{
			"job_id": job.ID,
			"worker": workerID,
		}).WithError(err).Error("Segment synthesis failed")
		p.recordFailure(result.Error)
		return result
	}
	result.Audio = clip

	p.metrics.mu.Lock()
	p.metrics.CompletedJobs++
	p.metrics.TotalLatency += result.Duration.Nanoseconds()
	p.metrics.mu.Unlock()
	if p.global != nil {
		p.global.RecordWorkerPoolJob(nil)
	}

	logrus.WithFields(logrus.Fields{
		"job_id":   job.ID,
		"worker":   workerID,
		"duration": result.Duration,
	}).Debug("Segment synthesized")
	return result
}

func (p *WorkerPool) recordFailure(err error) {
	p.metrics.mu.Lock()
	p.metrics.FailedJobs++
	p.metrics.mu.Unlock()
	if p.global != nil {
		p.global.RecordWorkerPoolJob(err)
	}
}

// Submit queues a job, blocking while the queue is full.
func (p *WorkerPool) Submit(job *SegmentJob) error {
	if atomic.LoadInt32(&p.closed) == 1 {
		return ErrPoolClosed
	}
	if job.Results == nil {
		return fmt.Errorf("job %s has no result channel", job.ID)
	}
	if job.Context.Err() != nil {
		return fmt.Errorf("job context cancelled before submission: %w", job.Context.Err())
	}

	p.metrics.mu.Lock()
	p.metrics.TotalJobs++
	p.metrics.mu.Unlock()

	select {
	case p.jobs <- job:
		return nil
	case <-p.ctx.Done():
		return fmt.Errorf("%w: %v", ErrPoolClosed, p.ctx.Err())
	case <-job.Context.Done():
		return fmt.Errorf("job context cancelled during submission: %w", job.Context.Err())
	default:
		logrus.WithField("capacity", cap(p.jobs)).Warn("Job queue is full, blocking submission")
		select {
		case p.jobs <- job:
			return nil
		case <-p.ctx.Done():
			return fmt.Errorf("%w: %v", ErrPoolClosed, p.ctx.Err())
		case <-job.Context.Done():
			return fmt.Errorf("job context cancelled while waiting for submission: %w", job.Context.Err())
		}
	}
}

// Done is closed when the pool shuts down. Jobs still queued at that point
// never report a result.
func (p *WorkerPool) Done() <-chan struct{} {
	return p.ctx.Done()
}

// Close stops the workers, waiting up to ten seconds for running jobs.
func (p *WorkerPool) Close() {
	if !atomic.CompareAndSwapInt32(&p.closed, 0, 1) {
		logrus.Warn("Worker pool already closed")
		return
	}

	logrus.Info("Closing worker pool")
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logrus.Info("All workers stopped gracefully")
	case <-time.After(10 * time.Second):
		logrus.Warn("Timeout waiting for workers to stop")
	}

	p.metrics.mu.Lock()
	p.metrics.ActiveWorkers = 0
	p.metrics.mu.Unlock()
}

// PoolStats is a snapshot of the pool counters.
type PoolStats struct {
	TotalJobs     int64         `json:"total_jobs"`
	CompletedJobs int64         `json:"completed_jobs"`
	FailedJobs    int64         `json:"failed_jobs"`
	ActiveWorkers int           `json:"active_workers"`
	QueueLength   int           `json:"queue_length"`
	SuccessRate   float64       `json:"success_rate"`
	AvgLatency    time.Duration `json:"avg_latency"`
}

// Stats returns the pool counters.
func (p *WorkerPool) Stats() PoolStats {
	p.metrics.mu.RLock()
	defer p.metrics.mu.RUnlock()

	s := PoolStats{
		TotalJobs:     p.metrics.TotalJobs,
		CompletedJobs: p.metrics.CompletedJobs,
		FailedJobs:    p.metrics.FailedJobs,
		ActiveWorkers: p.metrics.ActiveWorkers,
		QueueLength:   len(p.jobs),
	}
	if s.TotalJobs > 0 {
		s.SuccessRate = float64(s.CompletedJobs) / float64(s.TotalJobs) * 100
	}
	if s.CompletedJobs > 0 {
		s.AvgLatency = time.Duration(p.metrics.TotalLatency / s.CompletedJobs)
	}
	return s
}
