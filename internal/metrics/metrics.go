package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metrics collects service counters. Counters are atomics; min/max latency
// share a mutex.
type Metrics struct {
	// synthesis
	TTSRequests     int64
	TTSSuccess      int64
	TTSErrors       int64
	TTSTotalLatency int64 // nanoseconds
	TTSMaxLatency   int64
	TTSMinLatency   int64

	// segmentation
	ChunkRequests  int64
	ChunksProduced int64
	ChunkRunes     int64

	// cache
	CacheHits      int64
	CacheMisses    int64
	CacheTotalSize int64 // bytes currently held

	// worker pool
	WorkerPoolJobs   int64
	WorkerPoolErrors int64

	mu sync.RWMutex
}

// GlobalMetrics is the process-wide instance.
var GlobalMetrics = New()

// New returns zeroed Metrics.
func New() *Metrics {
	return &Metrics{TTSMinLatency: 1<<63 - 1}
}

// RecordTTSRequest records one upstream synthesis call.
func (m *Metrics) RecordTTSRequest(latency time.Duration, err error) {
	atomic.AddInt64(&m.TTSRequests, 1)

	latencyNs := latency.Nanoseconds()
	atomic.AddInt64(&m.TTSTotalLatency, latencyNs)

	if err != nil {
		atomic.AddInt64(&m.TTSErrors, 1)
	} else {
		atomic.AddInt64(&m.TTSSuccess, 1)
	}

	m.mu.Lock()
	if latencyNs > m.TTSMaxLatency {
		m.TTSMaxLatency = latencyNs
	}
	if latencyNs < m.TTSMinLatency {
		m.TTSMinLatency = latencyNs
	}
	m.mu.Unlock()
}

// RecordChunking records one segmentation call that produced the given
// chunk lengths.
func (m *Metrics) RecordChunking(lengths []int) {
	atomic.AddInt64(&m.ChunkRequests, 1)
	atomic.AddInt64(&m.ChunksProduced, int64(len(lengths)))
	var runes int64
	for _, n := range lengths {
		runes += int64(n)
	}
	atomic.AddInt64(&m.ChunkRunes, runes)
}

// RecordCacheHit records a cache hit.
func (m *Metrics) RecordCacheHit() {
	atomic.AddInt64(&m.CacheHits, 1)
}

// RecordCacheMiss records a cache miss.
func (m *Metrics) RecordCacheMiss() {
	atomic.AddInt64(&m.CacheMisses, 1)
}

// AddCacheSize adjusts the cached byte count; delta is negative on eviction.
func (m *Metrics) AddCacheSize(delta int64) {
	atomic.AddInt64(&m.CacheTotalSize, delta)
}

// RecordWorkerPoolJob records one worker pool job.
func (m *Metrics) RecordWorkerPoolJob(err error) {
	atomic.AddInt64(&m.WorkerPoolJobs, 1)
	if err != nil {
		atomic.AddInt64(&m.WorkerPoolErrors, 1)
	}
}

// GetSnapshot returns a consistent-enough copy of all counters.
func (m *Metrics) GetSnapshot() MetricsSnapshot {
	requests := atomic.LoadInt64(&m.TTSRequests)
	success := atomic.LoadInt64(&m.TTSSuccess)
	totalLatency := atomic.LoadInt64(&m.TTSTotalLatency)
	cacheHits := atomic.LoadInt64(&m.CacheHits)
	cacheMisses := atomic.LoadInt64(&m.CacheMisses)
	chunkRequests := atomic.LoadInt64(&m.ChunkRequests)
	chunks := atomic.LoadInt64(&m.ChunksProduced)

	m.mu.RLock()
	maxLatency := m.TTSMaxLatency
	minLatency := m.TTSMinLatency
	m.mu.RUnlock()

	var avgLatency int64
	if requests == 0 {
		minLatency = 0
	} else {
		avgLatency = totalLatency / requests
	}

	cacheHitRate := 0.0
	if total := cacheHits + cacheMisses; total > 0 {
		cacheHitRate = float64(cacheHits) / float64(total) * 100
	}

	successRate := 0.0
	if requests > 0 {
		successRate = float64(success) / float64(requests) * 100
	}

	avgChunkLength := 0.0
	if chunks > 0 {
		avgChunkLength = float64(atomic.LoadInt64(&m.ChunkRunes)) / float64(chunks)
	}

	return MetricsSnapshot{
		TTSRequests:      requests,
		TTSSuccess:       success,
		TTSErrors:        atomic.LoadInt64(&m.TTSErrors),
		SuccessRate:      successRate,
		AvgLatency:       time.Duration(avgLatency),
		MaxLatency:       time.Duration(maxLatency),
		MinLatency:       time.Duration(minLatency),
		ChunkRequests:    chunkRequests,
		ChunksProduced:   chunks,
		AvgChunkLength:   avgChunkLength,
		CacheHits:        cacheHits,
		CacheMisses:      cacheMisses,
		CacheHitRate:     cacheHitRate,
		CacheTotalSize:   atomic.LoadInt64(&m.CacheTotalSize),
		WorkerPoolJobs:   atomic.LoadInt64(&m.WorkerPoolJobs),
		WorkerPoolErrors: atomic.LoadInt64(&m.WorkerPoolErrors),
		Timestamp:        time.Now(),
	}
}

// MetricsSnapshot is a point-in-time copy of Metrics.
type MetricsSnapshot struct {
	TTSRequests      int64         `json:"tts_requests"`
	TTSSuccess       int64         `json:"tts_success"`
	TTSErrors        int64         `json:"tts_errors"`
	SuccessRate      float64       `json:"success_rate"`
	AvgLatency       time.Duration `json:"avg_latency"`
	MaxLatency       time.Duration `json:"max_latency"`
	MinLatency       time.Duration `json:"min_latency"`
	ChunkRequests    int64         `json:"chunk_requests"`
	ChunksProduced   int64         `json:"chunks_produced"`
	AvgChunkLength   float64       `json:"avg_chunk_length"`
	CacheHits        int64         `json:"cache_hits"`
	CacheMisses      int64         `json:"cache_misses"`
	CacheHitRate     float64       `json:"cache_hit_rate"`
	CacheTotalSize   int64         `json:"cache_total_size"`
	WorkerPoolJobs   int64         `json:"worker_pool_jobs"`
	WorkerPoolErrors int64         `json:"worker_pool_errors"`
	Timestamp        time.Time     `json:"timestamp"`
}

// Reset zeroes every counter except the cache size, which tracks live data.
func (m *Metrics) Reset() {
	atomic.StoreInt64(&m.TTSRequests, 0)
	atomic.StoreInt64(&m.TTSSuccess, 0)
	atomic.StoreInt64(&m.TTSErrors, 0)
	atomic.StoreInt64(&m.TTSTotalLatency, 0)
	atomic.StoreInt64(&m.ChunkRequests, 0)
	atomic.StoreInt64(&m.ChunksProduced, 0)
	atomic.StoreInt64(&m.ChunkRunes, 0)
	atomic.StoreInt64(&m.CacheHits, 0)
	atomic.StoreInt64(&m.CacheMisses, 0)
	atomic.StoreInt64(&m.WorkerPoolJobs, 0)
	atomic.StoreInt64(&m.WorkerPoolErrors, 0)

	m.mu.Lock()
	m.TTSMaxLatency = 0
	m.TTSMinLatency = 1<<63 - 1
	m.mu.Unlock()
}
