package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "speech"

var (
	ttsRequestsDesc = prometheus.NewDesc(namespace+"_tts_requests_total",
		"Upstream synthesis calls by outcome.", []string{"outcome"}, nil)
	ttsLatencyDesc = prometheus.NewDesc(namespace+"_tts_latency_seconds_total",
		"Summed upstream synthesis latency.", nil, nil)
	chunkRequestsDesc = prometheus.NewDesc(namespace+"_chunk_requests_total",
		"Segmentation calls.", nil, nil)
	chunksDesc = prometheus.NewDesc(namespace+"_chunks_total",
		"Chunks produced by segmentation.", nil, nil)
	chunkRunesDesc = prometheus.NewDesc(namespace+"_chunk_runes_total",
		"Runes in produced chunks.", nil, nil)
	cacheDesc = prometheus.NewDesc(namespace+"_cache_lookups_total",
		"Synthesis cache lookups by result.", []string{"result"}, nil)
	cacheSizeDesc = prometheus.NewDesc(namespace+"_cache_bytes",
		"Bytes of audio held by the synthesis cache.", nil, nil)
	poolJobsDesc = prometheus.NewDesc(namespace+"_worker_pool_jobs_total",
		"Worker pool jobs by outcome.", []string{"outcome"}, nil)
)

// Collector exposes a Metrics instance to Prometheus. Values are read from
// the atomics at scrape time, so Reset is visible as a counter reset.
type Collector struct {
	m *Metrics
}

// NewCollector wraps m.
func NewCollector(m *Metrics) *Collector {
	return &Collector{m: m}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		ttsRequestsDesc, ttsLatencyDesc, chunkRequestsDesc, chunksDesc,
		chunkRunesDesc, cacheDesc, cacheSizeDesc, poolJobsDesc,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.m.GetSnapshot()
	counter := func(d *prometheus.Desc, v int64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), labels...)
	}

	counter(ttsRequestsDesc, s.TTSSuccess, "success")
	counter(ttsRequestsDesc, s.TTSErrors, "error")
	ch <- prometheus.MustNewConstMetric(ttsLatencyDesc, prometheus.CounterValue,
		float64(atomic.LoadInt64(&c.m.TTSTotalLatency))/1e9)
	counter(chunkRequestsDesc, s.ChunkRequests)
	counter(chunksDesc, s.ChunksProduced)
	counter(chunkRunesDesc, atomic.LoadInt64(&c.m.ChunkRunes))
	counter(cacheDesc, s.CacheHits, "hit")
	counter(cacheDesc, s.CacheMisses, "miss")
	ch <- prometheus.MustNewConstMetric(cacheSizeDesc, prometheus.GaugeValue, float64(s.CacheTotalSize))
	counter(poolJobsDesc, s.WorkerPoolJobs-s.WorkerPoolErrors, "success")
	counter(poolJobsDesc, s.WorkerPoolErrors, "error")
}

// NewRegistry returns a registry with the process and Go collectors plus m.
func NewRegistry(m *Metrics) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		NewCollector(m),
	)
	return reg
}
