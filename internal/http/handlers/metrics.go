package handlers

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pablopda/linux-speech-tools/internal/metrics"
	"github.com/pablopda/linux-speech-tools/internal/tts"
)

// MetricsHandler serves the JSON metrics snapshot and health check.
type MetricsHandler struct {
	metrics *metrics.Metrics
	pool    func() tts.PoolStats  // optional
	cache   func() tts.CacheStats // optional
}

// NewMetricsHandler creates a MetricsHandler. pool and cache may be nil.
func NewMetricsHandler(m *metrics.Metrics, pool func() tts.PoolStats, cache func() tts.CacheStats) *MetricsHandler {
	return &MetricsHandler{metrics: m, pool: pool, cache: cache}
}

// GetMetrics returns the counters as JSON.
func (h *MetricsHandler) GetMetrics(c *gin.Context) {
	snapshot := h.metrics.GetSnapshot()

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	response := gin.H{
		"tts": gin.H{
			"requests":     snapshot.TTSRequests,
			"success":      snapshot.TTSSuccess,
			"errors":       snapshot.TTSErrors,
			"success_rate": snapshot.SuccessRate,
			"latency": gin.H{
				"avg": snapshot.AvgLatency.String(),
				"max": snapshot.MaxLatency.String(),
				"min": snapshot.MinLatency.String(),
			},
		},
		"chunking": gin.H{
			"requests":   snapshot.ChunkRequests,
			"chunks":     snapshot.ChunksProduced,
			"avg_length": snapshot.AvgChunkLength,
		},
		"cache": gin.H{
			"hits":       snapshot.CacheHits,
			"misses":     snapshot.CacheMisses,
			"hit_rate":   snapshot.CacheHitRate,
			"total_size": snapshot.CacheTotalSize,
		},
		"worker_pool": gin.H{
			"total_jobs": snapshot.WorkerPoolJobs,
			"errors":     snapshot.WorkerPoolErrors,
		},
		"system": gin.H{
			"memory": gin.H{
				"alloc_mb":       memStats.Alloc / 1024 / 1024,
				"total_alloc_mb": memStats.TotalAlloc / 1024 / 1024,
				"sys_mb":         memStats.Sys / 1024 / 1024,
				"num_gc":         memStats.NumGC,
			},
			"goroutines": runtime.NumGoroutine(),
		},
		"timestamp": snapshot.Timestamp.Format(time.RFC3339),
	}
	if h.pool != nil {
		response["worker_pool"].(gin.H)["stats"] = h.pool()
	}
	if h.cache != nil {
		response["cache"].(gin.H)["items"] = h.cache().ItemCount
	}

	c.JSON(http.StatusOK, response)
}

// ResetMetrics zeroes the counters.
func (h *MetricsHandler) ResetMetrics(c *gin.Context) {
	h.metrics.Reset()
	c.JSON(http.StatusOK, gin.H{
		"message": "Metrics reset successfully",
	})
}

// HealthCheck reports unhealthy once more than half of the upstream calls
// failed, after the first ten.
func (h *MetricsHandler) HealthCheck(c *gin.Context) {
	snapshot := h.metrics.GetSnapshot()

	healthy := true
	reason := "ok"
	if snapshot.TTSRequests > 10 && snapshot.SuccessRate < 50 {
		healthy = false
		reason = "high error rate"
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"healthy":   healthy,
		"reason":    reason,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
