package tts

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/pablopda/linux-speech-tools/internal/metrics"
)

// CacheStats are the synthesis cache counters.
type CacheStats struct {
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	HitRate   float64 `json:"hit_rate"`
	ItemCount int     `json:"item_count"`
	TotalSize int64   `json:"total_size_bytes"`
}

// CachingSynthesizer wraps a Synthesizer with an in-memory result cache.
type CachingSynthesizer struct {
	next         Synthesizer
	cache        *cache.Cache
	hits         int64
	misses       int64
	totalSize    int64 // bytes of PCM held
	maxTotalSize int64 // 0 means unbounded
	metrics      *metrics.Metrics

	// setMu serializes size accounting around Set and eviction.
	setMu sync.Mutex
}

// NewCachingSynthesizer creates a caching decorator. maxTotalSize bounds the
// cached PCM bytes; older entries are evicted to make room and entries
// larger than the bound are never cached. m may be nil.
func NewCachingSynthesizer(next Synthesizer, defaultExpiration, cleanupInterval time.Duration, maxTotalSize int64, m *metrics.Metrics) *CachingSynthesizer {
	c := &CachingSynthesizer{
		next:         next,
		cache:        cache.New(defaultExpiration, cleanupInterval),
		maxTotalSize: maxTotalSize,
		metrics:      m,
	}

	c.cache.OnEvicted(func(key string, value interface{}) {
		if e, ok := value.(*cacheEntry); ok {
			c.addSize(-e.size)
		}
	})
	return c
}

type cacheEntry struct {
	audio   *Audio
	size    int64
	created time.Time
}

// Synthesize returns a cached buffer or calls the wrapped synthesizer.
// Cached buffers are shared and must not be modified.
func (s *CachingSynthesizer) Synthesize(ctx context.Context, req SynthesisRequest) (*Audio, error) {
	key := s.generateCacheKey(req)

	if v, found := s.cache.Get(key); found {
		atomic.AddInt64(&s.hits, 1)
		if s.metrics != nil {
			s.metrics.RecordCacheHit()
		}
		logrus.WithField("key", key).Debug("Cache hit")
		return v.(*cacheEntry).audio, nil
	}

	atomic.AddInt64(&s.misses, 1)
	if s.metrics != nil {
		s.metrics.RecordCacheMiss()
	}
	logrus.WithField("key", key).Debug("Cache miss")

	clip, err := s.next.Synthesize(ctx, req)
	if err != nil {
		return nil, err
	}
	s.store(key, clip)
	return clip, nil
}

func (s *CachingSynthesizer) store(key string, clip *Audio) {
	size := pcmSize(clip)

	s.setMu.Lock()
	defer s.setMu.Unlock()

	if s.maxTotalSize > 0 {
		if size > s.maxTotalSize {
			logrus.WithFields(logrus.Fields{
				"key":      key,
				"size":     size,
				"max_size": s.maxTotalSize,
			}).Debug("Skipping cache, entry larger than cache")
			return
		}
		s.evictFor(size)
	}

	// replacing an existing key does not fire OnEvicted
	if old, found := s.cache.Get(key); found {
		s.addSize(-old.(*cacheEntry).size)
	}
	s.cache.Set(key, &cacheEntry{audio: clip, size: size, created: time.Now()}, cache.DefaultExpiration)
	s.addSize(size)
}

// evictFor deletes the oldest entries until size more bytes fit.
func (s *CachingSynthesizer) evictFor(size int64) {
	if atomic.LoadInt64(&s.totalSize)+size <= s.maxTotalSize {
		return
	}

	type aged struct {
		key     string
		created time.Time
	}
	var entries []aged
	for k, item := range s.cache.Items() {
		entries = append(entries, aged{key: k, created: item.Object.(*cacheEntry).created})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].created.Before(entries[j].created) })

	for _, e := range entries {
		if atomic.LoadInt64(&s.totalSize)+size <= s.maxTotalSize {
			return
		}
		s.cache.Delete(e.key) // OnEvicted adjusts the size
	}
}

func (s *CachingSynthesizer) addSize(delta int64) {
	atomic.AddInt64(&s.totalSize, delta)
	if s.metrics != nil {
		s.metrics.AddCacheSize(delta)
	}
}

// pcmSize approximates the memory held by a clip's samples.
func pcmSize(clip *Audio) int64 {
	if clip == nil {
		return 0
	}
	bytesPerSample := int64(clip.BitDepth / 8)
	if bytesPerSample <= 0 {
		bytesPerSample = 2
	}
	return int64(len(clip.PCM)) * bytesPerSample
}

// generateCacheKey hashes every field that changes the audio. Voice and
// model are case and space insensitive; text is used exactly.
func (s *CachingSynthesizer) generateCacheKey(req SynthesisRequest) string {
	hash := sha256.New()
	hash.Write([]byte("text:"))
	hash.Write([]byte(req.Text))
	hash.Write([]byte("|voice:"))
	hash.Write([]byte(strings.ToLower(strings.TrimSpace(req.Voice))))
	hash.Write([]byte("|model:"))
	hash.Write([]byte(strings.ToLower(strings.TrimSpace(req.Model))))
	hash.Write([]byte("|speed:"))
	hash.Write([]byte(strconv.FormatFloat(req.Speed, 'f', -1, 64)))
	return hex.EncodeToString(hash.Sum(nil))
}

// GetStats returns the cache counters.
func (s *CachingSynthesizer) GetStats() CacheStats {
	hits := atomic.LoadInt64(&s.hits)
	misses := atomic.LoadInt64(&s.misses)

	hitRate := 0.0
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	return CacheStats{
		Hits:      hits,
		Misses:    misses,
		HitRate:   hitRate,
		ItemCount: s.cache.ItemCount(),
		TotalSize: atomic.LoadInt64(&s.totalSize),
	}
}

// ClearCache drops every entry.
func (s *CachingSynthesizer) ClearCache() {
	s.setMu.Lock()
	defer s.setMu.Unlock()
	// Flush does not fire OnEvicted
	s.cache.Flush()
	s.addSize(-atomic.LoadInt64(&s.totalSize))
	logrus.Info("Cache cleared")
}
