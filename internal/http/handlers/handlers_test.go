package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pablopda/linux-speech-tools/internal/config"
	custom_errors "github.com/pablopda/linux-speech-tools/internal/errors"
	"github.com/pablopda/linux-speech-tools/internal/http/middleware"
	"github.com/pablopda/linux-speech-tools/internal/jobs"
	"github.com/pablopda/linux-speech-tools/internal/metrics"
	"github.com/pablopda/linux-speech-tools/internal/models"
	"github.com/pablopda/linux-speech-tools/internal/segment"
	"github.com/pablopda/linux-speech-tools/internal/tts"
	"github.com/pablopda/linux-speech-tools/internal/tts/audio"
)

const longInput = "The committee met on Monday to review the budget. " +
	"Dr. Smith presented the figures, and everyone listened closely. " +
	"After a short break the discussion moved to hiring plans for the spring. " +
	"Nobody expected the meeting to run past six, but it did."

// recordingSynth answers with one sample per request holding the rune
// count, and remembers every request.
type recordingSynth struct {
	mu   sync.Mutex
	reqs []tts.SynthesisRequest
	err  error
}

func (r *recordingSynth) Synthesize(ctx context.Context, req tts.SynthesisRequest) (*tts.Audio, error) {
	r.mu.Lock()
	r.reqs = append(r.reqs, req)
	r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	return &tts.Audio{PCM: []int{utf8.RuneCountInString(req.Text)}, SampleRate: 8000, Channels: 1, BitDepth: 16}, nil
}

func (r *recordingSynth) requests() []tts.SynthesisRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]tts.SynthesisRequest(nil), r.reqs...)
}

type testEnv struct {
	router  *gin.Engine
	synth   *recordingSynth
	store   *jobs.JobStore
	metrics *metrics.Metrics
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	engines, err := NewEngines(segment.Config{TargetSize: 60, MinSize: 15, MaxSize: 120})
	require.NoError(t, err)

	synth := &recordingSynth{}
	m := metrics.New()
	svc := tts.NewLongTextService(engines.Default(), synth, audio.NewWAVMerger(0, zerolog.Nop()),
		tts.LongTextConfig{Threshold: 120, WorkerCount: 2}, m)
	t.Cleanup(svc.Close)

	store := jobs.NewJobStore(time.Hour, time.Hour)
	t.Cleanup(store.Close)

	cfg := &config.Config{TTS: config.TTSConfig{
		Model:            "tts-1",
		DefaultVoice:     "alloy",
		MaxTextLength:    1000,
		SegmentThreshold: 100,
	}}

	router := gin.New()
	router.Use(middleware.ErrorHandler(zerolog.Nop()))

	chunk := NewChunkHandler(engines, cfg.TTS.MaxTextLength, m.RecordChunking)
	speech := NewTTSHandler(context.Background(), svc, engines, cfg, store)
	mh := NewMetricsHandler(m, svc.Stats, nil)

	router.POST("/v1/chunk", chunk.HandleChunk)
	router.POST("/v1/audio/speech", speech.HandleSpeech)
	router.GET("/v1/jobs/:job_id", speech.HandleJobStatus)
	router.GET("/v1/jobs/:job_id/audio", speech.HandleJobResult)
	router.GET("/v1/metrics", mh.GetMetrics)
	router.POST("/v1/metrics/reset", mh.ResetMetrics)
	router.GET("/healthz", mh.HealthCheck)

	return &testEnv{router: router, synth: synth, store: store, metrics: m}
}

func (e *testEnv) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestHandleChunk(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/v1/chunk", models.ChunkRequest{Text: "Hello world. This is a test."})
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.ChunkResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "en", resp.Language)
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, []segment.Chunk{{Index: 0, Text: "Hello world. This is a test.", Length: 28}}, resp.Chunks)

	snap := env.metrics.GetSnapshot()
	assert.Equal(t, int64(1), snap.ChunkRequests)
	assert.Equal(t, int64(1), snap.ChunksProduced)
}

func TestHandleChunkLanguage(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/v1/chunk", models.ChunkRequest{Text: "Hello there.", Language: "es-MX"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"language":"es"`)

	w = env.do(http.MethodPost, "/v1/chunk", models.ChunkRequest{Text: "Hello there.", Language: "klingon"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleChunkRejectsBadInput(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/v1/chunk", map[string]string{"language": "en"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	long := make([]byte, 1001)
	for i := range long {
		long[i] = 'a'
	}
	w = env.do(http.MethodPost, "/v1/chunk", models.ChunkRequest{Text: string(long)})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "1000 character limit")
}

func TestHandleChunkWhitespace(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/v1/chunk", models.ChunkRequest{Text: "   "})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"chunks":[]`)
	assert.Contains(t, w.Body.String(), `"count":0`)
}

func TestHandleSpeechSync(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/v1/audio/speech", models.SpeechRequest{Input: "Hello there."})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "audio/wav", w.Header().Get("Content-Type"))

	clip, err := audio.Decode(w.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, []int{12}, clip.PCM)

	reqs := env.synth.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, tts.SynthesisRequest{Text: "Hello there.", Voice: "alloy", Model: "tts-1"}, reqs[0])
}

func TestHandleSpeechValidation(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/v1/audio/speech", models.SpeechRequest{Voice: "nova"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPost, "/v1/audio/speech", models.SpeechRequest{Input: "Hi.", Speed: 9})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Empty(t, env.synth.requests())
}

func TestHandleSpeechUpstreamFailure(t *testing.T) {
	env := newTestEnv(t)
	env.synth.err = fmt.Errorf("%w: status 500", custom_errors.ErrUpstreamServiceFailed)

	w := env.do(http.MethodPost, "/v1/audio/speech", models.SpeechRequest{Input: "Hello there."})
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestHandleSpeechAsyncJob(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/v1/audio/speech", models.SpeechRequest{Input: longInput, Voice: "nova"})
	require.Equal(t, http.StatusAccepted, w.Code)

	var job models.Job
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &job))
	require.NotEmpty(t, job.ID)
	assert.Greater(t, job.Chunks, 1)

	require.Eventually(t, func() bool {
		j, ok := env.store.GetJob(job.ID)
		return ok && j.Status == models.JobStatusComplete
	}, 2*time.Second, 10*time.Millisecond)

	w = env.do(http.MethodGet, "/v1/jobs/"+job.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var status models.Job
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, models.JobStatusComplete, status.Status)
	assert.NotNil(t, status.CompletedAt)

	w = env.do(http.MethodGet, "/v1/jobs/"+job.ID+"/audio", nil)
	require.Equal(t, http.StatusOK, w.Code)
	clip, err := audio.Decode(w.Body.Bytes())
	require.NoError(t, err)
	assert.Len(t, clip.PCM, job.Chunks)

	for _, r := range env.synth.requests() {
		assert.Equal(t, "nova", r.Voice)
	}
}

func TestHandleSpeechAsyncJobFailure(t *testing.T) {
	env := newTestEnv(t)
	env.synth.err = errors.New("engine offline")

	w := env.do(http.MethodPost, "/v1/audio/speech", models.SpeechRequest{Input: longInput})
	require.Equal(t, http.StatusAccepted, w.Code)
	var job models.Job
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &job))

	require.Eventually(t, func() bool {
		j, _ := env.store.GetJob(job.ID)
		return j.Status == models.JobStatusError
	}, 2*time.Second, 10*time.Millisecond)

	w = env.do(http.MethodGet, "/v1/jobs/"+job.ID+"/audio", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "engine offline")
}

func TestHandleJobPending(t *testing.T) {
	env := newTestEnv(t)
	job := env.store.CreateJob(3)

	w := env.do(http.MethodGet, "/v1/jobs/"+job.ID+"/audio", nil)
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), `"progress":"0/3"`)
}

func TestHandleJobNotFound(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/v1/jobs/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(http.MethodGet, "/v1/jobs/missing/audio", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsEndpoints(t *testing.T) {
	env := newTestEnv(t)
	env.do(http.MethodPost, "/v1/chunk", models.ChunkRequest{Text: "One. Two."})

	w := env.do(http.MethodGet, "/v1/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	chunking, ok := body["chunking"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(1), chunking["requests"])
	assert.Contains(t, body["worker_pool"], "stats")

	w = env.do(http.MethodPost, "/v1/metrics/reset", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(0), env.metrics.GetSnapshot().ChunkRequests)

	w = env.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"healthy":true`)
}

func TestHealthCheckUnhealthy(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 11; i++ {
		env.metrics.RecordTTSRequest(time.Millisecond, errors.New("down"))
	}

	w := env.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "high error rate")
}

func TestTruncateForLog(t *testing.T) {
	assert.Equal(t, "short", truncateForLog("short", 10))
	assert.Equal(t, "ab...yz", truncateForLog("abcdefghijklmnopqrstuvwxyz", 4))
	assert.Equal(t, "a b", truncateForLog("a\nb", 10))
}
