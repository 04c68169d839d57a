package routes

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/sirupsen/logrus"

	"github.com/pablopda/linux-speech-tools/internal/config"
	"github.com/pablopda/linux-speech-tools/internal/http/handlers"
	"github.com/pablopda/linux-speech-tools/internal/http/middleware"
	"github.com/pablopda/linux-speech-tools/internal/jobs"
	"github.com/pablopda/linux-speech-tools/internal/metrics"
	"github.com/pablopda/linux-speech-tools/internal/tts"
	"github.com/pablopda/linux-speech-tools/internal/tts/audio"
)

// Services are the long-lived collaborators behind the routes.
type Services struct {
	Engines *handlers.Engines
	Speech  handlers.SpeechService
	Jobs    *jobs.JobStore
	Metrics *metrics.Metrics
	Pool    func() tts.PoolStats
	Cache   func() tts.CacheStats
	closers []func()
	ctx     context.Context
	cancel  context.CancelFunc
}

// Close cancels running jobs and releases the services in reverse order
// of creation.
func (s *Services) Close() {
	if s.cancel != nil {
		s.cancel()
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// InitializeServices wires the segmentation engines, the remote synthesizer,
// the optional cache and the long-text service.
func InitializeServices(cfg *config.Config, m *metrics.Metrics) (*Services, error) {
	segCfg, err := cfg.Chunking.Segment()
	if err != nil {
		return nil, err
	}
	engines, err := handlers.NewEngines(segCfg)
	if err != nil {
		return nil, fmt.Errorf("create segmentation engines: %w", err)
	}

	var synth tts.Synthesizer = tts.NewRemoteSynthesizer(tts.RemoteConfig{
		Endpoint:      cfg.TTS.Endpoint,
		APIKey:        cfg.TTS.ApiKey,
		Model:         cfg.TTS.Model,
		Voice:         cfg.TTS.DefaultVoice,
		Timeout:       cfg.TTS.RequestTimeoutDuration(),
		RetryAttempts: cfg.TTS.RetryAttempts,
	}, m)

	s := &Services{Engines: engines, Metrics: m}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	if cfg.Cache.Enabled {
		logrus.Info("Enabling synthesis cache")
		caching := tts.NewCachingSynthesizer(
			synth,
			time.Duration(cfg.Cache.ExpirationMinutes)*time.Minute,
			time.Duration(cfg.Cache.CleanupIntervalMinutes)*time.Minute,
			cfg.Cache.MaxTotalSize,
			m,
		)
		synth = caching
		s.Cache = caching.GetStats
	}

	merger := audio.NewWAVMerger(time.Duration(cfg.TTS.SilenceMillis)*time.Millisecond, middleware.AccessLogger())
	service := tts.NewLongTextService(engines.Default(), synth, merger, tts.LongTextConfig{
		Threshold:   segCfg.MaxSize,
		WorkerCount: cfg.TTS.WorkerCount,
		RateLimit:   cfg.TTS.RateLimit,
		RateBurst:   cfg.TTS.RateBurst,
	}, m)
	s.Speech = service
	s.Pool = service.Stats
	s.closers = append(s.closers, service.Close)

	s.Jobs = jobs.NewJobStore(
		time.Duration(cfg.Jobs.TTLMinutes)*time.Minute,
		time.Duration(cfg.Jobs.CleanupIntervalMinutes)*time.Minute,
	)
	s.closers = append(s.closers, s.Jobs.Close)
	return s, nil
}

// SetupRoutes builds the gin engine serving every API route.
func SetupRoutes(cfg *config.Config, s *Services, accessLog zerolog.Logger) (*gin.Engine, error) {
	if s == nil || s.Engines == nil || s.Jobs == nil || s.Metrics == nil {
		return nil, fmt.Errorf("routes: incomplete services")
	}
	ctx := s.ctx
	if ctx == nil {
		ctx = context.Background()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.ErrorHandler(accessLog))

	chunkHandler := handlers.NewChunkHandler(s.Engines, cfg.TTS.MaxTextLength, s.Metrics.RecordChunking)
	metricsHandler := handlers.NewMetricsHandler(s.Metrics, s.Pool, s.Cache)

	var baseRouter gin.IRoutes = router
	if cfg.Server.BasePath != "" {
		baseRouter = router.Group(cfg.Server.BasePath)
	}

	baseRouter.GET("/healthz", metricsHandler.HealthCheck)
	baseRouter.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.NewRegistry(s.Metrics), promhttp.HandlerOpts{})))

	baseRouter.POST("/v1/chunk", chunkHandler.HandleChunk)
	baseRouter.GET("/v1/metrics", metricsHandler.GetMetrics)
	baseRouter.POST("/v1/metrics/reset", metricsHandler.ResetMetrics)

	if s.Speech != nil {
		ttsHandler := handlers.NewTTSHandler(ctx, s.Speech, s.Engines, cfg, s.Jobs)
		baseRouter.POST("/v1/audio/speech", ttsHandler.HandleSpeech)
		baseRouter.GET("/v1/jobs/:job_id", ttsHandler.HandleJobStatus)
		baseRouter.GET("/v1/jobs/:job_id/audio", ttsHandler.HandleJobResult)
	}

	return router, nil
}
