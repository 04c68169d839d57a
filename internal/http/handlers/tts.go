package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/pablopda/linux-speech-tools/internal/config"
	custom_errors "github.com/pablopda/linux-speech-tools/internal/errors"
	"github.com/pablopda/linux-speech-tools/internal/jobs"
	"github.com/pablopda/linux-speech-tools/internal/models"
	"github.com/pablopda/linux-speech-tools/internal/segment"
	"github.com/pablopda/linux-speech-tools/internal/tts"
)

const wavContentType = "audio/wav"

// formatFileSize renders a byte count for logs.
func formatFileSize(size int) string {
	switch {
	case size < 1024:
		return fmt.Sprintf("%d B", size)
	case size < 1024*1024:
		return fmt.Sprintf("%.2f KB", float64(size)/1024.0)
	default:
		return fmt.Sprintf("%.2f MB", float64(size)/(1024.0*1024.0))
	}
}

// SpeechService is what TTSHandler needs from tts.LongTextService.
type SpeechService interface {
	PlanWith(c tts.Chunker, text string) []segment.Chunk
	SynthesizePlan(ctx context.Context, req tts.SynthesisRequest, plan []segment.Chunk) ([]byte, error)
	SynthesizeAsync(ctx context.Context, req tts.SynthesisRequest, plan []segment.Chunk, onProgress func(done int)) ([]byte, error)
}

// TTSHandler serves speech synthesis and async job lookups.
type TTSHandler struct {
	ctx      context.Context // bounds background jobs
	service  SpeechService
	engines  *Engines
	config   *config.Config
	jobStore *jobs.JobStore
}

// NewTTSHandler creates a TTSHandler. Background jobs stop when ctx is done.
func NewTTSHandler(ctx context.Context, service SpeechService, engines *Engines, cfg *config.Config, jobStore *jobs.JobStore) *TTSHandler {
	return &TTSHandler{
		ctx:      ctx,
		service:  service,
		engines:  engines,
		config:   cfg,
		jobStore: jobStore,
	}
}

// HandleSpeech synthesizes an OpenAI style speech request. Inputs up to the
// segment threshold are answered with WAV audio; longer inputs start a job
// and get 202 with its id.
func (h *TTSHandler) HandleSpeech(c *gin.Context) {
	startTime := time.Now()
	logger := getLoggerWithTraceID(c)

	var req models.SpeechRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(fmt.Errorf("%w: invalid JSON request: %v", custom_errors.ErrInvalidInput, err))
		return
	}

	length := utf8.RuneCountInString(req.Input)
	if length > h.config.TTS.MaxTextLength {
		_ = c.Error(fmt.Errorf("%w: text exceeds the %d character limit", custom_errors.ErrInvalidInput, h.config.TTS.MaxTextLength))
		return
	}
	if req.Speed != 0 && (req.Speed < 0.25 || req.Speed > 4) {
		_ = c.Error(fmt.Errorf("%w: speed must be between 0.25 and 4.0", custom_errors.ErrInvalidInput))
		return
	}

	engine, err := h.engines.For(req.Language)
	if err != nil {
		_ = c.Error(err)
		return
	}

	synthReq := h.synthesisRequest(req)
	plan := h.service.PlanWith(engine, req.Input)
	logger = logger.WithFields(logrus.Fields{
		"text_length": length,
		"chunks":      len(plan),
		"voice":       synthReq.Voice,
	})

	if length > h.config.TTS.SegmentThreshold {
		h.startJob(c, synthReq, plan, logger)
		return
	}

	data, err := h.service.SynthesizePlan(c.Request.Context(), synthReq, plan)
	if err != nil {
		logger.WithError(err).Error("Speech synthesis failed")
		_ = c.Error(err)
		return
	}

	logger.WithFields(logrus.Fields{
		"total_time": time.Since(startTime),
		"audio_size": formatFileSize(len(data)),
	}).Info("Speech synthesized")
	c.Data(http.StatusOK, wavContentType, data)
}

func (h *TTSHandler) synthesisRequest(req models.SpeechRequest) tts.SynthesisRequest {
	out := tts.SynthesisRequest{
		Text:  req.Input,
		Voice: req.Voice,
		Model: req.Model,
		Speed: req.Speed,
	}
	if out.Voice == "" {
		out.Voice = h.config.TTS.DefaultVoice
	}
	if out.Model == "" {
		out.Model = h.config.TTS.Model
	}
	return out
}

func (h *TTSHandler) startJob(c *gin.Context, req tts.SynthesisRequest, plan []segment.Chunk, logger *logrus.Entry) {
	job := h.jobStore.CreateJob(len(plan))
	logger = logger.WithField("job_id", job.ID)
	logger.Info("Created async speech job")

	go h.runSynthesisJob(job.ID, req, plan, logger)

	c.JSON(http.StatusAccepted, job)
}

func (h *TTSHandler) runSynthesisJob(jobID string, req tts.SynthesisRequest, plan []segment.Chunk, logger *logrus.Entry) {
	start := time.Now()
	data, err := h.service.SynthesizeAsync(h.ctx, req, plan, func(done int) {
		h.jobStore.UpdateProgress(jobID, done)
	})
	if err != nil {
		logger.WithError(err).Error("Async speech job failed")
		h.jobStore.SetJobError(jobID, err.Error())
		return
	}

	h.jobStore.SetJobComplete(jobID, data)
	logger.WithFields(logrus.Fields{
		"duration":   time.Since(start),
		"audio_size": formatFileSize(len(data)),
	}).Info("Async speech job completed")
}

// HandleJobStatus reports the state of a job.
func (h *TTSHandler) HandleJobStatus(c *gin.Context) {
	jobID := c.Param("job_id")

	job, found := h.jobStore.GetJob(jobID)
	if !found {
		_ = c.Error(fmt.Errorf("job %s: %w", jobID, custom_errors.ErrNotFound))
		return
	}

	getLoggerWithTraceID(c).WithFields(logrus.Fields{
		"job_id":   jobID,
		"status":   job.Status,
		"progress": job.Progress,
	}).Debug("Job status requested")
	c.JSON(http.StatusOK, job)
}

// HandleJobResult serves the audio of a completed job.
func (h *TTSHandler) HandleJobResult(c *gin.Context) {
	jobID := c.Param("job_id")
	logger := getLoggerWithTraceID(c).WithField("job_id", jobID)

	job, found := h.jobStore.GetJob(jobID)
	if !found {
		_ = c.Error(fmt.Errorf("job %s: %w", jobID, custom_errors.ErrNotFound))
		return
	}

	switch job.Status {
	case models.JobStatusComplete:
		logger.WithField("audio_size", formatFileSize(len(job.AudioData))).Info("Serving job audio")
		c.Data(http.StatusOK, wavContentType, job.AudioData)
	case models.JobStatusError:
		c.JSON(http.StatusConflict, gin.H{"status": job.Status, "error": job.Error})
	default:
		c.JSON(http.StatusAccepted, gin.H{"status": job.Status, "progress": job.Progress})
	}
}
