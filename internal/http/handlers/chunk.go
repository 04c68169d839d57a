package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	custom_errors "github.com/pablopda/linux-speech-tools/internal/errors"
	"github.com/pablopda/linux-speech-tools/internal/http/middleware"
	"github.com/pablopda/linux-speech-tools/internal/models"
	"github.com/pablopda/linux-speech-tools/internal/segment"
)

// getLoggerWithTraceID returns a logrus entry tagged with the request trace id.
func getLoggerWithTraceID(c *gin.Context) *logrus.Entry {
	return logrus.WithField("trace_id", middleware.TraceID(c))
}

// truncateForLog shortens text for logging, keeping its head and tail.
func truncateForLog(text string, maxLength int) string {
	text = strings.ReplaceAll(text, "\n", " ")
	text = strings.ReplaceAll(text, "\r", " ")

	runes := []rune(text)
	if len(runes) <= maxLength {
		return text
	}
	half := maxLength / 2
	return string(runes[:half]) + "..." + string(runes[len(runes)-half:])
}

// Engines holds one segmentation engine per language so requests can pin a
// language without rebuilding rule state.
type Engines struct {
	byLanguage map[segment.Language]*segment.Engine
	fallback   *segment.Engine
}

// NewEngines builds engines for cfg. The fallback engine uses cfg.Language
// as configured; the others force English or Spanish.
func NewEngines(cfg segment.Config, opts ...segment.Option) (*Engines, error) {
	fallback, err := segment.New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	e := &Engines{byLanguage: map[segment.Language]*segment.Engine{}, fallback: fallback}
	for _, lang := range []segment.Language{segment.Auto, segment.English, segment.Spanish} {
		c := cfg
		c.Language = lang
		if e.byLanguage[lang], err = segment.New(c, opts...); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Default returns the engine used when a request names no language.
func (e *Engines) Default() *segment.Engine {
	return e.fallback
}

// For returns the engine for a request language code or name. An empty code
// selects the default engine.
func (e *Engines) For(code string) (*segment.Engine, error) {
	if strings.TrimSpace(code) == "" {
		return e.fallback, nil
	}
	lang, err := segment.ParseLanguage(code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", custom_errors.ErrInvalidInput, err)
	}
	return e.byLanguage[lang], nil
}

// ChunkHandler serves text chunking without synthesis.
type ChunkHandler struct {
	engines       *Engines
	maxTextLength int
	record        func(lengths []int)
}

// NewChunkHandler creates a ChunkHandler. record, if set, receives the chunk
// lengths of every request.
func NewChunkHandler(engines *Engines, maxTextLength int, record func(lengths []int)) *ChunkHandler {
	return &ChunkHandler{engines: engines, maxTextLength: maxTextLength, record: record}
}

// HandleChunk splits the posted text into chunks.
func (h *ChunkHandler) HandleChunk(c *gin.Context) {
	var req models.ChunkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(fmt.Errorf("%w: invalid JSON request: %v", custom_errors.ErrInvalidInput, err))
		return
	}

	length := utf8.RuneCountInString(req.Text)
	if h.maxTextLength > 0 && length > h.maxTextLength {
		_ = c.Error(fmt.Errorf("%w: text exceeds the %d character limit", custom_errors.ErrInvalidInput, h.maxTextLength))
		return
	}

	engine, err := h.engines.For(req.Language)
	if err != nil {
		_ = c.Error(err)
		return
	}

	chunks := engine.Chunks(req.Text)
	if chunks == nil {
		chunks = []segment.Chunk{}
	}
	if h.record != nil {
		lengths := make([]int, len(chunks))
		for i, ch := range chunks {
			lengths[i] = ch.Length
		}
		h.record(lengths)
	}

	lang := engine.Language(req.Text)
	getLoggerWithTraceID(c).WithFields(logrus.Fields{
		"language":    lang.String(),
		"text_length": length,
		"chunks":      len(chunks),
		"text":        truncateForLog(req.Text, 40),
	}).Info("Text chunked")

	c.JSON(http.StatusOK, models.ChunkResponse{
		Language: lang.String(),
		Count:    len(chunks),
		Chunks:   chunks,
	})
}
