// Package segment splits prose into chunks ready for speech synthesis.
//
// A call runs the same pipeline every time:
//
//	detect language -> protect spans -> split sentences -> assemble chunks
//	(oversized sentences go through the break-point optimizer) -> restore
//
// Every chunk ends at the most natural boundary available, stays within the
// configured size band where the text allows it, and never cuts through a
// protected span such as "Dr.", "U.S." or "3.14". Joining the chunks with
// single spaces reproduces the input up to whitespace normalization.
//
// Rule tables are built once at package initialization and are read-only;
// an Engine holds no mutable state, so all methods are safe for concurrent
// use by multiple goroutines.
package segment

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	apperrors "github.com/pablopda/linux-speech-tools/internal/errors"
)

// ErrInvalidConfiguration is returned by New when the size thresholds are
// not ordered min < target <= max.
var ErrInvalidConfiguration = apperrors.ErrInvalidConfiguration

const (
	DefaultTargetSize      = 150
	DefaultMinSize         = 40
	DefaultMaxSize         = 300
	DefaultConjunctionBias = 0.6
)

// Config sizes are in runes.
type Config struct {
	TargetSize int      `json:"target_size" validate:"gt=0,gtfield=MinSize,ltefield=MaxSize"`
	MinSize    int      `json:"min_size" validate:"gt=0"`
	MaxSize    int      `json:"max_size" validate:"gt=0"`
	Language   Language `json:"language" validate:"gte=0,lte=2"`

	// ConjunctionBias positions the preferred comma+conjunction split as a
	// fraction of the sentence length. Zero means DefaultConjunctionBias.
	ConjunctionBias float64 `json:"conjunction_bias,omitempty" validate:"gte=0,lte=1"`
}

// DefaultConfig returns the thresholds tuned for conversational TTS voices.
func DefaultConfig() Config {
	return Config{
		TargetSize:      DefaultTargetSize,
		MinSize:         DefaultMinSize,
		MaxSize:         DefaultMaxSize,
		ConjunctionBias: DefaultConjunctionBias,
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Engine is a configured segmenter. Create it with New.
type Engine struct {
	cfg Config
	log logrus.FieldLogger
}

// Option customizes an Engine.
type Option func(*Engine)

// WithLogger makes the engine log its decisions at debug level.
func WithLogger(log logrus.FieldLogger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// New validates cfg and returns an Engine.
func New(cfg Config, opts ...Option) (*Engine, error) {
	if cfg.ConjunctionBias == 0 {
		cfg.ConjunctionBias = DefaultConjunctionBias
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("%w: min=%d target=%d max=%d: %v",
			ErrInvalidConfiguration, cfg.MinSize, cfg.TargetSize, cfg.MaxSize, err)
	}

	discard := logrus.New()
	discard.SetOutput(io.Discard)
	e := &Engine{cfg: cfg, log: discard}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// WithLanguage returns a copy of the engine pinned to lang. Auto restores
// detection.
func (e *Engine) WithLanguage(lang Language) *Engine {
	c := *e
	c.cfg.Language = lang
	return &c
}

// Language returns the language whose rules apply to text: the configured
// override, or the detected language.
func (e *Engine) Language(text string) Language {
	return resolve(e.cfg.Language, text)
}

// Chunk splits text into ordered chunk strings. Empty or whitespace-only
// input yields nil.
func (e *Engine) Chunk(text string) []string {
	chunks := e.Chunks(text)
	if len(chunks) == 0 {
		return nil
	}
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Text
	}
	return out
}

// Chunks is Chunk with per-chunk metadata.
func (e *Engine) Chunks(text string) []Chunk {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	lang := e.Language(trimmed)
	r := rulesFor(lang)
	mask := Protect(trimmed, lang)
	sentences := r.splitSentences(mask)

	asm := &assembler{
		target:  e.cfg.TargetSize,
		minSize: e.cfg.MinSize,
		maxSize: e.cfg.MaxSize,
		opt:     e.optimizer(r),
	}

	var chunks []Chunk
	for _, piece := range asm.assemble(sentences) {
		piece = strings.TrimSpace(mask.Restore(piece))
		if piece == "" {
			continue
		}
		chunks = append(chunks, Chunk{
			Index:  len(chunks),
			Text:   piece,
			Length: utf8.RuneCountInString(piece),
		})
	}

	if len(chunks) == 0 {
		e.log.WithField("length", utf8.RuneCountInString(trimmed)).Warn("segmentation produced no chunks, returning input whole")
		chunks = []Chunk{{Text: trimmed, Length: utf8.RuneCountInString(trimmed)}}
	}

	e.log.WithFields(logrus.Fields{
		"language":  lang.String(),
		"protected": len(mask.Spans),
		"sentences": len(sentences),
		"chunks":    len(chunks),
	}).Debug("text segmented")
	return chunks
}

// Sentences returns the restored sentences of text in document order,
// before any chunk assembly.
func (e *Engine) Sentences(text string) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	lang := e.Language(trimmed)
	sentences := rulesFor(lang).splitSentences(Protect(trimmed, lang))
	out := make([]string, len(sentences))
	for i, s := range sentences {
		out[i] = s.Text
	}
	return out
}

// SplitLong applies the break-point optimizer to a single sentence using
// the rules of lang (Auto detects). Sentences within MaxSize come back as
// they are.
func (e *Engine) SplitLong(sentence string, lang Language) []string {
	sentence = normalizeSpace(sentence)
	if sentence == "" {
		return nil
	}
	return e.optimizer(rulesFor(resolve(lang, sentence))).split(sentence)
}

func (e *Engine) optimizer(r *ruleSet) *optimizer {
	return &optimizer{
		rules:           r,
		target:          e.cfg.TargetSize,
		minSize:         e.cfg.MinSize,
		maxSize:         e.cfg.MaxSize,
		conjunctionBias: e.cfg.ConjunctionBias,
	}
}
