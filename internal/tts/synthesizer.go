package tts

import (
	"context"

	"github.com/pablopda/linux-speech-tools/internal/segment"
	"github.com/pablopda/linux-speech-tools/internal/tts/audio"
)

// Audio is one synthesized buffer.
type Audio = audio.Clip

// SynthesisRequest is a single synthesis call: one chunk of text.
type SynthesisRequest struct {
	Text  string
	Voice string
	Model string
	Speed float64
}

// Synthesizer turns one chunk of text into audio. Implementations must be
// safe for concurrent use.
type Synthesizer interface {
	Synthesize(ctx context.Context, req SynthesisRequest) (*Audio, error)
}

// SynthesizerFunc adapts a function to Synthesizer.
type SynthesizerFunc func(ctx context.Context, req SynthesisRequest) (*Audio, error)

// Synthesize calls f.
func (f SynthesizerFunc) Synthesize(ctx context.Context, req SynthesisRequest) (*Audio, error) {
	return f(ctx, req)
}

// Chunker splits text into synthesis-sized chunks. *segment.Engine
// implements it.
type Chunker interface {
	Chunks(text string) []segment.Chunk
	Language(text string) segment.Language
}
