package audio

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrNoSegments is returned when there is nothing to merge.
	ErrNoSegments = errors.New("no segments to merge")
	// ErrFormatMismatch is returned when clips differ in sample rate,
	// channel count or bit depth.
	ErrFormatMismatch = errors.New("audio format mismatch")
)

// Merger joins per-chunk clips, in order, into one clip.
type Merger interface {
	Merge(clips []*Clip) (*Clip, error)
}

// WAVMerger concatenates PCM clips of identical format, optionally with a
// fixed pause between them.
type WAVMerger struct {
	silence time.Duration
	logger  zerolog.Logger
}

// NewWAVMerger creates a merger inserting silence between consecutive clips.
func NewWAVMerger(silence time.Duration, logger zerolog.Logger) *WAVMerger {
	if silence < 0 {
		silence = 0
	}
	return &WAVMerger{silence: silence, logger: logger}
}

// Merge concatenates clips. A single clip is returned as is.
func (m *WAVMerger) Merge(clips []*Clip) (*Clip, error) {
	if len(clips) == 0 {
		return nil, ErrNoSegments
	}
	for i, c := range clips {
		if c == nil {
			return nil, fmt.Errorf("segment %d is nil: %w", i, ErrNoSegments)
		}
	}
	if len(clips) == 1 {
		return clips[0], nil
	}

	format := clips[0].Format()
	gap := format.frames(m.silence) * format.Channels
	total := gap * (len(clips) - 1)
	for i, c := range clips {
		if f := c.Format(); f != format {
			return nil, fmt.Errorf("%w: segment %d is %s, want %s", ErrFormatMismatch, i, f, format)
		}
		total += len(c.PCM)
	}

	pcm := make([]int, 0, total)
	for i, c := range clips {
		if i > 0 && gap > 0 {
			pcm = append(pcm, make([]int, gap)...)
		}
		pcm = append(pcm, c.PCM...)
	}

	merged := &Clip{
		PCM:        pcm,
		SampleRate: format.SampleRate,
		Channels:   format.Channels,
		BitDepth:   format.BitDepth,
	}
	m.logger.Debug().
		Int("segments", len(clips)).
		Dur("duration", merged.Duration()).
		Dur("silence", m.silence).
		Msg("merged audio segments")
	return merged, nil
}
