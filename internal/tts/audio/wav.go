package audio

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// wavPCMFormat is the WAVE_FORMAT_PCM audio format tag.
const wavPCMFormat = 1

// Clip is decoded, interleaved PCM audio.
type Clip struct {
	PCM        []int
	SampleRate int
	Channels   int
	BitDepth   int
}

// Format describes the sample layout of a Clip.
type Format struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

func (f Format) String() string {
	return fmt.Sprintf("%dHz/%dch/%dbit", f.SampleRate, f.Channels, f.BitDepth)
}

// frames returns how many frames last d.
func (f Format) frames(d time.Duration) int {
	return int(d * time.Duration(f.SampleRate) / time.Second)
}

// Format returns the clip's sample layout.
func (c *Clip) Format() Format {
	return Format{SampleRate: c.SampleRate, Channels: c.Channels, BitDepth: c.BitDepth}
}

// Duration returns the playing time of the clip.
func (c *Clip) Duration() time.Duration {
	if c.SampleRate <= 0 || c.Channels <= 0 {
		return 0
	}
	frames := len(c.PCM) / c.Channels
	return time.Duration(frames) * time.Second / time.Duration(c.SampleRate)
}

// Decode reads a PCM WAV file.
func Decode(data []byte) (*Clip, error) {
	d := wav.NewDecoder(bytes.NewReader(data))
	if !d.IsValidFile() {
		return nil, fmt.Errorf("decode wav: not a valid PCM wav file")
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode wav: %w", err)
	}
	return &Clip{
		PCM:        buf.Data,
		SampleRate: buf.Format.SampleRate,
		Channels:   buf.Format.NumChannels,
		BitDepth:   int(d.BitDepth),
	}, nil
}

// Encode writes c as a PCM WAV file to w.
func Encode(w io.WriteSeeker, c *Clip) error {
	enc := wav.NewEncoder(w, c.SampleRate, c.BitDepth, c.Channels, wavPCMFormat)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: c.Channels, SampleRate: c.SampleRate},
		Data:           c.PCM,
		SourceBitDepth: c.BitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}
	return nil
}

// EncodeBytes encodes c into an in-memory WAV file. The encoder needs to
// seek back to patch the header, so the data goes through a temp file.
func EncodeBytes(c *Clip) ([]byte, error) {
	f, err := os.CreateTemp("", "speech_*.wav")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(f.Name())
	defer f.Close()

	if err := Encode(f, c); err != nil {
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind temp file: %w", err)
	}
	return io.ReadAll(f)
}
