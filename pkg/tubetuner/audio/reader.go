package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-audio/wav"
)

const pcmFormat = 1

var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Clip is a decoded recording mixed down to mono, with samples in [-1, 1].
type Clip struct {
	Samples    []float64
	SampleRate int
	Channels   int
	BitDepth   int
}

func (c *Clip) Duration() time.Duration {
	if c.SampleRate == 0 {
		return 0
	}
	return time.Duration(float64(len(c.Samples)) / float64(c.SampleRate) * float64(time.Second))
}

// ReadFile decodes the PCM WAV file at path.
func ReadFile(path string) (*Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	clip, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return clip, nil
}

// Decode reads an 8, 16, 24 or 32-bit integer PCM WAV stream. Multi-channel
// audio is averaged into one channel.
func Decode(r io.ReadSeeker) (*Clip, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("%w: not a WAV file", ErrUnsupportedFormat)
	}
	if decoder.WavAudioFormat != pcmFormat {
		return nil, fmt.Errorf("%w: WAV format %d, only PCM is read", ErrUnsupportedFormat, decoder.WavAudioFormat)
	}
	if decoder.NumChans == 0 {
		return nil, fmt.Errorf("%w: no channels", ErrUnsupportedFormat)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("reading samples: %w", err)
	}

	bitDepth := int(decoder.BitDepth)
	channels := int(decoder.NumChans)

	var offset float64
	switch bitDepth {
	case 8:
		// 8-bit WAV samples are unsigned
		offset = 128
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: %d-bit samples", ErrUnsupportedFormat, bitDepth)
	}
	maxVal := float64(int(1) << (uint(bitDepth) - 1))

	frames := len(buf.Data) / channels
	samples := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for ch := 0; ch < channels; ch++ {
			sum += (float64(buf.Data[i*channels+ch]) - offset) / maxVal
		}
		samples[i] = sum / float64(channels)
	}

	return &Clip{
		Samples:    samples,
		SampleRate: int(decoder.SampleRate),
		Channels:   channels,
		BitDepth:   bitDepth,
	}, nil
}
