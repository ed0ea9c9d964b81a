package audio

import (
	"fmt"
	"io"
	"math"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	DefaultSampleRate   = 44100
	DefaultToneDuration = 2 * time.Second

	toneBitDepth  = 16
	toneAmplitude = 0.8
	toneFade      = 10 * time.Millisecond
)

// WriteTone writes a 16-bit mono WAV holding a sine at frequency Hz. The
// first and last 10ms fade linearly to avoid clicks.
func WriteTone(w io.WriteSeeker, frequency float64, sampleRate int, duration time.Duration) error {
	if !(frequency > 0) || math.IsInf(frequency, 0) {
		return fmt.Errorf("tone frequency must be positive, got %v", frequency)
	}
	if sampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	if frequency >= float64(sampleRate)/2 {
		return fmt.Errorf("tone %.2f Hz is above the Nyquist limit for %d Hz", frequency, sampleRate)
	}

	total := int(duration.Seconds() * float64(sampleRate))
	if total <= 0 {
		return fmt.Errorf("tone duration %s is too short", duration)
	}
	fade := int(toneFade.Seconds() * float64(sampleRate))
	if fade*2 > total {
		fade = total / 2
	}

	peak := toneAmplitude * float64(int(1)<<(toneBitDepth-1)-1)
	data := make([]int, total)
	for i := range data {
		gain := 1.0
		if i < fade {
			gain = float64(i) / float64(fade)
		} else if i >= total-fade {
			gain = float64(total-1-i) / float64(fade)
		}
		data[i] = int(math.Round(peak * gain * math.Sin(2*math.Pi*frequency*float64(i)/float64(sampleRate))))
	}

	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: 1,
			SampleRate:  sampleRate,
		},
		Data:           data,
		SourceBitDepth: toneBitDepth,
	}

	enc := wav.NewEncoder(w, sampleRate, toneBitDepth, 1, pcmFormat)
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("encoding tone: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalizing tone: %w", err)
	}
	return nil
}
