package audio

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"os"
	"path/filepath"

	"github.com/eligwz/spectrogram"
)

const (
	DefaultSpectrogramWidth  = 2048
	DefaultSpectrogramHeight = 512
)

// RenderSpectrogram draws a magnitude spectrogram of samples on a black
// background and saves it as a PNG at path. The image height is also the
// number of frequency bins.
func RenderSpectrogram(samples []float64, sampleRate int, path string, width, height int) error {
	if len(samples) == 0 {
		return errors.New("no samples to render")
	}
	if sampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	if width <= 0 {
		width = DefaultSpectrogramWidth
	}
	if height <= 0 {
		height = DefaultSpectrogramHeight
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating output dir: %w", err)
		}
	}

	img := spectrogram.NewImage128(image.Rect(0, 0, width, height))
	black := spectrogram.ParseColor("000000")
	draw.Draw(img, img.Bounds(), image.NewUniform(black), image.Point{}, draw.Src)

	// Hamming window, FFT, linear magnitude
	spectrogram.Drawfft(
		img,
		samples,
		uint32(sampleRate),
		uint32(height),
		false,
		false,
		true,
		false,
	)

	if err := spectrogram.SavePng(img, path); err != nil {
		return fmt.Errorf("saving spectrogram: %w", err)
	}
	return nil
}
