package audio

import (
	"bytes"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

func createTemp(t *testing.T, name string) *os.File {
	t.Helper()
	f, err := os.Create(filepath.Join(t.TempDir(), name))
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func writeRaw(t *testing.T, f *os.File, sampleRate, bitDepth, channels int, data []int) {
	t.Helper()
	enc := wav.NewEncoder(f, sampleRate, bitDepth, channels, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encoding: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("closing encoder: %v", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		t.Fatalf("rewinding: %v", err)
	}
}

func TestWriteToneRoundTrip(t *testing.T) {
	f := createTemp(t, "tone.wav")

	if err := WriteTone(f, 440, 8000, 500*time.Millisecond); err != nil {
		t.Fatalf("WriteTone failed: %v", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		t.Fatal(err)
	}

	clip, err := Decode(f)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if clip.SampleRate != 8000 {
		t.Errorf("SampleRate = %d, want 8000", clip.SampleRate)
	}
	if clip.Channels != 1 || clip.BitDepth != 16 {
		t.Errorf("got %d channels at %d bits, want mono 16-bit", clip.Channels, clip.BitDepth)
	}
	if len(clip.Samples) != 4000 {
		t.Errorf("len(Samples) = %d, want 4000", len(clip.Samples))
	}
	if clip.Duration() != 500*time.Millisecond {
		t.Errorf("Duration = %s, want 500ms", clip.Duration())
	}

	var peak float64
	for _, s := range clip.Samples {
		peak = math.Max(peak, math.Abs(s))
	}
	if peak < 0.7 || peak > 0.81 {
		t.Errorf("peak amplitude = %.3f, want about 0.8", peak)
	}
	if clip.Samples[0] != 0 || clip.Samples[len(clip.Samples)-1] != 0 {
		t.Error("tone should fade in from and out to silence")
	}
}

func TestWriteToneRejectsBadInput(t *testing.T) {
	tests := []struct {
		name       string
		freq       float64
		sampleRate int
		duration   time.Duration
	}{
		{"zero frequency", 0, 8000, time.Second},
		{"negative frequency", -440, 8000, time.Second},
		{"zero sample rate", 440, 0, time.Second},
		{"above nyquist", 4000, 8000, time.Second},
		{"empty duration", 440, 8000, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := createTemp(t, "bad.wav")
			if err := WriteTone(f, tt.freq, tt.sampleRate, tt.duration); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestDecodeRejectsNonWAV(t *testing.T) {
	_, err := Decode(bytes.NewReader([]byte("definitely not a riff file")))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("Decode error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestDecodeMixesStereo(t *testing.T) {
	f := createTemp(t, "stereo.wav")
	writeRaw(t, f, 8000, 16, 2, []int{16384, 0, 16384, 0, -16384, -16384})

	clip, err := Decode(f)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	want := []float64{0.25, 0.25, -0.5}
	if len(clip.Samples) != len(want) {
		t.Fatalf("len(Samples) = %d, want %d", len(clip.Samples), len(want))
	}
	for i, w := range want {
		if clip.Samples[i] != w {
			t.Errorf("Samples[%d] = %v, want %v", i, clip.Samples[i], w)
		}
	}
}

func TestDecode24Bit(t *testing.T) {
	f := createTemp(t, "deep.wav")
	writeRaw(t, f, 48000, 24, 1, []int{1 << 22, -(1 << 22), 0})

	clip, err := Decode(f)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if clip.BitDepth != 24 {
		t.Errorf("BitDepth = %d, want 24", clip.BitDepth)
	}
	want := []float64{0.5, -0.5, 0}
	for i, w := range want {
		if clip.Samples[i] != w {
			t.Errorf("Samples[%d] = %v, want %v", i, clip.Samples[i], w)
		}
	}
}

func TestReadFileMissing(t *testing.T) {
	if _, err := ReadFile(filepath.Join(t.TempDir(), "missing.wav")); err == nil {
		t.Error("ReadFile should fail for a missing file")
	}
}

func TestRenderSpectrogram(t *testing.T) {
	f := createTemp(t, "tone.wav")
	if err := WriteTone(f, 660, 8000, time.Second); err != nil {
		t.Fatalf("WriteTone failed: %v", err)
	}
	f.Seek(0, io.SeekStart)
	clip, err := Decode(f)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	out := filepath.Join(t.TempDir(), "nested", "tone.png")
	if err := RenderSpectrogram(clip.Samples, clip.SampleRate, out, 256, 128); err != nil {
		t.Fatalf("RenderSpectrogram failed: %v", err)
	}

	info, err := os.Stat(out)
	if err != nil {
		t.Fatalf("spectrogram not written: %v", err)
	}
	if info.Size() == 0 {
		t.Error("spectrogram PNG is empty")
	}
}

func TestRenderSpectrogramRejectsEmpty(t *testing.T) {
	if err := RenderSpectrogram(nil, 8000, filepath.Join(t.TempDir(), "x.png"), 0, 0); err == nil {
		t.Error("expected an error for empty input")
	}
}
