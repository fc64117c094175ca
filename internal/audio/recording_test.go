// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"visualizer/internal/stream"

	"github.com/go-audio/wav"
)

// readRecording decodes a finished recording into per-channel integer
// samples. right is nil for mono files.
func readRecording(t *testing.T, path string) (left, right []int) {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open recording: %v", err)
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		t.Fatalf("%s is not a valid WAV file", path)
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		t.Fatalf("decode recording: %v", err)
	}
	channels := buf.Format.NumChannels
	for i := 0; i+channels <= len(buf.Data); i += channels {
		left = append(left, buf.Data[i])
		if channels == 2 {
			right = append(right, buf.Data[i+1])
		}
	}
	return left, right
}

func window(start uint64, left, right []float64) *stream.Window {
	return &stream.Window{Left: left, Right: right, Start: start}
}

func constant(n int, v float64) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = v
	}
	return s
}

func TestRecordingName(t *testing.T) {
	ts := time.Date(2024, time.March, 7, 21, 4, 5, 0, time.UTC)
	if got, want := RecordingName(ts), "recording-07-03-2024-210405.wav"; got != want {
		t.Errorf("RecordingName() = %q, want %q", got, want)
	}
}

func TestRecorderWritesOverlapOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "take.wav")
	r, err := NewRecorder(path, testSampleRate, 2, 16)
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}

	// Windows of 8 with a hop of 4: the second window repeats samples 4..7.
	if err := r.Write(window(0, constant(8, 0.5), constant(8, -0.5))); err != nil {
		t.Fatal(err)
	}
	if err := r.Write(window(4, constant(8, 0.25), constant(8, -0.25))); err != nil {
		t.Fatal(err)
	}
	// An old window adds nothing.
	if err := r.Write(window(2, constant(8, 1), constant(8, 1))); err != nil {
		t.Fatal(err)
	}
	if r.Frames() != 12 {
		t.Errorf("Frames() = %d, want 12", r.Frames())
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	left, right := readRecording(t, path)
	if len(left) != 12 || len(right) != 12 {
		t.Fatalf("read %d/%d frames, want 12", len(left), len(right))
	}
	half, quarter := int(0.5*32767), int(0.25*32767)
	for i := range 8 {
		if left[i] != half || right[i] != -half {
			t.Fatalf("frame %d = (%d, %d), want (%d, %d)", i, left[i], right[i], half, -half)
		}
	}
	for i := 8; i < 12; i++ {
		if left[i] != quarter || right[i] != -quarter {
			t.Fatalf("frame %d = (%d, %d), want (%d, %d)", i, left[i], right[i], quarter, -quarter)
		}
	}
}

func TestRecorderMonoAndClipping(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mono.wav")
	r, err := NewRecorder(path, testSampleRate, 1, 24)
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}
	if err := r.Write(window(100, []float64{2, -2, 0, 0.5}, nil)); err != nil {
		t.Fatal(err)
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}

	left, right := readRecording(t, path)
	limit := 1<<23 - 1
	want := []int{limit, -limit, 0, int(0.5 * float64(limit))}
	if right != nil {
		t.Errorf("mono file has a right channel")
	}
	if len(left) != len(want) {
		t.Fatalf("read %d frames, want %d", len(left), len(want))
	}
	for i := range want {
		if left[i] != want[i] {
			t.Errorf("sample %d = %d, want %d", i, left[i], want[i])
		}
	}
}

func TestRecorderStereoFromMonoWindow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dup.wav")
	r, err := NewRecorder(path, testSampleRate, 2, 16)
	if err != nil {
		t.Fatal(err)
	}
	r.Write(window(0, []float64{0.5, 0.5}, nil))
	r.Close()

	left, right := readRecording(t, path)
	if len(right) != 2 || right[0] != left[0] {
		t.Errorf("left %v right %v, want duplicated channel", left, right)
	}
}

func TestRecorderClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "closed.wav")
	r, err := NewRecorder(path, testSampleRate, 2, 16)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if err := r.Write(window(0, constant(4, 0), constant(4, 0))); !errors.Is(err, os.ErrClosed) {
		t.Errorf("Write after Close = %v, want os.ErrClosed", err)
	}
	if r.Path() != path {
		t.Errorf("Path() = %q", r.Path())
	}
}

func TestNewRecorderValidation(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name     string
		channels int
		depth    int
		substr   string
	}{
		{"8 bit", 2, 8, "bit depth"},
		{"32 bit", 2, 32, "bit depth"},
		{"three channels", 3, 16, "channel"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRecorder(filepath.Join(dir, "x.wav"), testSampleRate, tt.channels, tt.depth)
			if err == nil || !strings.Contains(err.Error(), tt.substr) {
				t.Errorf("error = %v, want substring %q", err, tt.substr)
			}
		})
	}
}
