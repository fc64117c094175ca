// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"math"
	"testing"

	"visualizer/internal/stream"
	"visualizer/pkg/utils"
)

const (
	testWindowSize = 2048
	testHopSize    = 512
	testSampleRate = 44100.0
)

var testBands = []float64{31.5, 63, 125, 250, 500, 1000, 2000, 4000, 8000, 16000}

func testOptions() Options {
	return Options{
		SampleRate:       testSampleRate,
		WindowSize:       testWindowSize,
		HopSize:          testHopSize,
		Bands:            testBands,
		MaxFrequency:     11046,
		MinDB:            -25,
		MaxDB:            30,
		SpectrogramWidth: 64,
		PhasePoints:      512,
	}
}

func newTestSetup(t testing.TB, mutate ...func(*Options)) *Setup {
	t.Helper()
	opts := testOptions()
	for _, m := range mutate {
		m(&opts)
	}
	s, err := NewSetup(opts, nil)
	if err != nil {
		t.Fatalf("NewSetup: %v", err)
	}
	return s
}

func sineWindow(freq, amplitude float64) *stream.Window {
	return &stream.Window{Left: utils.GenerateSineWave(testWindowSize, testSampleRate, freq, amplitude)}
}

func TestNewSetupValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Options)
	}{
		{"window not power of two", func(o *Options) { o.WindowSize = 1000 }},
		{"hop larger than window", func(o *Options) { o.HopSize = 4096 }},
		{"zero sample rate", func(o *Options) { o.SampleRate = 0 }},
		{"no bands", func(o *Options) { o.Bands = nil }},
		{"descending bands", func(o *Options) { o.Bands = []float64{100, 50} }},
		{"band above nyquist", func(o *Options) { o.Bands = []float64{100, 30000} }},
		{"inverted dB range", func(o *Options) { o.MinDB, o.MaxDB = 30, -25 }},
		{"zero width", func(o *Options) { o.SpectrogramWidth = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := testOptions()
			tt.mutate(&opts)
			if _, err := NewSetup(opts, nil); err == nil {
				t.Error("NewSetup() succeeded, want error")
			}
		})
	}

	opts := testOptions()
	opts.Bands = []float64{0, 100}
	if _, err := NewSetup(opts, nil); !errors.Is(err, ErrBands) {
		t.Errorf("zero band centre: got %v, want ErrBands", err)
	}
}

func TestNewSetupUnknownWindowFallsBackToHann(t *testing.T) {
	s := newTestSetup(t, func(o *Options) { o.Window = "triangle" })
	if s.Taper[0] != 0 || math.Abs(s.Taper[testWindowSize/2]-1) > 1e-3 {
		t.Errorf("taper is not Hann: first %f, middle %f", s.Taper[0], s.Taper[testWindowSize/2])
	}
}

func TestParseWindowFunc(t *testing.T) {
	tests := []struct {
		name    string
		want    WindowFunc
		wantErr bool
	}{
		{"", Hann, false},
		{"HANN", Hann, false},
		{"hanning", Hann, false},
		{"Hamming", Hamming, false},
		{"blackman", Blackman, false},
		{"blackmannuttall", BlackmanNuttall, false},
		{"nuttall", Nuttall, false},
		{"kaiser", Hann, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseWindowFunc(tt.name)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseWindowFunc(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseWindowFunc(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestHannTaperIsSymmetric(t *testing.T) {
	s := newTestSetup(t)
	n := len(s.Taper)
	if n != testWindowSize {
		t.Fatalf("taper length = %d, want %d", n, testWindowSize)
	}
	for i := range n / 2 {
		if math.Abs(s.Taper[i]-s.Taper[n-1-i]) > 1e-12 {
			t.Fatalf("taper[%d] = %f, taper[%d] = %f", i, s.Taper[i], n-1-i, s.Taper[n-1-i])
		}
	}
	if s.Taper[0] != 0 || s.Taper[n-1] > 1e-12 {
		t.Errorf("taper endpoints = %f, %f, want 0", s.Taper[0], s.Taper[n-1])
	}
}

func TestBandEdgesFor(t *testing.T) {
	edges, err := BandEdgesFor([]float64{100, 200, 400}, 8000)
	if err != nil {
		t.Fatalf("BandEdgesFor: %v", err)
	}
	want := []BandEdges{
		{Center: 100, Low: 0, High: 150},
		{Center: 200, Low: 150, High: 300},
		{Center: 400, Low: 300, High: 4000},
	}
	for i := range want {
		if edges[i] != want[i] {
			t.Errorf("edges[%d] = %+v, want %+v", i, edges[i], want[i])
		}
	}
}

func TestDisplayBins(t *testing.T) {
	tests := []struct {
		maxFreq, sampleRate float64
		windowSize          int
		want                int
	}{
		{11046, 44100, 2048, 513},
		{0, 44100, 2048, 1025},
		{30000, 44100, 2048, 1025},
		{5000, 48000, 1024, 106},
	}

	for _, tt := range tests {
		if got := DisplayBins(tt.maxFreq, tt.sampleRate, tt.windowSize); got != tt.want {
			t.Errorf("DisplayBins(%.0f, %.0f, %d) = %d, want %d",
				tt.maxFreq, tt.sampleRate, tt.windowSize, got, tt.want)
		}
	}
}

func TestTransformPeakBin(t *testing.T) {
	s := newTestSetup(t)
	tr := NewTransform(s)
	slice := NewSlice(testWindowSize)

	for _, bin := range []int{10, 100, 400} {
		freq := s.BinFrequency(bin)
		tr.Apply(utils.GenerateSineWave(testWindowSize, testSampleRate, freq, 0.5), slice)

		if len(slice.Coeffs) != testWindowSize/2+1 || len(slice.Power) != testWindowSize/2+1 {
			t.Fatalf("slice has %d coeffs and %d powers", len(slice.Coeffs), len(slice.Power))
		}
		if got := utils.FindPeakBin(slice.Power, 0, len(slice.Power)-1); got != bin {
			t.Errorf("sine at %.1f Hz peaked in bin %d, want %d", freq, got, bin)
		}
	}
}

func TestTransformZeroPadsShortFrames(t *testing.T) {
	s := newTestSetup(t)
	tr := NewTransform(s)

	short := utils.GenerateSineWave(300, testSampleRate, 1000, 0.5)
	padded := make([]float64, testWindowSize)
	copy(padded, short)

	a, b := NewSlice(testWindowSize), NewSlice(testWindowSize)
	tr.Apply(short, a)
	tr.Apply(padded, b)
	for k := range a.Coeffs {
		if a.Coeffs[k] != b.Coeffs[k] {
			t.Fatalf("bin %d differs: %v vs %v", k, a.Coeffs[k], b.Coeffs[k])
		}
	}
}

func TestTransformHotPath(t *testing.T) {
	s := newTestSetup(t)
	tr := NewTransform(s)
	slice := NewSlice(testWindowSize)
	frame := utils.GenerateComplexWave(testWindowSize, testSampleRate)

	tr.Apply(frame, slice)
	allocs := testing.AllocsPerRun(100, func() {
		tr.Apply(frame, slice)
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in Transform.Apply, got %.1f", allocs)
	}
}

func TestFrequencies(t *testing.T) {
	s := newTestSetup(t)
	freqs := NewTransform(s).Frequencies()
	if len(freqs) != s.Bins() {
		t.Fatalf("len = %d, want %d", len(freqs), s.Bins())
	}
	if freqs[0] != 0 || freqs[len(freqs)-1] != testSampleRate/2 {
		t.Errorf("range = [%f, %f], want [0, %f]", freqs[0], freqs[len(freqs)-1], testSampleRate/2)
	}
}

func BenchmarkTransform(b *testing.B) {
	s := newTestSetup(b)
	tr := NewTransform(s)
	slice := NewSlice(testWindowSize)
	frame := utils.GenerateComplexWave(testWindowSize, testSampleRate)

	b.ReportAllocs()

	for b.Loop() {
		tr.Apply(frame, slice)
	}
}
