package utils

import (
	"math"
	"sync"
)

// MockTransport stands in for a Transport of T in tests. It records every
// value it is asked to send. When Err is set, Send records the value and
// then returns Err.
type MockTransport[T any] struct {
	Err error

	mu     sync.Mutex
	sent   []T
	closes int
}

// Send stores v for later inspection instead of transmitting.
func (m *MockTransport[T]) Send(v T) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, v)
	return m.Err
}

// Close counts the call.
func (m *MockTransport[T]) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closes++
	return nil
}

// Sent returns a copy of everything sent so far.
func (m *MockTransport[T]) Sent() []T {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]T(nil), m.sent...)
}

// Closed reports whether Close was called.
func (m *MockTransport[T]) Closed() bool { return m.Closes() > 0 }

// Closes returns how many times Close was called.
func (m *MockTransport[T]) Closes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closes
}

// GenerateComplexWave returns a 440Hz fundamental plus two harmonics, peaking
// below 0.9.
func GenerateComplexWave(size int, sampleRate float64) []float64 {
	buffer := make([]float64, size)
	for i := range buffer {
		tm := float64(i) / sampleRate
		signal := math.Sin(2*math.Pi*440*tm)*0.5 +
			math.Sin(2*math.Pi*880*tm)*0.3 +
			math.Sin(2*math.Pi*1320*tm)*0.2
		buffer[i] = signal * 0.9
	}
	return buffer
}

// GenerateSineWave returns size samples of a sine at frequency Hz.
func GenerateSineWave(size int, sampleRate, frequency, amplitude float64) []float64 {
	buffer := make([]float64, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = amplitude * math.Sin(2*math.Pi*frequency*t)
	}
	return buffer
}

// GenerateSineWave32 is GenerateSineWave for driver-format buffers.
func GenerateSineWave32(size int, sampleRate, frequency, amplitude float64) []float32 {
	buffer := make([]float32, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = float32(amplitude * math.Sin(2*math.Pi*frequency*t))
	}
	return buffer
}

// FindPeakBin returns the index of the largest value in [startBin, endBin].
func FindPeakBin(magnitudes []float64, startBin, endBin int) int {
	if len(magnitudes) == 0 {
		return 0
	}

	if startBin < 0 {
		startBin = 0
	}

	if endBin >= len(magnitudes) {
		endBin = len(magnitudes) - 1
	}

	peakBin := startBin
	peakValue := magnitudes[startBin]

	for bin := startBin + 1; bin <= endBin; bin++ {
		if magnitudes[bin] > peakValue {
			peakValue = magnitudes[bin]
			peakBin = bin
		}
	}

	return peakBin
}
