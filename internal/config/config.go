package config

// Core configuration constants that define the boundaries and defaults
// for the acquisition and analysis pipeline.
const (
	DefaultDeviceID        = MinDeviceID // System default device
	DefaultSampleRate      = 44100       // CD-quality audio
	DefaultFramesPerBuffer = 512         // Driver request size for capture and playback
	DefaultInputChannels   = 2           // Stereo, falls back to mono
	DefaultWindowSize      = 2048        // Analysis window (FFT length)
	DefaultHopSize         = 512         // Read cursor advance per window
	DefaultRingSeconds     = 4           // Capture ring capacity

	DefaultMaxFrequency   = 11046 // Highest frequency kept in the spectrogram (Hz)
	DefaultMinDB          = -25.0
	DefaultMaxDB          = 30.0
	DefaultPhasePoints    = 512
	DefaultWindowsPerTick = 2
	DefaultTickRate       = 60 // Analysis ticks per second
	DefaultTargetLevel    = 0.95
	DefaultMinThreshold   = 0.9
	DefaultSilenceSeconds = 1.0
	DefaultSpectrogramW   = 720 // Time columns kept by the scrolling image
	DefaultOnsetThreshold = 0.05
	DefaultOnsetRatio     = 1.6
	DefaultOnsetCooldown  = 8 // About 90ms of hops at 44.1kHz

	// Hardware and processing limits
	MinDeviceID     = -1     // -1 represents system default device
	MinSampleRate   = 8000   // Minimum usable sample rate (Hz)
	MaxSampleRate   = 192000 // Maximum supported sample rate (Hz)
	MaxBufferFrames = 8192   // Maximum frames per buffer (power of 2)
	MaxWindowSize   = 32768
)

// DefaultBands are the equaliser centre frequencies in Hz.
var DefaultBands = []float64{31.5, 63, 125, 250, 500, 1000, 2000, 4000, 8000, 16000}
