// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"visualizer/pkg/bitint"

	"gopkg.in/yaml.v3"
)

var (
	ErrWindowSize = errors.New("audio.window_size must be a power of 2")
	ErrHopSize    = errors.New("audio.hop_size must be positive and smaller than audio.window_size")
	ErrBands      = errors.New("analysis.bands needs at least two ascending centre frequencies")
)

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	Debug     bool            `yaml:"debug"`             // Enable debug mode (verbose logging).
	LogLevel  string          `yaml:"log_level"`         // Logging level (e.g., "debug", "info", "warn", "error").
	Command   string          `yaml:"command,omitempty"` // A one-off command to execute instead of running the engine (e.g., "list").
	Source    SourceConfig    `yaml:"source"`            // Which audio source feeds the pipeline.
	Audio     AudioConfig     `yaml:"audio"`             // Driver and framing settings.
	Analysis  AnalysisConfig  `yaml:"analysis"`          // Spectral analysis and display settings.
	Recording RecordingConfig `yaml:"recording"`         // Audio recording settings.
	Transport TransportConfig `yaml:"transport"`         // Where per-tick frames are published.
}

// SourceConfig selects the audio source variant.
type SourceConfig struct {
	File     string   `yaml:"file"`     // Play and analyse a single file.
	Playlist []string `yaml:"playlist"` // Play and analyse files in order.
	TUI      bool     `yaml:"tui"`      // Show the terminal band meter.
}

// AudioConfig holds settings related to audio input/output and framing.
type AudioConfig struct {
	InputDevice     int     `yaml:"input_device"`      // PortAudio device index for capture (-1 for default).
	OutputDevice    int     `yaml:"output_device"`     // PortAudio device index for playback (-1 for default).
	SampleRate      float64 `yaml:"sample_rate"`       // Sample rate in Hz; decoded files are resampled to it.
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // Frames per driver callback.
	LowLatency      bool    `yaml:"low_latency"`       // Request low latency settings from PortAudio device.
	InputChannels   int     `yaml:"input_channels"`    // 2 for stereo capture (falls back to 1).
	WindowSize      int     `yaml:"window_size"`       // Analysis window length in samples (power of 2).
	HopSize         int     `yaml:"hop_size"`          // Samples between successive windows.
	RingSeconds     float64 `yaml:"ring_seconds"`      // Capture ring capacity in seconds.
	FFTWindow       string  `yaml:"fft_window"`        // Taper name, "Hann" unless overridden.
}

// AnalysisConfig holds settings for the band, spectrogram and phase displays.
type AnalysisConfig struct {
	Bands          []float64 `yaml:"bands"`         // Band centre frequencies in Hz, ascending.
	MaxFrequency   float64   `yaml:"max_frequency"` // Highest frequency kept in spectrogram columns.
	MinDB          float64   `yaml:"min_db"`        // Spectrogram colour floor.
	MaxDB          float64   `yaml:"max_db"`        // Spectrogram colour ceiling.
	SpectrogramW   int       `yaml:"spectrogram_width"`
	PhasePoints    int       `yaml:"phase_points"`     // Mid/side points per frame.
	WindowsPerTick int       `yaml:"windows_per_tick"` // Windows consumed per analysis tick.
	TickRate       int       `yaml:"tick_rate"`        // Analysis ticks per second.
	TargetLevel    float64   `yaml:"target_level"`     // Loudness normalisation target peak.
	MinThreshold   float64   `yaml:"min_threshold"`    // Peaks below this are amplified.
	SilenceSeconds float64   `yaml:"silence_seconds"`  // Silence substituted for undecodable files.
	OnsetThreshold float64   `yaml:"onset_threshold"`  // Minimum window RMS for an onset.
	OnsetRatio     float64   `yaml:"onset_ratio"`      // Minimum RMS rise over the previous window.
	OnsetCooldown  int       `yaml:"onset_cooldown"`   // Windows ignored after an onset.
}

// RecordingConfig holds settings related to audio recording functionality.
type RecordingConfig struct {
	Enabled   bool   `yaml:"enabled"`    // Record microphone input to WAV.
	OutputDir string `yaml:"output_dir"` // Directory to save recorded audio files.
	File      string `yaml:"file"`       // Fixed recording path; generated in OutputDir when empty.
	BitDepth  int    `yaml:"bit_depth"`  // Bit depth for recorded audio (16 or 24).
}

// TransportConfig holds settings related to sending processed frames.
type TransportConfig struct {
	WebSocketEnabled bool          `yaml:"websocket_enabled"`
	WebSocketAddress string        `yaml:"websocket_address"`  // Listen address, e.g. ":8080".
	UDPEnabled       bool          `yaml:"udp_enabled"`        // Enable sending band levels over UDP.
	UDPTargetAddress string        `yaml:"udp_target_address"` // Target address and port for UDP packets.
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`  // Interval between sending UDP packets.
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Audio: AudioConfig{
			InputDevice:     DefaultDeviceID,
			OutputDevice:    DefaultDeviceID,
			SampleRate:      DefaultSampleRate,
			FramesPerBuffer: DefaultFramesPerBuffer,
			InputChannels:   DefaultInputChannels,
			WindowSize:      DefaultWindowSize,
			HopSize:         DefaultHopSize,
			RingSeconds:     DefaultRingSeconds,
			FFTWindow:       "Hann",
		},
		Analysis: AnalysisConfig{
			Bands:          slices.Clone(DefaultBands),
			MaxFrequency:   DefaultMaxFrequency,
			MinDB:          DefaultMinDB,
			MaxDB:          DefaultMaxDB,
			SpectrogramW:   DefaultSpectrogramW,
			PhasePoints:    DefaultPhasePoints,
			WindowsPerTick: DefaultWindowsPerTick,
			TickRate:       DefaultTickRate,
			TargetLevel:    DefaultTargetLevel,
			MinThreshold:   DefaultMinThreshold,
			SilenceSeconds: DefaultSilenceSeconds,
			OnsetThreshold: DefaultOnsetThreshold,
			OnsetRatio:     DefaultOnsetRatio,
			OnsetCooldown:  DefaultOnsetCooldown,
		},
		Recording: RecordingConfig{
			OutputDir: "./recordings",
			BitDepth:  16,
		},
		Transport: TransportConfig{
			WebSocketAddress: ":8080",
			UDPTargetAddress: "127.0.0.1:9090",
			UDPSendInterval:  16 * time.Millisecond,
		},
	}
}

// LoadConfig loads configuration from a YAML file specified by path. If path is empty,
// it searches default locations ("config.yaml"). If no file is found, it uses built-in
// defaults. After loading defaults or from file, it applies environment variable
// overrides and validates the final configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		for _, candidate := range []string{"config.yaml", "visualizer.yaml"} {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Apply environment variable overrides AFTER loading from file.
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks the values that every analysis stage depends on. Window,
// hop and band settings feed the bin-to-frequency mapping, so a bad value
// here would silently skew every display.
func (c *Config) Validate() error {
	a := c.Audio
	if a.SampleRate < MinSampleRate || a.SampleRate > MaxSampleRate {
		return fmt.Errorf("audio.sample_rate %.0f outside [%d, %d]", a.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if a.FramesPerBuffer <= 0 || a.FramesPerBuffer > MaxBufferFrames {
		return fmt.Errorf("audio.frames_per_buffer %d outside (0, %d]", a.FramesPerBuffer, MaxBufferFrames)
	}
	if a.InputChannels != 1 && a.InputChannels != 2 {
		return fmt.Errorf("audio.input_channels must be 1 or 2, got %d", a.InputChannels)
	}
	if !bitint.IsPowerOfTwo(a.WindowSize) || a.WindowSize > MaxWindowSize {
		return fmt.Errorf("%w, got %d", ErrWindowSize, a.WindowSize)
	}
	if a.HopSize <= 0 || a.HopSize >= a.WindowSize {
		return fmt.Errorf("%w, got %d", ErrHopSize, a.HopSize)
	}
	if a.RingSeconds*a.SampleRate < float64(2*a.WindowSize) {
		return fmt.Errorf("audio.ring_seconds %.2f cannot hold two analysis windows", a.RingSeconds)
	}

	an := c.Analysis
	if len(an.Bands) < 2 || !slices.IsSorted(an.Bands) || an.Bands[0] <= 0 {
		return ErrBands
	}
	if an.MaxFrequency <= 0 || an.MaxFrequency > a.SampleRate/2 {
		return fmt.Errorf("analysis.max_frequency %.0f outside (0, %.0f]", an.MaxFrequency, a.SampleRate/2)
	}
	if an.MaxDB <= an.MinDB {
		return fmt.Errorf("analysis.max_db %.1f must exceed min_db %.1f", an.MaxDB, an.MinDB)
	}
	if an.PhasePoints <= 0 || an.SpectrogramW <= 0 {
		return fmt.Errorf("analysis.phase_points and analysis.spectrogram_width must be positive")
	}
	if an.WindowsPerTick <= 0 || an.TickRate <= 0 {
		return fmt.Errorf("analysis.windows_per_tick and analysis.tick_rate must be positive")
	}
	if an.TargetLevel <= 0 || an.TargetLevel > 1 || an.MinThreshold <= 0 || an.MinThreshold > 1 {
		return fmt.Errorf("analysis.target_level and analysis.min_threshold must be in (0, 1]")
	}
	if an.OnsetRatio < 1 || an.OnsetCooldown < 0 {
		return fmt.Errorf("analysis.onset_ratio must be at least 1 and onset_cooldown non-negative")
	}

	if c.Recording.BitDepth != 16 && c.Recording.BitDepth != 24 {
		return fmt.Errorf("recording.bit_depth must be 16 or 24, got %d", c.Recording.BitDepth)
	}

	if c.Transport.UDPEnabled {
		if !strings.Contains(c.Transport.UDPTargetAddress, ":") {
			return fmt.Errorf("transport.udp_target_address '%s' appears invalid (missing port?)", c.Transport.UDPTargetAddress)
		}
		if c.Transport.UDPSendInterval <= 0 {
			return fmt.Errorf("transport.udp_send_interval must be positive when UDP is enabled")
		}
	}

	return nil
}

// TickInterval is the period of the analysis/render schedule.
func (c *Config) TickInterval() time.Duration {
	return time.Second / time.Duration(c.Analysis.TickRate)
}

// applyEnvOverrides applies ENV_* variables on top of the file/default values.
func (cfg *Config) applyEnvOverrides() {
	// ENV_DEBUG
	if val, ok := os.LookupEnv("ENV_DEBUG"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Debug = bVal
		}
	}
	// ENV_LOG_LEVEL
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok {
		cfg.LogLevel = val
	}

	// ENV_AUDIO_{...}

	// ENV_AUDIO_SAMPLE_RATE
	if val, ok := os.LookupEnv("ENV_AUDIO_SAMPLE_RATE"); ok {
		if fVal, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Audio.SampleRate = fVal
		}
	}
	// ENV_AUDIO_WINDOW_SIZE
	if val, ok := os.LookupEnv("ENV_AUDIO_WINDOW_SIZE"); ok {
		if iVal, err := strconv.Atoi(val); err == nil {
			cfg.Audio.WindowSize = iVal
		}
	}
	// ENV_AUDIO_HOP_SIZE
	if val, ok := os.LookupEnv("ENV_AUDIO_HOP_SIZE"); ok {
		if iVal, err := strconv.Atoi(val); err == nil {
			cfg.Audio.HopSize = iVal
		}
	}

	// ENV_UDP_{...}
	// These are specific to the transport layer.

	// ENV_UDP_ENABLED
	if val, ok := os.LookupEnv("ENV_UDP_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Transport.UDPEnabled = bVal
		}
	}
	// ENV_UDP_TARGET_ADDRESS
	if val, ok := os.LookupEnv("ENV_UDP_TARGET_ADDRESS"); ok {
		cfg.Transport.UDPTargetAddress = val
	}
	// ENV_UDP_SEND_INTERVAL
	if val, ok := os.LookupEnv("ENV_UDP_SEND_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			cfg.Transport.UDPSendInterval = dur
		}
	}
	// ENV_WS_ADDRESS
	if val, ok := os.LookupEnv("ENV_WS_ADDRESS"); ok {
		cfg.Transport.WebSocketEnabled = true
		cfg.Transport.WebSocketAddress = val
	}
}
