// SPDX-License-Identifier: MIT
package cmd

import (
	"fmt"

	"visualizer/internal/config"
	"visualizer/pkg/build"

	"github.com/spf13/cobra"
)

// Commands that replace the analysis run.
const (
	CommandList    = "list"
	CommandDevices = "devices"
)

type flagValues struct {
	configPath string
	file       string
	playlist   []string
	device     int
	output     int
	sampleRate float64
	windowSize int
	hopSize    int
	channels   int
	lowLatency bool
	record     bool
	outputFile string
	websocket  string
	udp        string
	tui        bool
	verbose    bool
}

// ParseArgs parses the command line, loads the configuration file it names
// (or the default locations) and applies explicitly set flags on top.
func ParseArgs(args []string) (*config.Config, error) {
	buildInfo := build.GetBuildFlags()
	var (
		flags   flagValues
		command string
		ran     bool
	)

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ran = true
			return nil
		},
	}

	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	rootCmd.AddCommand(&cobra.Command{
		Use:   CommandList,
		Short: "List available audio devices",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			command = CommandList
			ran = true
		},
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   CommandDevices,
		Short: "Pick the input device interactively, then start analysing",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			command = CommandDevices
			ran = true
		},
	})

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "Path to a YAML configuration file")

	// Source
	pf.StringVarP(&flags.file, "file", "f", "", "Play and analyse an audio file instead of the microphone")
	pf.StringSliceVarP(&flags.playlist, "playlist", "p", nil, "Play and analyse several files in order")

	// Audio device configuration
	pf.IntVarP(&flags.device, "device", "d", config.DefaultDeviceID,
		"Input device ID. Use the 'list' command to see available devices.")
	pf.IntVar(&flags.output, "output-device", config.DefaultDeviceID, "Output device ID for file playback")
	pf.Float64VarP(&flags.sampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Sample rate, measured in Hertz (Hz)")
	pf.IntVarP(&flags.channels, "channels", "c", config.DefaultInputChannels,
		"Capture channels (1=mono, 2=stereo)")
	pf.BoolVarP(&flags.lowLatency, "low-latency", "l", false,
		"Use low latency mode for real-time processing")

	// Framing
	pf.IntVarP(&flags.windowSize, "window-size", "w", config.DefaultWindowSize, "Analysis window size (power of 2)")
	pf.IntVar(&flags.hopSize, "hop-size", config.DefaultHopSize, "Samples between analysis windows")

	// Recording
	pf.BoolVarP(&flags.record, "record", "r", false, "Record the microphone input")
	pf.StringVarP(&flags.outputFile, "output", "o", "",
		"Recording file name. Default is recording-DD-MM-YYYY-HHMMSS.wav in the recording directory")

	// Sinks and display
	pf.StringVar(&flags.websocket, "websocket", "", "Serve frames to WebSocket clients on this address")
	pf.StringVar(&flags.udp, "udp", "", "Send band levels over UDP to this address")
	pf.BoolVarP(&flags.tui, "tui", "t", false, "Show the live band meter")

	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "Show verbose output")

	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}
	if !ran {
		// --help or --version was handled by cobra.
		return nil, nil
	}

	cfg, err := config.LoadConfig(flags.configPath)
	if err != nil {
		return nil, err
	}
	applyFlags(cfg, pf.Changed, flags)
	cfg.Command = command

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyFlags copies every flag the user set onto cfg.
func applyFlags(cfg *config.Config, changed func(string) bool, f flagValues) {
	if changed("file") {
		cfg.Source.File = f.file
	}
	if changed("playlist") {
		cfg.Source.Playlist = f.playlist
	}
	if changed("device") {
		cfg.Audio.InputDevice = f.device
	}
	if changed("output-device") {
		cfg.Audio.OutputDevice = f.output
	}
	if changed("sample-rate") {
		cfg.Audio.SampleRate = f.sampleRate
	}
	if changed("channels") {
		cfg.Audio.InputChannels = f.channels
	}
	if changed("low-latency") {
		cfg.Audio.LowLatency = f.lowLatency
	}
	if changed("window-size") {
		cfg.Audio.WindowSize = f.windowSize
	}
	if changed("hop-size") {
		cfg.Audio.HopSize = f.hopSize
	}
	if changed("record") {
		cfg.Recording.Enabled = f.record
	}
	if changed("output") {
		cfg.Recording.Enabled = true
		cfg.Recording.File = f.outputFile
	}
	if changed("websocket") {
		cfg.Transport.WebSocketEnabled = true
		cfg.Transport.WebSocketAddress = f.websocket
	}
	if changed("udp") {
		cfg.Transport.UDPEnabled = true
		cfg.Transport.UDPTargetAddress = f.udp
	}
	if changed("tui") {
		cfg.Source.TUI = f.tui
	}
	if changed("verbose") && f.verbose {
		cfg.Debug = true
		cfg.LogLevel = "debug"
	}
}
