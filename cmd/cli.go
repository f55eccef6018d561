// SPDX-License-Identifier: MIT
package cmd

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"pulseviz/internal/config"
	"pulseviz/pkg/build"
)

// Options is the result of CLI parsing: the merged configuration and an
// optional one-off command ("list", "devices") that runs instead of the
// engine.
type Options struct {
	Config  *config.Config
	Command string
}

// ParseArgs parses command line arguments, loads the YAML configuration
// and applies flag overrides on top of it.
func ParseArgs() (*Options, error) {
	buildInfo := build.GetBuildFlags()
	opts := &Options{}

	var (
		configPath string

		deviceID        int
		sampleRate      float64
		framesPerBuffer int
		channels        int
		lowLatency      bool

		record     bool
		outputFile string

		sensitivity float64
		nodeCount   int
		threshold   float64
		wsAddr      string

		verbose bool
	)

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         "Audio-driven generative visual engine",
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return nil // Default: run the engine.
		},
	}
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio devices",
		Run: func(cmd *cobra.Command, args []string) {
			opts.Command = "list"
		},
	}
	rootCmd.AddCommand(listCmd)

	devicesCmd := &cobra.Command{
		Use:   "devices",
		Short: "Browse audio devices interactively",
		Run: func(cmd *cobra.Command, args []string) {
			opts.Command = "devices"
		},
	}
	rootCmd.AddCommand(devicesCmd)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Path to YAML configuration file")

	// Audio device configuration.
	pf.IntVarP(&deviceID, "device", "d", config.DefaultDeviceID,
		"Input device ID. Use the 'list' command to see available devices.")
	pf.Float64VarP(&sampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Sample rate in Hertz (Hz)")
	pf.IntVarP(&framesPerBuffer, "frames-per-buffer", "b", config.DefaultFramesPerBuffer,
		"Number of frames per capture buffer (affects latency)")
	pf.IntVarP(&channels, "channels", "c", config.DefaultChannels,
		"Number of input channels (1=mono, 2=stereo)")
	pf.BoolVarP(&lowLatency, "low-latency", "l", false,
		"Use low latency mode for real-time capture")

	// Recording configuration.
	pf.BoolVarP(&record, "record", "r", false,
		"Record the raw input stream to a WAV file")
	pf.StringVarP(&outputFile, "output", "o", "",
		"Recording file name. Default is recording-DD-MM-YYYY-HHMMSS.wav")

	// Pipeline tuning.
	pf.Float64Var(&sensitivity, "sensitivity", 0.7,
		"Beat detection sensitivity (0.3-1.0)")
	pf.IntVar(&nodeCount, "nodes", 0,
		"Target node count for the spatial network")
	pf.Float64Var(&threshold, "connection-threshold", 0,
		"Base edge connection distance in canvas units")
	pf.StringVar(&wsAddr, "ws-addr", "",
		"WebSocket listen address for renderer clients")

	pf.BoolVarP(&verbose, "verbose", "v", false, "Show verbose output")

	rootCmd.SetArgs(os.Args[1:])
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	// Flags explicitly set on the command line win over file values.
	if pf.Changed("device") {
		cfg.Audio.InputDevice = deviceID
	}
	if pf.Changed("sample-rate") {
		cfg.Audio.SampleRate = sampleRate
	}
	if pf.Changed("frames-per-buffer") {
		cfg.Audio.FramesPerBuffer = framesPerBuffer
	}
	if pf.Changed("channels") {
		cfg.Audio.InputChannels = channels
	}
	if pf.Changed("low-latency") {
		cfg.Audio.LowLatency = lowLatency
	}
	if pf.Changed("record") {
		cfg.Recording.Enabled = record
	}
	if pf.Changed("output") {
		cfg.Recording.OutputFile = outputFile
	}
	if pf.Changed("sensitivity") {
		cfg.Analysis.Sensitivity = sensitivity
	}
	if pf.Changed("nodes") {
		cfg.Network.NodeCount = nodeCount
	}
	if pf.Changed("connection-threshold") {
		cfg.Network.ConnectionThreshold = threshold
	}
	if pf.Changed("ws-addr") {
		cfg.Transport.WSAddr = wsAddr
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	if cfg.Recording.Enabled && cfg.Recording.OutputFile == "" {
		cfg.Recording.OutputFile = "recording-" +
			time.Now().UTC().Format("02-01-2006-150405") + ".wav"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts.Config = cfg
	return opts, nil
}
