// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"pulseviz/pkg/bitint"
)

// Limits and defaults for the engine configuration.
const (
	DefaultDeviceID        = MinDeviceID // System default input device.
	DefaultChannels        = 1           // Mono capture.
	DefaultSampleRate      = 44100
	DefaultFramesPerBuffer = 1024
	DefaultFFTSize         = 4096
	DefaultTickRate        = 60 // Analysis ticks per second.

	MinDeviceID     = -1 // -1 selects the system default device.
	MinSampleRate   = 8000
	MaxSampleRate   = 192000
	MaxBufferFrames = 8192

	MinSensitivity = 0.3
	MaxSensitivity = 1.0

	// BurstHeadroom is the factor by which the live node set may exceed
	// the configured node count after beat-triggered burst spawns.
	BurstHeadroom = 1.5
)

// Config is the root configuration, loaded from YAML and overridden by
// flags and ENV_* variables.
type Config struct {
	Debug    bool   `yaml:"debug"`
	LogLevel string `yaml:"log_level"`

	Audio     AudioConfig     `yaml:"audio"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Network   NetworkConfig   `yaml:"network"`
	Transport TransportConfig `yaml:"transport"`
	Recording RecordingConfig `yaml:"recording"`
}

// AudioConfig holds capture and FFT settings.
type AudioConfig struct {
	InputDevice     int     `yaml:"input_device"`      // PortAudio device index, -1 for default.
	SampleRate      float64 `yaml:"sample_rate"`       // Hz.
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // Capture buffer size in frames.
	InputChannels   int     `yaml:"input_channels"`    // 1=mono, 2=stereo.
	LowLatency      bool    `yaml:"low_latency"`       // Request low latency from the device.
	FFTSize         int     `yaml:"fft_size"`          // FFT points, power of two.
	FFTWindow       string  `yaml:"fft_window"`        // Window function name (e.g. "Hann").
	GateEnabled     bool    `yaml:"gate_enabled"`      // Skip analysis of near-silent buffers.
	GateThreshold   float64 `yaml:"gate_threshold"`    // 0..1 amplitude floor for the gate.
}

// AnalysisConfig holds the audio-intelligence tuning knobs.
type AnalysisConfig struct {
	Sensitivity       float64 `yaml:"sensitivity"`        // Beat sensitivity, clamped to [0.3, 1.0].
	SmoothingAlpha    float64 `yaml:"smoothing_alpha"`    // EMA factor for band smoothing.
	SilenceThreshold  float64 `yaml:"silence_threshold"`  // Loudness floor for silence detection.
	ClimaxSensitivity float64 `yaml:"climax_sensitivity"` // Growth-rate threshold for climax detection.
	TickRate          int     `yaml:"tick_rate"`          // Analysis ticks per second.
}

// NetworkConfig holds the spatial network simulation parameters.
type NetworkConfig struct {
	NodeCount           int     `yaml:"node_count"`           // Target active node count.
	ConnectionThreshold float64 `yaml:"connection_threshold"` // Base edge distance in canvas units.
	Width               float64 `yaml:"width"`                // Canvas width in units.
	Height              float64 `yaml:"height"`               // Canvas height in units.
}

// TransportConfig holds renderer-facing output settings.
type TransportConfig struct {
	WSEnabled        bool          `yaml:"ws_enabled"`         // Broadcast JSON frames over WebSocket.
	WSAddr           string        `yaml:"ws_addr"`            // WebSocket listen address (e.g. ":8080").
	UDPEnabled       bool          `yaml:"udp_enabled"`        // Publish binary frames over UDP.
	UDPTargetAddress string        `yaml:"udp_target_address"` // Target host:port for UDP frames.
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`  // Interval between UDP frames.
}

// RecordingConfig holds input-stream recording settings.
type RecordingConfig struct {
	Enabled    bool   `yaml:"enabled"`
	OutputFile string `yaml:"output_file"` // Empty for an auto-generated name.
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		Debug:    false,
		LogLevel: "info",
		Audio: AudioConfig{
			InputDevice:     DefaultDeviceID,
			SampleRate:      DefaultSampleRate,
			FramesPerBuffer: DefaultFramesPerBuffer,
			InputChannels:   DefaultChannels,
			LowLatency:      false,
			FFTSize:         DefaultFFTSize,
			FFTWindow:       "Hann",
			GateEnabled:     true,
			GateThreshold:   0.001,
		},
		Analysis: AnalysisConfig{
			Sensitivity:       0.7,
			SmoothingAlpha:    0.3,
			SilenceThreshold:  0.05,
			ClimaxSensitivity: 0.4,
			TickRate:          DefaultTickRate,
		},
		Network: NetworkConfig{
			NodeCount:           150,
			ConnectionThreshold: 120,
			Width:               1920,
			Height:              1080,
		},
		Transport: TransportConfig{
			WSEnabled:        true,
			WSAddr:           ":8080",
			UDPEnabled:       false,
			UDPTargetAddress: "127.0.0.1:9090",
			UDPSendInterval:  16 * time.Millisecond,
		},
		Recording: RecordingConfig{
			Enabled:    false,
			OutputFile: "",
		},
	}
}

// Load reads configuration from the YAML file at path. An empty path
// searches default locations ("pulseviz.yaml", "config.yaml"); when no
// file is found the built-in defaults are used. Environment overrides
// are applied after the file, then the result is validated.
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		for _, candidate := range []string{"pulseviz.yaml", "config.yaml"} {
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

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for values the engine cannot run with.
func (c *Config) Validate() error {
	if c.Audio.SampleRate < MinSampleRate || c.Audio.SampleRate > MaxSampleRate {
		return fmt.Errorf("audio.sample_rate %.0f out of range [%d, %d]", c.Audio.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if c.Audio.FramesPerBuffer <= 0 || c.Audio.FramesPerBuffer > MaxBufferFrames {
		return fmt.Errorf("audio.frames_per_buffer %d out of range (0, %d]", c.Audio.FramesPerBuffer, MaxBufferFrames)
	}
	if !bitint.IsPowerOfTwo(c.Audio.FFTSize) {
		return fmt.Errorf("audio.fft_size must be a power of 2, got %d", c.Audio.FFTSize)
	}
	if c.Audio.InputChannels < 1 || c.Audio.InputChannels > 2 {
		return fmt.Errorf("audio.input_channels must be 1 or 2, got %d", c.Audio.InputChannels)
	}
	if c.Analysis.TickRate <= 0 {
		return fmt.Errorf("analysis.tick_rate must be positive, got %d", c.Analysis.TickRate)
	}
	if c.Analysis.SmoothingAlpha <= 0 || c.Analysis.SmoothingAlpha > 1 {
		return fmt.Errorf("analysis.smoothing_alpha must be in (0, 1], got %f", c.Analysis.SmoothingAlpha)
	}
	if c.Network.NodeCount <= 0 {
		return fmt.Errorf("network.node_count must be positive, got %d", c.Network.NodeCount)
	}
	if c.Network.ConnectionThreshold < 0 {
		return fmt.Errorf("network.connection_threshold must be >= 0, got %f", c.Network.ConnectionThreshold)
	}
	if c.Network.Width <= 0 || c.Network.Height <= 0 {
		return fmt.Errorf("network canvas dimensions must be positive, got %gx%g", c.Network.Width, c.Network.Height)
	}
	if c.Transport.UDPEnabled && c.Transport.UDPTargetAddress == "" {
		return fmt.Errorf("transport.udp_target_address must be set when UDP is enabled")
	}
	return nil
}

// applyEnvOverrides applies ENV_* overrides on top of file values.
func (c *Config) applyEnvOverrides() {
	if val, ok := os.LookupEnv("ENV_DEBUG"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Debug = bVal
		}
	}
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok {
		c.LogLevel = val
	}
	if val, ok := os.LookupEnv("ENV_WS_ADDR"); ok {
		c.Transport.WSAddr = val
	}
	if val, ok := os.LookupEnv("ENV_UDP_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Transport.UDPEnabled = bVal
		}
	}
	if val, ok := os.LookupEnv("ENV_UDP_TARGET_ADDRESS"); ok {
		c.Transport.UDPTargetAddress = val
	}
	if val, ok := os.LookupEnv("ENV_UDP_SEND_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			c.Transport.UDPSendInterval = dur
		}
	}
}
