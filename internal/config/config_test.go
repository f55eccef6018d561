// SPDX-License-Identifier: MIT
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	// Run from an empty directory so no candidate config file is found.
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") failed: %v", err)
	}

	if cfg.Audio.SampleRate != DefaultSampleRate {
		t.Errorf("SampleRate = %v, want %v", cfg.Audio.SampleRate, DefaultSampleRate)
	}
	if cfg.Audio.FFTSize != DefaultFFTSize {
		t.Errorf("FFTSize = %v, want %v", cfg.Audio.FFTSize, DefaultFFTSize)
	}
	if cfg.Analysis.TickRate != DefaultTickRate {
		t.Errorf("TickRate = %v, want %v", cfg.Analysis.TickRate, DefaultTickRate)
	}
	if cfg.Network.NodeCount != 150 {
		t.Errorf("NodeCount = %v, want 150", cfg.Network.NodeCount)
	}
	if !cfg.Transport.WSEnabled || cfg.Transport.WSAddr != ":8080" {
		t.Errorf("unexpected transport defaults: %+v", cfg.Transport)
	}
}

func TestLoadFromFile(t *testing.T) {
	content := `
debug: true
log_level: debug
audio:
  sample_rate: 48000
  fft_size: 2048
analysis:
  sensitivity: 0.5
  tick_rate: 30
network:
  node_count: 300
  connection_threshold: 80
transport:
  ws_enabled: false
  udp_enabled: true
  udp_target_address: "10.0.0.1:9999"
  udp_send_interval: 33ms
`
	path := filepath.Join(t.TempDir(), "test.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if !cfg.Debug || cfg.LogLevel != "debug" {
		t.Errorf("debug settings not applied: debug=%v level=%q", cfg.Debug, cfg.LogLevel)
	}
	if cfg.Audio.SampleRate != 48000 || cfg.Audio.FFTSize != 2048 {
		t.Errorf("audio settings not applied: %+v", cfg.Audio)
	}
	if cfg.Analysis.Sensitivity != 0.5 || cfg.Analysis.TickRate != 30 {
		t.Errorf("analysis settings not applied: %+v", cfg.Analysis)
	}
	if cfg.Network.NodeCount != 300 || cfg.Network.ConnectionThreshold != 80 {
		t.Errorf("network settings not applied: %+v", cfg.Network)
	}
	if cfg.Transport.UDPTargetAddress != "10.0.0.1:9999" || cfg.Transport.UDPSendInterval != 33*time.Millisecond {
		t.Errorf("transport settings not applied: %+v", cfg.Transport)
	}
	// Unset fields keep their defaults.
	if cfg.Audio.FramesPerBuffer != DefaultFramesPerBuffer {
		t.Errorf("FramesPerBuffer = %v, want default %v", cfg.Audio.FramesPerBuffer, DefaultFramesPerBuffer)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("nonexistent-config.yaml"); err == nil {
		t.Error("expected error for missing explicit config file")
	}
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("audio: [not: a: mapping"), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"sample rate too low", func(c *Config) { c.Audio.SampleRate = 4000 }, true},
		{"sample rate too high", func(c *Config) { c.Audio.SampleRate = 400000 }, true},
		{"fft size not power of two", func(c *Config) { c.Audio.FFTSize = 3000 }, true},
		{"zero frames per buffer", func(c *Config) { c.Audio.FramesPerBuffer = 0 }, true},
		{"too many channels", func(c *Config) { c.Audio.InputChannels = 3 }, true},
		{"zero tick rate", func(c *Config) { c.Analysis.TickRate = 0 }, true},
		{"smoothing alpha above one", func(c *Config) { c.Analysis.SmoothingAlpha = 1.5 }, true},
		{"zero node count", func(c *Config) { c.Network.NodeCount = 0 }, true},
		{"negative threshold", func(c *Config) { c.Network.ConnectionThreshold = -1 }, true},
		{"zero canvas", func(c *Config) { c.Network.Width = 0 }, true},
		{"udp without target", func(c *Config) {
			c.Transport.UDPEnabled = true
			c.Transport.UDPTargetAddress = ""
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())

	t.Setenv("ENV_DEBUG", "true")
	t.Setenv("ENV_LOG_LEVEL", "warn")
	t.Setenv("ENV_WS_ADDR", ":9191")
	t.Setenv("ENV_UDP_ENABLED", "true")
	t.Setenv("ENV_UDP_TARGET_ADDRESS", "192.168.1.10:7777")
	t.Setenv("ENV_UDP_SEND_INTERVAL", "50ms")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if !cfg.Debug {
		t.Error("ENV_DEBUG not applied")
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "warn")
	}
	if cfg.Transport.WSAddr != ":9191" {
		t.Errorf("WSAddr = %q, want %q", cfg.Transport.WSAddr, ":9191")
	}
	if !cfg.Transport.UDPEnabled || cfg.Transport.UDPTargetAddress != "192.168.1.10:7777" {
		t.Errorf("UDP overrides not applied: %+v", cfg.Transport)
	}
	if cfg.Transport.UDPSendInterval != 50*time.Millisecond {
		t.Errorf("UDPSendInterval = %v, want 50ms", cfg.Transport.UDPSendInterval)
	}
}

func TestEnvOverrideInvalidBoolIgnored(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ENV_DEBUG", "not-a-bool")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Debug {
		t.Error("invalid ENV_DEBUG value flipped the debug flag")
	}
}
