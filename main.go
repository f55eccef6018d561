// SPDX-License-Identifier: MIT
package main

import (
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"pulseviz/cmd"
	"pulseviz/internal/analysis"
	"pulseviz/internal/audio"
	"pulseviz/internal/fft"
	applog "pulseviz/internal/log"
	"pulseviz/internal/network"
	"pulseviz/internal/pipeline"
	"pulseviz/internal/transport"
	"pulseviz/internal/transport/udp"
	"pulseviz/internal/tui"
	"pulseviz/pkg/build"
)

// main runs in three phases:
//
// 1. Startup (cold path): build info, runtime tuning, PortAudio init,
// argument parsing, one-off command dispatch.
//
// 2. Concurrent (hot path): capture stream + FFT on the audio callback
// thread, tick loop analyzing and simulating at the configured rate,
// transports fanning frames out to renderers.
//
// 3. Shutdown (cold path): signal-driven teardown of the pipeline,
// recording, transports and the capture stream.
func main() {
	if err := build.Initialize(); err != nil {
		// Dev builds have no ldflags; run with placeholder build info.
		applog.Warnf("Build info incomplete: %v", err)
	}

	// One thread for the audio callback, one for the tick loop and I/O.
	runtime.GOMAXPROCS(2)

	opts, err := cmd.ParseArgs()
	if err != nil {
		applog.Fatalf("%v", err)
	}
	cfg := opts.Config

	if level, ok := applog.ParseLevel(cfg.LogLevel); ok {
		applog.SetLevel(level)
	}
	if cfg.Debug {
		applog.SetLevel(applog.LevelDebug)
	}

	// One-off commands run without the engine.
	switch opts.Command {
	case "list":
		if err := audio.Initialize(); err != nil {
			applog.Fatalf("%v", err)
		}
		defer audio.Terminate()
		if err := audio.ListDevices(); err != nil {
			applog.Fatalf("%v", err)
		}
		return
	case "devices":
		if err := tui.StartDeviceListUI(); err != nil {
			applog.Fatalf("%v", err)
		}
		return
	}

	if err := audio.Initialize(); err != nil {
		applog.Fatalf("%v", err)
	}
	defer audio.Terminate()

	windowType, err := fft.ParseWindowFunc(cfg.Audio.FFTWindow)
	if err != nil {
		applog.Warnf("%v, using Hann", err)
	}
	fftProcessor, err := fft.NewProcessor(cfg.Audio.FFTSize, cfg.Audio.SampleRate, windowType)
	if err != nil {
		applog.Fatalf("%v", err)
	}

	engine, err := audio.NewEngine(cfg, fftProcessor)
	if err != nil {
		applog.Fatalf("%v", err)
	}

	analyzer := analysis.NewSignalAnalyzer(fftProcessor)
	detector := analysis.NewBeatDetector(cfg.Analysis.Sensitivity, cfg.Analysis.SmoothingAlpha)
	intel := analysis.NewAudioIntelligence(analyzer, detector,
		cfg.Analysis.SilenceThreshold, cfg.Analysis.ClimaxSensitivity)

	net := network.New(cfg.Network, time.Now().UnixNano())
	net.Initialize(cfg.Network.NodeCount)

	var transports []transport.Transport
	if cfg.Transport.WSEnabled {
		transports = append(transports, transport.NewWebSocketTransport(cfg.Transport.WSAddr))
	}
	if cfg.Debug {
		transports = append(transports, transport.NewLoggingTransport())
	}

	runner := pipeline.NewRunner(intel, net, cfg.Analysis.TickRate, transports...)

	var publisher *udp.Publisher
	if cfg.Transport.UDPEnabled {
		sender, err := udp.NewSender(cfg.Transport.UDPTargetAddress)
		if err != nil {
			applog.Fatalf("%v", err)
		}
		publisher, err = udp.NewPublisher(cfg.Transport.UDPSendInterval, sender, runner)
		if err != nil {
			applog.Fatalf("%v", err)
		}
		defer sender.Close()
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	// Hot path starts here: the first capture callback begins feeding
	// the FFT processor.
	if err := engine.StartInputStream(); err != nil {
		applog.Fatalf("%v", err)
	}

	if cfg.Recording.Enabled {
		if err := engine.StartRecording(cfg.Recording.OutputFile); err != nil {
			applog.Fatalf("%v", err)
		}
		applog.Infof("Recording to %s", cfg.Recording.OutputFile)
	}

	runner.Start()
	if publisher != nil {
		publisher.Start()
	}

	applog.Infof("pulseviz running: %d nodes, tick rate %d/s", cfg.Network.NodeCount, cfg.Analysis.TickRate)

	<-done

	if publisher != nil {
		if err := publisher.Stop(); err != nil {
			applog.Errorf("Error stopping UDP publisher: %v", err)
		}
	}
	if err := runner.Stop(); err != nil {
		applog.Errorf("Error stopping pipeline: %v", err)
	}
	for _, t := range transports {
		if err := t.Close(); err != nil {
			applog.Errorf("Error closing transport: %v", err)
		}
	}
	if cfg.Recording.Enabled {
		if err := engine.StopRecording(); err != nil {
			applog.Errorf("Error stopping recording: %v", err)
		} else {
			applog.Infof("Recording saved to: %s", cfg.Recording.OutputFile)
		}
	}
	if err := engine.Close(); err != nil {
		applog.Errorf("Error closing audio engine: %v", err)
	}
}
