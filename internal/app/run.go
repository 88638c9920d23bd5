// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/relabs-tech/heysalad_node/internal/audio"
	"github.com/relabs-tech/heysalad_node/internal/channel"
	"github.com/relabs-tech/heysalad_node/internal/config"
	"github.com/relabs-tech/heysalad_node/internal/motion"
	"github.com/relabs-tech/heysalad_node/internal/notify"
	"github.com/relabs-tech/heysalad_node/internal/sensors"
	"github.com/relabs-tech/heysalad_node/internal/telemetry"
)

// RunOptions select hardware or simulated collaborators.
type RunOptions struct {
	// Mock replaces the IMU with a synthetic shake pattern, the audio input
	// with a tone, and the device UART with an in-memory channel that logs.
	Mock   bool
	Logger *zap.Logger
	// Debug, when set, is used instead of opening DEBUG_CHANNEL. The caller
	// keeps ownership and closes it.
	Debug channel.Channel
}

// RunNode opens every collaborator, builds the node and runs it until ctx
// is cancelled. Startup failures stop before the control loop.
func RunNode(ctx context.Context, cfg *config.Config, opts RunOptions) error {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("starting heysalad node", zap.Bool("mock", opts.Mock))
	clk := clock.New()

	// --- Debug channel first: it is where every later failure is reported ---
	debug := opts.Debug
	if debug == nil {
		var err error
		if debug, err = openDebug(ctx, cfg); err != nil {
			logger.Error("debug channel unavailable", zap.Error(err))
			return err
		}
		defer debug.Close()
	}

	boot := &initializer{policy: InitPolicyFromConfig(cfg), debug: debug, clock: clk, logger: logger}

	// --- Device channel ---
	var device channel.Channel
	if opts.Mock {
		mem := channel.NewMemory("device")
		mem.OnWrite = func(line string) { logDeviceLine(logger, line) }
		device = mem
	} else if err := boot.step(ctx, "Device channel", func() error {
		s, err := channel.OpenSerial("device", cfg.DeviceSerialPort, cfg.ChannelBaudRate, cfg.ChannelReadTimeout())
		if err != nil {
			return err
		}
		device = s
		return nil
	}); err != nil {
		return err
	}
	defer device.Close()

	// --- IMU ---
	var reader motion.AccelReader
	if err := boot.step(ctx, "IMU", func() error {
		if opts.Mock {
			reader = sensors.NewMockSource(clk.Now)
			return nil
		}
		var err error
		reader, err = sensors.NewIMUSource(cfg, logger)
		return err
	}); err != nil {
		return err
	}

	// --- Audio source (optional) ---
	var src audio.Source
	if opts.Mock {
		src = &audio.ToneSource{SampleRate: cfg.AudioSampleRate, Freq: 440, Clock: clk}
	} else if cfg.AudioSource != "" {
		if err := boot.step(ctx, "Audio", func() error {
			pcm, closer, err := audio.OpenPCMFile(cfg.AudioSource)
			if err != nil {
				return err
			}
			src = pcm
			go func() {
				<-ctx.Done()
				closer.Close()
			}()
			return nil
		}); err != nil {
			return err
		}
	} else {
		channel.Debugf(debug, "No audio source configured; recordings stay empty until stopped")
	}

	// --- MQTT (optional, never fatal) ---
	var extra notify.Notifier
	if cfg.MQTTBroker != "" {
		client, err := notify.ConnectMQTT(cfg.MQTTBroker, cfg.MQTTClientID, logger)
		if err != nil {
			logger.Warn("continuing without MQTT", zap.Error(err))
			channel.Errorf(debug, "MQTT unavailable: %v", err)
		} else {
			defer client.Disconnect(250)
			extra = notify.NewMQTT(client, cfg.TopicEvents, cfg.TopicTelemetry, logger)
		}
	}

	node, err := NewNode(Deps{
		Config:   cfg,
		Reader:   reader,
		Debug:    debug,
		Device:   device,
		Notifier: extra,
		Clock:    clk,
		Logger:   logger,
	})
	if err != nil {
		channel.Errorf(debug, "%v", err)
		boot.flush(ctx)
		return err
	}

	if src != nil {
		go func() {
			if err := audio.Capture(ctx, src, node.Session()); err != nil {
				logger.Error("audio capture stopped", zap.Error(err))
			}
		}()
	}

	return node.Run(ctx)
}

func openDebug(ctx context.Context, cfg *config.Config) (channel.Channel, error) {
	switch cfg.DebugChannel {
	case config.DebugSerial:
		return channel.OpenSerial("debug", cfg.DebugSerialPort, cfg.ChannelBaudRate, cfg.ChannelReadTimeout())
	case config.DebugWebSocket:
		return channel.DialWebSocket(ctx, "debug", cfg.DebugWSURL, cfg.ChannelReadTimeout())
	case config.DebugStdio:
		return channel.Stdio("debug", cfg.ChannelReadTimeout()), nil
	}
	return nil, fmt.Errorf("unknown debug channel %q", cfg.DebugChannel)
}

// logDeviceLine stands in for the companion device in mock mode: telemetry is
// decoded the way the companion reads it, everything else is logged as is.
func logDeviceLine(logger *zap.Logger, line string) {
	if s, err := telemetry.Parse(line); err == nil {
		logger.Debug("device <- telemetry",
			zap.Float64("x", s.X), zap.Float64("y", s.Y), zap.Float64("z", s.Z),
			zap.Float64("magnitude", s.Magnitude))
		return
	}
	logger.Info("device <-", zap.String("line", line))
}
