// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/relabs-tech/heysalad_node/internal/audio"
	"github.com/relabs-tech/heysalad_node/internal/channel"
	"github.com/relabs-tech/heysalad_node/internal/config"
	"github.com/relabs-tech/heysalad_node/internal/gesture"
	"github.com/relabs-tech/heysalad_node/internal/motion"
	"github.com/relabs-tech/heysalad_node/internal/notify"
	"github.com/relabs-tech/heysalad_node/internal/router"
	"github.com/relabs-tech/heysalad_node/internal/telemetry"
)

// Deps are the collaborators a Node is built from. Session, Notifier and
// Clock are optional.
type Deps struct {
	Config *config.Config
	Reader motion.AccelReader
	Debug  channel.Channel
	Device channel.Channel

	Session  *audio.Session
	Notifier notify.Notifier // in addition to the debug console
	Clock    clock.Clock
	Logger   *zap.Logger
}

// Node owns every component and runs the control cycle. Only the goroutine
// calling Cycle or Run may touch it; the audio session is the one piece
// shared with the capture goroutine.
type Node struct {
	sampler    *motion.Sampler
	classifier *gesture.Classifier
	session    *audio.Session
	router     *router.Router
	emitter    *telemetry.Emitter
	notifier   notify.Notifier

	debug  channel.Channel
	device channel.Channel

	clock         clock.Clock
	logger        *zap.Logger
	cycleInterval time.Duration
	flushBudget   time.Duration

	sensorFailing bool
	cycles        uint64
}

// CycleReport describes what one cycle did.
type CycleReport struct {
	Sample     motion.Sample
	SampleOK   bool
	Gesture    gesture.Event
	Dispatches []router.Dispatch
	AudioReady bool
	Telemetry  string // empty when nothing was sent
}

func NewNode(d Deps) (*Node, error) {
	cfg := d.Config
	if cfg == nil {
		return nil, errors.New("node: config is required")
	}
	if d.Reader == nil || d.Debug == nil || d.Device == nil {
		return nil, errors.New("node: reader, debug and device channels are required")
	}
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clk := d.Clock
	if clk == nil {
		clk = clock.New()
	}

	policy, err := motion.ParseFailurePolicy(cfg.SampleFailurePolicy)
	if err != nil {
		return nil, fmt.Errorf("node: %w", err)
	}
	mode, err := gesture.ParseMode(cfg.GestureTrigger)
	if err != nil {
		return nil, fmt.Errorf("node: %w", err)
	}
	classifier, err := gesture.NewClassifier(gesture.Thresholds{
		Capture: cfg.CaptureThreshold,
		Recipe:  cfg.RecipeThreshold,
		Reset:   cfg.ResetThreshold,
	}, mode)
	if err != nil {
		return nil, fmt.Errorf("node: %w", err)
	}

	session := d.Session
	if session == nil {
		if session, err = audio.NewSession(cfg.AudioCapacity(), cfg.AudioSampleRate); err != nil {
			return nil, fmt.Errorf("node: %w", err)
		}
	}

	matcher := router.Exact
	if cfg.CommandMatch == config.MatchNormalized {
		matcher = router.Normalized
	}

	notifier := notify.Notifier(notify.Console{Debug: d.Debug})
	if d.Notifier != nil {
		notifier = notify.Multi{notifier, d.Notifier}
	}

	n := &Node{
		sampler:       motion.NewSampler(d.Reader, policy),
		classifier:    classifier,
		session:       session,
		router:        router.New(d.Debug, d.Device, session, matcher, cfg.ForwardFlushBudget(), logger),
		emitter:       telemetry.NewEmitter(cfg.TelemetryInterval(), clk.Now()),
		notifier:      notifier,
		debug:         d.Debug,
		device:        d.Device,
		clock:         clk,
		logger:        logger,
		cycleInterval: cfg.CycleInterval(),
		flushBudget:   cfg.ForwardFlushBudget(),
	}
	n.router.OnRecording = n.recordingReleased
	return n, nil
}

// Session exposes the audio session so a capture goroutine can feed it.
func (n *Node) Session() *audio.Session { return n.session }

// Cycle runs one pass: sample, classify, route, announce audio, telemetry.
func (n *Node) Cycle(ctx context.Context) CycleReport {
	n.cycles++
	var rep CycleReport

	// 1) sample
	rep.Sample, rep.SampleOK = n.sampler.Update()
	n.trackSensorHealth(rep.SampleOK)

	// 2) classify
	rep.Gesture = n.classifier.Classify(rep.Sample.Magnitude)
	if rep.Gesture != gesture.None {
		n.raiseGesture(ctx, rep.Gesture, rep.Sample)
	}

	// 3) route both channels
	rep.Dispatches = n.router.Poll(ctx)

	// 4) audio completion, once per recording
	if st, ok := n.session.TakeCompletion(); ok {
		rep.AudioReady = true
		n.notifier.Notify(ctx, notify.NewEvent("AUDIO_READY", n.clock.Now()).
			With("id", st.ID).
			With("samples", strconv.Itoa(st.Len)).
			With("overflow", strconv.Itoa(st.Overflow)))
		if st.Overflow > 0 {
			channel.Debugf(n.debug, "Audio buffer overflow: %d samples dropped", st.Overflow)
		}
	}

	// 5) telemetry
	now := n.clock.Now()
	if line, ok := n.emitter.Tick(now, rep.Sample); ok {
		if err := n.device.WriteLine(line); err != nil {
			n.logger.Warn("telemetry write failed", zap.Error(err))
		} else {
			rep.Telemetry = line
		}
		n.notifier.Telemetry(ctx, now, rep.Sample)
	}

	n.flush(ctx)
	return rep
}

func (n *Node) raiseGesture(ctx context.Context, ev gesture.Event, s motion.Sample) {
	tag := ev.Tag()
	if err := n.device.WriteLine(tag); err != nil {
		n.logger.Warn("gesture write failed", zap.String("tag", tag), zap.Error(err))
	}
	n.notifier.Notify(ctx, notify.NewEvent(tag, n.clock.Now()).
		With("magnitude", strconv.FormatFloat(s.Magnitude, 'f', 3, 64)))
	n.logger.Info("gesture detected", zap.String("gesture", ev.String()), zap.Float64("magnitude", s.Magnitude))
}

func (n *Node) recordingReleased(rec audio.Take) {
	n.logger.Info("audio recording released",
		zap.String("id", rec.ID), zap.Int("samples", len(rec.Samples)), zap.Int("overflow", rec.Overflow))
}

// trackSensorHealth reports IMU read failures once on the way down and once
// on recovery rather than every cycle.
func (n *Node) trackSensorHealth(ok bool) {
	switch {
	case !ok && !n.sensorFailing:
		n.sensorFailing = true
		channel.Errorf(n.debug, "IMU read failed: %v", n.sampler.Err())
		n.logger.Warn("IMU read failed", zap.Error(n.sampler.Err()))
	case ok && n.sensorFailing:
		n.sensorFailing = false
		channel.Debugf(n.debug, "IMU read recovered")
		n.logger.Info("IMU read recovered")
	}
}

// flush pushes whatever this cycle wrote, bounded by the flush budget.
func (n *Node) flush(ctx context.Context) {
	fctx, cancel := context.WithTimeout(ctx, n.flushBudget)
	defer cancel()
	if err := errors.Join(n.device.Flush(fctx), n.debug.Flush(fctx)); err != nil {
		n.logger.Debug("cycle flush incomplete", zap.Error(err))
	}
}

// Run repeats Cycle until ctx is cancelled. With a zero cycle interval the
// loop is free-running.
func (n *Node) Run(ctx context.Context) error {
	n.logger.Info("node running", zap.Duration("cycle_interval", n.cycleInterval))
	channel.Debugf(n.debug, "Node ready")
	n.flush(ctx)

	if n.cycleInterval <= 0 {
		for ctx.Err() == nil {
			n.Cycle(ctx)
		}
		return nil
	}

	ticker := n.clock.Ticker(n.cycleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			n.logger.Info("node stopped", zap.Uint64("cycles", n.cycles))
			return nil
		case <-ticker.C:
			n.Cycle(ctx)
		}
	}
}

func (n *Node) Cycles() uint64 { return n.cycles }
