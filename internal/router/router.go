package router

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/relabs-tech/heysalad_node/internal/audio"
	"github.com/relabs-tech/heysalad_node/internal/channel"
)

// Recorder is the part of audio.Session the router drives.
type Recorder interface {
	Start() string
	Stop() bool
	Consume() (audio.Take, error)
}

// Dispatch records what one inbound line did.
type Dispatch struct {
	Source  string
	Command Command
	Err     error
}

// Router reads one line per channel per cycle and acts on it.
type Router struct {
	debug    channel.Channel
	device   channel.Channel
	matcher  Matcher
	recorder Recorder
	budget   time.Duration
	logger   *zap.Logger

	// OnRecording receives recordings released by "heysalad reset audio".
	OnRecording func(audio.Take)
}

func New(debug, device channel.Channel, recorder Recorder, matcher Matcher, flushBudget time.Duration, logger *zap.Logger) *Router {
	return &Router{
		debug:    debug,
		device:   device,
		matcher:  matcher,
		recorder: recorder,
		budget:   flushBudget,
		logger:   logger,
	}
}

// Poll reads at most one complete line from each channel and dispatches it.
// Blank lines and channels with no buffered line produce no dispatch.
func (r *Router) Poll(ctx context.Context) []Dispatch {
	var out []Dispatch
	for _, ch := range []channel.Channel{r.debug, r.device} {
		line, ok := ch.ReadLine()
		if !ok {
			continue
		}
		cmd := r.matcher.Parse(line)
		if cmd.Text == "" {
			continue
		}
		out = append(out, r.Dispatch(ctx, ch.Name(), cmd))
	}
	return out
}

// Dispatch runs the action for cmd. source is the name of the channel the
// command came from.
func (r *Router) Dispatch(ctx context.Context, source string, cmd Command) Dispatch {
	d := Dispatch{Source: source, Command: cmd}
	switch cmd.Verb {
	case StartCamera:
		d.Err = r.Forward(ctx, TagStartCamera)
	case StopCamera:
		d.Err = r.Forward(ctx, TagStopCamera)
	case RecordAudio:
		id := r.recorder.Start()
		channel.Debugf(r.debug, "Recording audio (id=%s)", id)
		r.logger.Info("audio recording started", zap.String("id", id), zap.String("source", source))
	case StopAudio:
		if r.recorder.Stop() {
			channel.Debugf(r.debug, "Recording stopped")
		} else {
			channel.Debugf(r.debug, "Not recording")
		}
	case ResetAudio:
		rec, err := r.recorder.Consume()
		if err != nil {
			d.Err = err
			channel.Errorf(r.debug, "No finished recording to reset")
			break
		}
		channel.Debugf(r.debug, "Audio released: %d samples (id=%s)", len(rec.Samples), rec.ID)
		if r.OnRecording != nil {
			r.OnRecording(rec)
		}
	default:
		if source == r.device.Name() {
			channel.Debugf(r.debug, "From ESP32: %s", cmd.Text)
		} else {
			channel.Debugf(r.debug, "Unknown command: %s", cmd.Text)
		}
		r.logger.Debug("unrecognized line", zap.String("source", source), zap.String("text", cmd.Text))
	}
	return d
}

// Forward sends tag to the device, mirrors it on the debug channel, and
// flushes both. The flush is bounded by the router's budget; an overrun is
// reported and returned but the data stays queued.
func (r *Router) Forward(ctx context.Context, tag string) error {
	if err := r.device.WriteLine(tag); err != nil {
		channel.Errorf(r.debug, "Send to ESP32 failed: %v", err)
		return fmt.Errorf("forward %s: %w", tag, err)
	}
	_ = r.debug.WriteLine("Sent to ESP32: " + tag)

	fctx, cancel := context.WithTimeout(ctx, r.budget)
	defer cancel()
	err := errors.Join(r.device.Flush(fctx), r.debug.Flush(fctx))
	if err != nil {
		r.logger.Warn("forward flush exceeded budget",
			zap.String("tag", tag), zap.Duration("budget", r.budget), zap.Error(err))
		channel.Errorf(r.debug, "Flush of %s not confirmed within %s", tag, r.budget)
		return fmt.Errorf("forward %s: flush: %w", tag, err)
	}
	return nil
}
