// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/relabs-tech/heysalad_node/internal/config"
	"github.com/relabs-tech/heysalad_node/internal/gesture"
	"github.com/relabs-tech/heysalad_node/internal/motion"
	"github.com/relabs-tech/heysalad_node/internal/sensors"
)

// RunMockConsole feeds the synthetic shake pattern through the gesture
// classifier and prints magnitude and gesture every tick. It needs no
// hardware and is handy for tuning thresholds.
func RunMockConsole(ctx context.Context, cfg *config.Config, clk clock.Clock, out io.Writer) error {
	if clk == nil {
		clk = clock.New()
	}
	mode, err := gesture.ParseMode(cfg.GestureTrigger)
	if err != nil {
		return err
	}
	classifier, err := gesture.NewClassifier(gesture.Thresholds{
		Capture: cfg.CaptureThreshold,
		Recipe:  cfg.RecipeThreshold,
		Reset:   cfg.ResetThreshold,
	}, mode)
	if err != nil {
		return err
	}
	sampler := motion.NewSampler(sensors.NewMockSource(clk.Now), motion.RetainLast)

	ticker := clk.Ticker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		s, _ := sampler.Update()
		ev := classifier.Classify(s.Magnitude)

		mark := ""
		if ev != gesture.None {
			mark = "  <- " + ev.Tag()
		}
		fmt.Fprintf(out, "X=%6.3f  Y=%6.3f  Z=%6.3f  |A|=%6.3f%s\n", s.X, s.Y, s.Z, s.Magnitude, mark)
	}
}
