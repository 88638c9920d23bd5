// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"errors"
	"math"
	"sync"
	"time"

	"github.com/relabs-tech/heysalad_node/internal/motion"
)

// ErrScriptDone is returned by a ScriptedSource once every step was consumed.
var ErrScriptDone = errors.New("scripted source exhausted")

type mockSource struct {
	start time.Time
	now   func() time.Time
}

// NewMockSource creates a mock accelerometer that rests at 1 g and shakes
// for one second every five: a first burst that crosses the capture level
// and then a stronger one that crosses the recipe level.
func NewMockSource(now func() time.Time) motion.AccelReader {
	if now == nil {
		now = time.Now
	}
	return &mockSource{start: now(), now: now}
}

func (m *mockSource) ReadAccel() (float64, float64, float64, error) {
	elapsed := m.now().Sub(m.start).Seconds()
	phase := math.Mod(elapsed, 5)

	// gravity plus a small wobble
	x := 0.05 * math.Sin(elapsed*3)
	y := 0.05 * math.Cos(elapsed*2)
	z := 1.0

	switch {
	case phase >= 1 && phase < 2:
		z += 1.2 * math.Abs(math.Sin(elapsed*math.Pi))
	case phase >= 3 && phase < 4:
		z += 1.8 * math.Abs(math.Sin(elapsed*math.Pi))
	}
	return x, y, z, nil
}

// Reading is one scripted step; a non-nil Err simulates a failed read.
type Reading struct {
	X, Y, Z float64
	Err     error
}

// ScriptedSource replays a fixed list of readings, one per call.
type ScriptedSource struct {
	mu    sync.Mutex
	steps []Reading
	next  int
}

func NewScriptedSource(steps ...Reading) *ScriptedSource {
	return &ScriptedSource{steps: steps}
}

func (s *ScriptedSource) ReadAccel() (float64, float64, float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next >= len(s.steps) {
		return 0, 0, 0, ErrScriptDone
	}
	r := s.steps[s.next]
	s.next++
	return r.X, r.Y, r.Z, r.Err
}

// Push appends more readings to the script.
func (s *ScriptedSource) Push(steps ...Reading) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = append(s.steps, steps...)
}
