// Package gesture turns acceleration magnitude into discrete gesture events.
package gesture

import (
	"errors"
	"fmt"
)

// Event is a classified gesture. The zero value is None.
// Events are ordered: a higher value is a stronger gesture.
type Event int

const (
	None Event = iota
	CaptureFood
	ViewRecipe
)

func (e Event) String() string {
	switch e {
	case CaptureFood:
		return "CaptureFood"
	case ViewRecipe:
		return "ViewRecipe"
	}
	return "None"
}

// Tag is the line sent to the companion device for this event.
// None has no tag.
func (e Event) Tag() string {
	switch e {
	case CaptureFood:
		return "GESTURE_CAPTURE"
	case ViewRecipe:
		return "GESTURE_RECIPE"
	}
	return ""
}

// Mode selects between debounced and per-cycle firing.
type Mode int

const (
	// Edge fires an event once, then waits for magnitude to fall below the
	// reset threshold before the same or a weaker event can fire again.
	Edge Mode = iota
	// Level fires every cycle the magnitude is above the capture threshold.
	Level
)

// ParseMode maps the config names "edge" and "level".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "edge":
		return Edge, nil
	case "level":
		return Level, nil
	}
	return Edge, fmt.Errorf("unknown gesture trigger %q", s)
}

// Thresholds in g. Must satisfy Reset < Capture < Recipe.
type Thresholds struct {
	Capture float64
	Recipe  float64
	Reset   float64
}

var ErrThresholdOrder = errors.New("gesture thresholds must satisfy reset < capture < recipe")

func (t Thresholds) Validate() error {
	if !(t.Reset < t.Capture && t.Capture < t.Recipe) {
		return fmt.Errorf("%w (reset=%.3f capture=%.3f recipe=%.3f)", ErrThresholdOrder, t.Reset, t.Capture, t.Recipe)
	}
	return nil
}

// Level maps a magnitude to the event its threshold band names, with no
// debouncing. Every magnitude maps to exactly one event.
func (t Thresholds) Level(magnitude float64) Event {
	switch {
	case magnitude >= t.Recipe:
		return ViewRecipe
	case magnitude >= t.Capture:
		return CaptureFood
	}
	return None
}

// Classifier is the stateful, debounced classifier. Not safe for concurrent use.
type Classifier struct {
	thresholds Thresholds
	mode       Mode

	// fired is the strongest event emitted since the last re-arm.
	fired Event
}

func NewClassifier(t Thresholds, mode Mode) (*Classifier, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &Classifier{thresholds: t, mode: mode}, nil
}

// Classify returns the event for this cycle, or None.
func (c *Classifier) Classify(magnitude float64) Event {
	level := c.thresholds.Level(magnitude)
	if c.mode == Level {
		return level
	}

	if magnitude < c.thresholds.Reset {
		c.fired = None
	}
	if level > c.fired {
		c.fired = level
		return level
	}
	return None
}

// Armed reports whether a CaptureFood event could fire on the next cycle.
func (c *Classifier) Armed() bool {
	return c.fired == None
}

func (c *Classifier) Thresholds() Thresholds {
	return c.thresholds
}
