// Package telemetry rate-limits motion samples onto the device channel.
package telemetry

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/relabs-tech/heysalad_node/internal/motion"
)

const delimiter = ","

var ErrMalformed = errors.New("telemetry: malformed line")

// Emitter decides when the next telemetry line is due. It is a rate limiter,
// not a queue: missed intervals are not backfilled.
type Emitter struct {
	interval time.Duration
	lastSent time.Time
}

// NewEmitter starts the interval at start; the first line is due one
// interval later.
func NewEmitter(interval time.Duration, start time.Time) *Emitter {
	return &Emitter{interval: interval, lastSent: start}
}

// Tick returns the line to send for s if the interval has elapsed at now.
// Sends stay on the interval grid, so a late cycle does not push every later
// line back; intervals skipped entirely are not backfilled.
func (e *Emitter) Tick(now time.Time, s motion.Sample) (string, bool) {
	elapsed := now.Sub(e.lastSent)
	if elapsed < e.interval {
		return "", false
	}
	e.lastSent = now.Add(-(elapsed % e.interval))
	return Format(s), true
}

func (e *Emitter) Interval() time.Duration { return e.interval }

// Format renders "x,y,z" with three decimals.
func Format(s motion.Sample) string {
	return fmt.Sprintf("%.3f,%.3f,%.3f", s.X, s.Y, s.Z)
}

// Parse reads a telemetry line as the companion device does: split on ","
// and take the first three fields.
func Parse(line string) (motion.Sample, error) {
	parts := strings.Split(strings.TrimSpace(line), delimiter)
	if len(parts) < 3 {
		return motion.Sample{}, fmt.Errorf("%w: %q", ErrMalformed, line)
	}
	var v [3]float64
	for i := 0; i < 3; i++ {
		f, err := strconv.ParseFloat(strings.TrimSpace(parts[i]), 64)
		if err != nil {
			return motion.Sample{}, fmt.Errorf("%w: field %d %q", ErrMalformed, i, parts[i])
		}
		v[i] = f
	}
	return motion.NewSample(v[0], v[1], v[2]), nil
}
