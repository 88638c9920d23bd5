package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/benbjohnson/clock"
)

// Source produces PCM samples and hands them to sink until ctx is done or
// the stream ends. sink must not retain the slice.
type Source interface {
	Run(ctx context.Context, sink func([]int16)) error
}

// Capture runs src with the session as its sink. It is meant to run on its
// own goroutine. When the source ends on its own, a recording in progress is
// stopped so it becomes Ready with what was captured.
func Capture(ctx context.Context, src Source, s *Session) error {
	err := src.Run(ctx, func(samples []int16) { s.Append(samples) })
	if errors.Is(err, context.Canceled) {
		return nil
	}
	s.Stop()
	return err
}

const chunkSamples = 256

// PCMSource reads signed 16-bit little-endian mono PCM from a stream,
// such as a FIFO fed by `arecord -f S16_LE -c 1`.
type PCMSource struct {
	r io.Reader
}

func NewPCMSource(r io.Reader) *PCMSource {
	return &PCMSource{r: r}
}

// OpenPCMFile opens path (usually a named pipe) as a PCMSource.
func OpenPCMFile(path string) (*PCMSource, io.Closer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("audio source %s: %w", path, err)
	}
	return NewPCMSource(f), f, nil
}

func (p *PCMSource) Run(ctx context.Context, sink func([]int16)) error {
	raw := make([]byte, chunkSamples*2)
	samples := make([]int16, chunkSamples)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := io.ReadFull(p.r, raw)
		if n >= 2 {
			count := n / 2
			for i := 0; i < count; i++ {
				samples[i] = int16(binary.LittleEndian.Uint16(raw[2*i:]))
			}
			sink(samples[:count])
		}
		if err != nil {
			if ctx.Err() != nil {
				// reader was closed on shutdown
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return fmt.Errorf("audio read: %w", err)
		}
	}
}

// ToneSource synthesizes a sine tone in real time. Used with --mock.
type ToneSource struct {
	SampleRate int
	Freq       float64
	Clock      clock.Clock
}

func (t *ToneSource) Run(ctx context.Context, sink func([]int16)) error {
	clk := t.Clock
	if clk == nil {
		clk = clock.New()
	}
	const period = 10 * time.Millisecond
	perTick := t.SampleRate / 100
	if perTick <= 0 {
		perTick = 1
	}
	buf := make([]int16, perTick)
	ticker := clk.Ticker(period)
	defer ticker.Stop()

	var n int
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for i := range buf {
				v := math.Sin(2 * math.Pi * t.Freq * float64(n) / float64(t.SampleRate))
				buf[i] = int16(v * 8000)
				n++
			}
			sink(buf)
		}
	}
}
