// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package channel provides the duplex line-oriented text links the node
// talks over: serial ports, stdio, WebSocket consoles and in-memory pairs.
package channel

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
)

var (
	ErrClosed    = errors.New("channel closed")
	ErrQueueFull = errors.New("channel write queue full")
)

// writeQueue bounds how many lines may wait for a stalled link.
const writeQueue = 256

// Channel is a duplex line channel.
//
// ReadLine never blocks: it returns false when no complete line is buffered.
// WriteLine never blocks either; Flush waits for queued output to reach the
// link and gives up when ctx ends.
type Channel interface {
	Name() string
	ReadLine() (string, bool)
	WriteLine(line string) error
	Flush(ctx context.Context) error
	Close() error
}

// Options tune a Stream.
type Options struct {
	// ReadTimeout is how long a partial line may sit with no new bytes before
	// it is delivered as a line anyway. Zero keeps partial lines forever.
	ReadTimeout time.Duration
	// RetryEOF treats io.EOF from the reader as "no data yet". Serial ports
	// opened with an inter-character timeout return EOF on every idle read.
	RetryEOF bool
	Clock    clock.Clock
}

// Stream adapts a byte reader/writer pair to Channel. A goroutine pulls raw
// bytes from the reader; line assembly happens on the caller's goroutine.
// Outbound lines go through a bounded queue to a writer goroutine, so a
// stalled link drops lines instead of stalling the caller.
type Stream struct {
	name   string
	opts   Options
	closer io.Closer

	chunks chan []byte
	done   chan struct{}

	// owned by the ReadLine caller
	partial  bytes.Buffer
	pending  []string
	lastByte time.Time
	eof      bool

	// wmu orders queued against sends on out; it is never held across I/O.
	wmu     sync.Mutex
	out     chan string
	queued  uint64
	dropped atomic.Uint64

	// progress of the writer goroutine
	pmu      sync.Mutex
	flushedN uint64
	writeErr error
	wake     chan struct{}

	closeOnce sync.Once
	errMu     sync.Mutex
	readErr   error
}

// NewStream starts the reader goroutine. closer may be nil.
func NewStream(name string, r io.Reader, w io.Writer, closer io.Closer, opts Options) *Stream {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	s := &Stream{
		name:   name,
		opts:   opts,
		closer: closer,
		chunks: make(chan []byte, 64),
		done:   make(chan struct{}),
		out:    make(chan string, writeQueue),
		wake:   make(chan struct{}),
	}
	go s.readLoop(r)
	go s.writeLoop(w)
	return s
}

func (s *Stream) Name() string { return s.name }

func (s *Stream) readLoop(r io.Reader) {
	defer close(s.chunks)
	buf := make([]byte, 256)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			select {
			case s.chunks <- chunk:
			case <-s.done:
				return
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) && s.opts.RetryEOF {
				select {
				case <-s.done:
					return
				default:
					continue
				}
			}
			s.errMu.Lock()
			s.readErr = err
			s.errMu.Unlock()
			return
		}
	}
}

// ReadLine returns the next complete line without its terminator.
func (s *Stream) ReadLine() (string, bool) {
	s.drain()
	if len(s.pending) > 0 {
		line := s.pending[0]
		s.pending = s.pending[1:]
		return line, true
	}
	if s.partial.Len() == 0 {
		return "", false
	}
	// stream ended or the sender went quiet mid-line
	if s.eof || (s.opts.ReadTimeout > 0 && s.opts.Clock.Since(s.lastByte) >= s.opts.ReadTimeout) {
		line := strings.TrimSuffix(s.partial.String(), "\r")
		s.partial.Reset()
		return line, true
	}
	return "", false
}

func (s *Stream) drain() {
	for {
		select {
		case chunk, ok := <-s.chunks:
			if !ok {
				s.eof = true
				return
			}
			s.lastByte = s.opts.Clock.Now()
			s.partial.Write(chunk)
			s.splitLines()
		default:
			return
		}
	}
}

func (s *Stream) splitLines() {
	for {
		data := s.partial.Bytes()
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			return
		}
		line := strings.TrimSuffix(string(data[:i]), "\r")
		s.pending = append(s.pending, line)
		s.partial.Next(i + 1)
	}
}

// Err returns the error that stopped the reader, if any.
func (s *Stream) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.readErr
}

// WriteLine queues line for the writer goroutine. When the queue is full
// the line is dropped, counted, and ErrQueueFull is returned.
func (s *Stream) WriteLine(line string) error {
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	s.wmu.Lock()
	defer s.wmu.Unlock()
	select {
	case s.out <- line:
		s.queued++
		return nil
	default:
		s.dropped.Add(1)
		return ErrQueueFull
	}
}

// Dropped returns how many lines WriteLine discarded on a full queue.
func (s *Stream) Dropped() uint64 {
	return s.dropped.Load()
}

func (s *Stream) writeLoop(w io.Writer) {
	bw := bufio.NewWriter(w)
	var n uint64
	for {
		select {
		case <-s.done:
			return
		case line := <-s.out:
			_, err := bw.WriteString(line)
			if err == nil {
				err = bw.WriteByte('\n')
			}
			n++
			if err == nil && len(s.out) > 0 {
				continue
			}
			if err == nil {
				err = bw.Flush()
			}
			s.progress(n, err)
		}
	}
}

func (s *Stream) progress(n uint64, err error) {
	s.pmu.Lock()
	defer s.pmu.Unlock()
	s.flushedN = n
	if err != nil && s.writeErr == nil {
		s.writeErr = err
	}
	close(s.wake)
	s.wake = make(chan struct{})
}

// Flush waits until every line queued before the call has been written to
// the link. When ctx ends first Flush returns ctx.Err(); the lines stay
// queued and later writes are not held up.
func (s *Stream) Flush(ctx context.Context) error {
	s.wmu.Lock()
	target := s.queued
	s.wmu.Unlock()
	for {
		s.pmu.Lock()
		n, err, wake := s.flushedN, s.writeErr, s.wake
		s.pmu.Unlock()
		if err != nil {
			return err
		}
		if n >= target {
			return nil
		}
		select {
		case <-wake:
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return ErrClosed
		}
	}
}

func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		if s.closer != nil {
			err = s.closer.Close()
		}
	})
	return err
}
