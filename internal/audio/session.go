// Package audio holds the recording state machine fed by a capture goroutine.
package audio

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// State of a Session.
type State int

const (
	Idle State = iota
	Recording
	Ready
)

func (s State) String() string {
	switch s {
	case Recording:
		return "RECORDING"
	case Ready:
		return "READY"
	}
	return "IDLE"
}

var (
	ErrNotReady        = errors.New("audio: no finished recording")
	ErrInvalidCapacity = errors.New("audio: capacity must be positive")
)

// Take is a finished capture handed out by Consume.
type Take struct {
	ID         string
	SampleRate int
	Samples    []int16
	Overflow   int // samples that arrived after the buffer filled
}

// Status is a point-in-time view of the session.
type Status struct {
	State    State
	ID       string
	Len      int
	Capacity int
	Overflow int
}

// Session is the Idle → Recording → Ready → Idle state machine.
//
// Append is called from the capture goroutine; every other method is called
// from the control loop. All fields are guarded by mu.
type Session struct {
	mu         sync.Mutex
	state      State
	id         string
	buf        []int16
	overflow   int
	announced  bool
	sampleRate int

	dropped atomic.Uint64 // overflow across all sessions
}

// NewSession allocates a buffer of exactly capacity samples.
func NewSession(capacity, sampleRate int) (*Session, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w (got %d)", ErrInvalidCapacity, capacity)
	}
	return &Session{
		buf:        make([]int16, 0, capacity),
		sampleRate: sampleRate,
	}, nil
}

// Start clears any previous content and enters Recording. It is valid in
// every state: a Start while Recording restarts, a Start while Ready drops
// the unconsumed recording. Returns the new recording ID.
func (s *Session) Start() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf = s.buf[:0]
	s.overflow = 0
	s.announced = false
	s.id = uuid.NewString()
	s.state = Recording
	return s.id
}

// Append adds samples while Recording and returns how many were accepted.
// Samples past capacity are discarded and counted. Filling the buffer
// moves the session to Ready.
func (s *Session) Append(samples []int16) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Recording {
		return 0
	}
	room := cap(s.buf) - len(s.buf)
	n := len(samples)
	if n > room {
		n = room
	}
	s.buf = append(s.buf, samples[:n]...)
	if extra := len(samples) - n; extra > 0 {
		s.overflow += extra
		s.dropped.Add(uint64(extra))
	}
	if len(s.buf) == cap(s.buf) {
		s.state = Ready
	}
	return n
}

// Stop ends a recording early. Returns false if nothing was recording.
func (s *Session) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Recording {
		return false
	}
	s.state = Ready
	return true
}

// Consume hands out a copy of the finished recording and returns to Idle.
func (s *Session) Consume() (Take, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Ready {
		return Take{}, ErrNotReady
	}
	rec := Take{
		ID:         s.id,
		SampleRate: s.sampleRate,
		Samples:    append([]int16(nil), s.buf...),
		Overflow:   s.overflow,
	}
	s.buf = s.buf[:0]
	s.overflow = 0
	s.state = Idle
	return rec, nil
}

// TakeCompletion reports a newly finished recording exactly once per session.
func (s *Session) TakeCompletion() (Status, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Ready || s.announced {
		return Status{}, false
	}
	s.announced = true
	return s.statusLocked(), true
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked()
}

func (s *Session) statusLocked() Status {
	return Status{
		State:    s.state,
		ID:       s.id,
		Len:      len(s.buf),
		Capacity: cap(s.buf),
		Overflow: s.overflow,
	}
}

// Dropped returns the total number of overflow samples since creation.
func (s *Session) Dropped() uint64 {
	return s.dropped.Load()
}
