package channel

import (
	"context"
	"io"
	"sync"
)

// Memory is a synchronous in-process channel. Inject queues inbound lines;
// everything written is recorded and can be read back with Written.
type Memory struct {
	name string

	mu       sync.Mutex
	inbound  []string
	buffered []string
	written  []string
	flushes  int
	closed   bool

	// FlushHook, when set, runs inside Flush. Tests use it to simulate a
	// slow link.
	FlushHook func(ctx context.Context) error
	// OnWrite, when set, sees every flushed line.
	OnWrite func(line string)
}

func NewMemory(name string) *Memory {
	return &Memory{name: name}
}

func (m *Memory) Name() string { return m.name }

// Inject queues lines as if the remote end had sent them.
func (m *Memory) Inject(lines ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inbound = append(m.inbound, lines...)
}

func (m *Memory) ReadLine() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.inbound) == 0 {
		return "", false
	}
	line := m.inbound[0]
	m.inbound = m.inbound[1:]
	return line, true
}

// WriteLine records the line as written. Unlike a Stream it does not wait
// for Flush; Flush only counts and runs the hook.
func (m *Memory) WriteLine(line string) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.written = append(m.written, line)
	hook := m.OnWrite
	m.mu.Unlock()
	if hook != nil {
		hook(line)
	}
	return nil
}

func (m *Memory) Flush(ctx context.Context) error {
	m.mu.Lock()
	m.flushes++
	hook := m.FlushHook
	m.mu.Unlock()
	if hook != nil {
		return hook(ctx)
	}
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Written returns a copy of every line written so far.
func (m *Memory) Written() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.written...)
}

// TakeWritten returns and clears the written lines.
func (m *Memory) TakeWritten() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.written
	m.written = nil
	return out
}

func (m *Memory) Flushes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flushes
}

// Pipe returns two connected Streams: lines written on one are read on the other.
func Pipe(opts Options) (*Stream, *Stream) {
	ar, bw := io.Pipe()
	br, aw := io.Pipe()
	a := NewStream("a", ar, aw, multiCloser{ar, aw}, opts)
	b := NewStream("b", br, bw, multiCloser{br, bw}, opts)
	return a, b
}

type multiCloser []io.Closer

func (mc multiCloser) Close() error {
	var first error
	for _, c := range mc {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
