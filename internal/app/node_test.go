package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/relabs-tech/heysalad_node/internal/audio"
	"github.com/relabs-tech/heysalad_node/internal/channel"
	"github.com/relabs-tech/heysalad_node/internal/config"
	"github.com/relabs-tech/heysalad_node/internal/gesture"
	"github.com/relabs-tech/heysalad_node/internal/motion"
	"github.com/relabs-tech/heysalad_node/internal/notify"
	"github.com/relabs-tech/heysalad_node/internal/router"
	"github.com/relabs-tech/heysalad_node/internal/sensors"
)

type harness struct {
	node   *Node
	debug  *channel.Memory
	device *channel.Memory
	src    *sensors.ScriptedSource
	clock  *clock.Mock
	events *recordingNotifier
}

type recordingNotifier struct {
	mu        sync.Mutex
	events    []notify.Event
	telemetry []motion.Sample
}

func (r *recordingNotifier) Notify(_ context.Context, ev notify.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingNotifier) Telemetry(_ context.Context, _ time.Time, s motion.Sample) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.telemetry = append(r.telemetry, s)
}

func (r *recordingNotifier) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, ev := range r.events {
		out = append(out, ev.Name)
	}
	return out
}

func newHarness(t *testing.T, cfg *config.Config, steps ...sensors.Reading) *harness {
	t.Helper()
	if cfg == nil {
		cfg = config.Default()
	}
	h := &harness{
		debug:  channel.NewMemory("debug"),
		device: channel.NewMemory("device"),
		src:    sensors.NewScriptedSource(steps...),
		clock:  clock.NewMock(),
		events: &recordingNotifier{},
	}
	node, err := NewNode(Deps{
		Config:   cfg,
		Reader:   h.src,
		Debug:    h.debug,
		Device:   h.device,
		Notifier: h.events,
		Clock:    h.clock,
	})
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	h.node = node
	return h
}

func TestGestureSequenceEndToEnd(t *testing.T) {
	h := newHarness(t, nil,
		sensors.Reading{Z: 1.0},
		sensors.Reading{Z: 2.2},
		sensors.Reading{Z: 2.6},
	)
	want := []gesture.Event{gesture.None, gesture.CaptureFood, gesture.ViewRecipe}
	for i, w := range want {
		rep := h.node.Cycle(context.Background())
		if rep.Gesture != w {
			t.Fatalf("cycle %d: gesture %v, want %v", i, rep.Gesture, w)
		}
	}
	dev := h.device.Written()
	if len(dev) != 2 || dev[0] != "GESTURE_CAPTURE" || dev[1] != "GESTURE_RECIPE" {
		t.Fatalf("device got %v", dev)
	}
	dbg := h.debug.Written()
	if len(dbg) != 2 || dbg[0] != "Event: GESTURE_CAPTURE" || dbg[1] != "Event: GESTURE_RECIPE" {
		t.Fatalf("debug got %v", dbg)
	}
	if names := h.events.names(); len(names) != 2 || names[1] != "GESTURE_RECIPE" {
		t.Fatalf("extra notifier got %v", names)
	}
}

func TestSustainedShakeFiresOnce(t *testing.T) {
	var steps []sensors.Reading
	for i := 0; i < 20; i++ {
		steps = append(steps, sensors.Reading{Z: 2.2})
	}
	steps = append(steps, sensors.Reading{Z: 1.0}, sensors.Reading{Z: 2.2})
	h := newHarness(t, nil, steps...)

	count := 0
	for range steps {
		if h.node.Cycle(context.Background()).Gesture == gesture.CaptureFood {
			count++
		}
	}
	if count != 2 {
		t.Fatalf("CaptureFood fired %d times, want 2 (once per shake)", count)
	}
}

func TestLevelTriggerFiresEveryCycle(t *testing.T) {
	cfg := config.Default()
	cfg.GestureTrigger = config.TriggerLevel
	h := newHarness(t, cfg, sensors.Reading{Z: 2.2}, sensors.Reading{Z: 2.2}, sensors.Reading{Z: 2.2})
	for i := 0; i < 3; i++ {
		if g := h.node.Cycle(context.Background()).Gesture; g != gesture.CaptureFood {
			t.Fatalf("cycle %d: %v", i, g)
		}
	}
}

func TestStartCameraEndToEnd(t *testing.T) {
	h := newHarness(t, nil, sensors.Reading{Z: 1}, sensors.Reading{Z: 1})
	h.device.Inject("heysalad start camera")
	rep := h.node.Cycle(context.Background())
	if len(rep.Dispatches) != 1 || rep.Dispatches[0].Command.Verb != router.StartCamera {
		t.Fatalf("dispatches = %+v", rep.Dispatches)
	}
	if dev := h.device.Written(); len(dev) != 1 || dev[0] != "START_CAMERA" {
		t.Fatalf("device got %v", dev)
	}
	if dbg := h.debug.Written(); len(dbg) != 1 || dbg[0] != "Sent to ESP32: START_CAMERA" {
		t.Fatalf("debug got %v", dbg)
	}
}

func TestRecordAudioEndToEnd(t *testing.T) {
	cfg := config.Default()
	cfg.AudioSampleRate = 1000
	cfg.AudioDurationMS = 100 // capacity 100
	h := newHarness(t, cfg, sensors.Reading{Z: 1}, sensors.Reading{Z: 1}, sensors.Reading{Z: 1})
	session := h.node.Session()

	if st := session.Status(); st.State != audio.Idle {
		t.Fatalf("initial %v", st.State)
	}
	h.debug.Inject("heysalad record audio")
	h.node.Cycle(context.Background())
	if st := session.Status(); st.State != audio.Recording {
		t.Fatalf("after command %v", st.State)
	}

	// capture goroutine delivers exactly capacity samples
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			session.Append(make([]int16, 10))
		}
	}()
	<-done

	rep := h.node.Cycle(context.Background())
	if !rep.AudioReady {
		t.Fatal("cycle did not announce AUDIO_READY")
	}
	st := session.Status()
	if st.State != audio.Ready || st.Len != 100 || st.Len != st.Capacity {
		t.Fatalf("status = %+v", st)
	}
	if !contains(h.debug.Written(), "Event: AUDIO_READY") {
		t.Fatalf("debug got %v", h.debug.Written())
	}

	// announced once only
	if rep := h.node.Cycle(context.Background()); rep.AudioReady {
		t.Fatal("AUDIO_READY announced twice")
	}
}

func TestSensorFailureReportedOnTransitions(t *testing.T) {
	boom := errors.New("device not ready")
	h := newHarness(t, nil,
		sensors.Reading{Z: 1.5},
		sensors.Reading{Err: boom},
		sensors.Reading{Err: boom},
		sensors.Reading{Z: 1.0},
	)
	var reps []CycleReport
	for i := 0; i < 4; i++ {
		reps = append(reps, h.node.Cycle(context.Background()))
	}
	if reps[1].SampleOK || reps[1].Sample.Z != 1.5 {
		t.Fatalf("retain policy sample = %+v ok=%v", reps[1].Sample, reps[1].SampleOK)
	}
	var errs, recovered int
	for _, l := range h.debug.Written() {
		if strings.HasPrefix(l, "[ERROR] IMU read failed") {
			errs++
		}
		if l == "[DEBUG] IMU read recovered" {
			recovered++
		}
	}
	if errs != 1 || recovered != 1 {
		t.Fatalf("errors=%d recovered=%d in %v", errs, recovered, h.debug.Written())
	}
}

func TestZeroFillPolicy(t *testing.T) {
	cfg := config.Default()
	cfg.SampleFailurePolicy = config.FailureZero
	h := newHarness(t, cfg, sensors.Reading{Z: 2.2}, sensors.Reading{Err: errors.New("x")})
	h.node.Cycle(context.Background())
	rep := h.node.Cycle(context.Background())
	if rep.Sample != (motion.Sample{}) {
		t.Fatalf("zero fill sample = %+v", rep.Sample)
	}
}

func TestTelemetryCadence(t *testing.T) {
	var steps []sensors.Reading
	for i := 0; i < 100; i++ {
		steps = append(steps, sensors.Reading{X: 0.1, Y: -0.2, Z: 1})
	}
	h := newHarness(t, nil, steps...)

	lines := 0
	for i := 0; i < 100; i++ {
		h.clock.Add(10 * time.Millisecond) // 1s total
		if rep := h.node.Cycle(context.Background()); rep.Telemetry != "" {
			lines++
			if rep.Telemetry != "0.100,-0.200,1.000" {
				t.Fatalf("telemetry = %q", rep.Telemetry)
			}
		}
	}
	if lines < 4 || lines > 6 {
		t.Fatalf("%d telemetry lines in 1s at 200ms, want 5±1", lines)
	}
	if len(h.events.telemetry) != lines {
		t.Fatalf("notifier saw %d telemetry samples, want %d", len(h.events.telemetry), lines)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	var steps []sensors.Reading
	for i := 0; i < 1000; i++ {
		steps = append(steps, sensors.Reading{Z: 1})
	}
	h := newHarness(t, nil, steps...)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.node.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		h.clock.Add(5 * time.Millisecond)
		if len(h.device.Written()) > 0 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop")
	}
	if len(h.device.Written()) == 0 {
		t.Fatal("run never emitted telemetry")
	}
}

func TestNewNodeValidates(t *testing.T) {
	if _, err := NewNode(Deps{}); err == nil {
		t.Fatal("expected error without config")
	}
	cfg := config.Default()
	cfg.CaptureThreshold = 3
	_, err := NewNode(Deps{Config: cfg, Reader: sensors.NewScriptedSource(), Debug: channel.NewMemory("d"), Device: channel.NewMemory("v")})
	if !errors.Is(err, gesture.ErrThresholdOrder) {
		t.Fatalf("err = %v", err)
	}
}

func contains(lines []string, want string) bool {
	for _, l := range lines {
		if l == want {
			return true
		}
	}
	return false
}
