package gesture

import (
	"errors"
	"testing"
)

var testThresholds = Thresholds{Capture: 2.0, Recipe: 2.5, Reset: 1.2}

func mustClassifier(t *testing.T, mode Mode) *Classifier {
	t.Helper()
	c, err := NewClassifier(testThresholds, mode)
	if err != nil {
		t.Fatalf("new classifier: %v", err)
	}
	return c
}

func TestLevelBands(t *testing.T) {
	cases := []struct {
		m    float64
		want Event
	}{
		{0, None},
		{1.0, None},
		{1.999, None},
		{2.0, CaptureFood},
		{2.2, CaptureFood},
		{2.499, CaptureFood},
		{2.5, ViewRecipe},
		{9.0, ViewRecipe},
	}
	for _, tc := range cases {
		if got := testThresholds.Level(tc.m); got != tc.want {
			t.Fatalf("Level(%v) = %v, want %v", tc.m, got, tc.want)
		}
	}
}

func TestLevelIsTotal(t *testing.T) {
	for m := -1.0; m < 5.0; m += 0.01 {
		switch testThresholds.Level(m) {
		case None, CaptureFood, ViewRecipe:
		default:
			t.Fatalf("undefined event for magnitude %v", m)
		}
	}
}

func TestEdgeSequenceEscalates(t *testing.T) {
	c := mustClassifier(t, Edge)
	seq := []float64{1.0, 2.2, 2.6}
	want := []Event{None, CaptureFood, ViewRecipe}
	for i, m := range seq {
		if got := c.Classify(m); got != want[i] {
			t.Fatalf("step %d (m=%v): got %v, want %v", i, m, got, want[i])
		}
	}
}

func TestEdgeSustainedShakeFiresOnce(t *testing.T) {
	c := mustClassifier(t, Edge)
	count := 0
	for i := 0; i < 50; i++ {
		if c.Classify(2.2) == CaptureFood {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("sustained shake fired %d times, want 1", count)
	}

	// dropping into the hysteresis band does not re-arm
	c.Classify(1.5)
	if c.Armed() {
		t.Fatal("classifier re-armed above reset threshold")
	}
	if got := c.Classify(2.2); got != None {
		t.Fatalf("fired %v without re-arm", got)
	}

	// below reset re-arms
	c.Classify(1.0)
	if !c.Armed() {
		t.Fatal("classifier not re-armed below reset threshold")
	}
	if got := c.Classify(2.2); got != CaptureFood {
		t.Fatalf("after re-arm got %v, want CaptureFood", got)
	}
}

func TestEdgeRecipeDoesNotDowngrade(t *testing.T) {
	c := mustClassifier(t, Edge)
	if got := c.Classify(3.0); got != ViewRecipe {
		t.Fatalf("got %v, want ViewRecipe", got)
	}
	if got := c.Classify(2.2); got != None {
		t.Fatalf("falling through capture band fired %v", got)
	}
}

func TestLevelModeFiresEveryCycle(t *testing.T) {
	c := mustClassifier(t, Level)
	for i := 0; i < 5; i++ {
		if got := c.Classify(2.2); got != CaptureFood {
			t.Fatalf("cycle %d: got %v", i, got)
		}
	}
	if got := c.Classify(1.5); got != None {
		t.Fatalf("below capture got %v", got)
	}
}

func TestNewClassifierRejectsBadOrder(t *testing.T) {
	bad := []Thresholds{
		{Capture: 2.5, Recipe: 2.0, Reset: 1.0},
		{Capture: 2.0, Recipe: 2.5, Reset: 2.0},
		{Capture: 2.0, Recipe: 2.0, Reset: 1.0},
	}
	for _, th := range bad {
		if _, err := NewClassifier(th, Edge); !errors.Is(err, ErrThresholdOrder) {
			t.Fatalf("%+v: err = %v", th, err)
		}
	}
}

func TestTags(t *testing.T) {
	if CaptureFood.Tag() != "GESTURE_CAPTURE" || ViewRecipe.Tag() != "GESTURE_RECIPE" || None.Tag() != "" {
		t.Fatal("unexpected gesture tags")
	}
}
