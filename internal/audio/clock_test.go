package audio

import (
	"testing"
	"time"
)

// stubNow returns a controllable clock source.
func stubNow() (now func() time.Time, advance func(time.Duration)) {
	current := time.Unix(1000, 0)
	return func() time.Time { return current },
		func(d time.Duration) { current = current.Add(d) }
}

func TestClock_StartAndElapse(t *testing.T) {
	now, advance := stubNow()
	c := NewClock(now)

	if c.Elapsed() != 0 {
		t.Errorf("fresh clock elapsed = %v, want 0", c.Elapsed())
	}

	c.Start(2 * time.Second)
	advance(500 * time.Millisecond)

	if got := c.Elapsed(); got != 2500*time.Millisecond {
		t.Errorf("elapsed = %v, want 2.5s", got)
	}
}

func TestClock_PauseFreezes(t *testing.T) {
	now, advance := stubNow()
	c := NewClock(now)

	c.Start(0)
	advance(time.Second)

	if got := c.Pause(); got != time.Second {
		t.Errorf("Pause returned %v, want 1s", got)
	}

	// Time keeps moving; the paused clock does not.
	advance(10 * time.Second)
	if got := c.Elapsed(); got != time.Second {
		t.Errorf("elapsed after pause = %v, want 1s", got)
	}
	if c.Running() {
		t.Error("clock still running after Pause")
	}
}

func TestClock_SetOffsetWhileRunning(t *testing.T) {
	now, advance := stubNow()
	c := NewClock(now)

	c.Start(0)
	advance(3 * time.Second)
	c.SetOffset(time.Second)
	advance(time.Second)

	if got := c.Elapsed(); got != 2*time.Second {
		t.Errorf("elapsed = %v, want 2s", got)
	}
}
