package alerts

import (
	"testing"
	"time"
)

type manualScheduler struct {
	pending []func()
	delays  []time.Duration
	stopped int
}

func (m *manualScheduler) schedule(d time.Duration, fn func()) func() bool {
	idx := len(m.pending)
	m.pending = append(m.pending, fn)
	m.delays = append(m.delays, d)
	return func() bool {
		if m.pending[idx] == nil {
			return false
		}
		m.pending[idx] = nil
		m.stopped++
		return true
	}
}

func (m *manualScheduler) fire(idx int) {
	if fn := m.pending[idx]; fn != nil {
		m.pending[idx] = nil
		fn()
	}
}

func TestSuccessAutoDismisses(t *testing.T) {
	sched := &manualScheduler{}
	board := NewBoard(10*time.Second, WithScheduler(sched.schedule))

	board.Show(Success("Job submitted"))
	if a, ok := board.Current(); !ok || a.Message != "Job submitted" || a.Kind != KindSuccess {
		t.Fatalf("unexpected current alert %+v %v", a, ok)
	}
	if len(sched.delays) != 1 || sched.delays[0] != 10*time.Second {
		t.Fatalf("expected one 10s timer, got %v", sched.delays)
	}

	sched.fire(0)
	if _, ok := board.Current(); ok {
		t.Fatal("expected alert dismissed after timer")
	}
}

func TestStickyErrorStays(t *testing.T) {
	sched := &manualScheduler{}
	board := NewBoard(time.Second, WithScheduler(sched.schedule))

	board.Show(Error("Preset not found", false))
	if len(sched.pending) != 0 {
		t.Fatal("sticky error should not schedule dismissal")
	}
	board.Dismiss()
	if _, ok := board.Current(); ok {
		t.Fatal("expected alert cleared by Dismiss")
	}
}

func TestReplacingCancelsPendingTimer(t *testing.T) {
	sched := &manualScheduler{}
	var changes []bool
	board := NewBoard(time.Second,
		WithScheduler(sched.schedule),
		WithOnChange(func(_ Alert, shown bool) { changes = append(changes, shown) }),
	)

	board.Show(Error("No items found", true))
	board.Show(Success("Preset created"))
	if sched.stopped != 1 {
		t.Fatalf("expected first timer stopped, got %d", sched.stopped)
	}

	// A stale timer firing must not clear the newer alert.
	board.expire(1)
	if a, ok := board.Current(); !ok || a.Message != "Preset created" {
		t.Fatalf("expected newer alert to survive, got %+v %v", a, ok)
	}

	sched.fire(1)
	if _, ok := board.Current(); ok {
		t.Fatal("expected newer alert dismissed")
	}
	if len(changes) != 3 || !changes[0] || !changes[1] || changes[2] {
		t.Fatalf("unexpected change sequence %v", changes)
	}
}

func TestRaisedUsesClock(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	board := NewBoard(0, WithClock(func() time.Time { return fixed }))
	board.Show(Error("x", true))
	a, _ := board.Current()
	if !a.Raised.Equal(fixed) {
		t.Fatalf("expected raised %v, got %v", fixed, a.Raised)
	}
}
