// Package alerts holds the single transient notice a view shows at a time.
package alerts

import (
	"sync"
	"time"
)

// Kind classifies an alert.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// Alert is a banner message. AutoDismiss alerts clear themselves after the
// board's delay.
type Alert struct {
	Kind        Kind
	Message     string
	AutoDismiss bool
	Raised      time.Time
}

// Success builds an auto-dismissing success alert.
func Success(message string) Alert {
	return Alert{Kind: KindSuccess, Message: message, AutoDismiss: true}
}

// Error builds an error alert. Sticky errors stay until dismissed.
func Error(message string, autoDismiss bool) Alert {
	return Alert{Kind: KindError, Message: message, AutoDismiss: autoDismiss}
}

// Scheduler runs fn after d and returns a function that cancels it.
type Scheduler func(d time.Duration, fn func()) (stop func() bool)

// TimerScheduler schedules with time.AfterFunc.
func TimerScheduler(d time.Duration, fn func()) func() bool {
	t := time.AfterFunc(d, fn)
	return t.Stop
}

// Board stores the current alert. Showing a new alert replaces the previous
// one and cancels its pending dismissal.
type Board struct {
	mu       sync.Mutex
	current  *Alert
	seq      uint64
	delay    time.Duration
	schedule Scheduler
	stop     func() bool
	now      func() time.Time
	onChange func(Alert, bool)
}

// Option customizes a Board.
type Option func(*Board)

// WithScheduler replaces the timer used for auto-dismissal.
func WithScheduler(s Scheduler) Option {
	return func(b *Board) {
		if s != nil {
			b.schedule = s
		}
	}
}

// WithOnChange registers fn to observe every change. The bool is false when
// the board was cleared.
func WithOnChange(fn func(Alert, bool)) Option {
	return func(b *Board) { b.onChange = fn }
}

// WithClock replaces the time source used to stamp alerts.
func WithClock(now func() time.Time) Option {
	return func(b *Board) {
		if now != nil {
			b.now = now
		}
	}
}

// NewBoard returns a Board that auto-dismisses after delay.
func NewBoard(delay time.Duration, opts ...Option) *Board {
	b := &Board{delay: delay, schedule: TimerScheduler, now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Show replaces the current alert.
func (b *Board) Show(a Alert) {
	b.mu.Lock()
	if b.stop != nil {
		b.stop()
		b.stop = nil
	}
	b.seq++
	seq := b.seq
	if a.Raised.IsZero() {
		a.Raised = b.now()
	}
	b.current = &a
	if a.AutoDismiss && b.delay > 0 {
		b.stop = b.schedule(b.delay, func() { b.expire(seq) })
	}
	onChange := b.onChange
	b.mu.Unlock()

	if onChange != nil {
		onChange(a, true)
	}
}

// Dismiss clears the current alert.
func (b *Board) Dismiss() {
	b.mu.Lock()
	b.seq++
	b.clearLocked()
}

// Current returns the active alert.
func (b *Board) Current() (Alert, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil {
		return Alert{}, false
	}
	return *b.current, true
}

// Close cancels any pending dismissal timer.
func (b *Board) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stop != nil {
		b.stop()
		b.stop = nil
	}
}

func (b *Board) expire(seq uint64) {
	b.mu.Lock()
	if seq != b.seq {
		b.mu.Unlock()
		return
	}
	b.clearLocked()
}

// clearLocked releases b.mu.
func (b *Board) clearLocked() {
	if b.stop != nil {
		b.stop()
		b.stop = nil
	}
	had := b.current != nil
	b.current = nil
	onChange := b.onChange
	b.mu.Unlock()

	if had && onChange != nil {
		onChange(Alert{}, false)
	}
}
