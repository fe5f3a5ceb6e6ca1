// Package timer provides a stopwatch measuring build phases in whole milliseconds.
package timer

import (
	"errors"
	"fmt"
	"time"
)

// ErrUninitialized matches any UninitializedError via errors.Is.
var ErrUninitialized = errors.New("timer: never started")

// UninitializedError is returned when elapsed time is read from a timer
// that was never started.
type UninitializedError struct {
	Label string
}

func (e *UninitializedError) Error() string {
	return fmt.Sprintf("timer %q was never started", e.Label)
}

// Is reports whether target is ErrUninitialized.
func (e *UninitializedError) Is(target error) bool {
	return target == ErrUninitialized
}

// Timer is a single stopwatch. A Timer is not safe for concurrent use;
// the registry that owns it serializes access.
type Timer struct {
	label string
	clock Clock

	startTime time.Time
	stopTime  time.Time
	started   bool
	running   bool
}

// New returns an unstarted timer. A nil clock means the system clock.
func New(label string, clock Clock) *Timer {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Timer{label: label, clock: clock}
}

// Label returns the label the timer was created with.
func (t *Timer) Label() string {
	return t.label
}

// Start records the start instant. Starting a timer that is already in use
// overwrites its start instant and the prior interval is lost.
func (t *Timer) Start() {
	t.startTime = t.clock.Now()
	t.started = true
	t.running = true
}

// Stop freezes the stop instant. Stopping a stopped timer records a new
// stop instant.
func (t *Timer) Stop() {
	t.stopTime = t.clock.Now()
	t.running = false
}

// Clear resets the timer to the unstarted state.
func (t *Timer) Clear() {
	t.startTime = time.Time{}
	t.stopTime = time.Time{}
	t.started = false
	t.running = false
}

// Started reports whether Start has been called since creation or the last Clear.
func (t *Timer) Started() bool {
	return t.started
}

// Running reports whether the timer is started and not stopped.
func (t *Timer) Running() bool {
	return t.running
}

// ElapsedMilliseconds returns the measured interval truncated to whole
// milliseconds. A running timer is read against the current instant.
func (t *Timer) ElapsedMilliseconds() (int64, error) {
	if !t.started {
		return 0, &UninitializedError{Label: t.label}
	}
	end := t.stopTime
	if t.running {
		end = t.clock.Now()
	}
	return end.Sub(t.startTime).Milliseconds(), nil
}
