// Package hooks models a build tool's lifecycle hook system: plugins tap
// named events, and a Driver fires them in order for each build, one
// handler at a time.
package hooks

import (
	"sync"
)

// Event names a lifecycle point of a build.
type Event string

// Lifecycle events, in the order the host fires them.
const (
	Environment   Event = "environment"
	WatchRun      Event = "watchRun"
	BeforeCompile Event = "beforeCompile"
	Compilation   Event = "compilation"
	AfterCompile  Event = "afterCompile"
	Done          Event = "done"
)

// InitialCycle is the event sequence of the first build of a process.
var InitialCycle = []Event{Environment, BeforeCompile, Compilation, AfterCompile, Done}

// WatchCycle is the event sequence of a rebuild triggered in watch mode.
var WatchCycle = []Event{WatchRun, BeforeCompile, Compilation, AfterCompile, Done}

// Events returns every known event.
func Events() []Event {
	return []Event{Environment, WatchRun, BeforeCompile, Compilation, AfterCompile, Done}
}

// Valid reports whether e is a known event.
func (e Event) Valid() bool {
	for _, known := range Events() {
		if e == known {
			return true
		}
	}
	return false
}

// Handler runs synchronously when its event fires.
type Handler func(b *Build)

// AsyncHandler must call done to let the host continue.
type AsyncHandler func(b *Build, done func())

type tap struct {
	name  string
	fn    Handler
	async AsyncHandler
}

// Hooks holds the handlers tapped into each event.
type Hooks struct {
	mu   sync.RWMutex
	taps map[Event][]tap
}

// New returns an empty hook set.
func New() *Hooks {
	return &Hooks{taps: make(map[Event][]tap)}
}

// On taps fn into e under the given plugin name.
func (h *Hooks) On(e Event, name string, fn Handler) {
	h.add(e, tap{name: name, fn: fn})
}

// OnAsync taps fn into e under the given plugin name.
func (h *Hooks) OnAsync(e Event, name string, fn AsyncHandler) {
	h.add(e, tap{name: name, async: fn})
}

// Taps returns the plugin names tapped into e, in registration order.
func (h *Hooks) Taps(e Event) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.taps[e]))
	for _, t := range h.taps[e] {
		names = append(names, t.name)
	}
	return names
}

func (h *Hooks) add(e Event, t tap) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.taps[e] = append(h.taps[e], t)
}

func (h *Hooks) handlers(e Event) []tap {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]tap, len(h.taps[e]))
	copy(out, h.taps[e])
	return out
}
