package hooks

import "sync"

// Values is an attribute bag standing in for a host object that plugins
// annotate with their own fields.
type Values struct {
	mu sync.RWMutex
	m  map[string]string
}

// Get returns the value stored under key.
func (v *Values) Get(key string) (string, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	val, ok := v.m[key]
	return val, ok
}

// Set stores val under key.
func (v *Values) Set(key, val string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.m == nil {
		v.m = make(map[string]string)
	}
	v.m[key] = val
}

// Build carries the two host objects a single build exposes to handlers.
// They do not share identity: anything a plugin needs on both must be
// copied from one to the other.
type Build struct {
	// Params is the per-invocation context, available from beforeCompile.
	Params *Values

	// Compilation is the build-result object, available from compilation.
	Compilation *Values

	mu    sync.Mutex
	fired map[Event]bool
}

// NewBuild returns a build with empty host objects.
func NewBuild() *Build {
	return &Build{
		Params:      &Values{},
		Compilation: &Values{},
		fired:       make(map[Event]bool),
	}
}

// markFired records e and reports whether it was already fired.
func (b *Build) markFired(e Event) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fired == nil {
		b.fired = make(map[Event]bool)
	}
	if b.fired[e] {
		return true
	}
	b.fired[e] = true
	return false
}
