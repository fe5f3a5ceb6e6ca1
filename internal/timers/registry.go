// Package timers keeps the live timers of a build process, keyed either by
// a fixed phase name (singleton) or by a phase name plus a generated token
// (multiplexed), so overlapping builds of the same phase time independently.
package timers

import (
	"strings"
	"sync"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/discochess/dxmetrics/internal/timer"
)

// DefaultCapacity bounds how many multiplexed timers may be in flight.
// Builds that never reach their end event leave orphans behind; once the
// bound is hit the oldest orphan is dropped.
const DefaultCapacity = 1024

// Separator joins a phase name and a token into a multiplexed key.
const Separator = ":"

// Registry owns every timer it holds. A Registry is safe for concurrent use.
type Registry struct {
	clock    timer.Clock
	logger   *zap.Logger
	newToken func() string
	capacity int

	mu          sync.Mutex
	singletons  map[string]*timer.Timer
	multiplexed *lru.Cache[string, *timer.Timer]
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock sets the clock handed to every created timer.
func WithClock(c timer.Clock) Option {
	return func(r *Registry) {
		r.clock = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) {
		r.logger = l
	}
}

// WithCapacity bounds the number of in-flight multiplexed timers.
// Values <= 0 select DefaultCapacity.
func WithCapacity(n int) Option {
	return func(r *Registry) {
		r.capacity = n
	}
}

// WithTokenGenerator replaces the random token source for multiplexed keys.
func WithTokenGenerator(fn func() string) Option {
	return func(r *Registry) {
		r.newToken = fn
	}
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		clock:      timer.SystemClock{},
		logger:     zap.NewNop(),
		newToken:   uuid.NewString,
		capacity:   DefaultCapacity,
		singletons: make(map[string]*timer.Timer),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.capacity <= 0 {
		r.capacity = DefaultCapacity
	}

	// lru.New only rejects non-positive sizes.
	r.multiplexed, _ = lru.New[string, *timer.Timer](r.capacity)
	return r
}

// MultiplexedKey returns the registry key for a phase and token.
func MultiplexedKey(phase, token string) string {
	return phase + Separator + token
}

// CreateSingleton starts a timer under the fixed key and returns the key.
// An existing timer under the same key is replaced.
func (r *Registry) CreateSingleton(key string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.singletons[key]; ok {
		r.logger.Debug("there's already a timer for key, restarting it", zap.String("key", key))
	}
	t := timer.New(key, r.clock)
	t.Start()
	r.singletons[key] = t
	return key
}

// CreateMultiplexed starts a timer under a fresh key for phase and returns
// that key. The key is the token callers thread through the build so the
// matching end event can consume the same timer.
func (r *Registry) CreateMultiplexed(phase string) string {
	key := MultiplexedKey(phase, r.newToken())

	r.mu.Lock()
	defer r.mu.Unlock()
	r.addMultiplexed(key)
	return key
}

// CreateMultiplexedIfIdle is CreateMultiplexed for a phase with no timer
// held. It returns false, creating nothing, when the phase is active.
// The check and the creation happen under one lock.
func (r *Registry) CreateMultiplexedIfIdle(phase string) (string, bool) {
	key := MultiplexedKey(phase, r.newToken())

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.phaseActive(phase) {
		return "", false
	}
	r.addMultiplexed(key)
	return key, true
}

// addMultiplexed must be called with r.mu held.
func (r *Registry) addMultiplexed(key string) {
	if r.multiplexed.Len() >= r.capacity {
		if evicted, _, ok := r.multiplexed.RemoveOldest(); ok {
			r.logger.Debug("dropping orphaned timer", zap.String("key", evicted))
		}
	}
	t := timer.New(key, r.clock)
	t.Start()
	r.multiplexed.Add(key, t)
}

// Exists reports whether a timer is held under key.
func (r *Registry) Exists(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.singletons[key]; ok {
		return true
	}
	return r.multiplexed.Contains(key)
}

// PhaseActive reports whether any timer for phase is held, under either
// the singleton key or a multiplexed key.
func (r *Registry) PhaseActive(phase string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phaseActive(phase)
}

func (r *Registry) phaseActive(phase string) bool {
	if _, ok := r.singletons[phase]; ok {
		return true
	}
	prefix := phase + Separator
	for _, key := range r.multiplexed.Keys() {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}

// Consume stops and removes the timer under key and returns its elapsed
// milliseconds. It returns false when no timer is held under key; that is
// an expected outcome, not an error.
func (r *Registry) Consume(key string) (int64, bool) {
	r.mu.Lock()
	t, ok := r.singletons[key]
	if ok {
		delete(r.singletons, key)
	} else if t, ok = r.multiplexed.Peek(key); ok {
		r.multiplexed.Remove(key)
	}
	r.mu.Unlock()

	if !ok {
		r.logger.Debug("could not find timer", zap.String("key", key))
		return 0, false
	}

	t.Stop()
	ms, err := t.ElapsedMilliseconds()
	if err != nil {
		// Timers are started on creation, so this is a programming error.
		r.logger.Error("consumed timer was never started", zap.String("key", key), zap.Error(err))
		return 0, false
	}
	return ms, true
}

// Len returns the number of timers held.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.singletons) + r.multiplexed.Len()
}
