package timers

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/discochess/dxmetrics/internal/timer"
)

func newTestRegistry(t *testing.T, opts ...Option) (*Registry, *timer.ManualClock) {
	t.Helper()
	clock := timer.NewManualClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	return New(append([]Option{WithClock(clock)}, opts...)...), clock
}

func mustConsume(t *testing.T, r *Registry, key string) int64 {
	t.Helper()
	ms, ok := r.Consume(key)
	if !ok {
		t.Fatalf("Consume(%q) found no timer", key)
	}
	return ms
}

func TestRegistry_Singleton(t *testing.T) {
	r, clock := newTestRegistry(t)

	key := r.CreateSingleton("compile_session")
	if key != "compile_session" {
		t.Errorf("CreateSingleton() = %q, want %q", key, "compile_session")
	}
	if !r.Exists(key) {
		t.Error("Exists() = false after CreateSingleton")
	}
	if !r.PhaseActive("compile_session") {
		t.Error("PhaseActive() = false after CreateSingleton")
	}

	clock.Advance(1500 * time.Millisecond)
	if ms := mustConsume(t, r, key); ms != 1500 {
		t.Errorf("Consume() = %d, want 1500", ms)
	}
	if r.Exists(key) {
		t.Error("Exists() = true after Consume")
	}
}

func TestRegistry_SingletonRecreateRestarts(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	r, clock := newTestRegistry(t, WithLogger(zap.New(core)))

	r.CreateSingleton("recompile_session")
	clock.Advance(time.Second)
	r.CreateSingleton("recompile_session")
	clock.Advance(200 * time.Millisecond)

	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
	if ms := mustConsume(t, r, "recompile_session"); ms != 200 {
		t.Errorf("Consume() = %d, want 200", ms)
	}
	if n := logs.FilterMessageSnippet("already a timer").Len(); n != 1 {
		t.Errorf("got %d restart logs, want 1", n)
	}
}

func TestRegistry_MultiplexedIndependent(t *testing.T) {
	r, clock := newTestRegistry(t)

	first := r.CreateMultiplexed("compile")
	clock.Advance(10 * time.Millisecond)
	second := r.CreateMultiplexed("compile")

	if first == second {
		t.Fatalf("CreateMultiplexed() returned %q twice", first)
	}
	for _, key := range []string{first, second} {
		if !strings.HasPrefix(key, "compile:") {
			t.Errorf("key %q lacks the phase prefix", key)
		}
	}

	clock.Advance(30 * time.Millisecond)
	if ms := mustConsume(t, r, first); ms != 40 {
		t.Errorf("Consume(first) = %d, want 40", ms)
	}

	clock.Advance(5 * time.Millisecond)
	if ms := mustConsume(t, r, second); ms != 35 {
		t.Errorf("Consume(second) = %d, want 35", ms)
	}
}

func TestRegistry_MultiplexedConcurrent(t *testing.T) {
	r, _ := newTestRegistry(t)

	const n = 50
	keys := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			keys[i] = r.CreateMultiplexed("recompile")
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, n)
	for _, k := range keys {
		if seen[k] {
			t.Errorf("duplicate key %s", k)
		}
		seen[k] = true
	}
	if r.Len() != n {
		t.Errorf("Len() = %d, want %d", r.Len(), n)
	}
}

func TestRegistry_CreateMultiplexedIfIdle(t *testing.T) {
	r, clock := newTestRegistry(t)

	key, ok := r.CreateMultiplexedIfIdle("compile")
	if !ok || !strings.HasPrefix(key, "compile:") {
		t.Fatalf("CreateMultiplexedIfIdle() = %q, %v, want a compile key", key, ok)
	}
	if key, ok := r.CreateMultiplexedIfIdle("compile"); ok {
		t.Errorf("CreateMultiplexedIfIdle() on active phase = %q, true", key)
	}
	if _, ok := r.CreateMultiplexedIfIdle("recompile"); !ok {
		t.Error("CreateMultiplexedIfIdle() refused an idle phase")
	}
	if r.Len() != 2 {
		t.Errorf("Len() = %d, want 2", r.Len())
	}

	clock.Advance(12 * time.Millisecond)
	if ms := mustConsume(t, r, key); ms != 12 {
		t.Errorf("Consume() = %d, want 12", ms)
	}
	if _, ok := r.CreateMultiplexedIfIdle("compile"); !ok {
		t.Error("CreateMultiplexedIfIdle() refused a phase whose timer was consumed")
	}
}

func TestRegistry_CreateMultiplexedIfIdleConcurrent(t *testing.T) {
	r, _ := newTestRegistry(t)

	const n = 50
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := r.CreateMultiplexedIfIdle("compile"); ok {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if created != 1 {
		t.Errorf("%d callers created a timer, want exactly 1", created)
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
}

func TestRegistry_ConsumeAbsent(t *testing.T) {
	r, _ := newTestRegistry(t)

	if ms, ok := r.Consume("compile:missing"); ok || ms != 0 {
		t.Errorf("Consume(absent) = %d, %v, want 0, false", ms, ok)
	}

	key := r.CreateMultiplexed("compile")
	mustConsume(t, r, key)
	if _, ok := r.Consume(key); ok {
		t.Error("second Consume() found a timer")
	}
}

func TestRegistry_PhaseActive(t *testing.T) {
	r, _ := newTestRegistry(t)

	if r.PhaseActive("compile") {
		t.Error("PhaseActive() = true on empty registry")
	}
	key := r.CreateMultiplexed("compile")

	tests := []struct {
		phase string
		want  bool
	}{
		{"compile", true},
		{"recompile", false},
		{"comp", false},
	}
	for _, tt := range tests {
		if got := r.PhaseActive(tt.phase); got != tt.want {
			t.Errorf("PhaseActive(%q) = %v, want %v", tt.phase, got, tt.want)
		}
	}

	r.Consume(key)
	if r.PhaseActive("compile") {
		t.Error("PhaseActive() = true after Consume")
	}
}

func TestRegistry_CapacityDropsOldest(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	var n int
	r, _ := newTestRegistry(t,
		WithCapacity(2),
		WithLogger(zap.New(core)),
		WithTokenGenerator(func() string {
			n++
			return fmt.Sprintf("t%d", n)
		}),
	)

	first := r.CreateMultiplexed("compile")
	r.CreateMultiplexed("compile")
	r.CreateMultiplexed("compile")

	if first != "compile:t1" {
		t.Errorf("first key = %q, want compile:t1", first)
	}
	if r.Exists(first) {
		t.Error("oldest timer still held past capacity")
	}
	for _, key := range []string{"compile:t2", "compile:t3"} {
		if !r.Exists(key) {
			t.Errorf("Exists(%q) = false", key)
		}
	}
	if got := logs.FilterMessage("dropping orphaned timer").Len(); got != 1 {
		t.Errorf("got %d eviction logs, want 1", got)
	}
}

func TestNew_NonPositiveCapacity(t *testing.T) {
	r := New(WithCapacity(-1))
	if r.capacity != DefaultCapacity {
		t.Errorf("capacity = %d, want %d", r.capacity, DefaultCapacity)
	}
}
