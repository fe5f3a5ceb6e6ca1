package logger

import (
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/discochess/dxmetrics/internal/stats"
)

func TestNew_NilLogger(t *testing.T) {
	c := New(nil)
	if c.logger == nil {
		t.Fatal("logger should not be nil")
	}
	c.Histogram("compile", 1, nil)
}

func TestCollector_LogsEveryKind(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	c := New(zap.New(core))
	if err := c.Init(stats.Config{Prefix: "dx."}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	c.Histogram("compile", 120, []string{"projectName:web"})
	c.Gauge("compile", 120, nil)
	c.Increment("compile", 1, nil)

	entries := logs.All()
	if len(entries) != 3 {
		t.Fatalf("got %d log entries, want 3", len(entries))
	}

	wantKinds := []string{"histogram", "gauge", "counter"}
	for i, e := range entries {
		if e.Message != wantKinds[i] {
			t.Errorf("entry %d message = %q, want %q", i, e.Message, wantKinds[i])
		}
		if got := e.ContextMap()["metric"]; got != "dx.compile" {
			t.Errorf("entry %d metric = %v, want dx.compile", i, got)
		}
	}
}

func TestCollector_InitWhileEmitting(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	c := New(zap.New(core))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.Init(stats.Config{Prefix: "dx."})
		}()
		go func() {
			defer wg.Done()
			c.Increment("compile", 1, nil)
		}()
	}
	wg.Wait()

	if got := logs.Len(); got != 10 {
		t.Errorf("got %d log entries, want 10", got)
	}
	c.Gauge("heap_used", 1, nil)
	last := logs.All()[logs.Len()-1]
	if got := last.ContextMap()["metric"]; got != "dx.heap_used" {
		t.Errorf("metric = %v, want dx.heap_used", got)
	}
}
