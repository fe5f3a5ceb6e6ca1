// Package statstest provides an in-memory collector for tests.
package statstest

import (
	"sync"

	"github.com/discochess/dxmetrics/internal/stats"
)

// Kind is the sink operation a Call was made through.
type Kind string

// Sink operations.
const (
	KindHistogram Kind = "histogram"
	KindGauge     Kind = "gauge"
	KindIncrement Kind = "increment"
)

// Call is one recorded emission.
type Call struct {
	Kind  Kind
	Name  string
	Value float64
	Tags  []string
}

// Recorder records every call it receives. It is safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	calls   []Call
	inits   []stats.Config
	initErr error
}

// Compile-time checks that Recorder implements stats.Collector and stats.Initializer.
var (
	_ stats.Collector   = (*Recorder)(nil)
	_ stats.Initializer = (*Recorder)(nil)
)

// New returns an empty recorder.
func New() *Recorder {
	return &Recorder{}
}

// FailInit makes subsequent Init calls return err.
func (r *Recorder) FailInit(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.initErr = err
}

func (r *Recorder) Histogram(name string, value float64, tags []string) {
	r.record(KindHistogram, name, value, tags)
}

func (r *Recorder) Gauge(name string, value float64, tags []string) {
	r.record(KindGauge, name, value, tags)
}

func (r *Recorder) Increment(name string, value float64, tags []string) {
	r.record(KindIncrement, name, value, tags)
}

// Init records cfg.
func (r *Recorder) Init(cfg stats.Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inits = append(r.inits, cfg)
	return r.initErr
}

// Calls returns a copy of every recorded call in order.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// CallsFor returns the recorded calls for metric name.
func (r *Recorder) CallsFor(name string) []Call {
	var out []Call
	for _, c := range r.Calls() {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// Inits returns every config Init was called with.
func (r *Recorder) Inits() []stats.Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]stats.Config, len(r.inits))
	copy(out, r.inits)
	return out
}

// Reset forgets every recorded call.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

func (r *Recorder) record(kind Kind, name string, value float64, tags []string) {
	copied := make([]string, len(tags))
	copy(copied, tags)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Kind: kind, Name: name, Value: value, Tags: copied})
}
