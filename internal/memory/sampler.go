// Package memory periodically samples the process's memory usage and
// reports it in KiB.
package memory

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"

	"github.com/discochess/dxmetrics/internal/stats"
)

// Usage is a memory snapshot in bytes.
type Usage struct {
	RSS       uint64
	HeapTotal uint64
	HeapUsed  uint64
}

// Reader takes a snapshot.
type Reader func() (Usage, error)

// Tracker receives the samples.
type Tracker interface {
	TrackAll(m stats.Metric, value float64)
}

// ReadProcess reads resident set size from the OS and heap figures from
// the Go runtime.
func ReadProcess() (Usage, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return Usage{}, fmt.Errorf("opening self process: %w", err)
	}
	info, err := proc.MemoryInfo()
	if err != nil {
		return Usage{}, fmt.Errorf("reading memory info: %w", err)
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	return Usage{
		RSS:       info.RSS,
		HeapTotal: ms.HeapSys,
		HeapUsed:  ms.HeapAlloc,
	}, nil
}

// Sampler reports memory usage every interval until stopped.
type Sampler struct {
	tracker  Tracker
	interval time.Duration
	read     Reader
	logger   *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Sampler.
type Option func(*Sampler)

// WithReader replaces ReadProcess.
func WithReader(r Reader) Option {
	return func(s *Sampler) {
		s.read = r
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Sampler) {
		s.logger = l
	}
}

// New creates a stopped sampler.
func New(t Tracker, interval time.Duration, opts ...Option) *Sampler {
	s := &Sampler{
		tracker:  t,
		interval: interval,
		read:     ReadProcess,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sample takes one snapshot and reports it.
func (s *Sampler) Sample() error {
	u, err := s.read()
	if err != nil {
		return err
	}
	s.tracker.TrackAll(stats.MetricProcessMemory, float64(u.RSS)/1024)
	s.tracker.TrackAll(stats.MetricHeapTotal, float64(u.HeapTotal)/1024)
	s.tracker.TrackAll(stats.MetricHeapUsed, float64(u.HeapUsed)/1024)
	return nil
}

// Start begins sampling in the background. It is a no-op when the sampler
// is already running or the interval is not positive.
func (s *Sampler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil || s.interval <= 0 {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(ctx, s.done)
}

// Stop halts sampling and waits for the background loop to exit.
func (s *Sampler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether the background loop is active.
func (s *Sampler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

func (s *Sampler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Sample(); err != nil {
				s.logger.Debug("memory sample failed", zap.Error(err))
			}
		}
	}
}
