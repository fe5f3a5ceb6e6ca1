package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/discochess/dxmetrics/internal/stats"
)

type sample struct {
	metric stats.Metric
	value  float64
}

type fakeTracker struct {
	mu      sync.Mutex
	samples []sample
}

func (f *fakeTracker) TrackAll(m stats.Metric, value float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.samples = append(f.samples, sample{m, value})
}

func (f *fakeTracker) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.samples)
}

func fixedReader(u Usage) Reader {
	return func() (Usage, error) { return u, nil }
}

func TestSampler_SampleReportsKiB(t *testing.T) {
	tr := &fakeTracker{}
	s := New(tr, time.Second, WithReader(fixedReader(Usage{
		RSS:       4096 * 1024,
		HeapTotal: 2048 * 1024,
		HeapUsed:  1536,
	})))

	require.NoError(t, s.Sample())
	assert.Equal(t, []sample{
		{stats.MetricProcessMemory, 4096},
		{stats.MetricHeapTotal, 2048},
		{stats.MetricHeapUsed, 1.5},
	}, tr.samples)
}

func TestSampler_SampleError(t *testing.T) {
	tr := &fakeTracker{}
	s := New(tr, time.Second, WithReader(func() (Usage, error) {
		return Usage{}, errors.New("no procfs")
	}))

	require.Error(t, s.Sample())
	assert.Zero(t, tr.count())
}

func TestSampler_StartStop(t *testing.T) {
	tr := &fakeTracker{}
	s := New(tr, time.Millisecond, WithReader(fixedReader(Usage{RSS: 1024})))

	s.Start(context.Background())
	s.Start(context.Background())
	assert.True(t, s.Running())

	require.Eventually(t, func() bool { return tr.count() >= 6 }, time.Second, time.Millisecond)

	s.Stop()
	assert.False(t, s.Running())
	n := tr.count()
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, n, tr.count())

	s.Stop()
}

func TestSampler_NonPositiveIntervalNeverStarts(t *testing.T) {
	s := New(&fakeTracker{}, 0)
	s.Start(context.Background())
	assert.False(t, s.Running())
}

func TestReadProcess(t *testing.T) {
	u, err := ReadProcess()
	require.NoError(t, err)
	assert.NotZero(t, u.RSS)
	assert.NotZero(t, u.HeapTotal)
}
