package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestDispatcherRunsJobs(t *testing.T) {
	d := NewDispatcher(&Config{WorkerCount: 2, QueueSize: 8}, nil)
	d.Start(context.Background())

	var ran atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		ok := d.Submit("count", func(context.Context) error {
			defer wg.Done()
			ran.Add(1)
			return nil
		})
		assert.True(t, ok)
	}
	wg.Wait()
	d.Stop()

	assert.Equal(t, int32(5), ran.Load())
	h := d.Health()
	assert.Equal(t, uint64(5), h.Processed)
	assert.True(t, h.Stopped)
}

func TestDispatcherCountsFailuresAndPanics(t *testing.T) {
	d := NewDispatcher(&Config{WorkerCount: 1, QueueSize: 4}, nil)
	d.Start(context.Background())

	d.Submit("fails", func(context.Context) error { return errors.New("boom") })
	d.Submit("panics", func(context.Context) error { panic("kaboom") })
	d.Stop()

	h := d.Health()
	assert.Equal(t, uint64(2), h.Failed)
	assert.Zero(t, h.Processed)
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	d := NewDispatcher(&Config{WorkerCount: 1, QueueSize: 1}, nil)
	d.Start(context.Background())

	release := make(chan struct{})
	started := make(chan struct{})
	assert.True(t, d.Submit("block", func(context.Context) error {
		close(started)
		<-release
		return nil
	}))
	<-started

	assert.True(t, d.Submit("queued", func(context.Context) error { return nil }))
	assert.False(t, d.Submit("dropped", func(context.Context) error { return nil }))

	close(release)
	d.Stop()
	assert.Equal(t, uint64(1), d.Health().Dropped)
	assert.Equal(t, uint64(2), d.Health().Processed)
}

func TestDispatcherRejectsAfterStop(t *testing.T) {
	d := NewDispatcher(nil, nil)
	d.Start(context.Background())
	d.Stop()
	d.Stop()

	assert.False(t, d.Submit("late", func(context.Context) error { return nil }))
}

func TestDispatcherJobTimeout(t *testing.T) {
	d := NewDispatcher(&Config{WorkerCount: 1, QueueSize: 1, JobTimeout: 20 * time.Millisecond}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	d.Start(ctx)
	cancel()

	done := make(chan error, 1)
	d.Submit("slow", func(ctx context.Context) error {
		<-ctx.Done()
		done <- ctx.Err()
		return ctx.Err()
	})
	assert.ErrorIs(t, <-done, context.DeadlineExceeded, "parent cancellation does not cut jobs short")
	d.Stop()
}

func TestDispatcherStopWithoutStart(t *testing.T) {
	d := NewDispatcher(&Config{WorkerCount: 1, QueueSize: 2}, nil)
	d.Submit("never", func(context.Context) error { return nil })
	d.Stop()
	assert.Equal(t, uint64(1), d.Health().Dropped)
}
