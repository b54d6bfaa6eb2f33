// Package queue runs best-effort background jobs (usage counters,
// notifications) on a bounded worker pool so they never block a reply.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/codeready-toolchain/concierge/pkg/metrics"
)

// Config controls the dispatcher pool.
type Config struct {
	// WorkerCount is the number of worker goroutines.
	WorkerCount int `yaml:"worker_count"`
	// QueueSize bounds the number of pending jobs; Submit drops beyond it.
	QueueSize int `yaml:"queue_size"`
	// JobTimeout caps a single job.
	JobTimeout time.Duration `yaml:"job_timeout"`
	// GracefulShutdownTimeout bounds how long Stop may drain pending jobs.
	GracefulShutdownTimeout time.Duration `yaml:"graceful_shutdown_timeout"`
}

// DefaultConfig returns the built-in dispatcher defaults.
func DefaultConfig() *Config {
	return &Config{
		WorkerCount:             4,
		QueueSize:               256,
		JobTimeout:              10 * time.Second,
		GracefulShutdownTimeout: 15 * time.Second,
	}
}

type job struct {
	name string
	run  func(ctx context.Context) error
}

// Health is a snapshot of dispatcher activity.
type Health struct {
	Workers    int    `json:"workers"`
	QueueDepth int    `json:"queue_depth"`
	Processed  uint64 `json:"processed"`
	Failed     uint64 `json:"failed"`
	Dropped    uint64 `json:"dropped"`
	Stopped    bool   `json:"stopped"`
}

// Dispatcher is a fixed pool of workers draining a bounded job queue.
type Dispatcher struct {
	config  *Config
	metrics *metrics.Metrics
	jobs    chan job
	wg      sync.WaitGroup

	mu      sync.RWMutex
	started bool
	stopped bool

	processed atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64
}

// NewDispatcher creates a dispatcher. m may be nil.
func NewDispatcher(cfg *Config, m *metrics.Metrics) *Dispatcher {
	def := DefaultConfig()
	if cfg == nil {
		cfg = def
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = def.WorkerCount
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = def.JobTimeout
	}
	return &Dispatcher{
		config:  cfg,
		metrics: m,
		jobs:    make(chan job, cfg.QueueSize),
	}
}

// Start spawns the workers. Subsequent calls are no-ops.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.stopped {
		return
	}
	d.started = true

	for i := 0; i < d.config.WorkerCount; i++ {
		workerID := fmt.Sprintf("dispatch-worker-%d", i)
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.work(ctx, workerID)
		}()
	}
	slog.Info("Dispatcher started", "worker_count", d.config.WorkerCount, "queue_size", d.config.QueueSize)
}

// Submit enqueues fn without blocking. It returns false when the job was
// dropped because the queue is full or the dispatcher is stopped.
func (d *Dispatcher) Submit(name string, fn func(ctx context.Context) error) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		d.drop(name, "stopped")
		return false
	}
	select {
	case d.jobs <- job{name: name, run: fn}:
		return true
	default:
		d.drop(name, "queue full")
		return false
	}
}

func (d *Dispatcher) drop(name, why string) {
	d.dropped.Add(1)
	d.metrics.DispatchDropped()
	slog.Warn("Dropping background job", "job", name, "reason", why)
}

// Stop refuses new jobs, lets the workers drain the queue and waits for them.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.jobs)
	started := d.started
	d.mu.Unlock()

	if !started {
		// Nobody will drain; account for what was queued.
		for j := range d.jobs {
			d.drop(j.name, "never started")
		}
		return
	}
	slog.Info("Stopping dispatcher gracefully", "pending", len(d.jobs))
	d.wg.Wait()
	slog.Info("Dispatcher stopped")
}

// Health returns a snapshot of dispatcher counters.
func (d *Dispatcher) Health() Health {
	d.mu.RLock()
	stopped := d.stopped
	d.mu.RUnlock()
	return Health{
		Workers:    d.config.WorkerCount,
		QueueDepth: len(d.jobs),
		Processed:  d.processed.Load(),
		Failed:     d.failed.Load(),
		Dropped:    d.dropped.Load(),
		Stopped:    stopped,
	}
}

func (d *Dispatcher) work(ctx context.Context, workerID string) {
	for j := range d.jobs {
		d.run(ctx, workerID, j)
	}
}

func (d *Dispatcher) run(ctx context.Context, workerID string, j job) {
	// Jobs outlive request cancellation but not the job timeout.
	jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.config.JobTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			d.failed.Add(1)
			slog.Error("Background job panicked", "worker_id", workerID, "job", j.name, "panic", r)
		}
	}()

	if err := j.run(jobCtx); err != nil {
		d.failed.Add(1)
		slog.Warn("Background job failed", "worker_id", workerID, "job", j.name, "error", err)
		return
	}
	d.processed.Add(1)
}
