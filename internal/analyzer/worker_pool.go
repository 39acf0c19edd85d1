package analyzer

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// WorkerPoolStats is a point-in-time snapshot of pool counters
type WorkerPoolStats struct {
	Workers       int   `json:"workers"`
	QueueSize     int   `json:"queue_size"`
	TotalJobs     int64 `json:"total_jobs"`
	CompletedJobs int64 `json:"completed_jobs"`
	DroppedJobs   int64 `json:"dropped_jobs"`
	PanickedJobs  int64 `json:"panicked_jobs"`
	ActiveWorkers int64 `json:"active_workers"`
}

// WorkerPool runs background jobs on a fixed number of goroutines
type WorkerPool struct {
	workers   int
	jobQueue  chan func()
	running   sync.WaitGroup
	startOnce sync.Once
	closeOnce sync.Once

	mu     sync.RWMutex
	closed bool

	totalJobs     atomic.Int64
	completedJobs atomic.Int64
	droppedJobs   atomic.Int64
	panickedJobs  atomic.Int64
	activeWorkers atomic.Int64
}

// NewWorkerPoolWithQueue creates a pool with an explicit queue capacity
func NewWorkerPoolWithQueue(workers, queueSize int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if queueSize < 0 {
		queueSize = 0
	}
	return &WorkerPool{
		workers:  workers,
		jobQueue: make(chan func(), queueSize),
	}
}

// Start initializes and starts all workers in the pool
func (wp *WorkerPool) Start() {
	wp.startOnce.Do(func() {
		wp.running.Add(wp.workers)
		for i := 0; i < wp.workers; i++ {
			go wp.worker()
		}
	})
}

// worker processes jobs from the job queue
func (wp *WorkerPool) worker() {
	defer wp.running.Done()
	for job := range wp.jobQueue {
		wp.run(job)
	}
}

func (wp *WorkerPool) run(job func()) {
	wp.activeWorkers.Add(1)
	defer func() {
		if r := recover(); r != nil {
			wp.panickedJobs.Add(1)
		}
		wp.activeWorkers.Add(-1)
		wp.completedJobs.Add(1)
	}()
	job()
}

// TrySubmit queues a job without blocking. A full queue or a closed pool
// drops the job and counts it.
func (wp *WorkerPool) TrySubmit(job func()) bool {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	if wp.closed {
		wp.droppedJobs.Add(1)
		return false
	}

	select {
	case wp.jobQueue <- job:
		wp.totalJobs.Add(1)
		return true
	default:
		wp.droppedJobs.Add(1)
		return false
	}
}

// GetStats returns current counters
func (wp *WorkerPool) GetStats() WorkerPoolStats {
	return WorkerPoolStats{
		Workers:       wp.workers,
		QueueSize:     len(wp.jobQueue),
		TotalJobs:     wp.totalJobs.Load(),
		CompletedJobs: wp.completedJobs.Load(),
		DroppedJobs:   wp.droppedJobs.Load(),
		PanickedJobs:  wp.panickedJobs.Load(),
		ActiveWorkers: wp.activeWorkers.Load(),
	}
}

// Close stops accepting jobs, lets queued jobs finish and waits for the
// workers to exit. It is safe to call more than once.
func (wp *WorkerPool) Close() {
	wp.closeOnce.Do(func() {
		wp.mu.Lock()
		wp.closed = true
		close(wp.jobQueue)
		wp.mu.Unlock()
		wp.running.Wait()
	})
}
