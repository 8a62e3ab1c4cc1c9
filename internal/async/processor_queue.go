package async

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/contracts-tracker/internal/common"
)

// ProcessorQueue is an in-memory worker pool. Jobs are not retried.
type ProcessorQueue struct {
	proc    Processor
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch      chan Job
	done    chan struct{}
	wg      sync.WaitGroup
	senders sync.WaitGroup
	once    sync.Once

	mu     sync.RWMutex
	closed bool
}

type Option func(*options)

type options struct {
	workers int
	size    int
	timeout time.Duration
}

func defaultOptions() options {
	return options{workers: 2, size: 100, timeout: 5 * time.Minute}
}

func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.size = n
		}
	}
}

// WithProcessTimeout bounds each job; the default is five minutes.
func WithProcessTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

func NewProcessorQueue(proc Processor, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	q := &ProcessorQueue{
		proc:    proc,
		logger:  logger,
		workers: o.workers,
		timeout: o.timeout,
		ch:      make(chan Job, o.size),
		done:    make(chan struct{}),
	}
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("queue.worker.started", "worker_id", workerID)
				for job := range q.ch {
					runJob(q.proc, q.logger, q.timeout, workerID, job)
				}
				q.logger.Info("queue.worker.stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

// Enqueue blocks while the buffer is full, until ctx is done or the queue
// shuts down.
func (q *ProcessorQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		q.logger.Warn("queue.enqueue.closed", "contract_id", job.ContractID)
		return ErrQueueClosed
	}
	q.senders.Add(1)
	q.mu.RUnlock()
	defer q.senders.Done()

	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now().UTC()
	}
	select {
	case q.ch <- job:
	default:
		q.logger.Warn("queue full, applying backpressure", "contract_id", job.ContractID)
		select {
		case q.ch <- job:
		case <-q.done:
			q.logger.Warn("queue.enqueue.closed", "contract_id", job.ContractID)
			return ErrQueueClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	q.logger.Info("queue.enqueue.ok", "contract_id", job.ContractID)
	return nil
}

// Shutdown stops accepting jobs and waits for queued ones to drain, or for
// ctx to be done. Enqueuers blocked on a full buffer return ErrQueueClosed.
func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.done)
	q.mu.Unlock()

	// No sender may touch ch once it is closed.
	q.senders.Wait()
	close(q.ch)

	waitDrained(ctx, &q.wg, q.logger)
}

func runJob(proc Processor, logger *slog.Logger, timeout time.Duration, workerID int, job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if job.RequestID != "" {
		ctx = common.WithRequestID(ctx, job.RequestID)
	}
	ctx = common.WithContractID(ctx, job.ContractID.String())

	defer func() {
		if r := recover(); r != nil {
			logger.Error("queue.job.panic", "worker_id", workerID, "contract_id", job.ContractID, "panic", r)
		}
	}()
	report, err := proc.ProcessContract(ctx, job.ContractID)
	if err != nil {
		logger.Error("queue.job.failed", "worker_id", workerID, "contract_id", job.ContractID, "error", err)
		return
	}
	logger.Info("queue.job.ok",
		"worker_id", workerID,
		"contract_id", job.ContractID,
		"overall_score", report.OverallScore,
		"queued_ms", time.Since(job.SubmittedAt).Milliseconds(),
	)
}

func waitDrained(ctx context.Context, wg *sync.WaitGroup, logger *slog.Logger) {
	done := make(chan struct{})
	go func() { defer close(done); wg.Wait() }()

	select {
	case <-ctx.Done():
		logger.Warn("shutdown interrupted by context")
	case <-done:
		logger.Info("queue drained, shutdown complete")
	}
}
