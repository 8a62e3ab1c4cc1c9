package async

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisQueue keeps jobs in a Redis list (LPUSH / BRPOP), so queued work
// survives a restart of the daemon. Jobs are not retried.
type RedisQueue struct {
	client  redis.Cmdable
	key     string
	proc    Processor
	logger  *slog.Logger
	workers int
	timeout time.Duration
	poll    time.Duration

	stop   context.CancelFunc
	wg     sync.WaitGroup
	closed atomic.Bool
}

// NewRedisClient parses a redis:// URL and checks the server is reachable.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// NewRedisQueue starts workers popping jobs from key. Queue size options are
// ignored; the list is unbounded.
func NewRedisQueue(client redis.Cmdable, key string, proc Processor, logger *slog.Logger, opts ...Option) *RedisQueue {
	if logger == nil {
		logger = slog.Default()
	}
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &RedisQueue{
		client:  client,
		key:     key,
		proc:    proc,
		logger:  logger,
		workers: o.workers,
		timeout: o.timeout,
		poll:    time.Second,
		stop:    cancel,
	}
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.work(ctx, i+1)
	}
	return q
}

func (q *RedisQueue) Enqueue(ctx context.Context, job Job) error {
	if q.closed.Load() {
		q.logger.Warn("queue.enqueue.closed", "contract_id", job.ContractID)
		return ErrQueueClosed
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		q.logger.Error("queue.enqueue.failed", "contract_id", job.ContractID, "error", err)
		return fmt.Errorf("enqueue: %w", err)
	}
	q.logger.Info("queue.enqueue.ok", "contract_id", job.ContractID, "backend", "redis")
	return nil
}

// Len reports how many jobs wait in Redis.
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}

// Shutdown stops the workers after their current job. Jobs still in the
// list stay there for the next start.
func (q *RedisQueue) Shutdown(ctx context.Context) {
	if !q.closed.CompareAndSwap(false, true) {
		return
	}
	q.stop()
	waitDrained(ctx, &q.wg, q.logger)
}

func (q *RedisQueue) work(ctx context.Context, workerID int) {
	defer q.wg.Done()
	q.logger.Info("queue.worker.started", "worker_id", workerID, "backend", "redis")
	defer q.logger.Info("queue.worker.stopped", "worker_id", workerID)

	for ctx.Err() == nil {
		res, err := q.client.BRPop(ctx, q.poll, q.key).Result()
		switch {
		case errors.Is(err, redis.Nil):
			continue
		case ctx.Err() != nil:
			return
		case err != nil:
			q.logger.Error("queue.pop.failed", "worker_id", workerID, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(q.poll):
			}
			continue
		}
		if len(res) != 2 {
			continue
		}
		var job Job
		if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
			q.logger.Error("queue.job.undecodable", "worker_id", workerID, "error", err)
			continue
		}
		runJob(q.proc, q.logger, q.timeout, workerID, job)
	}
}
