package async

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/contracts-tracker/internal/common"
	"github.com/joseph-ayodele/contracts-tracker/internal/scoring"
)

type recordingProcessor struct {
	mu       sync.Mutex
	seen     []uuid.UUID
	ctxIDs   []string
	err      error
	block    chan struct{}
	panicOn  uuid.UUID
	finished chan uuid.UUID
}

func newRecorder() *recordingProcessor {
	return &recordingProcessor{finished: make(chan uuid.UUID, 16)}
}

func (p *recordingProcessor) ProcessContract(ctx context.Context, id uuid.UUID) (scoring.Report, error) {
	defer func() { p.finished <- id }()
	if p.block != nil {
		<-p.block
	}
	if id == p.panicOn {
		panic("boom")
	}
	p.mu.Lock()
	p.seen = append(p.seen, id)
	p.ctxIDs = append(p.ctxIDs, common.ContractIDFromContext(ctx))
	p.mu.Unlock()
	return scoring.Report{OverallScore: 42}, p.err
}

func (p *recordingProcessor) waitFor(t *testing.T, n int) []uuid.UUID {
	t.Helper()
	var got []uuid.UUID
	timeout := time.After(5 * time.Second)
	for len(got) < n {
		select {
		case id := <-p.finished:
			got = append(got, id)
		case <-timeout:
			t.Fatalf("timed out waiting for %d jobs, got %d", n, len(got))
		}
	}
	return got
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestProcessorQueue_ProcessesJobs(t *testing.T) {
	proc := newRecorder()
	q := NewProcessorQueue(proc, discard(), WithWorkers(2), WithQueueSize(4), WithProcessTimeout(time.Second))

	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	for _, id := range ids {
		require.NoError(t, q.Enqueue(context.Background(), Job{ContractID: id}))
	}
	assert.ElementsMatch(t, ids, proc.waitFor(t, 3))

	q.Shutdown(context.Background())
	proc.mu.Lock()
	defer proc.mu.Unlock()
	for i, id := range proc.seen {
		assert.Equal(t, id.String(), proc.ctxIDs[i])
	}
}

func TestProcessorQueue_FailedJobIsNotRetried(t *testing.T) {
	proc := newRecorder()
	proc.err = errors.New("extraction failed")
	q := NewProcessorQueue(proc, discard(), WithWorkers(1))

	id := uuid.New()
	require.NoError(t, q.Enqueue(context.Background(), Job{ContractID: id}))
	proc.waitFor(t, 1)
	q.Shutdown(context.Background())

	proc.mu.Lock()
	defer proc.mu.Unlock()
	assert.Equal(t, []uuid.UUID{id}, proc.seen)
}

func TestProcessorQueue_PanicDoesNotKillWorker(t *testing.T) {
	proc := newRecorder()
	proc.panicOn = uuid.New()
	q := NewProcessorQueue(proc, discard(), WithWorkers(1))

	next := uuid.New()
	require.NoError(t, q.Enqueue(context.Background(), Job{ContractID: proc.panicOn}))
	require.NoError(t, q.Enqueue(context.Background(), Job{ContractID: next}))
	proc.waitFor(t, 2)
	q.Shutdown(context.Background())

	proc.mu.Lock()
	defer proc.mu.Unlock()
	assert.Equal(t, []uuid.UUID{next}, proc.seen)
}

func TestProcessorQueue_EnqueueAfterShutdown(t *testing.T) {
	q := NewProcessorQueue(newRecorder(), discard())
	q.Shutdown(context.Background())
	q.Shutdown(context.Background())
	require.ErrorIs(t, q.Enqueue(context.Background(), Job{ContractID: uuid.New()}), ErrQueueClosed)
}

func TestProcessorQueue_BackpressureHonorsContext(t *testing.T) {
	proc := newRecorder()
	proc.block = make(chan struct{})
	q := NewProcessorQueue(proc, discard(), WithWorkers(1), WithQueueSize(1))

	// One job occupies the worker, one fills the buffer.
	require.NoError(t, q.Enqueue(context.Background(), Job{ContractID: uuid.New()}))
	require.Eventually(t, func() bool { return len(q.ch) == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, q.Enqueue(context.Background(), Job{ContractID: uuid.New()}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := q.Enqueue(ctx, Job{ContractID: uuid.New()})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	close(proc.block)
	proc.waitFor(t, 2)
	q.Shutdown(context.Background())
}

func TestProcessorQueue_ShutdownReleasesBlockedEnqueue(t *testing.T) {
	proc := newRecorder()
	proc.block = make(chan struct{})
	q := NewProcessorQueue(proc, discard(), WithWorkers(1), WithQueueSize(1))

	require.NoError(t, q.Enqueue(context.Background(), Job{ContractID: uuid.New()}))
	require.Eventually(t, func() bool { return len(q.ch) == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, q.Enqueue(context.Background(), Job{ContractID: uuid.New()}))

	blocked := make(chan error, 1)
	go func() { blocked <- q.Enqueue(context.Background(), Job{ContractID: uuid.New()}) }()

	shutdown := make(chan struct{})
	go func() {
		defer close(shutdown)
		q.Shutdown(context.Background())
	}()

	select {
	case err := <-blocked:
		require.ErrorIs(t, err, ErrQueueClosed)
	case <-time.After(5 * time.Second):
		t.Fatal("enqueue stayed blocked after shutdown")
	}

	// Queued work still drains once the worker is released.
	close(proc.block)
	proc.waitFor(t, 2)
	select {
	case <-shutdown:
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown did not finish")
	}
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewRedisClient(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisQueue_ProcessesJobs(t *testing.T) {
	_, client := newRedis(t)
	proc := newRecorder()
	q := NewRedisQueue(client, "contracts:jobs", proc, discard(), WithWorkers(2))

	ids := []uuid.UUID{uuid.New(), uuid.New()}
	for _, id := range ids {
		require.NoError(t, q.Enqueue(context.Background(), Job{ContractID: id, RequestID: "req-1"}))
	}
	assert.ElementsMatch(t, ids, proc.waitFor(t, 2))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	q.Shutdown(ctx)
	require.ErrorIs(t, q.Enqueue(context.Background(), Job{ContractID: uuid.New()}), ErrQueueClosed)
}

func TestRedisQueue_JobsPersistInList(t *testing.T) {
	mr, client := newRedis(t)
	id := uuid.New()
	payload, err := json.Marshal(Job{ContractID: id, SubmittedAt: time.Now().UTC()})
	require.NoError(t, err)
	_, err = mr.Lpush("pending", string(payload))
	require.NoError(t, err)

	// A job pushed before any worker started is picked up on start.
	proc := newRecorder()
	q := NewRedisQueue(client, "pending", proc, discard(), WithWorkers(1))
	assert.Equal(t, []uuid.UUID{id}, proc.waitFor(t, 1))

	n, err := q.Len(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	q.Shutdown(ctx)
}

func TestRedisQueue_SkipsUndecodablePayload(t *testing.T) {
	mr, client := newRedis(t)
	_, err := mr.Lpush("jobs", "not json")
	require.NoError(t, err)

	proc := newRecorder()
	q := NewRedisQueue(client, "jobs", proc, discard(), WithWorkers(1))
	id := uuid.New()
	require.NoError(t, q.Enqueue(context.Background(), Job{ContractID: id}))
	assert.Equal(t, []uuid.UUID{id}, proc.waitFor(t, 1))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	q.Shutdown(ctx)
}

func TestNewRedisClient_BadURL(t *testing.T) {
	_, err := NewRedisClient(context.Background(), "not-a-url")
	require.Error(t, err)
}
