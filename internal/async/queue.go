package async

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/contracts-tracker/internal/scoring"
)

// ErrQueueClosed is returned by Enqueue after Shutdown.
var ErrQueueClosed = errors.New("queue is shutting down")

// Job asks a worker to process one contract.
type Job struct {
	ContractID  uuid.UUID `json:"contract_id"`
	SubmittedAt time.Time `json:"submitted_at"`
	RequestID   string    `json:"request_id,omitempty"`
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}

// Processor is what workers run for each job.
type Processor interface {
	ProcessContract(ctx context.Context, id uuid.UUID) (scoring.Report, error)
}
