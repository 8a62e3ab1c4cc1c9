// Package ingest brings contract PDFs into the system: it stores the file,
// creates (or reuses) the contract row and queues it for processing.
package ingest

import (
	"context"
	"io"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/contracts-tracker/constants"
	"github.com/joseph-ayodele/contracts-tracker/internal/async"
)

// Result is the per-file ingest outcome.
type Result struct {
	ContractID   uuid.UUID                `json:"contract_id"`
	Filename     string                   `json:"filename"`
	SourcePath   string                   `json:"source_path,omitempty"`
	HashHex      string                   `json:"content_hash"`
	Deduplicated bool                     `json:"deduplicated"`
	Queued       bool                     `json:"queued"`
	Status       constants.ContractStatus `json:"status"`
	Err          string                   `json:"error,omitempty"`
}

// DirStats summarizes a directory ingest.
type DirStats struct {
	Scanned      uint32 `json:"scanned"`
	Matched      uint32 `json:"matched"`
	Succeeded    uint32 `json:"succeeded"`
	Deduplicated uint32 `json:"deduplicated"`
	Failed       uint32 `json:"failed"`
}

// Enqueuer hands a contract to the workers.
type Enqueuer interface {
	Enqueue(ctx context.Context, job async.Job) error
}

// Ingestor is the behavior the transports depend on.
type Ingestor interface {
	// Upload stores an uploaded stream named filename.
	Upload(ctx context.Context, filename string, r io.Reader) (Result, error)
	// IngestPath ingests a single file from disk.
	IngestPath(ctx context.Context, path string) (Result, error)
	// IngestDirectory ingests all PDFs under root.
	IngestDirectory(ctx context.Context, root string, skipHidden bool) ([]Result, DirStats, error)
}
