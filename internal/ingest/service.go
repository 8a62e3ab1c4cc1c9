package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/contracts-tracker/constants"
	"github.com/joseph-ayodele/contracts-tracker/internal/async"
	"github.com/joseph-ayodele/contracts-tracker/internal/common"
	"github.com/joseph-ayodele/contracts-tracker/internal/entity"
	"github.com/joseph-ayodele/contracts-tracker/internal/repository"
	"github.com/joseph-ayodele/contracts-tracker/internal/storage"
)

// maxFilenameLen bounds the stored original filename.
const maxFilenameLen = 255

// Service stores files, upserts contracts by content hash and queues them.
type Service struct {
	store  *storage.Local
	repo   repository.ContractRepository
	queue  Enqueuer
	logger *slog.Logger
}

// NewService builds a Service. A nil queue stores contracts without
// scheduling them.
func NewService(store *storage.Local, repo repository.ContractRepository, queue Enqueuer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, repo: repo, queue: queue, logger: logger}
}

var _ Ingestor = (*Service)(nil)

func (s *Service) Upload(ctx context.Context, filename string, r io.Reader) (Result, error) {
	name := filepath.Base(strings.TrimSpace(filename))
	if name == "." || name == string(filepath.Separator) {
		name = ""
	}
	if err := common.NewValidator().
		Field("filename", name, common.Required, common.MaxLength(maxFilenameLen)).
		Error(); err != nil {
		return Result{}, err
	}
	ext := constants.NormalizeExt(filepath.Ext(name))
	if !constants.IsAllowedExt(ext) {
		return Result{}, fmt.Errorf("%w: only PDF files are supported", common.ErrUnsupportedFile)
	}

	stored, err := s.store.Save(ctx, r, ext)
	if err != nil {
		s.logger.Warn("ingest.store.failed", "filename", name, "error", err)
		return Result{}, err
	}

	row, dedup, err := s.repo.UpsertByHash(ctx, &entity.Contract{
		Filename:    name,
		FilePath:    stored.Path,
		FileSize:    stored.Size,
		ContentHash: stored.HashHex,
	})
	if err != nil {
		if !stored.Existed {
			_ = s.store.Remove(stored.Path)
		}
		return Result{}, fmt.Errorf("upsert contract: %w", err)
	}

	out := Result{
		ContractID:   row.ID,
		Filename:     row.Filename,
		SourcePath:   row.FilePath,
		HashHex:      stored.HashHex,
		Deduplicated: dedup,
		Status:       row.Status,
	}

	// New contracts are queued; a duplicate is requeued only when its last run failed.
	if !dedup || row.Status == constants.StatusFailed {
		if err := s.schedule(ctx, &out); err != nil {
			return out, err
		}
	}
	s.logger.Info("ingest.ok",
		"contract_id", out.ContractID,
		"filename", name,
		"bytes", stored.Size,
		"deduplicated", dedup,
		"queued", out.Queued,
	)
	return out, nil
}

func (s *Service) schedule(ctx context.Context, out *Result) error {
	if s.queue == nil {
		return nil
	}
	job := async.Job{
		ContractID:  out.ContractID,
		SubmittedAt: time.Now().UTC(),
		RequestID:   common.RequestIDFromContext(ctx),
	}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		msg := "could not queue contract for processing: " + err.Error()
		if ferr := s.repo.Fail(context.WithoutCancel(ctx), out.ContractID, msg); ferr != nil {
			s.logger.Error("ingest.fail.persist_failed", "contract_id", out.ContractID, "error", ferr)
		}
		out.Status = constants.StatusFailed
		return fmt.Errorf("enqueue: %w", err)
	}
	out.Queued = true
	return nil
}

func (s *Service) IngestPath(ctx context.Context, path string) (Result, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Result{}, err
	}
	if !constants.IsAllowedExt(filepath.Ext(abs)) {
		return Result{}, fmt.Errorf("%w: %s", common.ErrUnsupportedFile, filepath.Base(abs))
	}
	f, err := os.Open(abs)
	if err != nil {
		s.logger.Error("ingest.open.failed", "path", abs, "error", err)
		return Result{}, err
	}
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn("close file error", "path", abs, "error", err)
		}
	}()
	return s.Upload(ctx, filepath.Base(abs), f)
}

// IngestDirectory walks root, skips hidden entries if requested, and ingests
// every PDF. Per-file failures are reported in the results, not returned.
func (s *Service) IngestDirectory(ctx context.Context, root string, skipHidden bool) ([]Result, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, fmt.Errorf("%w: root path is required", common.ErrInvalidInput)
	}

	var results []Result
	var stats DirStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		stats.Scanned++
		if walkErr != nil {
			results = append(results, Result{SourcePath: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if skipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !AllowedExt(filepath.Ext(path)) {
			return nil
		}
		stats.Matched++

		r, err := s.IngestPath(ctx, path)
		if err != nil {
			results = append(results, Result{SourcePath: path, Filename: filepath.Base(path), Err: err.Error()})
			stats.Failed++
			return nil
		}
		results = append(results, r)
		stats.Succeeded++
		if r.Deduplicated {
			stats.Deduplicated++
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return results, stats, err
		}
		return results, stats, fmt.Errorf("walk: %w", err)
	}
	return results, stats, nil
}
