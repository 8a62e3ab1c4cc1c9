// Package pipeline runs a stored contract through text extraction, field
// parsing and scoring, persisting status and progress along the way.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/contracts-tracker/constants"
	"github.com/joseph-ayodele/contracts-tracker/internal/common"
	"github.com/joseph-ayodele/contracts-tracker/internal/extract"
	"github.com/joseph-ayodele/contracts-tracker/internal/repository"
	"github.com/joseph-ayodele/contracts-tracker/internal/scoring"
)

// Processor coordinates text extraction, parsing and scoring.
type Processor struct {
	logger    *slog.Logger
	repo      repository.ContractRepository
	extractor extract.TextExtractor
	parser    RecordParser
	scorer    *scoring.Scorer
	validate  func(path string) error
	metrics   *Metrics
}

type Option func(*Processor)

// WithValidator checks the stored file before extraction (see extract.Validate).
func WithValidator(fn func(path string) error) Option {
	return func(p *Processor) { p.validate = fn }
}

func WithMetrics(m *Metrics) Option {
	return func(p *Processor) { p.metrics = m }
}

func WithScorer(s *scoring.Scorer) Option {
	return func(p *Processor) {
		if s != nil {
			p.scorer = s
		}
	}
}

func NewProcessor(repo repository.ContractRepository, extractor extract.TextExtractor, parser RecordParser, logger *slog.Logger, opts ...Option) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Processor{
		logger:    logger,
		repo:      repo,
		extractor: extractor,
		parser:    parser,
		scorer:    scoring.NewScorer(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// ProcessContract moves contract id from pending (or a terminal status, for
// reprocessing) through processing to completed or failed. On failure the
// contract is marked failed with the error message and the error is returned.
func (p *Processor) ProcessContract(ctx context.Context, id uuid.UUID) (scoring.Report, error) {
	start := time.Now()
	log := p.logger.With("contract_id", id)
	log = log.With(common.LogAttrs(ctx)...)

	if err := p.repo.MarkProcessing(ctx, id); err != nil {
		// Not ours to fail: unknown contract or another worker owns it.
		log.Error("pipeline.start.failed", "error", err)
		return scoring.Report{}, fmt.Errorf("start processing: %w", err)
	}
	c, err := p.repo.GetByID(ctx, id)
	if err != nil {
		return scoring.Report{}, p.fail(ctx, log, id, "load", err)
	}
	if p.metrics != nil {
		p.metrics.InFlight.Inc()
		defer p.metrics.InFlight.Dec()
	}
	log.Info("pipeline.start", "filename", c.Filename)

	// 1) text extraction (progress 40)
	text, err := p.runExtract(ctx, c)
	if err != nil {
		return scoring.Report{}, p.fail(ctx, log, id, StageExtract, err)
	}

	// 2) field parsing (progress 70)
	parsed, err := p.runParse(ctx, c, text.Text)
	if err != nil {
		return scoring.Report{}, p.fail(ctx, log, id, StageParse, err)
	}

	// 3) scoring (progress 90), exactly once per parsed record
	scoreStart := time.Now()
	report := p.scorer.Score(scoring.RecordFromMap(parsed.Record))
	p.metrics.observeStage(StageScore, scoreStart, nil)
	if err := p.repo.UpdateProgress(ctx, id, constants.ProgressScored); err != nil {
		log.Warn("pipeline.progress.failed", "error", err)
	}
	log.Info("pipeline.score.ok",
		"overall_score", report.OverallScore,
		"missing_fields", len(report.MissingFields),
	)

	// 4) persist (progress 100)
	persistStart := time.Now()
	err = p.repo.Complete(ctx, id, parsed.Record, report)
	p.metrics.observeStage(StagePersist, persistStart, err)
	if err != nil {
		return report, p.fail(ctx, log, id, StagePersist, err)
	}

	if p.metrics != nil {
		p.metrics.Processed.WithLabelValues("completed").Inc()
		p.metrics.OverallScore.Observe(report.OverallScore)
	}
	log.Info("pipeline.completed",
		"overall_score", report.OverallScore,
		"method", parsed.Method,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return report, nil
}

// fail records err on the contract and returns it wrapped with the stage.
func (p *Processor) fail(ctx context.Context, log *slog.Logger, id uuid.UUID, stage string, err error) error {
	msg := failureMessage(err)
	// Persist the failure even when ctx has already expired.
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if ferr := p.repo.Fail(fctx, id, msg); ferr != nil {
		log.Error("pipeline.fail.persist_failed", "stage", stage, "error", ferr)
	}
	if p.metrics != nil {
		p.metrics.Processed.WithLabelValues("failed").Inc()
	}
	log.Error("pipeline."+stage+".failed", "error", err)
	return fmt.Errorf("%s: %w", stage, err)
}

func failureMessage(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "processing timed out: " + err.Error()
	case errors.Is(err, context.Canceled):
		return "processing canceled"
	default:
		return err.Error()
	}
}
