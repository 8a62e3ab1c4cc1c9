package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/joseph-ayodele/contracts-tracker/internal/entity"
	"github.com/joseph-ayodele/contracts-tracker/internal/extract"
)

// runExtract validates the stored PDF, extracts its text and persists it.
func (p *Processor) runExtract(ctx context.Context, c *entity.Contract) (extract.Result, error) {
	if p.validate != nil {
		start := time.Now()
		err := p.validate(c.FilePath)
		p.metrics.observeStage(StageValidate, start, err)
		if err != nil {
			return extract.Result{}, err
		}
	}

	start := time.Now()
	res, err := p.extractor.Extract(ctx, c.FilePath)
	p.metrics.observeStage(StageExtract, start, err)
	if err != nil {
		return res, err
	}
	p.logger.Info("pipeline.extract.ok",
		"contract_id", c.ID,
		"method", res.Method,
		"pages", res.Pages,
		"chars", len([]rune(res.Text)),
		"warnings", len(res.Warnings),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if err := p.repo.SaveText(ctx, c.ID, res.Text, res.Method, res.Pages); err != nil {
		return res, fmt.Errorf("save text: %w", err)
	}
	return res, nil
}
