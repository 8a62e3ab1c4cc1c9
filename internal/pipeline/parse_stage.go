package pipeline

import (
	"context"
	"time"

	"github.com/joseph-ayodele/contracts-tracker/constants"
	"github.com/joseph-ayodele/contracts-tracker/internal/entity"
	"github.com/joseph-ayodele/contracts-tracker/internal/llm"
)

// RecordParser turns contract text into an extraction record.
type RecordParser interface {
	Parse(ctx context.Context, req llm.ExtractRequest) (llm.ParseResult, error)
}

// runParse sends the extracted text to the parser and advances progress.
func (p *Processor) runParse(ctx context.Context, c *entity.Contract, text string) (llm.ParseResult, error) {
	start := time.Now()
	res, err := p.parser.Parse(ctx, llm.ExtractRequest{
		ContractID:   c.ID.String(),
		FilenameHint: c.Filename,
		Text:         text,
	})
	p.metrics.observeStage(StageParse, start, err)
	if err != nil {
		return res, err
	}
	if p.metrics != nil {
		p.metrics.ParseMethod.WithLabelValues(res.Method).Inc()
	}
	if len(res.Dropped) > 0 {
		p.logger.Warn("pipeline.parse.dropped", "contract_id", c.ID, "dropped", res.Dropped)
	}
	p.logger.Info("pipeline.parse.ok",
		"contract_id", c.ID,
		"method", res.Method,
		"model", res.Model,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if err := p.repo.UpdateProgress(ctx, c.ID, constants.ProgressParsed); err != nil {
		p.logger.Warn("pipeline.progress.failed", "contract_id", c.ID, "error", err)
	}
	return res, nil
}
