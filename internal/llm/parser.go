package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/contracts-tracker/internal/common"
)

// How a record was produced.
const (
	MethodLLM      = "llm"
	MethodFallback = "fallback"
)

type ParseResult struct {
	Record  map[string]any
	RawJSON []byte // model content the record was decoded from; nil for fallback
	Model   string
	Method  string
	Dropped []string
}

// Parser turns contract text into a sanitized extraction record.
type Parser struct {
	extractor FieldExtractor
	logger    *slog.Logger
	fallback  bool
}

type ParserOption func(*Parser)

// WithoutFallback makes undecodable model output an error instead of
// switching to regex extraction.
func WithoutFallback() ParserOption {
	return func(p *Parser) { p.fallback = false }
}

// NewParser builds a Parser. A nil extractor means every parse uses the regex
// fallback.
func NewParser(extractor FieldExtractor, logger *slog.Logger, opts ...ParserOption) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Parser{extractor: extractor, logger: logger, fallback: true}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Parse asks the extractor for a record. Transport errors are returned as is;
// output that holds no JSON object falls back to FallbackExtraction.
func (p *Parser) Parse(ctx context.Context, req ExtractRequest) (ParseResult, error) {
	start := time.Now()
	if p.extractor == nil {
		return p.fallbackResult(req, "no extractor configured"), nil
	}

	res, err := p.extractor.ExtractRecord(ctx, req)
	if err != nil {
		p.logger.Error("llm.parse.extract_failed", "contract_id", req.ContractID, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return ParseResult{}, fmt.Errorf("llm extract: %w", err)
	}

	doc, err := DecodeLenient(res.Content)
	if err != nil {
		if !p.fallback || !errors.Is(err, ErrNoJSON) {
			return ParseResult{}, fmt.Errorf("%w: %v", common.ErrValidation, err)
		}
		p.logger.Warn("llm.parse.undecodable", "contract_id", req.ContractID, "model", res.Model,
			"content_len", len(res.Content))
		out := p.fallbackResult(req, "undecodable model output")
		out.Model = res.Model
		return out, nil
	}

	record, dropped := NormalizeAndSanitize(doc, p.logger)
	if err := ValidateRecord(record); err != nil {
		p.logger.Error("llm.parse.schema_validation_failed", "contract_id", req.ContractID, "error", err)
		return ParseResult{}, fmt.Errorf("%w: %v", common.ErrValidation, err)
	}

	p.logger.Info("llm.parse.ok",
		"contract_id", req.ContractID,
		"model", res.Model,
		"dropped", len(dropped),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return ParseResult{
		Record:  record,
		RawJSON: []byte(res.Content),
		Model:   res.Model,
		Method:  MethodLLM,
		Dropped: dropped,
	}, nil
}

func (p *Parser) fallbackResult(req ExtractRequest, reason string) ParseResult {
	record, dropped := NormalizeAndSanitize(FallbackExtraction(req.Text), p.logger)
	p.logger.Warn("llm.parse.fallback", "contract_id", req.ContractID, "reason", reason)
	return ParseResult{Record: record, Method: MethodFallback, Dropped: dropped}
}
