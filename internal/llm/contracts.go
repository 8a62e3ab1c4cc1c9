package llm

import "context"

// ExtractRequest carries the contract text to a model.
type ExtractRequest struct {
	ContractID   string
	FilenameHint string
	Text         string
}

// ExtractResult is the model's answer before any decoding.
type ExtractResult struct {
	Content string // message content; expected to be a JSON object
	Model   string
	Raw     []byte // full provider response
}

// FieldExtractor is Stage 2: text -> JSON document (LLM).
type FieldExtractor interface {
	ExtractRecord(ctx context.Context, req ExtractRequest) (ExtractResult, error)
}
