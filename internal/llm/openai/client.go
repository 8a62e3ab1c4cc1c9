package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/contracts-tracker/internal/llm"
)

// ExtractRecord implements llm.FieldExtractor using chat/completions in JSON mode.
func (c *Client) ExtractRecord(ctx context.Context, req llm.ExtractRequest) (llm.ExtractResult, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.log.Info("llm.extract.start",
		"req_id", rid,
		"contract_id", req.ContractID,
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"text_len", len(req.Text),
	)

	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"max_tokens":      c.cfg.MaxTokens,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": llm.SystemPrompt},
			{"role": "user", "content": llm.BuildExtractionPrompt(req.Text, c.cfg.MaxPromptChars)},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
	raw, err := c.withRetry(ctx, func() ([]byte, error) {
		raw, _, err := llm.SendJSON(ctx, c.httpClient, endpoint, body, headers, c.log)
		return raw, err
	})
	if err != nil {
		c.log.Error("llm.extract.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.ExtractResult{}, fmt.Errorf("openai: %w", err)
	}

	var cc struct {
		Model   string `json:"model"`
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.log.Error("llm.extract.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.ExtractResult{Raw: raw}, fmt.Errorf("decode openai response: %w", err)
	}
	if len(cc.Choices) == 0 {
		c.log.Error("llm.extract.no_choices",
			"req_id", rid,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.ExtractResult{Raw: raw}, fmt.Errorf("no choices in openai response")
	}
	model := cc.Model
	if model == "" {
		model = c.cfg.Model
	}
	if cc.Choices[0].FinishReason == "length" {
		c.log.Warn("llm.extract.truncated", "req_id", rid, "max_tokens", c.cfg.MaxTokens)
	}

	c.log.Info("llm.extract.ok",
		"req_id", rid,
		"contract_id", req.ContractID,
		"model", model,
		"content_len", len(cc.Choices[0].Message.Content),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return llm.ExtractResult{
		Content: strings.TrimSpace(cc.Choices[0].Message.Content),
		Model:   model,
		Raw:     raw,
	}, nil
}
