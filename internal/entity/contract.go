package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/contracts-tracker/constants"
)

// Contract represents one uploaded contract and its processing state.
type Contract struct {
	ID                  uuid.UUID                `json:"contract_id"`
	Filename            string                   `json:"filename"`
	FilePath            string                   `json:"-"`
	FileSize            int64                    `json:"file_size"`
	ContentHash         string                   `json:"content_hash"`
	Status              constants.ContractStatus `json:"status"`
	Progress            int                      `json:"progress"`
	ErrorMessage        string                   `json:"error,omitempty"`
	ExtractedText       string                   `json:"-"`
	ExtractionMethod    string                   `json:"extraction_method,omitempty"`
	PageCount           int                      `json:"page_count,omitempty"`
	ParsedData          map[string]any           `json:"parsed_data,omitempty"`
	OverallScore        *float64                 `json:"overall_score,omitempty"`
	UploadedAt          time.Time                `json:"uploaded_at"`
	ProcessingStartedAt *time.Time               `json:"processing_started_at,omitempty"`
	CompletedAt         *time.Time               `json:"completed_at,omitempty"`
	UpdatedAt           time.Time                `json:"updated_at"`
}

// ContractSummary is the list-view projection of a Contract.
type ContractSummary struct {
	ID           uuid.UUID                `json:"contract_id"`
	Filename     string                   `json:"filename"`
	Status       constants.ContractStatus `json:"status"`
	Progress     int                      `json:"progress"`
	OverallScore *float64                 `json:"overall_score"`
	UploadedAt   time.Time                `json:"uploaded_at"`
	CompletedAt  *time.Time               `json:"completed_at,omitempty"`
}

// Summary projects c for list responses.
func (c *Contract) Summary() ContractSummary {
	return ContractSummary{
		ID:           c.ID,
		Filename:     c.Filename,
		Status:       c.Status,
		Progress:     c.Progress,
		OverallScore: c.OverallScore,
		UploadedAt:   c.UploadedAt,
		CompletedAt:  c.CompletedAt,
	}
}

// StatusView is the polling payload for a contract.
type StatusView struct {
	ContractID uuid.UUID                `json:"contract_id"`
	Status     constants.ContractStatus `json:"status"`
	Progress   int                      `json:"progress"`
	Error      *string                  `json:"error"`
}

// StatusView returns the polling payload for c.
func (c *Contract) StatusView() StatusView {
	v := StatusView{ContractID: c.ID, Status: c.Status, Progress: c.Progress}
	if c.ErrorMessage != "" {
		msg := c.ErrorMessage
		v.Error = &msg
	}
	return v
}

// Detail flattens the parsed document and adds the identifying fields.
// The returned map is a fresh copy.
func (c *Contract) Detail() map[string]any {
	out := make(map[string]any, len(c.ParsedData)+5)
	for k, v := range c.ParsedData {
		out[k] = v
	}
	out["contract_id"] = c.ID.String()
	out["filename"] = c.Filename
	out["status"] = string(c.Status)
	out["uploaded_at"] = c.UploadedAt.UTC().Format(time.RFC3339)
	if c.CompletedAt != nil {
		out["completed_at"] = c.CompletedAt.UTC().Format(time.RFC3339)
	} else {
		out["completed_at"] = nil
	}
	return out
}
