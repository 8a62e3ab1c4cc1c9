package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/contracts-tracker/internal/entity"
	"github.com/joseph-ayodele/contracts-tracker/internal/repository"
	"github.com/joseph-ayodele/contracts-tracker/internal/scoring"
)

// Sheet names in the exported workbook.
const (
	SheetContracts = "Contracts"
	SheetMissing   = "Missing Fields"
)

// Lister is the repository slice the export reads.
type Lister interface {
	List(ctx context.Context, f repository.ListFilter) ([]*entity.Contract, int, error)
}

// Service produces XLSX bytes for contract exports.
type Service struct {
	repo   Lister
	logger *slog.Logger
}

func NewService(repo Lister, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// ContractsXLSX returns a workbook with one row per contract matching f
// (paging is ignored; every match is exported) and a sheet listing each
// missing field.
func (s *Service) ContractsXLSX(ctx context.Context, f repository.ListFilter) ([]byte, int, error) {
	start := time.Now()
	contracts, err := s.all(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("query contracts: %w", err)
	}

	x := excelize.NewFile()
	defer func() {
		if err := x.Close(); err != nil {
			s.logger.Warn("xlsx close failed", "error", err)
		}
	}()
	// The default "Sheet1" becomes the contracts sheet.
	if err := x.SetSheetName(x.GetSheetName(0), SheetContracts); err != nil {
		return nil, 0, err
	}
	if _, err := x.NewSheet(SheetMissing); err != nil {
		return nil, 0, err
	}
	x.SetActiveSheet(0)

	categories := scoring.Categories()
	headers := []string{"Contract ID", "Filename", "Status", "Uploaded At", "Completed At", "Overall Score"}
	for _, c := range categories {
		headers = append(headers, title(string(c)))
	}
	headers = append(headers, "Missing Fields")
	for _, c := range categories {
		headers = append(headers, "Confidence: "+title(string(c.Section())))
	}
	headers = append(headers, "Error")
	if err := writeRow(x, SheetContracts, 1, toAny(headers)); err != nil {
		return nil, 0, err
	}
	if err := writeRow(x, SheetMissing, 1, []any{"Contract ID", "Filename", "Missing Field"}); err != nil {
		return nil, 0, err
	}

	missingRow := 2
	for i, c := range contracts {
		cats := mapping(c.ParsedData["category_scores"])
		conf := mapping(c.ParsedData["confidence_levels"])
		missing := stringList(c.ParsedData["missing_fields"])

		row := []any{c.ID.String(), c.Filename, string(c.Status), c.UploadedAt.UTC().Format(time.RFC3339), ""}
		if c.CompletedAt != nil {
			row[4] = c.CompletedAt.UTC().Format(time.RFC3339)
		}
		if c.OverallScore != nil {
			row = append(row, *c.OverallScore)
		} else {
			row = append(row, "")
		}
		for _, cat := range categories {
			if v, ok := cats[string(cat)]; ok {
				row = append(row, v)
			} else {
				row = append(row, "")
			}
		}
		row = append(row, len(missing))
		for _, cat := range categories {
			row = append(row, fmt.Sprint(orEmpty(conf[string(cat.Section())])))
		}
		row = append(row, c.ErrorMessage)
		if err := writeRow(x, SheetContracts, i+2, row); err != nil {
			return nil, 0, err
		}

		for _, field := range missing {
			if err := writeRow(x, SheetMissing, missingRow, []any{c.ID.String(), c.Filename, field}); err != nil {
				return nil, 0, err
			}
			missingRow++
		}
	}

	_ = x.SetColWidth(SheetContracts, "A", "A", 38)
	_ = x.SetColWidth(SheetContracts, "B", "B", 32)
	_ = x.SetColWidth(SheetContracts, "C", "F", 22)
	_ = x.SetColWidth(SheetMissing, "A", "A", 38)
	_ = x.SetColWidth(SheetMissing, "B", "C", 40)
	if err := x.SetPanes(SheetContracts, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return nil, 0, err
	}

	buf, err := x.WriteToBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("xlsx write: %w", err)
	}
	s.logger.Info("export.xlsx.ok",
		"rows", len(contracts),
		"missing_rows", missingRow-2,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), len(contracts), nil
}

func (s *Service) all(ctx context.Context, f repository.ListFilter) ([]*entity.Contract, error) {
	f.Page, f.Limit = 1, repository.MaxPageSize
	var out []*entity.Contract
	for {
		page, total, err := s.repo.List(ctx, f)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if len(page) == 0 || len(out) >= total {
			return out, nil
		}
		f.Page++
	}
}

func writeRow(x *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return x.SetSheetRow(sheet, cell, &values)
}

// title turns "payment_terms_clarity" into "Payment Terms Clarity".
func title(key string) string {
	words := strings.Split(key, "_")
	for i, w := range words {
		if w == "sla" {
			words[i] = "SLA"
			continue
		}
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func mapping(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func stringList(v any) []string {
	list, _ := v.([]any)
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func orEmpty(v any) any {
	if v == nil {
		return ""
	}
	return v
}
