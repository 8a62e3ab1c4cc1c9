package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/contracts-tracker/constants"
	"github.com/joseph-ayodele/contracts-tracker/internal/common"
	"github.com/joseph-ayodele/contracts-tracker/internal/entity"
	"github.com/joseph-ayodele/contracts-tracker/internal/scoring"
)

const contractsTable = "contracts"

var contractColumns = []string{
	"id", "filename", "file_path", "file_size", "content_hash", "status", "progress",
	"error_message", "extracted_text", "extraction_method", "page_count", "parsed_data",
	"overall_score", "uploaded_at", "processing_started_at", "completed_at", "updated_at",
}

// Page size bounds for List.
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Sortable columns for List.
const (
	SortUploadedAt   = "uploaded_at"
	SortOverallScore = "overall_score"
	SortFilename     = "filename"
)

// SortFields returns the accepted sort_by values.
func SortFields() []string {
	return []string{SortUploadedAt, SortOverallScore, SortFilename}
}

// ListFilter selects one page of contracts.
type ListFilter struct {
	Page   int // 1-based
	Limit  int
	Status constants.ContractStatus
	SortBy string
	Order  string // asc | desc
}

// Normalize fills defaults and clamps the page window.
func (f ListFilter) Normalize() ListFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit <= 0 {
		f.Limit = DefaultPageSize
	}
	if f.Limit > MaxPageSize {
		f.Limit = MaxPageSize
	}
	switch f.SortBy {
	case SortUploadedAt, SortOverallScore, SortFilename:
	default:
		f.SortBy = SortUploadedAt
	}
	f.Order = strings.ToLower(f.Order)
	if f.Order != "asc" {
		f.Order = "desc"
	}
	return f
}

type ContractRepository interface {
	Create(ctx context.Context, c *entity.Contract) (*entity.Contract, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Contract, error)
	GetByHash(ctx context.Context, hash string) (*entity.Contract, error)
	UpsertByHash(ctx context.Context, c *entity.Contract) (*entity.Contract, bool, error)
	List(ctx context.Context, f ListFilter) ([]*entity.Contract, int, error)
	MarkProcessing(ctx context.Context, id uuid.UUID) error
	UpdateProgress(ctx context.Context, id uuid.UUID, progress int) error
	SaveText(ctx context.Context, id uuid.UUID, text, method string, pages int) error
	Complete(ctx context.Context, id uuid.UUID, parsed map[string]any, report scoring.Report) error
	Fail(ctx context.Context, id uuid.UUID, message string) error
}

type contractRepo struct {
	drv    *entsql.Driver
	logger *slog.Logger
	now    func() time.Time
}

func NewContractRepository(drv *entsql.Driver, logger *slog.Logger) ContractRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &contractRepo{
		drv:    drv,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

func (r *contractRepo) builder() *entsql.DialectBuilder {
	return entsql.Dialect(r.drv.Dialect())
}

func (r *contractRepo) Create(ctx context.Context, c *entity.Contract) (*entity.Contract, error) {
	row := *c
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	now := r.now()
	if row.UploadedAt.IsZero() {
		row.UploadedAt = now
	}
	row.UploadedAt = row.UploadedAt.UTC().Truncate(time.Microsecond)
	row.UpdatedAt = now
	row.Status = constants.StatusPending
	row.Progress = constants.ProgressPending

	q, args := r.builder().Insert(contractsTable).
		Columns("id", "filename", "file_path", "file_size", "content_hash", "status", "progress", "uploaded_at", "updated_at").
		Values(row.ID, row.Filename, row.FilePath, row.FileSize, row.ContentHash, string(row.Status), row.Progress, row.UploadedAt, row.UpdatedAt).
		Query()
	var res sql.Result
	if err := r.drv.Exec(ctx, q, args, &res); err != nil {
		r.logger.Error("failed to create contract", "filename", row.Filename, "content_hash", row.ContentHash, "error", err)
		return nil, fmt.Errorf("%w: create contract: %v", common.ErrDatabase, err)
	}
	return &row, nil
}

func (r *contractRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.Contract, error) {
	c, err := r.getOne(ctx, entsql.EQ("id", id))
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			r.logger.Error("failed to get contract", "contract_id", id, "error", err)
		}
		return nil, err
	}
	return c, nil
}

func (r *contractRepo) GetByHash(ctx context.Context, hash string) (*entity.Contract, error) {
	c, err := r.getOne(ctx, entsql.EQ("content_hash", hash))
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			r.logger.Error("failed to get contract by hash", "content_hash", hash, "error", err)
		}
		return nil, err
	}
	return c, nil
}

// UpsertByHash returns the existing contract with the same content hash, or
// creates one. The bool reports whether the row already existed.
func (r *contractRepo) UpsertByHash(ctx context.Context, c *entity.Contract) (*entity.Contract, bool, error) {
	if existing, err := r.GetByHash(ctx, c.ContentHash); err == nil {
		return existing, true, nil
	} else if !errors.Is(err, common.ErrNotFound) {
		return nil, false, err
	}
	row, err := r.Create(ctx, c)
	if err != nil {
		// Lost a race with a concurrent upload of the same file.
		if existing, gerr := r.GetByHash(ctx, c.ContentHash); gerr == nil {
			return existing, true, nil
		}
		r.logger.Error("failed to upsert contract by hash", "filename", c.Filename, "error", err)
		return nil, false, err
	}
	return row, false, nil
}

func (r *contractRepo) List(ctx context.Context, f ListFilter) ([]*entity.Contract, int, error) {
	f = f.Normalize()
	b := r.builder()

	var pred *entsql.Predicate
	if f.Status != "" {
		pred = entsql.EQ("status", string(f.Status))
	}

	count := b.Select(entsql.Count("*")).From(b.Table(contractsTable))
	if pred != nil {
		count.Where(pred)
	}
	q, args := count.Query()
	total, err := r.scanInt(ctx, q, args)
	if err != nil {
		r.logger.Error("failed to count contracts", "status", f.Status, "error", err)
		return nil, 0, fmt.Errorf("%w: count contracts: %v", common.ErrDatabase, err)
	}

	order := entsql.Desc(f.SortBy)
	if f.Order == "asc" {
		order = entsql.Asc(f.SortBy)
	}
	sel := b.Select(contractColumns...).From(b.Table(contractsTable)).
		OrderBy(order, entsql.Asc("id")).
		Limit(f.Limit).
		Offset((f.Page - 1) * f.Limit)
	if pred != nil {
		sel.Where(pred)
	}
	q, args = sel.Query()
	items, err := r.query(ctx, q, args)
	if err != nil {
		r.logger.Error("failed to list contracts", "page", f.Page, "limit", f.Limit, "error", err)
		return nil, 0, err
	}
	return items, total, nil
}

func (r *contractRepo) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	now := r.now()
	return r.transition(ctx, id, constants.StatusProcessing, func(u *entsql.UpdateBuilder) {
		u.Set("progress", constants.ProgressProcessing).
			Set("processing_started_at", now).
			SetNull("error_message").
			SetNull("completed_at")
	})
}

func (r *contractRepo) UpdateProgress(ctx context.Context, id uuid.UUID, progress int) error {
	if progress < 0 || progress > 100 {
		return fmt.Errorf("%w: progress %d out of range", common.ErrInvalidInput, progress)
	}
	return r.update(ctx, id, "update progress", []constants.ContractStatus{constants.StatusProcessing}, func(u *entsql.UpdateBuilder) {
		u.Set("progress", progress)
	})
}

func (r *contractRepo) SaveText(ctx context.Context, id uuid.UUID, text, method string, pages int) error {
	return r.update(ctx, id, "save text", []constants.ContractStatus{constants.StatusProcessing}, func(u *entsql.UpdateBuilder) {
		u.Set("extracted_text", text).
			Set("extraction_method", method).
			Set("page_count", pages).
			Set("progress", constants.ProgressTextExtracted)
	})
}

// Complete stores parsed merged with the report keys and marks the contract
// completed. parsed is not modified.
func (r *contractRepo) Complete(ctx context.Context, id uuid.UUID, parsed map[string]any, report scoring.Report) error {
	doc := make(map[string]any, len(parsed)+4)
	for k, v := range parsed {
		doc[k] = v
	}
	for k, v := range report.Document() {
		doc[k] = v
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: encode parsed data: %v", common.ErrInternal, err)
	}
	now := r.now()
	return r.transition(ctx, id, constants.StatusCompleted, func(u *entsql.UpdateBuilder) {
		u.Set("parsed_data", string(raw)).
			Set("overall_score", report.OverallScore).
			Set("progress", constants.ProgressDone).
			Set("completed_at", now).
			SetNull("error_message")
	})
}

func (r *contractRepo) Fail(ctx context.Context, id uuid.UUID, message string) error {
	return r.transition(ctx, id, constants.StatusFailed, func(u *entsql.UpdateBuilder) {
		u.Set("error_message", message).
			Set("progress", constants.ProgressDone)
	})
}

// transition moves id to status to, but only from a status allowed to reach it.
func (r *contractRepo) transition(ctx context.Context, id uuid.UUID, to constants.ContractStatus, set func(*entsql.UpdateBuilder)) error {
	return r.update(ctx, id, "transition to "+string(to), constants.SourcesFor(to), func(u *entsql.UpdateBuilder) {
		u.Set("status", string(to))
		set(u)
	})
}

func (r *contractRepo) update(ctx context.Context, id uuid.UUID, op string, from []constants.ContractStatus, set func(*entsql.UpdateBuilder)) error {
	sources := make([]any, len(from))
	for i, s := range from {
		sources[i] = string(s)
	}
	u := r.builder().Update(contractsTable).Set("updated_at", r.now())
	set(u)
	u.Where(entsql.And(entsql.EQ("id", id), entsql.In("status", sources...)))
	q, args := u.Query()

	var res sql.Result
	if err := r.drv.Exec(ctx, q, args, &res); err != nil {
		r.logger.Error("failed to update contract", "contract_id", id, "op", op, "error", err)
		return fmt.Errorf("%w: %s: %v", common.ErrDatabase, op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %s: %v", common.ErrDatabase, op, err)
	}
	if n > 0 {
		return nil
	}
	cur, err := r.getOne(ctx, entsql.EQ("id", id))
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: cannot %s contract %s in status %s", common.ErrConflict, op, id, cur.Status)
}

func (r *contractRepo) getOne(ctx context.Context, pred *entsql.Predicate) (*entity.Contract, error) {
	b := r.builder()
	q, args := b.Select(contractColumns...).From(b.Table(contractsTable)).Where(pred).Limit(1).Query()
	items, err := r.query(ctx, q, args)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: contract", common.ErrNotFound)
	}
	return items[0], nil
}

func (r *contractRepo) scanInt(ctx context.Context, q string, args []any) (int, error) {
	var rows entsql.Rows
	if err := r.drv.Query(ctx, q, args, &rows); err != nil {
		return 0, err
	}
	defer rows.Close()
	var n int
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, err
		}
	}
	return n, rows.Err()
}

func (r *contractRepo) query(ctx context.Context, q string, args []any) ([]*entity.Contract, error) {
	var rows entsql.Rows
	if err := r.drv.Query(ctx, q, args, &rows); err != nil {
		return nil, fmt.Errorf("%w: query contracts: %v", common.ErrDatabase, err)
	}
	defer rows.Close()

	var out []*entity.Contract
	for rows.Next() {
		c, err := scanContract(&rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan contract: %v", common.ErrDatabase, err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: read contracts: %v", common.ErrDatabase, err)
	}
	return out, nil
}

func scanContract(rows *entsql.Rows) (*entity.Contract, error) {
	var (
		c                          entity.Contract
		status                     string
		errMsg, text, method, data sql.NullString
		pages                      sql.NullInt64
		score                      sql.NullFloat64
		uploaded, updated          dbTime
		started, completed         dbTime
	)
	if err := rows.Scan(
		&c.ID, &c.Filename, &c.FilePath, &c.FileSize, &c.ContentHash, &status, &c.Progress,
		&errMsg, &text, &method, &pages, &data,
		&score, &uploaded, &started, &completed, &updated,
	); err != nil {
		return nil, err
	}
	c.Status = constants.ContractStatus(status)
	c.ErrorMessage = errMsg.String
	c.ExtractedText = text.String
	c.ExtractionMethod = method.String
	c.PageCount = int(pages.Int64)
	if score.Valid {
		s := score.Float64
		c.OverallScore = &s
	}
	if data.Valid && data.String != "" {
		if err := json.Unmarshal([]byte(data.String), &c.ParsedData); err != nil {
			return nil, fmt.Errorf("decode parsed_data: %w", err)
		}
	}
	c.UploadedAt = uploaded.Time
	c.UpdatedAt = updated.Time
	c.ProcessingStartedAt = started.ptr()
	c.CompletedAt = completed.ptr()
	return &c, nil
}

// dbTime scans timestamps from drivers that return either time.Time or text.
type dbTime struct {
	Time  time.Time
	Valid bool
}

var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func (t *dbTime) Scan(v any) error {
	switch x := v.(type) {
	case nil:
		*t = dbTime{}
		return nil
	case time.Time:
		*t = dbTime{Time: x.UTC(), Valid: true}
		return nil
	case []byte:
		return t.parse(string(x))
	case string:
		return t.parse(x)
	default:
		return fmt.Errorf("unsupported timestamp type %T", v)
	}
}

func (t *dbTime) parse(s string) error {
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			*t = dbTime{Time: parsed.UTC(), Valid: true}
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", s)
}

func (t dbTime) ptr() *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
