// Package server exposes contracts over HTTP (chi) and gRPC.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/joseph-ayodele/contracts-tracker/constants"
	"github.com/joseph-ayodele/contracts-tracker/internal/common"
	"github.com/joseph-ayodele/contracts-tracker/internal/entity"
	"github.com/joseph-ayodele/contracts-tracker/internal/export"
	"github.com/joseph-ayodele/contracts-tracker/internal/ingest"
	"github.com/joseph-ayodele/contracts-tracker/internal/repository"
	"github.com/joseph-ayodele/contracts-tracker/internal/storage"
)

// Deps are the collaborators shared by both transports.
type Deps struct {
	Contracts repository.ContractRepository
	Ingestor  ingest.Ingestor
	Exporter  *export.Service
	Files     *storage.Local
	// Health reports whether the backing store is reachable. Nil means always healthy.
	Health func(ctx context.Context) error
	// Metrics is served on /metrics when set.
	Metrics prometheus.Gatherer

	MaxUploadBytes int64
	RequestTimeout time.Duration
	Logger         *slog.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.MaxUploadBytes <= 0 {
		d.MaxUploadBytes = constants.MaxUploadBytes
	}
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = 60 * time.Second
	}
	return d
}

// listQuery is the raw, unvalidated form of a list request.
type listQuery struct {
	Page   string
	Limit  string
	Status string
	SortBy string
	Order  string
}

func (q listQuery) filter() (repository.ListFilter, error) {
	v := common.NewValidator().
		Field("page", q.Page, common.IntRange(1, 1<<30)).
		Field("limit", q.Limit, common.IntRange(1, repository.MaxPageSize)).
		Field("status", q.Status, common.OneOf(constants.StatusStrings()...)).
		Field("sort_by", q.SortBy, common.OneOf(repository.SortFields()...)).
		Field("order", q.Order, common.OneOf("asc", "desc"))
	if err := v.Error(); err != nil {
		return repository.ListFilter{}, err
	}
	f := repository.ListFilter{
		Status: constants.ContractStatus(strings.ToLower(q.Status)),
		SortBy: strings.ToLower(q.SortBy),
		Order:  q.Order,
	}
	f.Page, _ = strconv.Atoi(q.Page)
	f.Limit, _ = strconv.Atoi(q.Limit)
	return f.Normalize(), nil
}

type listPage struct {
	Items []entity.ContractSummary `json:"items"`
	Total int                      `json:"total"`
	Page  int                      `json:"page"`
	Limit int                      `json:"limit"`
}

func listContracts(ctx context.Context, repo repository.ContractRepository, q listQuery) (listPage, error) {
	f, err := q.filter()
	if err != nil {
		return listPage{}, err
	}
	rows, total, err := repo.List(ctx, f)
	if err != nil {
		return listPage{}, err
	}
	out := listPage{Items: make([]entity.ContractSummary, 0, len(rows)), Total: total, Page: f.Page, Limit: f.Limit}
	for _, c := range rows {
		out.Items = append(out.Items, c.Summary())
	}
	return out, nil
}

func parseContractID(raw string) (uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if err := common.NewValidator().Field("contract_id", raw, common.Required, common.UUID).Error(); err != nil {
		return uuid.Nil, err
	}
	return uuid.MustParse(raw), nil
}

func getContract(ctx context.Context, repo repository.ContractRepository, raw string) (*entity.Contract, error) {
	id, err := parseContractID(raw)
	if err != nil {
		return nil, err
	}
	return repo.GetByID(ctx, id)
}

// contractDetail returns the flattened document of a completed contract.
// Contracts still in flight, or failed, are a conflict.
func contractDetail(ctx context.Context, repo repository.ContractRepository, raw string) (map[string]any, error) {
	c, err := getContract(ctx, repo, raw)
	if err != nil {
		return nil, err
	}
	if c.Status != constants.StatusCompleted {
		msg := fmt.Sprintf("contract %s is %s", c.ID, c.Status)
		if c.ErrorMessage != "" {
			msg += ": " + c.ErrorMessage
		}
		return nil, fmt.Errorf("%w: %s", common.ErrConflict, msg)
	}
	return c.Detail(), nil
}
