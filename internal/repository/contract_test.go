package repository

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/contracts-tracker/constants"
	"github.com/joseph-ayodele/contracts-tracker/internal/common"
	"github.com/joseph-ayodele/contracts-tracker/internal/entity"
	"github.com/joseph-ayodele/contracts-tracker/internal/scoring"
)

func newTestDriver(t *testing.T) *entsql.Driver {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	drv, pool, err := Open(context.Background(), Config{Driver: "sqlite", DSN: ":memory:"}, logger)
	require.NoError(t, err)
	require.Nil(t, pool)
	require.NoError(t, Migrate(context.Background(), drv, logger))
	t.Cleanup(func() { Close(drv, nil, logger) })
	return drv
}

func newTestRepo(t *testing.T) ContractRepository {
	t.Helper()
	return NewContractRepository(newTestDriver(t), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newContract(name string) *entity.Contract {
	return &entity.Contract{
		Filename:    name,
		FilePath:    "/uploads/" + name,
		FileSize:    2048,
		ContentHash: "hash-" + name,
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	drv := newTestDriver(t)
	require.NoError(t, Migrate(context.Background(), drv, slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, HealthCheck(context.Background(), drv, time.Second, slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, _, err := Open(context.Background(), Config{Driver: "mongo"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Error(t, err)
}

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	created, err := repo.Create(ctx, newContract("msa.pdf"))
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, constants.StatusPending, created.Status)

	got, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "msa.pdf", got.Filename)
	assert.Equal(t, "/uploads/msa.pdf", got.FilePath)
	assert.Equal(t, int64(2048), got.FileSize)
	assert.Equal(t, constants.StatusPending, got.Status)
	assert.Equal(t, 0, got.Progress)
	assert.Nil(t, got.OverallScore)
	assert.Nil(t, got.CompletedAt)
	assert.Nil(t, got.ParsedData)
	assert.WithinDuration(t, created.UploadedAt, got.UploadedAt, time.Millisecond)

	byHash, err := repo.GetByHash(ctx, "hash-msa.pdf")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byHash.ID)
}

func TestGetByID_NotFound(t *testing.T) {
	_, err := newTestRepo(t).GetByID(context.Background(), uuid.New())
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestUpsertByHash_ReusesExisting(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	first, existed, err := repo.UpsertByHash(ctx, newContract("a.pdf"))
	require.NoError(t, err)
	assert.False(t, existed)

	dup := newContract("renamed.pdf")
	dup.ContentHash = first.ContentHash
	second, existed, err := repo.UpsertByHash(ctx, dup)
	require.NoError(t, err)
	assert.True(t, existed)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "a.pdf", second.Filename)
}

func TestLifecycle_Complete(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	c, err := repo.Create(ctx, newContract("sow.pdf"))
	require.NoError(t, err)

	require.NoError(t, repo.MarkProcessing(ctx, c.ID))
	require.NoError(t, repo.SaveText(ctx, c.ID, "the agreement text", "pdftotext", 3))
	require.NoError(t, repo.UpdateProgress(ctx, c.ID, constants.ProgressParsed))

	parsed := map[string]any{
		"party_identification": map[string]any{"customer": map[string]any{"name": "Acme Inc."}},
		"financial_details":    map[string]any{"currency": "USD"},
	}
	report := scoring.CalculateMap(parsed)
	require.NoError(t, repo.Complete(ctx, c.ID, parsed, report))
	assert.NotContains(t, parsed, "overall_score")

	got, err := repo.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusCompleted, got.Status)
	assert.Equal(t, constants.ProgressDone, got.Progress)
	assert.Equal(t, "the agreement text", got.ExtractedText)
	assert.Equal(t, "pdftotext", got.ExtractionMethod)
	assert.Equal(t, 3, got.PageCount)
	require.NotNil(t, got.ProcessingStartedAt)
	require.NotNil(t, got.CompletedAt)
	require.NotNil(t, got.OverallScore)
	assert.InDelta(t, report.OverallScore, *got.OverallScore, 1e-9)

	for _, key := range []string{"overall_score", "category_scores", "missing_fields", "confidence_levels", "party_identification"} {
		assert.Contains(t, got.ParsedData, key)
	}
	assert.InDelta(t, report.OverallScore, got.ParsedData["overall_score"], 1e-9)
	missing, ok := got.ParsedData["missing_fields"].([]any)
	require.True(t, ok)
	assert.Len(t, missing, len(report.MissingFields))
}

func TestLifecycle_Fail(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	c, err := repo.Create(ctx, newContract("bad.pdf"))
	require.NoError(t, err)

	require.NoError(t, repo.MarkProcessing(ctx, c.ID))
	require.NoError(t, repo.Fail(ctx, c.ID, "could not extract sufficient text from PDF"))

	got, err := repo.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusFailed, got.Status)
	assert.Equal(t, "could not extract sufficient text from PDF", got.ErrorMessage)
	assert.Nil(t, got.OverallScore)

	// Reprocessing clears the previous error.
	require.NoError(t, repo.MarkProcessing(ctx, c.ID))
	got, err = repo.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusProcessing, got.Status)
	assert.Empty(t, got.ErrorMessage)
	assert.Equal(t, constants.ProgressProcessing, got.Progress)
}

func TestTransitions_Guarded(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	c, err := repo.Create(ctx, newContract("x.pdf"))
	require.NoError(t, err)

	err = repo.Complete(ctx, c.ID, map[string]any{}, scoring.CalculateMap(nil))
	require.ErrorIs(t, err, common.ErrConflict)

	err = repo.SaveText(ctx, c.ID, "text", "pdfcpu", 1)
	require.ErrorIs(t, err, common.ErrConflict)

	err = repo.UpdateProgress(ctx, c.ID, 101)
	require.ErrorIs(t, err, common.ErrInvalidInput)

	err = repo.MarkProcessing(ctx, uuid.New())
	require.ErrorIs(t, err, common.ErrNotFound)

	got, err := repo.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusPending, got.Status)
}

func TestList_PaginationFilterSort(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t).(*contractRepo)

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	names := []string{"charlie.pdf", "alpha.pdf", "bravo.pdf", "delta.pdf", "echo.pdf"}
	ids := make([]uuid.UUID, len(names))
	for i, name := range names {
		c := newContract(name)
		c.UploadedAt = base.Add(time.Duration(i) * time.Hour)
		created, err := repo.Create(ctx, c)
		require.NoError(t, err)
		ids[i] = created.ID
	}
	// alpha and bravo complete with different scores; echo fails.
	for i, idx := range []int{1, 2} {
		require.NoError(t, repo.MarkProcessing(ctx, ids[idx]))
		parsed := map[string]any{"financial_details": map[string]any{"currency": "USD"}}
		if i == 1 {
			parsed["party_identification"] = map[string]any{"customer": map[string]any{"name": "Acme"}}
		}
		require.NoError(t, repo.Complete(ctx, ids[idx], parsed, scoring.CalculateMap(parsed)))
	}
	require.NoError(t, repo.Fail(ctx, ids[4], "boom"))

	items, total, err := repo.List(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, items, 5)
	assert.Equal(t, "echo.pdf", items[0].Filename, "default sort is newest upload first")

	items, total, err = repo.List(ctx, ListFilter{Page: 2, Limit: 2, SortBy: SortFilename, Order: "ASC"})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, items, 2)
	assert.Equal(t, "charlie.pdf", items[0].Filename)
	assert.Equal(t, "delta.pdf", items[1].Filename)

	items, total, err = repo.List(ctx, ListFilter{Status: constants.StatusCompleted, SortBy: SortOverallScore})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, items, 2)
	assert.Equal(t, "bravo.pdf", items[0].Filename)
	assert.Greater(t, *items[0].OverallScore, *items[1].OverallScore)

	items, total, err = repo.List(ctx, ListFilter{Page: 9})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Empty(t, items)
}

func TestListFilter_Normalize(t *testing.T) {
	f := ListFilter{Page: -1, Limit: 1000, SortBy: "id; DROP TABLE", Order: "sideways"}.Normalize()
	assert.Equal(t, ListFilter{Page: 1, Limit: MaxPageSize, SortBy: SortUploadedAt, Order: "desc"}, f)

	f = ListFilter{}.Normalize()
	assert.Equal(t, DefaultPageSize, f.Limit)
}

func TestDBTime_Scan(t *testing.T) {
	want := time.Date(2025, 3, 4, 5, 6, 7, 800000000, time.UTC)
	for _, v := range []any{
		want,
		want.Format("2006-01-02 15:04:05.999999999-07:00"),
		[]byte(want.Format(time.RFC3339Nano)),
	} {
		var ts dbTime
		require.NoError(t, ts.Scan(v), fmt.Sprintf("%T", v))
		assert.True(t, ts.Valid)
		assert.True(t, want.Equal(ts.Time))
	}

	var ts dbTime
	require.NoError(t, ts.Scan(nil))
	assert.Nil(t, ts.ptr())
	require.Error(t, ts.Scan("yesterday"))
	require.Error(t, ts.Scan(42))
}
