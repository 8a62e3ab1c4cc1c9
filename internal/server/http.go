package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joseph-ayodele/contracts-tracker/constants"
	"github.com/joseph-ayodele/contracts-tracker/internal/common"
	"github.com/joseph-ayodele/contracts-tracker/internal/repository"
	"github.com/joseph-ayodele/contracts-tracker/internal/scoring"
)

const (
	uploadField     = "file"
	maxScoreBody    = 1 << 20
	multipartSlack  = 1 << 20
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type httpAPI struct {
	deps   Deps
	logger *slog.Logger
}

// NewHTTPHandler builds the REST API.
func NewHTTPHandler(deps Deps) http.Handler {
	deps = deps.withDefaults()
	api := &httpAPI{deps: deps, logger: deps.Logger}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(api.logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors)

	r.Get("/health", api.health)
	if deps.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(chimiddleware.Timeout(deps.RequestTimeout))
		r.Get("/", api.root)
		r.Post("/score", api.score)
		r.Route("/contracts", func(r chi.Router) {
			r.Get("/", api.list)
			r.Post("/upload", api.upload)
			r.Get("/export", api.export)
			r.Get("/{id}", api.detail)
			r.Get("/{id}/status", api.status)
			r.Get("/{id}/download", api.download)
		})
	})
	return r
}

func (a *httpAPI) health(w http.ResponseWriter, r *http.Request) {
	if a.deps.Health != nil {
		if err := a.deps.Health(r.Context()); err != nil {
			a.logger.Warn("http.health.failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (a *httpAPI) root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"message": "contracts-tracker API"})
}

func (a *httpAPI) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, a.deps.MaxUploadBytes+multipartSlack)
	mr, err := r.MultipartReader()
	if err != nil {
		a.writeError(w, r, fmt.Errorf("%w: multipart form with a %q field is required", common.ErrInvalidInput, uploadField))
		return
	}
	part, err := nextFilePart(mr)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	defer func() { _ = part.Close() }()

	res, err := a.deps.Ingestor.Upload(r.Context(), part.FileName(), part)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	msg := "Contract uploaded successfully; processing started"
	switch {
	case res.Deduplicated && res.Queued:
		msg = "Contract already uploaded; processing restarted"
	case res.Deduplicated:
		msg = "Contract already uploaded"
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"contract_id":  res.ContractID.String(),
		"filename":     res.Filename,
		"status":       string(res.Status),
		"deduplicated": res.Deduplicated,
		"message":      msg,
	})
}

func nextFilePart(mr *multipart.Reader) (*multipart.Part, error) {
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: %q field is required", common.ErrInvalidInput, uploadField)
		}
		if err != nil {
			return nil, tooLarge(err)
		}
		if part.FormName() == uploadField {
			return part, nil
		}
		_ = part.Close()
	}
}

func (a *httpAPI) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := listContracts(r.Context(), a.deps.Contracts, listQuery{
		Page:   q.Get("page"),
		Limit:  q.Get("limit"),
		Status: q.Get("status"),
		SortBy: q.Get("sort_by"),
		Order:  q.Get("order"),
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (a *httpAPI) status(w http.ResponseWriter, r *http.Request) {
	c, err := getContract(r.Context(), a.deps.Contracts, chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c.StatusView())
}

func (a *httpAPI) detail(w http.ResponseWriter, r *http.Request) {
	doc, err := contractDetail(r.Context(), a.deps.Contracts, chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (a *httpAPI) download(w http.ResponseWriter, r *http.Request) {
	c, err := getContract(r.Context(), a.deps.Contracts, chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	f, err := a.deps.Files.Open(c.FilePath)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	defer func() { _ = f.Close() }()

	name := filepath.Base(c.Filename)
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeContent(w, r, name, c.UploadedAt, f)
}

func (a *httpAPI) export(w http.ResponseWriter, r *http.Request) {
	st := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("status")))
	v := common.NewValidator().Field("status", st, common.OneOf(constants.StatusStrings()...))
	if err := v.Error(); err != nil {
		a.writeError(w, r, err)
		return
	}
	data, n, err := a.deps.Exporter.ContractsXLSX(r.Context(), repository.ListFilter{
		Status: constants.ContractStatus(st),
		SortBy: repository.SortUploadedAt,
		Order:  "asc",
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	name := "contracts-" + time.Now().UTC().Format("20060102-150405") + ".xlsx"
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("X-Contract-Count", strconv.Itoa(n))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// score grades a posted extraction record without storing anything.
func (a *httpAPI) score(w http.ResponseWriter, r *http.Request) {
	var record map[string]any
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxScoreBody))
	if err := dec.Decode(&record); err != nil {
		if limited := tooLarge(err); limited != err {
			a.writeError(w, r, limited)
			return
		}
		a.writeError(w, r, fmt.Errorf("%w: body must be a JSON object: %v", common.ErrInvalidInput, err))
		return
	}
	scorer := scoring.NewScorer()
	if b, _ := strconv.ParseBool(r.URL.Query().Get("breakdown")); b {
		scorer = scoring.NewScorer(scoring.WithBreakdown())
	}
	writeJSON(w, http.StatusOK, scorer.Score(scoring.RecordFromMap(record)))
}

func (a *httpAPI) writeError(w http.ResponseWriter, r *http.Request, err error) {
	err = tooLarge(err)
	code := common.HTTPStatus(err)
	attrs := append(common.LogAttrs(r.Context()), "method", r.Method, "path", r.URL.Path, "status", code, "error", err)
	if code >= http.StatusInternalServerError {
		a.logger.Error("http.error", attrs...)
	} else {
		a.logger.Debug("http.error", attrs...)
	}
	writeJSON(w, code, map[string]any{"error": err.Error()})
}

// tooLarge maps the body limit error onto ErrFileTooLarge.
func tooLarge(err error) error {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return fmt.Errorf("%w: request body exceeds %d bytes", common.ErrFileTooLarge, mbe.Limit)
	}
	return err
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
