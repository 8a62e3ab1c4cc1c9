package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/contracts-tracker/internal/export"
	"github.com/joseph-ayodele/contracts-tracker/internal/scoring"
)

func (f *fixture) server(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewHTTPHandler(f.deps))
	t.Cleanup(srv.Close)
	return srv
}

func multipartBody(t *testing.T, field, filename, content string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("note", "ignored"))
	if field != "" {
		fw, err := mw.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func get(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	return resp
}

func TestHTTP_Health(t *testing.T) {
	f := newFixture(t)
	srv := f.server(t)

	resp := get(t, srv.URL+"/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", decode(t, resp)["status"])

	f.setHealth(errors.New("db down"))
	resp = get(t, srv.URL+"/health")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "db down", decode(t, resp)["error"])
}

func TestHTTP_UploadQueuesContract(t *testing.T) {
	f := newFixture(t)
	srv := f.server(t)

	body, ct := multipartBody(t, "file", "MSA.pdf", "%PDF-1.7 agreement")
	resp, err := http.Post(srv.URL+"/contracts/upload", ct, body)
	require.NoError(t, err)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))

	out := decode(t, resp)
	assert.Equal(t, "MSA.pdf", out["filename"])
	assert.Equal(t, "pending", out["status"])
	assert.Equal(t, false, out["deduplicated"])
	id, err := uuid.Parse(out["contract_id"].(string))
	require.NoError(t, err)
	require.Equal(t, 1, f.queue.count())
	assert.Equal(t, id, f.queue.jobs[0].ContractID)
	assert.NotEmpty(t, f.queue.jobs[0].RequestID)

	body, ct = multipartBody(t, "file", "copy.pdf", "%PDF-1.7 agreement")
	resp, err = http.Post(srv.URL+"/contracts/upload", ct, body)
	require.NoError(t, err)
	out = decode(t, resp)
	assert.Equal(t, id.String(), out["contract_id"])
	assert.Equal(t, true, out["deduplicated"])
	assert.Equal(t, 1, f.queue.count())
}

func TestHTTP_UploadRejections(t *testing.T) {
	f := newFixture(t)
	srv := f.server(t)

	cases := []struct {
		name     string
		field    string
		filename string
		content  string
		want     int
	}{
		{"not a pdf", "file", "notes.docx", "hello", http.StatusBadRequest},
		{"missing field", "", "", "", http.StatusBadRequest},
		{"empty file", "file", "a.pdf", "", http.StatusBadRequest},
		{"too large", "file", "big.pdf", strings.Repeat("x", maxUpload+1), http.StatusRequestEntityTooLarge},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body, ct := multipartBody(t, tc.field, tc.filename, tc.content)
			resp, err := http.Post(srv.URL+"/contracts/upload", ct, body)
			require.NoError(t, err)
			assert.Equal(t, tc.want, resp.StatusCode)
			assert.NotEmpty(t, decode(t, resp)["error"])
		})
	}

	resp, err := http.Post(srv.URL+"/contracts/upload", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_ = resp.Body.Close()
	assert.Zero(t, f.queue.count())
}

func TestHTTP_StatusAndDetail(t *testing.T) {
	f := newFixture(t)
	srv := f.server(t)
	id := f.upload(t, "deal.pdf", "%PDF deal")

	resp := get(t, srv.URL+"/contracts/"+id.String()+"/status")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	st := decode(t, resp)
	assert.Equal(t, "pending", st["status"])
	assert.Equal(t, float64(0), st["progress"])
	assert.Contains(t, st, "error")
	assert.Nil(t, st["error"])

	resp = get(t, srv.URL+"/contracts/"+id.String())
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	_ = resp.Body.Close()

	report := f.complete(t, id, sampleRecord)

	resp = get(t, srv.URL+"/contracts/"+id.String())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	doc := decode(t, resp)
	assert.Equal(t, id.String(), doc["contract_id"])
	assert.Equal(t, "deal.pdf", doc["filename"])
	assert.Equal(t, "completed", doc["status"])
	assert.NotNil(t, doc["completed_at"])
	assert.Equal(t, report.OverallScore, doc["overall_score"])
	assert.Contains(t, doc, "financial_details")
	assert.Contains(t, doc, "category_scores")
	assert.Len(t, doc["missing_fields"], len(report.MissingFields))

	resp = get(t, srv.URL+"/contracts/"+id.String()+"/status")
	st = decode(t, resp)
	assert.Equal(t, "completed", st["status"])
	assert.Equal(t, float64(100), st["progress"])
}

func TestHTTP_UnknownAndInvalidIDs(t *testing.T) {
	f := newFixture(t)
	srv := f.server(t)

	for _, path := range []string{"", "/status", "/download"} {
		resp := get(t, srv.URL+"/contracts/"+uuid.NewString()+path)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
		_ = resp.Body.Close()

		resp = get(t, srv.URL+"/contracts/nope"+path)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, path)
		_ = resp.Body.Close()
	}
}

func TestHTTP_List(t *testing.T) {
	f := newFixture(t)
	srv := f.server(t)
	a := f.upload(t, "a.pdf", "%PDF a")
	f.upload(t, "b.pdf", "%PDF b")
	f.upload(t, "c.pdf", "%PDF c")
	f.complete(t, a, sampleRecord)

	resp := get(t, srv.URL+"/contracts?limit=2&sort_by=filename&order=asc")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page := decode(t, resp)
	assert.Equal(t, float64(3), page["total"])
	assert.Equal(t, float64(1), page["page"])
	assert.Equal(t, float64(2), page["limit"])
	items := page["items"].([]any)
	require.Len(t, items, 2)
	assert.Equal(t, "a.pdf", items[0].(map[string]any)["filename"])
	assert.Equal(t, "b.pdf", items[1].(map[string]any)["filename"])

	resp = get(t, srv.URL+"/contracts?status=completed")
	page = decode(t, resp)
	assert.Equal(t, float64(1), page["total"])
	item := page["items"].([]any)[0].(map[string]any)
	assert.Equal(t, a.String(), item["contract_id"])
	assert.NotNil(t, item["overall_score"])

	resp = get(t, srv.URL+"/contracts?status=failed")
	page = decode(t, resp)
	assert.Equal(t, float64(0), page["total"])
	assert.Equal(t, []any{}, page["items"])

	for _, q := range []string{"page=0", "limit=500", "status=done", "sort_by=size", "order=sideways"} {
		resp := get(t, srv.URL+"/contracts?"+q)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, q)
		_ = resp.Body.Close()
	}
}

func TestHTTP_Download(t *testing.T) {
	f := newFixture(t)
	srv := f.server(t)
	id := f.upload(t, "Signed MSA.pdf", "%PDF-1.4 signed")

	resp := get(t, srv.URL+"/contracts/"+id.String()+"/download")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	defer resp.Body.Close()
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), `filename="Signed MSA.pdf"`)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 signed", string(data))
}

func TestHTTP_Export(t *testing.T) {
	f := newFixture(t)
	srv := f.server(t)
	a := f.upload(t, "a.pdf", "%PDF a")
	f.upload(t, "b.pdf", "%PDF b")
	f.complete(t, a, sampleRecord)

	resp := get(t, srv.URL+"/contracts/export")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	defer resp.Body.Close()
	assert.Equal(t, xlsxContentType, resp.Header.Get("Content-Type"))
	assert.Equal(t, "2", resp.Header.Get("X-Contract-Count"))

	x, err := excelize.OpenReader(resp.Body)
	require.NoError(t, err)
	defer x.Close()
	rows, err := x.GetRows(export.SheetContracts)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.ElementsMatch(t, []string{"a.pdf", "b.pdf"}, []string{rows[1][1], rows[2][1]})

	resp2 := get(t, srv.URL+"/contracts/export?status=COMPLETED")
	assert.Equal(t, "1", resp2.Header.Get("X-Contract-Count"))
	_ = resp2.Body.Close()

	resp2 = get(t, srv.URL+"/contracts/export?status=bogus")
	assert.Equal(t, http.StatusBadRequest, resp2.StatusCode)
	_ = resp2.Body.Close()
}

func TestHTTP_Score(t *testing.T) {
	f := newFixture(t)
	srv := f.server(t)

	resp, err := http.Post(srv.URL+"/score", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode(t, resp)
	assert.Equal(t, float64(0), out["overall_score"])
	assert.Len(t, out["missing_fields"], scoring.CheckCount())
	assert.NotContains(t, out, "breakdown")

	payload, err := json.Marshal(sampleRecord)
	require.NoError(t, err)
	resp, err = http.Post(srv.URL+"/score?breakdown=true", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	out = decode(t, resp)
	assert.Equal(t, scoring.CalculateMap(sampleRecord).OverallScore, out["overall_score"])
	assert.Len(t, out["breakdown"], len(scoring.Categories()))

	resp, err = http.Post(srv.URL+"/score", "application/json", strings.NewReader(`[1,2]`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestHTTP_CORSAndMetrics(t *testing.T) {
	f := newFixture(t)
	srv := f.server(t)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/contracts/upload", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	resp = get(t, srv.URL+"/metrics")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(data), "contracts_overall_score")
}
