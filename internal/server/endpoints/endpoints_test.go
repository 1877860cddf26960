package endpoints

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/kyamashita/honyaku/internal/home"
	"github.com/kyamashita/honyaku/internal/jobs"
	"github.com/kyamashita/honyaku/internal/jobstore"
	"github.com/kyamashita/honyaku/internal/svcctx"
)

// nopRunner completes every job instantly without touching the record.
type nopRunner struct{}

func (nopRunner) Run(context.Context, string) error { return nil }

type testEnv struct {
	home    *home.Dir
	manager *jobs.Manager
	handler http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	h, err := home.New(t.TempDir())
	if err != nil {
		t.Fatalf("home.New: %v", err)
	}
	if err := h.EnsureExists(); err != nil {
		t.Fatalf("EnsureExists: %v", err)
	}

	manager := jobs.NewManager(h, nopRunner{}, nil)
	services := &svcctx.Services{
		JobManager: manager,
		Home:       h,
	}

	mux := http.NewServeMux()
	passthrough := func(next http.HandlerFunc) http.HandlerFunc { return next }
	for _, ep := range All(Config{}) {
		method, path, handler := ep.Route()
		if ep.RequiresInit() {
			handler = passthrough(handler)
		}
		mux.HandleFunc(method+" "+path, handler)
	}

	wrapped := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mux.ServeHTTP(w, r.WithContext(svcctx.WithServices(r.Context(), services)))
	})

	return &testEnv{home: h, manager: manager, handler: wrapped}
}

func (env *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	return rec
}

func multipartUpload(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	part.Write(content)
	writer.Close()
	return &buf, writer.FormDataContentType()
}

// A minimal but structurally valid PDF header for content sniffing.
var pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, httptest.NewRequest("GET", "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("status = %q, want ok", resp.Status)
	}
}

func TestCreateJob(t *testing.T) {
	env := newTestEnv(t)

	body, contentType := multipartUpload(t, "file", "doc.pdf", pdfBytes)
	req := httptest.NewRequest("POST", "/jobs", body)
	req.Header.Set("Content-Type", contentType)

	rec := env.do(t, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	var resp CreateJobResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.JobID == "" {
		t.Fatal("empty job_id")
	}
	if strings.Contains(resp.JobID, "-") {
		t.Errorf("job_id %q should be bare hex", resp.JobID)
	}

	// The upload and record must be on disk.
	paths := env.home.JobPaths(resp.JobID)
	if _, err := os.Stat(paths.InputPDF); err != nil {
		t.Errorf("input.pdf not stored: %v", err)
	}
	env.manager.Wait()
	job, err := jobstore.Load(paths.MetaJSON)
	if err != nil {
		t.Fatalf("load record: %v", err)
	}
	if job.Filename != "doc.pdf" {
		t.Errorf("filename = %q, want doc.pdf", job.Filename)
	}
	if job.Extra["input_bytes"] == nil {
		t.Error("record missing input_bytes")
	}
}

func TestCreateJobRejectsNonPDF(t *testing.T) {
	env := newTestEnv(t)

	// A text file renamed to .pdf must still be rejected.
	body, contentType := multipartUpload(t, "file", "fake.pdf", []byte("plain text, not a pdf"))
	req := httptest.NewRequest("POST", "/jobs", body)
	req.Header.Set("Content-Type", contentType)

	rec := env.do(t, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "not a PDF") {
		t.Errorf("unexpected error body: %s", rec.Body.String())
	}
}

func TestCreateJobMissingFile(t *testing.T) {
	env := newTestEnv(t)

	body, contentType := multipartUpload(t, "wrong_field", "doc.pdf", pdfBytes)
	req := httptest.NewRequest("POST", "/jobs", body)
	req.Header.Set("Content-Type", contentType)

	rec := env.do(t, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestGetJob(t *testing.T) {
	env := newTestEnv(t)

	if err := env.home.EnsureJobDirs("abc123"); err != nil {
		t.Fatal(err)
	}
	paths := env.home.JobPaths("abc123")
	if err := jobstore.Save(paths.MetaJSON, jobstore.InitMeta("abc123", "doc.pdf", nil)); err != nil {
		t.Fatal(err)
	}

	rec := env.do(t, httptest.NewRequest("GET", "/jobs/abc123", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var job jobstore.Job
	if err := json.Unmarshal(rec.Body.Bytes(), &job); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if job.JobID != "abc123" || job.Status != jobstore.StatusQueued {
		t.Errorf("unexpected job: %+v", job)
	}

	rec = env.do(t, httptest.NewRequest("GET", "/jobs/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing job status = %d, want 404", rec.Code)
	}
}

func TestGetJobCorruptRecord(t *testing.T) {
	env := newTestEnv(t)

	if err := env.home.EnsureJobDirs("bad"); err != nil {
		t.Fatal(err)
	}
	paths := env.home.JobPaths("bad")
	if err := os.WriteFile(paths.MetaJSON, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	rec := env.do(t, httptest.NewRequest("GET", "/jobs/bad", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func seedSucceededJob(t *testing.T, env *testEnv, jobID, markdown string) {
	t.Helper()
	if err := env.home.EnsureJobDirs(jobID); err != nil {
		t.Fatal(err)
	}
	paths := env.home.JobPaths(jobID)

	status := jobstore.StatusSucceeded
	stage := "completed"
	progress := 1.0
	resultPath := env.home.RelResultPath(jobID)
	job := jobstore.Update(jobstore.InitMeta(jobID, "doc.pdf", nil), jobstore.Changes{
		Status:     &status,
		Stage:      &stage,
		Progress:   &progress,
		ResultPath: &resultPath,
	})
	if err := jobstore.Save(paths.MetaJSON, job); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(paths.ResultMD, []byte(markdown), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestResult(t *testing.T) {
	env := newTestEnv(t)
	seedSucceededJob(t, env, "done1", "## Page 1\n\n訳文\n")

	rec := env.do(t, httptest.NewRequest("GET", "/jobs/done1/result", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/markdown") {
		t.Errorf("content-type = %q, want text/markdown", ct)
	}
	if rec.Body.String() != "## Page 1\n\n訳文\n" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestResultNotReady(t *testing.T) {
	env := newTestEnv(t)

	if err := env.home.EnsureJobDirs("pending"); err != nil {
		t.Fatal(err)
	}
	paths := env.home.JobPaths("pending")
	if err := jobstore.Save(paths.MetaJSON, jobstore.InitMeta("pending", "doc.pdf", nil)); err != nil {
		t.Fatal(err)
	}

	rec := env.do(t, httptest.NewRequest("GET", "/jobs/pending/result", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestResultHTML(t *testing.T) {
	env := newTestEnv(t)
	seedSucceededJob(t, env, "done2", "## Page 1\n\nSome **bold** text.\n")

	rec := env.do(t, httptest.NewRequest("GET", "/jobs/done2/result/html", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content-type = %q, want text/html", ct)
	}
	if !strings.Contains(body, "<h2") || !strings.Contains(body, "<strong>bold</strong>") {
		t.Errorf("markdown not rendered: %s", body)
	}
}

func TestPage(t *testing.T) {
	env := newTestEnv(t)

	if err := env.home.EnsureJobDirs("j1"); err != nil {
		t.Fatal(err)
	}
	paths := env.home.JobPaths("j1")
	if err := jobstore.Save(paths.MetaJSON, jobstore.InitMeta("j1", "doc.pdf", nil)); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(paths.PageMarkdownPath(1), []byte("## Page 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	rec := env.do(t, httptest.NewRequest("GET", "/jobs/j1/pages/1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "## Page 1\n" {
		t.Errorf("body = %q", rec.Body.String())
	}

	rec = env.do(t, httptest.NewRequest("GET", "/jobs/j1/pages/2", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing page status = %d, want 404", rec.Code)
	}

	rec = env.do(t, httptest.NewRequest("GET", "/jobs/j1/pages/zero", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad page status = %d, want 400", rec.Code)
	}
}
