package pipeline

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"strings"
	"testing"

	"github.com/kyamashita/honyaku/internal/home"
	"github.com/kyamashita/honyaku/internal/jobstore"
)

type stubOCR struct {
	resultFor func(imagePath string) (any, error)
}

func (s *stubOCR) Parse(_ context.Context, imagePath string) (any, error) {
	return s.resultFor(imagePath)
}

func newTestHome(t *testing.T) *home.Dir {
	t.Helper()
	h, err := home.New(t.TempDir())
	if err != nil {
		t.Fatalf("home.New: %v", err)
	}
	if err := h.EnsureExists(); err != nil {
		t.Fatalf("EnsureExists: %v", err)
	}
	return h
}

func seedJob(t *testing.T, h *home.Dir, jobID string) home.JobPaths {
	t.Helper()
	if err := h.EnsureJobDirs(jobID); err != nil {
		t.Fatalf("EnsureJobDirs: %v", err)
	}
	paths := h.JobPaths(jobID)
	if err := os.WriteFile(paths.InputPDF, []byte("%PDF-stub"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	if err := jobstore.Save(paths.MetaJSON, jobstore.InitMeta(jobID, "doc.pdf", nil)); err != nil {
		t.Fatalf("save meta: %v", err)
	}
	return paths
}

// stubRender writes n tiny valid PNGs into the pages dir and returns their
// paths, standing in for real rasterization.
func stubRender(t *testing.T, n int) func(string, string, int) ([]string, error) {
	t.Helper()
	return func(_, outputDir string, _ int) ([]string, error) {
		paths := make([]string, n)
		for i := 0; i < n; i++ {
			p := fmt.Sprintf("%s/%03d.png", outputDir, i+1)
			f, err := os.Create(p)
			if err != nil {
				return nil, err
			}
			if err := png.Encode(f, image.NewRGBA(image.Rect(0, 0, 4, 3))); err != nil {
				f.Close()
				return nil, err
			}
			f.Close()
			paths[i] = p
		}
		return paths, nil
	}
}

func TestRunnerHappyPath(t *testing.T) {
	h := newTestHome(t)
	paths := seedJob(t, h, "job1")

	ocr := &stubOCR{resultFor: func(imagePath string) (any, error) {
		return map[string]any{
			"blocks": []any{
				map[string]any{"type": "heading", "text": "Heading for " + imagePath},
				map[string]any{"type": "paragraph", "text": "Body text."},
			},
		}, nil
	}}
	translator := &stubGenerator{response: "訳文"}

	runner := NewRunner(h, ocr, translator, RunnerConfig{Language: "Japanese"}, nil)
	runner.render = stubRender(t, 2)

	if err := runner.Run(context.Background(), "job1"); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	job, err := jobstore.Load(paths.MetaJSON)
	if err != nil {
		t.Fatalf("load meta: %v", err)
	}
	if job.Status != jobstore.StatusSucceeded {
		t.Errorf("status = %s, want succeeded", job.Status)
	}
	if job.Progress != 1.0 {
		t.Errorf("progress = %v, want 1.0", job.Progress)
	}
	if job.Stage != "completed" {
		t.Errorf("stage = %q, want completed", job.Stage)
	}
	if job.Error != nil {
		t.Errorf("error = %v, want nil", *job.Error)
	}
	if job.ResultPath == nil || *job.ResultPath != "jobs/job1/md/result.md" {
		t.Errorf("result_path = %v, want jobs/job1/md/result.md", job.ResultPath)
	}

	result, err := os.ReadFile(paths.ResultMD)
	if err != nil {
		t.Fatalf("read result: %v", err)
	}
	md := string(result)
	if !strings.Contains(md, "## Page 1") || !strings.Contains(md, "## Page 2") {
		t.Errorf("result missing page sections: %q", md)
	}
	if !strings.Contains(md, "訳文") {
		t.Error("result missing translated text")
	}

	// Intermediate artifacts survive for debugging.
	for page := 1; page <= 2; page++ {
		if _, err := os.Stat(paths.PageOCRPath(page)); err != nil {
			t.Errorf("missing raw OCR dump for page %d", page)
		}
		if _, err := os.Stat(paths.PageMarkdownPath(page)); err != nil {
			t.Errorf("missing page markdown for page %d", page)
		}
	}
	logData, err := os.ReadFile(paths.JobLog)
	if err != nil {
		t.Fatalf("read job log: %v", err)
	}
	if !strings.Contains(string(logData), "Job started") || !strings.Contains(string(logData), "Job completed") {
		t.Errorf("job log incomplete: %q", logData)
	}
}

func TestRunnerOCRFailure(t *testing.T) {
	h := newTestHome(t)
	paths := seedJob(t, h, "job2")

	calls := 0
	ocr := &stubOCR{resultFor: func(string) (any, error) {
		calls++
		if calls == 2 {
			return nil, fmt.Errorf("ocr server unreachable")
		}
		return map[string]any{"blocks": []any{map[string]any{"text": "ok"}}}, nil
	}}

	runner := NewRunner(h, ocr, &stubGenerator{response: "t"}, RunnerConfig{}, nil)
	runner.render = stubRender(t, 3)

	if err := runner.Run(context.Background(), "job2"); err == nil {
		t.Fatal("expected run failure")
	}

	job, err := jobstore.Load(paths.MetaJSON)
	if err != nil {
		t.Fatalf("load meta: %v", err)
	}
	if job.Status != jobstore.StatusFailed {
		t.Errorf("status = %s, want failed", job.Status)
	}
	if job.Stage != "failed" {
		t.Errorf("stage = %q, want failed", job.Stage)
	}
	if job.Error == nil || !strings.Contains(*job.Error, "ocr server unreachable") {
		t.Errorf("error = %v, want ocr failure message", job.Error)
	}
	if job.ResultPath != nil {
		t.Error("failed job must not carry a result path")
	}
	if calls != 2 {
		t.Errorf("ocr calls = %d, want 2 (fail fast)", calls)
	}
}

func TestRunnerTranslationFailure(t *testing.T) {
	h := newTestHome(t)
	paths := seedJob(t, h, "job3")

	ocr := &stubOCR{resultFor: func(string) (any, error) {
		return map[string]any{"blocks": []any{map[string]any{"text": "source"}}}, nil
	}}
	translator := &stubGenerator{err: fmt.Errorf("model not loaded")}

	runner := NewRunner(h, ocr, translator, RunnerConfig{}, nil)
	runner.render = stubRender(t, 1)

	if err := runner.Run(context.Background(), "job3"); err == nil {
		t.Fatal("expected run failure")
	}
	job, err := jobstore.Load(paths.MetaJSON)
	if err != nil {
		t.Fatalf("load meta: %v", err)
	}
	if job.Status != jobstore.StatusFailed {
		t.Errorf("status = %s, want failed", job.Status)
	}
	if job.Error == nil || !strings.Contains(*job.Error, "model not loaded") {
		t.Errorf("error = %v, want translation failure", job.Error)
	}
}

func TestPageProgress(t *testing.T) {
	if got := pageProgress(0, 4); got != 0.20 {
		t.Errorf("pageProgress(0,4) = %v, want 0.20", got)
	}
	if got := pageProgress(4, 4); got != 0.95 {
		t.Errorf("pageProgress(4,4) = %v, want capped at 0.95", got)
	}
	if got := pageProgress(2, 4); got <= 0.20 || got >= 0.95 {
		t.Errorf("pageProgress(2,4) = %v, want inside the page band", got)
	}
}
