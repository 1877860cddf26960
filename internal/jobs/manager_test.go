package jobs

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/kyamashita/honyaku/internal/home"
	"github.com/kyamashita/honyaku/internal/jobstore"
)

// blockingRunner holds a job open until released, so start/stop bookkeeping
// can be observed mid-run.
type blockingRunner struct {
	started chan string
	release chan struct{}
}

func (r *blockingRunner) Run(ctx context.Context, jobID string) error {
	r.started <- jobID
	select {
	case <-r.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
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

func seedJob(t *testing.T, h *home.Dir, jobID string, job jobstore.Job) home.JobPaths {
	t.Helper()
	if err := h.EnsureJobDirs(jobID); err != nil {
		t.Fatalf("EnsureJobDirs: %v", err)
	}
	paths := h.JobPaths(jobID)
	if err := jobstore.Save(paths.MetaJSON, job); err != nil {
		t.Fatalf("save meta: %v", err)
	}
	return paths
}

func succeededJob(jobID, resultPath string) jobstore.Job {
	status := jobstore.StatusSucceeded
	stage := "completed"
	progress := 1.0
	return jobstore.Update(jobstore.InitMeta(jobID, "doc.pdf", nil), jobstore.Changes{
		Status:     &status,
		Stage:      &stage,
		Progress:   &progress,
		ResultPath: &resultPath,
	})
}

func TestManagerGet(t *testing.T) {
	h := newTestHome(t)
	m := NewManager(h, nil, nil)

	seedJob(t, h, "j1", jobstore.InitMeta("j1", "doc.pdf", nil))

	job, err := m.Get("j1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if job.JobID != "j1" || job.Status != jobstore.StatusQueued {
		t.Errorf("unexpected job: %+v", job)
	}

	if _, err := m.Get("missing"); !errors.Is(err, jobstore.ErrNotFound) {
		t.Errorf("Get(missing) = %v, want ErrNotFound", err)
	}
}

func TestManagerResultPath(t *testing.T) {
	h := newTestHome(t)
	m := NewManager(h, nil, nil)

	// Not succeeded yet.
	seedJob(t, h, "pending", jobstore.InitMeta("pending", "doc.pdf", nil))
	if _, err := m.ResultPath("pending"); !errors.Is(err, ErrResultNotReady) {
		t.Errorf("ResultPath(pending) = %v, want ErrResultNotReady", err)
	}

	// Succeeded with the file on disk.
	paths := seedJob(t, h, "done", succeededJob("done", h.RelResultPath("done")))
	if err := os.WriteFile(paths.ResultMD, []byte("## Page 1\n"), 0o644); err != nil {
		t.Fatalf("write result: %v", err)
	}
	got, err := m.ResultPath("done")
	if err != nil {
		t.Fatalf("ResultPath failed: %v", err)
	}
	if got != paths.ResultMD {
		t.Errorf("ResultPath = %q, want %q", got, paths.ResultMD)
	}

	// Succeeded but the file vanished.
	seedJob(t, h, "gone", succeededJob("gone", h.RelResultPath("gone")))
	if _, err := m.ResultPath("gone"); err == nil {
		t.Error("expected error for missing result file")
	}
}

func TestManagerPageMarkdownPath(t *testing.T) {
	h := newTestHome(t)
	m := NewManager(h, nil, nil)

	paths := seedJob(t, h, "j1", jobstore.InitMeta("j1", "doc.pdf", nil))
	pagePath := paths.PageMarkdownPath(1)
	if err := os.WriteFile(pagePath, []byte("## Page 1\n"), 0o644); err != nil {
		t.Fatalf("write page markdown: %v", err)
	}

	got, err := m.PageMarkdownPath("j1", 1)
	if err != nil {
		t.Fatalf("PageMarkdownPath failed: %v", err)
	}
	if got != pagePath {
		t.Errorf("got %q, want %q", got, pagePath)
	}

	if _, err := m.PageMarkdownPath("j1", 2); !errors.Is(err, jobstore.ErrNotFound) {
		t.Errorf("missing page = %v, want ErrNotFound", err)
	}
	if _, err := m.PageMarkdownPath("j1", 0); err == nil {
		t.Error("expected error for non-positive page number")
	}
}

func TestManagerSingleFlight(t *testing.T) {
	h := newTestHome(t)

	runner := &blockingRunner{started: make(chan string, 1), release: make(chan struct{})}
	m := NewManager(h, runner, nil)
	seedJob(t, h, "j1", jobstore.InitMeta("j1", "doc.pdf", nil))

	if err := m.CreateAndRun(context.Background(), "j1"); err != nil {
		t.Fatalf("CreateAndRun failed: %v", err)
	}

	select {
	case id := <-runner.started:
		if id != "j1" {
			t.Fatalf("runner started for %q, want j1", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("runner never started")
	}

	// Second start for the same id must be rejected while the first runs.
	if !m.Running("j1") {
		t.Error("Running(j1) = false while job is in flight")
	}
	if err := m.CreateAndRun(context.Background(), "j1"); err == nil {
		t.Error("expected second CreateAndRun to fail")
	}

	close(runner.release)
	m.Wait()
	if m.Running("j1") {
		t.Error("job still marked running after completion")
	}
}

// RunSurvivesRequestCancellation: the background job keeps its context alive
// after the creating request's context is cancelled.
func TestManagerRunSurvivesRequestCancellation(t *testing.T) {
	h := newTestHome(t)

	runner := &blockingRunner{started: make(chan string, 1), release: make(chan struct{})}
	m := NewManager(h, runner, nil)
	seedJob(t, h, "j1", jobstore.InitMeta("j1", "doc.pdf", nil))

	ctx, cancel := context.WithCancel(context.Background())
	if err := m.CreateAndRun(ctx, "j1"); err != nil {
		t.Fatalf("CreateAndRun failed: %v", err)
	}
	<-runner.started
	cancel()

	// The runner must still be blocked on release, not cancelled.
	time.Sleep(20 * time.Millisecond)
	if !m.Running("j1") {
		t.Fatal("job was cancelled with its creating request")
	}

	close(runner.release)
	m.Wait()
}
