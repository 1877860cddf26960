// Package jobs coordinates job execution on top of the pipeline runner and
// the file-backed job store.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/kyamashita/honyaku/internal/home"
	"github.com/kyamashita/honyaku/internal/jobstore"
)

// ErrResultNotReady is returned when a result is requested before the job
// reached the succeeded state.
var ErrResultNotReady = errors.New("job result not available")

// Runner executes one job to a terminal state. Implemented by
// pipeline.Runner.
type Runner interface {
	Run(ctx context.Context, jobID string) error
}

// Manager runs jobs in the background and answers read queries from the
// persisted records. One manager serves the whole process.
type Manager struct {
	home   *home.Dir
	runner Runner
	logger *slog.Logger

	mu      sync.Mutex
	running map[string]struct{}
	wg      sync.WaitGroup
}

// NewManager creates a job manager.
func NewManager(h *home.Dir, runner Runner, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		home:    h,
		runner:  runner,
		logger:  logger,
		running: make(map[string]struct{}),
	}
}

// CreateAndRun starts background processing for a job whose working tree and
// record already exist on disk. Starting the same job twice is an error: the
// runner is the sole writer for a job id.
func (m *Manager) CreateAndRun(ctx context.Context, jobID string) error {
	m.mu.Lock()
	if _, ok := m.running[jobID]; ok {
		m.mu.Unlock()
		return fmt.Errorf("job %s is already running", jobID)
	}
	m.running[jobID] = struct{}{}
	m.mu.Unlock()

	// The job must outlive the request that created it.
	runCtx := context.WithoutCancel(ctx)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer func() {
			m.mu.Lock()
			delete(m.running, jobID)
			m.mu.Unlock()
		}()
		if err := m.runner.Run(runCtx, jobID); err != nil {
			m.logger.Error("job run failed", "job_id", jobID, "error", err)
		}
	}()
	return nil
}

// Running reports whether the job currently has an active runner.
func (m *Manager) Running(jobID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.running[jobID]
	return ok
}

// Wait blocks until all in-flight jobs finish. Used during shutdown.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Get loads the persisted record for a job.
func (m *Manager) Get(jobID string) (jobstore.Job, error) {
	return jobstore.Load(m.home.JobPaths(jobID).MetaJSON)
}

// ResultPath returns the absolute path of the merged result document. The
// job must exist and have succeeded.
func (m *Manager) ResultPath(jobID string) (string, error) {
	job, err := m.Get(jobID)
	if err != nil {
		return "", err
	}
	if job.Status != jobstore.StatusSucceeded || job.ResultPath == nil {
		return "", ErrResultNotReady
	}
	path := m.home.AbsPath(*job.ResultPath)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("result file missing: %w", err)
	}
	return path, nil
}

// PageMarkdownPath returns the absolute path of one page's rendered Markdown,
// which exists as soon as that page finished processing.
func (m *Manager) PageMarkdownPath(jobID string, pageNum int) (string, error) {
	if pageNum < 1 {
		return "", fmt.Errorf("page number must be positive")
	}
	if _, err := m.Get(jobID); err != nil {
		return "", err
	}
	path := m.home.JobPaths(jobID).PageMarkdownPath(pageNum)
	if _, err := os.Stat(path); err != nil {
		return "", jobstore.ErrNotFound
	}
	return path, nil
}
