package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/kyamashita/honyaku/internal/home"
	"github.com/kyamashita/honyaku/internal/jobstore"
)

// OCRParser is the OCR client contract the runner needs. Provider
// implementations live in internal/providers.
type OCRParser interface {
	Parse(ctx context.Context, imagePath string) (any, error)
}

// Progress checkpoints. Rendering is a small fixed slice up front; page work
// fills the band between progressPagesBase and progressPagesCap; 1.0 is
// reserved for the fully merged result.
const (
	progressRendering = 0.05
	progressPagesBase = 0.20
	progressPagesSpan = 0.75
	progressPagesCap  = 0.95
)

// RunnerConfig carries the per-job pipeline settings.
type RunnerConfig struct {
	DPI      int
	MaxChars int
	Language string
}

// Runner executes one job end to end: render, per-page OCR, reading order,
// translation, Markdown assembly. Every status transition is persisted to the
// job record before the next stage starts, so a polling client always sees a
// consistent state.
type Runner struct {
	home       *home.Dir
	ocr        OCRParser
	translator TextGenerator
	cfg        RunnerConfig
	logger     *slog.Logger

	// render is swappable in tests; production always rasterizes.
	render func(pdfPath, outputDir string, dpi int) ([]string, error)
}

// NewRunner creates a runner bound to a home directory and provider pair.
func NewRunner(h *home.Dir, ocr OCRParser, translator TextGenerator, cfg RunnerConfig, logger *slog.Logger) *Runner {
	if cfg.DPI <= 0 {
		cfg.DPI = 350
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = 1000
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		home:       h,
		ocr:        ocr,
		translator: translator,
		cfg:        cfg,
		logger:     logger,
		render:     RenderPDFToImages,
	}
}

// Run processes the job to a terminal state. Any failure marks the record
// failed with the error message; the record itself never fails to update
// silently. The returned error mirrors what was persisted.
func (r *Runner) Run(ctx context.Context, jobID string) error {
	paths := r.home.JobPaths(jobID)
	log := r.logger.With("job_id", jobID)

	job, err := jobstore.Load(paths.MetaJSON)
	if err != nil {
		return fmt.Errorf("load job record: %w", err)
	}

	r.appendJobLog(paths, "Job started")
	log.Info("job started", "filename", job.Filename)

	if err := r.runStages(ctx, &job, paths, log); err != nil {
		r.appendJobLog(paths, fmt.Sprintf("Job failed: %v", err))
		log.Error("job failed", "error", err)
		r.persist(&job, paths, jobstore.Changes{
			Status: statusPtr(jobstore.StatusFailed),
			Stage:  strPtr("failed"),
			Error:  strPtr(err.Error()),
		}, log)
		return err
	}

	r.appendJobLog(paths, "Job completed")
	log.Info("job completed")
	return nil
}

func (r *Runner) runStages(ctx context.Context, job *jobstore.Job, paths home.JobPaths, log *slog.Logger) error {
	r.persist(job, paths, jobstore.Changes{
		Status:     statusPtr(jobstore.StatusRunning),
		Stage:      strPtr("rendering"),
		Progress:   floatPtr(progressRendering),
		ClearError: true,
	}, log)

	imagePaths, err := r.render(paths.InputPDF, paths.PagesDir, r.cfg.DPI)
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}
	total := len(imagePaths)
	r.appendJobLog(paths, fmt.Sprintf("Rendered %d pages", total))

	var pageMarkdowns []string
	for i, imagePath := range imagePaths {
		pageNum := i + 1
		if err := ctx.Err(); err != nil {
			return err
		}

		r.persist(job, paths, jobstore.Changes{
			Stage:    strPtr(fmt.Sprintf("ocr:%d/%d", pageNum, total)),
			Progress: floatPtr(pageProgress(i, total)),
		}, log)

		markdown, err := r.processPage(ctx, paths, pageNum, imagePath)
		if err != nil {
			return fmt.Errorf("page %d: %w", pageNum, err)
		}
		pageMarkdowns = append(pageMarkdowns, markdown)

		r.persist(job, paths, jobstore.Changes{
			Stage:    strPtr(fmt.Sprintf("done:%d/%d", pageNum, total)),
			Progress: floatPtr(pageProgress(pageNum, total)),
		}, log)
		r.appendJobLog(paths, fmt.Sprintf("Page %d/%d done", pageNum, total))
	}

	if _, err := WriteResultMarkdown(pageMarkdowns, paths.ResultMD); err != nil {
		return fmt.Errorf("write result: %w", err)
	}

	resultPath := r.home.RelResultPath(job.JobID)
	r.persist(job, paths, jobstore.Changes{
		Status:     statusPtr(jobstore.StatusSucceeded),
		Stage:      strPtr("completed"),
		Progress:   floatPtr(1.0),
		ResultPath: &resultPath,
	}, log)
	return nil
}

// processPage runs OCR, normalization, ordering, translation, and rendering
// for one page, returning its Markdown section.
func (r *Runner) processPage(ctx context.Context, paths home.JobPaths, pageNum int, imagePath string) (string, error) {
	raw, err := r.ocr.Parse(ctx, imagePath)
	if err != nil {
		return "", fmt.Errorf("ocr: %w", err)
	}

	// The raw response is kept on disk for debugging and reprocessing.
	if err := dumpRawOCR(raw, paths.PageOCRPath(pageNum)); err != nil {
		return "", err
	}

	page := NormalizeOCRResult(raw, pageNum)
	if page.ImgW == 0 || page.ImgH == 0 {
		if w, h, err := ImageSize(imagePath); err == nil {
			page = page.WithDimensions(w, h)
		}
	}

	page = OrderPageBlocks(page)

	page, err = TranslatePageBlocks(ctx, page, r.translator, r.cfg.MaxChars, r.cfg.Language, nil)
	if err != nil {
		return "", err
	}

	return WritePageMarkdown(page, paths.PageMarkdownPath(pageNum))
}

// pageProgress maps completed-page count into the page band, capped below
// the completion value.
func pageProgress(done, total int) float64 {
	if total <= 0 {
		return progressPagesBase
	}
	p := progressPagesBase + progressPagesSpan*float64(done)/float64(total)
	if p > progressPagesCap {
		return progressPagesCap
	}
	return p
}

// persist merges changes into the record and writes it. A write failure is
// logged and swallowed: the pipeline outcome matters more than one missed
// checkpoint, and the terminal update will be retried by the next call.
func (r *Runner) persist(job *jobstore.Job, paths home.JobPaths, changes jobstore.Changes, log *slog.Logger) {
	*job = jobstore.Update(*job, changes)
	if err := jobstore.Save(paths.MetaJSON, *job); err != nil {
		log.Warn("failed to persist job record", "error", err)
	}
}

// appendJobLog appends one timestamped line to the job's log file. The file
// is opened per line; lines are small and infrequent.
func (r *Runner) appendJobLog(paths home.JobPaths, line string) {
	f, err := os.OpenFile(paths.JobLog, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()
	fmt.Fprintf(f, "%s %s\n", time.Now().UTC().Format(time.RFC3339), line)
}

func dumpRawOCR(raw any, path string) error {
	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal raw ocr: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write raw ocr: %w", err)
	}
	return nil
}

func statusPtr(s jobstore.Status) *jobstore.Status { return &s }
func strPtr(s string) *string                      { return &s }
func floatPtr(f float64) *float64                  { return &f }
