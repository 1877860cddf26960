package home

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// DefaultDirName is the default name for the honyaku home directory.
	DefaultDirName = ".honyaku"

	// JobsDirName is the subdirectory holding per-job working trees.
	JobsDirName = "jobs"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"
)

// Dir represents the honyaku home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.honyaku).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// JobsPath returns the path to the jobs directory.
func (d *Dir) JobsPath() string {
	return filepath.Join(d.path, JobsDirName)
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// EnsureExists creates the home directory and subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	// Create jobs directory (this also creates the parent)
	if err := os.MkdirAll(d.JobsPath(), 0o755); err != nil {
		return fmt.Errorf("failed to create jobs directory: %w", err)
	}
	return nil
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}

// JobPaths is the fixed on-disk layout of a single job. It is a pure
// derivation from the job id and carries no state of its own.
type JobPaths struct {
	JobDir   string // jobs/<id>
	InputPDF string // jobs/<id>/input.pdf
	MetaJSON string // jobs/<id>/meta.json
	JobLog   string // jobs/<id>/job.log
	PagesDir string // jobs/<id>/pages
	OCRDir   string // jobs/<id>/ocr
	MDDir    string // jobs/<id>/md
	ResultMD string // jobs/<id>/md/result.md
}

// JobPaths computes the directory layout for a job id.
func (d *Dir) JobPaths(jobID string) JobPaths {
	jobDir := filepath.Join(d.JobsPath(), jobID)
	mdDir := filepath.Join(jobDir, "md")
	return JobPaths{
		JobDir:   jobDir,
		InputPDF: filepath.Join(jobDir, "input.pdf"),
		MetaJSON: filepath.Join(jobDir, "meta.json"),
		JobLog:   filepath.Join(jobDir, "job.log"),
		PagesDir: filepath.Join(jobDir, "pages"),
		OCRDir:   filepath.Join(jobDir, "ocr"),
		MDDir:    mdDir,
		ResultMD: filepath.Join(mdDir, "result.md"),
	}
}

// EnsureJobDirs creates the working tree for a job.
func (d *Dir) EnsureJobDirs(jobID string) error {
	p := d.JobPaths(jobID)
	for _, dir := range []string{p.JobDir, p.PagesDir, p.OCRDir, p.MDDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create job directory %s: %w", dir, err)
		}
	}
	return nil
}

// PageImagePath returns the rendered image path for a 1-indexed page.
func (p JobPaths) PageImagePath(pageNum int) string {
	return filepath.Join(p.PagesDir, fmt.Sprintf("%03d.png", pageNum))
}

// PageOCRPath returns the raw OCR dump path for a 1-indexed page.
func (p JobPaths) PageOCRPath(pageNum int) string {
	return filepath.Join(p.OCRDir, fmt.Sprintf("%03d.json", pageNum))
}

// PageMarkdownPath returns the per-page markdown path for a 1-indexed page.
func (p JobPaths) PageMarkdownPath(pageNum int) string {
	return filepath.Join(p.MDDir, fmt.Sprintf("%03d.md", pageNum))
}

// RelResultPath returns the merged result path relative to the home root,
// which is the form stored in the job record.
func (d *Dir) RelResultPath(jobID string) string {
	p := d.JobPaths(jobID)
	rel, err := filepath.Rel(d.path, p.ResultMD)
	if err != nil {
		return p.ResultMD
	}
	return filepath.ToSlash(rel)
}

// AbsPath resolves a home-relative path from a job record back to an
// absolute path. Already-absolute paths pass through.
func (d *Dir) AbsPath(rel string) string {
	if rel == "" || filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(d.path, filepath.FromSlash(strings.TrimPrefix(rel, "./")))
}
