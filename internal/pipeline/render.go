package pipeline

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// Rendering errors. Zero rendered pages is fatal for the pipeline.
var (
	ErrInvalidDPI = errors.New("dpi must be a positive integer")
	ErrNoPages    = errors.New("no pages were rendered from PDF")
)

// RenderPDFToImages rasterizes every page of pdfPath into outputDir, one PNG
// per page named by a fixed-width 1-based index, and returns the ordered list
// of image paths. The output directory is created if absent. Rendering is
// local and deterministic; there are no retries.
func RenderPDFToImages(pdfPath, outputDir string, dpi int) ([]string, error) {
	if dpi <= 0 {
		return nil, ErrInvalidDPI
	}
	if _, err := os.Stat(pdfPath); err != nil {
		return nil, fmt.Errorf("PDF not found: %s", pdfPath)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	f, err := os.Open(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	pageCount, err := api.PageCount(f, nil)
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to parse PDF: %w", err)
	}
	if pageCount == 0 {
		return nil, ErrNoPages
	}

	// Pages render concurrently; rasterization is CPU-bound and local.
	maxWorkers := runtime.NumCPU()

	type result struct {
		pageNum int
		err     error
	}

	results := make(chan result, pageCount)
	sem := make(chan struct{}, maxWorkers)

	for page := 1; page <= pageCount; page++ {
		sem <- struct{}{} // acquire
		go func(pageNum int) {
			defer func() { <-sem }() // release
			results <- result{pageNum: pageNum, err: renderPage(pdfPath, outputDir, pageNum, dpi)}
		}(page)
	}

	for i := 0; i < pageCount; i++ {
		r := <-results
		if r.err != nil {
			return nil, fmt.Errorf("failed to render page %d: %w", r.pageNum, r.err)
		}
	}

	paths := make([]string, pageCount)
	for page := 1; page <= pageCount; page++ {
		paths[page-1] = filepath.Join(outputDir, fmt.Sprintf("%03d.png", page))
	}
	return paths, nil
}

// renderPage rasterizes a single page using pdftoppm.
func renderPage(pdfPath, outDir string, pageNum, dpi int) error {
	tmpDir, err := os.MkdirTemp("", "honyaku-page-*")
	if err != nil {
		return fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	// Output prefix for pdftoppm
	outputPrefix := filepath.Join(tmpDir, "page")

	// -png: output PNG format
	// -f/-l N: page range (single page)
	// -r: resolution in DPI
	// -singlefile: don't add page number suffix
	pageStr := strconv.Itoa(pageNum)
	cmd := exec.Command("pdftoppm",
		"-png",
		"-f", pageStr,
		"-l", pageStr,
		"-r", strconv.Itoa(dpi),
		"-singlefile",
		pdfPath,
		outputPrefix,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("pdftoppm failed: %w (output: %s)", err, string(output))
	}

	srcPath := outputPrefix + ".png"
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return fmt.Errorf("pdftoppm did not create expected output: %w", err)
	}

	dstPath := filepath.Join(outDir, fmt.Sprintf("%03d.png", pageNum))
	if err := os.WriteFile(dstPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write page image: %w", err)
	}

	return nil
}
