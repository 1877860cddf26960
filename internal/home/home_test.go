package home

import (
	"os"
	"path/filepath"
	"testing"
)

func TestJobPathsLayout(t *testing.T) {
	d, err := New("/tmp/honyaku-home")
	if err != nil {
		t.Fatal(err)
	}

	p := d.JobPaths("abc123")
	base := filepath.Join("/tmp/honyaku-home", "jobs", "abc123")

	tests := []struct {
		got  string
		want string
	}{
		{p.JobDir, base},
		{p.InputPDF, filepath.Join(base, "input.pdf")},
		{p.MetaJSON, filepath.Join(base, "meta.json")},
		{p.JobLog, filepath.Join(base, "job.log")},
		{p.ResultMD, filepath.Join(base, "md", "result.md")},
		{p.PageImagePath(3), filepath.Join(base, "pages", "003.png")},
		{p.PageOCRPath(12), filepath.Join(base, "ocr", "012.json")},
		{p.PageMarkdownPath(1), filepath.Join(base, "md", "001.md")},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}

func TestRelResultPathRoundTrip(t *testing.T) {
	d, err := New("/tmp/honyaku-home")
	if err != nil {
		t.Fatal(err)
	}

	rel := d.RelResultPath("j1")
	if rel != "jobs/j1/md/result.md" {
		t.Errorf("unexpected relative path: %q", rel)
	}
	abs := d.AbsPath(rel)
	if abs != d.JobPaths("j1").ResultMD {
		t.Errorf("round trip mismatch: %q", abs)
	}
}

func TestEnsureJobDirs(t *testing.T) {
	root := t.TempDir()
	d, err := New(root)
	if err != nil {
		t.Fatal(err)
	}

	if err := d.EnsureJobDirs("job-1"); err != nil {
		t.Fatalf("EnsureJobDirs failed: %v", err)
	}

	p := d.JobPaths("job-1")
	for _, dir := range []string{p.JobDir, p.PagesDir, p.OCRDir, p.MDDir} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Errorf("expected directory %s to exist", dir)
		}
	}
}

func TestNewDefaultsToUserHome(t *testing.T) {
	d, err := New("")
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(d.Path()) != DefaultDirName {
		t.Errorf("expected default dir name, got %s", d.Path())
	}
}
