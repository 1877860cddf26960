package jobstore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestInitMeta(t *testing.T) {
	job := InitMeta("abc", "x.pdf", map[string]any{"input_bytes": 123})

	if job.Status != StatusQueued {
		t.Errorf("status: got %q, want queued", job.Status)
	}
	if job.Progress != 0.0 {
		t.Errorf("progress: got %v, want 0.0", job.Progress)
	}
	if job.JobID != "abc" || job.Filename != "x.pdf" {
		t.Errorf("identity mismatch: %+v", job)
	}
	if job.Error != nil || job.ResultPath != nil {
		t.Error("new job must have nil error and result path")
	}
	if job.CreatedAt.IsZero() || !job.CreatedAt.Equal(job.UpdatedAt) {
		t.Error("timestamps must be set and equal at init")
	}
}

func TestUpdateMergesChanges(t *testing.T) {
	job := InitMeta("abc", "x.pdf", nil)
	before := job.UpdatedAt
	time.Sleep(time.Millisecond)

	running := StatusRunning
	stage := "ocr:1/3"
	progress := 0.35
	updated := Update(job, Changes{Status: &running, Stage: &stage, Progress: &progress})

	if updated.Status != StatusRunning || updated.Stage != "ocr:1/3" || updated.Progress != 0.35 {
		t.Errorf("changes not applied: %+v", updated)
	}
	if !updated.UpdatedAt.After(before) {
		t.Error("UpdatedAt not refreshed")
	}
	// Untouched fields survive the merge.
	if updated.JobID != "abc" || updated.Filename != "x.pdf" {
		t.Errorf("identity lost in merge: %+v", updated)
	}
	// The original value is unchanged.
	if job.Status != StatusQueued {
		t.Error("Update mutated its input")
	}
}

func TestUpdateErrorHandling(t *testing.T) {
	job := InitMeta("abc", "x.pdf", nil)

	msg := "boom"
	failed := Update(job, Changes{Error: &msg})
	if failed.Error == nil || *failed.Error != "boom" {
		t.Fatalf("error not set: %+v", failed.Error)
	}

	cleared := Update(failed, Changes{ClearError: true})
	if cleared.Error != nil {
		t.Error("ClearError did not clear the error")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	metaPath := filepath.Join(dir, "meta.json")

	job := InitMeta("job-1", "doc.pdf", map[string]any{"input_bytes": float64(42)})
	if err := Save(metaPath, job); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(metaPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.JobID != job.JobID || loaded.Status != job.Status || loaded.Progress != job.Progress {
		t.Errorf("round trip mismatch: got %+v, want %+v", loaded, job)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestLoadCorruptRecords(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", "not json at all"},
		{"missing required fields", `{"job_id": "x"}`},
		{"bad status", `{"job_id":"x","filename":"f","status":"exploded","progress":0,"stage":"s","created_at":"2026-01-01T00:00:00Z","updated_at":"2026-01-01T00:00:00Z"}`},
		{"progress out of range", `{"job_id":"x","filename":"f","status":"running","progress":1.5,"stage":"s","created_at":"2026-01-01T00:00:00Z","updated_at":"2026-01-01T00:00:00Z"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			metaPath := filepath.Join(dir, "meta.json")
			if err := os.WriteFile(metaPath, []byte(tt.data), 0o644); err != nil {
				t.Fatal(err)
			}
			_, err := Load(metaPath)
			if !errors.Is(err, ErrCorrupt) {
				t.Errorf("got %v, want ErrCorrupt", err)
			}
		})
	}
}

func TestSaveOverwrites(t *testing.T) {
	dir := t.TempDir()
	metaPath := filepath.Join(dir, "meta.json")

	job := InitMeta("job-1", "doc.pdf", nil)
	if err := Save(metaPath, job); err != nil {
		t.Fatal(err)
	}

	done := StatusSucceeded
	progress := 1.0
	updated := Update(job, Changes{Status: &done, Progress: &progress})
	if err := Save(metaPath, updated); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(metaPath)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Status != StatusSucceeded || loaded.Progress != 1.0 {
		t.Errorf("overwrite not visible: %+v", loaded)
	}
}
