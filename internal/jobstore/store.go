// Package jobstore persists job records as JSON files a polling client can
// read directly. The runner is the sole writer for a given job id; the store
// does whole-record read-modify-write with no locking.
package jobstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

// Store errors surfaced to the HTTP layer.
var (
	ErrNotFound = errors.New("job not found")
	ErrCorrupt  = errors.New("job record is corrupt")
)

// Status is the job lifecycle state.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the status permits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Job is the persisted record for one translation job. Field names are part
// of the polling contract and must stay stable.
type Job struct {
	JobID      string         `json:"job_id"`
	Filename   string         `json:"filename"`
	Status     Status         `json:"status"`
	Progress   float64        `json:"progress"`
	Stage      string         `json:"stage"`
	Error      *string        `json:"error"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	ResultPath *string        `json:"result_path"`
	Extra      map[string]any `json:"extra"`
}

// Changes carries the field updates merged over a job by Update. Nil pointers
// leave the current value untouched.
type Changes struct {
	Status     *Status
	Stage      *string
	Progress   *float64
	Error      *string
	ClearError bool
	ResultPath *string
}

// InitMeta creates a fresh Job in queued state with zero progress.
func InitMeta(jobID, filename string, extra map[string]any) Job {
	now := time.Now().UTC()
	if extra == nil {
		extra = map[string]any{}
	}
	return Job{
		JobID:     jobID,
		Filename:  filename,
		Status:    StatusQueued,
		Progress:  0.0,
		Stage:     "uploaded",
		CreatedAt: now,
		UpdatedAt: now,
		Extra:     extra,
	}
}

// Update produces a new Job with the changes merged over the current value
// and a fresh update timestamp. The caller persists the result.
func Update(job Job, changes Changes) Job {
	if changes.Status != nil {
		job.Status = *changes.Status
	}
	if changes.Stage != nil {
		job.Stage = *changes.Stage
	}
	if changes.Progress != nil {
		job.Progress = *changes.Progress
	}
	if changes.ClearError {
		job.Error = nil
	} else if changes.Error != nil {
		job.Error = changes.Error
	}
	if changes.ResultPath != nil {
		job.ResultPath = changes.ResultPath
	}
	job.UpdatedAt = time.Now().UTC()
	return job
}

// Save persists the full job record, overwriting any prior version.
func Save(metaPath string, job Job) error {
	data, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal job record: %w", err)
	}
	if err := os.WriteFile(metaPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write job record: %w", err)
	}
	return nil
}

// Load reads and validates a persisted job record. A missing file maps to
// ErrNotFound; a record that fails to parse or violates the schema maps to
// ErrCorrupt.
func Load(metaPath string) (Job, error) {
	data, err := os.ReadFile(metaPath)
	if err != nil {
		if os.IsNotExist(err) {
			return Job{}, ErrNotFound
		}
		return Job{}, fmt.Errorf("failed to read job record: %w", err)
	}

	if err := validateRecord(data); err != nil {
		return Job{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return Job{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return job, nil
}
