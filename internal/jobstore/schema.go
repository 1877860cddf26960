package jobstore

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// jobRecordSchema validates persisted records before they are trusted.
// It mirrors the Job struct; unknown extra keys are allowed only inside
// the extra bag.
const jobRecordSchema = `{
  "type": "object",
  "required": ["job_id", "filename", "status", "progress", "stage", "created_at", "updated_at"],
  "properties": {
    "job_id":      {"type": "string", "minLength": 1},
    "filename":    {"type": "string"},
    "status":      {"enum": ["queued", "running", "succeeded", "failed"]},
    "progress":    {"type": "number", "minimum": 0.0, "maximum": 1.0},
    "stage":       {"type": "string"},
    "error":       {"type": ["string", "null"]},
    "created_at":  {"type": "string"},
    "updated_at":  {"type": "string"},
    "result_path": {"type": ["string", "null"]},
    "extra":       {"type": "object"}
  }
}`

var compiledJobSchema = jsonschema.MustCompileString("job.schema.json", jobRecordSchema)

// validateRecord checks raw record bytes against the job schema.
func validateRecord(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var value any
	if err := dec.Decode(&value); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := compiledJobSchema.Validate(value); err != nil {
		return err
	}
	return nil
}
