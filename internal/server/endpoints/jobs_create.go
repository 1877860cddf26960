package endpoints

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kyamashita/honyaku/internal/api"
	"github.com/kyamashita/honyaku/internal/jobstore"
	"github.com/kyamashita/honyaku/internal/svcctx"
)

// CreateJobResponse is returned after a successful upload.
type CreateJobResponse struct {
	JobID string `json:"job_id"`
}

// CreateJobEndpoint handles POST /jobs with a multipart PDF upload. The job
// starts processing in the background immediately; the response carries only
// the id the client polls with.
type CreateJobEndpoint struct{}

var _ api.Endpoint = (*CreateJobEndpoint)(nil)

func (e *CreateJobEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/jobs", e.handler
}

func (e *CreateJobEndpoint) RequiresInit() bool { return true }

func (e *CreateJobEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	const maxMemory = 500 << 20 // 500MB
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to parse form: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to read upload: %v", err))
		return
	}

	// Sniff the content, not the filename: a renamed text file is rejected.
	if mt := mimetype.Detect(data); !mt.Is("application/pdf") {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("uploaded file is not a PDF (detected %s)", mt.String()))
		return
	}

	homeDir := svcctx.HomeFrom(r.Context())
	manager := svcctx.JobManagerFrom(r.Context())
	if homeDir == nil || manager == nil {
		writeError(w, http.StatusServiceUnavailable, "server not fully initialized")
		return
	}

	jobID := strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := homeDir.EnsureJobDirs(jobID); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to create job directories: %v", err))
		return
	}
	paths := homeDir.JobPaths(jobID)

	if err := os.WriteFile(paths.InputPDF, data, 0o644); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to store upload: %v", err))
		return
	}

	job := jobstore.InitMeta(jobID, header.Filename, map[string]any{
		"input_bytes": len(data),
	})
	if err := jobstore.Save(paths.MetaJSON, job); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to persist job record: %v", err))
		return
	}

	if err := manager.CreateAndRun(r.Context(), jobID); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to start job: %v", err))
		return
	}

	if logger := svcctx.LoggerFrom(r.Context()); logger != nil {
		logger.Info("job created", "job_id", jobID, "filename", header.Filename, "bytes", len(data))
	}

	writeJSON(w, http.StatusCreated, CreateJobResponse{JobID: jobID})
}

func (e *CreateJobEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "create <file.pdf>",
		Short: "Upload a PDF and start a translation job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp CreateJobResponse
			if err := client.Upload(cmd.Context(), "/jobs", "file", args[0], &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
