package endpoints

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/kyamashita/honyaku/internal/api"
	"github.com/kyamashita/honyaku/internal/jobstore"
	"github.com/kyamashita/honyaku/internal/svcctx"
)

// GetJobEndpoint handles GET /jobs/{id}, returning the persisted record as
// the polling contract.
type GetJobEndpoint struct{}

var _ api.Endpoint = (*GetJobEndpoint)(nil)

func (e *GetJobEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/jobs/{id}", e.handler
}

func (e *GetJobEndpoint) RequiresInit() bool { return true }

func (e *GetJobEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	manager := svcctx.JobManagerFrom(r.Context())
	if manager == nil {
		writeError(w, http.StatusServiceUnavailable, "job manager not initialized")
		return
	}

	jobID := r.PathValue("id")
	job, err := manager.Get(jobID)
	switch {
	case errors.Is(err, jobstore.ErrNotFound):
		writeError(w, http.StatusNotFound, fmt.Sprintf("job %s not found", jobID))
		return
	case errors.Is(err, jobstore.ErrCorrupt):
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("job record is corrupt: %v", err))
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load job: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, job)
}

func (e *GetJobEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Get a job record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var job jobstore.Job
			if err := client.Get(cmd.Context(), "/jobs/"+args[0], &job); err != nil {
				return err
			}
			return api.Output(job)
		},
	}
}
