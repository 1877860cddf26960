package endpoints

import (
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/kyamashita/honyaku/internal/api"
	"github.com/kyamashita/honyaku/internal/jobs"
	"github.com/kyamashita/honyaku/internal/jobstore"
	"github.com/kyamashita/honyaku/internal/svcctx"
)

// ResultEndpoint handles GET /jobs/{id}/result, serving the merged Markdown
// document once the job succeeded.
type ResultEndpoint struct{}

var _ api.Endpoint = (*ResultEndpoint)(nil)

func (e *ResultEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/jobs/{id}/result", e.handler
}

func (e *ResultEndpoint) RequiresInit() bool { return true }

func (e *ResultEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	path, ok := resultPathOrError(w, r)
	if !ok {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to read result: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// resultPathOrError resolves the result file for the request's job id,
// writing the appropriate error response when it is not servable.
func resultPathOrError(w http.ResponseWriter, r *http.Request) (string, bool) {
	manager := svcctx.JobManagerFrom(r.Context())
	if manager == nil {
		writeError(w, http.StatusServiceUnavailable, "job manager not initialized")
		return "", false
	}

	jobID := r.PathValue("id")
	path, err := manager.ResultPath(jobID)
	switch {
	case errors.Is(err, jobstore.ErrNotFound):
		writeError(w, http.StatusNotFound, fmt.Sprintf("job %s not found", jobID))
		return "", false
	case errors.Is(err, jobs.ErrResultNotReady):
		writeError(w, http.StatusNotFound, fmt.Sprintf("result for job %s is not ready", jobID))
		return "", false
	case errors.Is(err, jobstore.ErrCorrupt):
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("job record is corrupt: %v", err))
		return "", false
	case err != nil:
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to resolve result: %v", err))
		return "", false
	}
	return path, true
}

func (e *ResultEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "result <id>",
		Short: "Fetch the translated Markdown for a finished job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			body, err := client.GetRaw(cmd.Context(), "/jobs/"+args[0]+"/result")
			if err != nil {
				return err
			}
			fmt.Print(string(body))
			return nil
		},
	}
}
