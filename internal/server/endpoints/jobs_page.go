package endpoints

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/kyamashita/honyaku/internal/api"
	"github.com/kyamashita/honyaku/internal/jobstore"
	"github.com/kyamashita/honyaku/internal/svcctx"
)

// PageEndpoint handles GET /jobs/{id}/pages/{page}, serving one page's
// Markdown as soon as that page finished, even while the job is running.
type PageEndpoint struct{}

var _ api.Endpoint = (*PageEndpoint)(nil)

func (e *PageEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/jobs/{id}/pages/{page}", e.handler
}

func (e *PageEndpoint) RequiresInit() bool { return true }

func (e *PageEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	manager := svcctx.JobManagerFrom(r.Context())
	if manager == nil {
		writeError(w, http.StatusServiceUnavailable, "job manager not initialized")
		return
	}

	jobID := r.PathValue("id")
	pageNum, err := strconv.Atoi(r.PathValue("page"))
	if err != nil || pageNum < 1 {
		writeError(w, http.StatusBadRequest, "page must be a positive integer")
		return
	}

	path, err := manager.PageMarkdownPath(jobID, pageNum)
	switch {
	case errors.Is(err, jobstore.ErrNotFound):
		writeError(w, http.StatusNotFound, fmt.Sprintf("page %d of job %s not found", pageNum, jobID))
		return
	case errors.Is(err, jobstore.ErrCorrupt):
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("job record is corrupt: %v", err))
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to resolve page: %v", err))
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to read page: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (e *PageEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "page <id> <page>",
		Short: "Fetch one page's translated Markdown",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			body, err := client.GetRaw(cmd.Context(), "/jobs/"+args[0]+"/pages/"+args[1])
			if err != nil {
				return err
			}
			fmt.Print(string(body))
			return nil
		},
	}
}
