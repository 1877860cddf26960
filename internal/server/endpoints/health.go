package endpoints

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/kyamashita/honyaku/internal/api"
	"github.com/kyamashita/honyaku/internal/ollama"
	"github.com/kyamashita/honyaku/internal/svcctx"
)

// HealthResponse is the response for health check endpoints.
type HealthResponse struct {
	Status     string `json:"status"`
	OCR        string `json:"ocr,omitempty"`
	Translator string `json:"translator,omitempty"`
}

// HealthEndpoint handles GET /health. Liveness only: it answers as long as
// the process serves HTTP.
type HealthEndpoint struct{}

func (e *HealthEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/health", e.handler
}

func (e *HealthEndpoint) RequiresInit() bool { return false }

func (e *HealthEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (e *HealthEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp HealthResponse
			if err := client.Get(cmd.Context(), "/health", &resp); err != nil {
				return err
			}
			fmt.Printf("Status: %s\n", resp.Status)
			return nil
		},
	}
}

// ReadyEndpoint handles GET /ready. Readiness probes the configured OCR and
// translation backends; either one unreachable degrades the status to 503.
type ReadyEndpoint struct{}

func (e *ReadyEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/ready", e.handler
}

func (e *ReadyEndpoint) RequiresInit() bool { return false }

func (e *ReadyEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", OCR: "ok", Translator: "ok"}

	cm := svcctx.ConfigManagerFrom(r.Context())
	if cm == nil {
		resp.Status = "degraded"
		resp.OCR = "not_initialized"
		resp.Translator = "not_initialized"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}

	cfg := cm.Get()
	if err := probeBase(r, cfg.OCR.BaseURL); err != nil {
		resp.Status = "degraded"
		resp.OCR = "unreachable"
	}
	if err := probeBase(r, cfg.Translate.BaseURL); err != nil {
		resp.Status = "degraded"
		resp.Translator = "unreachable"
	}

	if resp.Status != "ok" {
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// probeBase checks that something answers HTTP at the base URL. Any status
// counts as reachable.
func probeBase(r *http.Request, baseURL string) error {
	if baseURL == "" {
		return fmt.Errorf("no base url configured")
	}
	client := &http.Client{Timeout: 2 * time.Second}
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, baseURL, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (e *ReadyEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "ready",
		Short: "Check server readiness (probes OCR and translation backends)",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp HealthResponse
			if err := client.Get(cmd.Context(), "/ready", &resp); err != nil {
				return err
			}
			fmt.Printf("Status:     %s\n", resp.Status)
			fmt.Printf("OCR:        %s\n", resp.OCR)
			fmt.Printf("Translator: %s\n", resp.Translator)
			return nil
		},
	}
}

// StatusResponse is the detailed status response.
type StatusResponse struct {
	Server    string       `json:"server"`
	OCR       string       `json:"ocr_provider"`
	Translate string       `json:"translator"`
	Ollama    OllamaStatus `json:"ollama"`
}

// OllamaStatus shows the managed Ollama container state.
type OllamaStatus struct {
	Container string `json:"container"`
	URL       string `json:"url,omitempty"`
}

// StatusEndpoint handles GET /status.
type StatusEndpoint struct {
	// OllamaManager is set by server since container management is optional.
	OllamaManager *ollama.DockerManager
}

func (e *StatusEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/status", e.handler
}

func (e *StatusEndpoint) RequiresInit() bool { return false }

func (e *StatusEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{Server: "running"}

	if ocr := svcctx.OCRFrom(r.Context()); ocr != nil {
		resp.OCR = ocr.Name()
	}
	if tr := svcctx.TranslatorFrom(r.Context()); tr != nil {
		resp.Translate = tr.Name()
	}

	if e.OllamaManager != nil {
		status, err := e.OllamaManager.Status(r.Context())
		if err != nil {
			resp.Ollama.Container = "error"
		} else {
			resp.Ollama.Container = string(status)
		}
		resp.Ollama.URL = e.OllamaManager.URL()
	} else {
		resp.Ollama.Container = "unmanaged"
	}

	writeJSON(w, http.StatusOK, resp)
}

func (e *StatusEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Get detailed server status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp StatusResponse
			if err := client.Get(cmd.Context(), "/status", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
