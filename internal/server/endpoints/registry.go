package endpoints

import (
	"github.com/kyamashita/honyaku/internal/api"
	"github.com/kyamashita/honyaku/internal/ollama"
)

// Config holds dependencies needed by some endpoints.
type Config struct {
	OllamaManager *ollama.DockerManager
}

// All returns all endpoint instances.
func All(cfg Config) []api.Endpoint {
	return []api.Endpoint{
		// Health endpoints
		&HealthEndpoint{},
		&ReadyEndpoint{},
		&StatusEndpoint{OllamaManager: cfg.OllamaManager},

		// Job endpoints
		&CreateJobEndpoint{},
		&GetJobEndpoint{},
		&ResultEndpoint{},
		&ResultHTMLEndpoint{},
		&PageEndpoint{},
	}
}
