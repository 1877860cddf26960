// Package svcctx provides service context for dependency injection via context.
// This package is separate from server to avoid import cycles with endpoints.
package svcctx

import (
	"context"
	"log/slog"

	"github.com/kyamashita/honyaku/internal/config"
	"github.com/kyamashita/honyaku/internal/home"
	"github.com/kyamashita/honyaku/internal/jobs"
	"github.com/kyamashita/honyaku/internal/ollama"
	"github.com/kyamashita/honyaku/internal/pipeline"
	"github.com/kyamashita/honyaku/internal/providers"
)

// Services holds all core services that flow through context.
// Components extract what they need via the individual extractors.
type Services struct {
	JobManager    *jobs.Manager
	OCR           providers.OCRProvider
	Translator    providers.Translator
	Runner        *pipeline.Runner
	ConfigManager *config.Manager
	Logger        *slog.Logger
	Home          *home.Dir
	OllamaManager *ollama.DockerManager
}

type servicesKey struct{}

// WithServices returns a new context with services attached.
func WithServices(ctx context.Context, s *Services) context.Context {
	return context.WithValue(ctx, servicesKey{}, s)
}

// ServicesFrom extracts the full Services struct from context.
// Returns nil if not present.
func ServicesFrom(ctx context.Context) *Services {
	s, _ := ctx.Value(servicesKey{}).(*Services)
	return s
}

// JobManagerFrom extracts the job manager from context.
func JobManagerFrom(ctx context.Context) *jobs.Manager {
	if s := ServicesFrom(ctx); s != nil {
		return s.JobManager
	}
	return nil
}

// OCRFrom extracts the OCR provider from context.
func OCRFrom(ctx context.Context) providers.OCRProvider {
	if s := ServicesFrom(ctx); s != nil {
		return s.OCR
	}
	return nil
}

// TranslatorFrom extracts the translator from context.
func TranslatorFrom(ctx context.Context) providers.Translator {
	if s := ServicesFrom(ctx); s != nil {
		return s.Translator
	}
	return nil
}

// ConfigManagerFrom extracts the config manager from context.
func ConfigManagerFrom(ctx context.Context) *config.Manager {
	if s := ServicesFrom(ctx); s != nil {
		return s.ConfigManager
	}
	return nil
}

// LoggerFrom extracts the logger from context.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if s := ServicesFrom(ctx); s != nil {
		return s.Logger
	}
	return nil
}

// HomeFrom extracts the home directory from context.
func HomeFrom(ctx context.Context) *home.Dir {
	if s := ServicesFrom(ctx); s != nil {
		return s.Home
	}
	return nil
}

// OllamaManagerFrom extracts the managed Ollama container handle from context.
func OllamaManagerFrom(ctx context.Context) *ollama.DockerManager {
	if s := ServicesFrom(ctx); s != nil {
		return s.OllamaManager
	}
	return nil
}
