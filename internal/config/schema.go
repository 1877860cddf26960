package config

import "strings"

// Config holds honyaku configuration.
// Stored at: {home}/config.yaml
type Config struct {
	OCR       OCRCfg       `mapstructure:"ocr" yaml:"ocr"`
	Translate TranslateCfg `mapstructure:"translate" yaml:"translate"`
	Render    RenderCfg    `mapstructure:"render" yaml:"render"`
	Server    ServerCfg    `mapstructure:"server" yaml:"server"`
	Ollama    OllamaCfg    `mapstructure:"ollama" yaml:"ollama"`
}

// OCRCfg configures the OCR service client.
type OCRCfg struct {
	BaseURL    string  `mapstructure:"base_url" yaml:"base_url"`       // OCR server base URL
	ParsePaths string  `mapstructure:"parse_paths" yaml:"parse_paths"` // Comma-separated candidate paths, tried in order
	Plugin     string  `mapstructure:"plugin" yaml:"plugin"`           // In-process plugin name (empty = HTTP)
	Model      string  `mapstructure:"model" yaml:"model"`             // Model name for chat-completions style servers
	Prompt     string  `mapstructure:"prompt" yaml:"prompt"`           // Recognition prompt override
	APIKey     string  `mapstructure:"api_key" yaml:"api_key"`         // Optional bearer token (supports ${ENV_VAR} syntax)
	TimeoutSec float64 `mapstructure:"timeout_sec" yaml:"timeout_sec"`
}

// TranslateCfg configures the language-model translator client.
type TranslateCfg struct {
	Type       string  `mapstructure:"type" yaml:"type"` // "ollama" or "openai"
	BaseURL    string  `mapstructure:"base_url" yaml:"base_url"`
	Model      string  `mapstructure:"model" yaml:"model"`
	APIKey     string  `mapstructure:"api_key" yaml:"api_key"` // For openai type (supports ${ENV_VAR} syntax)
	Language   string  `mapstructure:"language" yaml:"language"`
	MaxChars   int     `mapstructure:"max_chars" yaml:"max_chars"`   // Max characters per translation request
	RateLimit  float64 `mapstructure:"rate_limit" yaml:"rate_limit"` // Requests per second (0 = unlimited)
	TimeoutSec float64 `mapstructure:"timeout_sec" yaml:"timeout_sec"`
}

// RenderCfg configures PDF rasterization.
type RenderCfg struct {
	DPI int `mapstructure:"dpi" yaml:"dpi"`
}

// ServerCfg configures the HTTP server.
type ServerCfg struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port string `mapstructure:"port" yaml:"port"`
}

// OllamaCfg holds managed Ollama container configuration.
type OllamaCfg struct {
	// Managed starts the container alongside the server when true.
	Managed bool `mapstructure:"managed" yaml:"managed"`
	// ContainerName is the Docker container name (default: honyaku-ollama)
	ContainerName string `mapstructure:"container_name" yaml:"container_name"`
	// Image is the Docker image to use (default: ollama/ollama:latest)
	Image string `mapstructure:"image" yaml:"image"`
	// Port is the host port to bind (default: 11434)
	Port string `mapstructure:"port" yaml:"port"`
	// ModelsPath is the host path mounted for model storage
	ModelsPath string `mapstructure:"models_path" yaml:"models_path"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		OCR: OCRCfg{
			BaseURL:    "http://127.0.0.1:8080",
			ParsePaths: "/ocr,/v1/ocr,/parse",
			TimeoutSec: 30.0,
		},
		Translate: TranslateCfg{
			Type:       "ollama",
			BaseURL:    "http://127.0.0.1:11434",
			Model:      "translategemma:12b-it-q4_K_M",
			Language:   "Japanese",
			MaxChars:   1000,
			TimeoutSec: 120.0,
		},
		Render: RenderCfg{
			DPI: 350,
		},
		Server: ServerCfg{
			Host: "127.0.0.1",
			Port: "8000",
		},
		Ollama: OllamaCfg{
			ContainerName: "honyaku-ollama",
			Image:         "ollama/ollama:latest",
			Port:          "11434",
		},
	}
}

// ParsePathList splits the configured OCR candidate paths, normalizing each
// to a leading slash. Falls back to /ocr if the list resolves empty.
func (c OCRCfg) ParsePathList() []string {
	var paths []string
	for _, item := range strings.Split(c.ParsePaths, ",") {
		path := strings.TrimSpace(item)
		if path == "" {
			continue
		}
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		paths = append(paths, path)
	}
	if len(paths) == 0 {
		return []string{"/ocr"}
	}
	return paths
}
