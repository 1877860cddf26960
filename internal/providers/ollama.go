package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
)

const (
	OllamaName = "ollama"

	ollamaGeneratePath = "/api/generate"
	ollamaTemperature  = 0.2

	ollamaMaxRetries = 3
	ollamaRetryDelay = time.Second
)

// OllamaConfig holds configuration for the Ollama translation client.
type OllamaConfig struct {
	BaseURL    string
	Model      string
	Timeout    time.Duration
	HTTPClient *http.Client // Optional (tests)
}

// OllamaClient implements Translator against a local Ollama server.
type OllamaClient struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllamaClient creates a new Ollama client.
func NewOllamaClient(cfg OllamaConfig) *OllamaClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &OllamaClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		client:  httpClient,
	}
}

// Name returns the provider identifier.
func (c *OllamaClient) Name() string { return OllamaName }

// Generate sends a non-streaming generate request and returns the model
// output. An empty output is an error: a translation chunk that produces
// nothing means the model did not answer.
func (c *OllamaClient) Generate(ctx context.Context, prompt string) (string, error) {
	payload := map[string]any{
		"model":  c.model,
		"prompt": prompt,
		"stream": false,
		"options": map[string]any{
			"temperature": ollamaTemperature,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	var output string
	err = retry.Do(
		func() error {
			output, err = c.generateOnce(ctx, body)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(ollamaMaxRetries),
		retry.Delay(ollamaRetryDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return "", err
	}
	return output, nil
}

func (c *OllamaClient) generateOnce(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+ollamaGeneratePath, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, truncateForError(respBody))
	}

	var data map[string]any
	if err := json.Unmarshal(respBody, &data); err != nil {
		return "", fmt.Errorf("ollama response is not valid JSON: %w", err)
	}

	for _, key := range []string{"response", "text", "output"} {
		if s, ok := data[key].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s), nil
		}
	}
	return "", fmt.Errorf("ollama returned empty output")
}

func truncateForError(body []byte) string {
	const limit = 200
	s := string(body)
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
