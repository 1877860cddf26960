package providers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
)

const (
	HTTPOCRName = "http"

	defaultOCRPrompt = "Recognize the text in the image and output in Markdown format."

	ocrMaxRetries = 3
	ocrRetryDelay = 500 * time.Millisecond
)

// HTTPOCRConfig holds configuration for the HTTP OCR client.
type HTTPOCRConfig struct {
	BaseURL    string
	ParsePaths []string // Candidate server paths, tried in order
	Model      string   // Sent to chat-completions style servers
	Prompt     string   // Recognition prompt for chat-completions style servers
	APIKey     string   // Optional bearer token
	Timeout    time.Duration
	HTTPClient *http.Client // Optional (tests)
}

// HTTPOCRClient implements OCRProvider against an OCR server whose exact API
// shape is not known in advance: each candidate path is tried in order until
// one returns a decodable JSON object.
type HTTPOCRClient struct {
	baseURL    string
	parsePaths []string
	model      string
	prompt     string
	apiKey     string
	client     *http.Client
}

// NewHTTPOCRClient creates a new HTTP OCR client.
func NewHTTPOCRClient(cfg HTTPOCRConfig) *HTTPOCRClient {
	if len(cfg.ParsePaths) == 0 {
		cfg.ParsePaths = []string{"/ocr"}
	}
	if cfg.Prompt == "" {
		cfg.Prompt = defaultOCRPrompt
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &HTTPOCRClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		parsePaths: cfg.ParsePaths,
		model:      cfg.Model,
		prompt:     cfg.Prompt,
		apiKey:     cfg.APIKey,
		client:     httpClient,
	}
}

// Name returns the provider identifier.
func (c *HTTPOCRClient) Name() string { return HTTPOCRName }

// Parse posts the image to each candidate path in order and returns the
// first decodable JSON object. Transport errors and retryable statuses are
// retried per path; a path that answers with a non-retryable error status
// is skipped in favor of the next candidate. A response that is not valid
// JSON, or not a JSON object, fails immediately.
func (c *HTTPOCRClient) Parse(ctx context.Context, imagePath string) (any, error) {
	if _, err := os.Stat(imagePath); err != nil {
		return nil, fmt.Errorf("image not found: %s", imagePath)
	}

	var pathErrs []string
	for _, path := range c.parsePaths {
		url := c.baseURL + path

		body, status, err := c.postWithRetry(ctx, path, url, imagePath)
		if err != nil {
			pathErrs = append(pathErrs, fmt.Sprintf("%s: %v", url, err))
			continue
		}
		if status >= 400 {
			pathErrs = append(pathErrs, fmt.Sprintf("%s: status=%d", url, status))
			continue
		}

		var data any
		if err := json.Unmarshal(body, &data); err != nil {
			return nil, fmt.Errorf("OCR response is not valid JSON: %w", err)
		}
		obj, ok := data.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("OCR response JSON must be an object")
		}
		return obj, nil
	}

	joined := "unknown error"
	if len(pathErrs) > 0 {
		joined = strings.Join(pathErrs, "; ")
	}
	return nil, fmt.Errorf("failed to parse image via OCR server: %s", joined)
}

// postWithRetry issues the request for one candidate path, retrying on
// transport errors and retryable statuses (429, 5xx).
func (c *HTTPOCRClient) postWithRetry(ctx context.Context, path, url, imagePath string) ([]byte, int, error) {
	var body []byte
	var status int

	err := retry.Do(
		func() error {
			var err error
			body, status, err = c.postByPath(ctx, path, url, imagePath)
			if err != nil {
				return err
			}
			if status == http.StatusTooManyRequests || status >= 500 {
				return fmt.Errorf("retryable status %d", status)
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(ocrMaxRetries),
		retry.Delay(ocrRetryDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		// Preserve the last status for the caller when the final attempt
		// completed with a retryable status.
		if status >= 400 {
			return nil, status, nil
		}
		return nil, 0, err
	}
	return body, status, nil
}

// postByPath picks the payload shape from the path: chat-completions paths
// get a vision chat payload, everything else a multipart file upload.
func (c *HTTPOCRClient) postByPath(ctx context.Context, path, url, imagePath string) ([]byte, int, error) {
	var req *http.Request
	var err error
	if strings.Contains(strings.ToLower(path), "chat/completions") {
		req, err = c.chatCompletionsRequest(ctx, url, imagePath)
	} else {
		req, err = c.multipartRequest(ctx, url, imagePath)
	}
	if err != nil {
		return nil, 0, err
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read response: %w", err)
	}
	return body, resp.StatusCode, nil
}

func (c *HTTPOCRClient) multipartRequest(ctx context.Context, url, imagePath string) (*http.Request, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filepath.Base(imagePath))
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req, nil
}

func (c *HTTPOCRClient) chatCompletionsRequest(ctx context.Context, url, imagePath string) (*http.Request, error) {
	dataURL, err := toDataURL(imagePath)
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"messages": []any{
			map[string]any{
				"role": "user",
				"content": []any{
					map[string]any{"type": "text", "text": c.prompt},
					map[string]any{"type": "image_url", "image_url": map[string]any{"url": dataURL}},
				},
			},
		},
		"max_tokens":  4096,
		"temperature": 0.1,
	}
	if c.model != "" {
		payload["model"] = c.model
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// toDataURL encodes the image as a base64 data URL for vision payloads.
func toDataURL(imagePath string) (string, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}
	return "data:" + guessMimeType(imagePath) + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

func guessMimeType(imagePath string) string {
	if m := mime.TypeByExtension(filepath.Ext(imagePath)); m != "" {
		return m
	}
	return "image/png"
}
