package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloo-solutions/agentrag/internal/domain"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const (
	envAPIURL = "AGENTRAG_API_URL"

	defaultAPIURL = "http://localhost:8080"
)

type APIClient struct {
	baseURL    string
	httpClient *http.Client
	// streamClient has no overall timeout; a stream lasts as long as the run.
	streamClient *http.Client
}

// NewAPIClientWithCmd creates an APIClient with config cascade: flag → env → global config → default
// If cmd is nil, skips flag checking and goes directly to env → global config
func NewAPIClientWithCmd(cmd *cobra.Command) (*APIClient, error) {
	var baseURL string

	if cmd != nil {
		if flagURL, err := cmd.Flags().GetString("api-url"); err == nil && flagURL != "" {
			baseURL = flagURL
		}
	}

	if baseURL == "" {
		_ = godotenv.Load()
		baseURL = os.Getenv(envAPIURL)
	}

	if baseURL == "" {
		globalConfig, err := LoadGlobalConfig()
		if err != nil {
			return nil, err
		}
		if globalConfig != nil {
			baseURL = globalConfig.APIURL
		}
	}

	if baseURL == "" {
		baseURL = defaultAPIURL
	}

	return NewAPIClientWithConfig(baseURL), nil
}

// NewAPIClientWithConfig creates an APIClient for an explicit base URL.
func NewAPIClientWithConfig(baseURL string) *APIClient {
	return &APIClient{
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   &http.Client{Timeout: 5 * time.Minute},
		streamClient: &http.Client{},
	}
}

// APIResponse represents the standard API response format.
type APIResponse struct {
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
	Code  string          `json:"code,omitempty"`
	// Raw is the undecoded body, for endpoints that do not use the envelope.
	Raw []byte `json:"-"`
}

// APIError represents an error from the API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("API error (%d %s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

// Get performs a GET request.
func (c *APIClient) Get(ctx context.Context, path string) (*APIResponse, error) {
	return c.do(ctx, http.MethodGet, path, "", nil)
}

// Post performs a POST request with JSON body.
func (c *APIClient) Post(ctx context.Context, path string, body interface{}) (*APIResponse, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, "application/json", bytes.NewReader(jsonData))
}

// Delete performs a DELETE request.
func (c *APIClient) Delete(ctx context.Context, path string) (*APIResponse, error) {
	return c.do(ctx, http.MethodDelete, path, "", nil)
}

func (c *APIClient) do(ctx context.Context, method, path, contentType string, body io.Reader) (*APIResponse, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	apiResp := APIResponse{Raw: respBody}
	if len(bytes.TrimSpace(respBody)) > 0 {
		if err := json.Unmarshal(respBody, &apiResp); err != nil {
			if resp.StatusCode >= 400 {
				return nil, &APIError{
					StatusCode: resp.StatusCode,
					Message:    string(respBody),
				}
			}
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}
	}

	if resp.StatusCode >= 400 {
		message := apiResp.Error
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Code:       apiResp.Code,
			Message:    message,
		}
	}

	return &apiResp, nil
}

// UploadFile sends filePath to /documents as the multipart "file" field.
func (c *APIClient) UploadFile(ctx context.Context, filePath string, onProgress ProgressFunc) (*APIResponse, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(filePath))
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, &progressReader{reader: file, total: stat.Size(), onProgress: onProgress}); err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish multipart body: %w", err)
	}

	return c.do(ctx, http.MethodPost, "/documents", mw.FormDataContentType(), &buf)
}

// Stream runs a query against /stream_query and calls fn for every event in
// order. It returns after the terminal event, when the server closes the
// stream, or when fn returns an error.
func (c *APIClient) Stream(ctx context.Context, query string, fn func(domain.PipelineEvent) error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/stream_query?q="+url.QueryEscape(query), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		var apiResp APIResponse
		if json.Unmarshal(body, &apiResp) == nil && apiResp.Error != "" {
			return &APIError{StatusCode: resp.StatusCode, Code: apiResp.Code, Message: apiResp.Error}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: string(body)}
	}

	return readEvents(resp.Body, fn)
}

// readEvents decodes server-sent events whose data lines each hold one JSON
// PipelineEvent.
func readEvents(r io.Reader, fn func(domain.PipelineEvent) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4<<20)

	for scanner.Scan() {
		line := scanner.Text()
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}

		var ev domain.PipelineEvent
		if err := json.Unmarshal([]byte(strings.TrimSpace(data)), &ev); err != nil {
			return fmt.Errorf("failed to decode event: %w", err)
		}
		if err := fn(ev); err != nil {
			return err
		}
		if ev.Step.IsTerminal() {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read stream: %w", err)
	}
	return fmt.Errorf("stream ended without a terminal event")
}

// ProgressFunc is a callback for reporting upload progress.
type ProgressFunc func(current, total int64)

// progressReader wraps an io.Reader and reports progress.
type progressReader struct {
	reader     io.Reader
	total      int64
	current    int64
	onProgress ProgressFunc
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	pr.current += int64(n)
	if pr.onProgress != nil {
		pr.onProgress(pr.current, pr.total)
	}
	return n, err
}
