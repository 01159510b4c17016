// Package speech provides the HTTP client for the standalone speech
// inference server. The server loads the model once at startup; this client
// is the only code path the scheduler uses to reach it.
package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gohar-studio/voice-engine/internal/config"
	"github.com/gohar-studio/voice-engine/internal/core"
)

// API endpoints and paths.
const (
	apiTranscribe = "/v1/audio/transcriptions"
	apiHealth     = "/health"
)

// Form field names.
const (
	formFieldFile     = "file"
	formFieldModel    = "model"
	formFieldLanguage = "language"
	uploadFilename    = "voice.wav"
)

// HTTP headers.
const (
	headerContentType = "Content-Type"
	headerAccept      = "Accept"
	contentTypeJSON   = "application/json"
)

// Client talks to the speech inference server.
type Client struct {
	httpClient *http.Client
	baseURL    string
	model      string
	language   string
}

// response is the JSON body of a successful transcription.
type response struct {
	Text string `json:"text"`
}

// errorResponse is the structured error body the server returns on failure.
type errorResponse struct {
	Detail    string `json:"detail"`
	ErrorCode string `json:"error_code,omitempty"`
}

// NewClient creates a speech client from the configured base URL, model, and
// language. The timeout applies to every request.
func NewClient(cfg config.SpeechConfig) *Client {
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		model:    cfg.Model,
		language: cfg.Language,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}
}

// Transcribe uploads one canonical WAV recording and returns its text.
// Transport failures and 5xx responses map to the retryable
// core.ErrTranscriptionUnavailable; 4xx responses mean the backend rejected
// the audio itself and map to the fatal core.ErrCorruptAudio.
func (c *Client) Transcribe(ctx context.Context, wav []byte) (string, error) {
	var buf bytes.Buffer

	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile(formFieldFile, uploadFilename)
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}

	_, err = part.Write(wav)
	if err != nil {
		return "", fmt.Errorf("failed to write audio data: %w", err)
	}

	err = writer.WriteField(formFieldModel, c.model)
	if err != nil {
		return "", fmt.Errorf("failed to write model field: %w", err)
	}

	if c.language != "" {
		err = writer.WriteField(formFieldLanguage, c.language)
		if err != nil {
			return "", fmt.Errorf("failed to write language field: %w", err)
		}
	}

	closeErr := writer.Close()
	if closeErr != nil {
		return "", fmt.Errorf("failed to close multipart writer: %w", closeErr)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+apiTranscribe, &buf)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set(headerContentType, writer.FormDataContentType())
	req.Header.Set(headerAccept, contentTypeJSON)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", core.ErrTranscriptionUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", c.classifyError(resp)
	}

	var transcribed response

	err = json.NewDecoder(resp.Body).Decode(&transcribed)
	if err != nil {
		return "", fmt.Errorf("%w: failed to decode response: %w",
			core.ErrTranscriptionUnavailable, err)
	}

	return transcribed.Text, nil
}

// HealthCheck verifies the inference server is up and the model is loaded.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+apiHealth, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed for service at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed with status: %s", resp.Status)
	}

	return nil
}

// classifyError maps a non-OK response onto the scheduler's retryable /
// non-retryable taxonomy, preserving the server's diagnostics.
func (c *Client) classifyError(resp *http.Response) error {
	kind := core.ErrTranscriptionUnavailable
	if resp.StatusCode >= http.StatusBadRequest && resp.StatusCode < http.StatusInternalServerError {
		kind = core.ErrCorruptAudio
	}

	var structured errorResponse

	err := json.NewDecoder(resp.Body).Decode(&structured)
	if err == nil && structured.Detail != "" {
		return fmt.Errorf("%w: %s: %s (code: %s)",
			kind, resp.Status, structured.Detail, structured.ErrorCode)
	}

	body, _ := io.ReadAll(resp.Body)

	return fmt.Errorf("%w: %s: %s", kind, resp.Status, string(body))
}
