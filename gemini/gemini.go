// Package gemini talks to the Gemini generateContent REST API.
package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"line-comicbot/pkg/gallery"
)

const (
	// DefaultBaseURL is the public Generative Language API endpoint.
	DefaultBaseURL = "https://generativelanguage.googleapis.com"
	// DefaultTransformModel can return images.
	DefaultTransformModel = "gemini-2.0-flash-exp"
	// DefaultAnalysisModel answers the pose question.
	DefaultAnalysisModel = "gemini-2.5-flash"

	maxResponseBytes = 32 << 20
)

var (
	// ErrRateLimited means the upstream quota is exhausted. Callers should not retry.
	ErrRateLimited = errors.New("gemini: rate limited")
	// ErrTransformFailed wraps every transform failure other than rate limiting.
	ErrTransformFailed = errors.New("gemini: transform failed")
	// ErrNoImage means the model answered without an image part.
	ErrNoImage = fmt.Errorf("%w: response contained no image", ErrTransformFailed)
	// ErrAnalysisFailed wraps every analysis failure other than rate limiting.
	ErrAnalysisFailed = errors.New("gemini: analysis failed")
)

// APIError is a non-2xx answer from the API.
type APIError struct {
	Body       string
	StatusCode int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gemini API HTTP %d: %s", e.StatusCode, e.Body)
}

// Config holds client settings.
type Config struct {
	APIKey         string
	BaseURL        string
	TransformModel string
	AnalysisModel  string
	Timeout        time.Duration
}

// Client calls generateContent over plain HTTP.
type Client struct {
	client         *http.Client
	logger         *slog.Logger
	apiKey         string
	baseURL        string
	transformModel string
	analysisModel  string
}

// New creates a Gemini client.
func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.TransformModel == "" {
		cfg.TransformModel = DefaultTransformModel
	}
	if cfg.AnalysisModel == "" {
		cfg.AnalysisModel = DefaultAnalysisModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	return &Client{
		client:         &http.Client{Timeout: cfg.Timeout},
		logger:         logger,
		apiKey:         cfg.APIKey,
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		transformModel: cfg.TransformModel,
		analysisModel:  cfg.AnalysisModel,
	}
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type requestPart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type content struct {
	Parts []requestPart `json:"parts"`
}

type generationConfig struct {
	ResponseModalities []string `json:"responseModalities,omitempty"`
	Temperature        *float64 `json:"temperature,omitempty"`
}

type generateRequest struct {
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
	Contents         []content         `json:"contents"`
}

// Transform asks the image model to redraw blob following prompt.
func (c *Client) Transform(ctx context.Context, blob gallery.MediaBlob, prompt string) (gallery.MediaBlob, error) {
	temp := 0.7
	req := generateRequest{
		Contents: []content{{Parts: []requestPart{
			{Text: "Edit this image: " + prompt},
			imagePart(blob),
		}}},
		GenerationConfig: &generationConfig{
			ResponseModalities: []string{"Text", "Image"},
			Temperature:        &temp,
		},
	}

	body, err := c.generate(ctx, c.transformModel, req)
	if err != nil {
		if errors.Is(err, ErrRateLimited) {
			return gallery.MediaBlob{}, err
		}
		return gallery.MediaBlob{}, fmt.Errorf("%w: %w", ErrTransformFailed, err)
	}

	img, err := ExtractImage(body)
	if err != nil {
		return gallery.MediaBlob{}, err
	}
	if img.MimeType == "" {
		img.MimeType = "image/png"
	}
	c.logger.Info("Transformed image received", "mime_type", img.MimeType, "bytes", len(img.Data))
	return img, nil
}

// Analyze asks the text model whether the photo shows a posing person.
func (c *Client) Analyze(ctx context.Context, blob gallery.MediaBlob) (gallery.Analysis, error) {
	req := generateRequest{
		Contents: []content{{Parts: []requestPart{
			{Text: AnalysisPrompt},
			imagePart(blob),
		}}},
	}

	body, err := c.generate(ctx, c.analysisModel, req)
	if err != nil {
		if errors.Is(err, ErrRateLimited) {
			return gallery.Analysis{}, err
		}
		return gallery.Analysis{}, fmt.Errorf("%w: %w", ErrAnalysisFailed, err)
	}

	text, err := ExtractText(body)
	if err != nil {
		return gallery.Analysis{}, fmt.Errorf("%w: %w", ErrAnalysisFailed, err)
	}

	result, structured := ParseAnalysis(text)
	c.logger.Info("Analysis completed",
		"face_detected", result.SubjectPresent,
		"is_pose", result.Posed,
		"structured", structured)
	return result, nil
}

func imagePart(blob gallery.MediaBlob) requestPart {
	mt := blob.MimeType
	if mt == "" {
		mt = "image/jpeg"
	}
	return requestPart{InlineData: &inlineData{
		MimeType: mt,
		Data:     base64.StdEncoding.EncodeToString(blob.Data),
	}}
}

func (c *Client) generate(ctx context.Context, model string, reqBody generateRequest) ([]byte, error) {
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, model)
	c.logger.Info("Gemini API request starting", "model", model, "request_bytes", len(jsonData))

	startTime := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.client.Do(req)
	duration := time.Since(startTime)
	if err != nil {
		c.logger.Warn("Gemini API request failed", "model", model, "duration_ms", duration.Milliseconds(), "error", err)
		if isRateLimitText(err.Error()) {
			return nil, fmt.Errorf("%w: %w", ErrRateLimited, err)
		}
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Warn("Failed to close response body", "error", closeErr)
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: truncate(string(body), 1024)}
		c.logger.Warn("Gemini API returned non-2xx status",
			"model", model,
			"status_code", resp.StatusCode,
			"duration_ms", duration.Milliseconds(),
			"body", apiErr.Body)
		if resp.StatusCode == http.StatusTooManyRequests || isRateLimitText(apiErr.Body) {
			return nil, fmt.Errorf("%w: %w", ErrRateLimited, apiErr)
		}
		return nil, apiErr
	}

	c.logger.Info("Gemini API request completed",
		"model", model,
		"duration_ms", duration.Milliseconds(),
		"response_bytes", len(body))
	return body, nil
}

func isRateLimitText(s string) bool {
	lower := strings.ToLower(s)
	for _, marker := range []string{"resource_exhausted", "too many requests", "rate limit", "429"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
