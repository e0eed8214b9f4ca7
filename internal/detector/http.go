package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"vidsentry/internal/detection"
	"vidsentry/internal/services"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	jpegQuality        = 90
	maxErrorBody       = 512
)

// Config captures the settings needed to reach the inference service.
type Config struct {
	Endpoint       string
	Model          string
	TimeoutSeconds int
}

// HTTPClient talks to the inference service.
type HTTPClient struct {
	cfg        Config
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*HTTPClient)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *HTTPClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewHTTPClient constructs a client for the service at cfg.Endpoint.
func NewHTTPClient(cfg Config, opts ...Option) *HTTPClient {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &HTTPClient{
		cfg: Config{
			Endpoint:       strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/"),
			Model:          strings.TrimSpace(cfg.Model),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type httpStatusError struct {
	StatusCode int
	Body       string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("detector request: http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

type detectResponse struct {
	Detections []detection.FrameDetection `json:"detections"`
}

// Detect posts frame to {endpoint}/detect and returns the validated detections.
func (c *HTTPClient) Detect(ctx context.Context, frame image.Image, confidence, iou float64) ([]detection.FrameDetection, error) {
	if frame == nil {
		return nil, services.Wrap(services.ErrValidation, "detecting", "detect", "nil frame", nil)
	}
	body, contentType, err := c.encodeRequest(frame, confidence, iou)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "detecting", "encode frame", "", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint+"/detect", body)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "detecting", "build request", "", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, services.Wrap(services.ErrTimeout, "detecting", "detect", "inference request timed out", err)
		}
		return nil, services.Wrap(services.ErrExternalTool, "detecting", "detect", "inference service unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		statusErr := &httpStatusError{StatusCode: resp.StatusCode, Body: string(snippet)}
		return nil, services.Wrap(services.ErrExternalTool, "detecting", "detect", "", statusErr)
	}

	var parsed detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "detecting", "detect", "decode response", err)
	}
	for i, det := range parsed.Detections {
		if err := det.Validate(); err != nil {
			return nil, services.Wrap(services.ErrExternalTool, "detecting", "detect", fmt.Sprintf("detection %d", i), err)
		}
	}
	return parsed.Detections, nil
}

func (c *HTTPClient) encodeRequest(frame image.Image, confidence, iou float64) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("image", "frame.jpg")
	if err != nil {
		return nil, "", err
	}
	if err := jpeg.Encode(part, frame, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, "", err
	}
	fields := map[string]string{
		"confidence": strconv.FormatFloat(confidence, 'f', -1, 64),
		"iou":        strconv.FormatFloat(iou, 'f', -1, 64),
	}
	if c.cfg.Model != "" {
		fields["model"] = c.cfg.Model
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, "", err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return &buf, writer.FormDataContentType(), nil
}

// HealthCheck reports whether the inference service answers GET {endpoint}/health.
func (c *HTTPClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.Endpoint+"/health", nil)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "preflight", "detector health", "build request", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "preflight", "detector health", "inference service unreachable", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return services.Wrap(services.ErrExternalTool, "preflight", "detector health", "", &httpStatusError{StatusCode: resp.StatusCode})
	}
	return nil
}

// Endpoint returns the normalized service URL.
func (c *HTTPClient) Endpoint() string {
	return c.cfg.Endpoint
}
