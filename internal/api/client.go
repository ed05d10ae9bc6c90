// Package api implements the HTTP+SSE client for the deployment
// platform control plane. Long-running operations (deploy, rollback)
// stream their progress as Server-Sent Events; everything else is plain
// JSON over HTTP.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"shipdeck/internal/stream"
)

const (
	// DefaultRequestTimeout bounds non-streaming requests. Streaming
	// requests run until the stream ends or the context is cancelled.
	DefaultRequestTimeout = 30 * time.Second

	// MaxErrorBodyBytes limits how much of an error response is read
	// when extracting the server-provided message.
	MaxErrorBodyBytes = 64 * 1024
)

// CredentialProvider supplies the session token for outgoing requests.
// Invalidate is called when the backend rejects the token so cached
// session state is not reused on the next attempt.
type CredentialProvider interface {
	Token(ctx context.Context) (string, error)
	Invalidate()
}

// StaticCredentials is a CredentialProvider backed by a fixed token,
// typically loaded from the client config or an environment variable.
type StaticCredentials struct {
	mu    sync.Mutex
	token string
}

// NewStaticCredentials creates a provider for a fixed token.
func NewStaticCredentials(token string) *StaticCredentials {
	return &StaticCredentials{token: token}
}

// Token returns the stored token, or an error if it was invalidated.
func (s *StaticCredentials) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" {
		return "", fmt.Errorf("no API token configured")
	}
	return s.token, nil
}

// Invalidate clears the stored token.
func (s *StaticCredentials) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
}

// Client talks to the deployment platform API. All methods make exactly
// one underlying HTTP request; there is no automatic retry.
type Client struct {
	BaseURL     string
	HTTPClient  *http.Client
	Credentials CredentialProvider
	Logger      *slog.Logger
}

// NewClient creates a client for the given base URL.
func NewClient(baseURL string, creds CredentialProvider, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		HTTPClient:  &http.Client{},
		Credentials: creds,
		Logger:      logger,
	}
}

// FormField is one plain field of a multipart request body.
type FormField struct {
	Name  string
	Value string
}

// FormFile is one binary field of a multipart request body.
type FormFile struct {
	Field    string
	Filename string
	Content  []byte
}

// MultipartPayload carries the ordered fields and files of a multipart
// request.
type MultipartPayload struct {
	Fields []FormField
	Files  []FormFile
}

// Stream issues a JSON request and feeds the SSE response body through
// the decoder, invoking onEvent for each event in arrival order. A
// network drop surfaces as an error after the last successfully
// delivered event; delivered events are never retracted.
func (c *Client) Stream(ctx context.Context, method, path string, query url.Values, body any, onEvent func(stream.Event) error) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	resp, err := c.do(ctx, method, path, query, "application/json", reader)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return stream.Decode(ctx, resp.Body, onEvent)
}

// StreamMultipart issues a multipart POST (binary archives, image
// tarballs) and feeds the SSE response through the decoder.
func (c *Client) StreamMultipart(ctx context.Context, path string, query url.Values, payload *MultipartPayload, onEvent func(stream.Event) error) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	for _, field := range payload.Fields {
		if err := writer.WriteField(field.Name, field.Value); err != nil {
			return fmt.Errorf("writing form field %q: %w", field.Name, err)
		}
	}
	for _, file := range payload.Files {
		part, err := writer.CreateFormFile(file.Field, file.Filename)
		if err != nil {
			return fmt.Errorf("creating form file %q: %w", file.Field, err)
		}
		if _, err := part.Write(file.Content); err != nil {
			return fmt.Errorf("writing form file %q: %w", file.Field, err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("finalizing multipart body: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, path, query, writer.FormDataContentType(), &buf)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return stream.Decode(ctx, resp.Body, onEvent)
}

// GetJSON issues a GET request and decodes the JSON response into out.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultRequestTimeout)
	defer cancel()

	resp, err := c.do(ctx, http.MethodGet, path, query, "", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// PostJSON issues a POST request with a JSON body and decodes the JSON
// response into out (out may be nil to discard the response).
func (c *Client) PostJSON(ctx context.Context, path string, query url.Values, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultRequestTimeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	resp, err := c.do(ctx, http.MethodPost, path, query, "application/json", reader)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// do builds, authenticates, and executes one request, mapping non-2xx
// statuses to the error taxonomy. The caller owns the response body on
// success.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, contentType string, body io.Reader) (*http.Response, error) {
	requestURL := c.BaseURL + path
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, requestURL, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json, text/event-stream")

	token, err := c.Credentials.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolving credentials: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		c.Credentials.Invalidate()
		c.Logger.Warn("Session token rejected", "path", path)
		return nil, fmt.Errorf("%s %s: %w", method, path, ErrUnauthorized)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, c.responseError(resp)
	}

	return resp, nil
}

// responseError extracts the server-provided message from an error
// response body, falling back to a generic message when the body is not
// parseable JSON.
func (c *Client) responseError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxErrorBodyBytes))
	if err == nil {
		var parsed struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if json.Unmarshal(body, &parsed) == nil {
			if parsed.Error != "" {
				apiErr.Message = parsed.Error
			} else {
				apiErr.Message = parsed.Message
			}
		}
	}

	return apiErr
}
