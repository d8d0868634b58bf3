// Package catalog talks to the analysis server's HTTP endpoints: the demo
// list and video upload.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrServer is wrapped when the server answers with an error.
var ErrServer = errors.New("server error")

// Demo is one bundled demo video.
type Demo struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Filename string  `json:"filename"`
	SizeMB   float64 `json:"size_mb"`
}

// Client calls the catalog endpoints under BaseURL.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// New returns a client for baseURL.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

// ListDemos fetches GET /api/demos.
func (c *Client) ListDemos(ctx context.Context) ([]Demo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/api/demos", nil)
	if err != nil {
		return nil, err
	}
	var body struct {
		Demos []Demo `json:"demos"`
		Error string `json:"error"`
	}
	if err := c.do(req, &body); err != nil {
		return nil, fmt.Errorf("list demos: %w", err)
	}
	if body.Error != "" {
		return nil, fmt.Errorf("list demos: %w: %s", ErrServer, body.Error)
	}
	return body.Demos, nil
}

// Upload posts the file at path as multipart field "file" to /api/upload and
// returns the server-side path to start an upload session with.
func (c *Client) Upload(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("upload: read %s: %w", path, err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/upload", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var body struct {
		Path  string `json:"path"`
		Error string `json:"error"`
	}
	if err := c.do(req, &body); err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	if body.Error != "" {
		return "", fmt.Errorf("upload: %w: %s", ErrServer, body.Error)
	}
	if body.Path == "" {
		return "", fmt.Errorf("upload: %w: no path in response", ErrServer)
	}
	return body.Path, nil
}

// do sends req and decodes a JSON body into out. Error bodies with an
// "error" field still decode so the message reaches the caller.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		if resp.StatusCode >= 400 {
			return fmt.Errorf("%w: HTTP %s", ErrServer, resp.Status)
		}
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode >= 400 {
		var e struct {
			Error  string `json:"error"`
			Detail string `json:"detail"`
		}
		_ = json.Unmarshal(data, &e)
		if msg := e.Error + e.Detail; msg != "" {
			return fmt.Errorf("%w: %s", ErrServer, msg)
		}
		return fmt.Errorf("%w: HTTP %s", ErrServer, resp.Status)
	}
	return nil
}
