// Package api talks to the telemetry collection service that stored
// sessions are uploaded to.
package api

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hlvr/vrcore/pkg/core"
)

// Client uploads session exports.
type Client struct {
	baseURL    string
	secret     string
	httpClient *http.Client
}

// New creates a new API client.
func New(baseURL, secret string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		secret:     secret,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Healthcheck checks if the service is reachable.
func (c *Client) Healthcheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthcheck", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("healthcheck request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthcheck returned status %d", resp.StatusCode)
	}
	return nil
}

// Upload streams an export file with the session's metadata as form fields.
func (c *Client) Upload(ctx context.Context, filePath string, s core.Session) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	errCh := make(chan error, 1)
	go func() {
		err := writeForm(writer, c.secret, filePath, file, s)
		if cerr := writer.Close(); err == nil {
			err = cerr
		}
		pw.CloseWithError(err)
		errCh <- err
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/sessions", pr)
	if err != nil {
		pr.Close()
		<-errCh
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		pr.Close()
		<-errCh
		return fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	// the server may answer before reading the whole body
	pr.Close()
	writeErr := <-errCh

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("upload returned status %d", resp.StatusCode)
	}
	return writeErr
}

func writeForm(w *multipart.Writer, secret, filePath string, file io.Reader, s core.Session) error {
	fields := [][2]string{
		{"secret", secret},
		{"filename", filepath.Base(filePath)},
		{"sessionId", s.ID},
		{"mapName", s.MapName},
		{"moduleVersion", s.ModuleVersion},
		{"startTime", s.StartTime.UTC().Format(time.RFC3339)},
		{"duration", fmt.Sprintf("%f", s.Duration().Seconds())},
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return fmt.Errorf("failed to write field %s: %w", f[0], err)
		}
	}

	part, err := w.CreateFormFile("file", filepath.Base(filePath))
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("failed to copy file: %w", err)
	}
	return nil
}
