package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hlvr/vrcore/pkg/core"
)

func TestNew(t *testing.T) {
	c := New("http://localhost:5000", "secret123")

	if c == nil {
		t.Fatal("New returned nil")
	}
	if c.baseURL != "http://localhost:5000" {
		t.Errorf("expected baseURL=http://localhost:5000, got %s", c.baseURL)
	}
	if c.secret != "secret123" {
		t.Errorf("expected secret=secret123, got %s", c.secret)
	}
	if c.httpClient == nil {
		t.Error("httpClient is nil")
	}
}

func TestNew_TrimsTrailingSlash(t *testing.T) {
	c := New("http://localhost:5000/", "secret")
	if c.baseURL != "http://localhost:5000" {
		t.Errorf("expected trailing slash trimmed, got %s", c.baseURL)
	}
}

func TestHealthcheck_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/healthcheck" {
			t.Errorf("expected path /healthcheck, got %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := New(server.URL, "")
	if err := c.Healthcheck(context.Background()); err != nil {
		t.Errorf("Healthcheck failed: %v", err)
	}
}

func TestHealthcheck_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := New(server.URL, "")
	if err := c.Healthcheck(context.Background()); err == nil {
		t.Error("expected error for 500 response")
	}
}

func TestHealthcheck_ServerDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	c := New(url, "")
	if err := c.Healthcheck(context.Background()); err == nil {
		t.Error("expected error for unreachable server")
	}
}

func TestUpload_Success(t *testing.T) {
	received := map[string]string{}
	var content []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/sessions" {
			t.Errorf("expected path /api/v1/sessions, got %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			t.Errorf("failed to parse multipart form: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		for key := range r.MultipartForm.Value {
			received[key] = r.FormValue(key)
		}

		file, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("failed to get file: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		content, _ = io.ReadAll(file)

		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	path := filepath.Join(t.TempDir(), "abc.json.gz")
	if err := os.WriteFile(path, []byte("test content"), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := core.Session{
		ID:            "abc",
		MapName:       "c1a0",
		StartTime:     start,
		EndTime:       start.Add(90 * time.Second),
		ModuleVersion: "0.1.0",
	}

	c := New(server.URL, "mysecret")
	if err := c.Upload(context.Background(), path, s); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	want := map[string]string{
		"secret":        "mysecret",
		"filename":      "abc.json.gz",
		"sessionId":     "abc",
		"mapName":       "c1a0",
		"moduleVersion": "0.1.0",
		"startTime":     "2026-03-01T12:00:00Z",
		"duration":      "90.000000",
	}
	for key, v := range want {
		if received[key] != v {
			t.Errorf("expected %s=%s, got %s", key, v, received[key])
		}
	}
	if string(content) != "test content" {
		t.Errorf("expected file content 'test content', got '%s'", string(content))
	}
}

func TestUpload_FileNotFound(t *testing.T) {
	c := New("http://localhost:5000", "secret")
	if err := c.Upload(context.Background(), "/nonexistent/file.json.gz", core.Session{}); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestUpload_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	path := filepath.Join(t.TempDir(), "abc.json.gz")
	if err := os.WriteFile(path, []byte("content"), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	c := New(server.URL, "wrong-secret")
	if err := c.Upload(context.Background(), path, core.Session{}); err == nil {
		t.Error("expected error for 403 response")
	}
}
