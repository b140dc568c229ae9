package fontconvert

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/tdewolff/test"
)

func TestFilenameFromURL(t *testing.T) {
	var tts = []struct {
		url  string
		name string
	}{
		{"https://example.com/fonts/Roboto-Regular.ttf", "Roboto-Regular.ttf"},
		{"https://example.com/fonts/Roboto.woff2?dl=1", "Roboto.woff2"},
		{"https://example.com/", "font"},
		{"https://example.com", "font"},
		{"", "font"},
		{"https://example.com/a%5Cb.ttf", "font"}, // backslash in segment
	}
	for _, tt := range tts {
		t.Run(tt.url, func(t *testing.T) {
			test.T(t, filenameFromURL(tt.url), tt.name)
		})
	}
}

func TestDownload(t *testing.T) {
	// payload larger than a single read chunk
	payload := bytes.Repeat([]byte("0123456789abcdef"), 2048)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	dst := filepath.Join(t.TempDir(), "font.ttf")
	c := New(Options{})
	test.Error(t, c.Download(context.Background(), srv.URL+"/font.ttf", dst))

	b, err := os.ReadFile(dst)
	test.Error(t, err)
	test.T(t, b, payload)
}

func TestDownloadStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	dst := filepath.Join(t.TempDir(), "font.ttf")
	c := New(Options{})
	err := c.Download(context.Background(), srv.URL+"/font.ttf", dst)

	var nerr *NetworkError
	test.That(t, errors.As(err, &nerr), "expected NetworkError, got:", err)
	test.T(t, nerr.URL, srv.URL+"/font.ttf")

	// nothing must be written on an error status
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		test.Fail(t, "destination file must not exist")
	}
}

func TestDownloadConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	c := New(Options{})
	err := c.Download(context.Background(), srv.URL+"/font.ttf", filepath.Join(t.TempDir(), "font.ttf"))

	var nerr *NetworkError
	test.That(t, errors.As(err, &nerr), "expected NetworkError, got:", err)
}
