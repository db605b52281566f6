package document

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestHTTPLoader_Get(t *testing.T) {
	img := pngBytes(t, 2, 2)
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		switch r.URL.Path {
		case "/ok.png":
			w.Header().Set("Content-Type", "image/png")
			w.Write(img)
		case "/moved":
			http.Redirect(w, r, "/ok.png", http.StatusFound)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	l := NewHTTPLoader(LoaderConfig{})

	data, err := l.Load(context.Background(), srv.URL+"/ok.png")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !bytes.Equal(data, img) {
		t.Error("body mismatch")
	}
	if gotUA != DefaultUserAgent {
		t.Errorf("user agent: %q", gotUA)
	}

	if _, err := l.Load(context.Background(), srv.URL+"/moved"); err != nil {
		t.Errorf("redirect: %v", err)
	}

	_, err = l.Load(context.Background(), srv.URL+"/missing")
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Errorf("missing: err = %v", err)
	}
}

func TestHTTPLoader_MaxBytes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(bytes.Repeat([]byte("x"), 100))
	}))
	defer srv.Close()

	l := NewHTTPLoader(LoaderConfig{MaxBytes: 10})
	data, err := l.Load(context.Background(), srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 10 {
		t.Errorf("len: got %d, want 10", len(data))
	}
}

func TestHTTPLoader_Cancel(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := NewHTTPLoader(LoaderConfig{}).Load(ctx, srv.URL); err == nil {
		t.Fatal("expected cancellation error")
	}
}

func TestHTTPLoader_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bg.png")
	img := pngBytes(t, 1, 1)
	if err := os.WriteFile(path, img, 0o644); err != nil {
		t.Fatal(err)
	}
	data, err := NewHTTPLoader(LoaderConfig{}).Load(context.Background(), "file://"+filepath.ToSlash(path))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !bytes.Equal(data, img) {
		t.Error("file contents mismatch")
	}
}

func TestHTTPLoader_UnsupportedScheme(t *testing.T) {
	if _, err := NewHTTPLoader(LoaderConfig{}).Load(context.Background(), "ftp://example.com/a.png"); err == nil {
		t.Fatal("expected error for ftp")
	}
}

func TestDecodeImage(t *testing.T) {
	img, format, err := decodeImage(pngBytes(t, 3, 1))
	if err != nil {
		t.Fatal(err)
	}
	if format != "png" || img.Bounds().Dx() != 3 {
		t.Errorf("got %s %v", format, img.Bounds())
	}
	if _, _, err := decodeImage(nil); err == nil {
		t.Error("empty data should fail")
	}
	if _, _, err := decodeImage([]byte("GIF89a-not-really")); err == nil {
		t.Error("truncated gif should fail")
	}
}
