package models

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		size     string
		wantFile string
		wantErr  bool
	}{
		{"base.en", "ggml-base.en.bin", false},
		{"Base.EN", "ggml-base.en.bin", false},
		{"large-v3-turbo", "ggml-large-v3-turbo.bin", false},
		{"tiny", "ggml-tiny.bin", false},
		{"enormous", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.size, func(t *testing.T) {
			m, err := Resolve(tt.size)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Resolve(%q) error = %v, wantErr %v", tt.size, err, tt.wantErr)
			}
			if !tt.wantErr && m.File != tt.wantFile {
				t.Errorf("Resolve(%q).File = %q, want %q", tt.size, m.File, tt.wantFile)
			}
		})
	}
}

func TestResolveUnknownListsSizes(t *testing.T) {
	_, err := Resolve("enormous")
	if err == nil {
		t.Fatal("Resolve() should fail for unknown size")
	}
	if !strings.Contains(err.Error(), "base.en") {
		t.Errorf("error should list available sizes, got %q", err.Error())
	}
}

func TestEnsureDownloads(t *testing.T) {
	payload := []byte("ggml bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "ggml-base.en.bin") {
			t.Errorf("unexpected request path %q", r.URL.Path)
		}
		w.Write(payload)
	}))
	defer srv.Close()

	orig := baseURL
	baseURL = srv.URL + "/"
	defer func() { baseURL = orig }()

	dir := t.TempDir()
	path, err := Ensure(context.Background(), dir, "base.en", zerolog.Nop())
	if err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}

	if path != filepath.Join(dir, "ggml-base.en.bin") {
		t.Errorf("Ensure() path = %q, want file in models dir", path)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading model: %v", err)
	}
	if string(got) != string(payload) {
		t.Errorf("model content = %q, want %q", got, payload)
	}

	// No temp file left behind.
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file should be renamed away after download")
	}
}

func TestEnsureSkipsExisting(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected when model already exists")
	}))
	defer srv.Close()

	orig := baseURL
	baseURL = srv.URL + "/"
	defer func() { baseURL = orig }()

	dir := t.TempDir()
	existing := filepath.Join(dir, "ggml-tiny.bin")
	if err := os.WriteFile(existing, []byte("cached"), 0644); err != nil {
		t.Fatal(err)
	}

	path, err := Ensure(context.Background(), dir, "tiny", zerolog.Nop())
	if err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	if path != existing {
		t.Errorf("Ensure() path = %q, want existing %q", path, existing)
	}
}

func TestEnsureBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not here", http.StatusNotFound)
	}))
	defer srv.Close()

	orig := baseURL
	baseURL = srv.URL + "/"
	defer func() { baseURL = orig }()

	dir := t.TempDir()
	if _, err := Ensure(context.Background(), dir, "tiny", zerolog.Nop()); err == nil {
		t.Fatal("Ensure() should fail on HTTP 404")
	}

	// A failed download must not leave a model file behind.
	if _, err := os.Stat(filepath.Join(dir, "ggml-tiny.bin")); !os.IsNotExist(err) {
		t.Error("no model file should exist after failed download")
	}
}

func TestEnsureUnknownModel(t *testing.T) {
	if _, err := Ensure(context.Background(), t.TempDir(), "enormous", zerolog.Nop()); err == nil {
		t.Fatal("Ensure() should fail for unknown model size")
	}
}

func TestProgressWriter(t *testing.T) {
	tmpDir := t.TempDir()
	f, err := os.Create(filepath.Join(tmpDir, "out"))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = f.Close() }()

	pw := &progressWriter{
		writer: f,
		total:  100,
		label:  "test",
		log:    zerolog.Nop(),
	}

	data := make([]byte, 50)
	n, err := pw.Write(data)
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if n != 50 {
		t.Errorf("Write() n = %d, want 50", n)
	}
	if pw.written != 50 {
		t.Errorf("written = %d, want 50", pw.written)
	}
}
