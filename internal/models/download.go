package models

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// Ensure returns the path of the ggml model file for size inside dir,
// downloading it first if it is not already present. The download is
// written to a temp file and renamed into place so a partial fetch never
// looks like a usable model.
func Ensure(ctx context.Context, dir, size string, log zerolog.Logger) (string, error) {
	m, err := Resolve(size)
	if err != nil {
		return "", err
	}

	destPath := filepath.Join(dir, m.File)
	if info, err := os.Stat(destPath); err == nil && info.Size() > 0 {
		return destPath, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating models dir: %w", err)
	}

	log.Info().
		Str("model", m.Size).
		Str("url", m.URL()).
		Int("approx_mb", m.MB).
		Msg("downloading whisper model")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.URL(), nil)
	if err != nil {
		return "", fmt.Errorf("building model request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("downloading model: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("model download failed: HTTP %d", resp.StatusCode)
	}

	// Write to temp file first, then rename (atomic).
	tmpPath := destPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}

	pw := &progressWriter{
		writer: f,
		total:  resp.ContentLength,
		label:  m.File,
		log:    log,
	}

	written, err := io.Copy(pw, resp.Body)
	f.Close()
	if err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("writing model file: %w", err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("moving model file: %w", err)
	}

	log.Info().
		Str("model", m.Size).
		Str("path", destPath).
		Float64("mb", float64(written)/(1024*1024)).
		Msg("whisper model ready")

	return destPath, nil
}

// progressWriter wraps an io.Writer and logs download progress in 25%
// steps.
type progressWriter struct {
	writer  io.Writer
	total   int64
	written int64
	lastPct int
	label   string
	log     zerolog.Logger
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n, err := pw.writer.Write(p)
	pw.written += int64(n)
	if pw.total > 0 {
		pct := int(float64(pw.written) / float64(pw.total) * 100)
		if pct >= pw.lastPct+25 {
			pw.lastPct = pct - pct%25
			pw.log.Info().
				Str("model", pw.label).
				Int("percent", pw.lastPct).
				Float64("mb", float64(pw.written)/(1024*1024)).
				Msg("download progress")
		}
	}
	return n, err
}
