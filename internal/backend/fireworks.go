package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/chaz8081/whisperclip/internal/config"
	"github.com/chaz8081/whisperclip/internal/errs"
)

const (
	fireworksURL   = "https://audio-turbo.us-virginia-1.direct.fireworks.ai/v1/audio/transcriptions"
	fireworksModel = "whisper-v3-turbo"
)

// Fireworks transcribes audio through the Fireworks serverless audio
// API.
type Fireworks struct {
	apiKey     string
	language   string
	maxRetries int
	url        string
	client     *http.Client
	log        zerolog.Logger
}

func newFireworks(tc config.TranscribeConfig, log zerolog.Logger) *Fireworks {
	return &Fireworks{
		apiKey:     tc.FireworksAPIKey,
		language:   tc.Language,
		maxRetries: tc.MaxRetries,
		url:        fireworksURL,
		client:     newHTTPClient(),
		log:        log.With().Str("component", "fireworks").Logger(),
	}
}

// Name implements Transcriber.
func (f *Fireworks) Name() string { return "fireworks" }

// Transcribe uploads the audio file and returns the transcript.
func (f *Fireworks) Transcribe(ctx context.Context, path string) (string, error) {
	return withRetries(ctx, f.log, f.maxRetries, func() (string, error) {
		return f.upload(ctx, path)
	})
}

func (f *Fireworks) upload(ctx context.Context, path string) (string, error) {
	const op = "fireworks.transcribe"

	audio, err := os.Open(path)
	if err != nil {
		return "", errs.E(errs.Capture, op, "cannot read recording", err)
	}
	defer audio.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", errs.E(errs.Internal, op, "", err)
	}
	if _, err := io.Copy(part, audio); err != nil {
		return "", errs.E(errs.Capture, op, "cannot read recording", err)
	}

	fields := map[string]string{
		"model":       fireworksModel,
		"temperature": "0",
		"vad_model":   "silero",
	}
	if f.language != "" {
		fields["language"] = f.language
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return "", errs.E(errs.Internal, op, "", err)
		}
	}
	if err := w.Close(); err != nil {
		return "", errs.E(errs.Internal, op, "", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, &buf)
	if err != nil {
		return "", errs.E(errs.Internal, op, "", err)
	}
	req.Header.Set("Authorization", "Bearer "+f.apiKey)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", classifyTransportError(op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", errs.E(errs.Network, op, "response read failed", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", classifyStatus(op, resp.StatusCode, body)
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", errs.E(errs.Malformed, op, "undecodable response",
			fmt.Errorf("%w: %s", err, snippet(body)))
	}
	return out.Text, nil
}
