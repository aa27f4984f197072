// Package backend provides the transcription backends.
//
// Supported backends:
//   - local: whisper.cpp CLI, ggml models downloaded on first use
//   - openai: OpenAI audio transcription API
//   - fireworks: Fireworks serverless audio transcription API
//
// Failures are classified into the errs taxonomy so the rest of the
// application can notify and log them uniformly.
package backend

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/chaz8081/whisperclip/internal/config"
)

// Transcriber converts a recorded audio file to text.
type Transcriber interface {
	// Transcribe converts the audio file at path to text. The context
	// carries the per-request deadline.
	Transcribe(ctx context.Context, path string) (string, error)
	// Name identifies the backend in logs.
	Name() string
}

// New creates the configured Transcriber. The choice is fixed for the
// process lifetime; there is no fallback between backends.
func New(cfg *config.Config, log zerolog.Logger) (Transcriber, error) {
	tc := cfg.Transcribe
	switch tc.Backend {
	case "openai":
		return newOpenAI(tc, log), nil
	case "fireworks":
		return newFireworks(tc, log), nil
	case "local", "":
		return newLocal(tc, log), nil
	default:
		return nil, fmt.Errorf("backend: unknown backend %q (supported: local, openai, fireworks)", tc.Backend)
	}
}
