package backend

import (
	"context"
	"errors"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog"

	"github.com/chaz8081/whisperclip/internal/config"
	"github.com/chaz8081/whisperclip/internal/errs"
)

// OpenAI transcribes audio through the OpenAI audio API using the
// official SDK.
type OpenAI struct {
	client     openai.Client
	language   string
	maxRetries int
	log        zerolog.Logger
}

func newOpenAI(tc config.TranscribeConfig, log zerolog.Logger) *OpenAI {
	client := openai.NewClient(
		option.WithAPIKey(tc.OpenAIAPIKey),
		option.WithHTTPClient(newHTTPClient()),
		// Retry policy lives in withRetries so all remote backends
		// behave the same.
		option.WithMaxRetries(0),
	)
	return &OpenAI{
		client:     client,
		language:   tc.Language,
		maxRetries: tc.MaxRetries,
		log:        log.With().Str("component", "openai").Logger(),
	}
}

// Name implements Transcriber.
func (o *OpenAI) Name() string { return "openai" }

// Transcribe uploads the audio file and returns the transcript.
func (o *OpenAI) Transcribe(ctx context.Context, path string) (string, error) {
	return withRetries(ctx, o.log, o.maxRetries, func() (string, error) {
		return o.request(ctx, path)
	})
}

func (o *OpenAI) request(ctx context.Context, path string) (string, error) {
	const op = "openai.transcribe"

	audio, err := os.Open(path)
	if err != nil {
		return "", errs.E(errs.Capture, op, "cannot read recording", err)
	}
	defer audio.Close()

	params := openai.AudioTranscriptionNewParams{
		File:  audio,
		Model: openai.AudioModelWhisper1,
	}
	if o.language != "" {
		params.Language = openai.String(o.language)
	}

	resp, err := o.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		var apierr *openai.Error
		if errors.As(err, &apierr) {
			kind, hint := statusKind(apierr.StatusCode)
			return "", errs.E(kind, op, hint, apierr)
		}
		return "", classifyTransportError(op, err)
	}
	return resp.Text, nil
}
