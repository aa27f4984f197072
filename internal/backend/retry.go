package backend

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/chaz8081/whisperclip/internal/errs"
)

const retryBaseDelay = 500 * time.Millisecond

// withRetries runs op up to maxRetries+1 times with exponential backoff.
// Only failures classified retryable are attempted again; context expiry
// ends the loop immediately.
func withRetries(ctx context.Context, log zerolog.Logger, maxRetries int, op func() (string, error)) (string, error) {
	delay := retryBaseDelay
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			log.Warn().
				Err(lastErr).
				Int("attempt", attempt).
				Dur("backoff", delay).
				Msg("retrying transcription request")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", lastErr
			}
			delay *= 2
		}

		text, err := op()
		if err == nil {
			return text, nil
		}
		lastErr = err

		if !errs.Retryable(err) || ctx.Err() != nil {
			return "", err
		}
	}

	return "", lastErr
}
