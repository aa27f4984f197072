package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/chaz8081/whisperclip/internal/config"
	"github.com/chaz8081/whisperclip/internal/errs"
	"github.com/chaz8081/whisperclip/internal/models"
)

// modelDownloadTimeout bounds the one-time model fetch, independent of
// the per-request transcription deadline.
const modelDownloadTimeout = 20 * time.Minute

// runner executes an external command and returns its output streams.
// Swappable in tests.
type runner func(ctx context.Context, name string, args ...string) (stdout, stderr string, err error)

// Local transcribes audio by shelling out to the whisper.cpp CLI,
// fetching the ggml model on first use.
type Local struct {
	bin       string
	modelsDir string
	model     string
	gpu       bool
	language  string
	log       zerolog.Logger

	run      runner
	lookPath func(name string) (string, error)

	mu        sync.Mutex
	modelPath string
}

func newLocal(tc config.TranscribeConfig, log zerolog.Logger) *Local {
	return &Local{
		bin:       tc.WhisperBin,
		modelsDir: tc.ModelsDir,
		model:     tc.Model,
		gpu:       tc.GPU,
		language:  tc.Language,
		log:       log.With().Str("component", "local").Logger(),
		run:       execRun,
		lookPath:  exec.LookPath,
	}
}

// Name implements Transcriber.
func (l *Local) Name() string { return "local" }

// Transcribe runs the whisper CLI on the audio file. Non-WAV input is
// first converted with ffmpeg.
func (l *Local) Transcribe(ctx context.Context, path string) (string, error) {
	const op = "local.transcribe"

	binPath, err := l.lookPath(l.bin)
	if err != nil {
		return "", errs.E(errs.Unavailable, op,
			fmt.Sprintf("%s not found in PATH", l.bin), err)
	}

	modelPath, err := l.ensureModel(ctx)
	if err != nil {
		return "", errs.E(errs.Unavailable, op, "whisper model unavailable", err)
	}

	workDir, err := os.MkdirTemp("", "whisperclip-*")
	if err != nil {
		return "", errs.E(errs.Internal, op, "", err)
	}
	defer os.RemoveAll(workDir)

	wavPath := path
	if strings.ToLower(filepath.Ext(path)) != ".wav" {
		wavPath, err = l.convert(ctx, path, workDir)
		if err != nil {
			return "", err
		}
	}

	outBase := filepath.Join(workDir, "transcript")
	args := []string{"-m", modelPath, "-f", wavPath, "-otxt", "-of", outBase, "-np"}
	if l.language != "" {
		args = append(args, "-l", l.language)
	}
	if !l.gpu {
		args = append(args, "-ng")
	}

	l.log.Debug().Str("bin", binPath).Strs("args", args).Msg("running whisper")

	_, stderr, err := l.run(ctx, binPath, args...)
	if err != nil {
		if ctxErr := classifyCtx(op, ctx); ctxErr != nil {
			return "", ctxErr
		}
		return "", errs.E(errs.Unavailable, op, "whisper run failed",
			fmt.Errorf("%w: %s", err, tail(stderr)))
	}

	text, err := os.ReadFile(outBase + ".txt")
	if err != nil {
		return "", errs.E(errs.Malformed, op, "no transcript produced",
			fmt.Errorf("%w: %s", err, tail(stderr)))
	}
	return strings.TrimSpace(string(text)), nil
}

// ensureModel resolves and downloads the configured model on first use.
// A failed attempt is retried on the next call rather than cached.
func (l *Local) ensureModel(ctx context.Context) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.modelPath != "" {
		return l.modelPath, nil
	}

	dctx, cancel := context.WithTimeout(ctx, modelDownloadTimeout)
	defer cancel()

	path, err := models.Ensure(dctx, l.modelsDir, l.model, l.log)
	if err != nil {
		return "", err
	}
	l.modelPath = path
	return path, nil
}

// convert transcodes input to 16kHz mono WAV, which whisper expects.
func (l *Local) convert(ctx context.Context, path, workDir string) (string, error) {
	const op = "local.convert"

	ffmpeg, err := l.lookPath("ffmpeg")
	if err != nil {
		return "", errs.E(errs.Unavailable, op,
			fmt.Sprintf("ffmpeg required for %s input but not found in PATH", filepath.Ext(path)), err)
	}

	out := filepath.Join(workDir, "input.wav")
	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", path,
		"-ar", "16000", "-ac", "1", "-c:a", "pcm_s16le",
		out,
	}
	_, stderr, err := l.run(ctx, ffmpeg, args...)
	if err != nil {
		if ctxErr := classifyCtx(op, ctx); ctxErr != nil {
			return "", ctxErr
		}
		return "", errs.E(errs.Capture, op, "audio conversion failed",
			fmt.Errorf("%w: %s", err, tail(stderr)))
	}
	return out, nil
}

// classifyCtx turns an expired or canceled context into the matching
// result: Timeout for deadline expiry, the bare cancellation otherwise,
// nil when the context is still live.
func classifyCtx(op string, ctx context.Context) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return errs.E(errs.Timeout, op, "transcription timed out", ctx.Err())
	case errors.Is(ctx.Err(), context.Canceled):
		return ctx.Err()
	default:
		return nil
	}
}

// execRun runs a command capturing stdout and stderr.
func execRun(ctx context.Context, name string, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

// tail returns the last portion of command output for error detail.
func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 400 {
		s = "..." + s[len(s)-400:]
	}
	if s == "" {
		s = "<no output>"
	}
	return s
}
