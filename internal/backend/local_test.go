package backend

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/chaz8081/whisperclip/internal/errs"
)

// fakeCall records one invocation of the injected runner.
type fakeCall struct {
	name string
	args []string
}

// argValue returns the argument following flag, or "".
func (c fakeCall) argValue(flag string) string {
	for i, a := range c.args {
		if a == flag && i+1 < len(c.args) {
			return c.args[i+1]
		}
	}
	return ""
}

func (c fakeCall) hasFlag(flag string) bool {
	for _, a := range c.args {
		if a == flag {
			return true
		}
	}
	return false
}

// testLocal builds a Local with a stubbed runner and lookPath, plus a
// pre-seeded model file so no download happens.
func testLocal(t *testing.T, run runner) (*Local, string) {
	t.Helper()
	modelsDir := t.TempDir()
	modelPath := filepath.Join(modelsDir, "ggml-base.en.bin")
	if err := os.WriteFile(modelPath, []byte("ggml"), 0644); err != nil {
		t.Fatal(err)
	}

	l := &Local{
		bin:       "whisper-cli",
		modelsDir: modelsDir,
		model:     "base.en",
		log:       zerolog.Nop(),
		run:       run,
		lookPath:  func(name string) (string, error) { return "/usr/local/bin/" + name, nil },
	}
	return l, modelPath
}

// whisperRunner simulates a successful whisper run by writing the
// transcript next to the requested output base.
func whisperRunner(t *testing.T, transcript string, calls *[]fakeCall) runner {
	return func(ctx context.Context, name string, args ...string) (string, string, error) {
		call := fakeCall{name: name, args: args}
		*calls = append(*calls, call)
		if strings.Contains(name, "whisper") {
			base := call.argValue("-of")
			if base == "" {
				t.Fatal("whisper invocation missing -of")
			}
			if err := os.WriteFile(base+".txt", []byte(transcript), 0644); err != nil {
				t.Fatal(err)
			}
		}
		if strings.Contains(name, "ffmpeg") {
			out := args[len(args)-1]
			if err := os.WriteFile(out, []byte("wav"), 0644); err != nil {
				t.Fatal(err)
			}
		}
		return "", "", nil
	}
}

func TestLocalTranscribe(t *testing.T) {
	var calls []fakeCall
	l, modelPath := testLocal(t, whisperRunner(t, " hello world \n", &calls))

	audio := filepath.Join(t.TempDir(), "recording_20250101_120000.wav")
	if err := os.WriteFile(audio, []byte("RIFF"), 0644); err != nil {
		t.Fatal(err)
	}

	text, err := l.Transcribe(context.Background(), audio)
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if text != "hello world" {
		t.Errorf("Transcribe() = %q, want %q", text, "hello world")
	}

	if len(calls) != 1 {
		t.Fatalf("command count = %d, want 1 (wav input needs no conversion)", len(calls))
	}
	call := calls[0]
	if !strings.Contains(call.name, "whisper-cli") {
		t.Errorf("command = %q, want whisper-cli", call.name)
	}
	if got := call.argValue("-m"); got != modelPath {
		t.Errorf("-m = %q, want %q", got, modelPath)
	}
	if got := call.argValue("-f"); got != audio {
		t.Errorf("-f = %q, want %q", got, audio)
	}
	if !call.hasFlag("-otxt") {
		t.Error("whisper args should request txt output")
	}
	if !call.hasFlag("-ng") {
		t.Error("whisper args should disable GPU by default")
	}
}

func TestLocalGPUEnabled(t *testing.T) {
	var calls []fakeCall
	l, _ := testLocal(t, whisperRunner(t, "ok", &calls))
	l.gpu = true

	audio := filepath.Join(t.TempDir(), "a.wav")
	os.WriteFile(audio, []byte("RIFF"), 0644)

	if _, err := l.Transcribe(context.Background(), audio); err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if calls[0].hasFlag("-ng") {
		t.Error("whisper args should not disable GPU when gpu is enabled")
	}
}

func TestLocalLanguageFlag(t *testing.T) {
	var calls []fakeCall
	l, _ := testLocal(t, whisperRunner(t, "ok", &calls))
	l.language = "en"

	audio := filepath.Join(t.TempDir(), "a.wav")
	os.WriteFile(audio, []byte("RIFF"), 0644)

	if _, err := l.Transcribe(context.Background(), audio); err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if got := calls[0].argValue("-l"); got != "en" {
		t.Errorf("-l = %q, want %q", got, "en")
	}
}

func TestLocalConvertsNonWav(t *testing.T) {
	var calls []fakeCall
	l, _ := testLocal(t, whisperRunner(t, "converted", &calls))

	audio := filepath.Join(t.TempDir(), "memo.m4a")
	os.WriteFile(audio, []byte("m4a"), 0644)

	text, err := l.Transcribe(context.Background(), audio)
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if text != "converted" {
		t.Errorf("Transcribe() = %q, want %q", text, "converted")
	}

	if len(calls) != 2 {
		t.Fatalf("command count = %d, want 2 (ffmpeg then whisper)", len(calls))
	}
	if !strings.Contains(calls[0].name, "ffmpeg") {
		t.Errorf("first command = %q, want ffmpeg", calls[0].name)
	}
	if !strings.Contains(calls[1].name, "whisper-cli") {
		t.Errorf("second command = %q, want whisper-cli", calls[1].name)
	}
	// Whisper consumes the converted file, not the original.
	if got := calls[1].argValue("-f"); got == audio {
		t.Error("whisper should read the converted wav, not the original m4a")
	}
}

func TestLocalMissingBinary(t *testing.T) {
	l, _ := testLocal(t, func(ctx context.Context, name string, args ...string) (string, string, error) {
		t.Error("runner should not be called when the binary is missing")
		return "", "", nil
	})
	l.lookPath = func(name string) (string, error) { return "", errors.New("not found") }

	_, err := l.Transcribe(context.Background(), "a.wav")
	if err == nil {
		t.Fatal("Transcribe() should fail without whisper-cli")
	}
	if kind := errs.KindOf(err); kind != errs.Unavailable {
		t.Errorf("KindOf(err) = %v, want %v", kind, errs.Unavailable)
	}
	if !strings.Contains(err.Error(), "not found in PATH") {
		t.Errorf("error should mention the missing binary, got %q", err.Error())
	}
}

func TestLocalMissingFfmpegForNonWav(t *testing.T) {
	l, _ := testLocal(t, func(ctx context.Context, name string, args ...string) (string, string, error) {
		t.Error("runner should not be called without ffmpeg")
		return "", "", nil
	})
	l.lookPath = func(name string) (string, error) {
		if name == "ffmpeg" {
			return "", errors.New("not found")
		}
		return "/usr/local/bin/" + name, nil
	}

	audio := filepath.Join(t.TempDir(), "memo.m4a")
	os.WriteFile(audio, []byte("m4a"), 0644)

	_, err := l.Transcribe(context.Background(), audio)
	if err == nil {
		t.Fatal("Transcribe() should fail for m4a without ffmpeg")
	}
	if kind := errs.KindOf(err); kind != errs.Unavailable {
		t.Errorf("KindOf(err) = %v, want %v", kind, errs.Unavailable)
	}
}

func TestLocalWhisperFailure(t *testing.T) {
	l, _ := testLocal(t, func(ctx context.Context, name string, args ...string) (string, string, error) {
		return "", "ggml_init failed: bad model", errors.New("exit status 1")
	})

	audio := filepath.Join(t.TempDir(), "a.wav")
	os.WriteFile(audio, []byte("RIFF"), 0644)

	_, err := l.Transcribe(context.Background(), audio)
	if err == nil {
		t.Fatal("Transcribe() should surface whisper failure")
	}
	if kind := errs.KindOf(err); kind != errs.Unavailable {
		t.Errorf("KindOf(err) = %v, want %v", kind, errs.Unavailable)
	}
	if !strings.Contains(err.Error(), "ggml_init failed") {
		t.Errorf("error should carry stderr detail, got %q", err.Error())
	}
}

func TestLocalDeadline(t *testing.T) {
	l, _ := testLocal(t, func(ctx context.Context, name string, args ...string) (string, string, error) {
		<-ctx.Done()
		return "", "", ctx.Err()
	})

	audio := filepath.Join(t.TempDir(), "a.wav")
	os.WriteFile(audio, []byte("RIFF"), 0644)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := l.Transcribe(ctx, audio)
	if err == nil {
		t.Fatal("Transcribe() should fail when the deadline expires")
	}
	if kind := errs.KindOf(err); kind != errs.Timeout {
		t.Errorf("KindOf(err) = %v, want %v", kind, errs.Timeout)
	}
}

func TestLocalUnknownModel(t *testing.T) {
	l, _ := testLocal(t, func(ctx context.Context, name string, args ...string) (string, string, error) {
		t.Error("runner should not be called for an unknown model")
		return "", "", nil
	})
	l.model = "enormous"

	audio := filepath.Join(t.TempDir(), "a.wav")
	os.WriteFile(audio, []byte("RIFF"), 0644)

	_, err := l.Transcribe(context.Background(), audio)
	if err == nil {
		t.Fatal("Transcribe() should fail for an unknown model size")
	}
	if kind := errs.KindOf(err); kind != errs.Unavailable {
		t.Errorf("KindOf(err) = %v, want %v", kind, errs.Unavailable)
	}
}

func TestLocalModelCachedAcrossCalls(t *testing.T) {
	var calls []fakeCall
	l, _ := testLocal(t, whisperRunner(t, "ok", &calls))

	audio := filepath.Join(t.TempDir(), "a.wav")
	os.WriteFile(audio, []byte("RIFF"), 0644)

	for i := 0; i < 3; i++ {
		if _, err := l.Transcribe(context.Background(), audio); err != nil {
			t.Fatalf("Transcribe() #%d error = %v", i, err)
		}
	}
	// Every run points at the same resolved model path.
	for i, c := range calls {
		if got := c.argValue("-m"); got != calls[0].argValue("-m") {
			t.Errorf("call %d model path = %q, want %q", i, got, calls[0].argValue("-m"))
		}
	}
}
