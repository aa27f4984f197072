package capture

import (
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/chaz8081/whisperclip/internal/config"
	"github.com/chaz8081/whisperclip/internal/pipeline"
)

type fakeSource struct {
	startErr   error
	samples    []float32
	recording  bool
	startCalls int
}

func (f *fakeSource) Start() error {
	f.startCalls++
	if f.startErr != nil {
		return f.startErr
	}
	f.recording = true
	return nil
}

func (f *fakeSource) Stop() []float32 {
	if !f.recording {
		return nil
	}
	f.recording = false
	return f.samples
}

func (f *fakeSource) IsRecording() bool { return f.recording }

type captureNotifier struct {
	infos    []string
	failures []string
}

func (n *captureNotifier) Info(msg string) { n.infos = append(n.infos, msg) }

func (n *captureNotifier) Error(category, hint string) {
	n.failures = append(n.failures, category+": "+hint)
}

type submitRecorder struct {
	recs []pipeline.Recording
	err  error
}

func (s *submitRecorder) submit(rec pipeline.Recording) error {
	s.recs = append(s.recs, rec)
	return s.err
}

func testAudioConfig(dir string) config.AudioConfig {
	return config.AudioConfig{
		SampleRate:    16000,
		Channels:      1,
		MinDuration:   config.Duration(300 * time.Millisecond),
		RecordingsDir: dir,
	}
}

func newTestController(src *fakeSource, dir string) (*Controller, *submitRecorder, *captureNotifier) {
	sub := &submitRecorder{}
	n := &captureNotifier{}
	c := NewController(src, testAudioConfig(dir), sub.submit, n, zerolog.Nop())
	return c, sub, n
}

func hasSubstring(list []string, sub string) bool {
	for _, s := range list {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func TestToggleRecordsAndSubmits(t *testing.T) {
	dir := t.TempDir()
	src := &fakeSource{samples: make([]float32, 8000)} // half a second at 16 kHz
	c, sub, n := newTestController(src, dir)

	c.Toggle()
	if !src.IsRecording() {
		t.Fatal("first Toggle() did not start recording")
	}
	if !hasSubstring(n.infos, "Recording started") {
		t.Errorf("infos = %v, want start message", n.infos)
	}

	c.Toggle()
	if src.IsRecording() {
		t.Fatal("second Toggle() did not stop recording")
	}
	if len(sub.recs) != 1 {
		t.Fatalf("submitted %d recordings, want 1", len(sub.recs))
	}
	rec := sub.recs[0]
	if rec.Source != pipeline.SourceHotkey {
		t.Errorf("Source = %q, want %q", rec.Source, pipeline.SourceHotkey)
	}
	if _, err := os.Stat(rec.Path); err != nil {
		t.Errorf("submitted file missing: %v", err)
	}
	if base := rec.Path; !strings.Contains(base, "recording_") || !strings.HasSuffix(base, ".wav") {
		t.Errorf("Path = %q, want recording_*.wav in %s", rec.Path, dir)
	}
}

func TestToggleTooShortDiscards(t *testing.T) {
	dir := t.TempDir()
	src := &fakeSource{samples: make([]float32, 1600)} // 100 ms, below the 300 ms floor
	c, sub, n := newTestController(src, dir)

	c.Toggle()
	c.Toggle()

	if len(sub.recs) != 0 {
		t.Errorf("submitted %d recordings, want none", len(sub.recs))
	}
	if !hasSubstring(n.infos, "too short") {
		t.Errorf("infos = %v, want too-short message", n.infos)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("reading dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("recordings dir has %d entries, want none", len(entries))
	}
}

func TestToggleRecordsWhileTranscriptionInFlight(t *testing.T) {
	// Capture and transcription are decoupled: a transcription in flight
	// must not keep a new recording from starting. The finished take
	// still goes through the pipeline's admission, which drops it while
	// busy; the file stays on disk for a manual retry.
	dir := t.TempDir()
	src := &fakeSource{samples: make([]float32, 8000)}
	c, sub, n := newTestController(src, dir)
	sub.err = pipeline.ErrBusy

	c.Toggle()
	if src.startCalls != 1 {
		t.Fatalf("Start() called %d times, want 1", src.startCalls)
	}
	if !src.IsRecording() {
		t.Fatal("recording did not start while a transcription was in flight")
	}
	if !hasSubstring(n.infos, "Recording started") {
		t.Errorf("infos = %v, want start message", n.infos)
	}

	c.Toggle()
	if len(sub.recs) != 1 {
		t.Fatalf("submitted %d recordings, want 1", len(sub.recs))
	}
	if _, err := os.Stat(sub.recs[0].Path); err != nil {
		t.Errorf("recording removed after busy drop: %v", err)
	}
}

func TestToggleMicrophoneFailure(t *testing.T) {
	src := &fakeSource{startErr: errors.New("no capture device")}
	c, sub, n := newTestController(src, t.TempDir())

	c.Toggle()

	if src.IsRecording() {
		t.Error("recorder reports recording after a failed start")
	}
	if !hasSubstring(n.failures, "capture error") {
		t.Errorf("failures = %v, want capture error", n.failures)
	}
	if len(sub.recs) != 0 {
		t.Errorf("submitted %d recordings, want none", len(sub.recs))
	}
}

func TestStopDiscardsInProgressRecording(t *testing.T) {
	src := &fakeSource{samples: make([]float32, 8000)}
	c, sub, _ := newTestController(src, t.TempDir())

	c.Toggle()
	c.Stop()

	if src.IsRecording() {
		t.Error("recording still running after Stop()")
	}
	if len(sub.recs) != 0 {
		t.Errorf("submitted %d recordings, want none", len(sub.recs))
	}
}

func TestSampleDuration(t *testing.T) {
	cases := []struct {
		n              int
		rate, channels uint32
		want           time.Duration
	}{
		{16000, 16000, 1, time.Second},
		{8000, 16000, 1, 500 * time.Millisecond},
		{32000, 16000, 2, time.Second},
		{0, 16000, 1, 0},
		{100, 0, 1, 0},
	}
	for _, tc := range cases {
		if got := sampleDuration(tc.n, tc.rate, tc.channels); got != tc.want {
			t.Errorf("sampleDuration(%d, %d, %d) = %v, want %v", tc.n, tc.rate, tc.channels, got, tc.want)
		}
	}
}
