package capture

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/chaz8081/whisperclip/internal/config"
	"github.com/chaz8081/whisperclip/internal/errs"
	"github.com/chaz8081/whisperclip/internal/pipeline"
)

// AudioSource is the microphone abstraction the controller drives.
type AudioSource interface {
	Start() error
	Stop() []float32
	IsRecording() bool
}

// Notifier is the notification surface the controller needs.
type Notifier interface {
	Info(msg string)
	Error(category, hint string)
}

// Controller turns successive record-hotkey presses into start/stop
// toggles. A finished take is written to the recordings directory and
// handed to the pipeline. Capture runs independently of the pipeline's
// busy state; only the submission at stop time goes through admission.
type Controller struct {
	src    AudioSource
	cfg    config.AudioConfig
	submit func(pipeline.Recording) error
	notify Notifier
	log    zerolog.Logger

	mu        sync.Mutex
	startedAt time.Time
}

// NewController wires an audio source to the pipeline.
func NewController(src AudioSource, cfg config.AudioConfig, submit func(pipeline.Recording) error, notify Notifier, log zerolog.Logger) *Controller {
	return &Controller{
		src:    src,
		cfg:    cfg,
		submit: submit,
		notify: notify,
		log:    log.With().Str("component", "capture").Logger(),
	}
}

// Toggle starts a recording if none is running, otherwise stops the
// running one and submits it for transcription.
func (c *Controller) Toggle() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.src.IsRecording() {
		c.finish()
		return
	}
	c.begin()
}

func (c *Controller) begin() {
	if err := c.src.Start(); err != nil {
		c.log.Error().Err(err).Msg("microphone start failed")
		c.notify.Error(errs.Capture.Category(), "microphone unavailable")
		return
	}
	c.startedAt = time.Now()
	c.log.Info().Msg("recording started")
	c.notify.Info("Recording started")
}

func (c *Controller) finish() {
	samples := c.src.Stop()
	held := time.Since(c.startedAt)

	dur := sampleDuration(len(samples), c.cfg.SampleRate, c.cfg.Channels)
	if dur < c.cfg.MinDuration.Std() {
		c.log.Info().Dur("duration", dur).Msg("recording too short, discarded")
		c.notify.Info("Recording too short, discarded")
		return
	}

	if err := os.MkdirAll(c.cfg.RecordingsDir, 0o755); err != nil {
		c.log.Error().Err(err).Str("dir", c.cfg.RecordingsDir).Msg("recordings directory unavailable")
		c.notify.Error(errs.Capture.Category(), "cannot save the recording")
		return
	}
	path := filepath.Join(c.cfg.RecordingsDir, Filename(time.Now()))
	if err := WriteWAV(path, samples, int(c.cfg.SampleRate), int(c.cfg.Channels)); err != nil {
		c.log.Error().Err(err).Str("path", path).Msg("saving recording failed")
		c.notify.Error(errs.Capture.Category(), "cannot save the recording")
		return
	}

	c.log.Info().
		Str("path", path).
		Dur("duration", dur).
		Dur("held", held).
		Msg("recording stopped")

	if err := c.submit(pipeline.Recording{Path: path, Source: pipeline.SourceHotkey, SubmittedAt: time.Now()}); err != nil {
		// The pipeline already notified the drop. The file stays on disk
		// for a manual retry.
		c.log.Warn().Err(err).Str("path", path).Msg("recording not submitted")
	}
}

// Stop discards a recording in progress. Used at shutdown.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.src.IsRecording() {
		c.src.Stop()
		c.log.Info().Msg("recording discarded at shutdown")
	}
}

func sampleDuration(n int, rate, channels uint32) time.Duration {
	if rate == 0 || channels == 0 {
		return 0
	}
	return time.Duration(float64(n) / float64(rate*channels) * float64(time.Second))
}
