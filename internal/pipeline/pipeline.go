// Package pipeline owns the single-flight transcription state machine.
// Event sources (hotkey capture, directory watcher) submit recordings;
// at most one is transcribed at a time and excess submissions are
// dropped, never queued.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/chaz8081/whisperclip/internal/backend"
	"github.com/chaz8081/whisperclip/internal/deliver"
	"github.com/chaz8081/whisperclip/internal/errs"
)

// State is the pipeline register value.
type State int

const (
	// StateIdle means the pipeline accepts submissions.
	StateIdle State = iota
	// StateTranscribing means one recording is in flight.
	StateTranscribing
	// StateError is the transient failure state; it auto-clears to Idle
	// once the failure has been notified.
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateTranscribing:
		return "transcribing"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Source identifies which trigger produced a recording.
type Source string

const (
	SourceHotkey  Source = "hotkey"
	SourceWatcher Source = "watcher"
)

// Recording is one unit of work submitted to the pipeline.
type Recording struct {
	Path        string
	Source      Source
	SubmittedAt time.Time
}

// ErrBusy is returned by Submit while a transcription is in flight.
var ErrBusy = errors.New("pipeline: transcription already in progress")

// Deliverer hands transcribed text to the user.
type Deliverer interface {
	Deliver(text string) error
}

// Notifier posts user-facing notifications.
type Notifier interface {
	Info(msg string)
	Success(msg string)
	Error(category, hint string)
}

// Counters are cumulative submission statistics.
type Counters struct {
	Submitted int64
	Completed int64
	Dropped   int64
	Failed    int64
}

// Pipeline serializes transcription work behind a single state register.
type Pipeline struct {
	backend backend.Transcriber
	deliver Deliverer
	notify  Notifier
	timeout time.Duration
	log     zerolog.Logger

	mu      sync.Mutex
	state   State
	current Recording
	gen     uint64
	cancel  context.CancelFunc

	submitted atomic.Int64
	completed atomic.Int64
	dropped   atomic.Int64
	failed    atomic.Int64
}

// New creates a Pipeline. timeout bounds each backend call.
func New(b backend.Transcriber, d Deliverer, n Notifier, timeout time.Duration, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		backend: b,
		deliver: d,
		notify:  n,
		timeout: timeout,
		log:     log.With().Str("component", "pipeline").Logger(),
	}
}

// Submit admits a recording if the pipeline is idle. While busy it
// drops the submission, notifies the user and returns ErrBusy; nothing
// is queued. The register check-and-set happens atomically under one
// lock so concurrent triggers cannot both win.
func (p *Pipeline) Submit(rec Recording) error {
	p.mu.Lock()
	if p.state != StateIdle {
		busyWith := p.current.Path
		p.mu.Unlock()

		p.dropped.Add(1)
		p.log.Info().
			Str("path", rec.Path).
			Str("source", string(rec.Source)).
			Str("busy_with", busyWith).
			Msg("submission dropped while transcribing")
		p.notify.Info("Still transcribing, please wait")
		return ErrBusy
	}

	if rec.SubmittedAt.IsZero() {
		rec.SubmittedAt = time.Now()
	}
	p.state = StateTranscribing
	p.current = rec
	p.gen++
	gen := p.gen
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	p.cancel = cancel
	p.mu.Unlock()

	p.submitted.Add(1)
	p.log.Info().
		Str("path", rec.Path).
		Str("source", string(rec.Source)).
		Str("backend", p.backend.Name()).
		Msg("transcription started")

	go p.run(ctx, cancel, rec, gen)
	return nil
}

func (p *Pipeline) run(ctx context.Context, cancel context.CancelFunc, rec Recording, gen uint64) {
	defer cancel()

	type result struct {
		text string
		err  error
	}
	resCh := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				resCh <- result{err: errs.E(errs.Internal, "pipeline.run", "transcription crashed", fmt.Errorf("panic: %v", r))}
			}
		}()
		text, err := p.backend.Transcribe(ctx, rec.Path)
		resCh <- result{text: text, err: err}
	}()

	select {
	case res := <-resCh:
		p.finish(rec, gen, res.text, res.err)
	case <-ctx.Done():
		// The register must not wait on a backend call that ignores its
		// context. Whatever arrives later loses the generation race.
		err := ctx.Err()
		if errors.Is(err, context.DeadlineExceeded) {
			err = errs.E(errs.Timeout, "pipeline.run", "transcription timed out", err)
		}
		p.finish(rec, gen, "", err)
		go func() {
			res := <-resCh
			p.log.Debug().Str("path", rec.Path).Err(res.err).Msg("late result discarded")
		}()
	}
}

func (p *Pipeline) finish(rec Recording, gen uint64, text string, err error) {
	p.mu.Lock()
	stale := p.gen != gen
	p.mu.Unlock()
	if stale {
		p.log.Debug().Str("path", rec.Path).Msg("stale result discarded")
		return
	}

	if err != nil {
		p.fail(rec, gen, err)
		return
	}
	p.succeed(rec, gen, text)
}

func (p *Pipeline) succeed(rec Recording, gen uint64, text string) {
	text = deliver.Sanitize(text)
	if text == "" {
		p.completed.Add(1)
		p.log.Info().
			Str("path", rec.Path).
			Dur("took", time.Since(rec.SubmittedAt)).
			Msg("no speech detected")
		p.notify.Info("No speech detected")
		p.toIdle(gen)
		return
	}

	if err := p.deliver.Deliver(text); err != nil {
		// The transcription itself succeeded; tell the user delivery may
		// have gone wrong so they check the clipboard, and stay on the
		// success path.
		p.completed.Add(1)
		kind := errs.KindOf(err)
		p.log.Error().
			Err(err).
			Str("path", rec.Path).
			Str("source", string(rec.Source)).
			Str("kind", kind.String()).
			Msg("delivery failed, transcription kept")
		p.notify.Error(kind.Category(), errs.Hint(err))
		p.toIdle(gen)
		return
	}

	p.completed.Add(1)
	p.log.Info().
		Str("path", rec.Path).
		Str("source", string(rec.Source)).
		Dur("took", time.Since(rec.SubmittedAt)).
		Int("chars", len(text)).
		Msg("transcription delivered")
	p.notify.Success(preview(text))
	p.toIdle(gen)
}

func (p *Pipeline) fail(rec Recording, gen uint64, err error) {
	p.failed.Add(1)

	if errors.Is(err, context.Canceled) && errs.KindOf(err) == errs.Internal {
		// Reset or shutdown canceled the work; those paths speak to the
		// user themselves.
		p.log.Info().Str("path", rec.Path).Msg("transcription canceled")
		p.toIdle(gen)
		return
	}

	kind := errs.KindOf(err)
	p.log.Error().
		Err(err).
		Str("path", rec.Path).
		Str("source", string(rec.Source)).
		Str("kind", kind.String()).
		Msg("transcription failed")

	p.mu.Lock()
	if p.gen == gen {
		p.state = StateError
	}
	p.mu.Unlock()

	p.notify.Error(kind.Category(), errs.Hint(err))
	p.toIdle(gen)
}

func (p *Pipeline) toIdle(gen uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gen != gen {
		return
	}
	p.state = StateIdle
	p.current = Recording{}
	p.cancel = nil
}

// Reset forces the pipeline back to Idle from any state, canceling any
// in-flight transcription best-effort.
func (p *Pipeline) Reset() {
	p.mu.Lock()
	cancel := p.cancel
	wasBusy := p.state != StateIdle
	p.gen++
	p.state = StateIdle
	p.current = Recording{}
	p.cancel = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	p.log.Info().Bool("was_busy", wasBusy).Msg("pipeline reset")
	p.notify.Info("Pipeline reset")
}

// Shutdown cancels any in-flight transcription without notifying.
func (p *Pipeline) Shutdown() {
	p.mu.Lock()
	cancel := p.cancel
	p.gen++
	p.state = StateIdle
	p.current = Recording{}
	p.cancel = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// State returns the current register value.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// CurrentPath returns the path of the in-flight recording, or "".
// Housekeeping uses it to spare the file being transcribed.
func (p *Pipeline) CurrentPath() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current.Path
}

// Counters returns cumulative submission statistics.
func (p *Pipeline) Counters() Counters {
	return Counters{
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Dropped:   p.dropped.Load(),
		Failed:    p.failed.Load(),
	}
}

// preview shortens text for the success notification.
func preview(text string) string {
	const max = 80
	r := []rune(text)
	if len(r) <= max {
		return text
	}
	return string(r[:max]) + "..."
}
