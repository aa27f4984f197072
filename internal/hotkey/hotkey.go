// Package hotkey provides a global hotkey listener using gohook. Each
// configured combo fires a named action on a shared channel.
package hotkey

import (
	"strings"
	"sync"

	hook "github.com/robotn/gohook"
	"github.com/rs/zerolog"
)

// Action identifies which hotkey fired.
type Action int

const (
	// ActionRecord toggles the recorder.
	ActionRecord Action = iota
	// ActionReset forces the pipeline back to idle.
	ActionReset
	// ActionQuit exits the application.
	ActionQuit
)

func (a Action) String() string {
	switch a {
	case ActionRecord:
		return "record"
	case ActionReset:
		return "reset"
	case ActionQuit:
		return "quit"
	default:
		return "unknown"
	}
}

// Bindings maps each action to a "+"-joined key combo, e.g. "f9" or
// "ctrl+shift+r". An empty combo leaves the action unbound.
type Bindings struct {
	Record string
	Reset  string
	Quit   string
}

// Listener registers global key combos and emits Actions on one
// buffered channel.
type Listener struct {
	bindings Bindings
	log      zerolog.Logger
	ch       chan Action
	done     chan struct{}
	once     sync.Once
}

// NewListener creates a Listener for the given bindings.
func NewListener(b Bindings, log zerolog.Logger) *Listener {
	return &Listener{
		bindings: b,
		log:      log.With().Str("component", "hotkey").Logger(),
		ch:       make(chan Action, 16),
		done:     make(chan struct{}),
	}
}

// Actions returns the channel that receives fired hotkeys.
// The channel is closed when Stop is called.
func (l *Listener) Actions() <-chan Action {
	return l.ch
}

// Start begins listening for the global hotkeys.
// This function blocks until Stop is called. Run it in a goroutine.
func (l *Listener) Start() {
	l.register(ActionRecord, l.bindings.Record)
	l.register(ActionReset, l.bindings.Reset)
	l.register(ActionQuit, l.bindings.Quit)

	evChan := hook.Start()
	go func() {
		<-l.done
		hook.End()
	}()
	<-hook.Process(evChan)
	close(l.ch)
}

func (l *Listener) register(a Action, combo string) {
	keys := SplitCombo(combo)
	if len(keys) == 0 {
		return
	}
	l.log.Debug().Str("action", a.String()).Strs("keys", keys).Msg("hotkey registered")

	hook.Register(hook.KeyDown, keys, func(e hook.Event) {
		select {
		case l.ch <- a:
		default: // don't block the hook thread if the channel is full
		}
	})
}

// SplitCombo turns "ctrl+shift+r" into ["ctrl", "shift", "r"]. Key
// names are lowercased and trimmed.
func SplitCombo(combo string) []string {
	parts := strings.Split(combo, "+")
	keys := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			keys = append(keys, p)
		}
	}
	return keys
}

// Stop terminates the hotkey listener.
// It is safe to call multiple times.
func (l *Listener) Stop() {
	l.once.Do(func() {
		close(l.done)
	})
}
