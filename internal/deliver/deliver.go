// Package deliver hands transcribed text to the user: clipboard write,
// optional paste keystroke, or direct keystroke simulation.
package deliver

import (
	"runtime"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/go-vgo/robotgo"
	"github.com/rs/zerolog"

	"github.com/chaz8081/whisperclip/internal/errs"
)

// pasteSettle gives the target application time to observe the new
// clipboard contents before the paste keystroke arrives.
const pasteSettle = 80 * time.Millisecond

// Deliverer sends text to the active application using the configured
// mode: "paste" (clipboard + paste keystroke), "type" (keystroke
// simulation, clipboard untouched) or "clipboard" (copy only).
type Deliverer struct {
	mode string
	log  zerolog.Logger
}

// New creates a Deliverer with the given mode.
func New(mode string, log zerolog.Logger) *Deliverer {
	return &Deliverer{
		mode: mode,
		log:  log.With().Str("component", "deliver").Logger(),
	}
}

// Deliver sends text to the user. Callers are expected to sanitize
// first; empty text is a no-op.
func (d *Deliverer) Deliver(text string) error {
	if text == "" {
		return nil
	}

	switch d.mode {
	case "type":
		robotgo.TypeStr(text)
		return nil
	case "clipboard":
		return d.copy(text)
	default: // "paste"
		if err := d.copy(text); err != nil {
			return err
		}
		time.Sleep(pasteSettle)
		if err := robotgo.KeyTap("v", pasteModifier()); err != nil {
			// The text is already on the clipboard, so the user can
			// still paste manually.
			return errs.E(errs.Delivery, "deliver.paste", "paste keystroke failed, text is on the clipboard", err)
		}
		return nil
	}
}

func (d *Deliverer) copy(text string) error {
	if err := clipboard.WriteAll(text); err != nil {
		return errs.E(errs.Delivery, "deliver.clipboard", "cannot write to clipboard", err)
	}
	return nil
}

// pasteModifier returns the platform paste chord modifier.
func pasteModifier() string {
	if runtime.GOOS == "darwin" {
		return "cmd"
	}
	return "ctrl"
}

// Sanitize makes transcribed text safe for the clipboard and keystroke
// paths: invalid UTF-8 becomes the replacement character, NUL and other
// control characters are dropped (newlines and tabs survive), and
// surrounding whitespace is trimmed.
func Sanitize(text string) string {
	text = strings.ToValidUTF8(text, "�")
	text = strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t':
			return r
		case r < 0x20 || r == 0x7f:
			return -1
		}
		return r
	}, text)
	return strings.TrimSpace(text)
}
