// Package notify posts desktop notifications. Notifications are
// best-effort: failures are logged and never propagated to callers.
package notify

import (
	"github.com/gen2brain/beeep"
	"github.com/rs/zerolog"
)

const (
	titleInfo    = "whisperclip"
	titleSuccess = "Transcription Complete"
	titleError   = "Transcription Error"
)

// Notifier posts desktop notifications via the platform notification
// service.
type Notifier struct {
	log zerolog.Logger
}

// New creates a Notifier.
func New(log zerolog.Logger) *Notifier {
	return &Notifier{log: log.With().Str("component", "notify").Logger()}
}

// Info posts a neutral status notification.
func (n *Notifier) Info(msg string) {
	n.post(titleInfo, msg)
}

// Success posts a completion notification.
func (n *Notifier) Success(msg string) {
	n.post(titleSuccess, msg)
}

// Error posts a failure notification. category is the taxonomy label,
// hint a short human explanation. Full detail belongs in the log, not
// here.
func (n *Notifier) Error(category, hint string) {
	msg := category
	if hint != "" && hint != category {
		msg = category + ": " + hint
	}
	n.post(titleError, msg)
}

func (n *Notifier) post(title, msg string) {
	if err := beeep.Notify(title, msg, ""); err != nil {
		n.log.Debug().Err(err).Str("title", title).Msg("notification failed")
	}
}
