// Package logging configures the process-wide zerolog logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Setup builds the root logger. Output goes to a human-readable console
// writer on stderr; when file is non-empty, full JSON records are also
// appended there. The returned closer flushes and closes the log file.
func Setup(level, file string) (zerolog.Logger, func(), error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}

	var w io.Writer = console
	closer := func() {}
	if file != "" {
		if err := os.MkdirAll(filepath.Dir(file), 0755); err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("creating log dir: %w", err)
		}
		f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("opening log file: %w", err)
		}
		w = zerolog.MultiLevelWriter(console, f)
		closer = func() { f.Close() }
	}

	logger := zerolog.New(w).With().Timestamp().Logger().Level(lvl)
	return logger, closer, nil
}
