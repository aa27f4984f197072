// Package housekeeping deletes recordings past the retention window so
// the recordings directory does not grow without bound.
package housekeeping

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/chaz8081/whisperclip/internal/config"
)

// sweepInterval is how often the directory is rechecked after the
// startup sweep.
const sweepInterval = 24 * time.Hour

var audioExts = map[string]bool{
	".wav":  true,
	".m4a":  true,
	".mp3":  true,
	".ogg":  true,
	".flac": true,
}

// Keeper sweeps one directory, non-recursively, for audio files older
// than the retention window. The file currently being transcribed is
// spared.
type Keeper struct {
	dir      string
	maxAge   time.Duration
	exclude  func() string
	log      zerolog.Logger
	now      func() time.Time
	interval time.Duration

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New builds a Keeper. exclude returns the path of the in-flight
// recording, or "". A disabled config or a non-positive age yields a
// Keeper that never deletes anything.
func New(cfg config.HousekeepingConfig, dir string, exclude func() string, log zerolog.Logger) *Keeper {
	var maxAge time.Duration
	if cfg.Enabled && cfg.MaxAgeDays > 0 {
		maxAge = time.Duration(cfg.MaxAgeDays) * 24 * time.Hour
	}
	return &Keeper{
		dir:      dir,
		maxAge:   maxAge,
		exclude:  exclude,
		log:      log.With().Str("component", "housekeeping").Logger(),
		now:      time.Now,
		interval: sweepInterval,
		done:     make(chan struct{}),
	}
}

// Start sweeps once immediately and then on every interval tick.
func (k *Keeper) Start() {
	if k.maxAge <= 0 {
		k.log.Debug().Msg("housekeeping disabled")
		return
	}

	k.wg.Add(1)
	go func() {
		defer k.wg.Done()
		k.sweep()

		ticker := time.NewTicker(k.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				k.sweep()
			case <-k.done:
				return
			}
		}
	}()
}

// Stop ends the periodic sweeps.
func (k *Keeper) Stop() {
	k.stopOnce.Do(func() {
		close(k.done)
		k.wg.Wait()
	})
}

func (k *Keeper) sweep() {
	if k.maxAge <= 0 {
		return
	}
	cutoff := k.now().Add(-k.maxAge)

	entries, err := os.ReadDir(k.dir)
	if err != nil {
		k.log.Warn().Err(err).Str("dir", k.dir).Msg("recordings scan failed")
		return
	}

	var removed, kept int
	var freed int64
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !audioExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		path := filepath.Join(k.dir, e.Name())

		info, err := e.Info()
		if err != nil {
			k.log.Warn().Err(err).Str("path", path).Msg("stat failed, skipping")
			continue
		}
		if !info.ModTime().Before(cutoff) {
			kept++
			continue
		}
		if k.exclude != nil && path == k.exclude() {
			k.log.Debug().Str("path", path).Msg("in use, skipping")
			kept++
			continue
		}
		if err := os.Remove(path); err != nil {
			k.log.Warn().Err(err).Str("path", path).Msg("removing old recording failed")
			continue
		}
		removed++
		freed += info.Size()
		k.log.Debug().Str("path", path).Time("modified", info.ModTime()).Msg("old recording removed")
	}

	if removed > 0 {
		k.log.Info().
			Int("removed", removed).
			Int64("bytes", freed).
			Int("kept", kept).
			Msg("old recordings cleaned up")
	} else {
		k.log.Debug().Int("kept", kept).Msg("no recordings past retention")
	}
}
