package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// defaultTemplate is the commented config file written by WriteDefault.
// Values must stay in sync with Default().
const defaultTemplate = `# whisperclip configuration
#
# Every value here can be overridden by environment variables, including
# ones loaded from a .env file in the working directory. Most variables
# use the WHISPERCLIP_ prefix; a few well-known ones (OPENAI_API_KEY,
# FIREWORKS_API_KEY, DEFAULT_MODEL_SIZE, RECORDING_HOTKEY) keep their
# plain names.

transcribe:
  # Backend: "local" (whisper.cpp CLI), "openai" or "fireworks".
  backend: local
  # API keys for the remote backends. Prefer OPENAI_API_KEY /
  # FIREWORKS_API_KEY in the environment over storing them here.
  openai_api_key: ""
  fireworks_api_key: ""
  # Whisper model size for the local backend (tiny, base.en, small,
  # medium, large-v3, large-v3-turbo, ...). Downloaded on first use.
  model: base.en
  models_dir: %s
  gpu: false
  # Spoken language hint, e.g. "en". Empty means auto-detect.
  language: ""
  timeout: 5m
  max_retries: 2
  whisper_bin: whisper-cli

hotkeys:
  record: f9
  reset: f10
  quit: esc

audio:
  sample_rate: 16000
  channels: 1
  # Captures shorter than this are discarded without transcription.
  min_duration: 300ms
  recordings_dir: %s

watch:
  enabled: true
  # Empty means the recordings directory.
  dir: ""
  extensions: [".m4a", ".mp3", ".ogg", ".flac"]

deliver:
  # "paste" copies to the clipboard and sends the paste keystroke,
  # "type" simulates keystrokes, "clipboard" only copies.
  mode: paste

housekeeping:
  enabled: true
  max_age_days: 7

log:
  level: info
  # Empty logs to stderr only.
  file: ""
`

// WriteDefault writes a commented default config file to the default
// path if none exists yet. It returns the written path, or "" if a
// config file was already present.
func WriteDefault() (string, error) {
	dir := DefaultConfigDir()
	if dir == "" {
		return "", fmt.Errorf("cannot determine config directory")
	}

	path := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return "", nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating config dir: %w", err)
	}

	content := fmt.Sprintf(defaultTemplate,
		yamlPath(DefaultModelsDir()),
		yamlPath(DefaultRecordingsDir()))

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("writing config file: %w", err)
	}

	return path, nil
}

// yamlPath quotes a path for embedding in the YAML template.
func yamlPath(p string) string {
	return `"` + strings.ReplaceAll(p, `"`, `\"`) + `"`
}
