package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/chaz8081/whisperclip/internal/models"
)

// Duration is a time.Duration that unmarshals from strings like "5m" or
// "300ms" in both YAML and environment variables.
type Duration time.Duration

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// UnmarshalText implements encoding.TextUnmarshaler for env parsing.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Config holds all application configuration.
type Config struct {
	Transcribe   TranscribeConfig   `yaml:"transcribe"`
	Hotkeys      HotkeysConfig      `yaml:"hotkeys"`
	Audio        AudioConfig        `yaml:"audio"`
	Watch        WatchConfig        `yaml:"watch"`
	Deliver      DeliverConfig      `yaml:"deliver"`
	Housekeeping HousekeepingConfig `yaml:"housekeeping"`
	Log          LogConfig          `yaml:"log"`
}

// TranscribeConfig selects and configures the transcription backend.
type TranscribeConfig struct {
	Backend         string   `yaml:"backend" env:"TRANSCRIPTION_MODEL"` // "local", "openai" or "fireworks"
	OpenAIAPIKey    string   `yaml:"openai_api_key" env:"OPENAI_API_KEY"`
	FireworksAPIKey string   `yaml:"fireworks_api_key" env:"FIREWORKS_API_KEY"`
	Model           string   `yaml:"model" env:"DEFAULT_MODEL_SIZE"` // whisper model size, e.g. "base.en"
	ModelsDir       string   `yaml:"models_dir" env:"LOCAL_MODEL_PATH"`
	GPU             bool     `yaml:"gpu" env:"USE_GPU"`
	Language        string   `yaml:"language" env:"WHISPERCLIP_LANGUAGE"` // empty means auto-detect
	Timeout         Duration `yaml:"timeout" env:"WHISPERCLIP_TIMEOUT"`
	MaxRetries      int      `yaml:"max_retries" env:"WHISPERCLIP_MAX_RETRIES"`
	WhisperBin      string   `yaml:"whisper_bin" env:"WHISPERCLIP_WHISPER_BIN"`
}

// HotkeysConfig holds the global key combos. Combos are "+"-joined
// lowercase key names, e.g. "f9" or "ctrl+shift+r".
type HotkeysConfig struct {
	Record string `yaml:"record" env:"RECORDING_HOTKEY"`
	Reset  string `yaml:"reset" env:"WHISPERCLIP_RESET_HOTKEY"`
	Quit   string `yaml:"quit" env:"WHISPERCLIP_QUIT_HOTKEY"`
}

// AudioConfig holds microphone capture settings.
type AudioConfig struct {
	SampleRate    uint32   `yaml:"sample_rate" env:"WHISPERCLIP_SAMPLE_RATE"`
	Channels      uint32   `yaml:"channels"`
	MinDuration   Duration `yaml:"min_duration" env:"WHISPERCLIP_MIN_DURATION"`
	RecordingsDir string   `yaml:"recordings_dir" env:"WHISPERCLIP_RECORDINGS_DIR"`
}

// WatchConfig holds directory watching settings. An empty Dir falls back
// to the recordings directory.
type WatchConfig struct {
	Enabled    bool     `yaml:"enabled" env:"WHISPERCLIP_WATCH"`
	Dir        string   `yaml:"dir" env:"WHISPERCLIP_WATCH_DIR"`
	Extensions []string `yaml:"extensions"`
}

// DeliverConfig holds text delivery settings.
type DeliverConfig struct {
	Mode string `yaml:"mode" env:"WHISPERCLIP_DELIVER_MODE"` // "paste", "type" or "clipboard"
}

// HousekeepingConfig controls deletion of old recordings.
type HousekeepingConfig struct {
	Enabled    bool `yaml:"enabled" env:"DELETE_RECORDINGS"`
	MaxAgeDays int  `yaml:"max_age_days" env:"MAX_RECORDING_AGE_DAYS"`
}

// LogConfig holds logging settings. An empty File logs to stderr only.
type LogConfig struct {
	Level string `yaml:"level" env:"WHISPERCLIP_LOG_LEVEL"`
	File  string `yaml:"file" env:"WHISPERCLIP_LOG_FILE"`
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "whisperclip")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// DefaultModelsDir returns the default whisper model directory.
func DefaultModelsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "models"
	}
	return filepath.Join(home, ".local", "share", "whisperclip", "models")
}

// DefaultRecordingsDir returns the default recordings directory.
func DefaultRecordingsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "recordings"
	}
	return filepath.Join(home, "Documents", "Sound Recordings")
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Transcribe: TranscribeConfig{
			Backend:    "local",
			Model:      "base.en",
			ModelsDir:  DefaultModelsDir(),
			Timeout:    Duration(5 * time.Minute),
			MaxRetries: 2,
			WhisperBin: "whisper-cli",
		},
		Hotkeys: HotkeysConfig{
			Record: "f9",
			Reset:  "f10",
			Quit:   "esc",
		},
		Audio: AudioConfig{
			SampleRate:    16000,
			Channels:      1,
			MinDuration:   Duration(300 * time.Millisecond),
			RecordingsDir: DefaultRecordingsDir(),
		},
		Watch: WatchConfig{
			Enabled:    true,
			Extensions: []string{".m4a", ".mp3", ".ogg", ".flac"},
		},
		Deliver: DeliverConfig{
			Mode: "paste",
		},
		Housekeeping: HousekeepingConfig{
			Enabled:    true,
			MaxAgeDays: 7,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults. It does not apply environment overrides; see Resolve.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return cfg, nil
}

// Resolve builds the effective configuration: built-in defaults, then the
// YAML file (explicit path, or the default path if the file exists), then
// a .env file in the working directory, then process environment variables.
// Later layers win.
func Resolve(path string) (*Config, error) {
	var cfg *Config
	switch {
	case path != "":
		c, err := Load(path)
		if err != nil {
			return nil, err
		}
		cfg = c
	default:
		defaultPath := DefaultConfigPath()
		if _, err := os.Stat(defaultPath); err == nil {
			c, err := Load(defaultPath)
			if err != nil {
				return nil, fmt.Errorf("loading %s: %w", defaultPath, err)
			}
			cfg = c
		} else {
			cfg = Default()
		}
	}

	// .env values become process env so they flow through env.Parse with
	// real environment variables still taking precedence.
	_ = godotenv.Load()
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	cfg.normalize()
	return cfg, nil
}

// normalize expands tildes, lowercases enums and fills derived defaults.
func (c *Config) normalize() {
	c.Transcribe.Backend = strings.ToLower(strings.TrimSpace(c.Transcribe.Backend))
	c.Deliver.Mode = strings.ToLower(strings.TrimSpace(c.Deliver.Mode))
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))

	c.Transcribe.ModelsDir = expandTilde(c.Transcribe.ModelsDir)
	c.Audio.RecordingsDir = expandTilde(c.Audio.RecordingsDir)
	c.Watch.Dir = expandTilde(c.Watch.Dir)
	c.Log.File = expandTilde(c.Log.File)

	if c.Watch.Dir == "" {
		c.Watch.Dir = c.Audio.RecordingsDir
	}
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	switch c.Transcribe.Backend {
	case "local":
		if c.Transcribe.Model == "" {
			return fmt.Errorf("transcribe.model must not be empty for the local backend")
		}
		if _, err := models.Resolve(c.Transcribe.Model); err != nil {
			return fmt.Errorf("transcribe.model: %w", err)
		}
		if c.Transcribe.WhisperBin == "" {
			return fmt.Errorf("transcribe.whisper_bin must not be empty for the local backend")
		}
	case "openai":
		if c.Transcribe.OpenAIAPIKey == "" {
			return fmt.Errorf("transcribe.openai_api_key (or OPENAI_API_KEY) is required for the openai backend")
		}
	case "fireworks":
		if c.Transcribe.FireworksAPIKey == "" {
			return fmt.Errorf("transcribe.fireworks_api_key (or FIREWORKS_API_KEY) is required for the fireworks backend")
		}
	default:
		return fmt.Errorf("transcribe.backend must be \"local\", \"openai\" or \"fireworks\", got %q", c.Transcribe.Backend)
	}

	if c.Transcribe.Timeout.Std() <= 0 {
		return fmt.Errorf("transcribe.timeout must be > 0")
	}

	if c.Transcribe.MaxRetries < 0 {
		return fmt.Errorf("transcribe.max_retries must be >= 0")
	}

	if c.Hotkeys.Record == "" {
		return fmt.Errorf("hotkeys.record must not be empty")
	}

	if c.Audio.SampleRate == 0 {
		return fmt.Errorf("audio.sample_rate must be > 0")
	}

	if c.Audio.Channels == 0 {
		return fmt.Errorf("audio.channels must be > 0")
	}

	if c.Audio.MinDuration.Std() < 0 {
		return fmt.Errorf("audio.min_duration must be >= 0")
	}

	if c.Audio.RecordingsDir == "" {
		return fmt.Errorf("audio.recordings_dir must not be empty")
	}

	for _, ext := range c.Watch.Extensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("watch.extensions entries must start with a dot, got %q", ext)
		}
	}

	switch c.Deliver.Mode {
	case "paste", "type", "clipboard":
	default:
		return fmt.Errorf("deliver.mode must be \"paste\", \"type\" or \"clipboard\", got %q", c.Deliver.Mode)
	}

	if c.Housekeeping.MaxAgeDays < 0 {
		return fmt.Errorf("housekeeping.max_age_days must be >= 0")
	}

	switch c.Log.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be trace, debug, info, warn, or error, got %q", c.Log.Level)
	}

	return nil
}

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
