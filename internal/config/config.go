// Package config loads handbooth settings from defaults, an optional .env,
// a TOML file, HANDBOOTH_* environment variables and the settings table.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/ayusman/handbooth/internal/capture"
	"github.com/ayusman/handbooth/internal/delivery"
	"github.com/ayusman/handbooth/internal/detector"
	"github.com/ayusman/handbooth/internal/gesture"
	"github.com/ayusman/handbooth/internal/hold"
	"github.com/ayusman/handbooth/internal/logging"
	"github.com/ayusman/handbooth/internal/session"
	"github.com/ayusman/handbooth/internal/tracker"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "HANDBOOTH_"

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Tracking modes.
const (
	ModeAll      = "all"
	ModeDominant = "dominant"
)

// Config is the effective handbooth configuration.
type Config struct {
	Environment string `toml:"environment" validate:"oneof=development production"`
	DataDir     string `toml:"data_dir" validate:"required"`
	Listen      string `toml:"listen" validate:"required"`
	StaticDir   string `toml:"static_dir"`
	PluginDir   string `toml:"plugin_dir"`
	Tray        bool   `toml:"tray"`

	Log      logging.Config  `toml:"log"`
	Camera   capture.Config  `toml:"camera"`
	Detector detector.Config `toml:"detector"`
	Tracker  tracker.Config  `toml:"tracker"`
	Gesture  GestureConfig   `toml:"gesture"`
	Hold     hold.Config     `toml:"hold"`
	Session  session.Config  `toml:"session"`
	Pipeline PipelineConfig  `toml:"pipeline"`
	Delivery delivery.Config `toml:"delivery"`

	// Rules maps state name to label name to action name.
	Rules map[string]map[string]string `toml:"rules"`
}

// GestureConfig selects the enabled labels and their geometry.
type GestureConfig struct {
	Thresholds gesture.Thresholds `toml:"thresholds"`
	Vocabulary []string           `toml:"vocabulary" validate:"min=1,max=2"`
}

// PipelineConfig controls the frame loop.
type PipelineConfig struct {
	// Mode is "all" to let every hand accumulate or "dominant" for one winner per frame.
	Mode string `toml:"mode" validate:"oneof=all dominant"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	dataDir := expandTilde("~/.handbooth")
	cfg := &Config{
		Environment: "development",
		DataDir:     dataDir,
		Listen:      "127.0.0.1:8080",
		StaticDir:   "web",
		PluginDir:   filepath.Join(dataDir, "plugins"),
		Log:         logging.DefaultConfig(),
		Camera:      capture.DefaultConfig(),
		Detector:    detector.DefaultConfig(),
		Tracker:     tracker.DefaultConfig(),
		Gesture: GestureConfig{
			Thresholds: gesture.DefaultThresholds(),
			Vocabulary: []string{gesture.TwoFingers.String(), gesture.OkHand.String()},
		},
		Hold:     hold.DefaultConfig(),
		Session:  session.DefaultConfig(),
		Pipeline: PipelineConfig{Mode: ModeAll},
		Delivery: delivery.DefaultConfig(),
		Rules:    session.DefaultRules().Raw(),
	}
	cfg.Log.File = filepath.Join(dataDir, "logs", "handbooth.log")
	return cfg
}

// Load builds the configuration. path names a TOML file; when empty the XDG
// location is used if it exists. A missing .env file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	_ = godotenv.Load()

	if path == "" {
		path = FilePath()
	} else if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file: %w", err)
	}
	if path != "" {
		// A [rules] table in the file replaces the default rules rather than merging into them.
		defaults := cfg.Rules
		cfg.Rules = nil
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		if cfg.Rules == nil {
			cfg.Rules = defaults
		}
	}

	if err := cfg.ApplyEnv(os.Environ()); err != nil {
		return nil, err
	}
	cfg.expandPaths()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FilePath returns the default config file location, or "" when it does not exist.
func FilePath() string {
	var configDir string
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		configDir = filepath.Join(xdg, "handbooth")
	} else if home, err := os.UserHomeDir(); err == nil {
		configDir = filepath.Join(home, ".config", "handbooth")
	} else {
		return ""
	}

	path := filepath.Join(configDir, "config.toml")
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return ""
}

// ApplyEnv applies HANDBOOTH_* entries from environ, given as KEY=VALUE pairs.
// HANDBOOTH_HOLD_THRESHOLD=2s sets hold.threshold.
func (c *Config) ApplyEnv(environ []string) error {
	byEnv := make(map[string]string)
	for _, key := range Keys() {
		byEnv[EnvName(key)] = key
	}

	var errs []error
	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, EnvPrefix) {
			continue
		}
		key, known := byEnv[name]
		if !known {
			continue
		}
		if err := c.Set(key, value); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// ApplySettings applies dotted-key overrides stored in the settings table.
// Unknown keys are reported but do not stop the others.
func (c *Config) ApplySettings(settings map[string]string) error {
	var errs []error
	for key, value := range settings {
		if err := c.Set(key, value); err != nil {
			errs = append(errs, fmt.Errorf("setting %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

// EnvName returns the environment variable for a dotted key.
func EnvName(key string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// Validate checks field ranges, the vocabulary and the state rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if _, err := c.Vocabulary(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if _, err := c.SessionConfig(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// Vocabulary parses the enabled gesture labels.
func (c *Config) Vocabulary() ([]gesture.Label, error) {
	labels := make([]gesture.Label, 0, len(c.Gesture.Vocabulary))
	for _, name := range c.Gesture.Vocabulary {
		l, err := gesture.ParseLabel(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		labels = append(labels, l)
	}
	if err := gesture.ValidateVocabulary(labels); err != nil {
		return nil, err
	}
	return labels, nil
}

// SessionConfig returns the session settings with the parsed rules. Empty
// rules fall back to the defaults.
func (c *Config) SessionConfig() (session.Config, error) {
	sc := c.Session
	if len(c.Rules) == 0 {
		sc.Rules = session.DefaultRules()
		return sc, nil
	}
	rules, err := session.ParseRules(c.Rules)
	if err != nil {
		return sc, err
	}
	sc.Rules = rules
	return sc, nil
}

// DBPath returns the sqlite database location.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "handbooth.db")
}

// PhotoDir returns the directory photos are written under.
func (c *Config) PhotoDir() string {
	return filepath.Join(c.DataDir, "photos")
}

// TOML encodes the configuration.
func (c *Config) TOML() ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *Config) expandPaths() {
	c.DataDir = expandTilde(c.DataDir)
	c.StaticDir = expandTilde(c.StaticDir)
	c.PluginDir = expandTilde(c.PluginDir)
	c.Log.File = expandTilde(c.Log.File)
	c.Detector.ScriptPath = expandTilde(c.Detector.ScriptPath)
}

func expandTilde(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

var validate = validator.New(validator.WithRequiredStructEnabled())
