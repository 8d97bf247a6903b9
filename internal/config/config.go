// Package config resolves settings that do not come from flags: the TOML
// config file written by `nano-banana setup` and the process environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

const appName = "nano-banana"

// ErrNoAPIKey is returned when no credential is available from any source.
var ErrNoAPIKey = errors.New("no API key provided. Either pass --api-key or set GEMINI_API_KEY (or run: nano-banana setup)")

// ParseError reports a config file that exists but is not valid TOML.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing config %s: %v (fix it or run: nano-banana setup)", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// File is the on-disk configuration.
type File struct {
	APIKey string `toml:"api_key"`
	Model  string `toml:"model"`
}

// Env is the environment-driven configuration.
type Env struct {
	APIKey   string `env:"GEMINI_API_KEY"`
	Model    string `env:"NANOBANANA_MODEL"`
	LogLevel string `env:"NANOBANANA_LOG_LEVEL" envDefault:"warn"`
}

// LoadEnv parses environment variables into Env.
func LoadEnv() (Env, error) {
	var e Env
	if err := env.Parse(&e); err != nil {
		return Env{}, fmt.Errorf("parse env config: %w", err)
	}
	e.APIKey = strings.TrimSpace(e.APIKey)
	e.Model = strings.TrimSpace(e.Model)
	return e, nil
}

func Dir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}
	home, _ := os.UserHomeDir()
	if runtime.GOOS == "darwin" {
		return filepath.Join(home, "Library", "Application Support", appName)
	}
	return filepath.Join(home, ".config", appName)
}

func Path() string {
	return filepath.Join(Dir(), "config.toml")
}

// Load reads the config file. A missing file yields an empty config.
func Load() (*File, error) {
	path := Path()
	cfg := &File{}
	_, err := toml.DecodeFile(path, cfg)
	switch {
	case err == nil:
		cfg.APIKey = strings.TrimSpace(cfg.APIKey)
		cfg.Model = strings.TrimSpace(cfg.Model)
		return cfg, nil
	case errors.Is(err, os.ErrNotExist):
		return &File{}, nil
	}
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return nil, &ParseError{Path: path, Err: err}
}

// Save writes cfg to Path, readable only by the current user.
func Save(cfg *File) error {
	if err := os.MkdirAll(Dir(), 0700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(Path(), buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// ResolveAPIKey applies precedence: --api-key > GEMINI_API_KEY > config file.
func ResolveAPIKey(flagVal string, e Env, cfg *File) (string, error) {
	if flagVal != "" {
		return flagVal, nil
	}
	if e.APIKey != "" {
		return e.APIKey, nil
	}
	if cfg != nil && cfg.APIKey != "" {
		return cfg.APIKey, nil
	}
	return "", ErrNoAPIKey
}

// ResolveModel applies precedence: explicit --model > NANOBANANA_MODEL > config file > fallback.
func ResolveModel(flagVal string, flagSet bool, e Env, cfg *File) string {
	if flagSet && flagVal != "" {
		return flagVal
	}
	if e.Model != "" {
		return e.Model
	}
	if cfg != nil && cfg.Model != "" {
		return cfg.Model
	}
	return flagVal
}

// Mask hides all but the first and last four characters of a key.
func Mask(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + "..." + key[len(key)-4:]
}
