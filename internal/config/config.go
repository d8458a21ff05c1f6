// Package config loads settings for both binaries from a YAML file under
// the user config directory, with TIMESHEET_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	appName   = "timesheet"
	envPrefix = "TIMESHEET"
)

// Config holds the settings read at process start.
type Config struct {
	// Path is the config file that was read or created.
	Path string

	BackendURL     string
	APIKey         string
	RequestTimeout time.Duration
	SessionFile    string

	LogLevel  string
	LogFormat string
	LogFile   string

	ListenAddr  string
	DBPath      string
	LinkBaseURL string
}

// Configured reports whether the client has what it needs to reach the
// backend.
func (c *Config) Configured() bool {
	return c.BackendURL != "" && c.APIKey != ""
}

// Dir returns the directory holding the config file and the default data
// files.
func Dir() (string, error) {
	if home := os.Getenv("XDG_CONFIG_HOME"); home != "" {
		return filepath.Join(home, appName), nil
	}
	cfg, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config directory: %w", err)
	}
	return filepath.Join(cfg, appName), nil
}

func setDefaults(v *viper.Viper, dir string) {
	v.SetDefault("backend_url", "")
	v.SetDefault("api_key", "")
	v.SetDefault("request_timeout", "10s")
	v.SetDefault("session_file", filepath.Join(dir, "session.json"))
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("log_file", filepath.Join(dir, appName+".log"))
	v.SetDefault("listen_addr", ":8787")
	v.SetDefault("db_path", filepath.Join(dir, "backend.db"))
	v.SetDefault("link_base_url", "http://localhost:8787/auth/v1/verify")
}

// Load reads path, or <Dir>/timesheet.yaml when path is empty. A missing
// file is created holding the defaults. Environment variables override
// the file.
func Load(path string) (*Config, error) {
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(dir, appName+".yaml")
	}
	dir := filepath.Dir(path)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create config directory: %w", err)
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := writeDefaults(path, dir); err != nil {
			return nil, err
		}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	setDefaults(v, dir)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	timeout := v.GetDuration("request_timeout")
	if timeout <= 0 {
		return nil, fmt.Errorf("request_timeout must be positive, got %q", v.GetString("request_timeout"))
	}

	return &Config{
		Path:           path,
		BackendURL:     strings.TrimRight(v.GetString("backend_url"), "/"),
		APIKey:         v.GetString("api_key"),
		RequestTimeout: timeout,
		SessionFile:    v.GetString("session_file"),
		LogLevel:       v.GetString("log_level"),
		LogFormat:      v.GetString("log_format"),
		LogFile:        v.GetString("log_file"),
		ListenAddr:     v.GetString("listen_addr"),
		DBPath:         v.GetString("db_path"),
		LinkBaseURL:    v.GetString("link_base_url"),
	}, nil
}

// writeDefaults uses its own viper instance so environment overrides such
// as the API key never end up in the file.
func writeDefaults(path, dir string) error {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v, dir)
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("create config %s: %w", path, err)
	}
	return nil
}
