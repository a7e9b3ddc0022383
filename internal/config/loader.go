package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".threedibatch"

// Environment variables understood in the API env file and in the process
// environment. The names match the ones used by the 3Di API client tooling.
const (
	EnvAPIHost          = "THREEDI_API_HOST"
	EnvAPIUsername      = "THREEDI_API_USERNAME"
	EnvAPIPassword      = "THREEDI_API_PASSWORD"
	EnvPersonalAPIToken = "THREEDI_API_PERSONAL_API_TOKEN"
)

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// LoadConfigFile loads a configuration from a YAML file.
// Values not present in the file keep the defaults from NewConfig.
// Unknown keys are rejected so that typos do not silently fall back to
// defaults.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	cfg := NewConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	cfg.ConfigFilePath = path

	// Relative paths in the file are relative to the file itself.
	base := filepath.Dir(path)
	cfg.Repository.Dir = resolvePath(base, cfg.Repository.Dir)
	cfg.SubAreaFile = resolvePath(base, cfg.SubAreaFile)
	cfg.API.EnvFile = resolvePath(base, cfg.API.EnvFile)
	cfg.Rasters.DEMDir = resolvePath(base, cfg.Rasters.DEMDir)
	cfg.Rasters.FrictionDir = resolvePath(base, cfg.Rasters.FrictionDir)
	cfg.Rasters.InfiltrationDir = resolvePath(base, cfg.Rasters.InfiltrationDir)

	return cfg, nil
}

// resolvePath joins a relative path onto base. Empty and absolute paths
// are returned unchanged.
func resolvePath(base, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .threedibatch in the current directory
// 3. Look for .threedibatch in the user's home directory
// 4. Look for config.yaml in the XDG config directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	candidates := make([]string, 0, 3)
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, DefaultConfigFile))
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, DefaultConfigFile))
	}
	candidates = append(candidates, filepath.Join(XDGConfigDir(), "config.yaml"))

	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// LoadCredentials completes the API section from the configured env file
// and then from the process environment. Later sources win.
func LoadCredentials(cfg *Config) error {
	if cfg.API.EnvFile != "" {
		values, err := godotenv.Read(cfg.API.EnvFile)
		if err != nil {
			return fmt.Errorf("failed to read API env file %s: %w", cfg.API.EnvFile, err)
		}
		ApplyEnvironment(cfg, func(key string) (string, bool) {
			v, ok := values[key]
			return v, ok
		})
	}
	ApplyEnvironment(cfg, os.LookupEnv)
	return nil
}

// ApplyEnvironment overrides API settings with non-empty values returned by lookup.
func ApplyEnvironment(cfg *Config, lookup func(string) (string, bool)) {
	set := func(dst *string, key string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	set(&cfg.API.Host, EnvAPIHost)
	set(&cfg.API.Username, EnvAPIUsername)
	set(&cfg.API.Password, EnvAPIPassword)
	set(&cfg.API.PersonalAPIToken, EnvPersonalAPIToken)
}
