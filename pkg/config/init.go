package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const configHeader = `# Baza Configuration File
#
# Every value below can be overridden from the environment with the BAZA_
# prefix, dots replaced by underscores (e.g. BAZA_LOGGING_LEVEL=DEBUG).
#
# storage.filesystem.root holds two directories created on startup:
#   data/  the object tree served by the adapters
#   tmp/   staging area for atomic symlink replacement (emptied on startup)
# Both must live on the same filesystem.

`

// InitConfig writes a configuration file with all defaults to the default
// location, returning its path.
//
// Returns an error if the file already exists and force is false.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes a configuration file with all defaults to path,
// creating missing parent directories.
//
// Returns an error if the file already exists and force is false.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		}
	}

	content, err := renderConfig(GetDefaultConfig())
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// renderConfig serializes cfg as YAML preceded by the explanatory header.
func renderConfig(cfg *Config) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(configHeader)

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}

	return buf.Bytes(), nil
}
