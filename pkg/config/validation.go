package config

import (
	"fmt"
	"path/filepath"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// This function uses go-playground/validator for declarative validation
// via struct tags, with additional custom validation for rules that cannot
// be expressed in tags.
//
// Note: Log level normalization is handled in ApplyDefaults, not here.
// Validation accepts both uppercase and lowercase log levels.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	return validateCustomRules(cfg)
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	if !cfg.Adapters.S3.Enabled {
		return fmt.Errorf("adapters: at least one adapter must be enabled")
	}

	if cfg.Storage.Type == "filesystem" {
		root, _ := cfg.Storage.Filesystem["root"].(string)
		if root == "" {
			return fmt.Errorf("storage.filesystem.root: must be set")
		}
		if !filepath.IsAbs(root) {
			return fmt.Errorf("storage.filesystem.root: %q must be an absolute path", root)
		}
	}

	if cfg.Server.Metrics.Enabled && cfg.Server.Metrics.Port == cfg.Adapters.S3.Port {
		return fmt.Errorf("server.metrics.port: port %d already used by the S3 adapter", cfg.Server.Metrics.Port)
	}

	if cfg.Adapters.S3.Burst > 0 && cfg.Adapters.S3.RequestsPerSecond == 0 {
		return fmt.Errorf("adapters.s3.burst: requires requests_per_second > 0")
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
