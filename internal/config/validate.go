package config

import (
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/mrgoonie/claudekit-cli-sub009/internal/errors"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/provider"
)

// Validation errors for configuration fields.
var (
	// ErrVersionTooLow indicates the version field is below the minimum.
	ErrVersionTooLow = errors.New("version must be >= 1")

	// ErrUnsupportedVersion indicates a config written by a newer ck.
	ErrUnsupportedVersion = errors.New("unsupported config version")

	// ErrInvalidPath indicates a path value is malformed.
	ErrInvalidPath = errors.New("invalid path")

	// ErrInvalidPolicy indicates an unknown conflict policy.
	ErrInvalidPolicy = errors.New("invalid conflict policy")

	// ErrInvalidPattern indicates a malformed ignore glob.
	ErrInvalidPattern = errors.New("invalid ignore pattern")
)

// Validate checks a Config for validity.
// Returns nil if valid, or a slice of validation errors.
func Validate(cfg *Config) []error {
	if cfg == nil {
		return []error{errors.New("config is nil")}
	}

	var errs []error

	switch {
	case cfg.Version < 1:
		errs = append(errs, ErrVersionTooLow)
	case cfg.Version > 1:
		errs = append(errs, errors.Wrapf(ErrUnsupportedVersion, "version %d", cfg.Version))
	}

	for _, name := range cfg.DefaultProviders {
		if !provider.Valid(name) {
			errs = append(errs, &ProviderError{Provider: name, Field: "default_providers", Err: errors.ErrUnknownProvider})
		}
	}
	for name, o := range cfg.Providers {
		if !provider.Valid(name) {
			errs = append(errs, &ProviderError{Provider: name, Field: "providers", Err: errors.ErrUnknownProvider})
			continue
		}
		if err := validatePath(o.ProjectDir); err != nil {
			errs = append(errs, &PathError{Field: "providers." + name + ".project_dir", Path: o.ProjectDir, Err: err})
		}
		if err := validatePath(o.GlobalDir); err != nil {
			errs = append(errs, &PathError{Field: "providers." + name + ".global_dir", Path: o.GlobalDir, Err: err})
		}
	}

	if !ValidPolicy(cfg.Conflicts.Modified) {
		errs = append(errs, errors.Wrapf(ErrInvalidPolicy, "conflicts.modified %q", cfg.Conflicts.Modified))
	}
	if !ValidPolicy(cfg.Conflicts.Untracked) {
		errs = append(errs, errors.Wrapf(ErrInvalidPolicy, "conflicts.untracked %q", cfg.Conflicts.Untracked))
	}

	if err := validatePath(cfg.Backup.Dir); err != nil {
		errs = append(errs, &PathError{Field: "backup.dir", Path: cfg.Backup.Dir, Err: err})
	}

	for _, pattern := range cfg.Kit.Ignore {
		if !doublestar.ValidatePattern(pattern) {
			errs = append(errs, errors.Wrapf(ErrInvalidPattern, "kit.ignore %q", pattern))
		}
	}

	return errs
}

// ValidPolicy reports whether p names a conflict policy. Empty means skip.
func ValidPolicy(p string) bool {
	switch p {
	case "", PolicySkip, PolicyBackup, PolicyOverwrite, PolicyPrompt:
		return true
	}
	return false
}

// validatePath checks if a path string is well-formed.
// It does not check if the path exists, only that it's syntactically valid.
func validatePath(path string) error {
	if path == "" {
		return nil
	}
	if strings.ContainsRune(path, '\x00') {
		return ErrInvalidPath
	}
	cleaned := filepath.Clean(path)
	if cleaned == "" || cleaned == "." {
		return ErrInvalidPath
	}
	return nil
}

// ProviderError represents an error for a specific provider entry.
type ProviderError struct {
	Provider string
	Field    string
	Err      error
}

func (e *ProviderError) Error() string {
	return e.Field + ": " + e.Err.Error() + ": " + e.Provider
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// PathError represents an error for a specific path field.
type PathError struct {
	Field string
	Path  string
	Err   error
}

func (e *PathError) Error() string {
	return e.Field + ": " + e.Err.Error() + ": " + e.Path
}

func (e *PathError) Unwrap() error {
	return e.Err
}
