package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hay-kot/criterio"
	"github.com/robfig/cron/v3"
)

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Category string `json:"category"`
	Item     string `json:"item,omitempty"`
	Message  string `json:"message"`
}

// Validate checks that the configuration is valid. Errors are returned as
// criterio.FieldErrors keyed by yaml path.
func (c *Config) Validate() error {
	var errs criterio.FieldErrorsBuilder

	if c.DataDir == "" {
		errs = errs.Append("data_dir", errors.New("data directory cannot be empty"))
	}

	switch c.Backend {
	case BackendJSONFile:
	case BackendMongo:
		if c.Mongo.URI == "" {
			errs = errs.Append("mongo.uri", errors.New("required when backend is mongo"))
		}
		if c.Mongo.Database == "" {
			errs = errs.Append("mongo.database", errors.New("required when backend is mongo"))
		}
	default:
		errs = errs.Append("backend", fmt.Errorf("unknown backend %q (want %s or %s)", c.Backend, BackendJSONFile, BackendMongo))
	}

	if c.PollInterval <= 0 {
		errs = errs.Append("poll_interval", errors.New("must be positive"))
	}

	for i, pattern := range c.Catalog.Sources {
		if !doublestar.ValidatePathPattern(pattern) {
			errs = errs.Append(fmt.Sprintf("catalog.sources[%d]", i), fmt.Errorf("invalid glob %q", pattern))
		}
	}

	if c.Catalog.Refresh != "" {
		if _, err := cron.ParseStandard(c.Catalog.Refresh); err != nil {
			errs = errs.Append("catalog.refresh", fmt.Errorf("invalid schedule: %w", err))
		}
	}

	w := c.Catalog.Window
	if w.Start.IsZero() != w.End.IsZero() {
		errs = errs.Append("catalog.window", errors.New("start and end must be set together"))
	} else if !w.Start.IsZero() && !w.End.After(w.Start) {
		errs = errs.Append("catalog.window.end", errors.New("must be after start"))
	}

	if c.Reservations.Cutoff < 0 {
		errs = errs.Append("reservations.cutoff", errors.New("cannot be negative"))
	}

	return errs.ToError()
}

// ValidateDeep runs Validate and also checks the config file and data
// directory on disk.
func (c *Config) ValidateDeep(configPath string) error {
	var errs criterio.FieldErrorsBuilder

	if err := c.Validate(); err != nil {
		var fieldErrs criterio.FieldErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		for _, fe := range fieldErrs {
			errs = errs.Append(fe.Field, fe.Err)
		}
	}

	if configPath != "" {
		if info, err := os.Stat(configPath); err == nil && info.IsDir() {
			errs = errs.Append("config_file", fmt.Errorf("%s is a directory, not a file", configPath))
		} else if err != nil && !os.IsNotExist(err) {
			errs = errs.Append("config_file", fmt.Errorf("cannot access %s: %w", configPath, err))
		}
	}

	if c.DataDir != "" {
		if info, err := os.Stat(c.DataDir); err == nil && !info.IsDir() {
			errs = errs.Append("data_dir", fmt.Errorf("%s exists but is not a directory", c.DataDir))
		} else if err != nil && !os.IsNotExist(err) {
			errs = errs.Append("data_dir", fmt.Errorf("cannot access %s: %w", c.DataDir, err))
		}
	}

	return errs.ToError()
}

// Warnings returns non-fatal issues, such as catalog patterns that match
// no files.
func (c *Config) Warnings() []ValidationWarning {
	var warnings []ValidationWarning

	if len(c.Catalog.Sources) == 0 {
		warnings = append(warnings, ValidationWarning{
			Category: "Catalog",
			Item:     "sources",
			Message:  "no catalog sources configured; the session list will be empty",
		})
	}

	for _, pattern := range c.SourcePatterns() {
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil || len(matches) > 0 {
			continue
		}
		warnings = append(warnings, ValidationWarning{
			Category: "Catalog",
			Item:     pattern,
			Message:  "pattern matches no files",
		})
	}

	if c.Catalog.Refresh != "" && c.Catalog.Window.Start.IsZero() {
		warnings = append(warnings, ValidationWarning{
			Category: "Catalog",
			Item:     "window",
			Message:  "no conference window; recurring events keep only their first occurrence",
		})
	}

	return warnings
}
