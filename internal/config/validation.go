package config

import (
	"fmt"
	"strings"

	"filehasher/internal/digest"
	friendlyerrors "filehasher/internal/errors"
	"filehasher/internal/util"
)

// ValidationError represents a detailed config validation error
type ValidationError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("Config validation error in '%s': %s", e.Field, e.Message)
}

// ValidateDetailed performs comprehensive validation with friendly error messages
func (c *Config) ValidateDetailed() []ValidationError {
	var errs []ValidationError

	if c.Version != 1 {
		errs = append(errs, ValidationError{
			Field:      "version",
			Value:      c.Version,
			Message:    fmt.Sprintf("Unsupported version: %d", c.Version),
			Suggestion: "Use version: 1",
		})
	}

	// Hashing checks
	if kb := c.Hashing.ChunkSizeKB; kb != 0 && (kb < 4 || kb > 256*1024) {
		errs = append(errs, ValidationError{
			Field:      "hashing.chunk_size_kb",
			Value:      kb,
			Message:    "Must be between 4 KB and 256 MB",
			Suggestion: "Recommended: 1024 (1 MiB)",
		})
	}

	if ms := c.Hashing.ProgressIntervalMS; ms != 0 && ms < 10 {
		errs = append(errs, ValidationError{
			Field:      "hashing.progress_interval_ms",
			Value:      ms,
			Message:    "Progress updates faster than every 10ms flood the terminal",
			Suggestion: "Recommended: 100",
		})
	}

	for i, name := range c.Hashing.Algorithms {
		if _, err := digest.Parse(name); err != nil {
			errs = append(errs, ValidationError{
				Field:      fmt.Sprintf("hashing.algorithms[%d]", i),
				Value:      name,
				Message:    "Unknown algorithm",
				Suggestion: "Use one of: " + algorithmKeys(),
			})
		}
	}

	if c.Hashing.Concurrency < 0 {
		errs = append(errs, ValidationError{
			Field:      "hashing.concurrency",
			Value:      c.Hashing.Concurrency,
			Message:    "Must be >= 0",
			Suggestion: "Use 0 to hash every algorithm at once",
		})
	}

	if c.Hashing.GlobalFiles > 64 {
		errs = append(errs, ValidationError{
			Field:      "hashing.global_files",
			Value:      c.Hashing.GlobalFiles,
			Message:    "Unusually high (>64 files at once)",
			Suggestion: "Hashing is disk bound; try 2-8",
		})
	}

	// Validation limits
	if c.Validation.MaxSizeMB > 0 && c.Validation.MinSizeBytes > c.Validation.MaxSizeBytes() {
		errs = append(errs, ValidationError{
			Field:      "validation.min_size_bytes",
			Value:      c.Validation.MinSizeBytes,
			Message:    "min_size_bytes exceeds max_size_mb",
			Suggestion: fmt.Sprintf("Set min_size_bytes below %d", c.Validation.MaxSizeBytes()),
		})
	}

	for i, t := range c.Validation.AllowedTypes {
		if !util.ValidTypePattern(t) {
			errs = append(errs, ValidationError{
				Field:      fmt.Sprintf("validation.allowed_types[%d]", i),
				Value:      t,
				Message:    "Not a MIME type, wildcard or group name",
				Suggestion: "Use entries like image/png, image/* or one of: " + strings.Join(util.GroupNames(), ", "),
			})
		}
	}

	// Logging validation
	lvl := strings.ToLower(c.Logging.Level)
	validLevels := []string{"", "debug", "info", "warn", "error"}
	found := false
	for _, valid := range validLevels {
		if lvl == valid {
			found = true
			break
		}
	}
	if !found {
		errs = append(errs, ValidationError{
			Field:      "logging.level",
			Value:      c.Logging.Level,
			Message:    "Invalid log level",
			Suggestion: "Use one of: debug, info, warn, error",
		})
	}

	if c.Metrics.PrometheusTextfile.Enabled && c.Metrics.PrometheusTextfile.Path == "" {
		errs = append(errs, ValidationError{
			Field:      "metrics.prometheus_textfile.path",
			Message:    "Required when the textfile exporter is enabled",
			Suggestion: "Point it at the node_exporter textfile directory:\n  path: /var/lib/node_exporter/filehasher.prom",
		})
	}

	return errs
}

// ValidateWithFriendlyErrors returns a user-friendly validation error
func (c *Config) ValidateWithFriendlyErrors() error {
	// Run standard validation first
	if err := c.Validate(); err != nil {
		return err
	}

	errs := c.ValidateDetailed()
	if len(errs) == 0 {
		return nil
	}

	var msg strings.Builder
	msg.WriteString("Configuration validation failed:\n\n")

	for i, err := range errs {
		msg.WriteString(fmt.Sprintf("%d. %s\n", i+1, err.Error()))
		if err.Value != nil {
			msg.WriteString(fmt.Sprintf("   Current value: %v\n", err.Value))
		}
		if err.Suggestion != "" {
			lines := strings.Split(err.Suggestion, "\n")
			for _, line := range lines {
				msg.WriteString(fmt.Sprintf("   → %s\n", line))
			}
		}
		msg.WriteString("\n")
	}

	return friendlyerrors.NewFriendlyError(
		"Config validation failed",
		msg.String(),
	)
}

func algorithmKeys() string {
	var keys []string
	for _, a := range digest.All() {
		keys = append(keys, a.Key())
	}
	return strings.Join(keys, ", ")
}
