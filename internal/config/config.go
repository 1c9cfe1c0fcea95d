package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"filehasher/internal/digest"
	"filehasher/internal/util"
)

// Config mirrors the YAML schema. Zero values fall back to the defaults
// documented on each accessor; Validate() rejects values that cannot work.
type Config struct {
	Version    int        `yaml:"version"`
	General    General    `yaml:"general"`
	Hashing    Hashing    `yaml:"hashing"`
	Validation Validation `yaml:"validation"`
	Logging    Logging    `yaml:"logging"`
	Metrics    Metrics    `yaml:"metrics"`
	UI         UIOptions  `yaml:"ui"`
}

type General struct {
	// DataRoot holds state.db (the digest ledger). Empty disables the ledger.
	DataRoot string `yaml:"data_root"`
	// WriteSidecars writes <file>.<alg> checksum files next to hashed files.
	WriteSidecars bool `yaml:"write_sidecars"`
}

type Hashing struct {
	ChunkSizeKB        int      `yaml:"chunk_size_kb"`
	ProgressIntervalMS int      `yaml:"progress_interval_ms"`
	Algorithms         []string `yaml:"algorithms"`
	// Concurrency bounds simultaneous digests per file; 0 means one per algorithm.
	Concurrency int `yaml:"concurrency"`
	// GlobalFiles bounds how many files are hashed at once.
	GlobalFiles int `yaml:"global_files"`
}

type Validation struct {
	MaxSizeMB             int64 `yaml:"max_size_mb"`    // 0 = unlimited
	MinSizeBytes          int64 `yaml:"min_size_bytes"` // 0 = empty files allowed
	RejectSuspiciousNames bool  `yaml:"reject_suspicious_names"`
	// AllowedTypes restricts inputs by MIME type. Entries are exact types,
	// "image/*" wildcards or group names (images, documents, archives,
	// videos, audio). Empty allows every type.
	AllowedTypes []string `yaml:"allowed_types"`
}

type Logging struct {
	Level  string `yaml:"level"`  // debug|info|warn|error
	Format string `yaml:"format"` // human|json
}

type Metrics struct {
	PrometheusTextfile PromTextfile `yaml:"prometheus_textfile"`
}

type PromTextfile struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type UIOptions struct {
	// RefreshHz controls the TUI and progress line refresh frequency. If 0,
	// defaults to 10. Values above 30 are clamped.
	RefreshHz int `yaml:"refresh_hz"`
	// ProgressWidth is the width of the progress bar in columns.
	ProgressWidth int `yaml:"progress_width"`
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	return &Config{
		Version: 1,
		Hashing: Hashing{
			ChunkSizeKB:        1024,
			ProgressIntervalMS: 100,
			Algorithms:         []string{"md5", "sha1", "sha256", "sha384", "sha512"},
			GlobalFiles:        2,
		},
		Validation: Validation{RejectSuspiciousNames: true},
		Logging:    Logging{Level: "info", Format: "human"},
		UI:         UIOptions{RefreshHz: 10, ProgressWidth: 30},
	}
}

// Load reads, parses, expands, and validates a YAML config file.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}
	expanded, err := expandTilde(path)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(expanded)
	if err != nil {
		return nil, err
	}
	// Expand ${ENV} placeholders before unmarshalling
	b = []byte(os.ExpandEnv(string(b)))
	c := Default()
	c.Hashing.Algorithms = nil
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, err
	}
	if err := c.expandPaths(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) expandPaths() error {
	var err error
	if c.General.DataRoot, err = expandTilde(c.General.DataRoot); err != nil {
		return err
	}
	if c.Metrics.PrometheusTextfile.Path, err = expandTilde(c.Metrics.PrometheusTextfile.Path); err != nil {
		return err
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Version != 1 {
		return fmt.Errorf("unsupported config version: %d", c.Version)
	}
	if c.Hashing.ChunkSizeKB < 0 {
		return fmt.Errorf("hashing.chunk_size_kb must be >= 0")
	}
	if c.Hashing.ProgressIntervalMS < 0 {
		return fmt.Errorf("hashing.progress_interval_ms must be >= 0")
	}
	if c.Hashing.Concurrency < 0 || c.Hashing.GlobalFiles < 0 {
		return fmt.Errorf("hashing.concurrency and hashing.global_files must be >= 0")
	}
	if _, err := digest.ParseList(c.Hashing.Algorithms); err != nil {
		return fmt.Errorf("hashing.algorithms: %w", err)
	}
	if c.Validation.MaxSizeMB < 0 || c.Validation.MinSizeBytes < 0 {
		return fmt.Errorf("validation sizes must be >= 0")
	}
	for _, t := range c.Validation.AllowedTypes {
		if !util.ValidTypePattern(t) {
			return fmt.Errorf("validation.allowed_types: invalid entry %q", t)
		}
	}
	lvl := stringsLower(c.Logging.Level)
	switch lvl {
	case "", "debug", "info", "warn", "error":
		// ok
	default:
		return fmt.Errorf("logging.level invalid: %s", c.Logging.Level)
	}
	fmtStr := stringsLower(c.Logging.Format)
	switch fmtStr {
	case "", "human", "json":
		// ok
	default:
		return fmt.Errorf("logging.format invalid: %s", c.Logging.Format)
	}
	if c.Metrics.PrometheusTextfile.Enabled && c.Metrics.PrometheusTextfile.Path == "" {
		return errors.New("metrics.prometheus_textfile.path is required when enabled")
	}
	if c.UI.RefreshHz < 0 {
		return fmt.Errorf("ui.refresh_hz must be >= 0")
	}
	return nil
}

// ChunkSize is the streaming read size in bytes (default 1 MiB).
func (h Hashing) ChunkSize() int {
	if h.ChunkSizeKB <= 0 {
		return 1 << 20
	}
	return h.ChunkSizeKB * 1024
}

// ProgressInterval is the minimum spacing of progress samples (default 100ms).
func (h Hashing) ProgressInterval() time.Duration {
	if h.ProgressIntervalMS <= 0 {
		return 100 * time.Millisecond
	}
	return time.Duration(h.ProgressIntervalMS) * time.Millisecond
}

// DefaultAlgorithms returns the configured algorithm list, or the standard
// set when none is configured.
func (h Hashing) DefaultAlgorithms() []digest.Algorithm {
	algs, err := digest.ParseList(h.Algorithms)
	if err != nil || len(algs) == 0 {
		return append([]digest.Algorithm(nil), digest.Standard...)
	}
	return algs
}

// MaxSizeBytes converts the configured MB limit; 0 means unlimited.
func (v Validation) MaxSizeBytes() int64 { return v.MaxSizeMB * 1024 * 1024 }

// Refresh returns the UI refresh period derived from RefreshHz.
func (u UIOptions) Refresh() time.Duration {
	hz := u.RefreshHz
	if hz <= 0 {
		hz = 10
	}
	if hz > 30 {
		hz = 30
	}
	return time.Second / time.Duration(hz)
}

// ResolvePath picks the config file: explicit flag, FILEHASHER_CONFIG, then
// ~/.config/filehasher/config.yml.
func ResolvePath(flagVal string) string {
	if flagVal != "" {
		return flagVal
	}
	if env := os.Getenv("FILEHASHER_CONFIG"); env != "" {
		return env
	}
	if h, err := os.UserHomeDir(); err == nil && h != "" {
		return filepath.Join(h, ".config", "filehasher", "config.yml")
	}
	return ""
}

// LoadOrDefault loads path when it exists. A missing file that was not
// explicitly requested yields Default().
func LoadOrDefault(path string, explicit bool) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	exp, err := expandTilde(path)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(exp); errors.Is(err, fs.ErrNotExist) && !explicit {
		return Default(), nil
	}
	return Load(path)
}

func expandTilde(p string) (string, error) {
	if p == "" {
		return "", nil
	}
	if p[0] != '~' {
		return p, nil
	}
	h, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	if p == "~" {
		return h, nil
	}
	return filepath.Join(h, p[2:]), nil
}

func stringsLower(s string) string {
	b := []byte(s)
	for i := range b {
		if 'A' <= b[i] && b[i] <= 'Z' {
			b[i] = b[i] + 32
		}
	}
	return string(b)
}

// EnsureDir creates path when set.
func EnsureDir(path string, perm fs.FileMode) error {
	if path == "" {
		return nil
	}
	return os.MkdirAll(path, perm)
}
