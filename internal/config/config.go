package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Source names. They double as the keys of per-source contributions.
const (
	SourceSemantic = "semantic"
	SourceLexical  = "lexical"
	SourceTemporal = "temporal"
	SourcePersona  = "persona"
)

// KnownSources lists every source in registration order.
var KnownSources = []string{SourceSemantic, SourceLexical, SourceTemporal, SourcePersona}

// Config represents the complete scry configuration.
type Config struct {
	Version int `yaml:"version" json:"version"`

	// DataDir holds the project stores. Relative paths resolve against the
	// project root.
	DataDir string `yaml:"data_dir" json:"data_dir"`

	Search     SearchConfig     `yaml:"search" json:"search"`
	Sources    SourcesConfig    `yaml:"sources" json:"sources"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Lexical    LexicalConfig    `yaml:"lexical" json:"lexical"`
	Classifier ClassifierConfig `yaml:"classifier" json:"classifier"`
	Telemetry  TelemetryConfig  `yaml:"telemetry" json:"telemetry"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`

	// ProjectRoot is set by Load and never read from a file.
	ProjectRoot string `yaml:"-" json:"-"`
}

// SearchConfig configures fusion and post-processing.
// Values are configurable via:
//  1. User config (~/.config/scry/config.yaml)
//  2. Project config (.scry.yaml)
//  3. Env vars (SCRY_RRF_CONSTANT, SCRY_MAX_PER_FILE, ...)
type SearchConfig struct {
	DefaultLimit int `yaml:"default_limit" json:"default_limit"`
	MaxLimit     int `yaml:"max_limit" json:"max_limit"`

	// RRFConstant is the k in 1/(k+rank).
	RRFConstant int `yaml:"rrf_constant" json:"rrf_constant"`

	// OverFetch multiplies the limit passed to each source.
	OverFetch int `yaml:"over_fetch" json:"over_fetch"`

	// MaxPerFile caps results that share one originating file.
	MaxPerFile int `yaml:"max_per_file" json:"max_per_file"`

	// UsageBoost is the factor in 1 + f*ln(1+use_count).
	UsageBoost float64 `yaml:"usage_boost" json:"usage_boost"`

	// Timeout bounds a whole search at the calling surface (e.g. "5s").
	Timeout string `yaml:"timeout" json:"timeout"`

	// CircuitFailures is the consecutive failure count that trips a source.
	CircuitFailures int `yaml:"circuit_failures" json:"circuit_failures"`
}

// SourcesConfig locates the backing store of each source.
type SourcesConfig struct {
	// Disabled names sources that are never registered.
	Disabled []string `yaml:"disabled" json:"disabled"`

	VectorIndex string `yaml:"vector_index" json:"vector_index"`
	Database    string `yaml:"database" json:"database"`
	LexicalPath string `yaml:"lexical_path" json:"lexical_path"`
	UsageDB     string `yaml:"usage_db" json:"usage_db"`

	// PersonaDir holds the cross-project index, shared by all projects.
	PersonaDir string `yaml:"persona_dir" json:"persona_dir"`

	// Granularity is the DocID convention of the repository indexes:
	// "file" or "symbol". Co-change data is always file level.
	Granularity string `yaml:"granularity" json:"granularity"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	Dimensions int `yaml:"dimensions" json:"dimensions"`
	CacheSize  int `yaml:"cache_size" json:"cache_size"`
}

// LexicalConfig configures the text-ranking index.
type LexicalConfig struct {
	// Backend is "sqlite" (FTS5, default) or "bleve".
	Backend string  `yaml:"backend" json:"backend"`
	K1      float64 `yaml:"k1" json:"k1"`
	B       float64 `yaml:"b" json:"b"`
}

// ClassifierConfig configures intent classification.
type ClassifierConfig struct {
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// TelemetryConfig configures local query telemetry.
type TelemetryConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
}

// LoggingConfig configures the log file.
type LoggingConfig struct {
	Level     string `yaml:"level" json:"level"`
	MaxSizeMB int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files" json:"max_files"`
}

// NewConfig returns the defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		DataDir: filepath.Join(".scry", "data"),
		Search: SearchConfig{
			DefaultLimit:    10,
			MaxLimit:        100,
			RRFConstant:     60,
			OverFetch:       2,
			MaxPerFile:      2,
			UsageBoost:      0.1,
			Timeout:         "5s",
			CircuitFailures: 5,
		},
		Sources: SourcesConfig{
			VectorIndex: "vectors.hnsw",
			Database:    "scry.db",
			LexicalPath: "bm25.db",
			UsageDB:     "usage.db",
			PersonaDir:  defaultPersonaDir(),
			Granularity: "file",
		},
		Embeddings: EmbeddingsConfig{
			Dimensions: 256,
			CacheSize:  1000,
		},
		Lexical: LexicalConfig{
			Backend: "sqlite",
			K1:      1.2,
			B:       0.75,
		},
		Classifier: ClassifierConfig{
			CacheSize: 1000,
		},
		Telemetry: TelemetryConfig{
			Enabled: true,
			Path:    "telemetry.db",
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
	}
}

func defaultPersonaDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".scry", "persona")
	}
	return filepath.Join(home, ".scry", "persona")
}

// GetUserConfigPath returns the user configuration file path:
//   - $XDG_CONFIG_HOME/scry/config.yaml when XDG_CONFIG_HOME is set
//   - ~/.config/scry/config.yaml otherwise
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "scry", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "scry", "config.yaml")
	}
	return filepath.Join(home, ".config", "scry", "config.yaml")
}

// Load builds the configuration for the project in dir.
// Layers, in increasing precedence:
//  1. Defaults
//  2. User config (~/.config/scry/config.yaml)
//  3. Project config (.scry.yaml or .scry.yml in dir)
//  4. .env in dir (only for variables not already set)
//  5. SCRY_* environment variables
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if path := GetUserConfigPath(); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	if envPath := filepath.Join(dir, ".env"); fileExists(envPath) {
		if err := godotenv.Load(envPath); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", envPath, err)
		}
	}
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}
	cfg.ProjectRoot = abs
	return cfg, nil
}

func (c *Config) loadFromFile(dir string) error {
	for _, name := range []string{".scry.yaml", ".scry.yml"} {
		path := filepath.Join(dir, name)
		if fileExists(path) {
			return c.loadYAML(path)
		}
	}
	return nil
}

// loadYAML decodes path onto c. Keys absent from the file keep their
// current value, so each layer only overrides what it names.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides applies SCRY_* environment variables.
// Malformed or out-of-range values are ignored.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SCRY_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("SCRY_RRF_CONSTANT"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k > 0 {
			c.Search.RRFConstant = k
		}
	}
	if v := os.Getenv("SCRY_MAX_PER_FILE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Search.MaxPerFile = n
		}
	}
	if v := os.Getenv("SCRY_USAGE_BOOST"); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && f >= 0 {
			c.Search.UsageBoost = f
		}
	}
	if v := os.Getenv("SCRY_LEXICAL_BACKEND"); v != "" {
		c.Lexical.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("SCRY_DISABLE_SOURCES"); v != "" {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(strings.ToLower(name)); name != "" {
				c.Sources.Disabled = append(c.Sources.Disabled, name)
			}
		}
	}
	if v := os.Getenv("SCRY_PERSONA_DIR"); v != "" {
		c.Sources.PersonaDir = v
	}
	if v := os.Getenv("SCRY_TELEMETRY"); v != "" {
		c.Telemetry.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("SCRY_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate returns an error for values the engine cannot run with.
func (c *Config) Validate() error {
	s := c.Search
	if s.RRFConstant <= 0 {
		return fmt.Errorf("search.rrf_constant must be positive, got %d", s.RRFConstant)
	}
	if s.DefaultLimit <= 0 || s.MaxLimit <= 0 {
		return fmt.Errorf("search limits must be positive, got default=%d max=%d", s.DefaultLimit, s.MaxLimit)
	}
	if s.DefaultLimit > s.MaxLimit {
		return fmt.Errorf("search.default_limit (%d) exceeds search.max_limit (%d)", s.DefaultLimit, s.MaxLimit)
	}
	if s.OverFetch < 1 {
		return fmt.Errorf("search.over_fetch must be at least 1, got %d", s.OverFetch)
	}
	if s.MaxPerFile < 1 {
		return fmt.Errorf("search.max_per_file must be at least 1, got %d", s.MaxPerFile)
	}
	if s.UsageBoost < 0 {
		return fmt.Errorf("search.usage_boost must be non-negative, got %f", s.UsageBoost)
	}
	if _, err := time.ParseDuration(s.Timeout); err != nil {
		return fmt.Errorf("search.timeout: %w", err)
	}

	switch c.Lexical.Backend {
	case "sqlite", "bleve":
	default:
		return fmt.Errorf("lexical.backend must be 'sqlite' or 'bleve', got %s", c.Lexical.Backend)
	}

	switch c.Sources.Granularity {
	case "file", "symbol":
	default:
		return fmt.Errorf("sources.granularity must be 'file' or 'symbol', got %s", c.Sources.Granularity)
	}

	if c.Embeddings.Dimensions <= 0 {
		return fmt.Errorf("embeddings.dimensions must be positive, got %d", c.Embeddings.Dimensions)
	}

	known := make(map[string]bool, len(KnownSources))
	for _, name := range KnownSources {
		known[name] = true
	}
	for _, name := range c.Sources.Disabled {
		if !known[name] {
			return fmt.Errorf("sources.disabled: unknown source %q", name)
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}
	return nil
}

// SearchTimeout returns the parsed search timeout.
func (c *Config) SearchTimeout() time.Duration {
	d, err := time.ParseDuration(c.Search.Timeout)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// SourceEnabled reports whether name is not disabled.
func (c *Config) SourceEnabled(name string) bool {
	for _, d := range c.Sources.Disabled {
		if d == name {
			return false
		}
	}
	return true
}

// DataPath resolves a store file name against the data directory.
// Absolute names are returned unchanged.
func (c *Config) DataPath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	dataDir := c.DataDir
	if !filepath.IsAbs(dataDir) {
		dataDir = filepath.Join(c.ProjectRoot, dataDir)
	}
	return filepath.Join(dataDir, name)
}

// PersonaPath resolves a file name inside the cross-project directory.
func (c *Config) PersonaPath(name string) string {
	return filepath.Join(c.Sources.PersonaDir, name)
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// FindProjectRoot walks up from startDir to the first directory holding
// .git or a .scry.yaml/.scry.yml file. It returns startDir when none is found.
func FindProjectRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	current := absDir
	for {
		if dirExists(filepath.Join(current, ".git")) ||
			fileExists(filepath.Join(current, ".scry.yaml")) ||
			fileExists(filepath.Join(current, ".scry.yml")) {
			return current, nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			return absDir, nil
		}
		current = parent
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
