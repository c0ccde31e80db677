// Package config loads the settings of the paula command from YAML files
// and the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/FocuswithJustin/paula/internal/archive"
	"github.com/FocuswithJustin/paula/internal/logging"
	"github.com/FocuswithJustin/paula/internal/validation"
)

// EnvPrefix prefixes every environment override, e.g. PAULA_WORKERS.
const EnvPrefix = "PAULA_"

// Config is the complete configuration.
type Config struct {
	Import  ImportConfig  `yaml:"import"`
	Export  ExportConfig  `yaml:"export"`
	Corpus  CorpusConfig  `yaml:"corpus"`
	Log     LogConfig     `yaml:"log"`
	Storage StorageConfig `yaml:"storage"`
}

// ImportConfig configures reading PAULA documents.
type ImportConfig struct {
	// Extensions select the files of a document directory.
	Extensions []string `yaml:"extensions"`
	// AnnotationNamespace is given to features whose type has no namespace.
	AnnotationNamespace string `yaml:"annotation_namespace"`
	// PointerCacheSize bounds the cache of parsed pointer expressions.
	PointerCacheSize int `yaml:"pointer_cache_size"`
}

// ExportConfig configures writing PAULA documents.
type ExportConfig struct {
	HumanReadable bool `yaml:"human_readable"`
	EmitDoctype   bool `yaml:"emit_doctype"`
	// ArchiveFormat is the format of packed corpora: tar.xz or tar.gz.
	ArchiveFormat string `yaml:"archive_format"`
}

// CorpusConfig configures corpus processing.
type CorpusConfig struct {
	// Workers is the number of documents processed at once.
	Workers int `yaml:"workers"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// StorageConfig configures where graphs and exported files are kept.
type StorageConfig struct {
	// Database is the SQLite file graph snapshots are saved to. Empty
	// disables it.
	Database string `yaml:"database"`
	// BlobDir is the content-addressed store of exported files. Empty
	// disables it.
	BlobDir string `yaml:"blob_dir"`
}

// DefaultConfig returns a Config with the defaults of the command.
func DefaultConfig() *Config {
	return &Config{
		Import: ImportConfig{
			Extensions:          []string{".xml"},
			AnnotationNamespace: "paula",
			PointerCacheSize:    4096,
		},
		Export: ExportConfig{
			HumanReadable: true,
			EmitDoctype:   true,
			ArchiveFormat: archive.FormatTarXZ,
		},
		Corpus: CorpusConfig{Workers: 4},
		Log:    LogConfig{Level: "info", Format: "text"},
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if len(c.Import.Extensions) == 0 {
		return fmt.Errorf("import.extensions must not be empty")
	}
	for _, ext := range c.Import.Extensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("import.extensions: %q must start with a dot", ext)
		}
	}
	if c.Import.PointerCacheSize < 0 {
		return fmt.Errorf("import.pointer_cache_size must not be negative")
	}
	switch c.Export.ArchiveFormat {
	case archive.FormatTarXZ, archive.FormatTarGZ:
	default:
		return fmt.Errorf("export.archive_format must be %s or %s, got %q",
			archive.FormatTarXZ, archive.FormatTarGZ, c.Export.ArchiveFormat)
	}
	if c.Corpus.Workers < 1 {
		return fmt.Errorf("corpus.workers must be at least 1")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format %q is not text or json", c.Log.Format)
	}
	for field, path := range map[string]string{"storage.database": c.Storage.Database, "storage.blob_dir": c.Storage.BlobDir} {
		if path == "" {
			continue
		}
		if err := validation.ValidatePath(path); err != nil {
			return fmt.Errorf("%s: %w", field, err)
		}
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file on top of the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return config, nil
}

// Load reads path when it is not empty, then applies the environment,
// including a .env file in the working directory if there is one, and
// validates the result.
func Load(path string) (*Config, error) {
	config := DefaultConfig()
	if path != "" {
		var err error
		if config, err = LoadFromFile(path); err != nil {
			return nil, err
		}
	}
	// A missing .env is not an error.
	_ = godotenv.Load()
	if err := config.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// ApplyEnv overrides fields from PAULA_* variables looked up with getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	str := func(name string, dst *string) {
		if v := getenv(EnvPrefix + name); v != "" {
			*dst = v
		}
	}
	boolean := func(name string, dst *bool) error {
		v := getenv(EnvPrefix + name)
		if v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*dst = b
		return nil
	}

	str("ANNOTATION_NAMESPACE", &c.Import.AnnotationNamespace)
	str("ARCHIVE_FORMAT", &c.Export.ArchiveFormat)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("DATABASE", &c.Storage.Database)
	str("BLOB_DIR", &c.Storage.BlobDir)
	if v := getenv(EnvPrefix + "EXTENSIONS"); v != "" {
		c.Import.Extensions = splitList(v)
	}
	if v := getenv(EnvPrefix + "WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sWORKERS: %w", EnvPrefix, err)
		}
		c.Corpus.Workers = n
	}
	if err := boolean("HUMAN_READABLE", &c.Export.HumanReadable); err != nil {
		return err
	}
	return boolean("EMIT_DOCTYPE", &c.Export.EmitDoctype)
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// SaveToFile saves configuration to a YAML file.
func (c *Config) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Merge merges another config into this one. Non-zero values of other
// win; booleans of other always win.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}
	if len(other.Import.Extensions) > 0 {
		c.Import.Extensions = other.Import.Extensions
	}
	if other.Import.AnnotationNamespace != "" {
		c.Import.AnnotationNamespace = other.Import.AnnotationNamespace
	}
	if other.Import.PointerCacheSize != 0 {
		c.Import.PointerCacheSize = other.Import.PointerCacheSize
	}
	c.Export.HumanReadable = other.Export.HumanReadable
	c.Export.EmitDoctype = other.Export.EmitDoctype
	if other.Export.ArchiveFormat != "" {
		c.Export.ArchiveFormat = other.Export.ArchiveFormat
	}
	if other.Corpus.Workers != 0 {
		c.Corpus.Workers = other.Corpus.Workers
	}
	if other.Log.Level != "" {
		c.Log.Level = other.Log.Level
	}
	if other.Log.Format != "" {
		c.Log.Format = other.Log.Format
	}
	if other.Storage.Database != "" {
		c.Storage.Database = other.Storage.Database
	}
	if other.Storage.BlobDir != "" {
		c.Storage.BlobDir = other.Storage.BlobDir
	}
}

// InitLogging configures the global logger from the log section.
func (c *Config) InitLogging() {
	logging.InitLogger(logging.ParseLevel(c.Log.Level), logging.ParseFormat(c.Log.Format))
}
