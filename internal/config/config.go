// Package config loads the command line configuration file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/fusion/blobstore/minio"
	"github.com/hupe1980/fusion/quantization"
)

// Config is read from $XDG_CONFIG_HOME/fusion/config.yaml.
type Config struct {
	Threads  int            `yaml:"threads"`
	Log      LogConfig      `yaml:"log"`
	Quantize QuantizeConfig `yaml:"quantize"`
	S3       S3Config       `yaml:"s3"`
	MinIO    MinIOConfig    `yaml:"minio"`
}

// LogConfig selects the log handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// QuantizeConfig holds quantizer defaults.
type QuantizeConfig struct {
	Subspaces    int   `yaml:"subspaces"`
	CodebookSize int   `yaml:"codebook_size"`
	Iterations   int   `yaml:"iterations"`
	Attempts     int   `yaml:"attempts"`
	Normalize    bool  `yaml:"normalize"`
	Seed         int64 `yaml:"seed"`
}

// S3Config holds settings for s3:// sources.
type S3Config struct {
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
	Prefix   string `yaml:"prefix"`
}

// MinIOConfig holds settings for minio:// sources.
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Secure    bool   `yaml:"secure"`
	Region    string `yaml:"region"`
	Prefix    string `yaml:"prefix"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	q := quantization.DefaultConfig()
	return &Config{
		Threads: runtime.GOMAXPROCS(0),
		Log:     LogConfig{Level: "warn", Format: "text"},
		Quantize: QuantizeConfig{
			Subspaces:    q.Subspaces,
			CodebookSize: q.CodebookSize,
			Iterations:   q.Iterations,
			Attempts:     q.Attempts,
			Normalize:    q.Normalize,
			Seed:         q.Seed,
		},
	}
}

// QuantizationConfig converts the quantizer section.
func (c *Config) QuantizationConfig() quantization.Config {
	return quantization.Config{
		Subspaces:    c.Quantize.Subspaces,
		CodebookSize: c.Quantize.CodebookSize,
		Iterations:   c.Quantize.Iterations,
		Attempts:     c.Quantize.Attempts,
		Normalize:    c.Quantize.Normalize,
		Seed:         c.Quantize.Seed,
		Workers:      c.Threads,
	}
}

// HasMinIO returns true if a MinIO endpoint is configured.
func (c *Config) HasMinIO() bool {
	return c.MinIO.Endpoint != ""
}

// MinIOStoreConfig returns the store configuration for bucket.
func (c *Config) MinIOStoreConfig(bucket string) minio.Config {
	return minio.Config{
		Endpoint:  c.MinIO.Endpoint,
		AccessKey: c.MinIO.AccessKey,
		SecretKey: c.MinIO.SecretKey,
		Bucket:    bucket,
		Prefix:    c.MinIO.Prefix,
		Secure:    c.MinIO.Secure,
		Region:    c.MinIO.Region,
	}
}

// LogLevel parses the log level, defaulting to warn.
func (c *Config) LogLevel() (slog.Level, error) {
	if c.Log.Level == "" {
		return slog.LevelWarn, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", c.Log.Level, err)
	}
	return level, nil
}

// Path returns the config file path.
func Path() (string, error) {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "fusion", "config.yaml"), nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, path[2:]), nil
}

// Load reads the config file at path, or the default location if path is
// empty. A missing file yields Default(). Fields absent from the file keep
// their defaults.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		p, err := Path()
		if err != nil {
			return nil, err
		}
		path = p
	}
	path, err := ExpandPath(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.Threads <= 0 {
		cfg.Threads = runtime.GOMAXPROCS(0)
	}
	return cfg, nil
}

// Save writes the config to path, or the default location if path is empty.
func (c *Config) Save(path string) error {
	if path == "" {
		p, err := Path()
		if err != nil {
			return err
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
