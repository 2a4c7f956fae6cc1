// Package config loads the optional YAML settings file of srxparse. Values
// from the file act as defaults for command line flags.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	ProviderFile    = "file"
	ProviderMariaDB = "mariadb"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	LogLevel string       `yaml:"log_level"`
	LogFile  string       `yaml:"log_file"`
	OutDir   string       `yaml:"out_dir"`
	Report   string       `yaml:"report"`
	Workers  int          `yaml:"workers"`
	// Resolve adds the address ranges of every zone-pair rule to the output.
	Resolve  bool         `yaml:"resolve"`
	Lookup   LookupConfig `yaml:"lookup"`
}

// LookupConfig selects where reference tables come from. Empty paths keep
// the embedded tables.
type LookupConfig struct {
	Provider  string `yaml:"provider"`
	Protocols string `yaml:"protocols"`
	ICMP      string `yaml:"icmp"`
	Defaults  string `yaml:"defaults"`
	DSN       string `yaml:"dsn"`
}

func Default() Config {
	return Config{
		LogLevel: "INFO",
		OutDir:   ".",
		Workers:  1,
		Lookup:   LookupConfig{Provider: ProviderFile},
	}
}

// Load reads path on top of Default. Unknown keys are rejected.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		return fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, c.LogLevel)
	}
	if c.Workers < 1 {
		return fmt.Errorf("%w: workers must be at least 1, got %d", ErrInvalidConfig, c.Workers)
	}
	switch c.Lookup.Provider {
	case ProviderFile:
	case ProviderMariaDB:
		if c.Lookup.DSN == "" {
			return fmt.Errorf("%w: lookup provider %q needs a dsn", ErrInvalidConfig, ProviderMariaDB)
		}
	default:
		return fmt.Errorf("%w: unknown lookup provider %q", ErrInvalidConfig, c.Lookup.Provider)
	}
	return nil
}
