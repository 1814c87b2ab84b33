// Package config loads the runtime configuration of amcorpus.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/dshills/amcorpus/internal/profile"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "AMCORPUS"

// LogConfig selects the logger output.
type LogConfig struct {
	Mode  string `mapstructure:"mode"`
	Level string `mapstructure:"level"`
}

// Config holds all runtime configuration. Values are populated from
// .amcorpus.yaml, AMCORPUS_* env vars and CLI flags.
type Config struct {
	SourceDir     string        `mapstructure:"source_dir"`
	OutputDir     string        `mapstructure:"output_dir"`
	Sink          string        `mapstructure:"sink"`
	SQLitePath    string        `mapstructure:"sqlite_path"`
	Profile       string        `mapstructure:"profile"`
	Workers       int           `mapstructure:"workers"`
	ItemTimeout   time.Duration `mapstructure:"item_timeout"`
	Format        string        `mapstructure:"format"`
	WatchDebounce time.Duration `mapstructure:"watch_debounce"`
	Log           LogConfig     `mapstructure:"log"`
}

// Sink names.
const (
	SinkFile   = "file"
	SinkSQLite = "sqlite"
)

// SetDefaults registers the built-in defaults on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("source_dir", "data")
	v.SetDefault("output_dir", "out")
	v.SetDefault("sink", SinkFile)
	v.SetDefault("sqlite_path", "amcorpus.db")
	v.SetDefault("profile", "envinorma")
	v.SetDefault("workers", runtime.NumCPU())
	v.SetDefault("item_timeout", "30s")
	v.SetDefault("format", "json")
	v.SetDefault("watch_debounce", "500ms")
	v.SetDefault("log.mode", "dev")
	v.SetDefault("log.level", "info")
}

// Load reads configuration into a fresh Config. configFile, when set, must
// exist; otherwise .amcorpus.yaml is looked up in the working directory and
// the home directory, and its absence is not an error.
func Load(v *viper.Viper, configFile string) (Config, error) {
	SetDefaults(v)
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(".amcorpus")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks values that would otherwise fail deep inside a run.
func (c Config) Validate() error {
	switch c.Sink {
	case SinkFile, SinkSQLite:
	default:
		return fmt.Errorf("unknown sink %q: valid sinks are %s, %s", c.Sink, SinkFile, SinkSQLite)
	}
	if _, err := profile.Get(c.Profile); err != nil {
		return err
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.ItemTimeout < 0 {
		return fmt.Errorf("item_timeout must not be negative, got %s", c.ItemTimeout)
	}
	switch c.Format {
	case "json", "md":
	default:
		return fmt.Errorf("unknown format %q: supported formats are json, md", c.Format)
	}
	return nil
}
