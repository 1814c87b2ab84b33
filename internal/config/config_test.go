package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load(viper.New(), "")
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"SourceDir", cfg.SourceDir, "data"},
		{"OutputDir", cfg.OutputDir, "out"},
		{"Sink", cfg.Sink, SinkFile},
		{"Profile", cfg.Profile, "envinorma"},
		{"Workers", cfg.Workers, runtime.NumCPU()},
		{"ItemTimeout", cfg.ItemTimeout, 30 * time.Second},
		{"Format", cfg.Format, "json"},
		{"WatchDebounce", cfg.WatchDebounce, 500 * time.Millisecond},
		{"LogMode", cfg.Log.Mode, "dev"},
		{"LogLevel", cfg.Log.Level, "info"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
			}
		})
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	tests := []struct {
		name   string
		envKey string
		envVal string
		field  func(Config) any
		want   any
	}{
		{"source_dir", "AMCORPUS_SOURCE_DIR", "/srv/data", func(c Config) any { return c.SourceDir }, "/srv/data"},
		{"sink", "AMCORPUS_SINK", "sqlite", func(c Config) any { return c.Sink }, "sqlite"},
		{"workers", "AMCORPUS_WORKERS", "3", func(c Config) any { return c.Workers }, 3},
		{"item_timeout", "AMCORPUS_ITEM_TIMEOUT", "2m", func(c Config) any { return c.ItemTimeout }, 2 * time.Minute},
		{"log.level", "AMCORPUS_LOG_LEVEL", "debug", func(c Config) any { return c.Log.Level }, "debug"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			t.Setenv("HOME", t.TempDir())
			t.Setenv(tt.envKey, tt.envVal)

			cfg, err := Load(viper.New(), "")
			if err != nil {
				t.Fatalf("Load() returned unexpected error: %v", err)
			}
			if got := tt.field(cfg); got != tt.want {
				t.Errorf("%s: got %v (%T), want %v (%T)", tt.name, got, got, tt.want, tt.want)
			}
		})
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "amcorpus.yaml")
	content := "profile: minimal\noutput_dir: build\nlog:\n  mode: prod\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(viper.New(), path)
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}
	if cfg.Profile != "minimal" || cfg.OutputDir != "build" || cfg.Log.Mode != "prod" {
		t.Errorf("config file not applied: %+v", cfg)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	if _, err := Load(viper.New(), filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	valid := Config{Sink: SinkFile, Profile: "minimal", Workers: 1, Format: "md"}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"sink", func(c *Config) { c.Sink = "s3" }},
		{"profile", func(c *Config) { c.Profile = "unknown" }},
		{"workers", func(c *Config) { c.Workers = 0 }},
		{"timeout", func(c *Config) { c.ItemTimeout = -time.Second }},
		{"format", func(c *Config) { c.Format = "html" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			if err := c.Validate(); err == nil {
				t.Error("expected error")
			}
		})
	}
}
