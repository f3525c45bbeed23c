package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig is the YAML schema of --config. Every field is optional; absent
// fields keep the value already present in Config.
type fileConfig struct {
	User        string `yaml:"user"`
	APIURL      string `yaml:"api_url"`
	Format      string `yaml:"format"`
	Concurrency int    `yaml:"concurrency"`
	RawTimeout  string `yaml:"timeout"`
	RawCacheTTL string `yaml:"cache_ttl"`
	Verbose     *bool  `yaml:"verbose,omitempty"`
	Server      struct {
		Addr               string `yaml:"addr"`
		RawShutdownTimeout string `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Log struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"log"`
	Chart struct {
		Palette []string `yaml:"palette"`
	} `yaml:"chart"`
}

// LoadFile overlays the YAML file at path onto c. The token is deliberately
// not part of the schema; it comes from the environment or --token.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	return c.apply(&fc)
}

func (c *Config) apply(fc *fileConfig) error {
	if fc.User != "" {
		c.Target.User = fc.User
	}
	if fc.APIURL != "" {
		c.Target.APIURL = fc.APIURL
	}
	if fc.Format != "" {
		c.Output.Format = fc.Format
	}
	if fc.Concurrency != 0 {
		c.Runtime.Concurrency = fc.Concurrency
	}
	if fc.RawTimeout != "" {
		d, err := time.ParseDuration(fc.RawTimeout)
		if err != nil {
			return fmt.Errorf("parse timeout %q: %w", fc.RawTimeout, err)
		}
		c.Runtime.Timeout = d
	}
	if fc.RawCacheTTL != "" {
		d, err := time.ParseDuration(fc.RawCacheTTL)
		if err != nil {
			return fmt.Errorf("parse cache_ttl %q: %w", fc.RawCacheTTL, err)
		}
		c.Runtime.CacheTTL = d
	}
	if fc.Verbose != nil {
		c.Runtime.Verbose = *fc.Verbose
	}
	if fc.Server.Addr != "" {
		c.Server.Addr = fc.Server.Addr
	}
	if fc.Server.RawShutdownTimeout != "" {
		d, err := time.ParseDuration(fc.Server.RawShutdownTimeout)
		if err != nil {
			return fmt.Errorf("parse server.shutdown_timeout %q: %w", fc.Server.RawShutdownTimeout, err)
		}
		c.Server.ShutdownTimeout = d
	}
	if fc.Log.Level != "" {
		c.Log.Level = fc.Log.Level
	}
	if fc.Log.File != "" {
		c.Log.File = fc.Log.File
	}
	if len(fc.Chart.Palette) > 0 {
		c.Chart.Palette = append([]string(nil), fc.Chart.Palette...)
	}
	return nil
}
