// Package config loads the optional YAML tuning file for the store daemon.
// Every value has a working default, the file only overrides what it sets.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration accepting "5m" style strings in YAML.
type Duration time.Duration

// UnmarshalYAML parses a duration string, or raw nanoseconds for integers.
func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	var s string
	if err := n.Decode(&s); err != nil {
		var i int64
		if err2 := n.Decode(&i); err2 != nil {
			return err
		}
		*d = Duration(i)
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalYAML renders the duration in the "5m0s" string form.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Config is the daemon tuning file.
type Config struct {
	Store struct {
		CacheSize   int      `yaml:"cache_size" json:"cache_size,omitempty" jsonschema:"minimum=1,description=LRU status cache capacity"`
		MaxWorkers  int      `yaml:"max_workers" json:"max_workers,omitempty" jsonschema:"minimum=1,description=write-behind worker pool limit"`
		IdleTimeout Duration `yaml:"idle_timeout" json:"idle_timeout,omitempty" jsonschema:"description=write-behind worker retirement timeout"`
		Blocking    bool     `yaml:"blocking" json:"blocking,omitempty" jsonschema:"description=block saturated async stores instead of dropping the disk write"`
	} `yaml:"store" json:"store"`

	Retry struct {
		Attempts int      `yaml:"attempts" json:"attempts,omitempty" jsonschema:"minimum=1,description=how many times to attempt a failed save"`
		Duration Duration `yaml:"duration" json:"duration,omitempty" jsonschema:"description=initial backoff duration"`
		Factor   float64  `yaml:"factor" json:"factor,omitempty" jsonschema:"description=backoff factor"`
		Jitter   bool     `yaml:"jitter" json:"jitter,omitempty" jsonschema:"description=add jitter to backoff"`
	} `yaml:"retry" json:"retry"`

	Journal struct {
		Retention Duration `yaml:"retention" json:"retention,omitempty" jsonschema:"description=how long to keep journal entries, 0 disables pruning"`
	} `yaml:"journal" json:"journal"`
}

// Default returns the built-in tuning.
func Default() Config {
	var c Config
	c.Store.CacheSize = 50
	c.Store.MaxWorkers = 10
	c.Store.IdleTimeout = Duration(60 * time.Second)
	c.Store.Blocking = true
	c.Retry.Attempts = 1
	c.Retry.Duration = Duration(time.Second)
	c.Retry.Factor = 3
	c.Journal.Retention = Duration(30 * 24 * time.Hour)
	return c
}

// Load reads the YAML file over the defaults.
func Load(file string) (Config, error) {
	c := Default()

	data, err := os.ReadFile(file) //nolint:gosec // config path is operator-provided
	if err != nil {
		return c, fmt.Errorf("can't read config file %s: %w", file, err)
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("can't parse config file %s: %w", file, err)
	}
	return c, nil
}
