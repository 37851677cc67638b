// Package config provides configuration types and loading utilities for the
// pipeline core: LLM provider settings, analytical database connection
// settings, and pipeline-level retry/deadline/concurrency settings.
package config

import "fmt"

// Config is the complete configuration for a pipeline core process: the set
// of named LLM providers it can dispatch to, the analytical database it
// queries, pipeline-wide retry/deadline settings, and logging.
type Config struct {
	LLMs     map[string]LLMProviderConfig `yaml:"llm" mapstructure:"llm"`
	Database DatabaseConfig               `yaml:"db" mapstructure:"db"`
	Pipeline PipelineConfig               `yaml:"pipeline" mapstructure:"pipeline"`
	Logging  LoggingConfig                `yaml:"logging" mapstructure:"logging"`

	// Watch is decoded from the config file but not read anywhere in this
	// module; hot reload is started by calling WatchConfig directly.
	Watch bool `yaml:"watch,omitempty" mapstructure:"watch"`
}

// Validate implements ConfigInterface for Config.
func (c *Config) Validate() error {
	if len(c.LLMs) == 0 {
		return fmt.Errorf("at least one llm provider must be configured")
	}
	for name, llm := range c.LLMs {
		if err := llm.Validate(); err != nil {
			return fmt.Errorf("llm '%s': %w", name, err)
		}
	}
	if err := c.Database.Validate(); err != nil {
		return fmt.Errorf("db: %w", err)
	}
	if err := c.Pipeline.Validate(); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	return nil
}

// SetDefaults implements ConfigInterface for Config.
func (c *Config) SetDefaults() {
	if c.LLMs == nil {
		c.LLMs = make(map[string]LLMProviderConfig)
	}
	if len(c.LLMs) == 0 {
		c.LLMs["default"] = LLMProviderConfig{}
	}
	for name := range c.LLMs {
		llm := c.LLMs[name]
		llm.SetDefaults()
		c.LLMs[name] = llm
	}
	c.Database.SetDefaults()
	c.Pipeline.SetDefaults()
	c.Logging.SetDefaults()
}

// DefaultLLM returns the provider named "default" when present; otherwise it
// returns one of the configured providers, chosen by map iteration order
// and therefore not stable across calls.
func (c *Config) DefaultLLM() (LLMProviderConfig, string, bool) {
	if llm, ok := c.LLMs["default"]; ok {
		return llm, "default", true
	}
	for name, llm := range c.LLMs {
		return llm, name, true
	}
	return LLMProviderConfig{}, "", false
}
