// Package config provides configuration types and loading utilities for the
// pipeline core: LLM provider settings, analytical database connection
// settings, and pipeline-level retry/deadline/concurrency settings.
package config

import "fmt"

// LLMProviderConfig mirrors the LLM Config data model: a named LLM backend
// plus the sampling parameters applied to every request issued against it.
type LLMProviderConfig struct {
	Type             string  `yaml:"type" mapstructure:"type"` // "ollama" or "openai"
	ModelName        string  `yaml:"model_name" mapstructure:"model_name"`
	BaseURL          string  `yaml:"base_url" mapstructure:"base_url"`
	APIKey           string  `yaml:"api_key,omitempty" mapstructure:"api_key"`
	Temperature      float64 `yaml:"temperature" mapstructure:"temperature"`
	MaxTokens        int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	TopP             float64 `yaml:"top_p" mapstructure:"top_p"`
	FrequencyPenalty float64 `yaml:"frequency_penalty" mapstructure:"frequency_penalty"`
	PresencePenalty  float64 `yaml:"presence_penalty" mapstructure:"presence_penalty"`
	Stream           bool    `yaml:"stream" mapstructure:"stream"`
	TimeoutS         int     `yaml:"timeout_s" mapstructure:"timeout_s"`
}

// Validate implements ConfigInterface for LLMProviderConfig.
func (c *LLMProviderConfig) Validate() error {
	if c.Type == "" {
		return fmt.Errorf("type is required")
	}
	if c.ModelName == "" {
		return fmt.Errorf("model_name is required")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	if c.Type == "openai" && c.APIKey == "" {
		return fmt.Errorf("api_key is required for openai")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2")
	}
	if c.MaxTokens < 1 || c.MaxTokens > 10000 {
		return fmt.Errorf("max_tokens must be between 1 and 10000")
	}
	if c.TopP < 0 || c.TopP > 1 {
		return fmt.Errorf("top_p must be between 0 and 1")
	}
	if c.FrequencyPenalty < -2 || c.FrequencyPenalty > 2 {
		return fmt.Errorf("frequency_penalty must be between -2 and 2")
	}
	if c.PresencePenalty < -2 || c.PresencePenalty > 2 {
		return fmt.Errorf("presence_penalty must be between -2 and 2")
	}
	if c.TimeoutS <= 0 {
		return fmt.Errorf("timeout_s must be positive")
	}
	return nil
}

// SetDefaults implements ConfigInterface for LLMProviderConfig.
func (c *LLMProviderConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = "ollama"
	}
	if c.ModelName == "" {
		c.ModelName = "llama3.2"
	}
	if c.BaseURL == "" {
		switch c.Type {
		case "openai":
			c.BaseURL = "https://api.openai.com/v1"
		default:
			c.BaseURL = "http://localhost:11434"
		}
	}
	if c.Temperature == 0 {
		c.Temperature = 0.7
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 2000
	}
	if c.TopP == 0 {
		c.TopP = 1.0
	}
	if c.TimeoutS == 0 {
		c.TimeoutS = 60
	}
}

// DatabaseConfig describes the analytical database the SQL executor and
// structure introspector operate against. It is a Postgres-dialect store by
// default but the same shape also drives the MySQL/SQLite dialects wired for
// test fixtures and secondary deployments.
type DatabaseConfig struct {
	URL          string `yaml:"url" mapstructure:"url"`
	Schema       string `yaml:"schema" mapstructure:"schema"`
	PoolSize     int    `yaml:"pool_size" mapstructure:"pool_size"`
	MaxOverflow  int    `yaml:"max_overflow" mapstructure:"max_overflow"`
	MaxFKValues  int    `yaml:"max_fk_values" mapstructure:"max_fk_values"`
	MaxCellChars int    `yaml:"max_cell_chars" mapstructure:"max_cell_chars"`
	TimeoutS     int    `yaml:"timeout_s" mapstructure:"timeout_s"`
}

// Validate implements ConfigInterface for DatabaseConfig.
func (c *DatabaseConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("url is required")
	}
	if c.PoolSize <= 0 {
		return fmt.Errorf("pool_size must be positive")
	}
	if c.MaxFKValues < 0 {
		return fmt.Errorf("max_fk_values must be non-negative")
	}
	if c.MaxCellChars <= 0 {
		return fmt.Errorf("max_cell_chars must be positive")
	}
	if c.TimeoutS <= 0 {
		return fmt.Errorf("timeout_s must be positive")
	}
	return nil
}

// SetDefaults implements ConfigInterface for DatabaseConfig.
func (c *DatabaseConfig) SetDefaults() {
	if c.Schema == "" {
		c.Schema = "public"
	}
	if c.PoolSize == 0 {
		c.PoolSize = 10
	}
	if c.MaxOverflow == 0 {
		c.MaxOverflow = 5
	}
	if c.MaxFKValues == 0 {
		c.MaxFKValues = 30
	}
	if c.MaxCellChars == 0 {
		c.MaxCellChars = 200
	}
	if c.TimeoutS == 0 {
		c.TimeoutS = 30
	}
}

// PipelineConfig holds the orchestrator's retry budgets, concurrency mode,
// and end-to-end deadline.
type PipelineConfig struct {
	RetryBudgetSQL     int  `yaml:"retry_budget_sql" mapstructure:"retry_budget_sql"`
	RetryBudgetSplit   int  `yaml:"retry_budget_split" mapstructure:"retry_budget_split"`
	ParallelPlanSteps  bool `yaml:"parallel_plan_steps" mapstructure:"parallel_plan_steps"`
	DeadlineS          int  `yaml:"deadline_s" mapstructure:"deadline_s"`
}

// Validate implements ConfigInterface for PipelineConfig.
func (c *PipelineConfig) Validate() error {
	if c.RetryBudgetSQL < 0 {
		return fmt.Errorf("retry_budget_sql must be non-negative")
	}
	if c.RetryBudgetSplit < 0 {
		return fmt.Errorf("retry_budget_split must be non-negative")
	}
	if c.DeadlineS < 0 {
		return fmt.Errorf("deadline_s must be non-negative")
	}
	return nil
}

// SetDefaults implements ConfigInterface for PipelineConfig.
func (c *PipelineConfig) SetDefaults() {
	if c.RetryBudgetSQL == 0 {
		c.RetryBudgetSQL = 3
	}
	if c.RetryBudgetSplit == 0 {
		c.RetryBudgetSplit = 2
	}
	// DeadlineS == 0 means "no deadline"; ParallelPlanSteps defaults false
	// (sequential) by virtue of the zero value.
}

// LoggingConfig holds the logging section of the config file. It is
// validated and defaulted with the rest of Config; the finquery CLI
// configures the slog logger from its own --log-* flags, not from this
// section.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	File   string `yaml:"file,omitempty" mapstructure:"file"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Validate implements ConfigInterface for LoggingConfig.
func (c *LoggingConfig) Validate() error {
	switch c.Level {
	case "", "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("invalid log level: %s", c.Level)
	}
}

// SetDefaults implements ConfigInterface for LoggingConfig.
func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "simple"
	}
}
