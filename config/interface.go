// Package config provides configuration types and loading utilities for the
// pipeline core: LLM provider settings, analytical database connection
// settings, and pipeline-level retry/deadline/concurrency settings.
package config

// ConfigInterface is the contract every configuration section implements,
// giving callers a uniform way to validate and default-fill a section
// regardless of its concrete type.
type ConfigInterface interface {
	// Validate checks whether the configuration is valid, returning a
	// config_error-class error describing the first problem found.
	Validate() error

	// SetDefaults fills in unset fields with their documented defaults.
	SetDefaults()
}
