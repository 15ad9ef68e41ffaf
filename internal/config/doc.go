// Package config handles configuration loading, parsing, and validation
// from various sources (environment variables, files). It provides type-safe
// access to the engine and server settings while keeping configuration
// details separate from the execution logic.
package config
