package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Upstream UpstreamConfig `mapstructure:"upstream" validate:"required"`
	Registry RegistryConfig `mapstructure:"registry" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// UpstreamConfig contains settings for the outbound generation API.
// APIKey and APIURL may be empty when callers supply credentials
// per-request via headers.
type UpstreamConfig struct {
	APIKey string `mapstructure:"api_key"`
	APIURL string `mapstructure:"api_url" validate:"omitempty,url"`

	// RequestTimeoutSeconds is the per-attempt deadline for upstream calls.
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds" validate:"required,gte=1"`

	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int `mapstructure:"max_retries" validate:"gte=0"`

	// RetryBaseDelayMillis is multiplied by the attempt number to produce
	// the wait before each retry.
	RetryBaseDelayMillis int `mapstructure:"retry_base_delay_millis" validate:"required,gte=1"`
}

// RequestTimeout returns the per-attempt deadline as a duration.
func (c UpstreamConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// RetryBaseDelay returns the backoff base as a duration.
func (c UpstreamConfig) RetryBaseDelay() time.Duration {
	return time.Duration(c.RetryBaseDelayMillis) * time.Millisecond
}

// RegistryConfig contains lifetime settings for the in-memory job registry.
type RegistryConfig struct {
	// PendingTTLMinutes is how long a job may sit in pending before eviction.
	PendingTTLMinutes int `mapstructure:"pending_ttl_minutes" validate:"required,gte=1"`

	// TerminalTTLMinutes is how long a finished job stays readable.
	TerminalTTLMinutes int `mapstructure:"terminal_ttl_minutes" validate:"required,gte=1"`
}

// PendingTTL returns the pending eviction window as a duration.
func (c RegistryConfig) PendingTTL() time.Duration {
	return time.Duration(c.PendingTTLMinutes) * time.Minute
}

// TerminalTTL returns the terminal eviction window as a duration.
func (c RegistryConfig) TerminalTTL() time.Duration {
	return time.Duration(c.TerminalTTLMinutes) * time.Minute
}
