// Package config handles configuration loading for helpdesk.
//
// # Overview
//
// Configuration is loaded from YAML or TOML files with environment variable
// expansion. Missing fields take defaults; the result is validated before it
// is returned.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. The --config flag
//  2. Path from HELPDESK_CONFIG environment variable
//  3. $XDG_CONFIG_HOME/helpdesk/config.yaml (~/.config when unset)
//
// A file ending in .toml is decoded as TOML; anything else as YAML.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	escalation:
//	  webhook_url: "${HELPDESK_WEBHOOK}"
//
// Unset variables expand to the empty string.
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	sessions:
//	  retention: "30m"
//	  sweep_interval: "1m"
//
// # Validation
//
// Every validation failure wraps ErrInvalidConfig:
//
//	if errors.Is(err, config.ErrInvalidConfig) { ... }
package config
