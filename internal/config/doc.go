// Package config handles configuration loading for the ripple client.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	server:
//	  api_url: "${RIPPLE_API_URL}"
//
// Syntax: ${VAR_NAME}
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	timing:
//	  typing_debounce: "2s"
//	  typing_expiry: "2s"
//
// Supported units: ns, us, ms, s, m, h
//
// # Configuration Sections
//
// Backend endpoints:
//
//	server:
//	  api_url: "https://chat.example.com"          # REST API
//	  socket_url: "wss://chat.example.com/socket"  # Live channel
//
// Warm-start cache:
//
//	cache:
//	  enabled: true
//	  path: "~/.cache/ripple/ripple.db"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Usage
//
// Load configuration from a path, or fall back to defaults:
//
//	cfg, err := config.Load("/etc/ripple/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
