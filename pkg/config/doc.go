// Package config loads the pcalc application configuration.
//
// # Overview
//
// Configuration is read from a YAML or CUE file on top of built-in defaults
// and validated with struct tags. Every field is optional; a missing file
// path yields the defaults.
//
// # Example
//
//	service:
//	  name: pcalc
//	  environment: production
//	logging:
//	  level: debug
//	  format: json
//	tracing:
//	  enabled: true
//	  exporter: otlp
//	  endpoint: localhost:4317
//	metrics:
//	  listen: ":9464"
//	repl:
//	  prompt: calc
//	  trace: true
//
// The same document in CUE:
//
//	service: environment: "production"
//	logging: {level: "debug", format: "json"}
//
// # Environment
//
// LOG_LEVEL overrides logging.level.
package config
