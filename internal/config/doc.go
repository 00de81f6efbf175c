// Package config handles configuration loading for warelay.
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
//	auth:
//	  jwt_secret: "${WARELAY_JWT_SECRET}"
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	auth:
//	  token_ttl: "24h"
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "0.0.0.0:8080"
//
// Database:
//
//	database:
//	  path: "/var/lib/warelay/warelay.db"
//
// Authentication:
//
//	auth:
//	  jwt_secret: "${WARELAY_JWT_SECRET}"
//	  token_ttl: "24h"
//
// Messaging session:
//
//	whatsapp:
//	  session_name: "default"
//	  driver: "sim"
//	  default_country_code: "52"
//	  history_capacity: 1000
//
// Uploads:
//
//	upload:
//	  directory: "/var/lib/warelay/uploads"
//	  max_file_size: 10485760
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
package config
