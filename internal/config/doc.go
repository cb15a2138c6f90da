// Package config loads the rosterlink configuration.
//
// Values are layered, later sources winning field by field:
//
//	1. Default()
//	2. a YAML file: $ROSTERLINK_CONFIG, ./config.yaml or ./configs/config.yaml
//	3. environment variables prefixed ROSTERLINK_
//
// Variable names follow the struct nesting:
//
//	ROSTERLINK_SERVER_PORT=8080
//	ROSTERLINK_CANVAS_BASE_URL=https://canvas.example.edu
//	ROSTERLINK_CANVAS_TOKEN=...
//	ROSTERLINK_MATCHING_THRESHOLD=0.6
//	ROSTERLINK_CACHE_TTL=15m
//
// The configuration is validated once at load time. Tests should use
// Default() rather than Load so they do not depend on the environment.
package config
