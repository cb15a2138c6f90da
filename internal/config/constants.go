package config

import "rosterlink/pkg/contracts"

// Application constants
const (
	AppName    = "rosterlink"
	AppVersion = contracts.Version

	// API routes
	APIBasePath     = "/api"
	HealthEndpoint  = "/api/health"
	MetricsEndpoint = "/metrics"
)
