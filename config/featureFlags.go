package config

import (
	"os"
	"strings"
)

// envFlag treats 1/true/yes/y/on (any case) as enabled. An unset variable yields def.
func envFlag(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "":
		return def
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}

// ReportCacheEnabled turns on the redis cache for report previews.
//
// Set via env:
// - ENABLE_REPORT_CACHE=true
func ReportCacheEnabled() bool {
	return envFlag("ENABLE_REPORT_CACHE", false)
}

// RateLimitEnabled turns on the per-IP limiter of the HTTP API (needs redis).
//
// Set via env:
// - RATE_LIMIT_ENABLED=true
func RateLimitEnabled() bool {
	return envFlag("RATE_LIMIT_ENABLED", false)
}

// SkipMigrations stops the API from running AutoMigrate on startup.
//
// Set via env:
// - SKIP_MIGRATIONS=true
func SkipMigrations() bool {
	return envFlag("SKIP_MIGRATIONS", false)
}

// WorkerEnabled is on unless WORKER_ENABLED is set to a false value; instances
// that only serve HTTP turn it off.
func WorkerEnabled() bool {
	return envFlag("WORKER_ENABLED", true)
}

// IsProduction reports GO_ENV=production.
func IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production")
}
