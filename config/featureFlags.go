package config

import "github.com/vocari/reports_backend/utils"

// VisualSummaryEnabled gates the premium visual-summary generation call.
//
// Set via env:
// - VISUAL_SUMMARY_ENABLED=false
func VisualSummaryEnabled() bool {
	return utils.EnvBoolDefault("VISUAL_SUMMARY_ENABLED", true)
}

// CheckoutRateLimitEnabled turns on the per-IP limiter for checkout.
// It has no effect without redis.
//
// Set via env:
// - RATE_LIMIT_ENABLED=true
func CheckoutRateLimitEnabled() bool {
	return utils.EnvBoolDefault("RATE_LIMIT_ENABLED", true)
}

// MigrationsEnabled is false when SKIP_MIGRATIONS=true; AutoMigrate then runs as a separate job.
func MigrationsEnabled() bool {
	return !utils.EnvBoolDefault("SKIP_MIGRATIONS", false)
}
