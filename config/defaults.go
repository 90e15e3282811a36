package config

import (
	"github.com/spf13/viper"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Batch fusion defaults
	v.SetDefault("fusion.alpha", 1.5)       // Bandwidth sensitivity; [1.0, 3.0] typical
	v.SetDefault("fusion.method", "median") // Most robust center estimator
	v.SetDefault("fusion.trim_ratio", 0.2)  // Per-tail trim for trimmed_mean

	// Streaming fusion defaults
	v.SetDefault("temporal.beta", 0.95)          // ~20 timestep memory
	v.SetDefault("temporal.lambda_jitter", 0.5)  // Moderate instability penalty
	v.SetDefault("temporal.drift_threshold", 0.1)

	// Mode arbitration defaults
	v.SetDefault("hybrid.drift_window", 5)

	// Server defaults
	v.SetDefault("server.port", DefaultServerPort)
	v.SetDefault("server.allowed_origins", []string{
		"http://localhost",
		"https://localhost",
		"http://127.0.0.1",
		"https://127.0.0.1",
	})
	v.SetDefault("server.max_updates_per_second", 20.0)

	// Database defaults
	v.SetDefault("database.path", "lexkernel.db")
}
