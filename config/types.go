// Package config loads the engine configuration with Viper from a TOML
// file cascade and LEXKERNEL_* environment variables, and converts it into
// the immutable parameter structs the kernel engines are built from.
package config

import (
	"github.com/rmj95fgb7x-art/lex-kernel-oracle/kernel"
)

// Config is the root engine configuration
type Config struct {
	Fusion   FusionConfig   `mapstructure:"fusion"`
	Temporal TemporalConfig `mapstructure:"temporal"`
	Hybrid   HybridConfig   `mapstructure:"hybrid"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
}

// FusionConfig configures batch fusion
type FusionConfig struct {
	Alpha     float64 `mapstructure:"alpha"`      // bandwidth sensitivity (default: 1.5)
	Method    string  `mapstructure:"method"`     // "median" or "trimmed_mean"
	TrimRatio float64 `mapstructure:"trim_ratio"` // per-tail trim fraction for trimmed_mean (default: 0.2)
}

// TemporalConfig configures streaming fusion
type TemporalConfig struct {
	Beta           float64 `mapstructure:"beta"`            // center forgetting factor in (0,1) (default: 0.95)
	LambdaJitter   float64 `mapstructure:"lambda_jitter"`   // temporal jitter penalty weight (default: 0.5)
	DriftThreshold float64 `mapstructure:"drift_threshold"` // weight below which a source is drifting (default: 0.1)
}

// HybridConfig configures mode arbitration
type HybridConfig struct {
	DriftWindow int `mapstructure:"drift_window"` // recent calls inspected for drift rate (default: 5)
}

// ServerConfig configures the streaming fusion server
type ServerConfig struct {
	Port                int      `mapstructure:"port"`
	AllowedOrigins      []string `mapstructure:"allowed_origins"`
	MaxUpdatesPerSecond float64  `mapstructure:"max_updates_per_second"` // per-client ingest rate limit
}

// DatabaseConfig configures the SQLite drift-alert store
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// KernelParams converts the fusion section into batch kernel parameters.
func (c *Config) KernelParams() kernel.Params {
	return kernel.Params{
		Alpha:     c.Fusion.Alpha,
		Method:    kernel.Method(c.Fusion.Method),
		TrimRatio: c.Fusion.TrimRatio,
	}
}

// TemporalParams converts the fusion and temporal sections into streaming
// kernel parameters.
func (c *Config) TemporalParams() kernel.TemporalParams {
	return kernel.TemporalParams{
		Alpha:          c.Fusion.Alpha,
		Beta:           c.Temporal.Beta,
		LambdaJitter:   c.Temporal.LambdaJitter,
		Method:         kernel.Method(c.Fusion.Method),
		TrimRatio:      c.Fusion.TrimRatio,
		DriftThreshold: c.Temporal.DriftThreshold,
	}
}

// HybridParams converts all fusion sections into arbiter parameters.
func (c *Config) HybridParams() kernel.HybridParams {
	return kernel.HybridParams{
		Alpha:          c.Fusion.Alpha,
		Beta:           c.Temporal.Beta,
		LambdaJitter:   c.Temporal.LambdaJitter,
		Method:         kernel.Method(c.Fusion.Method),
		TrimRatio:      c.Fusion.TrimRatio,
		DriftThreshold: c.Temporal.DriftThreshold,
		DriftWindow:    c.Hybrid.DriftWindow,
	}
}

// DefaultServerPort is the streaming server's default listen port.
const DefaultServerPort = 8710
