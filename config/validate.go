package config

import (
	"github.com/rmj95fgb7x-art/lex-kernel-oracle/errors"
	"github.com/rmj95fgb7x-art/lex-kernel-oracle/kernel"
)

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Fusion.Alpha <= 0 {
		return errors.Newf("fusion.alpha must be positive, got %v", c.Fusion.Alpha)
	}
	switch kernel.Method(c.Fusion.Method) {
	case kernel.MethodMedian, kernel.MethodTrimmedMean, "":
	default:
		return errors.Newf("fusion.method must be %q or %q, got %q",
			kernel.MethodMedian, kernel.MethodTrimmedMean, c.Fusion.Method)
	}
	if c.Fusion.TrimRatio < 0 || c.Fusion.TrimRatio >= 0.5 {
		return errors.Newf("fusion.trim_ratio must be in [0, 0.5), got %v", c.Fusion.TrimRatio)
	}

	if c.Temporal.Beta <= 0 || c.Temporal.Beta >= 1 {
		return errors.Newf("temporal.beta must be in (0, 1), got %v", c.Temporal.Beta)
	}
	if c.Temporal.LambdaJitter < 0 {
		return errors.Newf("temporal.lambda_jitter must be >= 0, got %v", c.Temporal.LambdaJitter)
	}
	if c.Temporal.DriftThreshold <= 0 || c.Temporal.DriftThreshold >= 1 {
		return errors.Newf("temporal.drift_threshold must be in (0, 1), got %v", c.Temporal.DriftThreshold)
	}

	if c.Hybrid.DriftWindow < 1 {
		return errors.Newf("hybrid.drift_window must be >= 1, got %d", c.Hybrid.DriftWindow)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.Newf("server.port must be in (0, 65535], got %d", c.Server.Port)
	}
	if c.Server.MaxUpdatesPerSecond <= 0 {
		return errors.Newf("server.max_updates_per_second must be positive, got %v", c.Server.MaxUpdatesPerSecond)
	}

	return nil
}
