package logger

// Standard field names for consistent structured logging across the engine.
// Use these constants instead of raw strings to ensure consistency.
const (
	// Identity and context
	FieldStreamID = "stream_id"
	FieldClientID = "client_id"
	FieldAlertID  = "alert_id"

	// Components
	FieldComponent = "component"

	// Fusion
	FieldSources   = "sources"
	FieldSamples   = "samples"
	FieldTimestep  = "timestep"
	FieldMode      = "mode"
	FieldTau       = "tau"
	FieldMinWeight = "min_weight"

	// Timing
	FieldDurationMS = "duration_ms"

	// Errors
	FieldError = "error"

	// Counts and sizes
	FieldCount = "count"
)
