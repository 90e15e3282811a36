package server

import (
	"github.com/rmj95fgb7x-art/lex-kernel-oracle/kernel"
)

// Message types exchanged over the fusion WebSocket.
const (
	MessageTypeUpdate = "update" // client -> server: one batch of source measurements
	MessageTypeFusion = "fusion" // server -> client: fused output for one batch
	MessageTypeError  = "error"  // server -> client: request could not be processed
	MessageTypeReset  = "reset"  // client -> server: discard all stream state
)

// SourceSeries is one sensor's measurements for a single timestep.
type SourceSeries struct {
	ID      string    `json:"id"`
	Samples []float64 `json:"samples"`
}

// UpdateRequest is one client message carrying a batch of aligned sources.
type UpdateRequest struct {
	Type    string         `json:"type"`
	Sources []SourceSeries `json:"sources"`
}

// FusionResponse is the server's answer to one update. Alerts carries only
// the drift alerts newly raised by this update, not the full history.
type FusionResponse struct {
	Type     string              `json:"type"`
	Fused    []float64           `json:"fused,omitempty"`
	Weights  []float64           `json:"weights,omitempty"`
	Mode     string              `json:"mode,omitempty"`
	Timestep int                 `json:"timestep,omitempty"`
	Alerts   []kernel.DriftAlert `json:"alerts,omitempty"`
	Error    string              `json:"error,omitempty"`
}

func errorResponse(message string) *FusionResponse {
	return &FusionResponse{Type: MessageTypeError, Error: message}
}
