package server

import (
	"net/http"
	"time"

	"github.com/shirou/gopsutil/v3/mem"

	"github.com/rmj95fgb7x-art/lex-kernel-oracle/version"
)

// MemoryStats reports host memory pressure alongside the fusion status.
type MemoryStats struct {
	TotalGB     float64 `json:"total_gb"`
	AvailableGB float64 `json:"available_gb"`
	UsedPercent float64 `json:"used_percent"`
}

// StatusResponse is the /api/status payload.
type StatusResponse struct {
	Status        string       `json:"status"`
	Version       version.Info `json:"version"`
	UptimeSeconds float64      `json:"uptime_seconds"`
	Clients       int          `json:"clients"`
	Persistence   bool         `json:"persistence"`
	Memory        *MemoryStats `json:"memory,omitempty"`
}

func (s *FusionServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	resp := StatusResponse{
		Status:        "ok",
		Version:       version.Get(),
		UptimeSeconds: time.Since(s.startedAt).Seconds(),
		Clients:       s.ClientCount(),
		Persistence:   s.store != nil,
	}

	// Memory stats are best-effort; status stays useful without them.
	if v, err := mem.VirtualMemory(); err == nil {
		const gb = 1024 * 1024 * 1024
		resp.Memory = &MemoryStats{
			TotalGB:     float64(v.Total) / gb,
			AvailableGB: float64(v.Available) / gb,
			UsedPercent: v.UsedPercent,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
