package server

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmj95fgb7x-art/lex-kernel-oracle/alertstore"
	"github.com/rmj95fgb7x-art/lex-kernel-oracle/config"
	"github.com/rmj95fgb7x-art/lex-kernel-oracle/db"
	"github.com/rmj95fgb7x-art/lex-kernel-oracle/logger"
)

func testConfig() *config.Config {
	return &config.Config{
		Fusion:   config.FusionConfig{Alpha: 1.5, Method: "median", TrimRatio: 0.2},
		Temporal: config.TemporalConfig{Beta: 0.95, LambdaJitter: 0.5, DriftThreshold: 0.1},
		Hybrid:   config.HybridConfig{DriftWindow: 5},
		Server: config.ServerConfig{
			Port:                0,
			AllowedOrigins:      []string{"http://localhost"},
			MaxUpdatesPerSecond: 100,
		},
	}
}

func testServer(t *testing.T, store *alertstore.Store) *FusionServer {
	t.Helper()
	s, err := New(testConfig(), store)
	require.NoError(t, err)
	return s
}

// cleanSources builds four sources that straddle a shared sine signal in
// complementary pairs, so every source is equally trustworthy.
func cleanSources(samples int, delta float64) []SourceSeries {
	sources := make([]SourceSeries, 4)
	ids := []string{"imu", "gps", "lidar", "radar"}
	for i := range sources {
		series := make([]float64, samples)
		for j := range series {
			base := math.Sin(0.3 * float64(j))
			sign := 1.0
			if (i+j)%2 == 1 {
				sign = -1.0
			}
			series[j] = base + sign*delta
		}
		sources[i] = SourceSeries{ID: ids[i], Samples: series}
	}
	return sources
}

// contaminatedSources is cleanSources with the last source shifted far off
// the consensus.
func contaminatedSources(samples int, delta, offset float64) []SourceSeries {
	sources := cleanSources(samples, delta)
	bad := make([]float64, samples)
	copy(bad, sources[len(sources)-1].Samples)
	for j := range bad {
		bad[j] += offset
	}
	sources = append(sources, SourceSeries{ID: "rogue", Samples: bad})
	return sources
}

func dialTestServer(t *testing.T, s *FusionServer) *websocket.Conn {
	t.Helper()
	httpServer := httptest.NewServer(http.HandlerFunc(s.handleWebSocket))
	t.Cleanup(httpServer.Close)

	wsURL := "ws" + strings.TrimPrefix(httpServer.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func TestWebSocketFusionRoundTrip(t *testing.T) {
	s := testServer(t, nil)
	conn := dialTestServer(t, s)

	req := UpdateRequest{Type: MessageTypeUpdate, Sources: cleanSources(16, 0.01)}
	require.NoError(t, conn.WriteJSON(req))

	var resp FusionResponse
	require.NoError(t, conn.ReadJSON(&resp))

	assert.Equal(t, MessageTypeFusion, resp.Type)
	assert.Empty(t, resp.Error)
	assert.Equal(t, 1, resp.Timestep)
	assert.Equal(t, "batch", resp.Mode)
	assert.Len(t, resp.Fused, 16)
	assert.Len(t, resp.Weights, 4)

	sum := 0.0
	for _, w := range resp.Weights {
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-9)

	// Fused output should track the shared sine signal closely.
	for j, v := range resp.Fused {
		assert.InDelta(t, math.Sin(0.3*float64(j)), v, 0.05)
	}

	require.NoError(t, conn.WriteJSON(req))
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Equal(t, 2, resp.Timestep)
}

func TestWebSocketRejectsInvalidBatch(t *testing.T) {
	s := testServer(t, nil)
	conn := dialTestServer(t, s)

	req := UpdateRequest{
		Type:    MessageTypeUpdate,
		Sources: []SourceSeries{{ID: "solo", Samples: []float64{1, 2, 3}}},
	}
	require.NoError(t, conn.WriteJSON(req))

	var resp FusionResponse
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Equal(t, MessageTypeError, resp.Type)
	assert.NotEmpty(t, resp.Error)

	// The stream must survive a bad batch.
	require.NoError(t, conn.WriteJSON(UpdateRequest{Type: MessageTypeUpdate, Sources: cleanSources(16, 0.01)}))
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Equal(t, MessageTypeFusion, resp.Type)
	assert.Equal(t, 1, resp.Timestep)
}

func TestWebSocketRejectsSourceCountChange(t *testing.T) {
	s := testServer(t, nil)
	conn := dialTestServer(t, s)

	require.NoError(t, conn.WriteJSON(UpdateRequest{Type: MessageTypeUpdate, Sources: cleanSources(16, 0.01)}))
	var resp FusionResponse
	require.NoError(t, conn.ReadJSON(&resp))
	require.Equal(t, MessageTypeFusion, resp.Type)

	// A fifth source mid-stream is invalid; the stream must get an error
	// frame and stay alive.
	require.NoError(t, conn.WriteJSON(UpdateRequest{Type: MessageTypeUpdate, Sources: contaminatedSources(16, 0.01, 100)}))
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Equal(t, MessageTypeError, resp.Type)
	assert.Contains(t, resp.Error, "source count")

	require.NoError(t, conn.WriteJSON(UpdateRequest{Type: MessageTypeUpdate, Sources: cleanSources(16, 0.01)}))
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Equal(t, MessageTypeFusion, resp.Type)
	assert.Equal(t, 2, resp.Timestep)
}

func TestWebSocketContaminatedSourceSwitchesMode(t *testing.T) {
	s := testServer(t, nil)
	conn := dialTestServer(t, s)

	req := UpdateRequest{Type: MessageTypeUpdate, Sources: contaminatedSources(16, 0.01, 100)}
	require.NoError(t, conn.WriteJSON(req))

	var resp FusionResponse
	require.NoError(t, conn.ReadJSON(&resp))

	assert.Equal(t, MessageTypeFusion, resp.Type)
	assert.Equal(t, "streaming", resp.Mode)
	require.NotEmpty(t, resp.Alerts)
	assert.Equal(t, []int{4}, resp.Alerts[0].OutlierIndices)
	assert.Less(t, resp.Weights[4], 0.01)
}

func TestWebSocketReset(t *testing.T) {
	s := testServer(t, nil)
	conn := dialTestServer(t, s)

	update := UpdateRequest{Type: MessageTypeUpdate, Sources: cleanSources(16, 0.01)}
	require.NoError(t, conn.WriteJSON(update))
	var resp FusionResponse
	require.NoError(t, conn.ReadJSON(&resp))
	require.Equal(t, 1, resp.Timestep)

	require.NoError(t, conn.WriteJSON(UpdateRequest{Type: MessageTypeReset}))
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Equal(t, MessageTypeReset, resp.Type)

	require.NoError(t, conn.WriteJSON(update))
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Equal(t, 1, resp.Timestep)
}

func TestWebSocketRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Server.MaxUpdatesPerSecond = 1
	s, err := New(cfg, nil)
	require.NoError(t, err)
	conn := dialTestServer(t, s)

	req := UpdateRequest{Type: MessageTypeUpdate, Sources: cleanSources(16, 0.01)}
	require.NoError(t, conn.WriteJSON(req))
	require.NoError(t, conn.WriteJSON(req))

	var first, second FusionResponse
	require.NoError(t, conn.ReadJSON(&first))
	require.NoError(t, conn.ReadJSON(&second))

	assert.Equal(t, MessageTypeFusion, first.Type)
	assert.Equal(t, MessageTypeError, second.Type)
	assert.Contains(t, second.Error, "rate limit")
}

func TestWebSocketPersistsDriftAlerts(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "alerts.db")
	conn, err := db.OpenWithMigrations(dbPath, logger.Logger)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	store := alertstore.NewStore(conn)
	s := testServer(t, store)
	ws := dialTestServer(t, s)

	req := UpdateRequest{Type: MessageTypeUpdate, Sources: contaminatedSources(16, 0.01, 100)}
	require.NoError(t, ws.WriteJSON(req))

	var resp FusionResponse
	require.NoError(t, ws.ReadJSON(&resp))
	require.NotEmpty(t, resp.Alerts)

	// Record runs before the response is sent, so the row is visible now.
	alerts, err := store.ListRecent(10)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, []int{4}, alerts[0].OutlierIndices)
	assert.Equal(t, 1, alerts[0].Timestep)
}

func TestStopClosesActiveStreams(t *testing.T) {
	s := testServer(t, nil)
	conn := dialTestServer(t, s)

	update := UpdateRequest{Type: MessageTypeUpdate, Sources: cleanSources(16, 0.01)}
	require.NoError(t, conn.WriteJSON(update))
	var resp FusionResponse
	require.NoError(t, conn.ReadJSON(&resp))
	require.Equal(t, 1, s.ClientCount())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))

	// A frame racing the shutdown must not bring the process down; the
	// stream just ends.
	_ = conn.WriteJSON(update)
	conn.SetReadDeadline(time.Now().Add(time.Second))
	assert.Error(t, conn.ReadJSON(&resp))

	// Each readPump unregisters its client as the connection closes.
	require.Eventually(t, func() bool {
		return s.ClientCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStatusEndpoint(t *testing.T) {
	s := testServer(t, nil)
	s.startedAt = time.Now()

	rec := httptest.NewRecorder()
	s.handleStatus(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var status StatusResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	assert.Equal(t, "ok", status.Status)
	assert.Equal(t, 0, status.Clients)
	assert.False(t, status.Persistence)
	assert.NotEmpty(t, status.Version.GoVersion)
}

func TestStatusEndpointRejectsPost(t *testing.T) {
	s := testServer(t, nil)

	rec := httptest.NewRecorder()
	s.handleStatus(rec, httptest.NewRequest(http.MethodPost, "/api/status", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestAlertsEndpointWithoutStore(t *testing.T) {
	s := testServer(t, nil)

	rec := httptest.NewRecorder()
	s.handleAlerts(rec, httptest.NewRequest(http.MethodGet, "/api/alerts", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAlertsEndpointFiltersByStream(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "alerts.db")
	conn, err := db.OpenWithMigrations(dbPath, logger.Logger)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	store := alertstore.NewStore(conn)
	s := testServer(t, store)
	ws := dialTestServer(t, s)

	req := UpdateRequest{Type: MessageTypeUpdate, Sources: contaminatedSources(16, 0.01, 100)}
	require.NoError(t, ws.WriteJSON(req))
	var resp FusionResponse
	require.NoError(t, ws.ReadJSON(&resp))
	require.NotEmpty(t, resp.Alerts)

	rec := httptest.NewRecorder()
	s.handleAlerts(rec, httptest.NewRequest(http.MethodGet, "/api/alerts", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Alerts []*alertstore.Alert `json:"alerts"`
		Count  int                 `json:"count"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, 1, body.Count)

	rec = httptest.NewRecorder()
	s.handleAlerts(rec, httptest.NewRequest(http.MethodGet, "/api/alerts?stream=no-such-stream", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, 0, body.Count)

	rec = httptest.NewRecorder()
	s.handleAlerts(rec, httptest.NewRequest(http.MethodGet, "/api/alerts?limit=bogus", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckOrigin(t *testing.T) {
	s := testServer(t, nil)

	tests := []struct {
		name    string
		origin  string
		allowed bool
	}{
		{"no origin header", "", true},
		{"allowed origin", "http://localhost:3000", true},
		{"disallowed origin", "http://evil.example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/ws", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.allowed, s.checkOrigin(r))
		})
	}
}

func TestApplyConfigRejectsInvalidParams(t *testing.T) {
	s := testServer(t, nil)

	bad := testConfig()
	bad.Temporal.Beta = 2.0
	assert.Error(t, s.ApplyConfig(bad))

	good := testConfig()
	good.Fusion.Alpha = 2.5
	assert.NoError(t, s.ApplyConfig(good))
}
