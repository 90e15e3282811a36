package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/rmj95fgb7x-art/lex-kernel-oracle/alertstore"
	"github.com/rmj95fgb7x-art/lex-kernel-oracle/config"
	"github.com/rmj95fgb7x-art/lex-kernel-oracle/errors"
	"github.com/rmj95fgb7x-art/lex-kernel-oracle/kernel"
	"github.com/rmj95fgb7x-art/lex-kernel-oracle/logger"
)

// maxClients caps concurrent fusion streams per server.
const maxClients = 256

// FusionServer exposes the hybrid fusion engine over WebSocket, one
// independent stream per connection, plus small HTTP endpoints for status
// and persisted drift alerts.
type FusionServer struct {
	cfg          config.ServerConfig
	hybridParams kernel.HybridParams
	store        *alertstore.Store // nil when persistence is disabled

	clients map[*Client]bool
	mu      sync.RWMutex

	httpServer *http.Server
	listener   net.Listener
	upgrader   websocket.Upgrader

	startedAt time.Time
	logger    *zap.SugaredLogger
}

// New builds a fusion server from the loaded configuration. The store may
// be nil, which disables drift-alert persistence.
func New(cfg *config.Config, store *alertstore.Store) (*FusionServer, error) {
	params := cfg.HybridParams()
	// Validate once up front so a bad config fails at startup, not on the
	// first client connection.
	if _, err := kernel.NewHybrid(params); err != nil {
		return nil, errors.Wrap(err, "invalid fusion configuration")
	}

	s := &FusionServer{
		cfg:          cfg.Server,
		hybridParams: params,
		store:        store,
		clients:      make(map[*Client]bool),
		logger:       logger.Logger.With(logger.FieldComponent, "server"),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  2048,
		WriteBufferSize: 2048,
		CheckOrigin:     s.checkOrigin,
	}
	return s, nil
}

// ApplyConfig swaps in updated fusion parameters from a config reload.
// Existing streams keep their current engines; new connections pick up the
// new parameters.
func (s *FusionServer) ApplyConfig(cfg *config.Config) error {
	params := cfg.HybridParams()
	if _, err := kernel.NewHybrid(params); err != nil {
		return errors.Wrap(err, "invalid fusion configuration")
	}

	s.mu.Lock()
	s.hybridParams = params
	s.cfg.AllowedOrigins = cfg.Server.AllowedOrigins
	s.cfg.MaxUpdatesPerSecond = cfg.Server.MaxUpdatesPerSecond
	s.mu.Unlock()

	s.logger.Infow("Applied updated fusion configuration")
	return nil
}

// Start binds the configured port and serves until Stop is called. It
// returns once the listener is closed.
func (s *FusionServer) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/alerts", s.handleAlerts)

	addr := fmt.Sprintf(":%d", s.cfg.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "failed to bind %s", addr)
	}
	s.listener = listener

	s.httpServer = &http.Server{
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.startedAt = time.Now()
	s.logger.Infow("Fusion server listening", "addr", listener.Addr().String())

	if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "server stopped unexpectedly")
	}
	return nil
}

// Addr reports the bound listener address, empty before Start.
func (s *FusionServer) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop drains client connections and shuts the HTTP server down.
// Shutdown does not terminate hijacked WebSocket connections, so the
// underlying connections are closed here; each readPump then exits and
// unregisterClient remains the single closer of the send channel.
func (s *FusionServer) Stop(ctx context.Context) error {
	s.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(s.clients))
	for client := range s.clients {
		conns = append(conns, client.conn)
	}
	s.mu.RUnlock()
	for _, conn := range conns {
		conn.Close()
	}

	if s.httpServer == nil {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "server shutdown failed")
	}
	s.logger.Infow("Fusion server stopped")
	return nil
}

// ClientCount reports the number of live fusion streams.
func (s *FusionServer) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

func (s *FusionServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	full := len(s.clients) >= maxClients
	s.mu.RUnlock()
	if full {
		writeError(w, http.StatusServiceUnavailable, "client limit reached")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnw("WebSocket upgrade failed", "error", err)
		return
	}

	client, err := newClient(s, conn)
	if err != nil {
		s.logger.Errorw("Failed to create client", "error", err)
		conn.Close()
		return
	}

	s.mu.Lock()
	s.clients[client] = true
	count := len(s.clients)
	s.mu.Unlock()

	s.logger.Infow("Client connected",
		logger.FieldClientID, shortID(client.id),
		logger.FieldCount, count,
	)

	go client.writePump()
	go client.readPump()
}

func (s *FusionServer) unregisterClient(client *Client) {
	s.mu.Lock()
	if _, ok := s.clients[client]; ok {
		delete(s.clients, client)
		close(client.send)
	}
	count := len(s.clients)
	s.mu.Unlock()

	s.logger.Infow("Client disconnected",
		logger.FieldClientID, shortID(client.id),
		logger.FieldCount, count,
	)
}

// handleAlerts serves persisted drift alerts, optionally filtered to one
// stream via ?stream=, newest first unless scoped to a stream.
func (s *FusionServer) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "alert persistence is disabled")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	var (
		alerts []*alertstore.Alert
		err    error
	)
	if stream := r.URL.Query().Get("stream"); stream != "" {
		alerts, err = s.store.ListByStream(stream, limit)
	} else {
		alerts, err = s.store.ListRecent(limit)
	}
	if err != nil {
		s.logger.Errorw("Failed to list drift alerts", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list alerts")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

// checkOrigin validates the WebSocket origin against configured allowed
// origins. Requests without an Origin header (direct clients, tests) are
// allowed. Prefix matching lets any port through for an allowed host.
func (s *FusionServer) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	s.mu.RLock()
	allowed := s.cfg.AllowedOrigins
	s.mu.RUnlock()

	for _, prefix := range allowed {
		if strings.HasPrefix(origin, prefix) {
			return true
		}
	}
	return false
}
