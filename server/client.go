package server

import (
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/rmj95fgb7x-art/lex-kernel-oracle/errors"
	"github.com/rmj95fgb7x-art/lex-kernel-oracle/kernel"
	"github.com/rmj95fgb7x-art/lex-kernel-oracle/logger"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 1 << 20
)

// Client is one WebSocket fusion stream. Each connection owns its own
// arbitrated kernel, so concurrent streams never share estimator state.
type Client struct {
	id       string
	server   *FusionServer
	conn     *websocket.Conn
	send     chan *FusionResponse
	engine   *kernel.HybridKernel
	limiter  *rate.Limiter
	timestep int
	// alertSeen marks how much of the engine's drift history has already
	// been reported and persisted.
	alertSeen int
	logger    *zap.SugaredLogger
}

func newClient(s *FusionServer, conn *websocket.Conn) (*Client, error) {
	s.mu.RLock()
	params := s.hybridParams
	updatesPerSecond := s.cfg.MaxUpdatesPerSecond
	s.mu.RUnlock()

	engine, err := kernel.NewHybrid(params)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build fusion engine for client")
	}

	burst := int(updatesPerSecond)
	if burst < 1 {
		burst = 1
	}

	id := uuid.NewString()
	return &Client{
		id:      id,
		server:  s,
		conn:    conn,
		send:    make(chan *FusionResponse, 16),
		engine:  engine,
		limiter: rate.NewLimiter(rate.Limit(updatesPerSecond), burst),
		logger:  logger.Logger.With(logger.FieldStreamID, shortID(id)),
	}, nil
}

// readPump reads update requests from the peer and feeds them through the
// client's fusion engine. It runs in a per-connection goroutine and exits
// when the connection drops.
func (c *Client) readPump() {
	defer func() {
		c.server.unregisterClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var req UpdateRequest
		if err := c.conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warnw("WebSocket read error", "error", err)
			}
			return
		}

		if !c.limiter.Allow() {
			c.reply(errorResponse("update rate limit exceeded"))
			continue
		}

		c.reply(c.handleRequest(&req))
	}
}

// writePump writes responses and keepalive pings to the peer. It runs in a
// per-connection goroutine and exits when the send channel is closed.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case resp, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(resp); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) reply(resp *FusionResponse) {
	select {
	case c.send <- resp:
	default:
		// Slow consumer: drop the response rather than stall the pump.
		c.logger.Warnw("Dropping response for slow client")
	}
}

func (c *Client) handleRequest(req *UpdateRequest) *FusionResponse {
	switch req.Type {
	case MessageTypeReset:
		c.engine.Reset()
		c.timestep = 0
		c.alertSeen = 0
		return &FusionResponse{Type: MessageTypeReset}

	case MessageTypeUpdate, "":
		return c.handleUpdate(req)

	default:
		return errorResponse("unknown message type: " + req.Type)
	}
}

func (c *Client) handleUpdate(req *UpdateRequest) *FusionResponse {
	batch := make([][]float64, len(req.Sources))
	for i, src := range req.Sources {
		batch[i] = src.Samples
	}

	fused, weights, mode, err := c.engine.Update(batch)
	if err != nil {
		if errors.IsInvalidInput(err) {
			return errorResponse(err.Error())
		}
		c.logger.Errorw("Fusion update failed", "error", err)
		return errorResponse("internal fusion error")
	}
	c.timestep++

	alerts := c.collectNewAlerts()
	return &FusionResponse{
		Type:     MessageTypeFusion,
		Fused:    fused,
		Weights:  weights,
		Mode:     string(mode),
		Timestep: c.timestep,
		Alerts:   alerts,
	}
}

// collectNewAlerts reports and persists drift alerts raised since the last
// update. Persistence failures are logged, never surfaced to the stream.
func (c *Client) collectNewAlerts() []kernel.DriftAlert {
	history := c.engine.DriftHistory()
	if len(history) <= c.alertSeen {
		return nil
	}

	fresh := history[c.alertSeen:]
	c.alertSeen = len(history)

	for _, alert := range fresh {
		c.logger.Warnw("Drift detected",
			logger.FieldTimestep, alert.Timestep,
			logger.FieldMinWeight, alert.MinWeight,
			"outliers", alert.OutlierIndices,
		)
		if c.server.store != nil {
			if _, err := c.server.store.Record(c.id, alert); err != nil {
				c.logger.Errorw("Failed to persist drift alert", "error", err)
			}
		}
	}
	return fresh
}
