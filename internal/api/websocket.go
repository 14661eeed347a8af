package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"hopball-arena/internal/game"
)

const (
	// writeWait bounds a single frame write to a client.
	writeWait = 10 * time.Second

	// pongWait is how long a client may stay silent before we cut it.
	pongWait = 60 * time.Second

	// pingPeriod must be shorter than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxFrameSize caps inbound frames; intents are small JSON objects.
	maxFrameSize = 4096

	// joinReplyWait bounds how long a join waits for the engine.
	joinReplyWait = 2 * time.Second

	// intentsPerSecond is the per-connection intent budget. Movement
	// at 30 updates a second plus fire traffic fits comfortably.
	intentsPerSecond = 120
	intentBurst      = 40
)

// EngineSink is what the hub needs from the engine: an inbox for
// intents and the published snapshot for periodic full-state frames.
type EngineSink interface {
	Submit(in game.Intent) bool
	Snapshot() (*game.GameSnapshot, bool)
	EventStats() map[string]any
}

// HubConfig carries the hub's dependencies.
type HubConfig struct {
	Engine  EngineSink
	Limiter *ConnLimiter  // nil means no connection caps
	Origins *OriginPolicy // nil admits every origin
	Logger  *zap.Logger

	// SnapshotInterval is the full-state broadcast period; zero
	// means 100ms.
	SnapshotInterval time.Duration

	// SendBuffer is the per-client outbound queue; zero means 64.
	// A client that falls this far behind is disconnected.
	SendBuffer int

	// JoinReplyWait bounds how long a join waits for the engine's
	// verdict; zero means 2s.
	JoinReplyWait time.Duration
}

// Hub fans engine output out to websocket clients and funnels their
// intents in. It implements game.Broadcaster, so the engine pushes
// change batches here as part of each tick.
//
// The clients map is owned by the Run goroutine; register, unregister
// and broadcast are its only inputs.
type Hub struct {
	log     *zap.Logger
	engine  EngineSink
	limiter *ConnLimiter

	clients    map[*wsClient]struct{}
	register   chan *wsClient
	unregister chan *wsClient
	broadcast  chan []byte
	done       chan struct{} // closed when Run returns

	clientCount      atomic.Int32
	snapshotInterval time.Duration
	sendBuffer       int
	joinWait         time.Duration
	upgrader         websocket.Upgrader
}

type wsClient struct {
	hub  *Hub
	conn *websocket.Conn
	ip   string
	send chan []byte

	// playerID is set once by a successful join; read pump only.
	playerID string
	intents  *rate.Limiter
}

// NewHub builds a hub. Call Run and SnapshotLoop to start it.
func NewHub(cfg HubConfig) *Hub {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.SnapshotInterval <= 0 {
		cfg.SnapshotInterval = 100 * time.Millisecond
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 64
	}
	if cfg.JoinReplyWait <= 0 {
		cfg.JoinReplyWait = joinReplyWait
	}
	origins := cfg.Origins
	if origins == nil {
		origins = NewOriginPolicy([]string{"*"})
	}

	h := &Hub{
		log:              cfg.Logger,
		engine:           cfg.Engine,
		limiter:          cfg.Limiter,
		clients:          make(map[*wsClient]struct{}),
		register:         make(chan *wsClient),
		unregister:       make(chan *wsClient),
		broadcast:        make(chan []byte, 256),
		done:             make(chan struct{}),
		snapshotInterval: cfg.SnapshotInterval,
		sendBuffer:       cfg.SendBuffer,
		joinWait:         cfg.JoinReplyWait,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origins.Allow(origin) {
				return true
			}
			h.log.Warn("websocket origin rejected", zap.String("origin", origin))
			RecordConnectionRejected("origin")
			return false
		},
	}
	return h
}

// Run owns the client set. It returns when ctx is cancelled, after
// closing every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.clientCount.Store(int32(len(h.clients)))
			UpdateWSConnections(len(h.clients))

		case c := <-h.unregister:
			h.drop(c)

		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// a client this far behind will never catch up;
					// playerID belongs to the read pump, log the ip only
					h.log.Info("dropping slow websocket client",
						zap.String("ip", c.ip))
					h.drop(c)
				}
			}

		case <-ctx.Done():
			for c := range h.clients {
				h.drop(c)
			}
			// unblock any pump still trying to register or unregister
			close(h.done)
			return
		}
	}
}

// drop removes a client, closing its send channel exactly once.
func (h *Hub) drop(c *wsClient) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	h.clientCount.Store(int32(len(h.clients)))
	UpdateWSConnections(len(h.clients))
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	return int(h.clientCount.Load())
}

// PublishChanges implements game.Broadcaster. Called from the engine
// goroutine every tick that produced changes; it must never block, so
// a full broadcast queue sheds the batch. Clients recover from any
// gap at the next snapshot frame.
func (h *Hub) PublishChanges(batch []game.Change) {
	msg, err := json.Marshal(wsEvent{Event: "changes", Data: batch})
	if err != nil {
		return
	}
	select {
	case h.broadcast <- msg:
	default:
	}
}

// SnapshotLoop broadcasts the latest full snapshot on a fixed period
// and refreshes the coarse prometheus gauges. Returns when ctx ends.
func (h *Hub) SnapshotLoop(ctx context.Context) {
	ticker := time.NewTicker(h.snapshotInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			snap, ok := h.engine.Snapshot()
			if !ok {
				continue
			}
			deaths := 0
			for i := range snap.Players {
				deaths += snap.Players[i].Deaths
			}
			UpdateMatchGauges(snap.PlayerCount, snap.AliveCount, snap.Clock.SecondsRemaining, deaths)
			UpdateHopballGauge(snap.Hopball.Present, snap.Hopball.Energy)
			if stats := h.engine.EventStats(); stats != nil {
				logged, _ := stats["total"].(uint64)
				dropped, _ := stats["dropped"].(uint64)
				UpdateAuditGauges(int64(logged), int64(dropped))
			}
			msg, err := json.Marshal(wsEvent{Event: "snapshot", Data: snap})
			if err != nil {
				continue
			}
			select {
			case h.broadcast <- msg:
			default:
			}
		case <-ctx.Done():
			return
		}
	}
}

// HandleWS upgrades an HTTP request to a websocket session.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	ip := GetClientIP(r)

	if h.limiter != nil {
		ok, reason := h.limiter.Acquire(ip)
		if !ok {
			RecordConnectionRejected(reason)
			writeError(w, http.StatusServiceUnavailable, "connection limit reached")
			return
		}
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		if h.limiter != nil {
			h.limiter.Release(ip)
		}
		h.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &wsClient{
		hub:     h,
		conn:    conn,
		ip:      ip,
		send:    make(chan []byte, h.sendBuffer),
		intents: rate.NewLimiter(rate.Limit(intentsPerSecond), intentBurst),
	}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		if h.limiter != nil {
			h.limiter.Release(ip)
		}
		return
	}

	go c.writePump()
	go c.readPump()
}

// wsEvent is the envelope for every server-to-client frame.
type wsEvent struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// wsRequest is the envelope for every client-to-server frame. Fields
// beyond Op are read per operation; identity always comes from the
// session binding, never from the payload.
type wsRequest struct {
	Op       string     `json:"op"`
	Name     string     `json:"name,omitempty"`
	Team     string     `json:"team,omitempty"`
	Loadout  []string   `json:"loadout,omitempty"`
	Position *game.Vec3 `json:"position,omitempty"`
	Velocity *game.Vec3 `json:"velocity,omitempty"`
	TargetID string     `json:"targetId,omitempty"`
	Amount   float64    `json:"amount,omitempty"`
	Point    *game.Vec3 `json:"point,omitempty"`
	Normal   *game.Vec3 `json:"normal,omitempty"`
	Slot     int        `json:"slot,omitempty"`
	Mode     string     `json:"mode,omitempty"`
}

func (c *wsClient) readPump() {
	defer func() {
		if c.playerID != "" {
			c.hub.engine.Submit(game.LeaveIntent{PlayerID: c.playerID})
		}
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
		if c.hub.limiter != nil {
			c.hub.limiter.Release(c.ip)
		}
	}()

	c.conn.SetReadLimit(maxFrameSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Debug("websocket read error", zap.Error(err))
			}
			return
		}

		var req wsRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			RecordIntentRejected("payload")
			c.sendEvent("error", map[string]string{"message": "malformed request"})
			continue
		}
		c.handle(req)
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
			IncrementWSMessages()
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// sendEvent queues a frame for this client only. Drops rather than
// blocks; the write pump owns backpressure.
func (c *wsClient) sendEvent(event string, data any) {
	msg, err := json.Marshal(wsEvent{Event: event, Data: data})
	if err != nil {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

func (c *wsClient) handle(req wsRequest) {
	if !c.intents.Allow() {
		RecordIntentRejected("rate")
		return
	}

	if req.Op == "join" {
		c.handleJoin(req)
		return
	}

	// every other op acts on the bound player
	if c.playerID == "" {
		RecordIntentRejected("unbound")
		c.sendEvent("error", map[string]string{"message": "join first"})
		return
	}

	var in game.Intent
	switch req.Op {
	case "leave":
		in = game.LeaveIntent{PlayerID: c.playerID}
	case "move":
		if req.Position == nil {
			RecordIntentRejected("payload")
			c.sendEvent("error", map[string]string{"message": "move requires position"})
			return
		}
		move := game.MoveIntent{PlayerID: c.playerID, Position: *req.Position}
		if req.Velocity != nil {
			move.Velocity = *req.Velocity
		}
		in = move
	case "fire":
		if req.TargetID == "" || req.Amount <= 0 {
			RecordIntentRejected("payload")
			c.sendEvent("error", map[string]string{"message": "fire requires targetId and amount"})
			return
		}
		hit := game.DamageIntent{
			AttackerID: c.playerID,
			TargetID:   req.TargetID,
			Amount:     req.Amount,
		}
		if req.Point != nil {
			hit.Point = *req.Point
		}
		if req.Normal != nil {
			hit.Normal = *req.Normal
		}
		in = hit
	case "respawn":
		in = game.RespawnIntent{PlayerID: c.playerID}
	case "reload":
		in = game.ReloadIntent{PlayerID: c.playerID}
	case "switch":
		in = game.SwitchWeaponIntent{PlayerID: c.playerID, Slot: req.Slot}
	case "firemode":
		if req.Mode == "" {
			RecordIntentRejected("payload")
			c.sendEvent("error", map[string]string{"message": "firemode requires mode"})
			return
		}
		in = game.FireModeIntent{PlayerID: c.playerID, Mode: req.Mode}
	case "drop":
		in = game.DropBallIntent{PlayerID: c.playerID}
	default:
		RecordIntentRejected("payload")
		c.sendEvent("error", map[string]string{"message": "unknown op: " + req.Op})
		return
	}

	if !c.hub.engine.Submit(in) {
		RecordIntentRejected("inbox_full")
		return
	}
	RecordIntentForwarded(req.Op)

	if req.Op == "leave" {
		c.playerID = ""
		c.sendEvent("left", nil)
	}
}

// handleJoin submits the join and waits briefly for the engine's
// verdict so the client learns its player id on this frame, not by
// fishing it out of the next snapshot.
func (c *wsClient) handleJoin(req wsRequest) {
	if c.playerID != "" {
		c.sendEvent("error", map[string]string{"message": "already joined"})
		return
	}
	if req.Name == "" {
		RecordIntentRejected("payload")
		c.sendEvent("error", map[string]string{"message": "join requires name"})
		return
	}

	reply := make(chan game.JoinReply, 1)
	ok := c.hub.engine.Submit(game.JoinIntent{
		Name:    req.Name,
		Team:    req.Team,
		Loadout: req.Loadout,
		Reply:   reply,
	})
	if !ok {
		RecordIntentRejected("inbox_full")
		c.sendEvent("error", map[string]string{"message": "server busy, try again"})
		return
	}
	RecordIntentForwarded("join")

	select {
	case res := <-reply:
		if !res.Ok {
			c.sendEvent("join_rejected", map[string]string{"reason": res.Reason})
			return
		}
		c.playerID = res.PlayerID
		c.sendEvent("joined", map[string]string{"playerId": res.PlayerID})
	case <-time.After(c.hub.joinWait):
		c.sendEvent("error", map[string]string{"message": "join timed out"})
		// The engine may still create the session after the wait. The
		// id was never bound here, so the disconnect cleanup cannot
		// release it; evict the orphan as soon as the verdict lands.
		go func() {
			select {
			case res := <-reply:
				if res.Ok {
					c.hub.engine.Submit(game.LeaveIntent{PlayerID: res.PlayerID})
				}
			case <-c.hub.done:
			}
		}()
	}
}
