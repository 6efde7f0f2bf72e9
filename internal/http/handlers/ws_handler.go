package handlers

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tasktrack/backend/internal/auth"
	"github.com/tasktrack/backend/internal/config"
	"github.com/tasktrack/backend/internal/events"
	"github.com/tasktrack/backend/internal/rbac"
)

// wsWriter is the write half of a websocket connection.
type wsWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// WSHub streams task and audit events to connected admin clients.
type WSHub struct {
	cfg         *config.Config
	subscriber  events.Subscriber
	log         *zap.Logger
	queue       chan events.Event
	mu          sync.RWMutex
	connections map[uuid.UUID][]wsWriter
}

func NewWSHub(cfg *config.Config, subscriber events.Subscriber, log *zap.Logger) *WSHub {
	return &WSHub{
		cfg:         cfg,
		subscriber:  subscriber,
		log:         log,
		queue:       make(chan events.Event, 64),
		connections: make(map[uuid.UUID][]wsWriter),
	}
}

// Start subscribes to both event streams. Each subscription runs its own
// goroutine, so they only enqueue; a single broadcaster goroutine drains the
// queue and performs all connection writes. Websocket connections do not
// tolerate concurrent writers.
func (h *WSHub) Start(ctx context.Context) {
	_ = h.subscriber.Subscribe(ctx, events.StreamTasks, h.enqueue)
	_ = h.subscriber.Subscribe(ctx, events.StreamAudit, h.enqueue)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case event := <-h.queue:
				h.broadcast(event)
			}
		}
	}()
}

// enqueue hands an event to the broadcaster. Drops the event when the queue
// is full rather than blocking the subscriber goroutine.
func (h *WSHub) enqueue(event events.Event) {
	select {
	case h.queue <- event:
	default:
		h.log.Warn("ws feed queue full, dropping event", zap.String("type", event.Type))
	}
}

// broadcast is only ever called from the broadcaster goroutine.
func (h *WSHub) broadcast(event events.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, conns := range h.connections {
		for _, conn := range conns {
			_ = conn.WriteMessage(websocket.TextMessage, data)
		}
	}
}

// WSUpgradeMiddleware checks for websocket upgrade
func WSUpgradeMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

func (h *WSHub) HandleWS(conn *websocket.Conn) {
	tokenStr := conn.Query("token")
	if tokenStr == "" {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"missing token"}`))
		conn.Close()
		return
	}

	claims, err := auth.ParseJWT(h.cfg.JWTSecret, tokenStr)
	if err != nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"invalid token"}`))
		conn.Close()
		return
	}

	// The live feed exposes the audit trail, so it is admin-only.
	if !rbac.HasPermission(claims.Role, rbac.PermReadAuditLog) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"admin access required"}`))
		conn.Close()
		return
	}

	h.mu.Lock()
	h.connections[claims.UserID] = append(h.connections[claims.UserID], conn)
	h.mu.Unlock()

	h.log.Debug("ws client connected", zap.String("user_id", claims.UserID.String()))

	// Block reading until the client goes away; inbound messages are ignored.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.mu.Lock()
	conns := h.connections[claims.UserID]
	for i, cn := range conns {
		if cn == wsWriter(conn) {
			h.connections[claims.UserID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}
	if len(h.connections[claims.UserID]) == 0 {
		delete(h.connections, claims.UserID)
	}
	h.mu.Unlock()

	conn.Close()
}
