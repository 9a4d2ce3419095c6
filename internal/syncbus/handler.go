// Package syncbus implements the sync bus (C5): the WebSocket transport
// binding client connections to room commands and broadcasting room state
// back out as sync events.
package syncbus

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"jamsync/internal/acquisition"
	"jamsync/internal/audit"
	"jamsync/internal/library"
	"jamsync/internal/protocol"
	"jamsync/internal/room"
	"jamsync/internal/streaming"
)

const writeTimeout = 5 * time.Second
const sendBufferSize = 64

// Handler owns websocket transport for the jam session server.
type Handler struct {
	rooms           *room.Registry
	lib             *library.Library
	acquirer        *acquisition.Pipeline
	engine          *streaming.Engine
	auditStore      *audit.Store
	upgrader        websocket.Upgrader
	chunkSize       int
	sampleRate      int
	rateHz          float64
	rateBurst       int
	maxParticipants int
}

// Config bundles the dependencies and tunables a Handler needs.
type Config struct {
	Rooms           *room.Registry
	Library         *library.Library
	Acquirer        *acquisition.Pipeline
	Engine          *streaming.Engine
	Audit           *audit.Store
	ChunkSize       int
	SampleRate      int
	RateHz          float64
	RateBurst       int
	MaxParticipants int
}

// NewHandler builds a syncbus Handler from cfg.
func NewHandler(cfg Config) *Handler {
	return &Handler{
		rooms:      cfg.Rooms,
		lib:        cfg.Library,
		acquirer:   cfg.Acquirer,
		engine:     cfg.Engine,
		auditStore: cfg.Audit,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
		chunkSize:       cfg.ChunkSize,
		sampleRate:      cfg.SampleRate,
		rateHz:          cfg.RateHz,
		rateBurst:       cfg.RateBurst,
		maxParticipants: cfg.MaxParticipants,
	}
}

// Register binds websocket routes on an Echo router.
func (h *Handler) Register(e *echo.Echo) {
	e.GET("/ws", h.HandleWebSocket)
}

// HandleWebSocket upgrades one request and serves it until disconnect.
func (h *Handler) HandleWebSocket(c echo.Context) error {
	remoteAddr := c.RealIP()
	slog.Debug("ws upgrade request", "remote", remoteAddr)

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error("ws upgrade failed", "remote", remoteAddr, "err", err)
		return fmt.Errorf("upgrade websocket: %w", err)
	}
	h.serveConn(conn, remoteAddr)
	return nil
}

func (h *Handler) serveConn(conn *websocket.Conn, remoteAddr string) {
	defer conn.Close()
	conn.SetReadLimit(1 << 20)

	sess := &session{
		id:      uuid.NewString(),
		conn:    conn,
		send:    make(chan *protocol.Message, sendBufferSize),
		limiter: rate.NewLimiter(rate.Limit(h.rateHz), h.rateBurst),
	}

	go sess.writePump()

	defer h.handleDisconnect(sess)

	for {
		var in protocol.Message
		if err := conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("ws unexpected close", "session", sess.id, "err", err)
			}
			close(sess.send)
			return
		}

		if !sess.limiter.Allow() {
			slog.Debug("ws rate limit exceeded, dropping message", "session", sess.id, "type", in.Type)
			continue
		}

		h.handleInbound(context.Background(), sess, &in)
	}
}

// session is one connected client's transport-level state.
type session struct {
	id       string
	conn     *websocket.Conn
	send     chan *protocol.Message
	limiter  *rate.Limiter
	roomCode string
	room     *room.Room
}

func (s *session) writePump() {
	for msg := range s.send {
		_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := s.conn.WriteJSON(msg); err != nil {
			slog.Debug("ws write error", "session", s.id, "type", msg.Type, "err", err)
			return
		}
	}
}

func (h *Handler) sendError(sess *session, message string) {
	select {
	case sess.send <- &protocol.Message{Type: protocol.TypeError, Error: message}:
	default:
	}
}

func (h *Handler) handleDisconnect(sess *session) {
	if sess.room == nil {
		return
	}
	var roomEmpty bool
	sess.room.SubmitSync(func(r *room.Room) {
		departedUsername, newHostID, hostChanged, empty := r.RemoveParticipant(sess.id)
		roomEmpty = empty
		if empty {
			return
		}
		r.Broadcast(&protocol.Message{Type: protocol.TypeUserLeft, Username: departedUsername}, "")
		r.Broadcast(&protocol.Message{Type: protocol.TypePlayersUpdated, Players: playersSnapshot(r)}, "")
		if hostChanged {
			slog.Info("host promoted", "room", r.Code, "new_host", newHostID)
		}
	})

	if h.auditStore != nil {
		_ = h.auditStore.RecordRoomEvent(context.Background(), sess.roomCode, "participant_left", sess.id, "")
	}

	if roomEmpty {
		h.rooms.Delete(sess.roomCode)
		if h.auditStore != nil {
			_ = h.auditStore.RecordRoomEvent(context.Background(), sess.roomCode, "room_deleted", "", "")
		}
	}
}

func playersSnapshot(r *room.Room) []protocol.PlayerInfo {
	parts := r.Participants()
	out := make([]protocol.PlayerInfo, 0, len(parts))
	for _, p := range parts {
		out = append(out, protocol.PlayerInfo{Username: p.Username, ColorIdx: p.ColorIdx, Position: p.Seat})
	}
	return out
}
