package ws

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/slichti/studio-platform-dev-sub010/internal/domain"
	"github.com/slichti/studio-platform-dev-sub010/internal/room"
)

type Server struct {
	upgrader websocket.Upgrader
	rooms    *room.Registry

	pingEvery time.Duration
}

func NewServer(rooms *room.Registry) *Server {
	return &Server{
		rooms: rooms,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		pingEvery: 15 * time.Second,
	}
}

// connectParams is the required trio plus the optional display name.
type connectParams struct {
	roomID   string
	tenantID string
	userID   string
	userName string
}

func parseConnectParams(r *http.Request) (connectParams, error) {
	q := r.URL.Query()

	p := connectParams{
		roomID:   strings.TrimSpace(chi.URLParam(r, "id")),
		userID:   strings.TrimSpace(q.Get("userId")),
		userName: strings.TrimSpace(q.Get("userName")),
	}
	if p.roomID == "" {
		p.roomID = strings.TrimSpace(q.Get("roomId"))
	}
	p.tenantID = strings.TrimSpace(q.Get("tenantId"))
	if p.tenantID == "" {
		p.tenantID = strings.TrimSpace(q.Get("tenantSlug"))
	}

	if p.roomID == "" {
		return p, domain.ErrMissingRoomID
	}
	if p.tenantID == "" {
		return p, domain.ErrMissingTenant
	}
	if p.userID == "" {
		return p, domain.ErrMissingUserID
	}
	if p.userName == "" {
		p.userName = p.userID
	}
	return p, nil
}

// WS endpoint: GET /ws/rooms/{id}?tenantId=...&userId=...&userName=...
// Missing required params reject with 400 before any state is touched.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	p, err := parseConnectParams(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", "room", p.roomID, "err", err)
		return
	}

	c := newWSConn(conn)
	actor := s.rooms.Get(p.roomID)
	actor.LatchTenant(p.tenantID)
	actor.Register(c, room.Attachment{
		UserID:   p.userID,
		UserName: p.userName,
		JoinedAt: time.Now(),
	})

	go s.writeLoop(c)
	clean := s.readLoop(actor, c)

	actor.Remove(c, clean)

	if err := c.Close(); err != nil {
		slog.Debug("ws close failed", "room", p.roomID, "user", p.userID, "err", err)
	}
}

// readLoop feeds inbound frames to the actor until the connection dies.
// It reports whether the peer closed cleanly; a dirty drop leaves the room
// without a user_left announcement.
func (s *Server) readLoop(actor *room.Actor, c *wsConn) (clean bool) {
	c.conn.SetReadLimit(1 << 20)
	c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return websocket.IsCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway)
		}
		actor.HandleMessage(c, data)
	}
}

func (s *Server) writeLoop(c *wsConn) {
	ticker := time.NewTicker(s.pingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
		case <-c.closed:
			return
		}
	}
}
