package room

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/slichti/studio-platform-dev-sub010/internal/domain"
	"github.com/slichti/studio-platform-dev-sub010/internal/metrics"
)

// Sender is one live bidirectional channel into the room. Send must be safe
// for concurrent use and must return an error once the channel is no longer
// open; a failed Send never affects delivery to other senders.
type Sender interface {
	Send(v any) error
}

// Attachment is the identity record serialized alongside a connection so it
// survives a host suspend/resume cycle.
type Attachment struct {
	UserID   string    `json:"userId"`
	UserName string    `json:"userName"`
	JoinedAt time.Time `json:"joinedAt"`
}

// ResumedConn pairs a revived channel with its raw attachment bytes.
type ResumedConn struct {
	Sender     Sender
	Attachment []byte
}

// Actor owns a single chat room: the live connection table, the message
// ring buffer and the presence list. All operations are serialized by one
// mutex, which is the actor-model guarantee everything else relies on.
type Actor struct {
	mu sync.Mutex

	roomID   string
	tenantID string // first-write-wins for the actor's lifetime

	conns   map[Sender]Attachment
	buf     *ring
	pending []domain.ChatMessage // appended since the last batch flush

	store        MessageStore
	historyLimit int

	now func() time.Time
}

type ActorOptions struct {
	BufferSize   int // ring capacity, default 100
	HistoryLimit int // messages replayed on connect, default 50
	Store        MessageStore
}

func NewActor(roomID string, opts ActorOptions) *Actor {
	if opts.BufferSize <= 0 {
		opts.BufferSize = 100
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 50
	}
	if opts.HistoryLimit > opts.BufferSize {
		opts.HistoryLimit = opts.BufferSize
	}
	return &Actor{
		roomID:       roomID,
		conns:        make(map[Sender]Attachment),
		buf:          newRing(opts.BufferSize),
		store:        opts.Store,
		historyLimit: opts.HistoryLimit,
		now:          time.Now,
	}
}

func (a *Actor) RoomID() string { return a.roomID }

// LatchTenant records the tenant on first successful connect. Later values
// are ignored; the caller contract says they never differ.
func (a *Actor) LatchTenant(tenantID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.tenantID == "" {
		a.tenantID = tenantID
	}
}

func (a *Actor) TenantID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tenantID
}

// Restore rebuilds the connection table from revived channels. A channel
// whose attachment fails to decode is dropped from the table (the host may
// still deliver its frames, but they cannot be attributed) and logged as a
// recoverable anomaly.
func (a *Actor) Restore(pairs []ResumedConn) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, p := range pairs {
		var att Attachment
		if err := json.Unmarshal(p.Attachment, &att); err != nil {
			slog.Warn("room: dropping connection with unreadable attachment",
				"room", a.roomID, "err", err)
			continue
		}
		a.conns[p.Sender] = att
		metrics.WsConnections.Inc()
	}
}

// Register adds a new connection: everyone else learns about it through
// user_joined, the newcomer alone receives the recent history and the
// presence list as it stood just before this connect.
func (a *Actor) Register(s Sender, att Attachment) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if att.JoinedAt.IsZero() {
		att.JoinedAt = a.now()
	}

	others := a.presenceLocked()

	a.conns[s] = att
	metrics.WsConnections.Inc()

	a.broadcastLocked(PresenceEvent{
		Type:      EventUserJoined,
		UserID:    att.UserID,
		UserName:  att.UserName,
		Timestamp: a.now(),
	}, s)

	history := a.buf.Last(a.historyLimit)
	if history == nil {
		history = []domain.ChatMessage{}
	}
	if err := s.Send(HistoryEvent{Type: EventHistory, Messages: history}); err != nil {
		slog.Warn("room: history send failed", "room", a.roomID, "user", att.UserID, "err", err)
	}
	if err := s.Send(UserListEvent{Type: EventUserList, Users: others}); err != nil {
		slog.Warn("room: user_list send failed", "room", a.roomID, "user", att.UserID, "err", err)
	}
}

// Remove drops a connection from the table. A clean close announces the
// departure; an errored connection leaves silently since its identity may
// be inconsistent.
func (a *Actor) Remove(s Sender, clean bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	att, ok := a.conns[s]
	if !ok {
		return
	}
	delete(a.conns, s)
	metrics.WsConnections.Dec()

	if clean {
		a.broadcastLocked(PresenceEvent{
			Type:      EventUserLeft,
			UserID:    att.UserID,
			UserName:  att.UserName,
			Timestamp: a.now(),
		}, nil)
	}
}

// HandleMessage dispatches one inbound frame. Malformed payloads and
// unknown types are swallowed; the connection always stays usable.
func (a *Actor) HandleMessage(s Sender, raw []byte) {
	var frame clientFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	switch frame.Type {
	case EventMessage:
		att, ok := a.conns[s]
		if !ok {
			return
		}
		msg := domain.ChatMessage{
			ID:        uuid.New().String(),
			UserID:    att.UserID,
			UserName:  att.UserName,
			Content:   frame.Content,
			Timestamp: a.now(),
		}
		a.buf.Append(msg)
		a.pending = append(a.pending, msg)
		metrics.WsMessagesTotal.Inc()
		a.broadcastLocked(MessageEvent{Type: EventMessage, ChatMessage: msg}, nil)
		a.persistAsync(msg)

	case EventTyping:
		att, ok := a.conns[s]
		if !ok {
			return
		}
		a.broadcastLocked(TypingEvent{Type: EventTyping, UserID: att.UserID, UserName: att.UserName}, s)

	case "ping":
		if err := s.Send(PongEvent{Type: EventPong}); err != nil {
			slog.Debug("room: pong send failed", "room", a.roomID, "err", err)
		}
	}
}

// InjectBroadcast delivers an arbitrary payload to every connection without
// the caller being one. Used for system-originated events.
func (a *Actor) InjectBroadcast(raw json.RawMessage) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.broadcastLocked(raw, nil)
}

// broadcastLocked fans v out to every connection except exclude. A send
// failure is logged and delivery to the remaining connections continues.
func (a *Actor) broadcastLocked(v any, exclude Sender) {
	for s, att := range a.conns {
		if s == exclude {
			continue
		}
		if err := s.Send(v); err != nil {
			metrics.BroadcastErrors.Inc()
			slog.Warn("room: broadcast send failed",
				"room", a.roomID, "user", att.UserID, "err", err)
		}
	}
}

func (a *Actor) persistAsync(msg domain.ChatMessage) {
	if a.store == nil {
		return
	}
	store, roomID := a.store, a.roomID
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Put(ctx, msg); err != nil {
			slog.Warn("room: message persistence failed",
				"room", roomID, "msg", msg.ID, "err", err)
		}
	}()
}

// Flush persists the messages buffered since the previous flush. Best
// effort: an error is logged and the batch is not retried, the store's
// id-keyed writes make any overlap with persistAsync harmless.
func (a *Actor) Flush(ctx context.Context) {
	a.mu.Lock()
	batch := a.pending
	a.pending = nil
	a.mu.Unlock()

	if len(batch) == 0 || a.store == nil {
		return
	}
	if err := a.store.PutBatch(ctx, batch); err != nil {
		slog.Warn("room: batch persistence failed",
			"room", a.roomID, "count", len(batch), "err", err)
	}
}

// Presence returns the current presence list, oldest joiner first.
func (a *Actor) Presence() []domain.User {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.presenceLocked()
}

func (a *Actor) presenceLocked() []domain.User {
	type entry struct {
		user     domain.User
		joinedAt time.Time
	}
	entries := make([]entry, 0, len(a.conns))
	for _, att := range a.conns {
		entries = append(entries, entry{
			user:     domain.User{UserID: att.UserID, UserName: att.UserName},
			joinedAt: att.JoinedAt,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].joinedAt.Equal(entries[j].joinedAt) {
			return entries[i].user.UserID < entries[j].user.UserID
		}
		return entries[i].joinedAt.Before(entries[j].joinedAt)
	})
	users := make([]domain.User, 0, len(entries))
	for _, e := range entries {
		users = append(users, e.user)
	}
	return users
}

// Online reports the number of live connections.
func (a *Actor) Online() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.conns)
}

// HistorySnapshot returns up to n buffered messages, oldest first.
func (a *Actor) HistorySnapshot(n int) []domain.ChatMessage {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.buf.Last(n)
}
