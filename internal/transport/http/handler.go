package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/slichti/studio-platform-dev-sub010/internal/domain"
	"github.com/slichti/studio-platform-dev-sub010/internal/ratelimit"
	"github.com/slichti/studio-platform-dev-sub010/internal/room"
)

type Handler struct {
	rooms  *room.Registry
	limits *ratelimit.Registry
	store  room.MessageStore
}

func NewHandler(rooms *room.Registry, limits *ratelimit.Registry, store room.MessageStore) *Handler {
	return &Handler{rooms: rooms, limits: limits, store: store}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// POST /rooms/{id}/broadcast
// Injects an arbitrary payload into the room without being a connection;
// the body is passed through to every live connection verbatim.
func (h *Handler) BroadcastRoom(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "id")

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		slog.Error("handler.BroadcastRoom: read body", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	if !json.Valid(body) {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
		return
	}

	h.rooms.Get(roomID).InjectBroadcast(json.RawMessage(body))
	writeJSON(w, http.StatusOK, OKResponse{OK: true})
}

// GET /rooms/{id}/presence
func (h *Handler) RoomPresence(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "id")

	var users []domain.User
	if actor, ok := h.rooms.Lookup(roomID); ok {
		users = actor.Presence()
	}
	if users == nil {
		users = []domain.User{}
	}
	writeJSON(w, http.StatusOK, PresenceResponse{Users: users})
}

// GET|POST /ratelimit/{partition}?key=&limit=&window=&cost=
// 200 when admitted, 429 when rejected, 400 with a plain-text body when a
// required parameter is missing or invalid.
func (h *Handler) CheckRateLimit(w http.ResponseWriter, r *http.Request) {
	partition := chi.URLParam(r, "partition")
	q := r.URL.Query()

	key := q.Get("key")
	limit, err := positiveIntParam(q.Get("limit"))
	if err != nil {
		http.Error(w, domain.ErrInvalidLimit.Error(), http.StatusBadRequest)
		return
	}
	window, err := positiveIntParam(q.Get("window"))
	if err != nil {
		http.Error(w, domain.ErrInvalidWindow.Error(), http.StatusBadRequest)
		return
	}
	cost := 1
	if raw := q.Get("cost"); raw != "" {
		if cost, err = positiveIntParam(raw); err != nil {
			http.Error(w, domain.ErrInvalidCost.Error(), http.StatusBadRequest)
			return
		}
	}

	decision, err := h.limits.Get(partition).Check(key, limit, time.Duration(window)*time.Second, cost)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	status := http.StatusOK
	if !decision.Allowed {
		status = http.StatusTooManyRequests
	}
	writeJSON(w, status, decision)
}

// GET /messages/{id} — recovery/audit lookup against durable storage.
func (h *Handler) GetMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	msg, err := h.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrMessageNotFound) {
			writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "message not found"})
			return
		}
		slog.Error("handler.GetMessage:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

func positiveIntParam(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, errors.New("not a positive integer")
	}
	return n, nil
}
