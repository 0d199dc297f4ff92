package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/yourorg/timetrack/internal/domain"
)

// FeedHandler streams entry change events over WebSocket so clients
// can refresh views without polling.
type FeedHandler struct {
	store          domain.DocumentStore
	logger         *slog.Logger
	allowedOrigins []string
}

// NewFeedHandler creates a new entry feed handler
func NewFeedHandler(store domain.DocumentStore, logger *slog.Logger, allowedOrigins []string) *FeedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &FeedHandler{
		store:          store,
		logger:         logger,
		allowedOrigins: allowedOrigins,
	}
}

// upgrader is initialized per-request to use instance's allowed origins
func (h *FeedHandler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				// Allow requests with no origin (e.g., non-browser clients)
				return true
			}
			for _, allowed := range h.allowedOrigins {
				if origin == allowed {
					return true
				}
			}
			h.logger.Warn("websocket origin rejected", slog.String("origin", origin))
			return false
		},
	}
}

// feedEvent is the wire shape pushed to subscribers. The full document
// is included so clients do not need a follow-up fetch.
type feedEvent struct {
	Kind  domain.ChangeKind `json:"kind"`
	ID    string            `json:"id"`
	Entry *domain.TimeEntry `json:"entry,omitempty"`
}

// ServeHTTP handles GET /ws/entries
func (h *FeedHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	actor := currentActor(r)
	if actor == nil {
		writeErrorMsg(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	ctx := r.Context()
	events, err := h.store.Watch(ctx, domain.CollectionEntries)
	if err != nil {
		h.logger.Error("failed to watch entries", slog.String("error", err.Error()))
		writeErrorMsg(w, http.StatusInternalServerError, "internal error")
		return
	}

	upgrader := h.getUpgrader()
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer ws.Close()

	h.logger.Debug("entry feed opened",
		slog.String("user_id", actor.ID),
		slog.String("company_id", actor.CompanyID),
	)

	// Heartbeat ping to keep connection alive
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				_ = ws.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(5*time.Second))
			case <-done:
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			msg, visible := h.projectEvent(actor, ev)
			if !visible {
				continue
			}
			if err := ws.WriteJSON(msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					h.logger.Debug("entry feed closed", slog.String("user_id", actor.ID))
				}
				return
			}
		}
	}
}

// projectEvent scopes a raw change event to what the actor may see:
// regular users get their own entries, elevated roles get their
// company, superadmins get everything. Deletes pass through with just
// the ID since the document may be gone.
func (h *FeedHandler) projectEvent(actor *domain.Actor, ev domain.ChangeEvent) (*feedEvent, bool) {
	out := &feedEvent{Kind: ev.Kind, ID: ev.ID}
	if len(ev.Doc) == 0 {
		return out, actor.Role != domain.RoleUser
	}

	var entry domain.TimeEntry
	if err := json.Unmarshal(ev.Doc, &entry); err != nil {
		h.logger.Warn("unreadable change event", slog.String("id", ev.ID))
		return nil, false
	}

	switch actor.Role {
	case domain.RoleSuperadmin:
	case domain.RoleAdmin, domain.RoleManager:
		if entry.CompanyID != actor.CompanyID {
			return nil, false
		}
	default:
		if entry.UserID != actor.ID {
			return nil, false
		}
	}

	out.Entry = &entry
	return out, true
}
