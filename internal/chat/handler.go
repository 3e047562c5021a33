package chat

import (
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"campus-hub/internal/httpx"
	"campus-hub/internal/identity"
	myMiddleware "campus-hub/internal/middleware"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all for now (Dev mode)
	},
}

type Handler struct {
	manager     *Manager
	broadcaster *Broadcaster
	dispatcher  *Dispatcher
	clientCfg   ClientConfig
	log         *zap.Logger
}

func NewHandler(manager *Manager, broadcaster *Broadcaster, dispatcher *Dispatcher, cfg ClientConfig, log *zap.Logger) *Handler {
	return &Handler{
		manager:     manager,
		broadcaster: broadcaster,
		dispatcher:  dispatcher,
		clientCfg:   cfg,
		log:         log,
	}
}

// ServeWs authenticates the caller before upgrading, so a bad token gets a
// plain 401 instead of a websocket that closes immediately.
func (h *Handler) ServeWs(w http.ResponseWriter, r *http.Request) {
	session, err := h.manager.Authenticate(r.Context(), myMiddleware.TokenFromRequest(r))
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws_upgrade_failed", zap.Error(err))
		h.manager.Disconnect(session)
		return
	}

	client := &Client{
		session:    session,
		conn:       conn,
		manager:    h.manager,
		dispatcher: h.dispatcher,
		limiter:    newLimiter(h.clientCfg),
		cfg:        h.clientCfg,
		log:        h.log,
	}

	go client.WritePump()
	go client.ReadPump()
}

// GET /api/rooms/{id}/messages?limit=&before=
func (h *Handler) GetRoomMessages(w http.ResponseWriter, r *http.Request) {
	caller, _ := identity.FromContext(r.Context())
	roomID, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	limit, err := httpx.IntQuery(r, "limit", 0)
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	before, err := httpx.IntQuery(r, "before", 0)
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}

	msgs, err := h.broadcaster.History(r.Context(), caller, roomID, limit, int64(before))
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, msgs)
}

// GET /api/messages/{id}
func (h *Handler) GetMessage(w http.ResponseWriter, r *http.Request) {
	caller, _ := identity.FromContext(r.Context())
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	m, err := h.broadcaster.Lookup(r.Context(), caller, id)
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}

// DELETE /api/messages/{id}
func (h *Handler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	caller, _ := identity.FromContext(r.Context())
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	m, err := h.broadcaster.SoftDelete(r.Context(), caller, id)
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}
