package room

import (
	"net/http"

	"go.uber.org/zap"

	"campus-hub/internal/httpx"
	"campus-hub/internal/identity"
)

type Handler struct {
	service *Service
	log     *zap.Logger
}

func NewHandler(s *Service, log *zap.Logger) *Handler {
	return &Handler{service: s, log: log}
}

func (h *Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.service.List(r.Context())
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	if rooms == nil {
		rooms = []Room{}
	}
	httpx.JSON(w, http.StatusOK, rooms)
}

func (h *Handler) GetRoom(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	rm, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rm)
}

func (h *Handler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	caller, _ := identity.FromContext(r.Context())

	var req CreateRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	rm, err := h.service.Create(r.Context(), caller, req)
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, rm)
}

func (h *Handler) JoinRoom(w http.ResponseWriter, r *http.Request) {
	caller, _ := identity.FromContext(r.Context())
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}

	added, err := h.service.Join(r.Context(), id, caller.UserID)
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	msg := "Joined group successfully"
	if !added {
		msg = "Already a member of this group"
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"message": msg, "room_id": id})
}
