package user

import (
	"net/http"

	"go.uber.org/zap"

	"campus-hub/internal/httpx"
)

type Handler struct {
	Service *Service
	log     *zap.Logger
}

func NewHandler(s *Service, log *zap.Logger) *Handler {
	return &Handler{Service: s, log: log}
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}

	u, err := h.Service.Register(r.Context(), &req)
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}

	h.log.Info("user_registered", zap.Int64("user_id", u.ID), zap.String("username", u.Username))
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"message": "User registered successfully. Waiting for admin approval.",
		"user":    u,
	})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}

	res, err := h.Service.Login(r.Context(), &req)
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	users, err := h.Service.ListPending(r.Context())
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	if users == nil {
		users = []User{}
	}
	httpx.JSON(w, http.StatusOK, users)
}

func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	u, err := h.Service.Approve(r.Context(), id)
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	h.log.Info("user_approved", zap.Int64("user_id", u.ID))
	httpx.JSON(w, http.StatusOK, u)
}

func (h *Handler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Service.SearchUsers(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	if users == nil {
		users = []User{}
	}
	httpx.JSON(w, http.StatusOK, users)
}
