package accounts

import (
	"net/http"

	"papertrade/internal/httputil"

	"go.uber.org/zap"
)

type Handler struct {
	svc *Service
	log *zap.Logger
}

func NewHandler(svc *Service, log *zap.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request, userID string) {
	acc, err := h.svc.Get(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"user": acc})
}

func (h *Handler) Online(w http.ResponseWriter, r *http.Request, userID string) {
	h.setPresence(w, r, userID, true)
}

func (h *Handler) Offline(w http.ResponseWriter, r *http.Request, userID string) {
	h.setPresence(w, r, userID, false)
}

func (h *Handler) setPresence(w http.ResponseWriter, r *http.Request, userID string, online bool) {
	acc, err := h.svc.SetOnline(r.Context(), userID, online)
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"user": acc})
}

func (h *Handler) UpdatePassword(w http.ResponseWriter, r *http.Request, userID string) {
	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error(), Kind: "validation"})
		return
	}
	if err := h.svc.UpdatePassword(r.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}

func (h *Handler) UpdateAvatar(w http.ResponseWriter, r *http.Request, userID string) {
	var req struct {
		Avatar string `json:"avatar"`
	}
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error(), Kind: "validation"})
		return
	}
	acc, err := h.svc.UpdateAvatar(r.Context(), userID, req.Avatar)
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"user": acc})
}

func (h *Handler) DeleteMessage(w http.ResponseWriter, r *http.Request, userID, messageID string) {
	acc, err := h.svc.DeleteMessage(r.Context(), userID, messageID)
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"messages": acc.Messages})
}
