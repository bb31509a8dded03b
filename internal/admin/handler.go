package admin

import (
	"net/http"

	"papertrade/internal/accounts"
	"papertrade/internal/apperr"
	"papertrade/internal/httputil"

	"go.uber.org/zap"
)

// Handler serves the admin user-management endpoints.
type Handler struct {
	svc *Service
	log *zap.Logger
}

// NewHandler creates a new admin handler
func NewHandler(svc *Service, log *zap.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

type userRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AddUser creates a regular account with the default balances.
func (h *Handler) AddUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error(), Kind: "validation"})
		return
	}
	acc, err := h.svc.AddUser(r.Context(), AddUserRequest(req))
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]any{"message": "user created", "user": acc})
}

func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request, uid string) {
	var req userRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error(), Kind: "validation"})
		return
	}
	acc, err := h.svc.UpdateUser(r.Context(), uid, UpdateUserRequest(req))
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"message": "user updated", "user": acc})
}

func (h *Handler) BlockUser(w http.ResponseWriter, r *http.Request, uid string) {
	acc, err := h.svc.BlockUser(r.Context(), uid)
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"message": "user blocked", "user": acc})
}

func (h *Handler) UnblockUser(w http.ResponseWriter, r *http.Request, uid string) {
	acc, err := h.svc.UnblockUser(r.Context(), uid)
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"message": "user unblocked", "user": acc})
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.ListUsers(r.Context())
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"total": len(users), "users": users})
}

func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request, uid string) {
	var req struct {
		Text string `json:"text"`
	}
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error(), Kind: "validation"})
		return
	}
	msg, err := h.svc.SendMessage(r.Context(), uid, req.Text)
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"message": "message sent", "sent": msg})
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request, uid string) {
	acc, err := h.svc.DeleteUser(r.Context(), uid)
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"message": "user deleted", "deleted_user": acc})
}

// RequireAdmin admits only callers whose stored role is admin. The role is
// re-read on every request so a demotion takes effect immediately.
func RequireAdmin(store accounts.Store, userID func(*http.Request) (string, bool), log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := userID(r)
			if !ok {
				httputil.WriteError(w, log, apperr.Unauthorized("unauthorized"))
				return
			}
			acc, err := store.FindByID(r.Context(), id)
			if err != nil {
				if apperr.Is(err, apperr.KindNotFound) {
					httputil.WriteError(w, log, apperr.Unauthorized("unauthorized"))
					return
				}
				httputil.WriteError(w, log, err)
				return
			}
			if !acc.IsAdmin() {
				httputil.WriteError(w, log, apperr.Forbidden("access denied: admin only"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
