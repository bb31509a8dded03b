package httpserver

import (
	"context"
	"net/http"
	"strings"

	"papertrade/internal/accounts"
	"papertrade/internal/apperr"
	"papertrade/internal/httputil"

	"go.uber.org/zap"
)

type ctxKey string

const userIDKey ctxKey = "user_id"

type TokenParser interface {
	ParseToken(token string) (string, error)
}

func WithAuth(svc TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authz := r.Header.Get("Authorization")
			parts := strings.SplitN(authz, " ", 2)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{Error: "missing bearer token", Kind: string(apperr.KindUnauthorized)})
				return
			}
			userID, err := svc.ParseToken(parts[1])
			if err != nil {
				httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{Error: "invalid token", Kind: string(apperr.KindUnauthorized)})
				return
			}
			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func UserID(r *http.Request) (string, bool) {
	v := r.Context().Value(userIDKey)
	if v == nil {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

// RejectBlocked stops blocked accounts from reaching trading endpoints.
func RejectBlocked(store accounts.Store, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := UserID(r)
			if !ok {
				httputil.WriteError(w, log, apperr.Unauthorized("unauthorized"))
				return
			}
			acc, err := store.FindByID(r.Context(), userID)
			if err != nil {
				httputil.WriteError(w, log, err)
				return
			}
			if acc.IsBlocked {
				httputil.WriteError(w, log, apperr.Forbidden("account is blocked"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// withUser adapts a handler that takes the authenticated account id.
func withUser(log *zap.Logger, fn func(w http.ResponseWriter, r *http.Request, userID string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := UserID(r)
		if !ok {
			httputil.WriteError(w, log, apperr.Unauthorized("unauthorized"))
			return
		}
		fn(w, r, userID)
	}
}
