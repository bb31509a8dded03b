package httpserver

import (
	"net/http"

	"papertrade/internal/accounts"
	"papertrade/internal/admin"
	"papertrade/internal/auth"
	"papertrade/internal/health"
	"papertrade/internal/ledger"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type RouterDeps struct {
	AuthHandler     *auth.Handler
	AccountsHandler *accounts.Handler
	LedgerHandler   *ledger.Handler
	AdminHandler    *admin.Handler
	HealthHandler   *health.Handler
	AuthService     TokenParser
	Store           accounts.Store
	RateLimiter     *RateLimiter
	WSHandler       http.Handler
	Logger          *zap.Logger
}

func NewRouter(d RouterDeps) http.Handler {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	r := chi.NewRouter()

	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				origin = "*"
			}
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	})
	r.Use(SecurityHeaders)
	if d.RateLimiter != nil {
		r.Use(d.RateLimiter.Middleware)
	}

	if d.HealthHandler != nil {
		r.Get("/health", d.HealthHandler.Ready)
		r.Get("/health/live", d.HealthHandler.Live)
	} else {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	}
	r.Route("/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", d.AuthHandler.Login)
			r.Post("/google", d.AuthHandler.Google)
		})
		if d.WSHandler != nil {
			r.Get("/ws", d.WSHandler.ServeHTTP)
		}
		r.Group(func(r chi.Router) {
			r.Use(WithAuth(d.AuthService))

			r.Get("/me", withUser(log, d.AccountsHandler.Me))
			r.Put("/me/online", withUser(log, d.AccountsHandler.Online))
			r.Post("/me/offline", withUser(log, d.AccountsHandler.Offline))
			r.Post("/me/password", withUser(log, d.AccountsHandler.UpdatePassword))
			r.Post("/me/avatar", withUser(log, d.AccountsHandler.UpdateAvatar))
			r.Delete("/me/messages/{id}", withUser(log, func(w http.ResponseWriter, r *http.Request, userID string) {
				d.AccountsHandler.DeleteMessage(w, r, userID, chi.URLParam(r, "id"))
			}))

			r.Route("/trades", func(r chi.Router) {
				r.Use(RejectBlocked(d.Store, log))
				r.Post("/buy", withUser(log, d.LedgerHandler.Buy))
				r.Post("/sell", withUser(log, d.LedgerHandler.Sell))
				r.Get("/", withUser(log, d.LedgerHandler.List))
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(admin.RequireAdmin(d.Store, UserID, log))
				r.Get("/users", d.AdminHandler.ListUsers)
				r.Post("/users", d.AdminHandler.AddUser)
				r.Put("/users/{id}", withTarget(d.AdminHandler.UpdateUser))
				r.Post("/users/{id}/block", withTarget(d.AdminHandler.BlockUser))
				r.Post("/users/{id}/unblock", withTarget(d.AdminHandler.UnblockUser))
				r.Post("/users/{id}/messages", withTarget(d.AdminHandler.SendMessage))
				r.Delete("/users/{id}", withTarget(d.AdminHandler.DeleteUser))
			})
		})
	})
	return r
}

func withTarget(fn func(w http.ResponseWriter, r *http.Request, uid string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fn(w, r, chi.URLParam(r, "id"))
	}
}
