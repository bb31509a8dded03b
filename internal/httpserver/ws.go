package httpserver

import (
	"context"
	"net/http"
	"strings"
	"time"

	"papertrade/internal/accounts"
	"papertrade/internal/events"
	"papertrade/internal/types"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const presenceTimeout = 5 * time.Second

// WSHandler streams an account's events and tracks its online presence: the
// account is online while at least one socket is connected.
type WSHandler struct {
	bus      *events.Bus
	auth     TokenParser
	accounts *accounts.Service
	log      *zap.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(bus *events.Bus, auth TokenParser, accountSvc *accounts.Service, origin string, log *zap.Logger) *WSHandler {
	return &WSHandler{
		bus:      bus,
		auth:     auth,
		accounts: accountSvc,
		log:      log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return allowOrigin(r, origin) },
		},
	}
}

func allowOrigin(r *http.Request, origin string) bool {
	if origin == "*" {
		return true
	}
	reqOrigin := r.Header.Get("Origin")
	if reqOrigin == "" {
		return true
	}
	return strings.EqualFold(reqOrigin, origin)
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Browsers cannot set headers on a websocket handshake.
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}
	userID, err := h.auth.ParseToken(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sub := h.bus.Subscribe(userID)
	h.setPresence(userID, true)
	defer func() {
		h.bus.Unsubscribe(userID, sub)
		if h.bus.Subscribers(userID) == 0 {
			h.setPresence(userID, false)
		}
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	for {
		select {
		case evt, ok := <-sub:
			if !ok {
				return
			}
			if err := conn.WriteJSON(evt); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (h *WSHandler) setPresence(userID string, online bool) {
	ctx, cancel := context.WithTimeout(context.Background(), presenceTimeout)
	defer cancel()
	if _, err := h.accounts.SetOnline(ctx, userID, online); err != nil {
		h.log.Warn("presence update failed", zap.String("account_id", userID), zap.Bool("online", online), zap.Error(err))
		return
	}
	h.bus.Publish(userID, events.Event{Type: types.EventPresence, Data: map[string]bool{"is_online": online}})
}
