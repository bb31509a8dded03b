package health

import (
	"context"
	"net/http"
	"time"

	"papertrade/internal/httputil"

	"go.uber.org/zap"
)

const pingTimeout = time.Second

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	db        Pinger
	startedAt time.Time
	now       func() time.Time
	log       *zap.Logger
}

func NewHandler(db Pinger, startedAt time.Time, log *zap.Logger) *Handler {
	start := startedAt.UTC()
	if start.IsZero() {
		start = time.Now().UTC()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{db: db, startedAt: start, now: time.Now, log: log}
}

type liveResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	UptimeSec int64  `json:"uptime_sec"`
}

type readyResponse struct {
	Status    string   `json:"status"`
	Timestamp string   `json:"timestamp"`
	UptimeSec int64    `json:"uptime_sec"`
	Database  dbStatus `json:"database"`
}

type dbStatus struct {
	Reachable bool   `json:"reachable"`
	PingMs    int64  `json:"ping_ms"`
	Error     string `json:"error,omitempty"`
}

func (h *Handler) uptime(now time.Time) int64 {
	d := now.Sub(h.startedAt)
	if d < 0 {
		return 0
	}
	return int64(d.Seconds())
}

func (h *Handler) checkDB(ctx context.Context) dbStatus {
	if h.db == nil {
		return dbStatus{Error: "database is not configured"}
	}
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	err := h.db.Ping(ctx)
	st := dbStatus{PingMs: time.Since(start).Milliseconds()}
	if err != nil {
		h.log.Warn("database ping failed", zap.Error(err))
		st.Error = "database unreachable"
		return st
	}
	st.Reachable = true
	return st
}

// Live reports that the process is serving. It does not touch the database.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	now := h.now().UTC()
	httputil.WriteJSON(w, http.StatusOK, liveResponse{
		Status:    "ok",
		Timestamp: now.Format(time.RFC3339),
		UptimeSec: h.uptime(now),
	})
}

// Ready answers 503 while the database cannot be reached.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	now := h.now().UTC()
	db := h.checkDB(r.Context())
	status, code := "ok", http.StatusOK
	if !db.Reachable {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	httputil.WriteJSON(w, code, readyResponse{
		Status:    status,
		Timestamp: now.Format(time.RFC3339),
		UptimeSec: h.uptime(now),
		Database:  db,
	})
}
