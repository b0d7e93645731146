package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/signquest-backend/internal/response"
)

const healthTimeout = 2 * time.Second

// Pinger is a backing store that can report liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Gauge reports one current count.
type Gauge func(ctx context.Context) (int64, error)

// SystemHandler reports service health and a few runtime figures.
type SystemHandler struct {
	postgres  Pinger
	redis     Pinger
	queueLen  Gauge
	roomCount Gauge
	startTime time.Time
	log       zerolog.Logger
}

func NewSystemHandler(postgres, redis Pinger, queueLen, roomCount Gauge, log zerolog.Logger) *SystemHandler {
	return &SystemHandler{
		postgres:  postgres,
		redis:     redis,
		queueLen:  queueLen,
		roomCount: roomCount,
		startTime: time.Now(),
		log:       log.With().Str("component", "system_handler").Logger(),
	}
}

type healthReport struct {
	Status       string `json:"status"`
	Postgres     string `json:"postgres"`
	Redis        string `json:"redis"`
	Uptime       string `json:"uptime"`
	Goroutines   int    `json:"goroutines"`
	HeapAlloc    uint64 `json:"heap_alloc"`
	GoVersion    string `json:"go_version"`
	QueueHistory int64  `json:"queue_session_history"`
	ActiveRooms  int64  `json:"active_rooms"`
}

// Health godoc
// GET /health
// Reports 200 when both stores answer, 503 otherwise.
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	r := healthReport{
		Status:     "ok",
		Postgres:   h.check(ctx, "postgres", h.postgres),
		Redis:      h.check(ctx, "redis", h.redis),
		Uptime:     time.Since(h.startTime).Round(time.Second).String(),
		Goroutines: runtime.NumGoroutine(),
		HeapAlloc:  ms.HeapAlloc,
		GoVersion:  runtime.Version(),
	}

	status := http.StatusOK
	if r.Postgres == "down" || r.Redis == "down" {
		r.Status = "degraded"
		status = http.StatusServiceUnavailable
	} else {
		r.QueueHistory = h.gauge(ctx, h.queueLen)
		r.ActiveRooms = h.gauge(ctx, h.roomCount)
	}

	response.Success(c, status, r)
}

func (h *SystemHandler) check(ctx context.Context, name string, p Pinger) string {
	if p == nil {
		return "disabled"
	}
	if err := p.Ping(ctx); err != nil {
		h.log.Warn().Err(err).Str("store", name).Msg("Health check failed")
		return "down"
	}
	return "ok"
}

func (h *SystemHandler) gauge(ctx context.Context, g Gauge) int64 {
	if g == nil {
		return 0
	}
	n, err := g(ctx)
	if err != nil {
		return -1
	}
	return n
}
