package rest

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/italolelis/leechbot/internal/logctx"
	"github.com/italolelis/leechbot/internal/telemetry"
	"github.com/italolelis/leechbot/internal/upload"
)

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status   string `json:"status"`
	Bot      string `json:"bot"`
	Identity string `json:"upload_identity"`
	Uptime   string `json:"uptime"`
}

// OpsHandler serves health and metrics for operators. It never touches jobs.
type OpsHandler struct {
	botName   string
	identity  upload.Identity
	telemetry *telemetry.Telemetry
	startedAt time.Time
}

func NewOpsHandler(botName string, identity upload.Identity, t *telemetry.Telemetry) *OpsHandler {
	return &OpsHandler{
		botName:   botName,
		identity:  identity,
		telemetry: t,
		startedAt: time.Now(),
	}
}

func (h *OpsHandler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(telemetry.RequestID)
	r.Use(h.telemetry.Middleware)

	r.Get("/healthz", h.HandleHealth)
	r.Handle("/metrics", h.telemetry.Handler())

	return r
}

func (h *OpsHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:   "ok",
		Bot:      h.botName,
		Identity: h.identity.String(),
		Uptime:   time.Since(h.startedAt).Round(time.Second).String(),
	}

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logctx.LoggerFromContext(r.Context()).Error("failed to encode health response", "err", err)
	}
}
