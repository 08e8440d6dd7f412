// Package handler exposes the automation monitoring endpoints.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"pgfnsync/internal/automation/engine"
	"pgfnsync/internal/automation/stats"
	"pgfnsync/internal/platform/metrics"
	"pgfnsync/pkg/platform/httputil"
	"pgfnsync/pkg/requestcontext"
)

// Runner is the engine surface the monitor reads and triggers.
type Runner interface {
	Running() bool
	ExecutionID() string
	LastSummary() (stats.Summary, bool)
	Snapshot() stats.Summary
	RunOnce(ctx context.Context) (stats.Summary, error)
	// Trigger wakes a continuous loop; false when none is running.
	Trigger() bool
}

// Info is static context echoed by /health and /status.
type Info struct {
	Service  string
	Version  string
	Pipeline int
	Stages   []string
}

type Handler struct {
	runner  Runner
	info    Info
	logger  *slog.Logger
	started time.Time
}

type Option func(*Handler)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

func New(runner Runner, info Info, opts ...Option) (*Handler, error) {
	if runner == nil {
		return nil, errors.New("runner is required")
	}
	h := &Handler{
		runner:  runner,
		info:    info,
		logger:  slog.Default(),
		started: time.Now(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h, nil
}

// Register mounts the monitoring routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/health", h.handleHealth)
	r.Get("/status", h.handleStatus)
	r.Post("/run", h.handleRun)
	r.Handle("/metrics", metrics.Handler())
}

type healthResponse struct {
	Status        string    `json:"status"`
	Service       string    `json:"service"`
	Version       string    `json:"version"`
	Timestamp     time.Time `json:"timestamp"`
	UptimeSeconds int64     `json:"uptime_seconds"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	now := requestcontext.Now(r.Context())
	httputil.WriteJSON(w, http.StatusOK, healthResponse{
		Status:        "ok",
		Service:       h.info.Service,
		Version:       h.info.Version,
		Timestamp:     now,
		UptimeSeconds: int64(now.Sub(h.started).Seconds()),
	})
}

type statusConfig struct {
	Pipeline int      `json:"pipeline"`
	Stages   []string `json:"stages"`
}

type statusResponse struct {
	Running     bool           `json:"running"`
	ExecutionID string         `json:"execution_id,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
	Config      statusConfig   `json:"config"`
	Current     *stats.Summary `json:"current,omitempty"`
	LastSummary *stats.Summary `json:"last_summary,omitempty"`
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Running:     h.runner.Running(),
		ExecutionID: h.runner.ExecutionID(),
		Timestamp:   requestcontext.Now(r.Context()),
		Config: statusConfig{
			Pipeline: h.info.Pipeline,
			Stages:   h.info.Stages,
		},
	}
	if resp.Running {
		current := h.runner.Snapshot()
		resp.Current = &current
	}
	if last, ok := h.runner.LastSummary(); ok {
		resp.LastSummary = &last
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

type runResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message,omitempty"`
	Error   string         `json:"error,omitempty"`
	Summary *stats.Summary `json:"summary,omitempty"`
}

// handleRun wakes the continuous loop when one owns the engine (202), and
// otherwise runs one cycle synchronously. The cycle outlives a client disconnect.
func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	h.logger.InfoContext(ctx, "manual run requested",
		"request_id", requestcontext.RequestID(ctx),
		"client_ip", requestcontext.ClientIP(ctx),
	)

	if h.runner.Trigger() {
		h.logger.InfoContext(ctx, "continuous loop triggered")
		httputil.WriteJSON(w, http.StatusAccepted, runResponse{
			Success: true,
			Message: "next cycle triggered",
		})
		return
	}

	summary, err := h.runner.RunOnce(context.WithoutCancel(ctx))
	switch {
	case errors.Is(err, engine.ErrAlreadyRunning):
		httputil.WriteJSON(w, http.StatusConflict, runResponse{Error: err.Error()})
		return
	case errors.Is(err, engine.ErrDependencyUnavailable):
		h.logger.ErrorContext(ctx, "manual run failed", "error", err)
		httputil.WriteJSON(w, http.StatusServiceUnavailable, runResponse{Error: err.Error()})
		return
	case err != nil:
		h.logger.ErrorContext(ctx, "manual run failed", "error", err)
		httputil.WriteJSON(w, http.StatusInternalServerError, runResponse{Error: err.Error(), Summary: &summary})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, runResponse{
		Success: true,
		Message: "automation run completed",
		Summary: &summary,
	})
}
