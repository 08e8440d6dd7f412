// Package handler exposes the PGFN lookup API.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"pgfnsync/internal/platform/metrics"
	regmetrics "pgfnsync/internal/registry/metrics"
	"pgfnsync/internal/registry/models"
	"pgfnsync/pkg/domain"
	dErrors "pgfnsync/pkg/domain-errors"
	"pgfnsync/pkg/platform/httputil"
	"pgfnsync/pkg/requestcontext"
)

// Service is the lookup surface the handler drives.
type Service interface {
	Lookup(ctx context.Context, raw string) (*models.LookupResponse, error)
	Raw(ctx context.Context, raw string) (*models.Aggregate, error)
	SyncContact(ctx context.Context, req models.WebhookRequest) (*models.WebhookData, error)
	Health(ctx context.Context) error
}

type Handler struct {
	service Service
	logger  *slog.Logger
	metrics *regmetrics.APIMetrics
	started time.Time
}

type Option func(*Handler)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

func WithMetrics(m *regmetrics.APIMetrics) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

func New(service Service, opts ...Option) (*Handler, error) {
	if service == nil {
		return nil, errors.New("service is required")
	}
	h := &Handler{
		service: service,
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

// Register mounts the lookup routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/api/cnpj/{cnpj}", h.handleLookup)
	r.Get("/test/{cnpj}", h.handleRaw)
	r.Post("/webhook/pgfn", h.handleWebhook)
	r.Get("/health", h.handleHealth)
	r.Handle("/metrics", metrics.Handler())
}

type errorResponse struct {
	Success          bool   `json:"success"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
	TaxpayerID       string `json:"cnpj_provided,omitempty"`
}

// writeError keeps the success:false envelope callers of this API expect.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, endpoint string, err error, taxpayerID string) {
	code := dErrors.CodeInternal
	description := ""
	if de, ok := dErrors.As(err); ok {
		code = de.Code
		description = de.Message
	}
	status := httputil.StatusFor(code)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed",
			"endpoint", endpoint,
			"error", err,
			"request_id", requestcontext.RequestID(r.Context()),
		)
	}
	h.metrics.IncrementRequest(endpoint, strconv.Itoa(status))
	httputil.WriteJSON(w, status, errorResponse{
		Error:            string(code),
		ErrorDescription: description,
		TaxpayerID:       taxpayerID,
	})
}

func (h *Handler) writeOK(w http.ResponseWriter, endpoint string, v any) {
	h.metrics.IncrementRequest(endpoint, strconv.Itoa(http.StatusOK))
	httputil.WriteJSON(w, http.StatusOK, v)
}

func (h *Handler) handleLookup(w http.ResponseWriter, r *http.Request) {
	const endpoint = "lookup"
	raw := chi.URLParam(r, "cnpj")
	resp, err := h.service.Lookup(r.Context(), raw)
	if err != nil {
		h.writeError(w, r, endpoint, err, raw)
		return
	}
	h.writeOK(w, endpoint, resp)
}

func (h *Handler) handleRaw(w http.ResponseWriter, r *http.Request) {
	const endpoint = "test"
	raw := chi.URLParam(r, "cnpj")
	agg, err := h.service.Raw(r.Context(), raw)
	if err != nil {
		h.writeError(w, r, endpoint, err, raw)
		return
	}
	h.writeOK(w, endpoint, models.RawResponse{Success: true, TaxpayerID: raw, Data: agg})
}

func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	const endpoint = "webhook"
	req, ok := httputil.DecodeJSON[models.WebhookRequest](w, r)
	if !ok {
		h.metrics.IncrementRequest(endpoint, strconv.Itoa(http.StatusBadRequest))
		return
	}
	h.logger.InfoContext(r.Context(), "webhook received",
		"taxpayer_id", domain.CleanTaxpayerID(req.TaxpayerID),
		"contact_id", req.ID,
		"client_ip", requestcontext.ClientIP(r.Context()),
	)
	data, err := h.service.SyncContact(r.Context(), *req)
	if err != nil {
		h.writeError(w, r, endpoint, err, req.TaxpayerID)
		return
	}
	h.writeOK(w, endpoint, models.WebhookResponse{
		Success: true,
		Message: "registry data written to crm",
		Data:    data,
	})
}

type healthResponse struct {
	Status        string    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
	UptimeSeconds int64     `json:"uptime_seconds"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	now := requestcontext.Now(r.Context())
	resp := healthResponse{
		Status:        "OK",
		Timestamp:     now,
		UptimeSeconds: int64(now.Sub(h.started).Seconds()),
	}
	if err := h.service.Health(r.Context()); err != nil {
		h.logger.WarnContext(r.Context(), "health check failed", "error", err)
		resp.Status = "DEGRADED"
		httputil.WriteJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
