package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/opensource-finance/harrier/internal/alerts"
	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/repository"
	"github.com/opensource-finance/harrier/internal/rules"
	"github.com/opensource-finance/harrier/internal/triage"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	service *alerts.Service
	engine  *rules.Engine
	version string
}

// NewHandler creates a new API handler.
func NewHandler(service *alerts.Service, engine *rules.Engine, version string) *Handler {
	return &Handler{
		service: service,
		engine:  engine,
		version: version,
	}
}

// IngestResponse is the response for POST /transactions.
type IngestResponse struct {
	TransactionID string        `json:"transactionId"`
	Alert         *domain.Alert `json:"alert,omitempty"`
	Metadata      struct {
		TraceID string `json:"traceId"`
		TotalMs int64  `json:"totalMs"`
		Version string `json:"version"`
	} `json:"metadata"`
}

// IngestTransaction handles POST /transactions.
func (h *Handler) IngestTransaction(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var req domain.TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	tx, alert, err := h.service.IngestTransaction(ctx, tenantID, &req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := IngestResponse{
		TransactionID: tx.ID,
		Alert:         alert,
	}
	resp.Metadata.TraceID = GetTraceID(ctx)
	resp.Metadata.TotalMs = time.Since(start).Milliseconds()
	resp.Metadata.Version = h.version

	writeJSON(w, http.StatusCreated, resp)
}

// GetTransaction handles GET /transactions/{id}.
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	txID := chi.URLParam(r, "id")

	tx, err := h.service.GetTransaction(ctx, tenantID, txID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tx)
}

// ListAlerts handles GET /alerts with filtering and pagination.
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	filter, page, err := parseListQuery(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	result, err := h.service.ListAlerts(ctx, tenantID, filter, page)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// GetAlert handles GET /alerts/{id}.
func (h *Handler) GetAlert(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	alertID := chi.URLParam(r, "id")

	detail, err := h.service.GetAlert(ctx, tenantID, alertID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, detail)
}

// UpdateAlert handles PATCH /alerts/{id}.
func (h *Handler) UpdateAlert(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	alertID := chi.URLParam(r, "id")

	var update domain.AlertUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	alert, err := h.service.UpdateAlert(ctx, tenantID, alertID, update)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, alert)
}

// BulkUpdateRequest is the request body for POST /alerts/bulk.
type BulkUpdateRequest struct {
	AlertIDs []string           `json:"alertIds"`
	Update   domain.AlertUpdate `json:"update"`
}

// BulkUpdateAlerts handles POST /alerts/bulk.
func (h *Handler) BulkUpdateAlerts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var req BulkUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	result, err := h.service.BulkUpdate(ctx, tenantID, req.AlertIDs, req.Update)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// AlertStats handles GET /alerts/stats.
func (h *Handler) AlertStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	stats, err := h.service.Stats(ctx, tenantID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// ListRules handles GET /rules: the detection rules loaded in the engine.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	loaded := h.engine.LoadedRules()
	writeJSON(w, http.StatusOK, map[string]any{
		"rules": loaded,
		"count": len(loaded),
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	if err := h.service.Ping(r.Context()); err != nil {
		status = "degraded"
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// parseListQuery builds the alert filter and page request from query
// parameters. Multi-value filters accept comma-separated values.
func parseListQuery(r *http.Request) (domain.AlertFilter, domain.PageRequest, error) {
	q := r.URL.Query()
	var filter domain.AlertFilter
	var page domain.PageRequest

	for _, s := range splitParam(q.Get("status")) {
		status := domain.AlertStatus(s)
		if !status.Valid() {
			return filter, page, errors.New("unknown status: " + s)
		}
		filter.Status = append(filter.Status, status)
	}
	for _, s := range splitParam(q.Get("priority")) {
		priority := domain.Priority(s)
		if !priority.Valid() {
			return filter, page, errors.New("unknown priority: " + s)
		}
		filter.Priority = append(filter.Priority, priority)
	}
	for _, s := range splitParam(q.Get("riskBand")) {
		band := domain.RiskBand(s)
		if !band.Valid() {
			return filter, page, errors.New("unknown risk band: " + s)
		}
		filter.RiskBand = append(filter.RiskBand, band)
	}
	for _, s := range splitParam(q.Get("txType")) {
		txType := domain.TransactionType(s)
		if !txType.Valid() {
			return filter, page, errors.New("unknown transaction type: " + s)
		}
		filter.TxTypes = append(filter.TxTypes, txType)
	}

	filter.AssignedTo = q.Get("assignedTo")

	var err error
	if filter.MinScore, err = parseFloatParam(q.Get("minScore")); err != nil {
		return filter, page, errors.New("invalid minScore")
	}
	if filter.MaxScore, err = parseFloatParam(q.Get("maxScore")); err != nil {
		return filter, page, errors.New("invalid maxScore")
	}
	if filter.MinAmount, err = parseFloatParam(q.Get("minAmount")); err != nil {
		return filter, page, errors.New("invalid minAmount")
	}
	if filter.MaxAmount, err = parseFloatParam(q.Get("maxAmount")); err != nil {
		return filter, page, errors.New("invalid maxAmount")
	}
	if filter.CreatedAfter, err = parseTimeParam(q.Get("createdAfter")); err != nil {
		return filter, page, errors.New("invalid createdAfter, want RFC3339")
	}
	if filter.CreatedBefore, err = parseTimeParam(q.Get("createdBefore")); err != nil {
		return filter, page, errors.New("invalid createdBefore, want RFC3339")
	}

	if v := q.Get("page"); v != "" {
		page.Page, err = strconv.Atoi(v)
		if err != nil || page.Page < 1 {
			return filter, page, errors.New("invalid page")
		}
	}
	if v := q.Get("pageSize"); v != "" {
		page.PageSize, err = strconv.Atoi(v)
		if err != nil || page.PageSize < 1 {
			return filter, page, errors.New("invalid pageSize")
		}
	}

	return filter, page, nil
}

func splitParam(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseFloatParam(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func parseTimeParam(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// writeError maps service errors to HTTP status codes.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, triage.ErrValidation), errors.Is(err, repository.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, triage.ErrInvalidTransition):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, repository.ErrVersionConflict):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "alert was modified concurrently, retry"})
	case errors.Is(err, repository.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	default:
		slog.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
