package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"certo/internal/audit/models"
	"certo/internal/audit/progress"
	"certo/internal/transport/http/shared"
	id "certo/pkg/domain"
	dErrors "certo/pkg/domain-errors"
	"certo/pkg/requestcontext"
)

// Service defines the audit operations the handler delegates to.
type Service interface {
	Schedule(ctx context.Context, tenantID id.TenantID, req *models.ScheduleAuditRequest) (*models.Audit, error)
	Get(ctx context.Context, tenantID id.TenantID, auditID id.AuditID) (*models.Audit, progress.Report, error)
	List(ctx context.Context, tenantID id.TenantID) ([]*models.Audit, error)
	Patch(ctx context.Context, tenantID id.TenantID, auditID id.AuditID, req *models.PatchAuditRequest) (*models.Audit, error)
	ReplaceResponses(ctx context.Context, tenantID id.TenantID, auditID id.AuditID, req *models.ReplaceResponsesRequest) (*models.Audit, progress.Report, error)
}

// Handler wires audit endpoints onto the authenticated router.
type Handler struct {
	audits Service
	logger *slog.Logger
}

func New(audits Service, logger *slog.Logger) *Handler {
	return &Handler{audits: audits, logger: logger}
}

// Register mounts the audit routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/audits", h.handleSchedule)
	r.Get("/audits", h.handleList)
	r.Get("/audits/{auditID}", h.handleGet)
	r.Patch("/audits/{auditID}", h.handlePatch)
	r.Put("/audits/{auditID}/responses", h.handleReplaceResponses)
	r.Get("/audits/{auditID}/progress", h.handleProgress)
}

// auditResponse pairs the aggregate with its derived progress so clients
// never compute completion themselves.
type auditResponse struct {
	*models.Audit
	Progress progress.Report `json:"progress"`
}

func (h *Handler) handleSchedule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req models.ScheduleAuditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	audit, err := h.audits.Schedule(ctx, requestcontext.TenantID(ctx), &req)
	if err != nil {
		h.logFailure(ctx, "schedule audit", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, auditResponse{Audit: audit, Progress: progress.Evaluate(audit.Responses)})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	audits, err := h.audits.List(ctx, requestcontext.TenantID(ctx))
	if err != nil {
		h.logFailure(ctx, "list audits", err)
		shared.WriteError(w, err)
		return
	}
	out := make([]auditResponse, 0, len(audits))
	for _, a := range audits {
		out = append(out, auditResponse{Audit: a, Progress: progress.Evaluate(a.Responses)})
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"audits": out})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	auditID, err := id.ParseAuditID(chi.URLParam(r, "auditID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	audit, report, err := h.audits.Get(ctx, requestcontext.TenantID(ctx), auditID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, auditResponse{Audit: audit, Progress: report})
}

func (h *Handler) handlePatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	auditID, err := id.ParseAuditID(chi.URLParam(r, "auditID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req models.PatchAuditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	audit, err := h.audits.Patch(ctx, requestcontext.TenantID(ctx), auditID, &req)
	if err != nil {
		h.logFailure(ctx, "patch audit", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, auditResponse{Audit: audit, Progress: progress.Evaluate(audit.Responses)})
}

func (h *Handler) handleReplaceResponses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	auditID, err := id.ParseAuditID(chi.URLParam(r, "auditID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req models.ReplaceResponsesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	audit, report, err := h.audits.ReplaceResponses(ctx, requestcontext.TenantID(ctx), auditID, &req)
	if err != nil {
		h.logFailure(ctx, "replace responses", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, auditResponse{Audit: audit, Progress: report})
}

func (h *Handler) handleProgress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	auditID, err := id.ParseAuditID(chi.URLParam(r, "auditID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	_, report, err := h.audits.Get(ctx, requestcontext.TenantID(ctx), auditID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, report)
}

func (h *Handler) logFailure(ctx context.Context, op string, err error) {
	h.logger.WarnContext(ctx, op+" failed",
		"request_id", requestcontext.RequestID(ctx),
		"error", err.Error(),
	)
}
