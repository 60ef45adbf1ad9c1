package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"certo/internal/certification/models"
	"certo/internal/certification/service"
	"certo/internal/certification/surveillance"
	"certo/internal/transport/http/shared"
	id "certo/pkg/domain"
	dErrors "certo/pkg/domain-errors"
	"certo/pkg/requestcontext"
)

// Service defines the certification operations the handler delegates to.
type Service interface {
	Reconcile(ctx context.Context, tenantID id.TenantID, auditID id.AuditID) (*models.Certification, error)
	Get(ctx context.Context, tenantID id.TenantID, certID id.CertificationID) (*models.Certification, error)
	List(ctx context.Context, tenantID id.TenantID) ([]*models.Certification, error)
	Issue(ctx context.Context, tenantID id.TenantID, certID id.CertificationID, req *models.IssueRequest) (*models.Certification, surveillance.Schedule, error)
	Revoke(ctx context.Context, tenantID id.TenantID, certID id.CertificationID, req *models.RevokeRequest) (*models.Certification, error)
	Suspend(ctx context.Context, tenantID id.TenantID, certID id.CertificationID, reason string) (*models.Certification, error)
	Reinstate(ctx context.Context, tenantID id.TenantID, certID id.CertificationID, reason string) (*models.Certification, error)
	SaveTemplateMetadata(ctx context.Context, tenantID id.TenantID, certID id.CertificationID, req *models.TemplateMetadataRequest) (*service.SaveTemplateMetadataResult, error)
	UpdateTemplate(ctx context.Context, tenantID id.TenantID, certID id.CertificationID, req *models.UpdateTemplateRequest) error
	GenerateDocument(ctx context.Context, tenantID id.TenantID, certID id.CertificationID, req *models.GenerateRequest) (string, error)
	Surveillance(ctx context.Context, tenantID id.TenantID, certID id.CertificationID) (surveillance.Schedule, error)
	Stats(ctx context.Context, tenantID id.TenantID) (surveillance.Stats, error)
}

// Handler wires certification endpoints onto the authenticated router.
type Handler struct {
	certs  Service
	logger *slog.Logger
}

func New(certs Service, logger *slog.Logger) *Handler {
	return &Handler{certs: certs, logger: logger}
}

// Register mounts the certification routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/audits/{auditID}/certification", h.handleReconcile)
	r.Post("/certifications", h.handleCreate)
	r.Get("/certifications", h.handleList)
	r.Get("/certifications/stats", h.handleStats)
	r.Get("/certifications/{certID}", h.handleGet)
	r.Patch("/certifications/{certID}", h.handleSaveMetadata)
	r.Post("/certifications/{certID}/issue", h.handleIssue)
	r.Post("/certifications/{certID}/revoke", h.handleRevoke)
	r.Post("/certifications/{certID}/suspend", h.handleSuspend)
	r.Post("/certifications/{certID}/reinstate", h.handleReinstate)
	r.Get("/certifications/{certID}/surveillance", h.handleSurveillance)
	r.Post("/certifications/{certID}/update_template", h.handleUpdateTemplate)
	r.Post("/certifications/{certID}/generate", h.handleGenerate)
}

// certResponse decorates the record with its read-time derived status.
type certResponse struct {
	*models.Certification
	EffectiveStatus models.CertStatus      `json:"effective_status"`
	Surveillance    *surveillance.Schedule `json:"surveillance,omitempty"`
}

func (h *Handler) respond(ctx context.Context, w http.ResponseWriter, status int, cert *models.Certification, sched *surveillance.Schedule) {
	shared.WriteJSON(w, status, certResponse{
		Certification:   cert,
		EffectiveStatus: cert.EffectiveStatus(requestcontext.Now(ctx)),
		Surveillance:    sched,
	})
}

func certIDFrom(r *http.Request) (id.CertificationID, error) {
	return id.ParseCertificationID(chi.URLParam(r, "certID"))
}

func (h *Handler) handleReconcile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	auditID, err := id.ParseAuditID(chi.URLParam(r, "auditID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	cert, err := h.certs.Reconcile(ctx, requestcontext.TenantID(ctx), auditID)
	if err != nil {
		h.logFailure(ctx, "reconcile certification", err)
		shared.WriteError(w, err)
		return
	}
	h.respond(ctx, w, http.StatusOK, cert, nil)
}

// handleCreate creates the certification record for an audit with derived
// defaults. Same find-or-create semantics as the audit-side reconcile route,
// addressed by audit id in the body instead of the path.
func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req struct {
		AuditID string `json:"audit_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	auditID, err := id.ParseAuditID(req.AuditID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	cert, err := h.certs.Reconcile(ctx, requestcontext.TenantID(ctx), auditID)
	if err != nil {
		h.logFailure(ctx, "create certification", err)
		shared.WriteError(w, err)
		return
	}
	h.respond(ctx, w, http.StatusCreated, cert, nil)
}

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	certs, err := h.certs.List(ctx, requestcontext.TenantID(ctx))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	page, pageSize := pageParams(r)
	total := len(certs)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	now := requestcontext.Now(ctx)
	out := make([]certResponse, 0, end-start)
	for _, cert := range certs[start:end] {
		out = append(out, certResponse{Certification: cert, EffectiveStatus: cert.EffectiveStatus(now)})
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"certifications": out,
		"page":           page,
		"page_size":      pageSize,
		"total":          total,
	})
}

func pageParams(r *http.Request) (page, pageSize int) {
	page, pageSize = 1, defaultPageSize
	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && v > 0 {
		page = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("page_size")); err == nil && v > 0 {
		pageSize = v
		if pageSize > maxPageSize {
			pageSize = maxPageSize
		}
	}
	return page, pageSize
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats, err := h.certs.Stats(ctx, requestcontext.TenantID(ctx))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	certID, err := certIDFrom(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	cert, err := h.certs.Get(ctx, requestcontext.TenantID(ctx), certID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	sched, err := h.certs.Surveillance(ctx, requestcontext.TenantID(ctx), certID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	h.respond(ctx, w, http.StatusOK, cert, &sched)
}

func (h *Handler) handleSaveMetadata(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	certID, err := certIDFrom(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req models.TemplateMetadataRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	result, err := h.certs.SaveTemplateMetadata(ctx, requestcontext.TenantID(ctx), certID, &req)
	if err != nil {
		h.logFailure(ctx, "save template metadata", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	certID, err := certIDFrom(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req models.IssueRequest
	if err := decodeOptionalBody(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	cert, sched, err := h.certs.Issue(ctx, requestcontext.TenantID(ctx), certID, &req)
	if err != nil {
		h.logFailure(ctx, "issue certification", err)
		shared.WriteError(w, err)
		return
	}
	h.respond(ctx, w, http.StatusOK, cert, &sched)
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	certID, err := certIDFrom(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req models.RevokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	cert, err := h.certs.Revoke(ctx, requestcontext.TenantID(ctx), certID, &req)
	if err != nil {
		h.logFailure(ctx, "revoke certification", err)
		shared.WriteError(w, err)
		return
	}
	h.respond(ctx, w, http.StatusOK, cert, nil)
}

type reasonRequest struct {
	Reason string `json:"reason,omitempty"`
}

func (h *Handler) handleSuspend(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.certs.Suspend)
}

func (h *Handler) handleReinstate(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.certs.Reinstate)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, op func(context.Context, id.TenantID, id.CertificationID, string) (*models.Certification, error)) {
	ctx := r.Context()
	certID, err := certIDFrom(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req reasonRequest
	if err := decodeOptionalBody(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	cert, err := op(ctx, requestcontext.TenantID(ctx), certID, req.Reason)
	if err != nil {
		h.logFailure(ctx, "certification transition", err)
		shared.WriteError(w, err)
		return
	}
	h.respond(ctx, w, http.StatusOK, cert, nil)
}

func (h *Handler) handleSurveillance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	certID, err := certIDFrom(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	sched, err := h.certs.Surveillance(ctx, requestcontext.TenantID(ctx), certID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, sched)
}

func (h *Handler) handleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	certID, err := certIDFrom(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req models.UpdateTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if err := h.certs.UpdateTemplate(ctx, requestcontext.TenantID(ctx), certID, &req); err != nil {
		h.logFailure(ctx, "update template", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	certID, err := certIDFrom(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req models.GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	documentURL, err := h.certs.GenerateDocument(ctx, requestcontext.TenantID(ctx), certID, &req)
	if err != nil {
		h.logFailure(ctx, "generate document", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]string{"document_url": documentURL})
}

// decodeOptionalBody tolerates an empty body; several lifecycle actions need
// no parameters.
func decodeOptionalBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return dErrors.New(dErrors.CodeBadRequest, "invalid request body")
}

func (h *Handler) logFailure(ctx context.Context, op string, err error) {
	h.logger.WarnContext(ctx, op+" failed",
		"request_id", requestcontext.RequestID(ctx),
		"error", err.Error(),
	)
}
