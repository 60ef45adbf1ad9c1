package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"certo/internal/tenant/models"
	"certo/internal/transport/http/shared"
	id "certo/pkg/domain"
	dErrors "certo/pkg/domain-errors"
)

// Service defines the tenant operations the admin handler delegates to.
type Service interface {
	CreateTenant(ctx context.Context, name string) (*models.Tenant, error)
	GetTenant(ctx context.Context, tenantID id.TenantID) (*models.TenantDetails, error)
	DeactivateTenant(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error)
	ReactivateTenant(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error)
	IssueKey(ctx context.Context, tenantID id.TenantID, name string) (*models.APIKey, string, error)
	RevokeKey(ctx context.Context, tenantID id.TenantID, keyUUID uuid.UUID) (*models.APIKey, error)
	ListKeys(ctx context.Context, tenantID id.TenantID) ([]*models.APIKey, error)
}

// Handler wires tenant administration endpoints. Mount it behind the admin
// token middleware, never on the tenant-facing router.
type Handler struct {
	tenants Service
	logger  *slog.Logger
}

func New(tenants Service, logger *slog.Logger) *Handler {
	return &Handler{tenants: tenants, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/admin/tenants", h.handleCreateTenant)
	r.Get("/admin/tenants/{tenantID}", h.handleGetTenant)
	r.Post("/admin/tenants/{tenantID}/deactivate", h.handleDeactivate)
	r.Post("/admin/tenants/{tenantID}/reactivate", h.handleReactivate)
	r.Post("/admin/tenants/{tenantID}/keys", h.handleIssueKey)
	r.Get("/admin/tenants/{tenantID}/keys", h.handleListKeys)
	r.Post("/admin/tenants/{tenantID}/keys/{keyID}/revoke", h.handleRevokeKey)
}

func (h *Handler) handleCreateTenant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req CreateTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		shared.WriteError(w, err)
		return
	}
	tenant, err := h.tenants.CreateTenant(ctx, req.Name)
	if err != nil {
		h.logger.WarnContext(ctx, "create tenant failed", "error", err.Error())
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, map[string]any{
		"tenant_id": tenant.ID,
		"name":      tenant.Name,
		"status":    tenant.Status,
	})
}

func (h *Handler) handleGetTenant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID, err := id.ParseTenantID(chi.URLParam(r, "tenantID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	details, err := h.tenants.GetTenant(ctx, tenantID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, details)
}

func (h *Handler) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.tenants.DeactivateTenant)
}

func (h *Handler) handleReactivate(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.tenants.ReactivateTenant)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, op func(context.Context, id.TenantID) (*models.Tenant, error)) {
	ctx := r.Context()
	tenantID, err := id.ParseTenantID(chi.URLParam(r, "tenantID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	tenant, err := op(ctx, tenantID)
	if err != nil {
		h.logger.WarnContext(ctx, "tenant transition failed", "tenant_id", tenantID, "error", err.Error())
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, tenant)
}

func (h *Handler) handleIssueKey(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID, err := id.ParseTenantID(chi.URLParam(r, "tenantID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req IssueKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		shared.WriteError(w, err)
		return
	}
	key, secret, err := h.tenants.IssueKey(ctx, tenantID, req.Name)
	if err != nil {
		h.logger.WarnContext(ctx, "issue api key failed", "tenant_id", tenantID, "error", err.Error())
		shared.WriteError(w, err)
		return
	}
	// The cleartext secret appears in this response and nowhere else.
	shared.WriteJSON(w, http.StatusCreated, map[string]any{
		"id":         key.ID,
		"tenant_id":  key.TenantID,
		"name":       key.Name,
		"key_id":     key.KeyID,
		"secret":     secret,
		"status":     key.Status,
		"created_at": key.CreatedAt,
	})
}

func (h *Handler) handleListKeys(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID, err := id.ParseTenantID(chi.URLParam(r, "tenantID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	keys, err := h.tenants.ListKeys(ctx, tenantID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"keys": keys})
}

func (h *Handler) handleRevokeKey(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID, err := id.ParseTenantID(chi.URLParam(r, "tenantID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	keyUUID, err := uuid.Parse(chi.URLParam(r, "keyID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid api key id"))
		return
	}
	key, err := h.tenants.RevokeKey(ctx, tenantID, keyUUID)
	if err != nil {
		h.logger.WarnContext(ctx, "revoke api key failed", "tenant_id", tenantID, "error", err.Error())
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, key)
}
