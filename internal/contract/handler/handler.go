package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"certo/internal/contract/models"
	"certo/internal/transport/http/shared"
	id "certo/pkg/domain"
	dErrors "certo/pkg/domain-errors"
	"certo/pkg/requestcontext"
)

// Service defines the contract operations the handler delegates to.
type Service interface {
	Create(ctx context.Context, tenantID id.TenantID, req *models.CreateContractRequest) (*models.Contract, error)
	Get(ctx context.Context, tenantID id.TenantID, contractID id.ContractID) (*models.Contract, error)
	List(ctx context.Context, tenantID id.TenantID) ([]*models.Contract, error)
	Sign(ctx context.Context, tenantID id.TenantID, contractID id.ContractID) (*models.Contract, error)
	Terminate(ctx context.Context, tenantID id.TenantID, contractID id.ContractID) (*models.Contract, error)
}

// Handler wires contract endpoints onto the authenticated router.
type Handler struct {
	contracts Service
	logger    *slog.Logger
}

func New(contracts Service, logger *slog.Logger) *Handler {
	return &Handler{contracts: contracts, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/contracts", h.handleCreate)
	r.Get("/contracts", h.handleList)
	r.Get("/contracts/{contractID}", h.handleGet)
	r.Post("/contracts/{contractID}/sign", h.handleSign)
	r.Post("/contracts/{contractID}/terminate", h.handleTerminate)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req models.CreateContractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	contract, err := h.contracts.Create(ctx, requestcontext.TenantID(ctx), &req)
	if err != nil {
		h.logger.WarnContext(ctx, "create contract failed", "error", err.Error())
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, contract)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	contracts, err := h.contracts.List(ctx, requestcontext.TenantID(ctx))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"contracts": contracts})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	contractID, err := id.ParseContractID(chi.URLParam(r, "contractID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	contract, err := h.contracts.Get(ctx, requestcontext.TenantID(ctx), contractID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, contract)
}

func (h *Handler) handleSign(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.contracts.Sign)
}

func (h *Handler) handleTerminate(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.contracts.Terminate)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, op func(context.Context, id.TenantID, id.ContractID) (*models.Contract, error)) {
	ctx := r.Context()
	contractID, err := id.ParseContractID(chi.URLParam(r, "contractID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	contract, err := op(ctx, requestcontext.TenantID(ctx), contractID)
	if err != nil {
		h.logger.WarnContext(ctx, "contract transition failed", "error", err.Error())
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, contract)
}
