package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	audithandler "certo/internal/audit/handler"
	auditservice "certo/internal/audit/service"
	auditstore "certo/internal/audit/store"
	certhandler "certo/internal/certification/handler"
	certservice "certo/internal/certification/service"
	certstore "certo/internal/certification/store"
	contracthandler "certo/internal/contract/handler"
	contractservice "certo/internal/contract/service"
	contractstore "certo/internal/contract/store"
	"certo/internal/jwtoken"
	tenanthandler "certo/internal/tenant/handler"
	tenantservice "certo/internal/tenant/service"
	apikeystore "certo/internal/tenant/store/apikey"
	tenantstore "certo/internal/tenant/store/tenant"
	id "certo/pkg/domain"
)

const testAdminToken = "router-admin-token"

func newTestRouter(t *testing.T) (http.Handler, *jwtoken.Service) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	tokens := jwtoken.NewService("router-test-key", "certo-auth")

	auditSvc := auditservice.New(auditstore.NewInMemory(), auditservice.WithLogger(logger))
	certSvc := certservice.New(certstore.NewInMemory(), auditstore.NewInMemory(), certservice.WithLogger(logger))
	contractSvc := contractservice.New(contractstore.NewInMemory(), contractservice.WithLogger(logger))
	tenantSvc := tenantservice.New(tenantstore.NewInMemory(), apikeystore.NewInMemory(), tenantservice.WithLogger(logger))

	router := New(Deps{
		Logger:         logger,
		TokenValidator: tokens,
		AdminToken:     testAdminToken,
		Audits:         audithandler.New(auditSvc, logger),
		Certifications: certhandler.New(certSvc, logger),
		Contracts:      contracthandler.New(contractSvc, logger),
		Tenants:        tenanthandler.New(tenantSvc, logger),
	})
	return router, tokens
}

func TestAPIRequiresBearerToken(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/certifications", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPIAcceptsMintedToken(t *testing.T) {
	router, tokens := newTestRouter(t)

	token, err := tokens.Mint(id.OperatorID(uuid.New()), id.TenantID(uuid.New()), "Ada", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/certifications", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Certifications []json.RawMessage `json:"certifications"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Empty(t, resp.Certifications)
}

func TestAdminSurfaceRequiresToken(t *testing.T) {
	router, _ := newTestRouter(t)

	body := bytes.NewBufferString(`{"name":"Acme Certification"}`)
	req := httptest.NewRequest(http.MethodPost, "/admin/tenants", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	body = bytes.NewBufferString(`{"name":"Acme Certification"}`)
	req = httptest.NewRequest(http.MethodPost, "/admin/tenants", body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Admin-Token", testAdminToken)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)
}

func TestHealthz(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthzDegraded(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	tokens := jwtoken.NewService("router-test-key", "certo-auth")
	router := New(Deps{
		Logger:         logger,
		TokenValidator: tokens,
		AdminToken:     testAdminToken,
		Audits:         audithandler.New(auditservice.New(auditstore.NewInMemory()), logger),
		Certifications: certhandler.New(certservice.New(certstore.NewInMemory(), auditstore.NewInMemory()), logger),
		Contracts:      contracthandler.New(contractservice.New(contractstore.NewInMemory()), logger),
		Tenants:        tenanthandler.New(tenantservice.New(tenantstore.NewInMemory(), apikeystore.NewInMemory()), logger),
		HealthCheck:    func() error { return errors.New("db down") },
	})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRejectsNonJSONMutations(t *testing.T) {
	router, tokens := newTestRouter(t)

	token, err := tokens.Mint(id.OperatorID(uuid.New()), id.TenantID(uuid.New()), "Ada", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/audits", bytes.NewBufferString("plain text"))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}
