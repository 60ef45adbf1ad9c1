// Package template is the client for the external template rendering
// service, which owns the visual certificate/contract documents and turns
// them into PDFs. Failures are classified by HTTP status class so the
// operator sees an actionable message rather than a raw transport error.
package template

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"certo/internal/certification/models"
	"certo/internal/platform/metrics"
	id "certo/pkg/domain"
	dErrors "certo/pkg/domain-errors"
	"certo/pkg/platform/circuit"
)

// Gateway calls the rendering service. A circuit breaker short-circuits
// calls while the renderer is down so every document request doesn't eat a
// full timeout.
type Gateway struct {
	baseURL string
	client  *http.Client
	breaker *circuit.Breaker
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Gateway)

func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) { g.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gateway) { g.metrics = m }
}

func WithHTTPClient(client *http.Client) Option {
	return func(g *Gateway) { g.client = client }
}

func New(baseURL string, opts ...Option) *Gateway {
	g := &Gateway{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		breaker: circuit.New("template-renderer", circuit.WithFailureThreshold(5), circuit.WithSuccessThreshold(2)),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// UpdateTemplate pushes the visual template elements and data payload for a
// certification's document.
func (g *Gateway) UpdateTemplate(ctx context.Context, certID id.CertificationID, req *models.UpdateTemplateRequest) error {
	_, err := g.post(ctx, fmt.Sprintf("/certifications/%s/update_template/", certID), req)
	return err
}

// Generate renders the named template to a PDF and returns its URL.
func (g *Gateway) Generate(ctx context.Context, certID id.CertificationID, templateType string) (string, error) {
	body, err := g.post(ctx, fmt.Sprintf("/certifications/%s/generate/", certID), map[string]string{
		"template_type": templateType,
	})
	if err != nil {
		return "", err
	}
	var resp struct {
		DocumentURL string `json:"document_url"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "renderer returned an unreadable response")
	}
	if resp.DocumentURL == "" {
		return "", dErrors.New(dErrors.CodeInternal, "renderer returned no document_url")
	}
	return resp.DocumentURL, nil
}

func (g *Gateway) post(ctx context.Context, path string, payload any) ([]byte, error) {
	if g.breaker.IsOpen() {
		g.countError("network")
		return nil, dErrors.New(dErrors.CodeUnavailable, "template renderer is unavailable")
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode renderer payload")
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to build renderer request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		g.countError("network")
		if _, change := g.breaker.RecordFailure(); change.Opened {
			g.logger.WarnContext(ctx, "template renderer circuit opened", "error", err)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "could not reach the template renderer")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		g.countError("network")
		g.breaker.RecordFailure()
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "could not read the renderer response")
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if _, change := g.breaker.RecordSuccess(); change.Closed {
			g.logger.InfoContext(ctx, "template renderer circuit closed")
		}
		return body, nil
	}

	// Only server-side trouble trips the breaker; a 4xx renderer answer is
	// a healthy renderer saying no.
	if resp.StatusCode >= 500 {
		if _, change := g.breaker.RecordFailure(); change.Opened {
			g.logger.WarnContext(ctx, "template renderer circuit opened", "status", resp.StatusCode)
		}
	} else {
		g.breaker.RecordSuccess()
	}
	return nil, g.classify(resp.StatusCode, body)
}

// rendererError is the error envelope the rendering service returns.
type rendererError struct {
	Message string              `json:"message"`
	Detail  string              `json:"detail"`
	Errors  map[string][]string `json:"errors"`
}

func (e rendererError) text() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Detail
}

// classify maps the renderer's HTTP status onto the coded error taxonomy,
// carrying the service's own validation details verbatim when present.
func (g *Gateway) classify(status int, body []byte) error {
	var envelope rendererError
	_ = json.Unmarshal(body, &envelope)

	class, code, fallback := classOf(status)
	g.countError(class)

	message := envelope.text()
	if message == "" {
		message = fmt.Sprintf("%s (renderer returned %d)", fallback, status)
	}
	if len(envelope.Errors) > 0 {
		return dErrors.WithFields(code, message, envelope.Errors)
	}
	return dErrors.New(code, message)
}

func classOf(status int) (class string, code dErrors.Code, fallback string) {
	switch {
	case status == http.StatusUnauthorized:
		return "auth", dErrors.CodeUnauthorized, "renderer rejected our credentials"
	case status == http.StatusForbidden:
		return "permission", dErrors.CodeForbidden, "renderer denied access"
	case status == http.StatusNotFound:
		return "not_found", dErrors.CodeNotFound, "renderer has no such template"
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return "validation", dErrors.CodeValidation, "renderer rejected the payload"
	case status >= 500:
		return "server", dErrors.CodeUnavailable, "renderer failed"
	default:
		return "unknown", dErrors.CodeInternal, "unexpected renderer response"
	}
}

func (g *Gateway) countError(class string) {
	if g.metrics != nil {
		g.metrics.TemplateGatewayErrors.WithLabelValues(class).Inc()
	}
}
