// Package chi exposes the translation service over HTTP.
package chi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	chirouter "github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/doclayer/querymap/internal/domain"
	"github.com/doclayer/querymap/internal/metrics"
	translateuc "github.com/doclayer/querymap/internal/usecase/translate"
)

const maxBodyBytes = 1 << 20

// Error response codes.
const (
	codeBadRequest        = "bad_request"
	codeBadDocument       = "bad_document"
	codeMalformedOperator = "malformed_operator"
	codeInvalidPath       = "invalid_path"
	codeConversionFailed  = "conversion_failed"
	codeInvalidSchema     = "invalid_schema"
	codeUnknownSchema     = "unknown_schema"
	codeUnauthorized      = "unauthorized"
	codeInternalError     = "internal_error"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Path    string `json:"path,omitempty"`
}

type schemasResponse struct {
	Schemas []string `json:"schemas"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server routes translation requests to the usecase layer.
type Server struct {
	translate     *translateuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(translate *translateuc.Service, log *zap.Logger) *Server {
	s := &Server{translate: translate, logger: log}
	s.errorHandlers = []errorHandler{
		invalidPathHandler,
		sentinelHandler(domain.ErrUnknownSchema, http.StatusNotFound, codeUnknownSchema),
		sentinelHandler(domain.ErrMalformedOperator, http.StatusBadRequest, codeMalformedOperator),
		sentinelHandler(domain.ErrBadDocument, http.StatusBadRequest, codeBadDocument),
		sentinelHandler(domain.ErrConversion, http.StatusBadRequest, codeConversionFailed),
		sentinelHandler(domain.ErrInvalidSchema, http.StatusBadRequest, codeInvalidSchema),
	}
	return s
}

// Router builds the chi router with middleware and all routes mounted.
func (s *Server) Router(apiKeys []string) http.Handler {
	r := chirouter.NewRouter()
	r.Use(metrics.Middleware())
	r.Use(BearerAuthMiddleware(apiKeys))

	r.Get("/health", s.Health)
	r.Get("/metrics", s.Metrics)
	r.Route("/v1", func(r chirouter.Router) {
		r.Get("/schemas", s.ListSchemas)
		r.Post("/schemas/{schema}/translate/{kind}", s.Translate)
	})
	return r
}

// Translate handles POST /v1/schemas/{schema}/translate/{kind}.
func (s *Server) Translate(w http.ResponseWriter, r *http.Request) {
	schema := chirouter.URLParam(r, "schema")

	kind, ok := translateuc.ParseKind(chirouter.URLParam(r, "kind"))
	if !ok {
		writeError(w, http.StatusNotFound, codeBadRequest,
			"translation kind must be filter, sort or projection")
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "read request body: "+err.Error())
		return
	}
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	out, err := s.translate.Translate(r.Context(), schema, kind, payload)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

// ListSchemas handles GET /v1/schemas.
func (s *Server) ListSchemas(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, schemasResponse{Schemas: s.translate.Schemas()})
}

// Health handles GET /health.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrUnknownSchema,
		domain.ErrMalformedOperator,
		domain.ErrBadDocument,
		domain.ErrConversion,
		domain.ErrInvalidSchema,
		domain.ErrInvalidPath,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// invalidPathHandler handles ErrInvalidPath and reports the offending path.
func invalidPathHandler(w http.ResponseWriter, err error, msg string) bool {
	if !errors.Is(err, domain.ErrInvalidPath) {
		return false
	}
	var ipe *domain.InvalidPathError
	if errors.As(err, &ipe) {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Code:    codeInvalidPath,
			Message: msg,
			Path:    ipe.Path,
		})
		return true
	}
	writeError(w, http.StatusBadRequest, codeInvalidPath, msg)
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
