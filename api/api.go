// Package api exposes the certificate authority's administrative
// operations over HTTP for remote operator tooling and agent CSR
// submission.
package api

import (
	_ "embed"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-openapi/runtime/middleware"

	"github.com/jmcleod/certhand/ca"
	"github.com/jmcleod/certhand/internal/util"
)

// maxRequestBody bounds CSR and JSON payloads.
const maxRequestBody = 1 << 20

//go:embed openapi.yaml
var openapiSpec []byte

// Server serves the admin API for one authority.
type Server struct {
	authority *ca.CA
	log       *slog.Logger
}

// New creates an API server. A nil logger defaults to slog.Default.
func New(authority *ca.CA, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{authority: authority, log: logger}
}

// Router returns the API route tree, intended to be mounted under a
// version prefix.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(s.logRequests)

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(openapiSpec)
	})

	r.Handle("/docs*", middleware.SwaggerUI(middleware.SwaggerUIOpts{
		SpecURL: "/v1/openapi.yaml",
		Path:    "v1/docs",
	}, nil))

	r.Handle("/redoc*", middleware.Redoc(middleware.RedocOpts{
		SpecURL: "/v1/openapi.yaml",
		Path:    "v1/redoc",
	}, nil))

	r.Get("/status", s.handleStatus)
	r.Get("/ca/certificate", s.handleCACertificate)
	r.Get("/certificates", s.handleCertificates)
	r.Get("/certificates/{host}", s.handlePrint)
	r.Post("/certificates/{host}/sign", s.handleSign)
	r.Delete("/certificates/{host}", s.handleRevoke)
	r.Put("/certificate_requests/{host}", s.handleSubmitRequest)

	return r
}

// logRequests emits one log line per request, tagged with the chi
// request ID and echoing it to the client for correlation.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chimw.GetReqID(r.Context())
		w.Header().Set("X-Request-Id", id)
		s.log.Info("api request", "id", id, "method", r.Method, "path", r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

// ---------------------------------------------------------------------------
// Request/response models
// ---------------------------------------------------------------------------

// StatusResponse describes the authority.
type StatusResponse struct {
	Subject      string `json:"subject"`
	SignedCount  int    `json:"signed_count"`
	WaitingCount int    `json:"waiting_count"`
}

// CertificatesResponse lists the authority's host sets.
type CertificatesResponse struct {
	Signed  []string `json:"signed"`
	Waiting []string `json:"waiting"`
}

// CertificateResponse is one host's certificate rendering.
type CertificateResponse struct {
	Host        string `json:"host"`
	Certificate string `json:"certificate"`
}

// SignRequest carries per-signing options.
type SignRequest struct {
	AllowDNSAltNames bool `json:"allow_dns_alt_names"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	signed, err := s.authority.List(r.Context())
	if err != nil {
		mapError(w, err)
		return
	}
	waiting, err := s.authority.Waiting(r.Context())
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{
		Subject:      s.authority.Subject(),
		SignedCount:  len(signed),
		WaitingCount: len(waiting),
	})
}

func (s *Server) handleCACertificate(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/x-pem-file")
	w.Write(s.authority.CACertificatePEM())
}

func (s *Server) handleCertificates(w http.ResponseWriter, r *http.Request) {
	signed, err := s.authority.List(r.Context())
	if err != nil {
		mapError(w, err)
		return
	}
	waiting, err := s.authority.Waiting(r.Context())
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CertificatesResponse{Signed: signed, Waiting: waiting})
}

func (s *Server) handlePrint(w http.ResponseWriter, r *http.Request) {
	host := util.NormalizeHost(chi.URLParam(r, "host"))
	text, err := s.authority.Print(r.Context(), host)
	if err != nil {
		mapError(w, err)
		return
	}
	if text == "" {
		writeError(w, http.StatusNotFound, "no certificate for "+host)
		return
	}
	writeJSON(w, http.StatusOK, CertificateResponse{Host: host, Certificate: text})
}

func (s *Server) handleSign(w http.ResponseWriter, r *http.Request) {
	host := util.NormalizeHost(chi.URLParam(r, "host"))

	var req SignRequest
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "reading body: "+err.Error())
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	if err := s.authority.Sign(r.Context(), host, req.AllowDNSAltNames); err != nil {
		mapError(w, err)
		return
	}
	s.log.Info("certificate signed", "host", host)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRevoke(w http.ResponseWriter, r *http.Request) {
	host := util.NormalizeHost(chi.URLParam(r, "host"))
	if err := s.authority.Revoke(r.Context(), host); err != nil {
		mapError(w, err)
		return
	}
	s.log.Info("certificate revoked", "host", host)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSubmitRequest(w http.ResponseWriter, r *http.Request) {
	host := util.NormalizeHost(chi.URLParam(r, "host"))
	csrPEM, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "reading body: "+err.Error())
		return
	}
	if err := s.authority.SubmitRequest(r.Context(), host, csrPEM); err != nil {
		mapError(w, err)
		return
	}
	s.log.Info("certificate request submitted", "host", host)
	w.WriteHeader(http.StatusAccepted)
}
