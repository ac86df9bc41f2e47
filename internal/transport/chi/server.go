package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	gochi "github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/medlens/internal/domain"
	"github.com/kailas-cloud/medlens/internal/domain/analysis"
	domdiag "github.com/kailas-cloud/medlens/internal/domain/diagnosis"
	"github.com/kailas-cloud/medlens/internal/domain/evidence"
	logpkg "github.com/kailas-cloud/medlens/internal/logger"
	diagnosisuc "github.com/kailas-cloud/medlens/internal/usecase/diagnosis"
	healthuc "github.com/kailas-cloud/medlens/internal/usecase/health"
	knowledgeuc "github.com/kailas-cloud/medlens/internal/usecase/knowledge"
	"github.com/kailas-cloud/medlens/internal/version"
)

const (
	// UserHeader carries the caller's user reference.
	UserHeader = "X-User-ID"

	maxImageBytes = 10 << 20
	maxFormBytes  = maxImageBytes + 1<<20
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the medlens HTTP API.
type Server struct {
	diagnoses     *diagnosisuc.Service
	knowledge     *knowledgeuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	diagnoses *diagnosisuc.Service,
	knowledge *knowledgeuc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	s := &Server{
		diagnoses: diagnoses,
		knowledge: knowledge,
		health:    health,
		logger:    logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidInput, http.StatusBadRequest, ErrorCodeInvalidInput),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, ErrorCodeNotFound),
		sentinelHandler(domain.ErrClassifierNotConfigured,
			http.StatusServiceUnavailable, ErrorCodeClassifierDisabled),
		sentinelHandler(domain.ErrClassifierContract, http.StatusBadGateway, ErrorCodeClassifierError),
		sentinelHandler(domain.ErrClassifierUnavailable, http.StatusBadGateway, ErrorCodeClassifierError),
		sentinelHandler(domain.ErrKnowledgeBase, http.StatusInternalServerError, ErrorCodeKnowledgeBase),
	}
	return s
}

// Routes mounts the API on r. /health and /metrics sit at the root, the rest under /api/v1.
func (s *Server) Routes(r gochi.Router) {
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, ErrorCodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrorCodeBadRequest, "method not allowed")
	})
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Route("/api/v1", func(r gochi.Router) {
		r.Post("/diagnoses/analyze", s.Analyze)
		r.Get("/diagnoses", s.ListDiagnoses)
		r.Get("/diagnoses/latest", s.LatestDiagnosis)
		r.Get("/diagnoses/{id}", s.GetDiagnosis)
		r.Get("/knowledge", s.GetKnowledge)
		r.Post("/knowledge/reload", s.ReloadKnowledge)
	})
}

// Analyze handles POST /api/v1/diagnoses/analyze.
func (s *Server) Analyze(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	req, err := analyzeRequestFromHTTP(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrorCodePayloadTooLarge,
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, err.Error())
		return
	}

	report, err := s.diagnoses.Analyze(r.Context(), req)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	if !report.Outcome.OK() {
		status, code := outcomeStatus(report.Outcome.Status())
		s.log(r).Info("analysis rejected",
			zap.String("status", string(report.Outcome.Status())),
			zap.String("reason", report.Outcome.Reason()),
		)
		writeError(w, status, code, report.Outcome.Reason())
		return
	}

	writeJSON(w, http.StatusCreated, AnalyzeResponse{Results: recordsToResponse(report.Records)})
}

// ListDiagnoses handles GET /api/v1/diagnoses.
func (s *Server) ListDiagnoses(w http.ResponseWriter, r *http.Request) {
	var (
		source *string
		limit  *int
	)
	if err := runtime.BindQueryParameter("form", true, false, "source", r.URL.Query(), &source); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "invalid source parameter")
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "limit", r.URL.Query(), &limit); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "invalid limit parameter")
		return
	}

	src, ok := evidence.Parse(derefString(source))
	if !ok {
		writeError(w, http.StatusBadRequest, ErrorCodeInvalidInput, "source must be text or image")
		return
	}

	recs, err := s.diagnoses.History(r.Context(), r.Header.Get(UserHeader), src, derefInt(limit))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, HistoryResponse{Items: recordsToResponse(recs)})
}

// LatestDiagnosis handles GET /api/v1/diagnoses/latest.
func (s *Server) LatestDiagnosis(w http.ResponseWriter, r *http.Request) {
	var source *string
	if err := runtime.BindQueryParameter("form", true, false, "source", r.URL.Query(), &source); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "invalid source parameter")
		return
	}
	src, ok := evidence.Parse(derefString(source))
	if !ok {
		writeError(w, http.StatusBadRequest, ErrorCodeInvalidInput, "source must be text or image")
		return
	}

	rec, err := s.diagnoses.Latest(r.Context(), r.Header.Get(UserHeader), src)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, recordToResponse(&rec))
}

// GetDiagnosis handles GET /api/v1/diagnoses/{id}.
func (s *Server) GetDiagnosis(w http.ResponseWriter, r *http.Request) {
	rec, err := s.diagnoses.Get(r.Context(), r.Header.Get(UserHeader), gochi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, recordToResponse(&rec))
}

// GetKnowledge handles GET /api/v1/knowledge.
func (s *Server) GetKnowledge(w http.ResponseWriter, r *http.Request) {
	sum, err := s.knowledge.Summary()
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summaryToResponse(sum))
}

// ReloadKnowledge handles POST /api/v1/knowledge/reload. A failed reload
// leaves the previous snapshot active.
func (s *Server) ReloadKnowledge(w http.ResponseWriter, r *http.Request) {
	sum, err := s.knowledge.Reload(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summaryToResponse(sum))
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status:  string(report.Status),
		Checks:  checks,
		Version: version.Version,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// analyzeRequestFromHTTP reads either a multipart form (input_data, image)
// or a JSON body ({"symptoms": "..."} or {"symptoms": [...]}). The caller
// bounds r.Body.
func analyzeRequestFromHTTP(r *http.Request) (diagnosisuc.Request, error) {
	req := diagnosisuc.Request{UserID: r.Header.Get(UserHeader)}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxFormBytes); err != nil {
			return req, fmt.Errorf("invalid multipart body: %w", err)
		}
		if v := r.FormValue("input_data"); v != "" {
			req.Symptoms = []string{v}
		}
		img, err := readImage(r)
		if err != nil {
			return req, err
		}
		req.Image = img
		return req, nil
	}

	var body AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return req, fmt.Errorf("invalid request body: %w", err)
	}
	symptoms, err := symptomsFromJSON(body.Symptoms)
	if err != nil {
		return req, err
	}
	req.Symptoms = symptoms
	return req, nil
}

func readImage(r *http.Request) ([]byte, error) {
	f, _, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("invalid image part: %w", err)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(io.LimitReader(f, maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if len(data) > maxImageBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", maxImageBytes)
	}
	return data, nil
}

func symptomsFromJSON(v any) ([]string, error) {
	switch s := v.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{s}, nil
	case []any:
		out := make([]string, 0, len(s))
		for i, item := range s {
			str, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("symptoms[%d] must be a string", i)
			}
			out = append(out, str)
		}
		return out, nil
	default:
		return nil, errors.New("symptoms must be a string or a list of strings")
	}
}

// outcomeStatus maps a non-OK analysis status to its HTTP status and error code.
func outcomeStatus(st analysis.Status) (int, ErrorCode) {
	switch st {
	case analysis.StatusInvalidInput:
		return http.StatusBadRequest, ErrorCodeInvalidInput
	case analysis.StatusNoMatch:
		return http.StatusUnprocessableEntity, ErrorCodeNoMatch
	case analysis.StatusUnrecognizedEvidence:
		return http.StatusUnprocessableEntity, ErrorCodeUnrecognizedEvidence
	case analysis.StatusEmptyResult:
		return http.StatusUnprocessableEntity, ErrorCodeEmptyResult
	default:
		return http.StatusInternalServerError, ErrorCodeInternalError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidInput,
		domain.ErrNotFound,
		domain.ErrClassifierNotConfigured,
		domain.ErrClassifierContract,
		domain.ErrClassifierUnavailable,
		domain.ErrKnowledgeBase,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := s.log(r)
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}

func (s *Server) log(r *http.Request) *zap.Logger {
	return logpkg.FromContextOr(r.Context(), s.logger)
}

func recordsToResponse(recs []domdiag.Record) []DiagnosisResponse {
	out := make([]DiagnosisResponse, len(recs))
	for i := range recs {
		out[i] = recordToResponse(&recs[i])
	}
	return out
}

func recordToResponse(rec *domdiag.Record) DiagnosisResponse {
	precautions := rec.Precautions()
	if precautions == nil {
		precautions = []string{}
	}
	return DiagnosisResponse{
		ID:          rec.ID(),
		Disease:     rec.Disease(),
		Probability: rec.Probability(),
		Description: rec.Description(),
		Precautions: precautions,
		Source:      string(rec.Source()),
		Symptoms:    rec.Symptoms(),
		ImageRef:    rec.ImageRef(),
		CreatedAt:   rec.CreatedAt().UTC(),
	}
}

func summaryToResponse(sum knowledgeuc.Summary) KnowledgeResponse {
	return KnowledgeResponse{
		AllowList: sum.AllowList,
		Diseases:  sum.Diseases,
		Records:   sum.Records,
		Symptoms:  sum.Symptoms,
		LoadedAt:  sum.LoadedAt.UTC(),
	}
}

func derefString(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
