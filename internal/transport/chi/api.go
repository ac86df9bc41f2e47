package chi

import "time"

// ErrorCode is the machine-readable error code of an ErrorResponse.
type ErrorCode string

// Error codes returned by the API.
const (
	ErrorCodeBadRequest           ErrorCode = "bad_request"
	ErrorCodePayloadTooLarge      ErrorCode = "payload_too_large"
	ErrorCodeUnauthorized         ErrorCode = "unauthorized"
	ErrorCodeInvalidInput         ErrorCode = "invalid_input"
	ErrorCodeNoMatch              ErrorCode = "no_match"
	ErrorCodeUnrecognizedEvidence ErrorCode = "unrecognized_evidence"
	ErrorCodeEmptyResult          ErrorCode = "empty_result"
	ErrorCodeNotFound             ErrorCode = "not_found"
	ErrorCodeClassifierError      ErrorCode = "classifier_error"
	ErrorCodeClassifierDisabled   ErrorCode = "classifier_not_configured"
	ErrorCodeKnowledgeBase        ErrorCode = "knowledge_base_error"
	ErrorCodeInternalError        ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// AnalyzeRequest is the JSON form of POST /diagnoses/analyze. Symptoms is
// either a comma-delimited string or a list of strings.
type AnalyzeRequest struct {
	Symptoms any `json:"symptoms"`
}

// DiagnosisResponse is one persisted diagnosis.
type DiagnosisResponse struct {
	ID          string    `json:"id"`
	Disease     string    `json:"disease"`
	Probability float64   `json:"probability"`
	Description string    `json:"description"`
	Precautions []string  `json:"precautions"`
	Source      string    `json:"source"`
	Symptoms    string    `json:"symptoms,omitempty"`
	ImageRef    string    `json:"image_ref,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// AnalyzeResponse lists the records created by one analysis, text first.
type AnalyzeResponse struct {
	Results []DiagnosisResponse `json:"results"`
}

// HistoryResponse lists a user's diagnoses newest first.
type HistoryResponse struct {
	Items []DiagnosisResponse `json:"items"`
}

// KnowledgeResponse describes the active knowledge-base snapshot.
type KnowledgeResponse struct {
	AllowList []string  `json:"allow_list"`
	Diseases  []string  `json:"diseases"`
	Records   int       `json:"records"`
	Symptoms  int       `json:"symptoms"`
	LoadedAt  time.Time `json:"loaded_at"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string            `json:"status"`
	Checks  map[string]string `json:"checks"`
	Version string            `json:"version"`
}
