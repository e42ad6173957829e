package model

import (
	"time"
)

// APIResponse is the standard response envelope for all HTTP API responses.
type APIResponse struct {
	Data any          `json:"data,omitempty"`
	Meta ResponseMeta `json:"meta"`
}

// ListResponse is the standard envelope for list endpoints.
type ListResponse struct {
	Data  any          `json:"data"`
	Count int          `json:"count"`
	Limit int          `json:"limit"`
	Meta  ResponseMeta `json:"meta"`
}

// APIError is the standard error response envelope.
type APIError struct {
	Error ErrorDetail  `json:"error"`
	Meta  ResponseMeta `json:"meta"`
}

// ResponseMeta contains request metadata included in every response.
type ResponseMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorDetail describes an API error.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorCode constants for standard API error codes.
const (
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeConflict      = "CONFLICT"
	ErrCodeInternalError = "INTERNAL_ERROR"
	ErrCodeRateLimited   = "RATE_LIMITED"
)

// RecordExecutionRequest is the body of POST /v1/decisions/{id}/execution.
type RecordExecutionRequest struct {
	Status ExecutionStatus `json:"status"`
	Detail string          `json:"detail,omitempty"`
}

// RecordActionRequest is the body of POST /v1/actions.
type RecordActionRequest struct {
	ID         string     `json:"id"`
	Type       string     `json:"type"`
	AccountID  string     `json:"account_id"`
	OccurredAt *time.Time `json:"occurred_at,omitempty"`
}

// PurgeRequest is the body of POST /v1/admin/retention/purge.
type PurgeRequest struct {
	Operator      string `json:"operator"`
	Reason        string `json:"reason"`
	RetentionDays *int   `json:"retention_days,omitempty"`
	DryRun        bool   `json:"dry_run,omitempty"`
}

// PurgeResponse reports what a purge removed.
type PurgeResponse struct {
	DryRun  bool         `json:"dry_run"`
	Cutoff  time.Time    `json:"cutoff"`
	Deleted int          `json:"deleted"`
	Record  *PurgeRecord `json:"record,omitempty"`
}

// HealthResponse is the response for GET /health.
type HealthResponse struct {
	Status         string `json:"status"`
	Version        string `json:"version"`
	Ledger         string `json:"ledger"`
	LedgerEntries  int    `json:"ledger_entries"`
	Aggressiveness string `json:"aggressiveness"`
	Uptime         int64  `json:"uptime_seconds"`
}
