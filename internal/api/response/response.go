// Package response writes the JSON envelopes every endpoint returns:
// {"data": ...} on success, {"data": [...], "meta": {...}} for pages and
// {"error": {...}} on failure.
package response

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Error codes carried in the error envelope.
const (
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeValidation     = "VALIDATION_ERROR"
	CodeInvalidToken   = "INVALID_TOKEN"
	CodeForbidden      = "FORBIDDEN"
	CodeNotFound       = "RESOURCE_NOT_FOUND"
	CodeConflict       = "CONFLICT"
	CodeRateLimited    = "RATE_LIMIT_EXCEEDED"
	CodeInternal       = "INTERNAL_ERROR"
	CodeNotImplemented = "NOT_IMPLEMENTED"
	CodeDegraded       = "DEGRADED"
)

type body struct {
	Data  any             `json:"data,omitempty"`
	Meta  *PaginationMeta `json:"meta,omitempty"`
	Error *ErrorBody      `json:"error,omitempty"`
}

// ErrorBody describes a failed request.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// PaginationMeta accompanies list responses.
type PaginationMeta struct {
	Page    int  `json:"page"`
	Limit   int  `json:"limit"`
	Total   int  `json:"total"`
	HasNext bool `json:"has_next"`
}

// NewPaginationMeta fills HasNext from the total row count.
func NewPaginationMeta(page, limit, total int) PaginationMeta {
	return PaginationMeta{Page: page, Limit: limit, Total: total, HasNext: page*limit < total}
}

func JSON(w http.ResponseWriter, data any) {
	write(w, http.StatusOK, body{Data: data})
}

func Created(w http.ResponseWriter, data any) {
	write(w, http.StatusCreated, body{Data: data})
}

func Accepted(w http.ResponseWriter, data any) {
	write(w, http.StatusAccepted, body{Data: data})
}

// AcceptedAt writes a 202 pointing the client at location for status polling.
func AcceptedAt(w http.ResponseWriter, location string, data any) {
	w.Header().Set("Location", location)
	Accepted(w, data)
}

// NoContent writes a bare 204.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func Collection(w http.ResponseWriter, data any, meta PaginationMeta) {
	write(w, http.StatusOK, body{Data: data, Meta: &meta})
}

func Error(w http.ResponseWriter, status int, code, message string, details any) {
	write(w, status, body{Error: &ErrorBody{Code: code, Message: message, Details: details}})
}

func write(w http.ResponseWriter, status int, v body) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("writing response body", "status", status, "error", err)
	}
}
