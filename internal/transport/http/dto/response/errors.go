package response

import "github.com/lebowvsky/atelier-kaisla-sub001/internal/domain/models"

const (
	CodeInvalidRequest   = "invalid_request"
	CodeValidationFailed = "validation_failed"
	CodeNotFound         = "not_found"
	CodeStorageError     = "storage_error"
	CodePersistenceError = "persistence_error"
	CodeInternalError    = "internal_error"
)

// ErrorResponse единый формат ошибок API, Violations заполняется только для validation_failed
type ErrorResponse struct {
	Status     string             `json:"status"`
	Error      string             `json:"error"`
	Details    string             `json:"details,omitempty"`
	Violations []models.Violation `json:"violations,omitempty"`
}

func ErrorResponseWithDetails(code, details string) ErrorResponse {
	return ErrorResponse{
		Status:  "error",
		Error:   code,
		Details: details,
	}
}

// Значения возвращаются заново при каждом вызове, общие переменные не мутируются

func InvalidRequest(details string) ErrorResponse {
	return ErrorResponseWithDetails(CodeInvalidRequest, details)
}

func NotFound(details string) ErrorResponse {
	return ErrorResponseWithDetails(CodeNotFound, details)
}

func Internal() ErrorResponse {
	return ErrorResponseWithDetails(CodeInternalError, "Internal server error")
}

// ValidationFailed перечисляет все нарушения сразу
func ValidationFailed(violations []models.Violation) ErrorResponse {
	return ErrorResponse{
		Status:     "error",
		Error:      CodeValidationFailed,
		Details:    "Request failed validation",
		Violations: violations,
	}
}
