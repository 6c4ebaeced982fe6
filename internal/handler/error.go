package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/DukeRupert/compliq/internal/domain"
)

// ErrorResponse writes a JSON error response. It maps domain error codes to
// HTTP status codes and includes the deny reason for quota refusals.
func ErrorResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		ValidationErrorResponse(w, r, logger, err)
		return
	}

	code := domain.ErrorCode(err)
	message := domain.ErrorMessage(err)
	op := domain.ErrorOp(err)
	status := ErrorCodeToHTTPStatus(code)

	logError(logger, r, err, code, op, status)

	if code == domain.ERATELIMIT && w.Header().Get("Retry-After") == "" {
		w.Header().Set("Retry-After", "60")
	}

	var body JSONError
	body.Error.Code = code
	body.Error.Message = message
	body.Error.Reason = string(domain.DenyReasonOf(err))
	writeJSON(w, status, body)
}

// ErrorCodeToHTTPStatus maps domain error codes to HTTP status codes.
func ErrorCodeToHTTPStatus(code string) int {
	switch code {
	case domain.EINVALID:
		return http.StatusBadRequest // 400
	case domain.EUNAUTHORIZED:
		return http.StatusUnauthorized // 401
	case domain.ETRIAL:
		return http.StatusPaymentRequired // 402
	case domain.EFORBIDDEN, domain.EQUOTA:
		return http.StatusForbidden // 403
	case domain.ENOTFOUND:
		return http.StatusNotFound // 404
	case domain.ECONFLICT:
		return http.StatusConflict // 409
	case domain.ETOOLARGE:
		return http.StatusRequestEntityTooLarge // 413
	case domain.ERATELIMIT:
		return http.StatusTooManyRequests // 429
	case domain.EUNAVAILABLE:
		return http.StatusServiceUnavailable // 503
	case domain.ECONFIG, domain.EINTERNAL:
		return http.StatusInternalServerError // 500
	default:
		return http.StatusInternalServerError // 500
	}
}

// ValidationErrorResponse writes field-level validation errors.
func ValidationErrorResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		ErrorResponse(w, r, logger, err)
		return
	}

	logger.Info("validation error",
		"op", ve.Op,
		"field_count", len(ve.Fields),
		"path", r.URL.Path,
	)

	var body JSONError
	body.Error.Code = domain.EINVALID
	body.Error.Message = "Validation failed"
	body.Error.Fields = ve.Fields
	writeJSON(w, http.StatusBadRequest, body)
}

// UnauthorizedResponse is a convenience wrapper for 401 errors.
func UnauthorizedResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger) {
	err := domain.Errorf(domain.EUNAUTHORIZED, "", "Authentication required")
	ErrorResponse(w, r, logger, err)
}

// NotFoundResponse is a convenience wrapper for 404 errors.
func NotFoundResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger) {
	err := domain.Errorf(domain.ENOTFOUND, "", "The requested resource was not found")
	ErrorResponse(w, r, logger, err)
}

// logError logs the error with appropriate level based on status code.
func logError(logger *slog.Logger, r *http.Request, err error, code, op string, status int) {
	attrs := []any{
		"error", err.Error(),
		"code", code,
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
	}
	if op != "" {
		attrs = append(attrs, "op", op)
	}

	// 5xx are server-side issues; 4xx are expected client errors.
	if status >= 500 {
		logger.Error("server error", attrs...)
	} else if status >= 400 {
		logger.Info("client error", attrs...)
	}
}

// JSONError is the error envelope for every API error.
type JSONError struct {
	Error struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Reason  string            `json:"reason,omitempty"`
		Fields  map[string]string `json:"fields,omitempty"`
	} `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
