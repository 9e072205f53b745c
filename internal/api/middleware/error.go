package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/sumandas0/notionmbse/internal/observability"
	"github.com/sumandas0/notionmbse/pkg/utils"
)

const CodeInternal = "INTERNAL_ERROR"

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	RequestID string         `json:"request_id,omitempty"`
}

// ErrorHandler turns a panic into a 500 response and logs the stack. The
// logger is attached to the request context for SendError.
func ErrorHandler(logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r = r.WithContext(logger.WithContext(r.Context()))
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logger.Error().
						Str("method", r.Method).
						Str("path", r.URL.Path).
						Str("request_id", getRequestID(r)).
						Bytes("stack", debug.Stack()).
						Msg(fmt.Sprintf("panic: %v", rec))
					SendInternalError(w, r, "Internal server error")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, statusCode int, detail ErrorDetail) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: detail})
}

// SendError writes err with the status its code maps to. Server side
// failures are logged through the request logger.
func SendError(w http.ResponseWriter, r *http.Request, err error) {
	status := HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		observability.LogAppError(r.Context(), *zerolog.Ctx(r.Context()), err, "Request failed")
	}

	detail := ErrorDetail{
		Code:      CodeInternal,
		Message:   err.Error(),
		Timestamp: time.Now().UTC(),
		RequestID: getRequestID(r),
	}

	var appErr *utils.AppError
	if errors.As(err, &appErr) {
		detail.Code = appErr.Code
		detail.Message = appErr.Message
		if len(appErr.Details) > 0 {
			detail.Details = appErr.Details
		}
	}
	writeError(w, status, detail)
}

func SendValidationError(w http.ResponseWriter, r *http.Request, message string, details map[string]any) {
	writeError(w, http.StatusBadRequest, ErrorDetail{
		Code:      utils.CodeValidation,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: getRequestID(r),
	})
}

func SendNotFoundError(w http.ResponseWriter, r *http.Request, resource string) {
	writeError(w, http.StatusNotFound, ErrorDetail{
		Code:      utils.CodeNotFound,
		Message:   fmt.Sprintf("%s not found", resource),
		Timestamp: time.Now().UTC(),
		RequestID: getRequestID(r),
	})
}

func SendInternalError(w http.ResponseWriter, r *http.Request, message string) {
	writeError(w, http.StatusInternalServerError, ErrorDetail{
		Code:      CodeInternal,
		Message:   message,
		Timestamp: time.Now().UTC(),
		RequestID: getRequestID(r),
	})
}

func getRequestID(r *http.Request) string {
	if id := chiMiddleware.GetReqID(r.Context()); id != "" {
		return id
	}
	return r.Header.Get("X-Request-ID")
}

// HTTPStatus maps an error to its response status. Backend failures are
// reported as a bad gateway since the fault lies with the store or the
// workspace.
func HTTPStatus(err error) int {
	var appErr *utils.AppError
	if !errors.As(err, &appErr) {
		return http.StatusInternalServerError
	}
	switch appErr.Code {
	case utils.CodeNotFound:
		return http.StatusNotFound
	case utils.CodeValidation, utils.CodeInvalidInput, utils.CodeInvalidIdentifier, utils.CodeSchema:
		return http.StatusBadRequest
	case utils.CodeBackend:
		return http.StatusBadGateway
	case utils.CodeConfiguration:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
