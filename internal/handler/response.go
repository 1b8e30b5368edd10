package handler

import (
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"vdl-backend/internal/middleware"
	"vdl-backend/pkg/errors"
	"vdl-backend/pkg/logger"
)

const maxBodyBytes = 1 << 16

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// Report JSON field names instead of Go field names
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Response is the envelope for successful responses
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

// decodeJSON reads a size-limited JSON body into dst and validates it
func decodeJSON(r *http.Request, dst interface{}) *errors.AppError {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return errors.NewValidationError("Failed to read request body", nil)
	}
	if len(body) > maxBodyBytes {
		return errors.NewValidationError("Request body too large", nil)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return errors.NewValidationError("Invalid request body", nil)
	}

	if err := getValidator().Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if !stderrors.As(err, &fieldErrs) {
			return errors.NewValidationError("Invalid request body", nil)
		}
		fields := map[string]interface{}{}
		for _, fe := range fieldErrs {
			fields[fe.Field()] = fieldMessage(fe)
		}
		return errors.NewValidationError("Request validation failed", map[string]interface{}{"fields": fields})
	}
	return nil
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

// respondJSON writes data in the success envelope
func respondJSON(w http.ResponseWriter, status int, data interface{}, log *logger.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(Response{Success: true, Data: data}); err != nil {
		log.WithError(err).Error("Failed to encode response")
	}
}

// respondError writes err as an ErrorResponse. Errors that are not AppErrors
// are reported as internal errors.
func respondError(w http.ResponseWriter, r *http.Request, err error, log *logger.Logger) {
	appErr, ok := errors.AsAppError(err)
	if !ok {
		appErr = errors.NewInternalError("Internal server error", err)
	}

	requestID := middleware.RequestIDFromContext(r.Context())
	entry := log.WithFields(map[string]interface{}{
		"request_id": requestID,
		"path":       r.URL.Path,
		"status":     appErr.StatusCode,
	}).WithError(appErr)
	if appErr.StatusCode >= http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Debug("Request rejected")
	}

	response := &errors.ErrorResponse{}
	response.Error.Type = appErr.Type
	response.Error.Message = appErr.Message
	response.Error.Details = appErr.Details
	response.Error.RequestID = requestID
	response.Error.Timestamp = time.Now().UTC().Format(time.RFC3339)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.StatusCode)
	if encErr := json.NewEncoder(w).Encode(response); encErr != nil {
		log.WithError(encErr).Error("Failed to encode error response")
	}
}
