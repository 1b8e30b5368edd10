package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"vdl-backend/internal/domain"
	"vdl-backend/internal/service"
	"vdl-backend/pkg/errors"
	"vdl-backend/pkg/logger"
)

// ContextKey represents keys used in request context
type ContextKey string

const (
	// UserContextKey is the key for verified token claims in context
	UserContextKey ContextKey = "user"
	// RequestIDContextKey is the key for request ID in context
	RequestIDContextKey ContextKey = "request_id"
)

// Auth rejects requests without a valid bearer token
func Auth(authService service.AuthService, logger *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeErrorResponse(w, r, errors.NewAuthenticationError("Authorization header is required"), logger)
				return
			}

			claims, appErr := authenticate(r.Context(), authService, authHeader, logger)
			if appErr != nil {
				writeErrorResponse(w, r, appErr, logger)
				return
			}

			logger.WithField("user_id", claims.Sub).Debug("User authenticated successfully")
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), UserContextKey, claims)))
		})
	}
}

// OptionalAuth validates a token when one is sent and otherwise continues anonymously
func OptionalAuth(authService service.AuthService, logger *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, appErr := authenticate(r.Context(), authService, authHeader, logger)
			if appErr != nil {
				writeErrorResponse(w, r, appErr, logger)
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), UserContextKey, claims)))
		})
	}
}

// RequireAdmin must run after Auth
func RequireAdmin(logger *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims == nil {
				writeErrorResponse(w, r, errors.NewAuthenticationError("User not authenticated"), logger)
				return
			}
			if !claims.IsAdmin {
				logger.WithField("user_id", claims.Sub).Warn("Non-admin user attempted admin access")
				writeErrorResponse(w, r, errors.NewAuthorizationError("Admin access required"), logger)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func authenticate(ctx context.Context, authService service.AuthService, authHeader string, logger *logger.Logger) (*domain.AuthClaims, *errors.AppError) {
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return nil, errors.NewAuthenticationError("Invalid authorization header format")
	}

	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return nil, errors.NewAuthenticationError("Token is required")
	}

	claims, err := authService.ValidateToken(ctx, token)
	if err != nil {
		logger.WithError(err).Warn("Token validation failed")
		if appErr, ok := errors.AsAppError(err); ok && appErr.Type == errors.ErrorTypeAuthentication {
			return nil, appErr
		}
		return nil, errors.NewAuthenticationError("Invalid or expired token")
	}
	return claims, nil
}

// ClaimsFromContext returns the verified claims, nil for anonymous requests
func ClaimsFromContext(ctx context.Context) *domain.AuthClaims {
	claims, _ := ctx.Value(UserContextKey).(*domain.AuthClaims)
	return claims
}

// UserIDFromContext returns the caller's user ID, nil for anonymous requests
func UserIDFromContext(ctx context.Context) *string {
	claims := ClaimsFromContext(ctx)
	if claims == nil || claims.Sub == "" {
		return nil
	}
	id := claims.Sub
	return &id
}

// RequestIDFromContext returns the request ID set by RequestID
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDContextKey).(string)
	return id
}

// writeErrorResponse writes an error response to the client
func writeErrorResponse(w http.ResponseWriter, r *http.Request, appErr *errors.AppError, logger *logger.Logger) {
	logger.WithError(appErr).Debug("Request rejected")

	response := &errors.ErrorResponse{}
	response.Error.Type = appErr.Type
	response.Error.Message = appErr.Message
	response.Error.Details = appErr.Details
	response.Error.RequestID = RequestIDFromContext(r.Context())
	response.Error.Timestamp = time.Now().UTC().Format(time.RFC3339)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.StatusCode)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.WithError(err).Error("Failed to encode error response")
	}
}
