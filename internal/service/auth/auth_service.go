package auth

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"vdl-backend/internal/domain"
	"vdl-backend/internal/service"
	"vdl-backend/pkg/errors"
	"vdl-backend/pkg/logger"
)

// Service implements service.AuthService for HS256 tokens
type Service struct {
	secret []byte
	logger *logger.Logger
	now    func() time.Time
}

// NewService creates a new auth service
func NewService(secret string, logger *logger.Logger) *Service {
	return &Service{
		secret: []byte(secret),
		logger: logger,
		now:    time.Now,
	}
}

var _ service.AuthService = (*Service)(nil)

// ValidateToken verifies an HS256 JWT and extracts the caller's claims
func (s *Service) ValidateToken(ctx context.Context, tokenString string) (*domain.AuthClaims, error) {
	if len(s.secret) == 0 {
		s.logger.Error("JWT_SECRET not configured")
		return nil, errors.NewAuthenticationError("Token validation not configured")
	}

	if !isJWTToken(tokenString) {
		return nil, errors.NewAuthenticationError("Unrecognized token format")
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		s.logger.WithError(err).Debug("Failed to parse/validate JWT token")
		if stderrors.Is(err, jwt.ErrTokenExpired) {
			return nil, errors.NewAuthenticationError("Token has expired")
		}
		return nil, errors.NewAuthenticationError("Invalid JWT token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.NewAuthenticationError("Invalid JWT token")
	}

	authClaims := &domain.AuthClaims{
		Sub:     getStringValue(claims, "sub"),
		Email:   getStringValue(claims, "email"),
		Name:    getStringValue(claims, "name"),
		IsAdmin: isAdmin(claims),
		Iat:     getInt64Value(claims, "iat"),
		Exp:     getInt64Value(claims, "exp"),
	}

	if authClaims.Sub == "" {
		return nil, errors.NewAuthenticationError("Invalid JWT token: no user identifier")
	}

	s.logger.WithField("user_id", authClaims.Sub).Debug("JWT token validated successfully")
	return authClaims, nil
}

// isAdmin accepts either an is_admin flag or "admin" in role/roles
func isAdmin(claims jwt.MapClaims) bool {
	if v, ok := claims["is_admin"].(bool); ok && v {
		return true
	}
	if getStringValue(claims, "role") == "admin" {
		return true
	}
	if roles, ok := claims["roles"].([]interface{}); ok {
		for _, r := range roles {
			if r == "admin" {
				return true
			}
		}
	}
	return false
}

func isJWTToken(token string) bool {
	return token != "" && strings.Count(token, ".") == 2
}

func getStringValue(m map[string]interface{}, key string) string {
	if val, ok := m[key].(string); ok {
		return val
	}
	return ""
}

func getInt64Value(m map[string]interface{}, key string) int64 {
	if val, ok := m[key].(float64); ok {
		return int64(val)
	}
	return 0
}
