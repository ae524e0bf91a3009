package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"gorm.io/gorm"
)

// ErrTokenNotFound is returned when a token does not resolve to an active actor.
var ErrTokenNotFound = errors.New("token not found")

// AuthService resolves opaque bearer tokens to acting users.
type AuthService struct {
	db *gorm.DB
}

// NewAuthService creates a new AuthService instance
func NewAuthService(db *gorm.DB) *AuthService {
	return &AuthService{
		db: db,
	}
}

// ResolveToken looks up the actor behind a raw token value. Inactive and
// unknown tokens both resolve to ErrTokenNotFound so callers cannot
// distinguish revoked from never-issued.
func (as *AuthService) ResolveToken(ctx context.Context, token string) (*ActorContext, error) {
	if token == "" {
		return nil, fmt.Errorf("token is empty")
	}

	var row APIToken
	result := as.db.WithContext(ctx).Where("token = ? AND is_active = ?", token, true).First(&row)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			slog.Debug("token did not resolve to an active actor")
			return nil, ErrTokenNotFound
		}
		slog.Error("failed to resolve token", "error", result.Error)
		return nil, fmt.Errorf("failed to resolve token: %w", result.Error)
	}

	return &ActorContext{UserID: row.UserID}, nil
}

// TokenFromHeader extracts the raw token from an Authorization header,
// accepting both "Bearer <token>" and a bare token value.
func TokenFromHeader(header string) (string, error) {
	if header == "" {
		return "", fmt.Errorf("authorization header is empty")
	}
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token), nil
	}
	return strings.TrimSpace(header), nil
}
