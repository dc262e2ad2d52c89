package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/hiveboard/hiveboard/apierr"
	"github.com/hiveboard/hiveboard/model"
)

type contextKey string

const (
	// TenantContextKey stores the authenticated tenant id in request context.
	TenantContextKey contextKey = "tenant_id"
	// KeyTypeContextKey stores the authenticated key's visibility scope.
	KeyTypeContextKey contextKey = "key_type"
	// KeyIDContextKey stores the authenticated key's id.
	KeyIDContextKey contextKey = "key_id"
)

// KeyLookup resolves a raw bearer token to its key record.
type KeyLookup interface {
	LookupAPIKey(rawKey string) (*model.APIKey, bool)
}

// AuthMiddleware validates the Authorization bearer token against the
// tenant's api_keys table.
type AuthMiddleware struct {
	logger zerolog.Logger
	keys   KeyLookup
}

// NewAuthMiddleware creates an authentication middleware backed by keys.
func NewAuthMiddleware(logger zerolog.Logger, keys KeyLookup) *AuthMiddleware {
	return &AuthMiddleware{logger: logger, keys: keys}
}

// Handler returns the middleware handler function.
func (am *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			apierr.Write(w, apierr.Unauthorized("Authorization header required"))
			return
		}

		rawKey := authHeader
		if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
			rawKey = authHeader[len("bearer "):]
		}
		if rawKey == "" {
			apierr.Write(w, apierr.Unauthorized("API key cannot be empty"))
			return
		}

		key, ok := am.keys.LookupAPIKey(rawKey)
		if !ok {
			apierr.Write(w, apierr.Unauthorized("invalid or revoked API key"))
			return
		}

		ctx := context.WithValue(r.Context(), TenantContextKey, key.TenantID)
		ctx = context.WithValue(ctx, KeyTypeContextKey, key.KeyType)
		ctx = context.WithValue(ctx, KeyIDContextKey, key.KeyID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// TenantID extracts the authenticated tenant id from the request context.
func TenantID(ctx context.Context) string {
	v, _ := ctx.Value(TenantContextKey).(string)
	return v
}

// KeyType extracts the authenticated key's visibility scope from context.
func KeyType(ctx context.Context) model.KeyType {
	v, _ := ctx.Value(KeyTypeContextKey).(model.KeyType)
	return v
}

// KeyID extracts the authenticated key's id from context.
func KeyID(ctx context.Context) string {
	v, _ := ctx.Value(KeyIDContextKey).(string)
	return v
}
