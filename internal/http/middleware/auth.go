package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/princekumarofficial/catalog-service/internal/utils/jwt"
	"github.com/princekumarofficial/catalog-service/internal/utils/response"
)

type contextKey string

const UserIDKey contextKey = "userID"

var (
	errMissingHeader = errors.New("Authorization header required")
	errBadHeader     = errors.New("Invalid authorization header format")
	errNoToken       = errors.New("Token not provided")
	errBadToken      = errors.New("Invalid token")
)

// bearerPrincipal resolves the principal of r. It reports errMissingHeader
// when the request carries no credentials at all.
func bearerPrincipal(r *http.Request, jwtSecret string) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", errMissingHeader
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", errBadHeader
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", errNoToken
	}
	userID, err := jwt.ExtractUserIDFromToken(token, jwtSecret)
	if err != nil {
		return "", errBadToken
	}
	return userID, nil
}

// AuthMiddleware rejects requests without a valid bearer token and stores
// the principal in the request context.
func AuthMiddleware(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := bearerPrincipal(r, jwtSecret)
			if err != nil {
				response.WriteJSON(w, http.StatusUnauthorized, response.GeneralError(err))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// OptionalAuthMiddleware lets anonymous requests through. A token that is
// present must still be valid.
func OptionalAuthMiddleware(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := bearerPrincipal(r, jwtSecret)
			switch {
			case errors.Is(err, errMissingHeader):
				next.ServeHTTP(w, r)
			case err != nil:
				response.WriteJSON(w, http.StatusUnauthorized, response.GeneralError(err))
			default:
				next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
			}
		})
	}
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// GetUserIDFromContext extracts the user ID from the request context
func GetUserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok
}
