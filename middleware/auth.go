package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/clerk/clerk-sdk-go/v2/jwt"
)

type contextKey string

const UserIDKey contextKey = "userID"
const ClerkIDKey contextKey = "clerkID"

// ErrUnknownUser is returned by a UserResolver when the Clerk subject has no
// local account yet (the user.created webhook has not arrived).
var ErrUnknownUser = errors.New("unknown user")

// TokenVerifier checks a bearer token and returns its subject.
type TokenVerifier func(ctx context.Context, token string) (string, error)

// ClerkVerifier verifies session tokens with the key set by clerk.SetKey.
func ClerkVerifier(ctx context.Context, token string) (string, error) {
	claims, err := jwt.Verify(ctx, &jwt.VerifyParams{
		Token: token,
	})
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

type UserResolver interface {
	ResolveUserID(ctx context.Context, clerkID string) (string, error)
}

// ClerkAuthMiddleware validates the bearer token and stores both the Clerk
// subject and the internal user id in the request context.
func ClerkAuthMiddleware(verify TokenVerifier, users UserResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				respondWithError(w, http.StatusUnauthorized, "Authorization header required")
				return
			}

			token := strings.TrimPrefix(authHeader, "Bearer ")
			if token == authHeader {
				respondWithError(w, http.StatusUnauthorized, "Invalid authorization format. Use 'Bearer <token>'")
				return
			}

			clerkID, err := verify(r.Context(), token)
			if err != nil {
				log.Printf("Token verification failed: %v", err)
				respondWithError(w, http.StatusUnauthorized, "Invalid token")
				return
			}

			userID, err := users.ResolveUserID(r.Context(), clerkID)
			if err != nil {
				if errors.Is(err, ErrUnknownUser) {
					respondWithError(w, http.StatusForbidden, "Account not provisioned yet")
					return
				}
				log.Printf("ClerkAuthMiddleware: failed to resolve %s: %v", clerkID, err)
				respondWithError(w, http.StatusInternalServerError, "Failed to resolve user")
				return
			}

			ctx := context.WithValue(r.Context(), ClerkIDKey, clerkID)
			ctx = context.WithValue(ctx, UserIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetClerkID extracts Clerk user ID from context
func GetClerkID(ctx context.Context) (string, bool) {
	clerkID, ok := ctx.Value(ClerkIDKey).(string)
	return clerkID, ok
}

// GetUserID extracts internal user ID from context
func GetUserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok
}

// WithUserID is used by tests and internal callers that bypass the token check.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
