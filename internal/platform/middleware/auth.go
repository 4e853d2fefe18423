package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	id "evscan/pkg/domain"
	"evscan/pkg/requestcontext"
)

// JWTValidator defines the interface for validating user tokens.
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims represents the claims we expect from the JWT validator.
type JWTClaims struct {
	UserID id.UserID
}

// RequireUser authenticates dashboard users from a Bearer token and injects a
// user principal into the request context.
func RequireUser(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestcontext.RequestID(ctx),
				)
				writeUnauthorized(w, "Missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				writeUnauthorized(w, "Invalid or expired token")
				return
			}

			ctx = requestcontext.WithPrincipal(ctx, id.Principal{
				Kind:   id.PrincipalUser,
				UserID: claims.UserID,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireScanner authenticates field scanners from a pre-issued API key in
// the X-Scanner-Key header and injects a scanner principal. Key issuance is
// handled outside this service.
func RequireScanner(apiKeys map[string]string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			key := r.Header.Get("X-Scanner-Key")
			name, ok := apiKeys[key]
			if key == "" || !ok {
				logger.WarnContext(ctx, "unauthorized access - invalid scanner key",
					"request_id", requestcontext.RequestID(ctx),
				)
				writeUnauthorized(w, "Missing or invalid scanner credential")
				return
			}

			ctx = requestcontext.WithPrincipal(ctx, id.Principal{
				Kind:      id.PrincipalScanner,
				ScannerID: name,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
}
