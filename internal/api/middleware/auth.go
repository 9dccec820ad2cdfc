package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/phrazzld/capture-api/internal/api/shared"
	"github.com/phrazzld/capture-api/internal/platform/google"
	"github.com/phrazzld/capture-api/internal/platform/logger"
)

// IdentityVerifier resolves a bearer access token to its owner.
// *google.IdentityVerifier implements it.
type IdentityVerifier interface {
	Verify(ctx context.Context, accessToken string) (google.Identity, error)
}

// AuthMiddleware authenticates requests with a Google access token.
type AuthMiddleware struct {
	verifier IdentityVerifier
}

// NewAuthMiddleware creates a new AuthMiddleware with the given dependencies.
func NewAuthMiddleware(verifier IdentityVerifier) *AuthMiddleware {
	return &AuthMiddleware{
		verifier: verifier,
	}
}

// Authenticate verifies the bearer token in the Authorization header and
// adds the account's subject to the request context as the user ID.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Authorization header required")
			return
		}

		identity, err := m.verifier.Verify(r.Context(), token)
		if err != nil {
			if errors.Is(err, google.ErrInvalidAccessToken) {
				shared.RespondWithErrorAndLog(w, r, http.StatusUnauthorized,
					"Invalid or expired access token", err, shared.WithElevatedLogLevel())
				return
			}
			shared.RespondWithErrorAndLog(w, r, http.StatusBadGateway,
				"Identity provider unavailable", err)
			return
		}

		ctx := shared.SetUserID(r.Context(), identity.Subject)
		ctx = logger.WithLogger(ctx, logger.FromContext(ctx).With("user_id", identity.Subject))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// bearerToken extracts the token from an "Authorization: Bearer <token>"
// header. The scheme is matched case-insensitively.
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
