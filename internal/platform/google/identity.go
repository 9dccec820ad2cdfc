package google

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/phrazzld/capture-api/internal/redact"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

// Identity is the Google account behind an access token.
type Identity struct {
	// Subject is Google's stable account identifier, used as the user ID.
	Subject string
	Email   string
}

// IdentityVerifier resolves access tokens through the userinfo endpoint.
type IdentityVerifier struct {
	logger *slog.Logger
	opts   []option.ClientOption
}

// NewIdentityVerifier creates an IdentityVerifier. opts are appended to every
// client, which lets tests point it at a local server.
func NewIdentityVerifier(logger *slog.Logger, opts ...option.ClientOption) *IdentityVerifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &IdentityVerifier{
		logger: logger.With("component", "identity_verifier"),
		opts:   opts,
	}
}

// Verify returns the identity that owns accessToken.
func (v *IdentityVerifier) Verify(ctx context.Context, accessToken string) (Identity, error) {
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return Identity{}, ErrInvalidAccessToken
	}

	svc, err := oauth2api.NewService(ctx, userClientOptions(ctx, accessToken, v.opts)...)
	if err != nil {
		return Identity{}, fmt.Errorf("failed to create userinfo client: %w", err)
	}

	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		if isUnauthorized(err) {
			return Identity{}, ErrInvalidAccessToken
		}
		v.logger.WarnContext(ctx, "userinfo request failed", "error", redact.Error(err))
		return Identity{}, fmt.Errorf("userinfo request failed: %w", err)
	}
	if info.Id == "" {
		return Identity{}, fmt.Errorf("%w: userinfo response has no subject", ErrInvalidAccessToken)
	}

	return Identity{Subject: info.Id, Email: info.Email}, nil
}
