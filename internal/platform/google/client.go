package google

import (
	"context"
	"errors"
	"net/http"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// ErrInvalidAccessToken is returned when Google rejects the caller's token.
var ErrInvalidAccessToken = errors.New("invalid or expired Google access token")

// userClientOptions returns client options authenticating as the owner of
// accessToken, followed by extra. The base transport can be overridden through
// the oauth2.HTTPClient context key.
func userClientOptions(ctx context.Context, accessToken string, extra []option.ClientOption) []option.ClientOption {
	ts := oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	})
	opts := make([]option.ClientOption, 0, len(extra)+1)
	opts = append(opts, option.WithHTTPClient(oauth2.NewClient(ctx, ts)))
	return append(opts, extra...)
}

// isUnauthorized reports whether err is a Google API 401 or 403.
func isUnauthorized(err error) bool {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden
}
