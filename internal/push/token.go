package push

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/phrazzld/capture-api/internal/platform/logger"
	"golang.org/x/sync/singleflight"
)

// The provider rejects tokens older than ProviderTokenLifetime.
const (
	ProviderTokenLifetime  = 60 * time.Minute
	DefaultRefreshInterval = 50 * time.Minute
)

// ErrNotConfigured is returned when tokens are requested without credentials.
var ErrNotConfigured = errors.New("push credentials not configured")

// TokenSource signs and caches provider tokens.
type TokenSource struct {
	creds        Credentials
	refreshAfter time.Duration
	timeFunc     func() time.Time

	mu       sync.Mutex
	token    string
	issuedAt time.Time

	group singleflight.Group
}

// NewTokenSource creates a TokenSource that re-signs once a token is
// refreshAfter old. Values outside (0, ProviderTokenLifetime) fall back to
// DefaultRefreshInterval.
func NewTokenSource(creds Credentials, refreshAfter time.Duration, timeFunc func() time.Time) *TokenSource {
	if refreshAfter <= 0 || refreshAfter >= ProviderTokenLifetime {
		refreshAfter = DefaultRefreshInterval
	}
	if timeFunc == nil {
		timeFunc = time.Now
	}
	return &TokenSource{
		creds:        creds,
		refreshAfter: refreshAfter,
		timeFunc:     timeFunc,
	}
}

// Token returns a provider token younger than the refresh threshold.
// Concurrent callers that find the cache stale share a single signing.
func (s *TokenSource) Token(ctx context.Context) (string, error) {
	if !s.creds.Configured() {
		return "", ErrNotConfigured
	}

	if token, ok := s.cached(); ok {
		return token, nil
	}

	v, err, _ := s.group.Do("sign", func() (interface{}, error) {
		if token, ok := s.cached(); ok {
			return token, nil
		}
		return s.sign(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate drops the cached token so the next call re-signs.
func (s *TokenSource) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.issuedAt = time.Time{}
}

func (s *TokenSource) cached() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" {
		return "", false
	}
	if s.timeFunc().Sub(s.issuedAt) >= s.refreshAfter {
		return "", false
	}
	return s.token, true
}

func (s *TokenSource) sign(ctx context.Context) (string, error) {
	now := s.timeFunc()

	token := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.RegisteredClaims{
		Issuer:   s.creds.TeamID,
		IssuedAt: jwt.NewNumericDate(now),
	})
	token.Header["kid"] = s.creds.KeyID

	signed, err := token.SignedString(s.creds.Key)
	if err != nil {
		logger.FromContext(ctx).Error("failed to sign provider token",
			"error", err,
			"key_id", s.creds.KeyID,
			"signing_method", jwt.SigningMethodES256.Name)
		return "", fmt.Errorf("failed to sign provider token: %w", err)
	}

	s.mu.Lock()
	s.token = signed
	s.issuedAt = now
	s.mu.Unlock()

	logger.FromContext(ctx).Debug("provider token signed", "key_id", s.creds.KeyID)
	return signed, nil
}
