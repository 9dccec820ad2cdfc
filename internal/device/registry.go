// Package device keeps the single active push registration of each user.
package device

import (
	"log/slog"
	"sync"
	"time"

	"github.com/phrazzld/capture-api/internal/domain"
)

// Registry maps user IDs to their push device. Registrations live in memory
// and are lost on restart.
type Registry struct {
	mutex   sync.RWMutex
	devices map[string]domain.Device
	logger  *slog.Logger
	now     func() time.Time
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		devices: make(map[string]domain.Device),
		logger:  logger.With("component", "device_registry"),
		now:     time.Now,
	}
}

// Register stores token as userID's device, replacing any earlier one.
// The token format is not checked here; a malformed or stale token surfaces
// as a delivery failure.
func (r *Registry) Register(userID, token string, env domain.PushEnvironment) error {
	if userID == "" {
		return domain.ErrEmptyDeviceUserID
	}
	if token == "" {
		return domain.ErrEmptyDeviceToken
	}
	if !env.Valid() {
		return domain.ErrInvalidEnvironment
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.devices[userID] = domain.Device{
		UserID:       userID,
		Token:        token,
		Environment:  env,
		RegisteredAt: r.now().UTC(),
	}
	r.logger.Debug("device registered",
		"user_id", userID,
		"environment", env)
	return nil
}

// Lookup returns userID's device if one is registered.
func (r *Registry) Lookup(userID string) (domain.Device, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	d, ok := r.devices[userID]
	return d, ok
}

// Unregister removes userID's device. It reports whether one was present.
func (r *Registry) Unregister(userID string) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	_, ok := r.devices[userID]
	delete(r.devices, userID)
	return ok
}

// UnregisterToken removes userID's device only if it still holds token, so a
// delivery failure for an old token cannot drop a newer registration.
func (r *Registry) UnregisterToken(userID, token string) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	d, ok := r.devices[userID]
	if !ok || d.Token != token {
		return false
	}
	delete(r.devices, userID)
	r.logger.Info("stale device token removed", "user_id", userID)
	return true
}

// Count returns the number of registered devices.
func (r *Registry) Count() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.devices)
}
