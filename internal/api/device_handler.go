package api

import (
	"net/http"

	"github.com/phrazzld/capture-api/internal/api/shared"
	"github.com/phrazzld/capture-api/internal/domain"
	"github.com/phrazzld/capture-api/internal/platform/logger"
)

// maxDeviceBody bounds device registration bodies.
const maxDeviceBody = 4 * 1024

// DeviceRegistry is the subset of *device.Registry the handler uses.
type DeviceRegistry interface {
	Register(userID, token string, env domain.PushEnvironment) error
	Unregister(userID string) bool
}

// DeviceHandler serves push device registration.
type DeviceHandler struct {
	registry       DeviceRegistry
	sandboxDefault bool
}

// NewDeviceHandler creates a DeviceHandler. sandboxDefault is used when a
// registration does not say which push environment it belongs to.
func NewDeviceHandler(registry DeviceRegistry, sandboxDefault bool) *DeviceHandler {
	return &DeviceHandler{
		registry:       registry,
		sandboxDefault: sandboxDefault,
	}
}

// Register handles POST /api/devices.
func (h *DeviceHandler) Register(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req RegisterDeviceRequest
	if !decodeJSONBody(w, r, maxDeviceBody, &req) {
		return
	}

	sandbox := h.sandboxDefault
	if req.Sandbox != nil {
		sandbox = *req.Sandbox
	}
	env := domain.EnvironmentFromSandbox(sandbox)

	if err := h.registry.Register(userID, req.DeviceToken, env); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	logger.FromContext(r.Context()).Info("device registered", "environment", env)
	shared.RespondWithJSON(w, r, http.StatusOK, DeviceResponse{
		Status:      "registered",
		Environment: string(env),
	})
}

// Unregister handles DELETE /api/devices.
func (h *DeviceHandler) Unregister(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if h.registry.Unregister(userID) {
		logger.FromContext(r.Context()).Info("device unregistered")
	}
	w.WriteHeader(http.StatusNoContent)
}
