package domain

import (
	"fmt"
	"time"
)

// PushEnvironment selects the push provider endpoint a device token belongs to.
// Debug builds of the client register sandbox tokens, release builds
// production tokens; one server may serve both.
type PushEnvironment string

// Supported push environments.
const (
	PushSandbox    PushEnvironment = "sandbox"
	PushProduction PushEnvironment = "production"
)

// Common validation errors for Device
var (
	ErrEmptyDeviceUserID  = fmt.Errorf("%w: device user ID cannot be empty", ErrValidation)
	ErrEmptyDeviceToken   = fmt.Errorf("%w: device token cannot be empty", ErrValidation)
	ErrInvalidEnvironment = fmt.Errorf("%w: invalid push environment", ErrValidation)
)

// EnvironmentFromSandbox maps the client's sandbox flag to an environment.
func EnvironmentFromSandbox(sandbox bool) PushEnvironment {
	if sandbox {
		return PushSandbox
	}
	return PushProduction
}

// Valid reports whether e is a known environment.
func (e PushEnvironment) Valid() bool {
	return e == PushSandbox || e == PushProduction
}

// Device is the single active push registration of a user.
type Device struct {
	UserID       string          `json:"user_id"`
	Token        string          `json:"device_token"`
	Environment  PushEnvironment `json:"environment"`
	RegisteredAt time.Time       `json:"registered_at"`
}
