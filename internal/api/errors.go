package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/phrazzld/capture-api/internal/api/shared"
	"github.com/phrazzld/capture-api/internal/domain"
	"github.com/phrazzld/capture-api/internal/job"
	"github.com/phrazzld/capture-api/internal/pipeline"
	"github.com/phrazzld/capture-api/internal/platform/google"
	"github.com/phrazzld/capture-api/internal/quota"
)

// Request-level errors raised by the handlers themselves.
var (
	ErrInvalidImage = errors.New("image must be base64 encoded")
	ErrUnauthorized = errors.New("user not authenticated")
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, google.ErrInvalidAccessToken):
		return http.StatusUnauthorized

	case errors.Is(err, quota.ErrLimitExceeded):
		return http.StatusTooManyRequests

	case errors.Is(err, pipeline.ErrImageTooLarge),
		errors.Is(err, shared.ErrBodyTooLarge):
		return http.StatusRequestEntityTooLarge

	case errors.Is(err, pipeline.ErrEmptyImage),
		errors.Is(err, ErrInvalidImage),
		errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest

	case errors.Is(err, job.ErrJobNotFound):
		return http.StatusNotFound

	case errors.Is(err, pipeline.ErrBusy):
		return http.StatusServiceUnavailable

	case errors.Is(err, pipeline.ErrAnalysisFailed):
		return http.StatusBadGateway

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
// Quota rejections carry their reason so clients can tell the global ceiling
// from their own.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	var limitErr *quota.LimitError
	if errors.As(err, &limitErr) {
		return capitalize(limitErr.Reason)
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return "User ID not found or invalid"
	case errors.Is(err, google.ErrInvalidAccessToken):
		return "Invalid or expired access token"
	case errors.Is(err, quota.ErrLimitExceeded):
		return "Daily limit reached"
	case errors.Is(err, pipeline.ErrImageTooLarge),
		errors.Is(err, shared.ErrBodyTooLarge):
		return "Image too large"
	case errors.Is(err, pipeline.ErrEmptyImage):
		return "Image is required"
	case errors.Is(err, ErrInvalidImage):
		return "Image must be base64 encoded"
	case errors.Is(err, domain.ErrEmptyDeviceToken):
		return "Device token is required"
	case errors.Is(err, domain.ErrValidation):
		return "Invalid request data"
	case errors.Is(err, job.ErrJobNotFound):
		return "Job not found"
	case errors.Is(err, pipeline.ErrBusy):
		return "Server busy, try again later"
	case errors.Is(err, pipeline.ErrAnalysisFailed):
		return "Failed to analyze screenshot"
	default:
		return "An unexpected error occurred"
	}
}

// HandleAPIError writes the mapped status and safe message for err and logs
// the redacted error. A non-empty message overrides the safe message.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, message string) {
	status := MapErrorToStatusCode(err)
	if message == "" {
		message = GetSafeErrorMessage(err)
	}
	shared.RespondWithErrorAndLog(w, r, status, message, err)
}

// HandleValidationError responds 400 with a sanitized description of a
// validator failure.
func HandleValidationError(w http.ResponseWriter, r *http.Request, err error) {
	shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
}

// SanitizeValidationError removes sensitive details from validation errors
// and returns a user-friendly message.
func SanitizeValidationError(err error) string {
	errMsg := err.Error()

	// Example format: "Key: 'RegisterDeviceRequest.DeviceToken' Error:Field validation for 'DeviceToken' failed on the 'required' tag"
	if strings.Contains(errMsg, "Field validation") {
		parts := strings.Split(errMsg, "Error:")
		if len(parts) >= 2 {
			fieldParts := strings.Split(parts[1], "'")
			if len(fieldParts) >= 3 {
				field := fieldParts[1]
				var tag string
				if len(fieldParts) >= 5 {
					tag = fieldParts[3]
				}

				if tag != "" {
					return fmt.Sprintf("Invalid %s: %s", field, getValidationTagMessage(tag))
				}
				return fmt.Sprintf("Invalid %s", field)
			}
		}
	}

	return "Validation error"
}

// getValidationTagMessage maps validation tags to user-friendly error messages
func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "hexadecimal":
		return "must be hexadecimal"
	case "len":
		return "wrong length"
	case "min":
		return "too short"
	case "max":
		return "too long"
	default:
		return "validation failed"
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
