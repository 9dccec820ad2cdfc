package api

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/phrazzld/capture-api/internal/api/shared"
	"github.com/phrazzld/capture-api/internal/platform/logger"
)

// bodyOverhead is the allowance for JSON framing and other fields on top of
// the encoded image.
const bodyOverhead = 64 * 1024

// maxBodyBytes returns the request body limit for an image limit, accounting
// for base64 expansion.
func maxBodyBytes(maxImageBytes int) int64 {
	return int64(base64.StdEncoding.EncodedLen(maxImageBytes)) + bodyOverhead
}

// requireUserID returns the authenticated user ID, writing a 401 when the
// request was not authenticated.
func requireUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := shared.GetUserID(r.Context())
	if !ok {
		logger.FromContext(r.Context()).Warn("user ID not found in request context")
		HandleAPIError(w, r, ErrUnauthorized, "")
		return "", false
	}
	return userID, true
}

// decodeJSONBody limits the body to limit bytes, decodes it into v, and
// validates it. It writes the error response itself and reports whether the
// handler should continue.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, limit int64, v interface{}) bool {
	if limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}

	if err := shared.DecodeJSON(r, v); err != nil {
		if status := MapErrorToStatusCode(err); status == http.StatusRequestEntityTooLarge {
			HandleAPIError(w, r, err, "")
			return false
		}
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return false
	}

	if err := shared.ValidateRequest(v); err != nil {
		HandleValidationError(w, r, err)
		return false
	}
	return true
}

// decodeImage decodes a base64 image, accepting a data URL prefix such as
// "data:image/png;base64,".
func decodeImage(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if strings.HasPrefix(encoded, "data:") {
		if _, payload, found := strings.Cut(encoded, ","); found {
			encoded = payload
		}
	}

	image, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		image, err = base64.RawStdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
		}
	}
	return image, nil
}

// bearerFromRequest returns the token of the Authorization header.
func bearerFromRequest(r *http.Request) string {
	scheme, token, found := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
