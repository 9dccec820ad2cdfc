// Package redact removes credentials and personal data from strings before
// they are logged or returned in error responses. Push provider tokens, .p8
// key material, Google access tokens, and device tokens all pass through
// error messages in this service, so every error that reaches a log line or
// a client goes through Error or String first.
package redact

import "regexp"

// Placeholders substituted for redacted content.
const (
	RedactedPathPlaceholder        = "[REDACTED_PATH]"
	RedactedKeyPlaceholder         = "[REDACTED_KEY]"
	RedactedTokenPlaceholder       = "[REDACTED_TOKEN]"
	RedactedJWTPlaceholder         = "[REDACTED_JWT]"
	RedactedDeviceTokenPlaceholder = "[REDACTED_DEVICE_TOKEN]"
	RedactedEmailPlaceholder       = "[REDACTED_EMAIL]"
	RedactedStackTracePlaceholder  = "[STACK_TRACE_REDACTED]"
)

type rule struct {
	pattern     *regexp.Regexp
	replacement string
}

// rules run in order; earlier rules consume text later rules would split.
var rules = []rule{
	{
		regexp.MustCompile(`(?:goroutine \d+|panic:)[\s\S]*?(\n\t.*)+`),
		RedactedStackTracePlaceholder,
	},
	{
		regexp.MustCompile(`-----BEGIN [A-Z ]*PRIVATE KEY-----[\s\S]*?-----END [A-Z ]*PRIVATE KEY-----`),
		RedactedKeyPlaceholder,
	},
	{
		regexp.MustCompile(`(?i)\b(bearer)\s+[A-Za-z0-9._~+/=-]+`),
		"${1} " + RedactedTokenPlaceholder,
	},
	{
		regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`),
		RedactedJWTPlaceholder,
	},
	{
		regexp.MustCompile(`ya29\.[A-Za-z0-9_.-]+`),
		RedactedTokenPlaceholder,
	},
	{
		regexp.MustCompile(`AIza[0-9A-Za-z_-]{35}`),
		RedactedKeyPlaceholder,
	},
	{
		regexp.MustCompile(`(?i)(api[_-]?key|secret|access[_-]?token|key[_-]?content)(['"\s:=]+)[A-Za-z0-9_\-.~+/]{8,}`),
		RedactedKeyPlaceholder,
	},
	{
		regexp.MustCompile(`\b[0-9a-fA-F]{64}\b`),
		RedactedDeviceTokenPlaceholder,
	},
	{
		regexp.MustCompile(`(^|\s)(/[\w.-]+){2,}`),
		"${1}" + RedactedPathPlaceholder,
	},
	{
		regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
		RedactedEmailPlaceholder,
	},
}

// String redacts sensitive information from the input string
func String(input string) string {
	if input == "" {
		return input
	}

	result := input
	for _, r := range rules {
		result = r.pattern.ReplaceAllString(result, r.replacement)
	}
	return result
}

// Error redacts sensitive information from an error's Error() output
func Error(err error) string {
	if err == nil {
		return ""
	}

	return String(err.Error())
}
