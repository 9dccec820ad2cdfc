// Package api handles incoming HTTP requests, request validation, and
// response formatting. It adapts HTTP to the analysis pipeline, the device
// registry, and the quota tracker. Handlers never expose raw error text:
// errors are mapped to a status code and a safe message in errors.go.
package api
