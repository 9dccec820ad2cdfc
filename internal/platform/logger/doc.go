// Package logger provides structured logging functionality for the application.
//
// It utilizes Go's standard library log/slog package to implement structured JSON logging
// with configurable log levels, and carries request-scoped loggers (tagged with a
// trace ID) through context.Context so that handlers, the job pipeline and the push
// dispatcher log with the same correlation fields.
package logger
