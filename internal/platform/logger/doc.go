// Package logger provides structured logging functionality for the application.
//
// It utilizes Go's standard library log/slog package to implement structured JSON logging
// with configurable log levels. Loggers are constructed explicitly and injected into
// each component; nothing in the engine reads a global logger.
package logger
