package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Logger logs one line per request through chi's request logger.
func Logger(logger zerolog.Logger) func(next http.Handler) http.Handler {
	return middleware.RequestLogger(&StructuredLogger{logger: logger})
}

type StructuredLogger struct {
	logger zerolog.Logger
}

func (l *StructuredLogger) NewLogEntry(r *http.Request) middleware.LogEntry {
	entry := l.logger.With().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Str("remote_addr", r.RemoteAddr).
		Str("user_agent", r.UserAgent()).
		Str("request_id", middleware.GetReqID(r.Context())).
		Logger()
	return &StructuredLoggerEntry{logger: entry}
}

type StructuredLoggerEntry struct {
	logger zerolog.Logger
}

func (l *StructuredLoggerEntry) Write(status, bytes int, header http.Header, elapsed time.Duration, extra any) {
	event := l.logger.Info()
	switch {
	case status >= 500:
		event = l.logger.Error()
	case status >= 400:
		event = l.logger.Warn()
	}
	event.Int("status", status).
		Int("bytes", bytes).
		Dur("duration", elapsed).
		Msg("HTTP request")
}

func (l *StructuredLoggerEntry) Panic(v any, stack []byte) {
	l.logger.Error().
		Interface("panic", v).
		Bytes("stack", stack).
		Msg("HTTP handler panic")
}
