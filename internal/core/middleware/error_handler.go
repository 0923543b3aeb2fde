package middleware

import (
	"net/http"
	"time"

	"github.com/Nzyazin/currency-tracker/internal/core/logger"
)

// ErrorHandler logs every request that ended with an error status.
type ErrorHandler struct {
	handler http.Handler
	log     logger.Logger
}

func WithErrorHandler(log logger.Logger) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		return &ErrorHandler{handler: h, log: log}
	}
}

func (eh *ErrorHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
	begin := time.Now()

	eh.handler.ServeHTTP(sw, r)

	if sw.status < http.StatusBadRequest {
		return
	}
	fields := []logger.Field{
		logger.StringField("request_id", RequestID(r.Context())),
		logger.StringField("method", r.Method),
		logger.StringField("path", r.URL.Path),
		logger.IntField("status", sw.status),
		logger.DurationField("took", time.Since(begin)),
	}
	if sw.status >= http.StatusInternalServerError {
		eh.log.Error("request processing failed", fields...)
		return
	}
	eh.log.Warn("request rejected", fields...)
}

type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}
