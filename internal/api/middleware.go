package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"vidmerge/internal/logging"
	"vidmerge/internal/services"
)

// RequestIDHeader carries the request correlation id.
const RequestIDHeader = "X-Request-Id"

// statusRecorder captures the status and error kind for the access log.
type statusRecorder struct {
	http.ResponseWriter
	status int
	kind   string
	bytes  int64
}

func (r *statusRecorder) WriteHeader(status int) {
	if r.status == 0 {
		r.status = status
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(p []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(p)
	r.bytes += int64(n)
	return n, err
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// withRequestID accepts a client-supplied X-Request-Id when it is a UUID and
// mints one otherwise, echoes it on the response and logs the request.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(requestID); err != nil || len(requestID) != 36 {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)
		ctx := services.WithRequestID(r.Context(), requestID)

		rec := &statusRecorder{ResponseWriter: w}
		started := time.Now()
		next.ServeHTTP(rec, r.WithContext(ctx))
		if rec.status == 0 {
			rec.status = http.StatusOK
		}

		attrs := []logging.Attr{
			logging.String(logging.FieldEventType, "http_request"),
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", rec.status),
			logging.Int64("bytes", rec.bytes),
			logging.Duration("duration", time.Since(started)),
		}
		if rec.kind != "" {
			attrs = append(attrs, logging.String(logging.FieldErrorKind, rec.kind))
		}
		logging.WithContext(ctx, s.logger).Info("http request", logging.Args(attrs...)...)
	})
}

func recordKind(w http.ResponseWriter, kind string) {
	for {
		switch rw := w.(type) {
		case *statusRecorder:
			rw.kind = kind
			return
		case interface{ Unwrap() http.ResponseWriter }:
			w = rw.Unwrap()
		default:
			return
		}
	}
}
