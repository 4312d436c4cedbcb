package observability

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/getsentry/sentry-go"

	"postfolio/internal/httpx"
)

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	hijacked   bool
}

func (r *statusRecorder) WriteHeader(status int) {
	r.statusCode = status
	r.ResponseWriter.WriteHeader(status)
}

// Hijack lets websocket upgrades pass through the recorder. The status written
// on a hijacked connection is not visible here, so none is recorded.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.hijacked = true
	return hijacker.Hijack()
}

func RequestLoggingMiddleware(logger *Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now().UTC()
		recorder := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(recorder, r)

		fields := map[string]any{
			"method":      r.Method,
			"path":        r.URL.Path,
			"duration_ms": time.Since(start).Milliseconds(),
			"ip":          httpx.ClientIP(r),
		}
		if recorder.hijacked {
			fields["hijacked"] = true
		} else {
			fields["status"] = recorder.statusCode
		}
		// Pattern is filled in by the mux once it routes the request.
		if r.Pattern != "" {
			fields["route"] = r.Pattern
		}
		if recorder.statusCode >= http.StatusInternalServerError {
			logger.Error("http_request", fields)
			return
		}
		logger.Info("http_request", fields)
	})
}

func RecoverMiddleware(logger *Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				hub := sentry.CurrentHub().Clone()
				hub.Scope().SetRequest(r)
				hub.Scope().SetExtra("panic", rec)
				hub.Scope().SetExtra("stack", string(debug.Stack()))
				hub.CaptureMessage("panic in request")

				logger.Error("panic_recovered", map[string]any{
					"path":   r.URL.Path,
					"method": r.Method,
					"panic":  rec,
				})

				httpx.WriteMessage(w, http.StatusInternalServerError, "Internal server error")
			}
		}()

		next.ServeHTTP(w, r)
	})
}
