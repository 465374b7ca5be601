package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/waclient/internal/logger"
)

const RequestIDHeader = "X-Request-ID"

// RequestLog логирует каждый HTTP-запрос: method, path, статус и время выполнения.
// Id запроса берётся из X-Request-ID (клиент remotestore его проставляет) или генерируется.
func RequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		wrap := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrap, r.WithContext(context.WithValue(r.Context(), RequestIDKey, id)))
		logger.Debugf("http %s %s %d request_id=%s %v", r.Method, r.URL.Path, wrap.status, id, time.Since(start))
		logger.LogDuration("http "+r.Method+" "+r.URL.Path, start)
	})
}
