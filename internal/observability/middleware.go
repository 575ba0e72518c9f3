package observability

import (
	"net/http"
	"strconv"

	"github.com/felixge/httpsnoop"
	"go.uber.org/zap"
)

// RequestLogger logs every request and feeds the HTTP metrics. Paths are
// reported with their first two segments only so ids do not explode label
// cardinality.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m := httpsnoop.CaptureMetrics(next, w, r)
			path := routeLabel(r.URL.Path)

			httpRequestsCounter.WithLabelValues(r.Method, path, strconv.Itoa(m.Code)).Inc()
			httpDuration.WithLabelValues(r.Method, path).Observe(m.Duration.Seconds())

			logger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", m.Code),
				zap.Duration("duration", m.Duration),
				zap.Int64("bytes", m.Written),
			)
		})
	}
}

func routeLabel(path string) string {
	segments := 0
	for i := 1; i < len(path); i++ {
		if path[i] == '/' {
			segments++
			if segments == 2 {
				return path[:i]
			}
		}
	}
	return path
}
