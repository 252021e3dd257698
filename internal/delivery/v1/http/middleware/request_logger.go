package middleware

import (
	"net/http"
	"time"

	"github.com/DRSN-tech/marketplace/pkg/logger"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// RequestLogger пишет по строке на запрос: метод, путь, статус, длительность.
// 5xx логируются как ошибки, 4xx как предупреждения.
func RequestLogger(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			const format = "HTTP %s %s status=%d bytes=%d duration=%s ip=%s request_id=%s"
			args := []any{r.Method, r.URL.Path, status, ww.BytesWritten(), time.Since(start), clientIP(r), chimw.GetReqID(r.Context())}

			switch {
			case status >= http.StatusInternalServerError:
				log.Errorf(nil, format, args...)
			case status >= http.StatusBadRequest:
				log.Warnf(format, args...)
			default:
				log.Infof(format, args...)
			}
		})
	}
}
