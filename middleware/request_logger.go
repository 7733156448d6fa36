package middleware

import (
	"net/http"
	"time"

	"github.com/felixge/httpsnoop"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
)

func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		metrics := httpsnoop.CaptureMetrics(next, w, r)
		duration := metrics.Duration
		if duration == 0 {
			duration = time.Since(start)
		}

		spanContext := trace.SpanFromContext(r.Context()).SpanContext()
		entry := requestLogger(r).WithFields(logrus.Fields{
			"status":      metrics.Code,
			"duration_ms": duration.Milliseconds(),
			"bytes":       metrics.Written,
		})
		if spanContext.IsValid() {
			entry = entry.WithFields(logrus.Fields{
				"trace_id": spanContext.TraceID().String(),
				"span_id":  spanContext.SpanID().String(),
			})
		}

		switch {
		case metrics.Code >= http.StatusInternalServerError:
			entry.Error("request")
		case metrics.Code >= http.StatusBadRequest:
			entry.Warn("request")
		default:
			entry.Info("request")
		}
	})
}
