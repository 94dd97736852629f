package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"openmarket/backend/internal/audit"
	"openmarket/backend/internal/telemetry"
	otelemit "openmarket/backend/internal/telemetry/otel"
)

// httpRequestMetadata is the JSON shape stored in Event.Metadata for http_request events.
type httpRequestMetadata struct {
	Method     string `json:"method"`
	Route      string `json:"route"`
	Action     string `json:"action"`
	Resource   string `json:"resource"`
	StatusCode int    `json:"status_code"`
	DurationMs int64  `json:"duration_ms"`
	ClientIP   string `json:"client_ip"`
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Telemetry records a request counter and duration histogram per route and
// emits a telemetry event after each request. Best-effort: failures do not
// fail the request. skipRoutes is the set of chi route patterns to not emit
// (e.g. /healthz).
func Telemetry(meter metric.Meter, emitter telemetry.EventEmitter, skipRoutes map[string]bool) func(http.Handler) http.Handler {
	requests, _ := meter.Int64Counter("http.server.requests")
	duration, _ := meter.Float64Histogram("http.server.duration",
		metric.WithUnit("ms"))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = r.URL.Path
			}
			if skipRoutes[route] {
				return
			}
			elapsed := time.Since(start)

			attrs := metric.WithAttributes(
				attribute.String("http.route", route),
				attribute.String("http.method", r.Method),
				attribute.Int("http.status_code", rec.status),
			)
			requests.Add(r.Context(), 1, attrs)
			duration.Record(r.Context(), float64(elapsed.Milliseconds()), attrs)

			userID, _ := GetUserID(r.Context())
			ar := audit.ParseRoute(r.Method, route)
			meta := httpRequestMetadata{
				Method:     r.Method,
				Route:      route,
				Action:     ar.Action,
				Resource:   ar.Resource,
				StatusCode: rec.status,
				DurationMs: elapsed.Milliseconds(),
				ClientIP:   GetClientIP(r.Context()),
			}
			metaJSON, _ := json.Marshal(meta)
			otelemit.EmitAsync(emitter, &telemetry.Event{
				UserID:    userID,
				EventType: "http_request",
				Source:    "http_middleware",
				Metadata:  string(metaJSON),
				CreatedAt: time.Now().UTC(),
			})
		})
	}
}
