package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"example.com/progression/internal/observability"
)

func RequestMetrics(instr *observability.HTTPInstrumentation) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(respWriter http.ResponseWriter, req *http.Request) {
			begin := time.Now()
			resp := wrapResponseWriter(respWriter)

			next.ServeHTTP(resp, req)

			route := routeTemplate(req)
			instr.HistRequestDuration.With(prometheus.Labels{
				"method": req.Method,
				"route":  route,
			}).Observe(time.Since(begin).Seconds())
			instr.CounterRequests.With(prometheus.Labels{
				"method": req.Method,
				"route":  route,
				"status": strconv.Itoa(resp.statusCode),
			}).Inc()
		})
	}
}

// routeTemplate keeps label cardinality bounded by using the matched mux template.
func routeTemplate(req *http.Request) string {
	if route := mux.CurrentRoute(req); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func wrapResponseWriter(w http.ResponseWriter) *responseWriter {
	if rw, ok := w.(*responseWriter); ok {
		return rw
	}
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (r *responseWriter) WriteHeader(statusCode int) {
	if !r.wroteHeader {
		r.statusCode = statusCode
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(statusCode)
}

func (r *responseWriter) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
