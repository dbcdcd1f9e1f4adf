// Package middleware holds the HTTP middleware chain wrapped around the API router.
package middleware

import (
	"encoding/json"
	"net/http"
	"runtime/debug"

	log "github.com/sirupsen/logrus"

	"example.com/progression/internal/observability"
)

func PanicRecovery(instr *observability.HTTPInstrumentation) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(respWriter http.ResponseWriter, req *http.Request) {
			defer func() {
				if r := recover(); r != nil {
					log.Errorf("http: panic serving %s: %v\n%s", req.URL.Path, r, debug.Stack())
					if instr != nil {
						instr.CounterHandleRequestPanic.Inc()
					}
					respWriter.Header().Set("Content-Type", "application/json")
					respWriter.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(respWriter).Encode(map[string]string{
						"type":   "internal",
						"code":   "INTERNAL",
						"detail": "internal server error",
					})
				}
			}()

			next.ServeHTTP(respWriter, req)
		})
	}
}
