package auth

import (
	"encoding/json"
	"net/http"
	"strings"
)

// Middleware verifies bearer tokens and stores the caller's claims in the request context.
type Middleware struct {
	cfg    Config
	public map[string]struct{}
}

// NewMiddleware builds a Middleware. Paths listed in public, plus /healthz and /metrics,
// and every CORS preflight pass through unauthenticated.
func NewMiddleware(cfg Config, public ...string) Middleware {
	open := map[string]struct{}{"/healthz": {}, "/metrics": {}}
	for _, path := range public {
		open[path] = struct{}{}
	}
	return Middleware{cfg: cfg, public: open}
}

// Wrap attaches authentication handling to an http.Handler.
func (m Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := m.public[r.URL.Path]; ok || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := m.parseRequest(r)
		if err != nil {
			writeAuthError(w, http.StatusUnauthorized, "UNAUTHORIZED", err.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

// RequireScope rejects requests whose claims lack scope.
func RequireScope(scope string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := FromContext(r.Context())
		if !ok || !claims.HasScope(scope) {
			writeAuthError(w, http.StatusForbidden, "INSUFFICIENT_SCOPE", "missing scope "+scope)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAnyScope rejects requests whose claims carry none of scopes.
func RequireAnyScope(next http.Handler, scopes ...string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := FromContext(r.Context())
		if ok {
			for _, scope := range scopes {
				if claims.HasScope(scope) {
					next.ServeHTTP(w, r)
					return
				}
			}
		}
		writeAuthError(w, http.StatusForbidden, "INSUFFICIENT_SCOPE", "missing scope "+strings.Join(scopes, " or "))
	})
}

func (m Middleware) parseRequest(r *http.Request) (*Claims, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, ErrMissingToken
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return nil, ErrInvalidToken
	}
	return ParseClaims(token, m.cfg)
}

func writeAuthError(w http.ResponseWriter, status int, code, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	kind := "unauthorized"
	if status == http.StatusForbidden {
		kind = "forbidden"
	}
	_ = json.NewEncoder(w).Encode(map[string]string{
		"type":   kind,
		"code":   code,
		"detail": detail,
	})
}
