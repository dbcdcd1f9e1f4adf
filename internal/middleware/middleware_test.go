package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-redis/redis_rate/v9"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"example.com/progression/internal/auth"
	"example.com/progression/internal/middleware"
	"example.com/progression/internal/observability"
)

type panicRecTestHandler struct {
	panic  bool
	called bool
}

func (p *panicRecTestHandler) ServeHTTP(http.ResponseWriter, *http.Request) {
	p.called = true
	if p.panic {
		panic("YOLO")
	}
}

func TestPanicRecovery(t *testing.T) {
	instr := observability.NewHTTPInstrumentation(prometheus.NewRegistry())

	next := &panicRecTestHandler{}
	rr := httptest.NewRecorder()
	middleware.PanicRecovery(instr)(next).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, next.called)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, float64(0), testutil.ToFloat64(instr.CounterHandleRequestPanic))

	next = &panicRecTestHandler{panic: true}
	rr = httptest.NewRecorder()
	middleware.PanicRecovery(instr)(next).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, next.called)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), `"code":"INTERNAL"`)
	assert.Equal(t, float64(1), testutil.ToFloat64(instr.CounterHandleRequestPanic))
}

func TestCors(t *testing.T) {
	testCases := []struct {
		name           string
		origin         string
		method         string
		allowed        []string
		expectCors     bool
		expectedStatus int
	}{
		{name: "AllowedOrigin", origin: "https://app.example.com", allowed: []string{"https://app.example.com"}, expectCors: true, expectedStatus: http.StatusOK},
		{name: "NotAllowedOrigin", origin: "https://evil.example.com", allowed: []string{"https://app.example.com"}, expectedStatus: http.StatusForbidden},
		{name: "Wildcard", origin: "https://anything.example.com", allowed: []string{"*"}, expectCors: true, expectedStatus: http.StatusOK},
		{name: "NoOrigin", allowed: nil, expectedStatus: http.StatusOK},
		{name: "Preflight", origin: "https://app.example.com", method: http.MethodOptions, allowed: []string{"https://app.example.com"}, expectCors: true, expectedStatus: http.StatusNoContent},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			method := tc.method
			if method == "" {
				method = http.MethodGet
			}
			req := httptest.NewRequest(method, "/v1/workouts", nil)
			if tc.origin != "" {
				req.Header.Set("Origin", tc.origin)
			}
			rr := httptest.NewRecorder()
			handler := middleware.Cors(tc.allowed)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
			handler.ServeHTTP(rr, req)

			assert.Equal(t, tc.expectedStatus, rr.Code)
			if tc.expectCors {
				assert.Equal(t, tc.origin, rr.Header().Get("Access-Control-Allow-Origin"))
			} else {
				assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
			}
		})
	}
}

func TestRequestMetricsUsesRouteTemplate(t *testing.T) {
	instr := observability.NewHTTPInstrumentation(prometheus.NewRegistry())

	r := mux.NewRouter()
	r.Use(middleware.RequestMetrics(instr))
	r.HandleFunc("/v1/workouts/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"a", "b", "c"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/workouts/"+id, nil))
	}

	assert.Equal(t, float64(3), testutil.ToFloat64(instr.CounterRequests.WithLabelValues(http.MethodGet, "/v1/workouts/{id}", "404")))
	assert.Equal(t, 1, testutil.CollectAndCount(instr.HistRequestDuration))
}

func TestRateLimit(t *testing.T) {
	ctrl := gomock.NewController(t)
	limiter := NewMockRequestRateLimiter(ctrl)
	instr := observability.NewHTTPInstrumentation(prometheus.NewRegistry())

	limit := redis_rate.PerMinute(2)
	gomock.InOrder(
		limiter.EXPECT().Allow(gomock.Any(), "api:user:u-1", limit).Return(&redis_rate.Result{Limit: limit, Allowed: 1, Remaining: 1}, nil),
		limiter.EXPECT().Allow(gomock.Any(), "api:user:u-1", limit).Return(&redis_rate.Result{Limit: limit, Allowed: 0, RetryAfter: 20 * time.Second}, nil),
		limiter.EXPECT().Allow(gomock.Any(), "api:ip:10.0.0.7", limit).Return(nil, errors.New("redis down")),
	)

	calls := 0
	handler := middleware.RateLimit(limiter, "api", 2, instr)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))

	authed := func() *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/v1/progress", nil)
		return req.WithContext(auth.WithClaims(req.Context(), &auth.Claims{Subject: "u-1"}))
	}

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, authed())
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, authed())
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "21", rr.Header().Get("Retry-After"))
	assert.Contains(t, rr.Body.String(), "RATE_LIMITED")

	anon := httptest.NewRequest(http.MethodGet, "/v1/progress", nil)
	anon.RemoteAddr = "10.0.0.7:5555"
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, anon)
	assert.Equal(t, http.StatusOK, rr.Code)

	assert.Equal(t, 2, calls)
	assert.Equal(t, float64(1), testutil.ToFloat64(instr.CounterRateLimited.WithLabelValues("api")))
}

func TestRateLimitDisabled(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	handler := middleware.RateLimit(nil, "api", 10, nil)(next)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

type trackingBody struct {
	*strings.Reader
	closed bool
}

func (b *trackingBody) Close() error {
	b.closed = true
	return nil
}

func TestDrainAndCloseRequest(t *testing.T) {
	body := &trackingBody{Reader: strings.NewReader(`{"ignored":true}`)}
	req := httptest.NewRequest(http.MethodPost, "/v1/workouts", nil)
	req.Body = body

	middleware.DrainAndCloseRequest()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).
		ServeHTTP(httptest.NewRecorder(), req)

	require.True(t, body.closed)
	assert.Equal(t, 0, body.Len())
}

func TestLogRequestPassesThrough(t *testing.T) {
	rr := httptest.NewRecorder()
	middleware.LogRequest()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil).WithContext(context.Background()))
	assert.Equal(t, http.StatusAccepted, rr.Code)
}
