package httptransport

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestDefaultServerConfig(t *testing.T) {
	cfg := DefaultServerConfig("api", ":8080")
	srv := NewServer(cfg, http.NotFoundHandler())

	assert.Equal(t, ":8080", srv.Addr)
	assert.Equal(t, 2*time.Second, srv.ReadHeaderTimeout)
	assert.Equal(t, 1<<16, srv.MaxHeaderBytes)
	assert.Equal(t, 15*time.Second, srv.shutdownTimeout)
}

func TestNewServerFillsShutdownDefaults(t *testing.T) {
	srv := NewServer(ServerConfig{Address: ":0"}, http.NotFoundHandler())
	assert.Equal(t, "http", srv.name)
	assert.Equal(t, 10*time.Second, srv.shutdownTimeout)
}

func TestServeStopsOnContextCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "ok")
	})
	srv := NewServer(DefaultServerConfig("test", ln.Addr().String()), handler)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Get("http://" + ln.Addr().String())
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, "ok", string(body))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after cancel")
	}
}

func TestRunReportsListenErrors(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	srv := NewServer(DefaultServerConfig("busy", ln.Addr().String()), http.NotFoundHandler())
	err = srv.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "busy listen")
}
