package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msto63/mdwterm/pkg/core/health"
	terrors "github.com/msto63/mdwterm/pkg/terminal/errors"
	"github.com/msto63/mdwterm/pkg/terminal/router"
	"github.com/msto63/mdwterm/pkg/terminal/runtime"
	"github.com/msto63/mdwterm/pkg/terminal/transport"
)

var echo = router.RouterFunc(func(ctx context.Context, rc *router.Context) (*router.Result, error) {
	if rc.Route.Raw() == "unknown" {
		return nil, terrors.New(terrors.CodeInvalidCommand, "the command is not registered")
	}
	p, _ := transport.PeerFromContext(ctx)
	return &router.Result{Route: rc.Route, Handler: &router.HandlerResult{
		Run: &runtime.RunResult{Value: p.Transport + ":" + rc.Route.Raw()},
	}}, nil
})

func newRouter(t *testing.T, opts router.RouterOptions, registry *health.Registry) *Router {
	t.Helper()
	r, err := NewRouter("127.0.0.1:0", transport.NewDispatcher(echo, nil, opts), opts, registry)
	require.NoError(t, err)
	return r
}

func serve(t *testing.T, opts router.RouterOptions) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(newRouter(t, opts, nil).Handler())
	t.Cleanup(srv.Close)
	return srv, NewClient(srv.URL, srv.Client())
}

func TestRoute_BatchRoundTrip(t *testing.T) {
	_, c := serve(t, router.DefaultOptions().Router)

	in := transport.Batch("b1",
		transport.TerminalRequest{ID: "cmd1", Raw: "command1"},
		transport.TerminalRequest{ID: "cmd2", Raw: "command2"},
		transport.TerminalRequest{ID: "cmd3", Raw: "unknown"},
	)
	out, err := c.Send(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, "b1", out.BatchID)
	require.Len(t, out.Requests, 3)
	for i, req := range out.Requests {
		assert.Equal(t, in.Requests[i].ID, req.ID)
		assert.Equal(t, in.Requests[i].Raw, req.Raw)
	}
	assert.Equal(t, "http:command1", out.Requests[0].Result)
	assert.Equal(t, "http:command2", out.Requests[1].Result)
	assert.True(t, out.Requests[2].IsError)
}

func TestRoute_MalformedEnvelope(t *testing.T) {
	srv, c := serve(t, router.DefaultOptions().Router)

	resp, err := srv.Client().Post(srv.URL+RoutePath, "application/json", strings.NewReader(`{"requests": [`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var out transport.TerminalOutput
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	e, ok := transport.ErrorOf(out.Requests[0])
	require.True(t, ok)
	assert.Equal(t, "INVALID_REQUEST", e.Error)

	_, err = c.Send(context.Background(), transport.TerminalInput{})
	assert.True(t, terrors.HasCode(err, terrors.CodeInvalidRequest), "got %v", err)
}

func TestRoute_TooLarge(t *testing.T) {
	opts := router.DefaultOptions().Router
	opts.MaxMessageSize = 64
	_, c := serve(t, opts)

	out, err := c.SendRaw(context.Background(), strings.Repeat("x", 128))
	assert.True(t, terrors.HasCode(err, terrors.CodeInvalidRequest), "got %v", err)
	require.Len(t, out.Requests, 1)
	assert.True(t, out.Requests[0].IsError)
}

func TestRoute_DisableResponse(t *testing.T) {
	opts := router.DefaultOptions().Router
	opts.DisableResponse = true
	srv, c := serve(t, opts)

	out, err := c.SendRaw(context.Background(), "ping")
	require.NoError(t, err)
	assert.Empty(t, out.Requests)

	resp, err := srv.Client().Post(srv.URL+RoutePath, "application/json", strings.NewReader(`{"requests":[{"raw":"ping"}]}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestWebSocket(t *testing.T) {
	srv, _ := serve(t, router.DefaultOptions().Router)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + WebSocketPath
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("cmd1\x1cping")))
	var out transport.TerminalOutput
	require.NoError(t, conn.ReadJSON(&out))
	require.Len(t, out.Requests, 1)
	assert.Equal(t, "cmd1", out.Requests[0].ID)
	assert.Equal(t, "websocket:ping", out.Requests[0].Result)

	require.NoError(t, conn.WriteJSON(transport.Single("cmd2", "pong")))
	require.NoError(t, conn.ReadJSON(&out))
	assert.Equal(t, "cmd2", out.Requests[0].ID)
	assert.Equal(t, "websocket:pong", out.Requests[0].Result)
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name     string
		registry func() *health.Registry
		want     int
	}{
		{"no registry", func() *health.Registry { return nil }, http.StatusOK},
		{"healthy", func() *health.Registry {
			r := health.NewRegistry("mdwterm", "test")
			r.Register(health.AlwaysHealthy("store"))
			return r
		}, http.StatusOK},
		{"unhealthy", func() *health.Registry {
			r := health.NewRegistry("mdwterm", "test")
			r.RegisterFunc("license", func(context.Context) health.CheckResult {
				return health.CheckResult{Status: health.StatusUnhealthy}
			})
			return r
		}, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRouter(t, router.DefaultOptions().Router, tt.registry())
			rec := httptest.NewRecorder()
			r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, HealthPath, nil))
			assert.Equal(t, tt.want, rec.Code)
			assert.Contains(t, rec.Body.String(), `"status"`)
		})
	}
}

func TestServe(t *testing.T) {
	r := newRouter(t, router.DefaultOptions().Router, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Serve(ctx) }()
	<-r.Ready()

	out, err := NewClient(r.Addr().String(), nil).SendRaw(context.Background(), "ping")
	require.NoError(t, err)
	assert.Equal(t, "http:ping", out.Requests[0].Result)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Serve() did not return")
	}
}
