package diagnostics_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-managers/framework/diagnostics"
	"github.com/km-arc/go-managers/framework/lifecycle"
	"github.com/km-arc/go-managers/framework/logging"
	"github.com/km-arc/go-managers/framework/world"
)

type namedManager struct {
	lifecycle.BaseManager
	name string
}

func (m *namedManager) Name() string { return m.name }

func (m *namedManager) Init(context.Context) error {
	m.MarkInitialized()
	return nil
}

type fakeSupervisor struct {
	state    lifecycle.State
	managers []lifecycle.Manager
}

func (f *fakeSupervisor) State() lifecycle.State        { return f.state }
func (f *fakeSupervisor) IsInitialized() bool           { return f.state == lifecycle.Ready }
func (f *fakeSupervisor) Managers() []lifecycle.Manager { return f.managers }

func get(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var body map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestHealth(t *testing.T) {
	h := diagnostics.Handler(&fakeSupervisor{}, nil, logging.Discard())
	rec, body := get(t, h, "/health")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, map[string]any{"status": "ok"}, body["data"])
}

func TestReady(t *testing.T) {
	sup := &fakeSupervisor{state: lifecycle.Initializing}
	h := diagnostics.Handler(sup, nil, logging.Discard())

	rec, body := get(t, h, "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "Managers are still initializing.", body["message"])

	sup.state = lifecycle.Ready
	rec, body = get(t, h, "/ready")
	assert.Equal(t, http.StatusOK, rec.Code)
	data := body["data"].(map[string]any)
	assert.Equal(t, true, data["ready"])
	assert.Equal(t, lifecycle.Ready.String(), data["state"])
}

func TestManagers(t *testing.T) {
	audio := &namedManager{name: "AudioManager"}
	audio.MarkInitialized()
	sup := &fakeSupervisor{managers: []lifecycle.Manager{audio, &namedManager{name: "UIManager"}}}
	h := diagnostics.Handler(sup, nil, logging.Discard())

	rec, body := get(t, h, "/managers")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{
		map[string]any{"name": "AudioManager", "order": float64(0), "initialized": true},
		map[string]any{"name": "UIManager", "order": float64(1), "initialized": false},
	}, body["data"])

	rec, body = get(t, h, "/managers/UIManager")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "UIManager", body["data"].(map[string]any)["name"])

	rec, _ = get(t, h, "/managers/Nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestScene(t *testing.T) {
	w := world.New("Boot", logging.Discard())
	h := diagnostics.Handler(&fakeSupervisor{}, w, logging.Discard())

	w.LoadScene("Battle", world.LoadAdditive)
	rec, body := get(t, h, "/scene")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"name": "Battle", "mode": "additive"}, body["data"])

	rec, _ = get(t, diagnostics.Handler(&fakeSupervisor{}, nil, nil), "/scene")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_WithRealSupervisor(t *testing.T) {
	m := &namedManager{name: "AudioManager"}
	sup := lifecycle.New(lifecycle.Hooks{
		Register: func(r *lifecycle.Registry) { r.Add(m) },
	}, lifecycle.Options{Logger: logging.Discard()})
	t.Cleanup(sup.Close)
	h := diagnostics.Handler(sup, nil, logging.Discard())

	rec, _ := get(t, h, "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	require.NoError(t, sup.Start(context.Background()))
	rec, _ = get(t, h, "/ready")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_StopsOnCancel(t *testing.T) {
	srv := diagnostics.NewServer("127.0.0.1:0", diagnostics.Handler(&fakeSupervisor{}, nil, nil), logging.Discard())
	assert.Equal(t, "127.0.0.1:0", srv.Addr())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()
	cancel()
	assert.NoError(t, <-done)
}
