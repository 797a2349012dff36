package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zappedin/orchestrator/internal/browserctx"
	"github.com/zappedin/orchestrator/internal/intake"
	"github.com/zappedin/orchestrator/internal/loginflow"
	"github.com/zappedin/orchestrator/internal/notify"
	"github.com/zappedin/orchestrator/internal/ratelimit"
	"github.com/zappedin/orchestrator/internal/statestore"
	"github.com/zappedin/orchestrator/pkg/models"
)

type failingLauncher struct{}

func (failingLauncher) Launch(ctx context.Context) (playwright.Browser, browserctx.ReleaseFunc, error) {
	return nil, nil, errors.New("no browser available")
}

func newTestRouter(t *testing.T, limiter *ratelimit.Limiter) http.Handler {
	t.Helper()

	store, err := statestore.New(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	logger := zap.NewNop()
	intakeMgr := intake.NewManager(
		nil,
		store,
		func(string) browserctx.Launcher { return failingLauncher{} },
		notify.NewLogNotifier(logger),
		loginflow.DefaultConfig(),
		browserctx.DefaultConfig(),
		2,
		logger,
	)

	handler := NewHandler(intakeMgr, notify.NewHub(logger), logger)
	return handler.SetupRoutes(limiter)
}

func postActivation(t *testing.T, router http.Handler, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/v1/activations", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateActivationRequiresAccountOrID(t *testing.T) {
	router := newTestRouter(t, ratelimit.NewLimiter(100, 10))

	rec := postActivation(t, router, map[string]any{})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateActivationIsAcceptedImmediately(t *testing.T) {
	router := newTestRouter(t, ratelimit.NewLimiter(100, 10))

	rec := postActivation(t, router, models.ActivateRequest{
		Account: &models.Account{
			Username: "alice",
			Password: "hunter2",
			Proxy:    models.Proxy{Host: "proxy.example.com", Port: 8080},
		},
	})

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), string(models.StatusActivating))
	assert.NotContains(t, rec.Body.String(), "hunter2", "password never echoed")
}

func TestListActivationsEmpty(t *testing.T) {
	router := newTestRouter(t, ratelimit.NewLimiter(100, 10))

	req := httptest.NewRequest("GET", "/v1/activations", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestGetUnknownActivationIs404(t *testing.T) {
	router := newTestRouter(t, ratelimit.NewLimiter(100, 10))

	for _, path := range []string{
		"/v1/activations/ghost",
		"/v1/activations/ghost/state",
		"/v1/activations/ghost/screenshot",
	} {
		req := httptest.NewRequest("GET", path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}

func TestRateLimitExceeded(t *testing.T) {
	router := newTestRouter(t, ratelimit.NewLimiter(100, 1))

	body := models.ActivateRequest{
		Account: &models.Account{
			Username: "alice",
			Password: "hunter2",
			Proxy:    models.Proxy{Host: "proxy.example.com", Port: 8080},
		},
	}
	first := postActivation(t, router, body)
	assert.NotEqual(t, http.StatusTooManyRequests, first.Code)

	second := postActivation(t, router, body)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(t, ratelimit.NewLimiter(100, 10))

	req := httptest.NewRequest("GET", "/v1/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
