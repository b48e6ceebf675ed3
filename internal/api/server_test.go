package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"prodsync/internal/config"
	"prodsync/internal/engine"
	"prodsync/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockController struct {
	mock.Mock
}

func (m *mockController) Start(ctx context.Context, limit int, force bool) (models.SyncJob, error) {
	args := m.Called(ctx, limit, force)
	return args.Get(0).(models.SyncJob), args.Error(1)
}

func (m *mockController) Cancel(ctx context.Context) (models.SyncJob, error) {
	args := m.Called(ctx)
	return args.Get(0).(models.SyncJob), args.Error(1)
}

func (m *mockController) Status(ctx context.Context) (models.Progress, error) {
	args := m.Called(ctx)
	return args.Get(0).(models.Progress), args.Error(1)
}

func (m *mockController) RunChunk(ctx context.Context) (models.ChunkResult, error) {
	args := m.Called(ctx)
	return args.Get(0).(models.ChunkResult), args.Error(1)
}

type mockHooks struct {
	mock.Mock
}

func (m *mockHooks) OnProductSaved(ctx context.Context, productID int64) error {
	args := m.Called(ctx, productID)
	return args.Error(0)
}

func (m *mockHooks) OnProductDeleted(ctx context.Context, productID int64) error {
	args := m.Called(ctx, productID)
	return args.Error(0)
}

func testConfig() *config.APIConfig {
	return &config.APIConfig{
		Enabled: true,
		HTTP:    config.APIHTTPConfig{Enabled: true, Port: 8080},
		Auth: config.APIAuthConfig{
			Enabled:      true,
			HeaderAPIKey: "x-api-key",
			APIKeys: []config.APIClientKey{
				{Key: "admin-key", Name: "admin", Permissions: []string{"read:sync", "manage:sync"}},
				{Key: "reader-key", Name: "reader", Permissions: []string{"read:sync"}},
			},
		},
	}
}

func newTestServer(t *testing.T, ctl Controller, hooks ProductHooks) *httptest.Server {
	t.Helper()
	logger := zerolog.Nop()
	srv := NewHTTPServer(testConfig(), ctl, hooks, &logger)
	ts := httptest.NewServer(srv.server.Handler)
	t.Cleanup(ts.Close)
	return ts
}

func doRequest(t *testing.T, ts *httptest.Server, method, path, apiKey string, body []byte) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, ts.URL+path, bytes.NewReader(body))
	require.NoError(t, err)
	if apiKey != "" {
		req.Header.Set("x-api-key", apiKey)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestAuth(t *testing.T) {
	ctl := new(mockController)
	ts := newTestServer(t, ctl, nil)

	t.Run("MissingKey", func(t *testing.T) {
		resp := doRequest(t, ts, http.MethodGet, "/api/v1/sync/progress", "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("InvalidKey", func(t *testing.T) {
		resp := doRequest(t, ts, http.MethodGet, "/api/v1/sync/progress", "wrong", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("ReadOnlyKeyCannotStart", func(t *testing.T) {
		resp := doRequest(t, ts, http.MethodPost, "/api/v1/sync/start", "reader-key", nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("ReadOnlyKeyCanPoll", func(t *testing.T) {
		ctl.On("Status", mock.Anything).Return(models.Progress{Status: models.JobIdle}, nil).Once()
		resp := doRequest(t, ts, http.MethodGet, "/api/v1/sync/progress", "reader-key", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = config.APIRateLimitConfig{RPS: 0.1, Burst: 1}

	ctl := new(mockController)
	ctl.On("Status", mock.Anything).Return(models.Progress{}, nil)

	logger := zerolog.Nop()
	srv := NewHTTPServer(cfg, ctl, nil, &logger)
	ts := httptest.NewServer(srv.server.Handler)
	t.Cleanup(ts.Close)

	first := doRequest(t, ts, http.MethodGet, "/api/v1/sync/progress", "admin-key", nil)
	assert.Equal(t, http.StatusOK, first.StatusCode)

	second := doRequest(t, ts, http.MethodGet, "/api/v1/sync/progress", "admin-key", nil)
	assert.Equal(t, http.StatusTooManyRequests, second.StatusCode)
}

func TestHandleStart(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		ctl := new(mockController)
		ts := newTestServer(t, ctl, nil)

		ctl.On("Start", mock.Anything, 0, false).
			Return(models.SyncJob{ID: "job-1", Status: models.JobProcessing, Total: 25}, nil).Once()

		resp := doRequest(t, ts, http.MethodPost, "/api/v1/sync/start", "admin-key", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, float64(25), body["total"])
		assert.Equal(t, "sync started successfully", body["message"])
	})

	t.Run("WithLimitAndForce", func(t *testing.T) {
		ctl := new(mockController)
		ts := newTestServer(t, ctl, nil)

		ctl.On("Start", mock.Anything, 5, true).
			Return(models.SyncJob{Total: 5}, nil).Once()

		resp := doRequest(t, ts, http.MethodPost, "/api/v1/sync/start", "admin-key", []byte(`{"limit":5,"force":true}`))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		ctl.AssertExpectations(t)
	})

	t.Run("AlreadyRunning", func(t *testing.T) {
		ctl := new(mockController)
		ts := newTestServer(t, ctl, nil)

		ctl.On("Start", mock.Anything, 0, false).
			Return(models.SyncJob{}, engine.ErrJobAlreadyRunning).Once()

		resp := doRequest(t, ts, http.MethodPost, "/api/v1/sync/start", "admin-key", nil)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("BadJSON", func(t *testing.T) {
		ctl := new(mockController)
		ts := newTestServer(t, ctl, nil)

		resp := doRequest(t, ts, http.MethodPost, "/api/v1/sync/start", "admin-key", []byte(`{"unknown":1}`))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("NegativeLimit", func(t *testing.T) {
		ctl := new(mockController)
		ts := newTestServer(t, ctl, nil)

		resp := doRequest(t, ts, http.MethodPost, "/api/v1/sync/start", "admin-key", []byte(`{"limit":-1}`))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("MethodNotAllowed", func(t *testing.T) {
		ctl := new(mockController)
		ts := newTestServer(t, ctl, nil)

		resp := doRequest(t, ts, http.MethodGet, "/api/v1/sync/start", "admin-key", nil)
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})
}

func TestHandleProgress(t *testing.T) {
	ctl := new(mockController)
	ts := newTestServer(t, ctl, nil)

	ctl.On("Status", mock.Anything).Return(models.Progress{
		Status:     models.JobProcessing,
		Processed:  10,
		Total:      25,
		Percentage: 40,
	}, nil).Once()

	resp := doRequest(t, ts, http.MethodGet, "/api/v1/sync/progress", "admin-key", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var progress models.Progress
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&progress))
	assert.Equal(t, models.JobProcessing, progress.Status)
	assert.Equal(t, 40, progress.Percentage)
}

func TestHandleChunk(t *testing.T) {
	t.Run("Processing", func(t *testing.T) {
		ctl := new(mockController)
		ts := newTestServer(t, ctl, nil)

		ctl.On("RunChunk", mock.Anything).Return(models.ChunkResult{
			Status:    models.JobProcessing,
			Synced:    10,
			Remaining: 15,
		}, nil).Once()

		resp := doRequest(t, ts, http.MethodPost, "/api/v1/sync/chunk", "admin-key", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var result models.ChunkResult
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
		assert.Equal(t, 10, result.Synced)
		assert.Equal(t, 15, result.Remaining)
	})

	t.Run("NoActiveJob", func(t *testing.T) {
		ctl := new(mockController)
		ts := newTestServer(t, ctl, nil)

		ctl.On("RunChunk", mock.Anything).Return(models.ChunkResult{
			Status:  models.JobIdle,
			Message: "no sync in progress",
		}, nil).Once()

		resp := doRequest(t, ts, http.MethodPost, "/api/v1/sync/chunk", "admin-key", nil)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("StoreError", func(t *testing.T) {
		ctl := new(mockController)
		ts := newTestServer(t, ctl, nil)

		ctl.On("RunChunk", mock.Anything).Return(models.ChunkResult{}, context.DeadlineExceeded).Once()

		resp := doRequest(t, ts, http.MethodPost, "/api/v1/sync/chunk", "admin-key", nil)
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	})
}

func TestHandleCancel(t *testing.T) {
	ctl := new(mockController)
	ts := newTestServer(t, ctl, nil)

	ctl.On("Cancel", mock.Anything).Return(models.SyncJob{Status: models.JobCancelled}, nil).Once()

	resp := doRequest(t, ts, http.MethodPost, "/api/v1/sync/cancel", "admin-key", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "sync cancelled", body["message"])
}

func TestHandleHooks(t *testing.T) {
	t.Run("ProductSaved", func(t *testing.T) {
		ctl := new(mockController)
		hooks := new(mockHooks)
		ts := newTestServer(t, ctl, hooks)

		hooks.On("OnProductSaved", mock.Anything, int64(7)).Return(nil).Once()

		resp := doRequest(t, ts, http.MethodPost, "/api/v1/hooks/product-saved", "admin-key", []byte(`{"product_id":7}`))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		hooks.AssertExpectations(t)
	})

	t.Run("ProductDeleted", func(t *testing.T) {
		ctl := new(mockController)
		hooks := new(mockHooks)
		ts := newTestServer(t, ctl, hooks)

		hooks.On("OnProductDeleted", mock.Anything, int64(7)).Return(nil).Once()

		resp := doRequest(t, ts, http.MethodPost, "/api/v1/hooks/product-deleted", "admin-key", []byte(`{"product_id":7}`))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		hooks.AssertExpectations(t)
	})

	t.Run("InvalidProductID", func(t *testing.T) {
		ctl := new(mockController)
		hooks := new(mockHooks)
		ts := newTestServer(t, ctl, hooks)

		resp := doRequest(t, ts, http.MethodPost, "/api/v1/hooks/product-saved", "admin-key", []byte(`{"product_id":0}`))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("ReadOnlyKeyRejected", func(t *testing.T) {
		ctl := new(mockController)
		hooks := new(mockHooks)
		ts := newTestServer(t, ctl, hooks)

		resp := doRequest(t, ts, http.MethodPost, "/api/v1/hooks/product-saved", "reader-key", []byte(`{"product_id":7}`))
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})
}
