package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestOpsRouter_Health(t *testing.T) {
	router := NewOpsRouter(pingerFunc(func(context.Context) error {
		t.Error("liveness must not touch storage")
		return nil
	}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestOpsRouter_Ready(t *testing.T) {
	router := NewOpsRouter(pingerFunc(func(ctx context.Context) error {
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		return nil
	}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body readyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body.Status)
	assert.Empty(t, body.Error)
}

func TestOpsRouter_NotReady(t *testing.T) {
	router := NewOpsRouter(pingerFunc(func(context.Context) error {
		return errors.New("database is closed")
	}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body readyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "unavailable", body.Status)
	assert.Equal(t, "database is closed", body.Error)
}

func TestOpsRouter_UnknownRoute(t *testing.T) {
	router := NewOpsRouter(pingerFunc(func(context.Context) error { return nil }))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/health", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestOpsRouter_RecoversPanics(t *testing.T) {
	router := NewOpsRouter(pingerFunc(func(context.Context) error { panic("boom") }))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestNewOpsServer(t *testing.T) {
	srv := NewOpsServer("8081", pingerFunc(func(context.Context) error { return nil }))

	assert.Equal(t, ":8081", srv.Addr)
	assert.NotNil(t, srv.Handler)
}
