package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHandler(t *testing.T) {
	ok := Check{Name: "postgres", Fn: func(context.Context) error { return nil }}
	down := Check{Name: "redis", Fn: func(context.Context) error { return errors.New("connection refused") }}

	t.Run("all checks pass", func(t *testing.T) {
		rec := httptest.NewRecorder()
		Handler(time.Second, ok)(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Equal(t, "ok", body["status"])
	})

	t.Run("failing dependency", func(t *testing.T) {
		rec := httptest.NewRecorder()
		Handler(time.Second, ok, down)(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		var body struct {
			Status string            `json:"status"`
			Checks map[string]string `json:"checks"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Equal(t, "not ready", body.Status)
		require.Equal(t, "ok", body.Checks["postgres"])
		require.Equal(t, "connection refused", body.Checks["redis"])
	})

	t.Run("no checks", func(t *testing.T) {
		rec := httptest.NewRecorder()
		Handler(time.Second)(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	})
}
