package backend

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nixlim/alert-top/internal/config"
	"github.com/nixlim/alert-top/internal/filter"
)

func testConfig(base string) config.BackendConfig {
	cfg := config.DefaultConfig().Backend
	cfg.BaseURL = base
	cfg.Token = "secret-token"
	return cfg
}

func TestListAlerts_QueryAndAuth(t *testing.T) {
	var gotQuery, gotAuth, gotReqID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/logs/alerts", r.URL.Path)
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		gotReqID = r.Header.Get("X-Request-ID")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"alerts":[{"_id":"1","severity":"high"},{"title":"no id"}]}`))
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL + "/api/"))
	listing, err := c.ListAlerts(context.Background(), filter.Query{Severity: "high", OnlyUnacknowledged: true})
	require.NoError(t, err)

	assert.Equal(t, "acknowledged=false&severity=high", gotQuery)
	assert.Equal(t, "Bearer secret-token", gotAuth)
	assert.NotEmpty(t, gotReqID)
	require.Len(t, listing.Alerts, 1)
	assert.Equal(t, "1", listing.Alerts[0].ID)
	assert.Equal(t, 1, listing.Dropped)
}

func TestListAlerts_NoParamsForAll(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL))
	listing, err := c.ListAlerts(context.Background(), filter.Clear().Query())
	require.NoError(t, err)
	assert.Empty(t, gotQuery)
	assert.Empty(t, listing.Alerts)
}

func TestListAlerts_StatusErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		is     error
	}{
		{"unauthorized", http.StatusUnauthorized, ErrUnauthorized},
		{"not found", http.StatusNotFound, ErrNotFound},
		{"server error", http.StatusInternalServerError, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			defer srv.Close()

			_, err := New(testConfig(srv.URL)).ListAlerts(context.Background(), filter.Query{})
			require.Error(t, err)

			var serr *StatusError
			require.True(t, errors.As(err, &serr))
			assert.Equal(t, tt.status, serr.Code)
			if tt.is != nil {
				assert.True(t, errors.Is(err, tt.is))
			}
		})
	}
}

func TestListAlerts_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>oops</html>`))
	}))
	defer srv.Close()

	_, err := New(testConfig(srv.URL)).ListAlerts(context.Background(), filter.Query{})
	assert.Error(t, err)
}

func TestListAlerts_BreakerOpens(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.BreakerFailures = 2
	cfg.BreakerCooldownSeconds = 60
	c := New(cfg)

	for i := 0; i < 2; i++ {
		_, err := c.ListAlerts(context.Background(), filter.Query{})
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrUnavailable))
	}

	_, err := c.ListAlerts(context.Background(), filter.Query{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))
	assert.Equal(t, int32(2), hits.Load())
}

func TestDeleteAlert(t *testing.T) {
	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.EscapedPath()
		if r.URL.Path == "/logs/alerts/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL))

	require.NoError(t, c.DeleteAlert(context.Background(), "a b/c"))
	assert.Equal(t, http.MethodDelete, gotMethod)
	assert.Equal(t, "/logs/alerts/a%20b%2Fc", gotPath)

	err := c.DeleteAlert(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))

	assert.Error(t, c.DeleteAlert(context.Background(), ""))
}
