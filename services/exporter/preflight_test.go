package exporter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPreflight(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>portal</html>"))
	}))
	defer srv.Close()

	service := testService(t, happyFactory())
	service.opts.BaseUrl = srv.URL
	require.NoError(t, service.Preflight(context.Background()))
}

func TestPreflightPortalError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	service := testService(t, happyFactory())
	service.opts.BaseUrl = srv.URL

	err := service.Preflight(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "502")
}

func TestPreflightUnreachable(t *testing.T) {
	service := testService(t, happyFactory())
	service.opts.BaseUrl = "http://127.0.0.1:1"

	err := service.Preflight(context.Background())
	require.Error(t, err)
}
