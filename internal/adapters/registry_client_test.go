package adapters

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dependency-metrics/internal/shared"
)

func newTestRegistryClient(srv *httptest.Server) *RegistryClient {
	return NewRegistryClient(5, 3, 1, WithHTTPClient(srv.Client()))
}

func TestRegistryClientGetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		_, _ = w.Write([]byte(`{"name":"left-pad"}`))
	}))
	defer srv.Close()

	var doc struct {
		Name string `json:"name"`
	}
	require.NoError(t, newTestRegistryClient(srv).GetJSON(context.Background(), srv.URL+"/left-pad", &doc))
	assert.Equal(t, "left-pad", doc.Name)
}

func TestRegistryClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	var doc map[string]any
	require.NoError(t, newTestRegistryClient(srv).GetJSON(context.Background(), srv.URL+"/pkg", &doc))
	assert.Equal(t, int32(3), calls.Load())
}

func TestRegistryClientGivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	var doc map[string]any
	err := newTestRegistryClient(srv).GetJSON(context.Background(), srv.URL+"/pkg", &doc)
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeInternal, errbuilder.CodeOf(err))
	assert.Equal(t, int32(3), calls.Load())
}

func TestRegistryClientNotFoundIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	client := newTestRegistryClient(srv)
	var doc map[string]any
	err := client.GetJSON(context.Background(), srv.URL+"/missing", &doc)
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeNotFound, errbuilder.CodeOf(err))
	assert.Equal(t, int32(1), calls.Load())
	assert.False(t, client.breaker(registryHost(srv.URL)).Tripped())
}

func TestRegistryClientClientErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	var doc map[string]any
	err := newTestRegistryClient(srv).GetJSON(context.Background(), srv.URL+"/pkg", &doc)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRegistryClientBreakerOpensAfterRepeatedFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	client := newTestRegistryClient(srv)
	var doc map[string]any
	for i := 0; i < breakerThreshold; i++ {
		require.Error(t, client.GetJSON(context.Background(), srv.URL+"/pkg", &doc))
	}
	assert.True(t, client.breaker(registryHost(srv.URL)).Tripped())
	err := client.GetJSON(context.Background(), srv.URL+"/pkg", &doc)
	require.Error(t, err)
	assert.Contains(t, shared.ErrorMessage(err), "circuit open")
}

func TestRegistryClientInvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	var doc map[string]any
	err := newTestRegistryClient(srv).GetJSON(context.Background(), srv.URL+"/pkg", &doc)
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeInternal, errbuilder.CodeOf(err))
}
