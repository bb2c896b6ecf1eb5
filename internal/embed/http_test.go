package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPProvider_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "minilm", req.Model)
		require.Len(t, req.Input, 2)

		resp := embedResponse{Embeddings: [][]float64{{0.1, 0.2}, {0.3, 0.4}}}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	p := NewHTTPProvider(HTTPProviderConfig{Endpoint: srv.URL})
	res, err := p.Embed(context.Background(), "minilm", []string{"a", "b"})
	require.NoError(t, err)

	assert.True(t, res.Success)
	require.Len(t, res.Embeddings, 2)
	assert.InDelta(t, 0.3, res.Embeddings[1][0], 1e-6)
}

func TestHTTPProvider_ServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := NewHTTPProvider(HTTPProviderConfig{Endpoint: srv.URL})
	res, err := p.Embed(context.Background(), "minilm", []string{"a"})
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.True(t, res.Transient)
	assert.Equal(t, CodeProviderUnavailable, res.ErrorCode)
}

func TestHTTPProvider_ClientErrorIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "unknown model", http.StatusNotFound)
	}))
	defer srv.Close()

	p := NewHTTPProvider(HTTPProviderConfig{Endpoint: srv.URL})
	res, err := p.Embed(context.Background(), "nope", []string{"a"})
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.False(t, res.Transient)
	assert.Equal(t, CodeProviderError, res.ErrorCode)
}

func TestHTTPProvider_TimeoutIsTransient(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	p := NewHTTPProvider(HTTPProviderConfig{Endpoint: srv.URL, Timeout: 50 * time.Millisecond})
	res, err := p.Embed(context.Background(), "minilm", []string{"a"})
	require.NoError(t, err)

	assert.True(t, res.Transient)
	assert.Equal(t, CodeProviderTimeout, res.ErrorCode)
}

func TestHTTPProvider_ConnectionRefusedIsTransient(t *testing.T) {
	p := NewHTTPProvider(HTTPProviderConfig{Endpoint: "http://127.0.0.1:1"})
	res, err := p.Embed(context.Background(), "minilm", []string{"a"})
	require.NoError(t, err)

	assert.True(t, res.Transient)
	assert.Equal(t, CodeProviderUnavailable, res.ErrorCode)
}

func TestHTTPProvider_EmptyBatch(t *testing.T) {
	p := NewHTTPProvider(HTTPProviderConfig{Endpoint: "http://127.0.0.1:1"})
	res, err := p.Embed(context.Background(), "minilm", nil)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Empty(t, res.Embeddings)
}
