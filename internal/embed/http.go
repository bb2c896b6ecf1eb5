package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPProviderConfig configures the HTTP embedding provider.
type HTTPProviderConfig struct {
	// Endpoint is the provider base URL, e.g. http://localhost:11434.
	Endpoint string
	// Timeout bounds one batch request.
	Timeout time.Duration
	// PoolSize bounds pooled connections.
	PoolSize int
}

// HTTPProvider calls an Ollama-compatible embedding endpoint
// (POST <endpoint>/api/embed with model and input). Connection and 5xx
// failures report transient; other HTTP failures permanent.
type HTTPProvider struct {
	client   *http.Client
	endpoint string
	timeout  time.Duration
}

var _ Provider = (*HTTPProvider)(nil)

// NewHTTPProvider builds a provider with pooled connections.
func NewHTTPProvider(cfg HTTPProviderConfig) *HTTPProvider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 4
	}
	transport := &http.Transport{
		MaxIdleConns:        cfg.PoolSize,
		MaxIdleConnsPerHost: cfg.PoolSize,
		MaxConnsPerHost:     cfg.PoolSize * 2,
		IdleConnTimeout:     10 * time.Second,
	}
	return &HTTPProvider{
		// No client-level timeout; the per-request context carries it.
		client:   &http.Client{Transport: transport},
		endpoint: cfg.Endpoint,
		timeout:  cfg.Timeout,
	}
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

// Embed requests one batch of embeddings.
func (p *HTTPProvider) Embed(ctx context.Context, model string, texts []string) (*Result, error) {
	if len(texts) == 0 {
		return &Result{Success: true}, nil
	}

	body, err := json.Marshal(embedRequest{Model: model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, p.endpoint+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		if reqCtx.Err() == context.DeadlineExceeded {
			return failure(CodeProviderTimeout, true, "embed request timed out"), nil
		}
		return failure(CodeProviderUnavailable, true, err.Error()), nil
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		msg := fmt.Sprintf("embed failed with status %d: %s", resp.StatusCode, respBody)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return failure(CodeProviderUnavailable, true, msg), nil
		}
		return failure(CodeProviderError, false, msg), nil
	}

	var decoded embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return failure(CodeProviderError, false, "malformed embed response: "+err.Error()), nil
	}

	embeddings := make([][]float32, len(decoded.Embeddings))
	for i, emb := range decoded.Embeddings {
		vec := make([]float32, len(emb))
		for j, v := range emb {
			vec[j] = float32(v)
		}
		embeddings[i] = vec
	}
	return &Result{Embeddings: embeddings, Success: true}, nil
}

func failure(code string, transient bool, msg string) *Result {
	return &Result{Transient: transient, ErrorCode: code, ErrorMsg: msg}
}
