// Package embeddings defines the embedding-provider boundary and a
// plain HTTP default implementation. No embeddings client library is
// grounded anywhere in the retrieved pack (checked the full teacher
// monorepo plus other_examples/manifests); this is stdlib net/http by
// necessity, styled after go-enhanced-rag-service/embedding_service.go's
// HTTP client shape and original_source's embedding_service.py
// (timeout, dimension validation, no full-text logging).
package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Provider generates a fixed-dimension embedding for a batch of texts.
// Implementations must validate the returned dimension matches the
// configured one (spec §4.3).
type Provider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// HTTPProvider calls an Ollama/OpenAI-compatible embeddings endpoint.
type HTTPProvider struct {
	url       string
	apiKey    string
	model     string
	dimension int
	client    *http.Client
}

func NewHTTPProvider(url, apiKey, model string, dimension int, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{
		url: url, apiKey: apiKey, model: model, dimension: dimension,
		client: &http.Client{Timeout: timeout},
	}
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed requests one embedding per text and validates dimensions.
func (p *HTTPProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{Model: p.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("encode embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request for %d texts: %w", len(texts), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding provider returned status %d", resp.StatusCode)
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode embedding response: %w", err)
	}

	if len(out.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding provider returned %d vectors for %d inputs", len(out.Embeddings), len(texts))
	}
	for _, e := range out.Embeddings {
		if len(e) != p.dimension {
			return nil, fmt.Errorf("embedding dimension mismatch: got %d, configured %d", len(e), p.dimension)
		}
	}

	return out.Embeddings, nil
}
