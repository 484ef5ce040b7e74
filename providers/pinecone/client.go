// Package pinecone implements vector.Index over the Pinecone data
// plane REST API.
package pinecone

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ArthurBabkin/ai-sales/internal/retryutil"
	"github.com/ArthurBabkin/ai-sales/vector"
)

type Client struct {
	// IndexHost is the full https host of one index, e.g.
	// https://ai-sales-abc123.svc.aped-4627-b74a.pinecone.io
	IndexHost string
	APIKey    string
	HTTP      *http.Client
	// RetryDelay spaces retries of transport errors and 5xx
	// responses. All data-plane calls here are idempotent.
	RetryDelay time.Duration
}

func New(indexHost, apiKey string) *Client {
	return &Client{
		IndexHost: strings.TrimRight(strings.TrimSpace(indexHost), "/"),
		APIKey:    apiKey,
		HTTP:      &http.Client{Timeout: 30 * time.Second},
	}
}

type queryRequest struct {
	Namespace       string    `json:"namespace,omitempty"`
	Vector          []float32 `json:"vector"`
	TopK            int       `json:"topK"`
	IncludeMetadata bool      `json:"includeMetadata"`
}

type queryResponse struct {
	Matches []struct {
		ID       string            `json:"id"`
		Score    float64           `json:"score"`
		Metadata map[string]string `json:"metadata,omitempty"`
	} `json:"matches"`
}

func (c *Client) Query(ctx context.Context, namespace string, values []float32, topK int) ([]vector.Match, error) {
	var out queryResponse
	err := c.post(ctx, "/query", queryRequest{
		Namespace:       namespace,
		Vector:          values,
		TopK:            topK,
		IncludeMetadata: true,
	}, &out)
	if err != nil {
		return nil, err
	}
	matches := make([]vector.Match, 0, len(out.Matches))
	for _, m := range out.Matches {
		matches = append(matches, vector.Match{
			ID:       m.ID,
			Score:    m.Score,
			Metadata: m.Metadata,
		})
	}
	return matches, nil
}

type upsertVector struct {
	ID       string            `json:"id"`
	Values   []float32         `json:"values"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type upsertRequest struct {
	Namespace string         `json:"namespace,omitempty"`
	Vectors   []upsertVector `json:"vectors"`
}

func (c *Client) Upsert(ctx context.Context, namespace string, vectors []vector.Vector) error {
	if len(vectors) == 0 {
		return nil
	}
	req := upsertRequest{Namespace: namespace, Vectors: make([]upsertVector, 0, len(vectors))}
	for _, v := range vectors {
		req.Vectors = append(req.Vectors, upsertVector{ID: v.ID, Values: v.Values, Metadata: v.Metadata})
	}
	return c.post(ctx, "/vectors/upsert", req, nil)
}

type deleteRequest struct {
	Namespace string `json:"namespace,omitempty"`
	DeleteAll bool   `json:"deleteAll"`
}

func (c *Client) DeleteAll(ctx context.Context, namespace string) error {
	return c.post(ctx, "/vectors/delete", deleteRequest{Namespace: namespace, DeleteAll: true}, nil)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("pinecone: encode %s: %w", path, err)
	}
	return retryutil.Do(ctx, retryutil.DefaultAttempts, c.RetryDelay, func(ctx context.Context) error {
		return c.postOnce(ctx, path, data, out)
	})
}

func (c *Client) postOnce(ctx context.Context, path string, data []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.IndexHost+path, bytes.NewReader(data))
	if err != nil {
		return retryutil.Stop(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Api-Key", c.APIKey)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("pinecone: %s: %w", path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("pinecone: read %s: %w", path, err)
	}
	if resp.StatusCode >= 500 {
		return fmt.Errorf("pinecone http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return retryutil.Stop(fmt.Errorf("pinecone http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return retryutil.Stop(fmt.Errorf("pinecone: decode %s: %w", path, err))
	}
	return nil
}
