// Package retriever wraps the embedding and similarity-search RPCs
// into "top-K relevant items for a message".
package retriever

import (
	"context"
	"fmt"

	"github.com/ArthurBabkin/ai-sales/llm"
	"github.com/ArthurBabkin/ai-sales/vector"
)

type Retriever struct {
	Embedder  llm.Embedder
	Index     vector.Index
	Model     string
	Namespace string
}

// TopItems embeds query, asks the index for the k nearest neighbors
// and drops matches scoring below threshold. Matches keep the index's
// descending-similarity order. An empty index yields an empty result,
// not an error; RPC failures propagate.
func (r *Retriever) TopItems(ctx context.Context, query string, k int, threshold float64) ([]vector.Match, error) {
	if k <= 0 {
		return nil, nil
	}
	values, err := r.Embedder.Embed(ctx, r.Model, query)
	if err != nil {
		return nil, fmt.Errorf("retriever: embed query: %w", err)
	}
	matches, err := r.Index.Query(ctx, r.Namespace, values, k)
	if err != nil {
		return nil, fmt.Errorf("retriever: similarity query: %w", err)
	}
	kept := matches[:0]
	for _, m := range matches {
		if m.Score >= threshold {
			kept = append(kept, m)
		}
	}
	return kept, nil
}
