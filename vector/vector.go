// Package vector defines the similarity-search contract. The hosted
// index is partitioned into namespaces so one catalog's embeddings
// never leak into another's results.
package vector

import "context"

type Match struct {
	ID       string
	Score    float64
	Metadata map[string]string
}

type Vector struct {
	ID       string
	Values   []float32
	Metadata map[string]string
}

type Index interface {
	Query(ctx context.Context, namespace string, values []float32, topK int) ([]Match, error)
	Upsert(ctx context.Context, namespace string, vectors []Vector) error
	DeleteAll(ctx context.Context, namespace string) error
}
