package retriever

import (
	"context"
	"errors"
	"testing"

	"github.com/ArthurBabkin/ai-sales/vector"
)

type stubEmbedder struct {
	values []float32
	err    error
}

func (s *stubEmbedder) Embed(ctx context.Context, model, text string) ([]float32, error) {
	return s.values, s.err
}

type stubIndex struct {
	matches   []vector.Match
	err       error
	namespace string
	topK      int
}

func (s *stubIndex) Query(ctx context.Context, namespace string, values []float32, topK int) ([]vector.Match, error) {
	s.namespace = namespace
	s.topK = topK
	return s.matches, s.err
}

func (s *stubIndex) Upsert(ctx context.Context, namespace string, vectors []vector.Vector) error {
	return nil
}

func (s *stubIndex) DeleteAll(ctx context.Context, namespace string) error {
	return nil
}

func TestTopItemsFiltersByThreshold(t *testing.T) {
	idx := &stubIndex{matches: []vector.Match{
		{ID: "2", Score: 0.93},
		{ID: "0", Score: 0.71},
		{ID: "5", Score: 0.40},
	}}
	r := &Retriever{Embedder: &stubEmbedder{values: []float32{0.1}}, Index: idx, Namespace: "items"}

	got, err := r.TopItems(context.Background(), "red shoes", 3, 0.7)
	if err != nil {
		t.Fatalf("TopItems: %v", err)
	}
	if len(got) != 2 || got[0].ID != "2" || got[1].ID != "0" {
		t.Fatalf("matches = %+v", got)
	}
	if idx.namespace != "items" || idx.topK != 3 {
		t.Fatalf("query args: namespace=%q topK=%d", idx.namespace, idx.topK)
	}
}

func TestTopItemsEmptyIndex(t *testing.T) {
	r := &Retriever{Embedder: &stubEmbedder{values: []float32{0.1}}, Index: &stubIndex{}}
	got, err := r.TopItems(context.Background(), "anything", 5, 0.5)
	if err != nil {
		t.Fatalf("TopItems: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no matches, got %+v", got)
	}
}

func TestTopItemsEmbedErrorPropagates(t *testing.T) {
	wantErr := errors.New("boom")
	r := &Retriever{Embedder: &stubEmbedder{err: wantErr}, Index: &stubIndex{}}
	if _, err := r.TopItems(context.Background(), "q", 2, 0); !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want wrapped %v", err, wantErr)
	}
}
