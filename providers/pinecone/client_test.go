package pinecone

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(srv *httptest.Server) *Client {
	c := New(srv.URL, "key")
	c.HTTP = srv.Client()
	c.RetryDelay = time.Millisecond
	return c
}

func TestQuery(t *testing.T) {
	var got queryRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/query" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Api-Key") != "key" {
			t.Error("missing Api-Key header")
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("bad body: %v", err)
		}
		w.Write([]byte(`{"matches":[
			{"id":"1","score":0.91,"metadata":{"name":"Lamp"}},
			{"id":"2","score":0.42}
		]}`))
	}))
	defer srv.Close()

	c := newTestClient(srv)
	matches, err := c.Query(context.Background(), "items", []float32{0.5}, 3)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if got.Namespace != "items" || got.TopK != 3 || !got.IncludeMetadata {
		t.Fatalf("request = %+v", got)
	}
	if len(matches) != 2 || matches[0].Metadata["name"] != "Lamp" {
		t.Fatalf("matches = %+v", matches)
	}
}

func TestPostRetriesServerErrors(t *testing.T) {
	fails := 2
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls <= fails {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := newTestClient(srv)
	if err := c.DeleteAll(context.Background(), "items"); err != nil {
		t.Fatalf("DeleteAll: %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestPostDoesNotRetryClientErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClient(srv)
	err := c.DeleteAll(context.Background(), "items")
	if err == nil {
		t.Fatal("want error")
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1 (4xx must not retry)", calls)
	}
}

func TestUpsertSkipsEmptyBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for an empty batch")
	}))
	defer srv.Close()

	c := newTestClient(srv)
	if err := c.Upsert(context.Background(), "items", nil); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
}
