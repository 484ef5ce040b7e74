package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/ArthurBabkin/ai-sales/catalog"
	"github.com/ArthurBabkin/ai-sales/internal/paths"
	"github.com/ArthurBabkin/ai-sales/session"
	"github.com/ArthurBabkin/ai-sales/store"
	"github.com/ArthurBabkin/ai-sales/vector"
)

type stubEmbedder struct {
	calls []string
}

func (s *stubEmbedder) Embed(ctx context.Context, model, text string) ([]float32, error) {
	s.calls = append(s.calls, text)
	return []float32{0.1, 0.2}, nil
}

type stubIndex struct {
	cleared  int
	upserted []vector.Vector
}

func (s *stubIndex) Query(ctx context.Context, namespace string, values []float32, topK int) ([]vector.Match, error) {
	return nil, nil
}

func (s *stubIndex) Upsert(ctx context.Context, namespace string, vectors []vector.Vector) error {
	s.upserted = append(s.upserted, vectors...)
	return nil
}

func (s *stubIndex) DeleteAll(ctx context.Context, namespace string) error {
	s.cleared++
	return nil
}

type fixture struct {
	server   *Server
	embedder *stubEmbedder
	index    *stubIndex
	catalog  *catalog.Catalog
	cookies  []*http.Cookie
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := store.NewMemory()
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	err = db.Set(context.Background(), paths.Admins, []map[string]string{
		{"username": "alice", "password": string(hash)},
	})
	if err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	f := &fixture{
		embedder: &stubEmbedder{},
		index:    &stubIndex{},
		catalog:  catalog.New(db),
	}
	f.server = New(Config{
		Sessions:   session.NewManager(db, 0),
		Catalog:    f.catalog,
		Embedder:   f.embedder,
		Index:      f.index,
		EmbedModel: "text-embedding-3-small",
		Namespace:  "items",
	})
	return f
}

func (f *fixture) do(t *testing.T, method, target string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, ck := range f.cookies {
		req.AddCookie(ck)
	}
	resp, err := f.server.App().Test(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, target, err)
	}
	return resp
}

func (f *fixture) login(t *testing.T) {
	t.Helper()
	resp := f.do(t, http.MethodPost, "/auth", credentials{Username: "alice", Password: "hunter2"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d, want 200", resp.StatusCode)
	}
	f.cookies = resp.Cookies()
	if len(f.cookies) == 0 {
		t.Fatal("login set no cookies")
	}
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestAuthRejectsBadPassword(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodPost, "/auth", credentials{Username: "alice", Password: "wrong"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestAPIRequiresAuth(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodGet, "/api/items", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestItemCRUD(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	resp := f.do(t, http.MethodPost, "/api/items", catalog.Item{Name: "Lamp", Description: "desk lamp", Price: 25})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", resp.StatusCode)
	}
	created := decode[catalog.Item](t, resp)
	if created.ID != 1 {
		t.Fatalf("created id = %d, want 1", created.ID)
	}

	resp = f.do(t, http.MethodPut, "/api/items/1", catalog.Item{Name: "Lamp", Description: "brass desk lamp", Price: 30})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update status = %d, want 200", resp.StatusCode)
	}

	resp = f.do(t, http.MethodGet, "/api/items", nil)
	items := decode[[]catalog.Item](t, resp)
	if len(items) != 1 || items[0].Description != "brass desk lamp" {
		t.Fatalf("items = %+v, want the updated lamp", items)
	}

	resp = f.do(t, http.MethodDelete, "/api/items/1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d, want 200", resp.StatusCode)
	}
	resp = f.do(t, http.MethodDelete, "/api/items/1", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("second delete status = %d, want 404", resp.StatusCode)
	}
}

func TestAddItemRejectsNegativePrice(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	resp := f.do(t, http.MethodPost, "/api/items", catalog.Item{Name: "Lamp", Price: -1})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestUpdateRejectsEmptyName(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	if _, err := f.catalog.AddItem(context.Background(), catalog.Item{Name: "Lamp", Price: 25}); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	resp := f.do(t, http.MethodPut, "/api/items/1", catalog.Item{Name: "", Price: 30})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("item update status = %d, want 400", resp.StatusCode)
	}

	if _, err := f.catalog.AddIntent(context.Background(), catalog.Intent{Name: "buy", Description: "wants to buy"}); err != nil {
		t.Fatalf("AddIntent: %v", err)
	}
	resp = f.do(t, http.MethodPut, "/api/intents/1", catalog.Intent{Name: ""})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("intent update status = %d, want 400", resp.StatusCode)
	}
}

func TestSettingsValidation(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	bad := catalog.DefaultSettings()
	bad.Threshold = 1.5
	resp := f.do(t, http.MethodPut, "/api/settings", bad)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid threshold status = %d, want 400", resp.StatusCode)
	}

	good := catalog.DefaultSettings()
	good.ResponseDelay = 2.5
	resp = f.do(t, http.MethodPut, "/api/settings", good)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("valid settings status = %d, want 200", resp.StatusCode)
	}
	resp = f.do(t, http.MethodGet, "/api/settings", nil)
	got := decode[catalog.Settings](t, resp)
	if got.ResponseDelay != 2.5 {
		t.Fatalf("responseDelay = %v, want 2.5", got.ResponseDelay)
	}
}

func TestPromptsRoundTrip(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	want := prompts{System: "sell", Classifier: "classify", Reminder: "remind"}
	resp := f.do(t, http.MethodPut, "/api/prompts", want)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("put prompts status = %d, want 200", resp.StatusCode)
	}
	resp = f.do(t, http.MethodGet, "/api/prompts", nil)
	got := decode[prompts](t, resp)
	if got != want {
		t.Fatalf("prompts = %+v, want %+v", got, want)
	}
}

func TestSyncIndexRebuildsNamespace(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	ctx := context.Background()
	if _, err := f.catalog.AddItem(ctx, catalog.Item{Name: "Lamp", Description: "desk lamp"}); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if _, err := f.catalog.AddItem(ctx, catalog.Item{Name: "Chair", Description: "office chair"}); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	resp := f.do(t, http.MethodPost, "/api/sync-index", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("sync status = %d, want 200", resp.StatusCode)
	}
	if f.index.cleared != 1 {
		t.Fatalf("namespace cleared %d times, want 1", f.index.cleared)
	}
	if len(f.index.upserted) != 2 {
		t.Fatalf("upserted %d vectors, want 2", len(f.index.upserted))
	}
	if f.index.upserted[0].Metadata["name"] != "Lamp" {
		t.Fatalf("first vector metadata = %+v", f.index.upserted[0].Metadata)
	}
	if len(f.embedder.calls) != 2 {
		t.Fatalf("embedder called %d times, want 2", len(f.embedder.calls))
	}
}
