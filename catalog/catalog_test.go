package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/ArthurBabkin/ai-sales/store"
)

func uniqueIDs(t *testing.T, items []Item) {
	t.Helper()
	seen := make(map[int]bool)
	for _, it := range items {
		if seen[it.ID] {
			t.Fatalf("duplicate id %d in %+v", it.ID, items)
		}
		seen[it.ID] = true
	}
}

func TestItemIDsMonotonicAndUnique(t *testing.T) {
	ctx := context.Background()
	c := New(store.NewMemory())

	first, err := c.AddItem(ctx, Item{Name: "boots", Description: "leather", Price: 120})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	second, err := c.AddItem(ctx, Item{Name: "hat", Description: "wool"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if first.ID != 0 || second.ID != 1 {
		t.Fatalf("ids = %d, %d", first.ID, second.ID)
	}

	if err := c.DeleteItem(ctx, first.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	third, err := c.AddItem(ctx, Item{Name: "scarf", Description: "silk"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	// Deleted ids are never reused.
	if third.ID != 2 {
		t.Fatalf("id after delete = %d, want 2", third.ID)
	}

	items, err := c.Items(ctx)
	if err != nil {
		t.Fatalf("items: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("items = %+v", items)
	}
	uniqueIDs(t, items)
}

func TestUpdateItem(t *testing.T) {
	ctx := context.Background()
	c := New(store.NewMemory())

	added, _ := c.AddItem(ctx, Item{Name: "boots", Description: "leather"})
	added.Description = "suede"
	if err := c.UpdateItem(ctx, added); err != nil {
		t.Fatalf("update: %v", err)
	}
	items, _ := c.Items(ctx)
	if items[0].Description != "suede" {
		t.Fatalf("items = %+v", items)
	}

	if err := c.UpdateItem(ctx, Item{ID: 99}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("update missing: err = %v, want ErrNotFound", err)
	}
}

func TestDeleteMissingItemReportsNotFound(t *testing.T) {
	c := New(store.NewMemory())
	if err := c.DeleteItem(context.Background(), 7); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestIntentCRUD(t *testing.T) {
	ctx := context.Background()
	c := New(store.NewMemory())

	intents, err := c.Intents(ctx)
	if err != nil || len(intents) != 0 {
		t.Fatalf("empty catalog: %v %v", intents, err)
	}

	purchase, err := c.AddIntent(ctx, Intent{Name: "purchase", Description: "wants to buy", Answer: "Thanks!"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	support, err := c.AddIntent(ctx, Intent{Name: "support", Description: "needs help"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if purchase.ID == support.ID {
		t.Fatal("intent ids collide")
	}

	if err := c.DeleteIntent(ctx, purchase.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := c.DeleteIntent(ctx, purchase.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("double delete: err = %v, want ErrNotFound", err)
	}
	if err := c.UpdateIntent(ctx, Intent{ID: purchase.ID, Name: "x"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("update deleted: err = %v, want ErrNotFound", err)
	}
}

func TestSettingsDefaults(t *testing.T) {
	ctx := context.Background()
	c := New(store.NewMemory())

	s, err := c.Settings(ctx)
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	if s.HelpMessage == "" || s.TopKItems == 0 {
		t.Fatalf("defaults not applied: %+v", s)
	}

	s.ResponseDelay = 1.5
	s.TopKItems = 5
	if err := c.SetSettings(ctx, s); err != nil {
		t.Fatalf("set settings: %v", err)
	}
	got, err := c.Settings(ctx)
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	if got.ResponseDelay != 1.5 || got.TopKItems != 5 {
		t.Fatalf("settings = %+v", got)
	}
}

func TestProfileNotesMergeIntoProfile(t *testing.T) {
	ctx := context.Background()
	db := store.NewMemory()
	c := New(db)

	if err := db.Set(ctx, "users/lead1", Profile{Name: "Ann"}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := c.SetProfileNotes(ctx, "lead1", "prefers delivery"); err != nil {
		t.Fatalf("set notes: %v", err)
	}
	p, found, err := c.Profile(ctx, "lead1")
	if err != nil || !found {
		t.Fatalf("profile: found=%v err=%v", found, err)
	}
	if p.Name != "Ann" || p.Notes != "prefers delivery" {
		t.Fatalf("profile = %+v", p)
	}
}

func TestPrompts(t *testing.T) {
	ctx := context.Background()
	c := New(store.NewMemory())

	got, err := c.SystemPrompt(ctx)
	if err != nil || got != "" {
		t.Fatalf("empty prompt: %q %v", got, err)
	}
	if err := c.SetClassifierPrompt(ctx, "classify this"); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err = c.ClassifierPrompt(ctx)
	if err != nil || got != "classify this" {
		t.Fatalf("prompt = %q %v", got, err)
	}
}
