// Package catalog manages the editable content collections: items,
// intents, prompts, settings and lead profiles. Mutations on ordered
// collections rewrite the whole array; the hosted store has no
// partial-array writes.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ArthurBabkin/ai-sales/internal/paths"
	"github.com/ArthurBabkin/ai-sales/store"
)

var ErrNotFound = errors.New("catalog: not found")

type Catalog struct {
	db store.Store
	// mu serializes read-modify-write mutations within this process.
	// Collection writes are last-writer-wins across processes; the
	// admin panel is the assumed single writer for these collections.
	mu sync.Mutex
}

func New(db store.Store) *Catalog {
	return &Catalog{db: db}
}

func (c *Catalog) Items(ctx context.Context) ([]Item, error) {
	var items []Item
	found, err := c.db.Get(ctx, paths.Items, &items)
	if err != nil {
		return nil, err
	}
	if !found || items == nil {
		return []Item{}, nil
	}
	return items, nil
}

func nextID[T any](ids func(T) int, entries []T) int {
	next := 0
	for _, e := range entries {
		if id := ids(e); id >= next {
			next = id + 1
		}
	}
	return next
}

func (c *Catalog) AddItem(ctx context.Context, item Item) (Item, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	items, err := c.Items(ctx)
	if err != nil {
		return Item{}, err
	}
	item.ID = nextID(func(i Item) int { return i.ID }, items)
	items = append(items, item)
	if err := c.db.Set(ctx, paths.Items, items); err != nil {
		return Item{}, err
	}
	return item, nil
}

func (c *Catalog) UpdateItem(ctx context.Context, item Item) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	items, err := c.Items(ctx)
	if err != nil {
		return err
	}
	for i := range items {
		if items[i].ID == item.ID {
			items[i] = item
			return c.db.Set(ctx, paths.Items, items)
		}
	}
	return fmt.Errorf("%w: item %d", ErrNotFound, item.ID)
}

func (c *Catalog) DeleteItem(ctx context.Context, id int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	items, err := c.Items(ctx)
	if err != nil {
		return err
	}
	kept := items[:0]
	for _, it := range items {
		if it.ID != id {
			kept = append(kept, it)
		}
	}
	if len(kept) == len(items) {
		return fmt.Errorf("%w: item %d", ErrNotFound, id)
	}
	return c.db.Set(ctx, paths.Items, kept)
}

func (c *Catalog) Intents(ctx context.Context) ([]Intent, error) {
	var intents []Intent
	found, err := c.db.Get(ctx, paths.Intents, &intents)
	if err != nil {
		return nil, err
	}
	if !found || intents == nil {
		return []Intent{}, nil
	}
	return intents, nil
}

func (c *Catalog) AddIntent(ctx context.Context, intent Intent) (Intent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	intents, err := c.Intents(ctx)
	if err != nil {
		return Intent{}, err
	}
	intent.ID = nextID(func(i Intent) int { return i.ID }, intents)
	intents = append(intents, intent)
	if err := c.db.Set(ctx, paths.Intents, intents); err != nil {
		return Intent{}, err
	}
	return intent, nil
}

func (c *Catalog) UpdateIntent(ctx context.Context, intent Intent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	intents, err := c.Intents(ctx)
	if err != nil {
		return err
	}
	for i := range intents {
		if intents[i].ID == intent.ID {
			intents[i] = intent
			return c.db.Set(ctx, paths.Intents, intents)
		}
	}
	return fmt.Errorf("%w: intent %d", ErrNotFound, intent.ID)
}

func (c *Catalog) DeleteIntent(ctx context.Context, id int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	intents, err := c.Intents(ctx)
	if err != nil {
		return err
	}
	kept := intents[:0]
	for _, it := range intents {
		if it.ID != id {
			kept = append(kept, it)
		}
	}
	if len(kept) == len(intents) {
		return fmt.Errorf("%w: intent %d", ErrNotFound, id)
	}
	return c.db.Set(ctx, paths.Intents, kept)
}

func (c *Catalog) prompt(ctx context.Context, path string) (string, error) {
	var prompt string
	found, err := c.db.Get(ctx, path, &prompt)
	if err != nil {
		return "", err
	}
	if !found {
		return "", nil
	}
	return prompt, nil
}

func (c *Catalog) SystemPrompt(ctx context.Context) (string, error) {
	return c.prompt(ctx, paths.SystemPrompt)
}

func (c *Catalog) SetSystemPrompt(ctx context.Context, prompt string) error {
	return c.db.Set(ctx, paths.SystemPrompt, prompt)
}

func (c *Catalog) ClassifierPrompt(ctx context.Context) (string, error) {
	return c.prompt(ctx, paths.ClassifierPrompt)
}

func (c *Catalog) SetClassifierPrompt(ctx context.Context, prompt string) error {
	return c.db.Set(ctx, paths.ClassifierPrompt, prompt)
}

func (c *Catalog) ReminderPrompt(ctx context.Context) (string, error) {
	return c.prompt(ctx, paths.ReminderPrompt)
}

func (c *Catalog) SetReminderPrompt(ctx context.Context, prompt string) error {
	return c.db.Set(ctx, paths.ReminderPrompt, prompt)
}

// Settings returns the stored singleton, falling back to defaults for
// a store that has never been configured.
func (c *Catalog) Settings(ctx context.Context) (Settings, error) {
	var s Settings
	found, err := c.db.Get(ctx, paths.Settings, &s)
	if err != nil {
		return Settings{}, err
	}
	if !found {
		return DefaultSettings(), nil
	}
	return s, nil
}

func (c *Catalog) SetSettings(ctx context.Context, s Settings) error {
	return c.db.Set(ctx, paths.Settings, s)
}

func (c *Catalog) Profile(ctx context.Context, userKey string) (Profile, bool, error) {
	path, err := store.Join(paths.Users, userKey)
	if err != nil {
		return Profile{}, false, err
	}
	var p Profile
	found, err := c.db.Get(ctx, path, &p)
	if err != nil {
		return Profile{}, false, err
	}
	return p, found, nil
}

func (c *Catalog) Profiles(ctx context.Context) (map[string]Profile, error) {
	var all map[string]Profile
	found, err := c.db.Get(ctx, paths.Users, &all)
	if err != nil {
		return nil, err
	}
	if !found || all == nil {
		return map[string]Profile{}, nil
	}
	return all, nil
}

// SetProfileNotes merge-updates the notes field, keeping whatever else
// the profile already holds.
func (c *Catalog) SetProfileNotes(ctx context.Context, userKey, notes string) error {
	path, err := store.Join(paths.Users, userKey)
	if err != nil {
		return err
	}
	return c.db.Update(ctx, path, map[string]any{"notes": notes})
}
