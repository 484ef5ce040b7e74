// Package convo persists per-user conversation history and implements
// the squeeze policy bounding the context sent to the model.
package convo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ArthurBabkin/ai-sales/internal/identutil"
	"github.com/ArthurBabkin/ai-sales/internal/paths"
	"github.com/ArthurBabkin/ai-sales/llm"
	"github.com/ArthurBabkin/ai-sales/store"
)

const (
	DefaultMaxTurns    = 30
	DefaultMaxChars    = 500
	truncationEllipsis = "..."
)

// Conversation mirrors the stored record. LastUpdate is unix
// milliseconds; a freshly reset conversation carries neither
// LastUpdate nor ReminderLast until the first append.
type Conversation struct {
	Messages     []llm.Message `json:"messages"`
	LastUpdate   int64         `json:"lastUpdate,omitempty"`
	ReminderLast bool          `json:"reminderLast,omitempty"`
}

// Store serializes writes per user key with in-process mutexes. The
// hosted database offers no transactions, so without this two
// near-simultaneous appends for one user could drop a message.
type Store struct {
	db  store.Store
	now func() time.Time

	mu    sync.Mutex
	users map[string]*sync.Mutex
}

func NewStore(db store.Store) *Store {
	return &Store{db: db, now: time.Now, users: make(map[string]*sync.Mutex)}
}

// WithClock overrides the timestamp source. Tests only.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) userLock(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.users[key]
	if !ok {
		lock = &sync.Mutex{}
		s.users[key] = lock
	}
	return lock
}

func chatPath(userID string) (string, error) {
	return store.Join(paths.Chats, identutil.UserKey(userID))
}

// Reset overwrites the conversation with the given messages, dropping
// lastUpdate and reminderLast entirely (full replace, not merge).
func (s *Store) Reset(ctx context.Context, userID string, messages []llm.Message) error {
	path, err := chatPath(userID)
	if err != nil {
		return err
	}
	if messages == nil {
		messages = []llm.Message{}
	}
	lock := s.userLock(identutil.UserKey(userID))
	lock.Lock()
	defer lock.Unlock()
	return s.db.Set(ctx, path, map[string]any{"messages": messages})
}

// Messages returns the stored history, or an empty slice when the
// user has no record yet.
func (s *Store) Messages(ctx context.Context, userID string) ([]llm.Message, error) {
	path, err := chatPath(userID)
	if err != nil {
		return nil, err
	}
	var conv Conversation
	found, err := s.db.Get(ctx, path, &conv)
	if err != nil {
		return nil, err
	}
	if !found || conv.Messages == nil {
		return []llm.Message{}, nil
	}
	return conv.Messages, nil
}

// Append reads the current history, appends msg and merge-updates the
// record with a fresh lastUpdate. reminder marks the new message as a
// re-engagement reminder, excluding the chat from the next sweep.
func (s *Store) Append(ctx context.Context, userID string, msg llm.Message, reminder bool) error {
	path, err := chatPath(userID)
	if err != nil {
		return err
	}
	lock := s.userLock(identutil.UserKey(userID))
	lock.Lock()
	defer lock.Unlock()

	messages, err := s.Messages(ctx, userID)
	if err != nil {
		return fmt.Errorf("convo: append: %w", err)
	}
	messages = append(messages, msg)
	return s.db.Update(ctx, path, map[string]any{
		"messages":     messages,
		"lastUpdate":   s.now().UnixMilli(),
		"reminderLast": reminder,
	})
}

// Forgotten returns conversations idle for longer than olderThan whose
// most recent message is not already a reminder, keyed by user key.
// Records that never saw an append (no lastUpdate) are skipped.
func (s *Store) Forgotten(ctx context.Context, olderThan time.Duration) (map[string]Conversation, error) {
	var chats map[string]Conversation
	found, err := s.db.Get(ctx, paths.Chats, &chats)
	if err != nil {
		return nil, err
	}
	result := make(map[string]Conversation)
	if !found {
		return result, nil
	}
	cutoff := s.now().Add(-olderThan).UnixMilli()
	for key, conv := range chats {
		if conv.LastUpdate == 0 || conv.ReminderLast {
			continue
		}
		if conv.LastUpdate < cutoff {
			result[key] = conv
		}
	}
	return result, nil
}

// Squeeze bounds history to the last maxTurns messages and truncates
// each retained message longer than maxChars to its trailing maxChars
// characters plus an ellipsis. The tail is kept rather than the head:
// the freshest part of a long message is the relevant one. Pure and
// idempotent on already-short input.
func Squeeze(messages []llm.Message, maxTurns, maxChars int) []llm.Message {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	if len(messages) > maxTurns {
		messages = messages[len(messages)-maxTurns:]
	}
	out := make([]llm.Message, len(messages))
	copy(out, messages)
	for i := range out {
		content := []rune(out[i].Content)
		if len(content) > maxChars {
			out[i].Content = string(content[len(content)-maxChars:]) + truncationEllipsis
		}
	}
	return out
}
