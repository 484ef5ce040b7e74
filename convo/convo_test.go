package convo

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ArthurBabkin/ai-sales/llm"
	"github.com/ArthurBabkin/ai-sales/store"
)

func TestSqueezeKeepsLastTurns(t *testing.T) {
	var messages []llm.Message
	for i := 0; i < 40; i++ {
		messages = append(messages, llm.Message{Role: llm.RoleUser, Content: strings.Repeat("x", i)})
	}
	got := Squeeze(messages, 30, 500)
	if len(got) != 30 {
		t.Fatalf("len = %d, want 30", len(got))
	}
	if got[0].Content != messages[10].Content {
		t.Fatal("squeeze did not keep the last 30 messages")
	}
	if got[len(got)-1].Content != messages[39].Content {
		t.Fatal("squeeze reordered messages")
	}
}

func TestSqueezeTruncatesTail(t *testing.T) {
	long := strings.Repeat("a", 400) + strings.Repeat("b", 500)
	got := Squeeze([]llm.Message{{Role: llm.RoleUser, Content: long}}, 30, 500)
	if len(got) != 1 {
		t.Fatalf("len = %d", len(got))
	}
	content := got[0].Content
	if len(content) != 503 {
		t.Fatalf("content length = %d, want 503", len(content))
	}
	if content != strings.Repeat("b", 500)+"..." {
		t.Fatal("squeeze kept the head instead of the tail")
	}
}

func TestSqueezeIdempotentOnShortInput(t *testing.T) {
	in := []llm.Message{
		{Role: llm.RoleUser, Content: "hello"},
		{Role: llm.RoleAssistant, Content: "hi"},
	}
	got := Squeeze(in, 30, 500)
	if len(got) != 2 || got[0].Content != "hello" || got[1].Content != "hi" {
		t.Fatalf("squeeze mutated short input: %+v", got)
	}
}

func TestSqueezeDoesNotMutateInput(t *testing.T) {
	long := strings.Repeat("z", 600)
	in := []llm.Message{{Role: llm.RoleUser, Content: long}}
	Squeeze(in, 30, 500)
	if in[0].Content != long {
		t.Fatal("squeeze mutated the input slice")
	}
}

func TestResetAppendRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewStore(store.NewMemory())

	if err := s.Reset(ctx, "79991234567@c.us", nil); err != nil {
		t.Fatalf("reset: %v", err)
	}
	messages, err := s.Messages(ctx, "79991234567@c.us")
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	if len(messages) != 0 {
		t.Fatalf("messages after reset = %+v", messages)
	}

	msg := llm.Message{Role: llm.RoleUser, Content: "I want to buy"}
	if err := s.Append(ctx, "79991234567@c.us", msg, false); err != nil {
		t.Fatalf("append: %v", err)
	}
	messages, err = s.Messages(ctx, "79991234567")
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	if len(messages) != 1 || messages[0] != msg {
		t.Fatalf("messages = %+v, want [%+v]", messages, msg)
	}
}

func TestMessagesAbsentUser(t *testing.T) {
	s := NewStore(store.NewMemory())
	messages, err := s.Messages(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	if messages == nil || len(messages) != 0 {
		t.Fatalf("messages = %#v, want empty slice", messages)
	}
}

func TestForgottenSelection(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := base
	s := NewStore(store.NewMemory()).WithClock(func() time.Time { return now })
	timeout := 10 * time.Minute

	// Idle twice the timeout, no reminder yet: selected.
	now = base.Add(-2 * timeout)
	if err := s.Append(ctx, "stale", llm.Message{Role: llm.RoleUser, Content: "hi"}, false); err != nil {
		t.Fatalf("append: %v", err)
	}
	// Same age but last message was a reminder: excluded.
	if err := s.Append(ctx, "nagged", llm.Message{Role: llm.RoleAssistant, Content: "still there?"}, true); err != nil {
		t.Fatalf("append: %v", err)
	}
	// Recent activity: excluded.
	now = base.Add(-timeout / 2)
	if err := s.Append(ctx, "fresh", llm.Message{Role: llm.RoleUser, Content: "yo"}, false); err != nil {
		t.Fatalf("append: %v", err)
	}
	// Reset-only record, never appended to: excluded.
	if err := s.Reset(ctx, "blank", nil); err != nil {
		t.Fatalf("reset: %v", err)
	}

	now = base
	forgotten, err := s.Forgotten(ctx, timeout)
	if err != nil {
		t.Fatalf("forgotten: %v", err)
	}
	if len(forgotten) != 1 {
		t.Fatalf("forgotten = %v, want exactly {stale}", forgotten)
	}
	if _, ok := forgotten["stale"]; !ok {
		t.Fatalf("forgotten = %v, want stale selected", forgotten)
	}
}
