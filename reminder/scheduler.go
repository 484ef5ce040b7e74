// Package reminder re-engages forgotten chats: conversations idle past
// the configured cutoff whose last message is not already a reminder.
package reminder

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ArthurBabkin/ai-sales/catalog"
	"github.com/ArthurBabkin/ai-sales/convo"
	"github.com/ArthurBabkin/ai-sales/llm"
)

// defaultDirective nudges the model when no reminder prompt is
// configured in the catalog.
const defaultDirective = "The client has gone quiet. Write a short, friendly message to bring them back to the conversation."

type Sender interface {
	Send(ctx context.Context, chatID, text string) error
}

type Scheduler struct {
	Convo   *convo.Store
	Catalog *catalog.Catalog
	LLM     llm.Client
	Model   string
	Sender  Sender
	Logger  *slog.Logger

	// Interval between sweeps; tens of seconds in production.
	Interval time.Duration
}

func (s *Scheduler) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// Run sweeps on a fixed interval until the context is canceled. The
// activation setting is re-read every sweep, so turning reminders off
// in the admin panel takes effect without a restart.
func (s *Scheduler) Run(ctx context.Context) {
	interval := s.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				s.logger().Error("reminder_sweep_failed", "error", err.Error())
			}
		}
	}
}

// Sweep selects forgotten chats and re-engages each one. Per-user
// failures are logged and skipped; a chat is only marked reminded
// after its reminder was actually delivered, so a failed send is
// retried by the next sweep.
func (s *Scheduler) Sweep(ctx context.Context) error {
	settings, err := s.Catalog.Settings(ctx)
	if err != nil {
		return fmt.Errorf("reminder: load settings: %w", err)
	}
	if settings.ReminderActivationTime <= 0 {
		return nil
	}
	cutoff := time.Duration(settings.ReminderActivationTime * float64(time.Minute))

	forgotten, err := s.Convo.Forgotten(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("reminder: select forgotten chats: %w", err)
	}
	if len(forgotten) == 0 {
		return nil
	}

	systemPrompt, err := s.Catalog.SystemPrompt(ctx)
	if err != nil {
		return fmt.Errorf("reminder: load system prompt: %w", err)
	}
	items, err := s.Catalog.Items(ctx)
	if err != nil {
		return fmt.Errorf("reminder: load items: %w", err)
	}
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return err
	}
	system := []string{fmt.Sprintf("%s\nItems:\n%s", systemPrompt, itemsJSON)}

	directive, err := s.Catalog.ReminderPrompt(ctx)
	if err != nil {
		return fmt.Errorf("reminder: load reminder prompt: %w", err)
	}
	if directive == "" {
		directive = defaultDirective
	}

	for userKey, conversation := range forgotten {
		if err := s.remind(ctx, userKey, conversation, directive, system); err != nil {
			s.logger().Warn("reminder_skipped", "user", userKey, "error", err.Error())
		}
	}
	return nil
}

func (s *Scheduler) remind(ctx context.Context, userKey string, conversation convo.Conversation, directive string, system []string) error {
	messages := append(append([]llm.Message{}, conversation.Messages...), llm.Message{
		Role:    llm.RoleUser,
		Content: directive,
	})
	result, err := s.LLM.Chat(ctx, llm.Request{
		Model:    s.Model,
		Messages: convo.Squeeze(messages, convo.DefaultMaxTurns, convo.DefaultMaxChars),
		System:   system,
	})
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}
	if err := s.Sender.Send(ctx, userKey, result.Text); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	// Persist only after a confirmed send; the reminderLast mark on
	// the final append is what excludes this chat from future sweeps.
	if err := s.Convo.Append(ctx, userKey, llm.Message{Role: llm.RoleUser, Content: directive}, false); err != nil {
		return fmt.Errorf("persist directive: %w", err)
	}
	if err := s.Convo.Append(ctx, userKey, llm.Message{Role: llm.RoleAssistant, Content: result.Text}, true); err != nil {
		return fmt.Errorf("persist reminder: %w", err)
	}
	s.logger().Info("reminder_sent", "user", userKey)
	return nil
}
