// Package dialogue runs one conversational turn: context assembly,
// concurrent reply generation and intent classification, trigger
// detection and dispatch.
package dialogue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ArthurBabkin/ai-sales/catalog"
	"github.com/ArthurBabkin/ai-sales/convo"
	"github.com/ArthurBabkin/ai-sales/internal/identutil"
	"github.com/ArthurBabkin/ai-sales/llm"
	"github.com/ArthurBabkin/ai-sales/vector"
)

// Apology is persisted and sent when a turn fails; the turn ends
// without retry.
const Apology = "Sorry, an error occurred"

// triggerAck answers a fired trigger when the matched intent carries
// no configured answer (older intent records lack the field).
const triggerAck = "Thank you! Our manager will contact you shortly."

// Sender delivers outbound messages on the user's channel.
type Sender interface {
	Send(ctx context.Context, chatID, text string) error
}

// ItemRetriever yields the top-K catalog items relevant to a message.
type ItemRetriever interface {
	TopItems(ctx context.Context, query string, k int, threshold float64) ([]vector.Match, error)
}

// TriggerRecorder accepts detected handoff triggers.
type TriggerRecorder interface {
	AddTrigger(ctx context.Context, userKey, name string) error
}

type Engine struct {
	Convo    *convo.Store
	Catalog  *catalog.Catalog
	Items    ItemRetriever
	LLM      llm.Client
	Model    string
	Matcher  Matcher
	Triggers TriggerRecorder
	Sender   Sender
	Logger   *slog.Logger

	// Sleep implements the configured response delay; nil means
	// time.Sleep.
	Sleep func(time.Duration)
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func (e *Engine) sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	if e.Sleep != nil {
		e.Sleep(d)
		return
	}
	time.Sleep(d)
}

// HandleStart resets the conversation to a single assistant greeting
// and sends it.
func (e *Engine) HandleStart(ctx context.Context, chatID string) error {
	settings, err := e.Catalog.Settings(ctx)
	if err != nil {
		return err
	}
	greeting := settings.StartMessage
	if err := e.Convo.Reset(ctx, chatID, []llm.Message{{Role: llm.RoleAssistant, Content: greeting}}); err != nil {
		return err
	}
	return e.Sender.Send(ctx, chatID, greeting)
}

// HandleReset clears the conversation.
func (e *Engine) HandleReset(ctx context.Context, chatID string) error {
	settings, err := e.Catalog.Settings(ctx)
	if err != nil {
		return err
	}
	if err := e.Convo.Reset(ctx, chatID, nil); err != nil {
		return err
	}
	return e.Sender.Send(ctx, chatID, settings.ResetMessage)
}

// HandleHelp sends the help text without touching history.
func (e *Engine) HandleHelp(ctx context.Context, chatID string) error {
	settings, err := e.Catalog.Settings(ctx)
	if err != nil {
		return err
	}
	return e.Sender.Send(ctx, chatID, settings.HelpMessage)
}

// HandleText runs one full turn for an inbound message. Failures past
// the initial append resolve to the apology; the returned error is
// for logging only.
func (e *Engine) HandleText(ctx context.Context, chatID, text string) error {
	userKey := identutil.UserKey(chatID)

	if err := e.Convo.Append(ctx, chatID, llm.Message{Role: llm.RoleUser, Content: text}, false); err != nil {
		return fmt.Errorf("dialogue: append user message: %w", err)
	}
	history, err := e.Convo.Messages(ctx, chatID)
	if err != nil {
		return e.apologize(ctx, chatID, fmt.Errorf("dialogue: load history: %w", err))
	}
	history = convo.Squeeze(history, convo.DefaultMaxTurns, convo.DefaultMaxChars)

	settings, err := e.Catalog.Settings(ctx)
	if err != nil {
		return e.apologize(ctx, chatID, err)
	}
	intents, err := e.Catalog.Intents(ctx)
	if err != nil {
		return e.apologize(ctx, chatID, err)
	}

	reply, verdict, err := e.generateAndClassify(ctx, userKey, text, history, intents, settings)
	if err != nil {
		return e.apologize(ctx, chatID, err)
	}

	if intent, ok := e.Matcher.Match(verdict, intents); ok {
		return e.fireTrigger(ctx, chatID, userKey, intent)
	}

	if err := e.Convo.Append(ctx, chatID, llm.Message{Role: llm.RoleAssistant, Content: reply}, false); err != nil {
		return e.apologize(ctx, chatID, err)
	}
	e.sleep(time.Duration(settings.ResponseDelay * float64(time.Second)))
	if err := e.Sender.Send(ctx, chatID, reply); err != nil {
		return fmt.Errorf("dialogue: send reply: %w", err)
	}
	return nil
}

// generateAndClassify issues the reply generation and the intent
// classification concurrently; neither depends on the other's result.
func (e *Engine) generateAndClassify(ctx context.Context, userKey, text string, history []llm.Message, intents []catalog.Intent, settings catalog.Settings) (reply, verdict string, err error) {
	system, err := e.buildSystem(ctx, userKey, text, settings)
	if err != nil {
		return "", "", err
	}
	classifierMsg, err := e.buildClassifierMessage(ctx, history, intents)
	if err != nil {
		return "", "", err
	}

	var (
		wg          sync.WaitGroup
		genRes      llm.Result
		genErr      error
		classifyRes llm.Result
		classifyErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		genRes, genErr = e.LLM.Chat(ctx, llm.Request{
			Model:    e.Model,
			Messages: history,
			System:   system,
		})
	}()
	go func() {
		defer wg.Done()
		classifyRes, classifyErr = e.LLM.Chat(ctx, llm.Request{
			Model:    e.Model,
			Messages: []llm.Message{{Role: llm.RoleUser, Content: classifierMsg}},
		})
	}()
	wg.Wait()

	if genErr != nil {
		return "", "", fmt.Errorf("dialogue: generate reply: %w", genErr)
	}
	if classifyErr != nil {
		return "", "", fmt.Errorf("dialogue: classify intent: %w", classifyErr)
	}
	return genRes.Text, classifyRes.Text, nil
}

// buildSystem assembles the generation system prompt: base prompt,
// top-K relevant items and, when present, the lead's profile notes.
func (e *Engine) buildSystem(ctx context.Context, userKey, query string, settings catalog.Settings) ([]string, error) {
	prompt, err := e.Catalog.SystemPrompt(ctx)
	if err != nil {
		return nil, err
	}
	matches, err := e.Items.TopItems(ctx, query, settings.TopKItems, settings.Threshold)
	if err != nil {
		return nil, fmt.Errorf("dialogue: retrieve items: %w", err)
	}
	metadata := make([]map[string]string, 0, len(matches))
	for _, m := range matches {
		metadata = append(metadata, m.Metadata)
	}
	itemsJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, err
	}
	system := []string{fmt.Sprintf("%s\nItems:\n%s", prompt, itemsJSON)}

	profile, found, err := e.Catalog.Profile(ctx, userKey)
	if err != nil {
		return nil, err
	}
	if found && profile.Notes != "" {
		system = append(system, "Known client info: "+profile.Notes)
	}
	return system, nil
}

func (e *Engine) buildClassifierMessage(ctx context.Context, history []llm.Message, intents []catalog.Intent) (string, error) {
	prompt, err := e.Catalog.ClassifierPrompt(ctx)
	if err != nil {
		return "", err
	}
	// Only name and description go to the classifier; answers are
	// irrelevant to the verdict and would waste tokens.
	type classifierIntent struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	slim := make([]classifierIntent, 0, len(intents))
	for _, intent := range intents {
		slim = append(slim, classifierIntent{Name: intent.Name, Description: intent.Description})
	}
	intentsJSON, err := json.Marshal(slim)
	if err != nil {
		return "", err
	}
	dialogueJSON, err := json.Marshal(history)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s\nIntents:\n%s\nDialogue:\n%s", prompt, intentsJSON, dialogueJSON), nil
}

// fireTrigger records the handoff, wipes the conversation and answers
// with the intent's configured text. The generated reply is discarded.
func (e *Engine) fireTrigger(ctx context.Context, chatID, userKey string, intent catalog.Intent) error {
	if err := e.Triggers.AddTrigger(ctx, userKey, intent.Name); err != nil {
		return fmt.Errorf("dialogue: record trigger: %w", err)
	}
	if err := e.Convo.Reset(ctx, chatID, nil); err != nil {
		return fmt.Errorf("dialogue: reset after trigger: %w", err)
	}
	answer := intent.Answer
	if answer == "" {
		answer = triggerAck
	}
	e.logger().Info("trigger_fired", "user", userKey, "intent", intent.Name)
	return e.Sender.Send(ctx, chatID, answer)
}

func (e *Engine) apologize(ctx context.Context, chatID string, cause error) error {
	e.logger().Error("turn_failed", "chat_id", identutil.UserKey(chatID), "error", cause.Error())
	if err := e.Convo.Append(ctx, chatID, llm.Message{Role: llm.RoleAssistant, Content: Apology}, false); err != nil {
		e.logger().Error("apology_persist_failed", "error", err.Error())
	}
	if err := e.Sender.Send(ctx, chatID, Apology); err != nil {
		e.logger().Error("apology_send_failed", "error", err.Error())
	}
	return cause
}
