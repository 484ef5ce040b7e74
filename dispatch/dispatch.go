// Package dispatch runs the operator-side Telegram bot: it fans
// triggered leads out to seller groups, arbitrates claims and keeps
// the served-leads leaderboard.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ArthurBabkin/ai-sales/handoff"
	"github.com/ArthurBabkin/ai-sales/internal/telegram"
)

const (
	pickPrefix = "pick:"
	donePrefix = "done:"

	startMessage = "Sales operator bot.\n" +
		"/set_group — receive lead notifications in this chat\n" +
		"/unset_group — stop notifications here\n" +
		"/leader_board — served leads per seller\n" +
		"/reset_leader_board — clear the leaderboard\n" +
		"/finish [notes] — close your current service"
)

// API is the slice of the Bot API the dispatcher drives. Satisfied by
// *telegram.Client.
type API interface {
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]telegram.Update, int64, error)
	SendMessage(ctx context.Context, chatID int64, text string, markup *telegram.InlineKeyboardMarkup) (*telegram.Message, error)
	EditMessageText(ctx context.Context, chatID, messageID int64, text string, markup *telegram.InlineKeyboardMarkup) error
	AnswerCallbackQuery(ctx context.Context, callbackID, text string, showAlert bool) error
}

type Dispatcher struct {
	API     API
	Handoff *handoff.Coordinator
	Logger  *slog.Logger
	// PollInterval paces the trigger-queue sweep.
	PollInterval time.Duration
	// LongPoll is the getUpdates hold time.
	LongPoll time.Duration
}

func (d *Dispatcher) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// Run drives both loops until ctx is cancelled: the update loop for
// operator commands and callbacks, and the trigger poll that fans new
// leads out to every registered group.
func (d *Dispatcher) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		d.updateLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		d.triggerLoop(ctx)
	}()
	wg.Wait()
	return ctx.Err()
}

func (d *Dispatcher) updateLoop(ctx context.Context) {
	var offset int64
	for ctx.Err() == nil {
		updates, next, err := d.API.GetUpdates(ctx, offset, d.LongPoll)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if !telegram.IsPollTimeout(err) {
				d.logger().Error("getUpdates failed", "error", err)
				select {
				case <-time.After(5 * time.Second):
				case <-ctx.Done():
					return
				}
			}
			continue
		}
		offset = next
		for i := range updates {
			d.HandleUpdate(ctx, &updates[i])
		}
	}
}

func (d *Dispatcher) triggerLoop(ctx context.Context) {
	interval := d.PollInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.Notify(ctx); err != nil {
				d.logger().Error("trigger sweep failed", "error", err)
			}
		}
	}
}

// Notify drains the trigger queue and posts one claimable
// notification per (group, trigger) pair. Groups are loaded before the
// drain so a read failure leaves the queue intact for the next sweep.
func (d *Dispatcher) Notify(ctx context.Context) error {
	groups, err := d.Handoff.Groups(ctx)
	if err != nil {
		return err
	}
	triggers, err := d.Handoff.DrainTriggers(ctx)
	if err != nil {
		return err
	}
	for _, trig := range triggers {
		text := fmt.Sprintf("Lead %s needs a seller (intent: %s)", trig.UserID, trig.Trigger)
		markup := &telegram.InlineKeyboardMarkup{InlineKeyboard: [][]telegram.InlineKeyboardButton{
			{{Text: "Claim", CallbackData: pickPrefix + trig.UserID}},
		}}
		for _, chatID := range groups {
			if _, err := d.API.SendMessage(ctx, chatID, text, markup); err != nil {
				d.logger().Error("lead notification failed", "chat", chatID, "lead", trig.UserID, "error", err)
			}
		}
	}
	return nil
}

// sellerKey identifies a seller across claims and the leaderboard.
func sellerKey(u *telegram.User) string {
	if u == nil {
		return ""
	}
	if u.Username != "" {
		return u.Username
	}
	return fmt.Sprintf("id%d", u.ID)
}

func (d *Dispatcher) HandleUpdate(ctx context.Context, u *telegram.Update) {
	switch {
	case u.CallbackQuery != nil:
		d.handleCallback(ctx, u.CallbackQuery)
	case u.Message != nil && u.Message.Chat != nil:
		d.handleCommand(ctx, u.Message)
	}
}

func (d *Dispatcher) reply(ctx context.Context, chatID int64, text string) {
	if _, err := d.API.SendMessage(ctx, chatID, text, nil); err != nil {
		d.logger().Error("reply failed", "chat", chatID, "error", err)
	}
}

func (d *Dispatcher) handleCommand(ctx context.Context, msg *telegram.Message) {
	text := strings.TrimSpace(msg.Text)
	if !strings.HasPrefix(text, "/") {
		return
	}
	command, args, _ := strings.Cut(text, " ")
	// Group chats may address the bot as /finish@BotName.
	command, _, _ = strings.Cut(command, "@")
	chatID := msg.Chat.ID

	switch command {
	case "/start", "/help":
		d.reply(ctx, chatID, startMessage)
	case "/set_group":
		if err := d.Handoff.AddGroup(ctx, chatID); err != nil {
			d.logger().Error("set_group failed", "chat", chatID, "error", err)
			d.reply(ctx, chatID, "Could not register this chat, try again")
			return
		}
		d.reply(ctx, chatID, "This chat now receives lead notifications")
	case "/unset_group":
		err := d.Handoff.RemoveGroup(ctx, chatID)
		switch {
		case errors.Is(err, handoff.ErrGroupNotFound):
			d.reply(ctx, chatID, "This chat is not registered")
		case err != nil:
			d.logger().Error("unset_group failed", "chat", chatID, "error", err)
			d.reply(ctx, chatID, "Could not unregister this chat, try again")
		default:
			d.reply(ctx, chatID, "This chat no longer receives lead notifications")
		}
	case "/leader_board":
		board, err := d.leaderboard(ctx)
		if err != nil {
			d.logger().Error("leader_board failed", "error", err)
			d.reply(ctx, chatID, "Could not load the leaderboard, try again")
			return
		}
		d.reply(ctx, chatID, board)
	case "/reset_leader_board":
		if err := d.Handoff.ResetServices(ctx); err != nil {
			d.logger().Error("reset_leader_board failed", "error", err)
			d.reply(ctx, chatID, "Could not reset the leaderboard, try again")
			return
		}
		d.reply(ctx, chatID, "Leaderboard reset")
	case "/finish":
		d.finish(ctx, msg, strings.TrimSpace(args))
	}
}

func (d *Dispatcher) finish(ctx context.Context, msg *telegram.Message, notes string) {
	chatID := msg.Chat.ID
	seller := sellerKey(msg.From)
	if seller == "" {
		return
	}
	userKey, err := d.Handoff.Finish(ctx, seller, notes)
	switch {
	case errors.Is(err, handoff.ErrNoActiveLease):
		d.reply(ctx, chatID, "You have no active service to finish")
	case err != nil:
		d.logger().Error("finish failed", "seller", seller, "error", err)
		d.reply(ctx, chatID, "Could not finish the service, try again")
	default:
		d.reply(ctx, chatID, fmt.Sprintf("Service for %s finished. Good job!", userKey))
	}
}

func (d *Dispatcher) leaderboard(ctx context.Context) (string, error) {
	services, err := d.Handoff.Services(ctx)
	if err != nil {
		return "", err
	}
	if len(services) == 0 {
		return "No services yet", nil
	}
	sellers := make([]string, 0, len(services))
	for seller := range services {
		sellers = append(sellers, seller)
	}
	sort.Slice(sellers, func(i, j int) bool {
		a, b := sellers[i], sellers[j]
		if len(services[a]) != len(services[b]) {
			return len(services[a]) > len(services[b])
		}
		return a < b
	})
	var b strings.Builder
	b.WriteString("Leaderboard:\n")
	for i, seller := range sellers {
		fmt.Fprintf(&b, "%d. %s — %d\n", i+1, seller, len(services[seller]))
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (d *Dispatcher) answer(ctx context.Context, callbackID, text string) {
	if err := d.API.AnswerCallbackQuery(ctx, callbackID, text, text != ""); err != nil {
		d.logger().Error("answer callback failed", "error", err)
	}
}

func (d *Dispatcher) handleCallback(ctx context.Context, cb *telegram.CallbackQuery) {
	switch {
	case strings.HasPrefix(cb.Data, pickPrefix):
		d.handlePick(ctx, cb, strings.TrimPrefix(cb.Data, pickPrefix))
	case strings.HasPrefix(cb.Data, donePrefix):
		rest := strings.TrimPrefix(cb.Data, donePrefix)
		userKey, seller, ok := strings.Cut(rest, ":")
		if !ok {
			d.answer(ctx, cb.ID, "")
			return
		}
		d.handleDone(ctx, cb, userKey, seller)
	default:
		d.answer(ctx, cb.ID, "")
	}
}

func (d *Dispatcher) handlePick(ctx context.Context, cb *telegram.CallbackQuery, userKey string) {
	seller := sellerKey(cb.From)
	if seller == "" {
		d.answer(ctx, cb.ID, "Cannot identify you, set a Telegram username")
		return
	}
	err := d.Handoff.Claim(ctx, seller, userKey)
	switch {
	case errors.Is(err, handoff.ErrLeaseHeld):
		d.answer(ctx, cb.ID, "Finish your current service first")
		return
	case errors.Is(err, handoff.ErrLeadTaken):
		d.answer(ctx, cb.ID, "Another seller already claimed this lead")
		return
	case err != nil:
		d.logger().Error("claim failed", "seller", seller, "lead", userKey, "error", err)
		d.answer(ctx, cb.ID, "Claim failed, try again")
		return
	}
	d.answer(ctx, cb.ID, "")
	if cb.Message == nil || cb.Message.Chat == nil {
		return
	}
	text := fmt.Sprintf("Lead %s is taken by %s.\nContact: https://wa.me/%s",
		userKey, cb.From.DisplayName(), userKey)
	markup := &telegram.InlineKeyboardMarkup{InlineKeyboard: [][]telegram.InlineKeyboardButton{
		{{Text: "Done", CallbackData: donePrefix + userKey + ":" + seller}},
	}}
	if err := d.API.EditMessageText(ctx, cb.Message.Chat.ID, cb.Message.MessageID, text, markup); err != nil {
		d.logger().Error("edit claimed message failed", "error", err)
	}
}

func (d *Dispatcher) handleDone(ctx context.Context, cb *telegram.CallbackQuery, userKey, seller string) {
	if sellerKey(cb.From) != seller {
		d.answer(ctx, cb.ID, "Only the claiming seller can close this lead")
		return
	}
	err := d.Handoff.Confirm(ctx, seller, userKey)
	switch {
	case errors.Is(err, handoff.ErrNotYourClient):
		d.answer(ctx, cb.ID, "This lead is not yours to close")
		return
	case err != nil:
		d.logger().Error("confirm failed", "seller", seller, "lead", userKey, "error", err)
		d.answer(ctx, cb.ID, "Could not confirm, try again")
		return
	}
	d.answer(ctx, cb.ID, "")
	if cb.Message == nil || cb.Message.Chat == nil {
		return
	}
	text := fmt.Sprintf("Lead %s served by %s.\nSend /finish [notes] to record it.",
		userKey, cb.From.DisplayName())
	if err := d.API.EditMessageText(ctx, cb.Message.Chat.ID, cb.Message.MessageID, text, nil); err != nil {
		d.logger().Error("edit done message failed", "error", err)
	}
}
