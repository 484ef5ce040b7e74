package greenapi

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// Handler reacts to incoming WhatsApp messages. Implemented by the
// dialogue engine.
type Handler interface {
	HandleStart(ctx context.Context, chatID string) error
	HandleReset(ctx context.Context, chatID string) error
	HandleHelp(ctx context.Context, chatID string) error
	HandleText(ctx context.Context, chatID, text string) error
}

// Receiver is the notification queue the bot drains. Satisfied by
// *Client.
type Receiver interface {
	Receive(ctx context.Context) (*Notification, error)
	Delete(ctx context.Context, receiptID int64) error
}

// Bot pumps the gateway notification queue into the handler.
type Bot struct {
	API     Receiver
	Handler Handler
	Logger  *slog.Logger
	// ErrorDelay throttles the poll loop after transport errors.
	ErrorDelay time.Duration
}

func (b *Bot) logger() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return slog.Default()
}

// Run polls until ctx is cancelled. Notifications are acknowledged
// even when handling fails: the gateway would otherwise redeliver the
// same message forever.
func (b *Bot) Run(ctx context.Context) error {
	delay := b.ErrorDelay
	if delay <= 0 {
		delay = 5 * time.Second
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := b.API.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			b.logger().Error("receive notification failed", "error", err)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		if n == nil {
			continue
		}
		b.Dispatch(ctx, n)
		if err := b.API.Delete(ctx, n.ReceiptID); err != nil {
			b.logger().Error("delete notification failed", "receipt", n.ReceiptID, "error", err)
		}
	}
}

// Dispatch routes one notification. Unknown webhook types and
// non-text messages are dropped.
func (b *Bot) Dispatch(ctx context.Context, n *Notification) {
	if n.Body.TypeWebhook != "incomingMessageReceived" || n.Body.SenderData == nil {
		return
	}
	chatID := n.Body.SenderData.ChatID
	text := strings.TrimSpace(n.Text())
	if chatID == "" || text == "" {
		return
	}

	var err error
	switch text {
	case "/start":
		err = b.Handler.HandleStart(ctx, chatID)
	case "/reset":
		err = b.Handler.HandleReset(ctx, chatID)
	case "/help":
		err = b.Handler.HandleHelp(ctx, chatID)
	default:
		err = b.Handler.HandleText(ctx, chatID, text)
	}
	if err != nil {
		b.logger().Error("handle message failed", "chat", chatID, "error", err)
	}
}
