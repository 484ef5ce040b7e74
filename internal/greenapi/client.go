// Package greenapi talks to the GREEN-API WhatsApp gateway: outbound
// text messages plus the receive/delete notification long-poll.
package greenapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// chatSuffix is the WhatsApp contact domain. Bare phone numbers get
// it appended before sending.
const chatSuffix = "@c.us"

type Client struct {
	http       *http.Client
	baseURL    string
	instanceID string
	token      string
}

func New(httpClient *http.Client, baseURL, instanceID, token string) *Client {
	if httpClient == nil {
		// receiveNotification holds the connection open for up to
		// 20s when the queue is empty.
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{
		http:       httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		instanceID: instanceID,
		token:      token,
	}
}

func (c *Client) methodURL(method string) string {
	return fmt.Sprintf("%s/waInstance%s/%s/%s", c.baseURL, c.instanceID, method, c.token)
}

type sendMessageRequest struct {
	ChatID  string `json:"chatId"`
	Message string `json:"message"`
}

// Send delivers a text message. A chat id without a domain suffix is
// treated as a bare phone number.
func (c *Client) Send(ctx context.Context, chatID, text string) error {
	if !strings.Contains(chatID, "@") {
		chatID += chatSuffix
	}
	b, _ := json.Marshal(sendMessageRequest{ChatID: chatID, Message: text})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL("sendMessage"), bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	raw, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("greenapi http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return nil
}

type SenderData struct {
	ChatID     string `json:"chatId"`
	Sender     string `json:"sender,omitempty"`
	SenderName string `json:"senderName,omitempty"`
}

type TextMessageData struct {
	TextMessage string `json:"textMessage"`
}

type ExtendedTextMessageData struct {
	Text string `json:"text"`
}

type MessageData struct {
	TypeMessage             string                   `json:"typeMessage"`
	TextMessageData         *TextMessageData         `json:"textMessageData,omitempty"`
	ExtendedTextMessageData *ExtendedTextMessageData `json:"extendedTextMessageData,omitempty"`
}

type NotificationBody struct {
	TypeWebhook string       `json:"typeWebhook"`
	SenderData  *SenderData  `json:"senderData,omitempty"`
	MessageData *MessageData `json:"messageData,omitempty"`
}

type Notification struct {
	ReceiptID int64            `json:"receiptId"`
	Body      NotificationBody `json:"body"`
}

// Text extracts the message text regardless of which of the two
// shapes the gateway used. Empty for non-text messages.
func (n *Notification) Text() string {
	md := n.Body.MessageData
	if md == nil {
		return ""
	}
	if md.TextMessageData != nil {
		return md.TextMessageData.TextMessage
	}
	if md.ExtendedTextMessageData != nil {
		return md.ExtendedTextMessageData.Text
	}
	return ""
}

// Receive long-polls the notification queue. A nil notification with
// nil error means the queue was empty when the gateway gave up.
func (c *Client) Receive(ctx context.Context) (*Notification, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.methodURL("receiveNotification"), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	raw, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("greenapi http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}
	var out Notification
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete acknowledges a received notification so the gateway stops
// redelivering it.
func (c *Client) Delete(ctx context.Context, receiptID int64) error {
	url := fmt.Sprintf("%s/%d", c.methodURL("deleteNotification"), receiptID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	raw, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("greenapi http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return nil
}
