package greenapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSendAppendsChatSuffix(t *testing.T) {
	var got sendMessageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/waInstance1101/sendMessage/secret" {
			t.Errorf("path = %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("bad body: %v", err)
		}
		w.Write([]byte(`{"idMessage":"x"}`))
	}))
	defer srv.Close()

	c := New(srv.Client(), srv.URL, "1101", "secret")
	if err := c.Send(context.Background(), "79001234567", "hi"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got.ChatID != "79001234567@c.us" {
		t.Fatalf("chatId = %q, want suffix appended", got.ChatID)
	}

	if err := c.Send(context.Background(), "79001234567@c.us", "hi"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got.ChatID != "79001234567@c.us" {
		t.Fatalf("chatId = %q, suffix must not double", got.ChatID)
	}
}

func TestReceiveEmptyQueue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("null"))
	}))
	defer srv.Close()

	c := New(srv.Client(), srv.URL, "1101", "secret")
	n, err := c.Receive(context.Background())
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if n != nil {
		t.Fatalf("empty queue returned %+v, want nil", n)
	}
}

func TestReceiveAndDelete(t *testing.T) {
	var deleted string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/waInstance1101/receiveNotification/secret":
			w.Write([]byte(`{
				"receiptId": 42,
				"body": {
					"typeWebhook": "incomingMessageReceived",
					"senderData": {"chatId": "79001234567@c.us", "senderName": "Bob"},
					"messageData": {
						"typeMessage": "textMessage",
						"textMessageData": {"textMessage": "hello"}
					}
				}
			}`))
		case r.Method == http.MethodDelete:
			deleted = r.URL.Path
			w.Write([]byte(`{"result":true}`))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	c := New(srv.Client(), srv.URL, "1101", "secret")
	n, err := c.Receive(context.Background())
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if n.ReceiptID != 42 || n.Text() != "hello" {
		t.Fatalf("notification = %+v", n)
	}
	if err := c.Delete(context.Background(), n.ReceiptID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if deleted != "/waInstance1101/deleteNotification/secret/42" {
		t.Fatalf("delete path = %q", deleted)
	}
}

func TestNotificationTextExtended(t *testing.T) {
	n := &Notification{Body: NotificationBody{
		MessageData: &MessageData{
			TypeMessage:             "extendedTextMessage",
			ExtendedTextMessageData: &ExtendedTextMessageData{Text: "quoted reply"},
		},
	}}
	if got := n.Text(); got != "quoted reply" {
		t.Fatalf("Text() = %q", got)
	}
	empty := &Notification{}
	if got := empty.Text(); got != "" {
		t.Fatalf("Text() on empty = %q", got)
	}
}
