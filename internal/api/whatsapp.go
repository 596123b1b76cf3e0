package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// MessageSender is the outbound half of the WhatsApp transport. The webhook
// handler depends on this interface so tests can capture sends.
type MessageSender interface {
	SendText(ctx context.Context, to string, body string) error
	SendImage(ctx context.Context, to string, link string, caption string) error
	MarkRead(ctx context.Context, messageID string) error
}

// WhatsAppClient talks to the WhatsApp Cloud API (graph.facebook.com).
type WhatsAppClient struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

func NewWhatsAppClient(graphBaseURL string, phoneNumberID string, token string) *WhatsAppClient {
	return &WhatsAppClient{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    fmt.Sprintf("%s/%s", graphBaseURL, phoneNumberID),
		token:      token,
	}
}

func (c *WhatsAppClient) post(ctx context.Context, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal outbound payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build outbound request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("outbound request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("cloud api returned %d: %s", resp.StatusCode, respBody)
	}
	return nil
}

func (c *WhatsAppClient) SendText(ctx context.Context, to string, body string) error {
	return c.post(ctx, map[string]interface{}{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "text",
		"text":              map[string]string{"body": body},
	})
}

func (c *WhatsAppClient) SendImage(ctx context.Context, to string, link string, caption string) error {
	return c.post(ctx, map[string]interface{}{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "image",
		"image":             map[string]string{"link": link, "caption": caption},
	})
}

// MarkRead flags the inbound message as read and shows a typing indicator.
// Callers treat this as best-effort.
func (c *WhatsAppClient) MarkRead(ctx context.Context, messageID string) error {
	return c.post(ctx, map[string]interface{}{
		"messaging_product": "whatsapp",
		"status":            "read",
		"message_id":        messageID,
		"typing_indicator":  map[string]string{"type": "text"},
	})
}
