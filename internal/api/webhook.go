package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"nutricoach.in/nutribot/internal/core"
)

// TurnHandler runs one dialogue turn. *core.Router implements it.
type TurnHandler interface {
	HandleMessage(ctx context.Context, identity string, text string) []core.Reply
}

type WebhookHandler struct {
	turns       TurnHandler
	sender      MessageSender
	verifyToken string
}

func NewWebhookHandler(turns TurnHandler, sender MessageSender, verifyToken string) *WebhookHandler {
	return &WebhookHandler{
		turns:       turns,
		sender:      sender,
		verifyToken: verifyToken,
	}
}

// VerifyHandler answers the Cloud API webhook verification handshake: echo
// hub.challenge as plain text when the verify token matches, 403 otherwise.
func (h *WebhookHandler) VerifyHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	mode := query.Get("hub.mode")
	token := query.Get("hub.verify_token")
	challenge := query.Get("hub.challenge")

	if mode == "subscribe" && token == h.verifyToken {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(challenge))
		return
	}
	w.WriteHeader(http.StatusForbidden)
}

// inboundPayload mirrors the slice of the Cloud API webhook body we care
// about: entry[0].changes[0].value.messages[0].
type inboundPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Messages []struct {
					From string `json:"from"`
					ID   string `json:"id"`
					Type string `json:"type"`
					Text struct {
						Body string `json:"body"`
					} `json:"text"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// InboundHandler processes one webhook delivery. Status deliveries and
// non-text messages are acknowledged without routing. The mark-read/typing
// call is fired off without waiting; its outcome never affects the turn.
func (h *WebhookHandler) InboundHandler(w http.ResponseWriter, r *http.Request) {
	var payload inboundPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		log.Printf("Failed to decode webhook payload: %v", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	msg, ok := firstTextMessage(payload)
	if !ok {
		w.WriteHeader(http.StatusOK) // nothing to do
		return
	}

	go func(messageID string) {
		if err := h.sender.MarkRead(context.Background(), messageID); err != nil {
			log.Printf("Failed to mark message %s as read: %v", messageID, err)
		}
	}(msg.ID)

	replies := h.turns.HandleMessage(r.Context(), msg.From, msg.Body)

	for _, reply := range replies {
		var err error
		switch reply.Kind {
		case core.ReplyImage:
			err = h.sender.SendImage(r.Context(), msg.From, reply.URL, reply.Caption)
		default:
			err = h.sender.SendText(r.Context(), msg.From, reply.Body)
		}
		if err != nil {
			log.Printf("Failed to send reply to %s: %v", msg.From, err)
		}
	}

	w.WriteHeader(http.StatusOK)
}

type textMessage struct {
	From string
	ID   string
	Body string
}

func firstTextMessage(payload inboundPayload) (textMessage, bool) {
	if len(payload.Entry) == 0 || len(payload.Entry[0].Changes) == 0 {
		return textMessage{}, false
	}
	messages := payload.Entry[0].Changes[0].Value.Messages
	if len(messages) == 0 {
		return textMessage{}, false
	}
	msg := messages[0]
	if msg.Type != "text" || msg.From == "" || msg.Text.Body == "" {
		return textMessage{}, false
	}
	return textMessage{From: msg.From, ID: msg.ID, Body: msg.Text.Body}, true
}
