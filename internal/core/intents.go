package core

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Intent is the classified purpose of an inbound message. The set is closed:
// whatever vocabulary the underlying model emits is normalized onto these
// values at the boundary, so the router never branches on raw model output.
type Intent string

const (
	IntentFood     Intent = "food-logging"
	IntentWeight   Intent = "weight-logging"
	IntentFeedback Intent = "feedback"
	IntentInfo     Intent = "info"
	IntentOther    Intent = "other"
)

// IntentDecision is the normalized classifier output for one turn. It is a
// transient artifact, never persisted.
type IntentDecision struct {
	Intent               Intent
	Payload              string  // free-text detail (topic, meal description)
	Weight               float64 // pounds, only meaningful for IntentWeight
	ConfirmationRequired bool
}

// normalizeIntent maps the classifier's tag vocabulary (which has drifted
// across prompt revisions, e.g. "food" vs "food-logging") onto the closed set.
func normalizeIntent(raw string) Intent {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "food", "food-logging", "meal":
		return IntentFood
	case "weight", "weight-logging":
		return IntentWeight
	case "goals", "feedback":
		return IntentFeedback
	case "info":
		return IntentInfo
	default:
		return IntentOther
	}
}

// rawIntentResponse matches the JSON the model is prompted to return.
// Payload is kept raw because the model sometimes emits a bare number
// (weight) and sometimes a string.
type rawIntentResponse struct {
	Intent               string          `json:"intent"`
	Payload              json.RawMessage `json:"payload"`
	ConfirmationRequired bool            `json:"confirmationRequired"`
}

// ParseIntentDecision normalizes a raw model response into an IntentDecision.
// It never fails: malformed output degrades to IntentOther, which the router
// treats as the fallback branch. Accepts both a bare JSON object and a
// single-element array, since older prompt revisions produced either shape.
func ParseIntentDecision(raw string) IntentDecision {
	text := stripCodeFence(raw)

	var resp rawIntentResponse
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		var list []rawIntentResponse
		if err := json.Unmarshal([]byte(text), &list); err != nil || len(list) == 0 {
			return IntentDecision{Intent: IntentOther}
		}
		resp = list[0]
	}

	decision := IntentDecision{Intent: normalizeIntent(resp.Intent)}
	decision.Payload = payloadString(resp.Payload)

	switch decision.Intent {
	case IntentWeight:
		value, err := strconv.ParseFloat(strings.TrimSpace(decision.Payload), 64)
		if err != nil || value <= 0 {
			// The classifier contract requires a numeric weight payload.
			return IntentDecision{Intent: IntentOther}
		}
		decision.Weight = value
		decision.ConfirmationRequired = true
	case IntentFood:
		// Logging intents are always confirmation-gated, whatever the
		// model put in confirmationRequired.
		decision.ConfirmationRequired = true
	default:
		decision.ConfirmationRequired = false
	}
	return decision
}

// payloadString renders the raw payload field as plain text, whether the
// model emitted a JSON string, a number, or something structured.
func payloadString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return strings.TrimSpace(string(raw))
}

// stripCodeFence removes a surrounding markdown code fence, which the model
// sometimes wraps around its JSON despite instructions.
func stripCodeFence(s string) string {
	text := strings.TrimSpace(s)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
