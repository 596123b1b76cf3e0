package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"nutricoach.in/nutribot/internal/config"
	"nutricoach.in/nutribot/internal/store"
)

const (
	defaultModelName = "gemini-1.5-flash-latest"

	intentSystemInstruction = "You are a concise intent detection system for a nutrition coach bot. " +
		"You always answer with valid JSON and nothing else."

	estimationSystemInstruction = "You are a nutrition assistant who estimates Indian food macros. " +
		"You always answer with valid JSON and nothing else."

	infoSystemInstruction = "You are an Indian nutritionist assistant. Explain topics in clear, " +
		"beginner-friendly language for someone in India. Keep answers short enough for a chat message."

	feedbackSystemInstruction = "You are a friendly and constructive nutrition coach. Your feedback is " +
		"concise, encouraging, and actionable."

	mealPlanSystemInstruction = "You are an Indian nutritionist assistant. You produce simple one-day " +
		"meal plans with approximate calories per meal, short enough for a chat message."
)

// LLMService backs the Classifier, Estimator, and Responder contracts with
// Gemini. The router only sees the interfaces, so tests swap this out for
// mocks.
type LLMService struct {
	client *genai.Client
}

func NewLLMService() *LLMService {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(config.AppConfig.GeminiAPIKey))
	if err != nil {
		log.Fatalf("Failed to create GenAI client: %v", err)
	}

	return &LLMService{
		client: client,
	}
}

func (s *LLMService) Close() {
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			log.Printf("Error closing GenAI client: %v", err)
		} else {
			log.Println("GenAI client closed.")
		}
	}
}

// generate runs one prompt through the model and collects the text parts.
func (s *LLMService) generate(ctx context.Context, systemInstruction string, prompt string, temperature float32) (string, error) {
	model := s.client.GenerativeModel(defaultModelName)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemInstruction)},
	}
	model.GenerationConfig = genai.GenerationConfig{
		Temperature: &temperature,
	}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini response was empty")
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			responseText.WriteString(string(txt))
		} else {
			log.Printf("Gemini response part was not text: %T", part)
		}
	}
	if responseText.Len() == 0 {
		return "", fmt.Errorf("gemini response had no text parts")
	}
	return responseText.String(), nil
}

// DetectIntent implements Classifier. A transport error is returned to the
// caller; unparseable model output degrades to IntentOther inside
// ParseIntentDecision.
func (s *LLMService) DetectIntent(ctx context.Context, message string, history []store.ChatMessage) (IntentDecision, error) {
	historySection := ""
	if len(history) > 0 {
		historySection = fmt.Sprintf("Chat history:\n%s\n", buildChatHistoryString(history))
	}

	prompt := fmt.Sprintf(`You are an intelligent nutrition coach bot.

Your goal is to determine the user's intention. Here are the possible user intentions:
1. The user is trying to log a meal or determine the calories of a certain food -> the "food" category.
2. The user is trying to log their weight -> the "weight" category.
3. The user is trying to discuss their goals or get feedback on their progress -> the "goals" category.
4. The user is trying to learn about a topic related to nutrition and wellness -> the "info" category.
5. The user is trying to do something outside of these 4 things -> the "other" category.

Prioritize the latest message, but also keep in account the user's chat history: %s

Return your answer strictly as valid JSON in the following format. Use the payload field for a short
description of the intent beyond the category (for info, the topic; for food, the food in question).
The only exception is weight: there the payload must be JUST A NUMBER, the weight in lbs.

{
  "intent": "food" | "weight" | "goals" | "info" | "other",
  "payload": "some string explaining the intent further",
  "confirmationRequired": false
}

User: %q`, historySection, message)

	text, err := s.generate(ctx, intentSystemInstruction, prompt, 0.3)
	if err != nil {
		return IntentDecision{}, err
	}
	return ParseIntentDecision(text), nil
}

// mealEstimate matches the JSON shape the estimation prompt asks for.
type mealEstimate struct {
	Label    string  `json:"label"`
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
}

// EstimateMeal implements Estimator.
func (s *LLMService) EstimateMeal(ctx context.Context, text string) (store.MealEntry, error) {
	prompt := fmt.Sprintf(`Estimate the calories, protein, carbs, and fat for this Indian meal: %q. Respond in JSON:
{
  "label": "...",
  "calories": ...,
  "protein": ...,
  "carbs": ...,
  "fat": ...
}`, text)

	raw, err := s.generate(ctx, estimationSystemInstruction, prompt, 0.4)
	if err != nil {
		return store.MealEntry{}, err
	}

	var estimate mealEstimate
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &estimate); err != nil {
		return store.MealEntry{}, fmt.Errorf("failed to parse meal estimation: %w", err)
	}
	if estimate.Label == "" {
		return store.MealEntry{}, fmt.Errorf("meal estimation returned no label")
	}

	return store.MealEntry{
		Label:    estimate.Label,
		Calories: estimate.Calories,
		Protein:  estimate.Protein,
		Carbs:    estimate.Carbs,
		Fat:      estimate.Fat,
	}, nil
}

// NutritionInfo implements the info half of Responder.
func (s *LLMService) NutritionInfo(ctx context.Context, topic string) (string, error) {
	prompt := fmt.Sprintf("Explain this topic in clear, beginner-friendly language: %s", topic)
	return s.generate(ctx, infoSystemInstruction, prompt, 0.5)
}

// Feedback implements the feedback half of Responder. The summary is the
// digest of recent logs and conversation assembled by the router.
func (s *LLMService) Feedback(ctx context.Context, summary string) (string, error) {
	prompt := fmt.Sprintf(`Here is a summary of the user's recent interactions:

%s

Based on the above information, please provide personalized, constructive feedback and suggestions
to help the user improve their nutrition and progress towards their goals.`, summary)
	return s.generate(ctx, feedbackSystemInstruction, prompt, 0.5)
}

// MealPlan implements the meal-plan half of Responder.
func (s *LLMService) MealPlan(ctx context.Context, goal store.Goal) (string, error) {
	prompt := fmt.Sprintf("Suggest a simple one-day Indian meal plan for someone whose goal is to %s. Include approximate calories per meal.", goal)
	return s.generate(ctx, mealPlanSystemInstruction, prompt, 0.5)
}

// buildChatHistoryString renders recent turns for the intent prompt.
func buildChatHistoryString(history []store.ChatMessage) string {
	var b strings.Builder
	for _, msg := range history {
		role := "Assistant"
		if msg.Role == store.RoleUser {
			role = "User"
		}
		fmt.Fprintf(&b, "%s: %q\n", role, msg.Content)
	}
	return strings.TrimSpace(b.String())
}
