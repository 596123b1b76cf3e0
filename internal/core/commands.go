package core

import (
	"context"
	"fmt"
	"log"
	"strings"

	"nutricoach.in/nutribot/internal/store"
)

const guideMessage = `I'm your nutrition coach! Here's what I can help with:

- Tell me what you ate and I'll estimate the macros and log it
- Tell me your weight and I'll track it
- Ask me anything about nutrition and wellness
- Ask how you're doing and I'll review your recent progress

Commands:
/help - show this menu
/progress - charts of your weight and calories
/summary - today's meal totals
/goal <cut|bulk|maintain> - set your goal
/info <topic> - learn about a nutrition topic
/mealplan - get a meal plan for your goal`

// handleCommand executes the slash-command paths. Commands bypass the
// classifier entirely and never change confirmation state.
func (r *Router) handleCommand(ctx context.Context, identity string, msg string) []Reply {
	fields := strings.Fields(msg)
	command := strings.ToLower(fields[0])
	args := strings.TrimSpace(strings.TrimPrefix(msg, fields[0]))

	switch command {
	case "/help", "/start":
		return []Reply{TextReply(guideMessage)}
	case "/progress":
		return r.progressCharts(identity)
	case "/summary":
		return r.todaySummary(identity)
	case "/goal":
		return r.setGoal(identity, args)
	case "/info":
		if args == "" {
			return []Reply{TextReply("Tell me what you'd like to learn about, e.g. /info protein")}
		}
		info, err := r.responder.NutritionInfo(ctx, args)
		if err != nil {
			log.Printf("Nutrition info responder failed for %s: %v", identity, err)
			return []Reply{TextReply(msgUnexpectedError)}
		}
		return []Reply{TextReply(info)}
	case "/mealplan":
		return r.mealPlan(ctx, identity)
	default:
		return []Reply{TextReply(guideMessage)}
	}
}

func (r *Router) progressCharts(identity string) []Reply {
	sinceDay := r.now().AddDate(0, 0, -r.chartDays).Format(store.DayFormat)

	weights, err := r.store.WeightsSince(identity, sinceDay)
	if err != nil {
		log.Printf("Failed to load weights for %s: %v", identity, err)
		return []Reply{TextReply(msgUnexpectedError)}
	}
	meals, err := r.store.MealsSince(identity, sinceDay)
	if err != nil {
		log.Printf("Failed to load meals for %s: %v", identity, err)
		return []Reply{TextReply(msgUnexpectedError)}
	}

	if len(weights) == 0 && len(meals) == 0 {
		return []Reply{TextReply("No logs yet! Log some meals and weigh-ins first, then check back.")}
	}

	return []Reply{
		ImageReply(WeightChartURL(WeightSeries(weights), r.chartDays), "Your weight trend"),
		ImageReply(CalorieChartURL(DailyCalorieTotals(meals), r.chartDays), "Your calorie trend"),
	}
}

func (r *Router) todaySummary(identity string) []Reply {
	today := r.now().Format(store.DayFormat)
	meals, err := r.store.MealsOnDay(identity, today)
	if err != nil {
		log.Printf("Failed to load today's meals for %s: %v", identity, err)
		return []Reply{TextReply(msgUnexpectedError)}
	}
	if len(meals) == 0 {
		return []Reply{TextReply("You haven't logged any meals today.")}
	}

	var calories, protein, carbs, fat float64
	var lines []string
	for _, meal := range meals {
		calories += meal.Calories
		protein += meal.Protein
		carbs += meal.Carbs
		fat += meal.Fat
		lines = append(lines, fmt.Sprintf("- %s (%.0f cal)", meal.Label, meal.Calories))
	}

	summary := fmt.Sprintf("Today's meals:\n%s\n\nTotals: %.0f calories, %.0fg protein, %.0fg carbs, %.0fg fat",
		strings.Join(lines, "\n"), calories, protein, carbs, fat)
	return []Reply{TextReply(summary)}
}

func (r *Router) setGoal(identity string, arg string) []Reply {
	goal, ok := store.ParseGoal(strings.ToLower(arg))
	if !ok {
		return []Reply{TextReply("I didn't recognize that goal. Use /goal cut, /goal bulk, or /goal maintain.")}
	}
	if err := r.store.SetGoal(identity, goal); err != nil {
		log.Printf("Failed to set goal for %s: %v", identity, err)
		return []Reply{TextReply(msgUnexpectedError)}
	}
	return []Reply{TextReply(fmt.Sprintf("✅ Your goal is now set to %s.", goal))}
}

func (r *Router) mealPlan(ctx context.Context, identity string) []Reply {
	goal := store.GoalMaintain
	if profile, err := r.store.GetUser(identity); err != nil {
		log.Printf("Failed to load profile for %s, using default goal: %v", identity, err)
	} else if profile != nil {
		goal = profile.Goal
	}

	plan, err := r.responder.MealPlan(ctx, goal)
	if err != nil {
		log.Printf("Meal plan responder failed for %s: %v", identity, err)
		return []Reply{TextReply(msgUnexpectedError)}
	}
	return []Reply{TextReply(plan)}
}

// buildFeedbackSummary assembles the last week of logs and conversation into
// a plain-text digest for the feedback responder.
func (r *Router) buildFeedbackSummary(identity string) string {
	now := r.now()
	weekAgo := now.AddDate(0, 0, -7)
	sinceDay := weekAgo.Format(store.DayFormat)

	goal := store.GoalMaintain
	if profile, err := r.store.GetUser(identity); err == nil && profile != nil {
		goal = profile.Goal
	}

	var chatSummary strings.Builder
	if messages, err := r.store.ChatSince(identity, weekAgo); err != nil {
		log.Printf("Failed to load chat history for feedback for %s: %v", identity, err)
	} else {
		for _, msg := range messages {
			fmt.Fprintf(&chatSummary, "%s: %s\n", msg.Role, msg.Content)
		}
	}
	if chatSummary.Len() == 0 {
		chatSummary.WriteString("No recent conversation history.\n")
	}

	var mealSummary strings.Builder
	if meals, err := r.store.MealsSince(identity, sinceDay); err != nil {
		log.Printf("Failed to load meals for feedback for %s: %v", identity, err)
	} else {
		for _, meal := range meals {
			fmt.Fprintf(&mealSummary, "%s: %s (%.0f cal)\n", meal.Day, meal.Label, meal.Calories)
		}
	}
	if mealSummary.Len() == 0 {
		mealSummary.WriteString("No meal logs found.\n")
	}

	var weightSummary strings.Builder
	if weights, err := r.store.WeightsSince(identity, sinceDay); err != nil {
		log.Printf("Failed to load weights for feedback for %s: %v", identity, err)
	} else {
		for _, w := range weights {
			fmt.Fprintf(&weightSummary, "%s: %s lbs\n", w.Day, formatWeight(w.Value))
		}
	}
	if weightSummary.Len() == 0 {
		weightSummary.WriteString("No weight logs found.\n")
	}

	return fmt.Sprintf(`Goal: %s

Chat History (last 7 days):
---------------------------
%s
Meal Logs:
-----------
%s
Weight Logs:
-------------
%s`, goal, chatSummary.String(), mealSummary.String(), weightSummary.String())
}
