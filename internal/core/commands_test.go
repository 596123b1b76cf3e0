package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nutricoach.in/nutribot/internal/store"
)

func TestCommandsBypassClassifier(t *testing.T) {
	f := newFixture()

	for _, cmd := range []string{"/help", "/start", "/progress", "/summary", "/goal bulk", "/info protein", "/mealplan", "/bogus"} {
		f.router.HandleMessage(context.Background(), phone, cmd)
	}

	assert.Equal(t, 0, f.classifier.calls, "slash commands never reach the classifier")
}

func TestGoalCommand(t *testing.T) {
	f := newFixture()

	replies := f.router.HandleMessage(context.Background(), phone, "/goal bulk")
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0].Body, "bulk")

	user, err := f.store.GetUser(phone)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, store.GoalBulk, user.Goal)
}

func TestGoalCommandRejectsUnknownValue(t *testing.T) {
	f := newFixture()
	f.router.HandleMessage(context.Background(), phone, "/goal bulk")

	replies := f.router.HandleMessage(context.Background(), phone, "/goal flying")
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0].Body, "didn't recognize")

	user, err := f.store.GetUser(phone)
	require.NoError(t, err)
	assert.Equal(t, store.GoalBulk, user.Goal, "invalid value must not mutate the profile")
}

func TestGoalCommandIsCaseInsensitive(t *testing.T) {
	f := newFixture()

	f.router.HandleMessage(context.Background(), phone, "/goal CUT")

	user, err := f.store.GetUser(phone)
	require.NoError(t, err)
	assert.Equal(t, store.GoalCut, user.Goal)
}

func TestHelpAndStartShowMenu(t *testing.T) {
	f := newFixture()

	for _, cmd := range []string{"/help", "/start", "/HELP"} {
		replies := f.router.HandleMessage(context.Background(), phone, cmd)
		require.Len(t, replies, 1)
		assert.Equal(t, guideMessage, replies[0].Body, "command %q", cmd)
	}
}

func TestUnknownCommandShowsMenu(t *testing.T) {
	f := newFixture()

	replies := f.router.HandleMessage(context.Background(), phone, "/fly me to the moon")
	require.Len(t, replies, 1)
	assert.Equal(t, guideMessage, replies[0].Body)
}

func TestProgressCommandReturnsTwoCharts(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.store.InitUser(phone))
	require.NoError(t, f.store.LogWeight(phone, today(), 170))
	require.NoError(t, f.store.LogMeal(phone, store.MealEntry{Label: "dosa", Calories: 400, Day: today()}))

	replies := f.router.HandleMessage(context.Background(), phone, "/progress")

	require.Len(t, replies, 2)
	assert.Equal(t, ReplyImage, replies[0].Kind)
	assert.Equal(t, ReplyImage, replies[1].Kind)
	assert.Contains(t, replies[0].URL, "quickchart.io")
	assert.Contains(t, replies[1].URL, "quickchart.io")
	assert.Equal(t, "Your weight trend", replies[0].Caption)
	assert.Equal(t, "Your calorie trend", replies[1].Caption)
}

func TestProgressCommandWithNoData(t *testing.T) {
	f := newFixture()

	replies := f.router.HandleMessage(context.Background(), phone, "/progress")

	require.Len(t, replies, 1)
	assert.Equal(t, ReplyText, replies[0].Kind)
	assert.Contains(t, replies[0].Body, "No logs yet")
}

func TestSummaryCommandTotalsToday(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.store.InitUser(phone))
	require.NoError(t, f.store.LogMeal(phone, store.MealEntry{Label: "poha", Calories: 300, Protein: 6, Carbs: 60, Fat: 5, Day: today()}))
	require.NoError(t, f.store.LogMeal(phone, store.MealEntry{Label: "dal rice", Calories: 550, Protein: 20, Carbs: 90, Fat: 10, Day: today()}))
	require.NoError(t, f.store.LogMeal(phone, store.MealEntry{Label: "old meal", Calories: 999, Day: "2020-01-01"}))

	replies := f.router.HandleMessage(context.Background(), phone, "/summary")

	require.Len(t, replies, 1)
	body := replies[0].Body
	assert.Contains(t, body, "poha")
	assert.Contains(t, body, "dal rice")
	assert.NotContains(t, body, "old meal")
	assert.Contains(t, body, "850 calories")
	assert.Contains(t, body, "26g protein")
	assert.Contains(t, body, "150g carbs")
	assert.Contains(t, body, "15g fat")
}

func TestSummaryCommandEmptyDay(t *testing.T) {
	f := newFixture()

	replies := f.router.HandleMessage(context.Background(), phone, "/summary")

	require.Len(t, replies, 1)
	assert.Contains(t, replies[0].Body, "haven't logged any meals today")
}

func TestInfoCommandDelegatesTopic(t *testing.T) {
	f := newFixture()
	f.responder.info = "All about ghee."

	replies := f.router.HandleMessage(context.Background(), phone, "/info ghee vs butter")

	require.Len(t, replies, 1)
	assert.Equal(t, "All about ghee.", replies[0].Body)
	assert.Equal(t, "ghee vs butter", f.responder.lastTopic)
}

func TestInfoCommandWithoutTopic(t *testing.T) {
	f := newFixture()

	replies := f.router.HandleMessage(context.Background(), phone, "/info")

	require.Len(t, replies, 1)
	assert.Contains(t, replies[0].Body, "/info")
	assert.Empty(t, f.responder.lastTopic, "responder must not be called without a topic")
}

func TestMealPlanCommandUsesProfileGoal(t *testing.T) {
	f := newFixture()
	f.router.HandleMessage(context.Background(), phone, "/goal cut")

	replies := f.router.HandleMessage(context.Background(), phone, "/mealplan")

	require.Len(t, replies, 1)
	assert.Equal(t, "plan text", replies[0].Body)
	assert.Equal(t, store.GoalCut, f.responder.lastGoal)
}

func TestMealPlanCommandDefaultsToMaintain(t *testing.T) {
	f := newFixture()

	replies := f.router.HandleMessage(context.Background(), phone, "/mealplan")

	require.Len(t, replies, 1)
	assert.Equal(t, store.GoalMaintain, f.responder.lastGoal)
}
