package core

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"nutricoach.in/nutribot/internal/store"
)

const (
	// historyWindow bounds the recent-context slice handed to the classifier.
	historyWindow = 6

	msgUnexpectedError = "Sorry, something went wrong on my end. Please try again in a moment."
	msgCouldNotLog     = "Sorry, I couldn't save that right now. Please try logging it again."
)

// Classifier turns freeform text plus recent context into an IntentDecision.
// Implementations must degrade to IntentOther on malformed model output
// rather than failing the turn.
type Classifier interface {
	DetectIntent(ctx context.Context, message string, history []store.ChatMessage) (IntentDecision, error)
}

// Estimator resolves a meal description into a candidate entry with macros.
// It runs before a food-logging confirmation is offered; a failure here means
// no confirmation is created.
type Estimator interface {
	EstimateMeal(ctx context.Context, text string) (store.MealEntry, error)
}

// Responder produces free-text answers for the informational intents.
type Responder interface {
	NutritionInfo(ctx context.Context, topic string) (string, error)
	Feedback(ctx context.Context, summary string) (string, error)
	MealPlan(ctx context.Context, goal store.Goal) (string, error)
}

// ConversationStore is the narrow persistence surface the router depends on.
// *store.SQLiteStore implements it.
type ConversationStore interface {
	InitUser(phone string) error
	GetUser(phone string) (*store.UserProfile, error)
	SetGoal(phone string, goal store.Goal) error
	LogMeal(phone string, meal store.MealEntry) error
	MealsOnDay(phone string, day string) ([]store.MealEntry, error)
	MealsSince(phone string, sinceDay string) ([]store.MealEntry, error)
	LogWeight(phone string, day string, value float64) error
	WeightsSince(phone string, sinceDay string) ([]store.WeightEntry, error)
	AppendChat(phone string, role string, content string) error
	RecentChat(phone string, n int) ([]store.ChatMessage, error)
	ChatSince(phone string, since time.Time) ([]store.ChatMessage, error)
}

type ReplyKind string

const (
	ReplyText  ReplyKind = "text"
	ReplyImage ReplyKind = "image"
)

// Reply is one outbound item. The router never delivers replies itself; the
// transport layer sends them after the turn completes.
type Reply struct {
	Kind    ReplyKind
	Body    string // text replies
	URL     string // image replies
	Caption string // image replies
}

func TextReply(body string) Reply {
	return Reply{Kind: ReplyText, Body: body}
}

func ImageReply(url, caption string) Reply {
	return Reply{Kind: ReplyImage, URL: url, Caption: caption}
}

// Router is the dialogue state machine. Per identity it is logically in one
// of two states: IDLE (no pending confirmation) or AWAITING_CONFIRMATION
// (exactly one pending confirmation exists). Turns for the same identity are
// serialized; turns for different identities run independently.
type Router struct {
	store      ConversationStore
	classifier Classifier
	estimator  Estimator
	responder  Responder
	pending    PendingStore
	chartDays  int
	now        func() time.Time
	locks      *identityLocks
}

func NewRouter(cs ConversationStore, classifier Classifier, estimator Estimator, responder Responder, pending PendingStore, chartDays int) *Router {
	if chartDays <= 0 {
		chartDays = 14
	}
	return &Router{
		store:      cs,
		classifier: classifier,
		estimator:  estimator,
		responder:  responder,
		pending:    pending,
		chartDays:  chartDays,
		now:        time.Now,
		locks:      newIdentityLocks(),
	}
}

// HandleMessage processes one inbound message to completion and returns the
// replies for the transport layer to deliver. It always returns at least one
// reply; no failure inside the turn escapes to the caller.
func (r *Router) HandleMessage(ctx context.Context, identity string, text string) (replies []Reply) {
	unlock := r.locks.lock(identity)
	defer unlock()

	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("Recovered from panic while handling message from %s: %v", identity, rec)
			replies = []Reply{TextReply(msgUnexpectedError)}
			r.recordReplies(identity, replies)
		}
	}()

	if err := r.store.InitUser(identity); err != nil {
		log.Printf("Failed to init user %s: %v", identity, err)
	}
	// The user entry goes into history before any reply is computed, so the
	// classifier context for future turns always sees it.
	if err := r.store.AppendChat(identity, store.RoleUser, text); err != nil {
		log.Printf("Failed to record user message for %s: %v", identity, err)
	}

	msg := strings.TrimSpace(text)

	// A pending confirmation always wins over fresh classification. It is
	// consumed by this turn no matter what the message says.
	if pc, ok := r.pending.Get(identity); ok {
		r.pending.Clear(identity)
		replies = r.resolveConfirmation(identity, pc, msg)
		r.recordReplies(identity, replies)
		return replies
	}

	if strings.HasPrefix(msg, "/") {
		replies = r.handleCommand(ctx, identity, msg)
	} else {
		replies = r.classifyAndRespond(ctx, identity, msg)
	}

	r.recordReplies(identity, replies)
	return replies
}

// resolveConfirmation applies the AWAITING_CONFIRMATION row of the
// transition table: "yes"/"y" commits the stored action, anything else
// cancels it. The non-affirmative message is deliberately NOT reclassified
// this turn.
func (r *Router) resolveConfirmation(identity string, pc PendingConfirmation, msg string) []Reply {
	answer := strings.ToLower(msg)
	if answer != "yes" && answer != "y" {
		noun := "meal"
		if pc.Intent == IntentWeight {
			noun = "weight"
		}
		return []Reply{TextReply(fmt.Sprintf("❌ Got it. I won't log that %s.", noun))}
	}

	day := r.now().Format(store.DayFormat)
	switch pc.Intent {
	case IntentFood:
		meal := *pc.Meal
		meal.Day = day
		if err := r.store.LogMeal(identity, meal); err != nil {
			log.Printf("Failed to log meal for %s: %v", identity, err)
			return []Reply{TextReply(msgCouldNotLog)}
		}
		return []Reply{TextReply(fmt.Sprintf("✅ Your meal %q has been logged.", meal.Label))}
	case IntentWeight:
		if err := r.store.LogWeight(identity, day, pc.Weight); err != nil {
			log.Printf("Failed to log weight for %s: %v", identity, err)
			return []Reply{TextReply(msgCouldNotLog)}
		}
		return []Reply{TextReply(fmt.Sprintf("✅ Your weight of %s lbs has been logged.", formatWeight(pc.Weight)))}
	}
	log.Printf("Pending confirmation for %s had unexpected intent %q", identity, pc.Intent)
	return []Reply{TextReply(msgUnexpectedError)}
}

// classifyAndRespond is the IDLE branch for freeform messages.
func (r *Router) classifyAndRespond(ctx context.Context, identity string, msg string) []Reply {
	history, err := r.store.RecentChat(identity, historyWindow)
	if err != nil {
		log.Printf("Failed to load chat history for %s, classifying without context: %v", identity, err)
		history = nil
	}

	decision, err := r.classifier.DetectIntent(ctx, msg, history)
	if err != nil {
		// Classification failure is an expected outcome, not an error the
		// user should see. Degrade to the fallback branch.
		log.Printf("Intent classification failed for %s: %v", identity, err)
		decision = IntentDecision{Intent: IntentOther}
	}

	switch decision.Intent {
	case IntentFood:
		return r.offerMealConfirmation(ctx, identity, msg)
	case IntentWeight:
		r.pending.Set(identity, PendingConfirmation{
			Identity:  identity,
			Intent:    IntentWeight,
			Weight:    decision.Weight,
			CreatedAt: r.now(),
		})
		return []Reply{TextReply(fmt.Sprintf(
			"I detected that your weight is %s lbs. Would you like to log this weight? (yes/no)",
			formatWeight(decision.Weight)))}
	case IntentFeedback:
		return r.giveFeedback(ctx, identity)
	case IntentInfo:
		topic := decision.Payload
		if topic == "" {
			topic = msg
		}
		info, err := r.responder.NutritionInfo(ctx, topic)
		if err != nil {
			log.Printf("Nutrition info responder failed for %s: %v", identity, err)
			return []Reply{TextReply(msgUnexpectedError)}
		}
		return []Reply{TextReply(info)}
	default:
		return []Reply{TextReply(guideMessage)}
	}
}

// offerMealConfirmation resolves macros first, then parks the candidate
// entry as a pending confirmation. An estimation failure short-circuits to
// the guide text and leaves no pending state behind.
func (r *Router) offerMealConfirmation(ctx context.Context, identity string, msg string) []Reply {
	meal, err := r.estimator.EstimateMeal(ctx, msg)
	if err != nil {
		log.Printf("Meal estimation failed for %s: %v", identity, err)
		return []Reply{TextReply(guideMessage)}
	}

	r.pending.Set(identity, PendingConfirmation{
		Identity:  identity,
		Intent:    IntentFood,
		Meal:      &meal,
		CreatedAt: r.now(),
	})
	return []Reply{TextReply(fmt.Sprintf(
		"I estimated that %q contains about %.0f calories, %.0fg protein, %.0fg carbs, and %.0fg fat. Would you like to log this meal? (yes/no)",
		meal.Label, meal.Calories, meal.Protein, meal.Carbs, meal.Fat))}
}

func (r *Router) giveFeedback(ctx context.Context, identity string) []Reply {
	summary := r.buildFeedbackSummary(identity)
	feedback, err := r.responder.Feedback(ctx, summary)
	if err != nil {
		log.Printf("Feedback responder failed for %s: %v", identity, err)
		return []Reply{TextReply(msgUnexpectedError)}
	}
	return []Reply{TextReply(feedback)}
}

// recordReplies appends the assistant side of the turn to chat history.
// History recording is best-effort: a storage failure here is logged and
// never blocks reply delivery.
func (r *Router) recordReplies(identity string, replies []Reply) {
	for _, reply := range replies {
		content := reply.Body
		if reply.Kind == ReplyImage {
			content = strings.TrimSpace(reply.Caption + " " + reply.URL)
		}
		if err := r.store.AppendChat(identity, store.RoleAssistant, content); err != nil {
			log.Printf("Failed to record assistant reply for %s: %v", identity, err)
		}
	}
}

func formatWeight(value float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.1f", value), "0"), ".")
}

// identityLocks serializes turns per identity so that two near-simultaneous
// messages from the same sender cannot race on the pending-confirmation
// state. Turns for different identities proceed in parallel.
type identityLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newIdentityLocks() *identityLocks {
	return &identityLocks{locks: make(map[string]*sync.Mutex)}
}

func (l *identityLocks) lock(identity string) func() {
	l.mu.Lock()
	m, ok := l.locks[identity]
	if !ok {
		m = &sync.Mutex{}
		l.locks[identity] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
