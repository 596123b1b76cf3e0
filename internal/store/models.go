package store

import "time"

// DayFormat is the calendar-day key used for meal and weight rows.
const DayFormat = "2006-01-02"

type Goal string

const (
	GoalCut      Goal = "cut"
	GoalBulk     Goal = "bulk"
	GoalMaintain Goal = "maintain"
)

// ParseGoal maps user input onto a known goal value.
func ParseGoal(s string) (Goal, bool) {
	switch Goal(s) {
	case GoalCut, GoalBulk, GoalMaintain:
		return Goal(s), true
	}
	return "", false
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type UserProfile struct {
	Phone     string    `json:"phone"`
	Goal      Goal      `json:"goal"`
	CreatedAt time.Time `json:"created_at"`
}

type MealEntry struct {
	ID        string    `json:"id"` // UUID
	Label     string    `json:"label"`
	Calories  float64   `json:"calories"`
	Protein   float64   `json:"protein"`
	Carbs     float64   `json:"carbs"`
	Fat       float64   `json:"fat"`
	Day       string    `json:"day"`
	CreatedAt time.Time `json:"created_at"`
}

type WeightEntry struct {
	Day   string  `json:"day"`
	Value float64 `json:"value"` // pounds
}

type ChatMessage struct {
	ID        string    `json:"id"` // UUID
	Phone     string    `json:"phone"`
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}
