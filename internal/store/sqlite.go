package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS users (
        phone TEXT PRIMARY KEY,
        goal TEXT NOT NULL DEFAULT 'maintain' CHECK (goal IN ('cut', 'bulk', 'maintain')),
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS meals (
        id TEXT PRIMARY KEY, -- UUID
        phone TEXT NOT NULL,
        day TEXT NOT NULL, -- YYYY-MM-DD
        label TEXT NOT NULL,
        calories REAL NOT NULL,
        protein REAL NOT NULL,
        carbs REAL NOT NULL,
        fat REAL NOT NULL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        FOREIGN KEY (phone) REFERENCES users (phone)
    );

    CREATE TABLE IF NOT EXISTS weights (
        phone TEXT NOT NULL,
        day TEXT NOT NULL, -- YYYY-MM-DD
        value REAL NOT NULL,
        PRIMARY KEY (phone, day),
        FOREIGN KEY (phone) REFERENCES users (phone)
    );

    CREATE TABLE IF NOT EXISTS chat_history (
        id TEXT PRIMARY KEY, -- UUID
        phone TEXT NOT NULL,
        role TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
        content TEXT NOT NULL,
        timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
        FOREIGN KEY (phone) REFERENCES users (phone)
    );

    CREATE INDEX IF NOT EXISTS idx_meals_phone_day ON meals(phone, day);
    CREATE INDEX IF NOT EXISTS idx_chat_history_phone_ts ON chat_history(phone, timestamp);
    `
	_, err := s.db.Exec(schema)
	return err
}

func validIdentity(phone string) error {
	if phone == "" {
		return fmt.Errorf("identity must be a non-empty string")
	}
	return nil
}

// User methods

// InitUser creates a profile with the default goal if none exists. Safe to
// call on every inbound message.
func (s *SQLiteStore) InitUser(phone string) error {
	if err := validIdentity(phone); err != nil {
		return err
	}
	_, err := s.db.Exec("INSERT OR IGNORE INTO users (phone, goal, created_at) VALUES (?, ?, ?)", phone, GoalMaintain, time.Now())
	if err != nil {
		return fmt.Errorf("failed to init user: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetUser(phone string) (*UserProfile, error) {
	if err := validIdentity(phone); err != nil {
		return nil, err
	}
	var user UserProfile
	err := s.db.QueryRow("SELECT phone, goal, created_at FROM users WHERE phone = ?", phone).Scan(&user.Phone, &user.Goal, &user.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // User not found
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &user, nil
}

func (s *SQLiteStore) SetGoal(phone string, goal Goal) error {
	if err := validIdentity(phone); err != nil {
		return err
	}
	res, err := s.db.Exec("UPDATE users SET goal = ? WHERE phone = ?", goal, phone)
	if err != nil {
		return fmt.Errorf("failed to update goal: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("user not found, goal not updated")
	}
	return nil
}

// Meal methods

// LogMeal appends a meal entry for the given day. Entries are never updated
// or deleted; two identical meals on one day produce two rows.
func (s *SQLiteStore) LogMeal(phone string, meal MealEntry) error {
	if err := validIdentity(phone); err != nil {
		return err
	}
	id := uuid.NewString()
	_, err := s.db.Exec(
		"INSERT INTO meals (id, phone, day, label, calories, protein, carbs, fat, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		id, phone, meal.Day, meal.Label, meal.Calories, meal.Protein, meal.Carbs, meal.Fat, time.Now())
	if err != nil {
		return fmt.Errorf("failed to insert meal: %w", err)
	}
	return nil
}

func (s *SQLiteStore) MealsOnDay(phone string, day string) ([]MealEntry, error) {
	return s.queryMeals("SELECT id, day, label, calories, protein, carbs, fat, created_at FROM meals WHERE phone = ? AND day = ? ORDER BY created_at ASC", phone, day)
}

// MealsSince returns meals from sinceDay (inclusive) onward, oldest first.
func (s *SQLiteStore) MealsSince(phone string, sinceDay string) ([]MealEntry, error) {
	return s.queryMeals("SELECT id, day, label, calories, protein, carbs, fat, created_at FROM meals WHERE phone = ? AND day >= ? ORDER BY day ASC, created_at ASC", phone, sinceDay)
}

func (s *SQLiteStore) queryMeals(query string, args ...interface{}) ([]MealEntry, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query meals: %w", err)
	}
	defer rows.Close()

	var meals []MealEntry
	for rows.Next() {
		var meal MealEntry
		if err := rows.Scan(&meal.ID, &meal.Day, &meal.Label, &meal.Calories, &meal.Protein, &meal.Carbs, &meal.Fat, &meal.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan meal row: %w", err)
		}
		meals = append(meals, meal)
	}
	return meals, nil
}

// Weight methods

// LogWeight upserts the weight for one calendar day. A second log on the
// same day overwrites the first (last-write-wins).
func (s *SQLiteStore) LogWeight(phone string, day string, value float64) error {
	if err := validIdentity(phone); err != nil {
		return err
	}
	_, err := s.db.Exec(
		"INSERT INTO weights (phone, day, value) VALUES (?, ?, ?) ON CONFLICT(phone, day) DO UPDATE SET value = excluded.value",
		phone, day, value)
	if err != nil {
		return fmt.Errorf("failed to upsert weight: %w", err)
	}
	return nil
}

// WeightsSince returns weight entries from sinceDay (inclusive) onward,
// oldest first. Days with no entry are simply absent.
func (s *SQLiteStore) WeightsSince(phone string, sinceDay string) ([]WeightEntry, error) {
	rows, err := s.db.Query("SELECT day, value FROM weights WHERE phone = ? AND day >= ? ORDER BY day ASC", phone, sinceDay)
	if err != nil {
		return nil, fmt.Errorf("failed to query weights: %w", err)
	}
	defer rows.Close()

	var weights []WeightEntry
	for rows.Next() {
		var w WeightEntry
		if err := rows.Scan(&w.Day, &w.Value); err != nil {
			return nil, fmt.Errorf("failed to scan weight row: %w", err)
		}
		weights = append(weights, w)
	}
	return weights, nil
}

// Chat history methods

func (s *SQLiteStore) AppendChat(phone string, role string, content string) error {
	if err := validIdentity(phone); err != nil {
		return err
	}
	id := uuid.NewString()
	_, err := s.db.Exec(
		"INSERT INTO chat_history (id, phone, role, content, timestamp) VALUES (?, ?, ?, ?, ?)",
		id, phone, role, content, time.Now())
	if err != nil {
		return fmt.Errorf("failed to insert chat message: %w", err)
	}
	return nil
}

// RecentChat returns the last n messages in chronological order.
func (s *SQLiteStore) RecentChat(phone string, n int) ([]ChatMessage, error) {
	rows, err := s.db.Query(`
        SELECT id, phone, role, content, timestamp
        FROM chat_history
        WHERE phone = ?
        ORDER BY timestamp DESC, id DESC
        LIMIT ?
    `, phone, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat history: %w", err)
	}
	defer rows.Close()

	var messages []ChatMessage
	for rows.Next() {
		var msg ChatMessage
		if err := rows.Scan(&msg.ID, &msg.Phone, &msg.Role, &msg.Content, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan chat row: %w", err)
		}
		messages = append(messages, msg)
	}

	// Reverse into chronological order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// ChatSince returns all messages at or after the given time, oldest first.
func (s *SQLiteStore) ChatSince(phone string, since time.Time) ([]ChatMessage, error) {
	rows, err := s.db.Query(`
        SELECT id, phone, role, content, timestamp
        FROM chat_history
        WHERE phone = ? AND timestamp >= ?
        ORDER BY timestamp ASC, id ASC
    `, phone, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat history: %w", err)
	}
	defer rows.Close()

	var messages []ChatMessage
	for rows.Next() {
		var msg ChatMessage
		if err := rows.Scan(&msg.ID, &msg.Phone, &msg.Role, &msg.Content, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan chat row: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, nil
}
