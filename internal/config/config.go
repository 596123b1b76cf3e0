package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	GeminiAPIKey       string
	DatabaseURL        string
	HTTPPort           string
	LogLevel           string
	WebhookVerifyToken string
	WhatsAppToken      string
	PhoneNumberID      string
	GraphAPIBaseURL    string
	ChartLookbackDays  int
}

var AppConfig Config

func LoadConfig() {
	err := godotenv.Load() // Load .env file if it exists
	if err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	AppConfig = Config{
		GeminiAPIKey:       getEnv("GEMINI_API_KEY", ""),
		DatabaseURL:        getEnv("DATABASE_URL", "nutribot.db"),
		HTTPPort:           getEnv("HTTP_PORT", "8080"),
		LogLevel:           getEnv("LOG_LEVEL", "INFO"),
		WebhookVerifyToken: getEnv("WEBHOOK_VERIFY_TOKEN", ""),
		WhatsAppToken:      getEnv("WHATSAPP_TOKEN", ""),
		PhoneNumberID:      getEnv("PHONE_NUMBER_ID", ""),
		GraphAPIBaseURL:    getEnv("GRAPH_API_BASE_URL", "https://graph.facebook.com/v19.0"),
		ChartLookbackDays:  getEnvAsInt("CHART_LOOKBACK_DAYS", 14),
	}

	if AppConfig.GeminiAPIKey == "" {
		log.Fatal("GEMINI_API_KEY environment variable is required")
	}

	if AppConfig.WebhookVerifyToken == "" {
		log.Fatal("WEBHOOK_VERIFY_TOKEN environment variable is required")
	}
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}
