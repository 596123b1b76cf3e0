package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nutricoach.in/nutribot/internal/api"
	"nutricoach.in/nutribot/internal/config"
	"nutricoach.in/nutribot/internal/core"
	"nutricoach.in/nutribot/internal/store"
)

func main() {
	// Load configuration
	config.LoadConfig()

	// Setup logging
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if config.AppConfig.LogLevel == "DEBUG" {
		log.Println("Service starting in DEBUG mode")
	}

	// Initialize database store
	dbStore, err := store.NewSQLiteStore(config.AppConfig.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer dbStore.Close()

	// Initialize LLM service (classifier, estimator, responders)
	llmService := core.NewLLMService()
	defer llmService.Close()

	// Initialize dialogue router
	router := core.NewRouter(
		dbStore,
		llmService,
		llmService,
		llmService,
		core.NewMemoryPendingStore(),
		config.AppConfig.ChartLookbackDays,
	)

	// Initialize WhatsApp transport
	waClient := api.NewWhatsAppClient(
		config.AppConfig.GraphAPIBaseURL,
		config.AppConfig.PhoneNumberID,
		config.AppConfig.WhatsAppToken,
	)
	webhookHandler := api.NewWebhookHandler(router, waClient, config.AppConfig.WebhookVerifyToken)
	httpRouter := api.NewRouter(webhookHandler)

	// Start HTTP server
	serverAddr := fmt.Sprintf(":%s", config.AppConfig.HTTPPort)

	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      httpRouter,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // LLM calls can take time
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown handling
	go func() {
		log.Printf("Starting server on %s. Press Ctrl+C to quit.", serverAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v\n", serverAddr, err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit // Block until a signal is received
	log.Println("Shutting down server...")

	// Give active webhook deliveries time to finish.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting gracefully")
}
