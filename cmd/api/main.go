// cmd/api/main.go
// SweatMatch API server entry point.

package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweatmatch/sweatmatch-backend/internal/auth"
	"github.com/sweatmatch/sweatmatch-backend/internal/common/database"
	"github.com/sweatmatch/sweatmatch-backend/internal/config"
	"github.com/sweatmatch/sweatmatch-backend/internal/matching"
	"github.com/sweatmatch/sweatmatch-backend/internal/messaging"
	"github.com/sweatmatch/sweatmatch-backend/internal/profile"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	db, err := database.NewPostgresDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	rdb, err := database.NewRedisClient(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer rdb.Close()

	crypto, err := messaging.NewEncryptionService(cfg.MessageSecret, cfg.MessageSalt, cfg.MessageKDFIterations)
	if err != nil {
		log.Fatalf("Failed to initialize message encryption: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Wiring
	authMiddleware := auth.NewMiddleware(cfg.JWTSecret)

	profileRepo := profile.NewPostgresRepository(db)
	profileService := profile.NewService(profileRepo)
	profileHandler := profile.NewHandler(profileService)

	dispatcher := messaging.NewRedisDispatcher(rdb, cfg.PendingPushMaxSize, cfg.PendingPushMaxAge)
	messagingRepo := messaging.NewPostgresRepository(db)
	messagingService := messaging.NewService(messagingRepo, crypto, dispatcher, cfg.MaxMessageLength, cfg.MessagePageLimit)
	hub := messaging.NewHub(dispatcher)
	messagingHandler := messaging.NewHandler(messagingService, hub)

	matchingRepo := matching.NewPostgresRepository(db)
	matchingService := matching.NewService(matchingRepo, profileRepo, matching.NewScoringEngine(),
		messagingService, dispatcher, cfg.MatchExpiry)
	matchingHandler := matching.NewHandler(matchingService, cfg.SuggestionDefaultLimit, cfg.SuggestionMaxLimit)

	// Background workers
	go hub.Run(ctx)
	go dispatcher.StartCleanup(ctx, cfg.DispatcherCleanupInterval)
	matching.NewScheduler(matchingService, cfg.MatchExpirySweepInterval).Start(ctx)

	// Routes
	router := mux.NewRouter()

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	matching.RegisterRoutes(router, matchingHandler, authMiddleware)
	messaging.RegisterRoutes(router, messagingHandler, authMiddleware)

	profileRouter := chi.NewRouter()
	profile.RegisterRoutes(profileRouter, profileHandler, authMiddleware)
	router.PathPrefix("/api/v1/profile").Handler(profileRouter)
	router.PathPrefix("/api/v1/users").Handler(profileRouter)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("SweatMatch API listening on port %s (%s)", cfg.Port, cfg.Environment)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Graceful shutdown failed: %v", err)
	}

	log.Println("Server stopped")
}
