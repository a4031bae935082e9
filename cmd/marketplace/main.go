package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"

	"rental_marketplace/pkg/config"
	"rental_marketplace/pkg/database"
	"rental_marketplace/pkg/handlers"
	"rental_marketplace/pkg/notify"
	"rental_marketplace/pkg/reviews"
)

func main() {
	log.Println("Starting marketplace service...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger := newLogger(cfg.LogLevel)

	db, err := database.Connect(cfg.DatabaseURL, 10, 5*time.Second)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("%v", err)
	}
	if cfg.SeedData {
		if err := database.Seed(db); err != nil {
			log.Fatalf("Failed to seed data: %v", err)
		}
	}
	reader, err := database.Reader(db)
	if err != nil {
		log.Fatalf("Failed to open read connection: %v", err)
	}

	var sender notify.Sender = notify.LogSender{Logger: logger}
	if cfg.MailAPIURL != "" {
		sender = notify.NewHTTPSender(cfg.MailAPIURL, cfg.MailFrom)
	} else {
		log.Println("MAIL_API_URL not set, notifications are only logged")
	}
	dispatcher := notify.NewDispatcher(sender, notify.DefaultDispatcherConfig(), logger)

	clock := reviews.SystemClock{}
	aggregator := reviews.NewAggregator(db, logger)
	resolver := reviews.NewResolver(db, aggregator, clock, logger)
	service := reviews.NewService(db, resolver, dispatcher, clock, logger)
	sweeper := reviews.NewSweeper(db, resolver, clock, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go dispatcher.Run(ctx)
	go sweeper.Run(ctx, cfg.SweepInterval)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	handlers.New(db, service, reviews.NewQueries(reader), clock, logger).Register(router, cfg.JWTSecret)

	c := cors.New(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      c.Handler(router),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Marketplace service starting on :%s", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown failed: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
	log.Println("Marketplace service stopped")
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		l = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: l}))
}
