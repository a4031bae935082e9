package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"rental_marketplace/pkg/config"
	"rental_marketplace/pkg/database"
	"rental_marketplace/pkg/reviews"
)

// sweep runs the visibility sweep once, for use from an external scheduler.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	db, err := database.Connect(cfg.DatabaseURL, 3, 2*time.Second)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("%v", err)
	}

	clock := reviews.SystemClock{}
	resolver := reviews.NewResolver(db, reviews.NewAggregator(db, logger), clock, logger)
	sweeper := reviews.NewSweeper(db, resolver, clock, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	report, err := sweeper.RunOnce(ctx)
	if err != nil {
		log.Fatalf("Sweep failed: %v", err)
	}
	log.Printf("Sweep done: checked=%d resolved=%d failed=%d", report.Checked, report.Resolved, report.Failed)
	if report.Failed > 0 {
		os.Exit(1)
	}
}
