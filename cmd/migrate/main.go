package main

import (
	"context"
	"log"
	"time"

	"reportdesk/config"
	"reportdesk/core/store"
	"reportdesk/core/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	logger := utils.NewLogger()
	db, err := store.NewDB(cfg, logger)
	if err != nil {
		logger.Fatalf("db: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	checkCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	before, err := store.GetMigrationStatus(checkCtx, db)
	cancel()
	if err != nil {
		logger.Fatalf("migration status: %v", err)
	}
	if !before.HasPending && before.HasGooseTable {
		logger.Printf("schema up to date at version %d", before.CurrentVersion)
		return
	}
	if err := store.ApplyMigrations(ctx, db, logger); err != nil {
		logger.Fatalf("migrations: %v", err)
	}
	logger.Printf("migrations applied: version %d -> %d", before.CurrentVersion, before.LatestVersion)
}
