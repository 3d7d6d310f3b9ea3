package main

import (
	"context"
	"fmt"
	"os"

	_ "github.com/lib/pq"
	"github.com/streamania/backend/config"
	"github.com/streamania/backend/internal/database"
	"github.com/streamania/backend/internal/logger"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run cmd/migrate/main.go [up|down|status]")
		os.Exit(1)
	}

	command := os.Args[1]

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level)

	db, err := database.NewPostgresDB(cfg.GetDSN())
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()

	ctx := context.Background()

	switch command {
	case "up":
		if err := database.RunMigrations(ctx, db.DB, log); err != nil {
			log.WithError(err).Fatal("migration failed")
		}
		log.Info("migrations completed successfully")

	case "down":
		if err := database.RollbackLast(ctx, db.DB, log); err != nil {
			log.WithError(err).Fatal("rollback failed")
		}
		log.Info("rollback completed")

	case "status":
		showMigrationStatus(ctx, db)

	default:
		fmt.Printf("Unknown command: %s\n", command)
		fmt.Println("Available commands: up, down, status")
		os.Exit(1)
	}
}

func showMigrationStatus(ctx context.Context, db *database.DB) {
	applied, err := database.AppliedMigrations(ctx, db.DB)
	if err != nil {
		fmt.Printf("Failed to read migrations: %v\n", err)
		return
	}

	fmt.Println("\nApplied Migrations:")
	fmt.Println("-------------------")
	for _, m := range applied {
		fmt.Printf("Version %d - Applied at: %s\n", m.Version, m.AppliedAt.Format("2006-01-02 15:04:05"))
	}
	fmt.Printf("\n%d of %d migrations applied\n", len(applied), len(database.Migrations))
}
