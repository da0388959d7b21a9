// Command migrate applies the embedded goose migrations.
//
// Usage:
//
//	go run ./app/migrate up          # Apply all pending migrations
//	go run ./app/migrate down        # Roll back the last migration
//	go run ./app/migrate status      # Show migration status
//	go run ./app/migrate version     # Show current schema version
//	go run ./app/migrate redo        # Roll back and re-apply last migration
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"platformBrain/migrations"
	"platformBrain/pkg/config"
	"platformBrain/pkg/database"
	"platformBrain/pkg/logger"

	"github.com/pressly/goose/v3"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: migrate <command>")
		fmt.Println("Commands: up, down, status, version, redo, up-to <version>, down-to <version>")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.Init(cfg.App.Environment)

	db, err := database.InitPostgres(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("Failed to get sql db", "error", err)
	}
	defer func() { _ = sqlDB.Close() }()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		logger.Fatal("Failed to set goose dialect", "error", err)
	}

	command := os.Args[1]
	args := os.Args[2:]

	if err := goose.RunContext(context.Background(), command, sqlDB, migrations.Dir, args...); err != nil {
		logger.Fatal("Migration failed", "command", command, "error", err)
	}
	logger.Info("Migration finished", "command", command)
}
