package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"vdl-backend/internal/repository"
	"vdl-backend/internal/repository/sqlite"
	"vdl-backend/pkg/database"
)

const usage = "Usage: go run ./cmd/migrate [up|drop]"

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is not set")
	}

	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}
	command := os.Args[1]
	if command != "up" && command != "drop" {
		fmt.Printf("Unknown command: %s\n", command)
		fmt.Println(usage)
		os.Exit(1)
	}

	ctx := context.Background()
	var err error
	if database.IsSQLiteURL(dbURL) {
		err = runSQLite(ctx, dbURL, command)
	} else {
		err = runPostgres(ctx, dbURL, command)
	}
	if err != nil {
		log.Fatalf("Migration %q failed: %v", command, err)
	}

	switch command {
	case "up":
		fmt.Println("✅ All tables created successfully")
	case "drop":
		fmt.Println("✅ All tables dropped successfully")
	}
}

func runPostgres(ctx context.Context, dbURL, command string) error {
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	if command == "drop" {
		return repository.DropPostgres(ctx, pool)
	}
	return repository.MigratePostgres(ctx, pool)
}

func runSQLite(ctx context.Context, dbURL, command string) error {
	db, err := database.NewSQLiteDB(ctx, dbURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if command == "drop" {
		return sqlite.Drop(ctx, db.DB)
	}
	return sqlite.Migrate(ctx, db.DB)
}
