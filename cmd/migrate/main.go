package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"gigchat/config"
	"gigchat/pkg/database"
)

const usage = `
gigchat - Database CLI Tool

Usage:
  migrate [command] [flags]

Commands:
  up          Apply schema migrations
  status      Show database connection status
  seed        Seed demo users for local development

Flags:
  -seed-pass string   Password for seeded demo users (default "Test@123!")
  -seed-count int     Number of demo users to create (default 6)

Examples:
  go run cmd/migrate/main.go up
  go run cmd/migrate/main.go seed
`

func main() {
	seedPass := flag.String("seed-pass", "Test@123!", "Password for seeded demo users")
	seedCount := flag.Int("seed-count", 6, "Number of demo users to create")

	flag.Usage = func() {
		fmt.Print(usage)
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	command := flag.Arg(0)

	cfg := config.LoadConfig()
	database.Connect(cfg)

	switch command {
	case "up":
		runMigrationsUp()
	case "status":
		showStatus()
	case "seed":
		runSeed(*seedPass, *seedCount)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}

func runMigrationsUp() {
	log.Println("Running migrations...")
	if err := database.Migrate(); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Println("Migrations completed successfully")
}

func showStatus() {
	if err := database.HealthCheck(); err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	log.Println("Database connection: OK")

	for _, table := range []string{"users", "conversations", "conversation_members", "messages", "outbox_events"} {
		if database.DB.Migrator().HasTable(table) {
			log.Printf("Table %s: present", table)
		} else {
			log.Printf("Table %s: MISSING (run 'up')", table)
		}
	}
}

func runSeed(password string, count int) {
	if err := database.Migrate(); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	users, err := database.Seed(&database.SeedConfig{Password: password, UserCount: count})
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
	for _, u := range users {
		log.Printf("  %s (%s) id=%s", u.Name, u.Username, u.ID)
	}
}
