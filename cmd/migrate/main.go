package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	_ "github.com/joho/godotenv/autoload"

	"github.com/fdg312/nutrition-planner/internal/config"
	"github.com/fdg312/nutrition-planner/internal/dbmigrate"
)

func main() {
	allowed := strings.Join(dbmigrate.Commands, "|")
	if len(os.Args) < 2 {
		log.Fatalf("usage: go run ./cmd/migrate [%s]", allowed)
	}
	command := os.Args[1]

	cfg := config.Load()
	target, err := dbmigrate.SelectTarget(cfg, false)
	if err != nil {
		log.Fatal(err)
	}

	if target.Warning != "" {
		log.Printf("WARN migrate: %s", target.Warning)
	}
	log.Printf("migrate: command=%s using=%s db=%s", command, target.Source, target.Redacted())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := dbmigrate.Run(ctx, command, target.URL, dbmigrate.DefaultMigrationsDir); err != nil {
		log.Fatal(err)
	}

	log.Printf("migrate: %s completed successfully", command)
}
