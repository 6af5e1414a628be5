package dbmigrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"

	"github.com/fdg312/nutrition-planner/migrations"
	"github.com/pressly/goose/v3"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Commands — поддерживаемые команды Run.
var Commands = []string{"up", "down", "redo", "status", "version"}

var errEmptyURL = errors.New("database URL is empty")

// Run применяет command к базе dbURL. Пустой migrationsDir означает
// миграции, встроенные в бинарник.
func Run(ctx context.Context, command string, dbURL string, migrationsDir string) error {
	if dbURL == "" {
		return errEmptyURL
	}
	if !knownCommand(command) {
		return fmt.Errorf("unsupported migrate command %q", command)
	}

	db, err := sql.Open("pgx", dbURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectPostgres, db, source(migrationsDir))
	if err != nil {
		return fmt.Errorf("init goose: %w", err)
	}

	switch command {
	case "up":
		results, err := provider.Up(ctx)
		logResults(results)
		if err != nil {
			return fmt.Errorf("migrate up: %w", err)
		}
	case "down":
		result, err := provider.Down(ctx)
		logResults([]*goose.MigrationResult{result})
		if err != nil {
			return fmt.Errorf("migrate down: %w", err)
		}
	case "redo":
		down, err := provider.Down(ctx)
		logResults([]*goose.MigrationResult{down})
		if err != nil {
			return fmt.Errorf("migrate redo (down): %w", err)
		}
		up, err := provider.UpByOne(ctx)
		logResults([]*goose.MigrationResult{up})
		if err != nil {
			return fmt.Errorf("migrate redo (up): %w", err)
		}
	case "status":
		statuses, err := provider.Status(ctx)
		if err != nil {
			return fmt.Errorf("migrate status: %w", err)
		}
		for _, st := range statuses {
			applied := "pending"
			if st.State == goose.StateApplied {
				applied = st.AppliedAt.UTC().Format("2006-01-02 15:04:05")
			}
			log.Printf("INFO migrate: version=%d file=%s applied=%s", st.Source.Version, st.Source.Path, applied)
		}
	case "version":
		version, err := provider.GetDBVersion(ctx)
		if err != nil {
			return fmt.Errorf("migrate version: %w", err)
		}
		log.Printf("INFO migrate: version=%d", version)
	}

	return nil
}

func source(migrationsDir string) fs.FS {
	if migrationsDir == "" {
		return migrations.FS
	}
	return os.DirFS(migrationsDir)
}

func knownCommand(command string) bool {
	for _, c := range Commands {
		if c == command {
			return true
		}
	}
	return false
}

func logResults(results []*goose.MigrationResult) {
	for _, r := range results {
		if r == nil || r.Source == nil {
			continue
		}
		log.Printf("INFO migrate: %s version=%d file=%s took=%s", r.Direction, r.Source.Version, r.Source.Path, r.Duration)
	}
}
