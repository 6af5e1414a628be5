package dbmigrate

import (
	"context"
	"errors"
	"io/fs"
	"strings"
	"testing"

	"github.com/fdg312/nutrition-planner/migrations"
)

func TestEmbeddedMigrations(t *testing.T) {
	files, err := fs.Glob(migrations.FS, "*.sql")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(files) < 5 {
		t.Fatalf("expected at least 5 migrations, got %v", files)
	}

	for _, name := range files {
		data, err := fs.ReadFile(migrations.FS, name)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		body := string(data)
		if !strings.Contains(body, "-- +goose Up") || !strings.Contains(body, "-- +goose Down") {
			t.Fatalf("%s must contain goose Up and Down sections", name)
		}
	}
}

func TestRun_RejectsBeforeConnecting(t *testing.T) {
	ctx := context.Background()

	if err := Run(ctx, "up", "", ""); !errors.Is(err, errEmptyURL) {
		t.Errorf("expected errEmptyURL, got %v", err)
	}
	// неизвестная команда отсекается до открытия соединения
	err := Run(ctx, "fix", "postgres://localhost:1/none", "")
	if err == nil || !strings.Contains(err.Error(), "unsupported") {
		t.Errorf("expected unsupported command error, got %v", err)
	}
}

func TestSource(t *testing.T) {
	if _, err := fs.Stat(source(""), "00005_exercises.sql"); err != nil {
		t.Errorf("expected embedded migrations, got %v", err)
	}
	dir := t.TempDir()
	if _, err := fs.Stat(source(dir), "00001_users.sql"); err == nil {
		t.Error("expected an empty directory source")
	}
}
