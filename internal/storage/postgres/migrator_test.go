package postgres

import (
	"context"
	"io/fs"
	"strings"
	"testing"
	"time"
)

func TestMigrationFiles_Embedded(t *testing.T) {
	t.Parallel()

	fsys, err := migrationFiles()
	if err != nil {
		t.Fatalf("migrationFiles failed: %v", err)
	}

	files, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 migrations, got %d: %v", len(files), files)
	}

	for _, name := range files {
		body, err := fs.ReadFile(fsys, name)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		text := string(body)
		if !strings.Contains(text, "-- +goose Up") || !strings.Contains(text, "-- +goose Down") {
			t.Fatalf("migration %s must have both up and down sections", name)
		}
	}
}

func TestMigrate_NilStore(t *testing.T) {
	t.Parallel()

	var store *Store
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := store.MigrateUp(ctx, 0); err == nil {
		t.Fatal("expected error for nil store")
	}
	if err := store.MigrateDown(ctx, 1); err == nil {
		t.Fatal("expected error for nil store")
	}
	if _, _, err := store.MigrationStatus(ctx); err == nil {
		t.Fatal("expected error for nil store")
	}
}

func TestMigrate_UpDownStatusFlow(t *testing.T) {
	store := openRawPostgresStoreForIntegrationTest(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := store.MigrateUp(ctx, 0); err != nil {
		t.Fatalf("migrate up: %v", err)
	}
	version, applied, err := store.MigrationStatus(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if version != 2 || applied != 2 {
		t.Fatalf("unexpected status after up: version=%d applied=%d", version, applied)
	}

	if err := store.MigrateDown(ctx, 1); err != nil {
		t.Fatalf("migrate down: %v", err)
	}
	version, applied, err = store.MigrationStatus(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if version != 1 || applied != 1 {
		t.Fatalf("unexpected status after down: version=%d applied=%d", version, applied)
	}

	if err := store.MigrateUp(ctx, 1); err != nil {
		t.Fatalf("migrate up one step: %v", err)
	}
	// Повторный up без новых миграций не должен падать.
	if err := store.MigrateUp(ctx, 5); err != nil {
		t.Fatalf("migrate up with nothing pending: %v", err)
	}
}
