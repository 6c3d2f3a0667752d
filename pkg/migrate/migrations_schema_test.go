package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aranyaherbals/storefront-backend/pkg/migrate"
)

func TestMigrationsDirValidates(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("ValidateDir: %v", err)
	}
}

func TestInitSchemaCoversLedgerConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_init_schema.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatal("no init schema migration found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"order_number     TEXT NOT NULL UNIQUE",
		"quantity         INTEGER NOT NULL CHECK (quantity > 0)",
		"gateway_payment_id TEXT UNIQUE",
		"order_id            UUID NOT NULL UNIQUE REFERENCES orders (id) ON DELETE CASCADE",
		"ref_key     TEXT UNIQUE",
		"CREATE INDEX idx_outbox_events_unpublished ON outbox_events (created_at) WHERE published_at IS NULL",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestCreateSQLMigrationWritesSkeleton(t *testing.T) {
	dir := t.TempDir()

	path, err := migrate.CreateSQLMigration(dir, "Add NDR Notes!")
	if err != nil {
		t.Fatalf("CreateSQLMigration: %v", err)
	}
	if !strings.HasSuffix(path, "_add_ndr_notes.sql") {
		t.Fatalf("unexpected filename %q", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read created migration: %v", err)
	}
	for _, directive := range []string{"-- +goose Up", "-- +goose Down"} {
		if !strings.Contains(string(data), directive) {
			t.Errorf("skeleton missing %q", directive)
		}
	}

	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("ValidateDir on created migration: %v", err)
	}
}

func TestCreateSQLMigrationRejectsEmptyName(t *testing.T) {
	if _, err := migrate.CreateSQLMigration(t.TempDir(), "!!!"); err == nil {
		t.Fatal("expected error for name with no usable characters")
	}
}

func TestValidateDirRejectsBadFilename(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "not_versioned.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if err := migrate.ValidateDir(dir); err == nil {
		t.Fatal("expected error for unversioned filename")
	}
}
