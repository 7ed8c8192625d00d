package migrate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidateMigrationsDir(t *testing.T) {
	if err := ValidateDir("migrations"); err != nil {
		t.Fatalf("migrations dir invalid: %v", err)
	}
}

func TestStoreMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "*_create_store_tables.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS store_items",
		"CREATE TABLE IF NOT EXISTS store_orders",
		"CREATE TABLE IF NOT EXISTS order_line_items",
		"CHECK (stock_quantity >= 0)",
		"FOREIGN KEY (order_id) REFERENCES store_orders(id) ON DELETE CASCADE",
		"DROP TABLE IF EXISTS store_orders",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestOutboxMigrationHasExactlyOnceIndex(t *testing.T) {
	content := readMigration(t, "*_create_outbox_events_table.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS outbox_events",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_outbox_events_event_aggregate",
		"WHERE published_at IS NULL",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestMembersMigrationEnforcesUniqueEmail(t *testing.T) {
	content := readMigration(t, "*_create_members_table.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS members",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_members_email_address",
		"is_paid BOOLEAN NOT NULL DEFAULT FALSE",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration matching %q", pattern)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}
