package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseFilename(t *testing.T) {
	tests := []struct {
		filename string
		valid    bool
		version  int
		name     string
	}{
		{"0001_create_ledger_entries.sql", true, 1, "create_ledger_entries"},
		{"0012_add_index.sql", true, 12, "add_index"},
		{"001_invalid.sql", false, 0, ""},       // wrong number format
		{"0001_test", false, 0, ""},             // missing .sql
		{"0001.sql", false, 0, ""},              // missing name
		{"invalid_0001_test.sql", false, 0, ""}, // wrong order
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, name, ok := parseFilename(tt.filename)
			if ok != tt.valid {
				t.Fatalf("parseFilename(%q) ok = %v, want %v", tt.filename, ok, tt.valid)
			}
			if version != tt.version || name != tt.name {
				t.Errorf("parseFilename(%q) = %d, %q; want %d, %q", tt.filename, version, name, tt.version, tt.name)
			}
		})
	}
}

func TestReadMigrations(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"0002_second.sql": "SELECT 2 FROM `{{PROJECT_ID}}.{{DATASET_ID}}.t`",
		"0001_first.sql":  "CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.{{LEDGER_TABLE}}` (x INT64)",
		"README.md":       "notes",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	vars := map[string]string{"PROJECT_ID": "p", "DATASET_ID": "d", "LEDGER_TABLE": "ledger"}
	migrations, skipped, err := readMigrations(dir, vars)
	if err != nil {
		t.Fatalf("readMigrations: %v", err)
	}

	if len(migrations) != 2 || migrations[0].Version != 1 || migrations[1].Version != 2 {
		t.Fatalf("unexpected migrations: %+v", migrations)
	}
	if want := "CREATE TABLE `p.d.ledger` (x INT64)"; migrations[0].SQL != want {
		t.Errorf("rendered SQL = %q, want %q", migrations[0].SQL, want)
	}
	if len(skipped) != 1 || skipped[0] != "README.md" {
		t.Errorf("skipped = %v", skipped)
	}

	// Checksums ignore placeholder values.
	again, _, err := readMigrations(dir, map[string]string{"PROJECT_ID": "other"})
	if err != nil {
		t.Fatal(err)
	}
	if again[0].Checksum != migrations[0].Checksum {
		t.Error("checksum should not depend on rendered values")
	}
}

func TestReadMigrations_DuplicateVersion(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"0001_a.sql", "0001_b.sql"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if _, _, err := readMigrations(dir, nil); err == nil {
		t.Fatal("expected duplicate version error")
	}
}

func TestPending(t *testing.T) {
	all := []Migration{
		{Version: 1, Checksum: "a"},
		{Version: 2, Checksum: "b"},
		{Version: 3, Checksum: "c"},
	}
	applied := []AppliedMigration{
		{Version: 1, Checksum: "a"},
		{Version: 2, Checksum: "changed"},
	}

	todo, changed := pending(all, applied)
	if len(todo) != 1 || todo[0].Version != 3 {
		t.Errorf("todo = %+v", todo)
	}
	if len(changed) != 1 || changed[0].Version != 2 {
		t.Errorf("changed = %+v", changed)
	}
}

func TestRepositoryMigrationsRender(t *testing.T) {
	dir, err := findMigrationsDir("migrations/bigquery")
	if err != nil {
		t.Fatal(err)
	}

	migrations, skipped, err := readMigrations(dir, map[string]string{
		"PROJECT_ID": "proj", "DATASET_ID": "finance", "LEDGER_TABLE": "ledger_entries",
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(skipped) != 0 {
		t.Errorf("unexpected non-migration files: %v", skipped)
	}
	if len(migrations) == 0 {
		t.Fatal("no migrations found")
	}

	for _, m := range migrations {
		if strings.Contains(m.SQL, "{{") {
			t.Errorf("%s has unrendered placeholders", m.Filename)
		}
	}
	first := migrations[0].SQL
	for _, col := range []string{"merchant", "transaction_date", "amount", "transaction_id", "`proj.finance.ledger_entries`"} {
		if !strings.Contains(first, col) {
			t.Errorf("first migration missing %q", col)
		}
	}
}
