package main

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Migration represents a single migration file
type Migration struct {
	Version  int
	Name     string
	Filename string
	SQL      string
	Checksum string
}

// AppliedMigration represents a migration that has already been applied
type AppliedMigration struct {
	Version   int
	Name      string
	AppliedAt time.Time
	Checksum  string
	AppliedBy string
}

// filenamePattern matches migration files such as 0001_create_ledger_entries.sql.
var filenamePattern = regexp.MustCompile(`^(\d{4})_(.+)\.sql$`)

func parseFilename(filename string) (version int, name string, ok bool) {
	m := filenamePattern.FindStringSubmatch(filename)
	if m == nil {
		return 0, "", false
	}
	version, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, "", false
	}
	return version, m[2], true
}

// render replaces {{KEY}} placeholders.
func render(sql string, vars map[string]string) string {
	for k, v := range vars {
		sql = strings.ReplaceAll(sql, "{{"+k+"}}", v)
	}
	return sql
}

// findMigrationsDir resolves dir from the working directory or, when run
// from cmd/migrate, from the repository root.
func findMigrationsDir(dir string) (string, error) {
	if _, err := os.Stat(dir); err == nil {
		return dir, nil
	}
	alt := filepath.Join("..", "..", dir)
	if _, err := os.Stat(alt); err == nil {
		return alt, nil
	}
	return "", fmt.Errorf("migrations directory not found: %s", dir)
}

// readMigrations loads and renders all migration files in dir, sorted by
// version. The checksum covers the file before rendering, so the same
// migration applied to another dataset keeps its checksum.
func readMigrations(dir string, vars map[string]string) ([]Migration, []string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("reading migrations directory: %w", err)
	}

	var migrations []Migration
	var skipped []string
	seen := make(map[int]string)

	for _, file := range files {
		if file.IsDir() {
			continue
		}

		version, name, ok := parseFilename(file.Name())
		if !ok {
			skipped = append(skipped, file.Name())
			continue
		}
		if prev, dup := seen[version]; dup {
			return nil, nil, fmt.Errorf("duplicate migration version %04d: %s and %s", version, prev, file.Name())
		}
		seen[version] = file.Name()

		content, err := os.ReadFile(filepath.Join(dir, file.Name()))
		if err != nil {
			return nil, nil, fmt.Errorf("reading file %s: %w", file.Name(), err)
		}

		migrations = append(migrations, Migration{
			Version:  version,
			Name:     name,
			Filename: file.Name(),
			SQL:      render(string(content), vars),
			Checksum: fmt.Sprintf("%x", sha256.Sum256(content)),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	return migrations, skipped, nil
}

// pending returns the migrations not yet applied, and the applied ones whose
// file changed since.
func pending(all []Migration, applied []AppliedMigration) (todo []Migration, changed []Migration) {
	byVersion := make(map[int]AppliedMigration, len(applied))
	for _, am := range applied {
		byVersion[am.Version] = am
	}

	for _, m := range all {
		am, ok := byVersion[m.Version]
		switch {
		case !ok:
			todo = append(todo, m)
		case am.Checksum != "" && am.Checksum != m.Checksum:
			changed = append(changed, m)
		}
	}
	return todo, changed
}
