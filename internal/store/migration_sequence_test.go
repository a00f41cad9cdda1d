package store

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"
)

// Renumbering writes one row at a time, so a scope passes through duplicate
// sequences mid-batch. A unique index over (parent, sequence) would reject
// those intermediate states.
func TestInitMigrationKeepsSequenceNonUnique(t *testing.T) {
	migrationPath := filepath.Join("..", "..", "db", "migrations", "0001_init.up.sql")
	sqlBytes, err := os.ReadFile(migrationPath)
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	sqlText := string(sqlBytes)

	forbidden := regexp.MustCompile(`(?i)UNIQUE\s*(INDEX[^(]*)?\([^)]*sequence`)
	if loc := forbidden.FindStringIndex(sqlText); loc != nil {
		t.Fatalf("sequence must not be unique, found %q", sqlText[loc[0]:loc[1]])
	}

	for _, table := range []string{"usecases", "features", "feature_policies", "glossary_terms"} {
		pattern := regexp.MustCompile(`CREATE INDEX \w+ ON ` + table + `\(\w+, sequence\)`)
		if !pattern.MatchString(sqlText) {
			t.Fatalf("expected a (parent, sequence) index on %s", table)
		}
	}
}
