package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"termbase/api/internal/auth"
	"termbase/api/internal/config"
	"termbase/api/internal/store"
	"termbase/api/internal/store/storetest"
)

const testSecret = "cli-test-secret"

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		DatabaseDriver: "sqlite",
		SQLitePath:     filepath.Join(t.TempDir(), "termbase.db"),
		JWTSecret:      testSecret,
		AccessTTL:      time.Hour,
		LockTTL:        10 * time.Second,
	}
}

func execute(t *testing.T, cfg config.Config, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCommand(cfg)
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

// seedGlossary migrates the database through the CLI and adds terms with the
// given sequences to a fresh project.
func seedGlossary(t *testing.T, cfg config.Config, sequences map[string]int) storetest.Tree {
	t.Helper()
	_, _, err := execute(t, cfg, "migrate")
	require.NoError(t, err)

	ctx := context.Background()
	conn, err := store.OpenSQLite(ctx, cfg.SQLitePath)
	require.NoError(t, err)
	s := store.New(conn, store.DialectSQLite)
	defer s.Close()

	tree := storetest.Seed(t, s, "acme")
	for id, seq := range sequences {
		_, err := s.CreateGlossaryTerm(ctx, store.GlossaryTerm{ID: id, ProjectID: tree.Project.ID, Term: strings.ToUpper(id), Sequence: seq})
		require.NoError(t, err)
	}
	return tree
}

func listJSON(t *testing.T, cfg config.Config, scope string) orderOutput {
	t.Helper()
	stdout, _, err := execute(t, cfg, "list", "--kind", "glossary", "--scope", scope, "--format", "json")
	require.NoError(t, err)
	var out orderOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	return out
}

func ids(out orderOutput) []string {
	var got []string
	for _, item := range out.Items {
		got = append(got, item.ID)
	}
	return got
}

func TestMigrateIsRepeatable(t *testing.T) {
	cfg := testConfig(t)

	stdout, _, err := execute(t, cfg, "migrate")
	require.NoError(t, err)
	assert.Contains(t, stdout, "migrations applied (sqlite)")

	_, _, err = execute(t, cfg, "migrate")
	require.NoError(t, err)
}

func TestTokenCommand(t *testing.T) {
	cfg := testConfig(t)

	stdout, _, err := execute(t, cfg, "token", "--org", "org_1", "--sub", "alice", "--role", "editor")
	require.NoError(t, err)

	claims, err := auth.ParseToken([]byte(testSecret), strings.TrimSpace(stdout))
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Sub)
	assert.Equal(t, "alice", claims.Name)
	assert.Equal(t, "org_1", claims.Org)
	assert.Equal(t, "editor", claims.Role)
}

func TestTokenCommandRejectsBadInput(t *testing.T) {
	cfg := testConfig(t)

	_, _, err := execute(t, cfg, "token", "--sub", "alice")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, _, err = execute(t, cfg, "token", "--org", "o", "--sub", "alice", "--role", "owner")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestListPrintsPersistedOrder(t *testing.T) {
	cfg := testConfig(t)
	tree := seedGlossary(t, cfg, map[string]int{"b": 2, "a": 1, "c": 3})

	out := listJSON(t, cfg, tree.Project.ID)
	assert.Equal(t, "glossary", out.Kind)
	assert.Equal(t, []string{"a", "b", "c"}, ids(out))

	stdout, _, err := execute(t, cfg, "list", "--kind", "glossary", "--scope", tree.Project.ID)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "SEQ"))
	assert.Contains(t, lines[1], "A")
}

func TestListValidatesFlags(t *testing.T) {
	cfg := testConfig(t)
	tree := seedGlossary(t, cfg, nil)

	_, _, err := execute(t, cfg, "list", "--kind", "chapter", "--scope", tree.Project.ID)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, _, err = execute(t, cfg, "list", "--kind", "glossary", "--scope", tree.Project.ID, "--sort", "size")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, _, err = execute(t, cfg, "list", "--kind", "glossary", "--scope", tree.Project.ID, "--format", "yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestReorderMovesAndPersists(t *testing.T) {
	cfg := testConfig(t)
	tree := seedGlossary(t, cfg, map[string]int{"a": 1, "b": 2, "c": 3, "d": 4})

	stdout, stderr, err := execute(t, cfg, "reorder", "--kind", "glossary", "--scope", tree.Project.ID, "--item", "d", "--index", "0", "--format", "json")
	require.NoError(t, err)
	assert.Empty(t, stderr)

	var moved orderOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &moved))
	assert.Equal(t, []string{"d", "a", "b", "c"}, ids(moved))
	assert.False(t, moved.Corrected)

	persisted := listJSON(t, cfg, tree.Project.ID)
	assert.Equal(t, []string{"d", "a", "b", "c"}, ids(persisted))
	for i, item := range persisted.Items {
		assert.Equal(t, i+1, item.Sequence)
	}
}

func TestReorderUnknownItemFails(t *testing.T) {
	cfg := testConfig(t)
	tree := seedGlossary(t, cfg, map[string]int{"a": 1, "b": 2})

	_, _, err := execute(t, cfg, "reorder", "--kind", "glossary", "--scope", tree.Project.ID, "--item", "zzz", "--index", "0")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	assert.Equal(t, []string{"a", "b"}, ids(listJSON(t, cfg, tree.Project.ID)))
}

func TestRepairCompactsSequences(t *testing.T) {
	cfg := testConfig(t)
	tree := seedGlossary(t, cfg, map[string]int{"a": 2, "b": 5, "c": 9})

	stdout, _, err := execute(t, cfg, "repair", "--kind", "glossary", "--scope", tree.Project.ID, "--format", "json")
	require.NoError(t, err)

	var repaired orderOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &repaired))
	assert.Equal(t, []string{"a", "b", "c"}, ids(repaired))

	persisted := listJSON(t, cfg, tree.Project.ID)
	for i, item := range persisted.Items {
		assert.Equal(t, i+1, item.Sequence)
	}
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(assert.AnError))
	assert.Equal(t, ExitCommandError, GetExitCode(WrapExitError(ExitCommandError, "bad", assert.AnError)))
}
