package store_test

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"termbase/api/internal/sequencing"
	"termbase/api/internal/store"
)

func openPostgres(t *testing.T) *store.Store {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	dsn := strings.TrimSpace(os.Getenv("TERMBASE_TEST_DATABASE_URL"))
	if dsn == "" {
		t.Skip("TERMBASE_TEST_DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	conn, err := store.Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	_, err = conn.ExecContext(ctx, `DROP SCHEMA IF EXISTS public CASCADE; CREATE SCHEMA public;`)
	require.NoError(t, err)
	require.NoError(t, store.ApplyMigrations(ctx, conn, store.DialectPostgres, store.MigrationSource("")))
	return store.New(conn, store.DialectPostgres)
}

func TestPostgresSequenceStore_ReorderAndDelete(t *testing.T) {
	s := openPostgres(t)
	ctx := context.Background()

	_, err := s.CreateOrganization(ctx, store.Organization{ID: "org", Name: "Acme", Slug: "acme"})
	require.NoError(t, err)
	_, err = s.CreateProject(ctx, store.Project{ID: "proj", OrgID: "org", Name: "Billing"})
	require.NoError(t, err)
	for i, id := range []string{"T1", "T2", "T3", "T4"} {
		_, err := s.CreateGlossaryTerm(ctx, store.GlossaryTerm{ID: id, ProjectID: "proj", Term: id, Sequence: i + 1})
		require.NoError(t, err)
	}

	seq, err := s.Sequences(store.KindGlossary)
	require.NoError(t, err)
	c := sequencing.NewCoordinator(seq)

	got, err := c.Reorder(ctx, "proj", "T4", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"T1", "T4", "T2", "T3"}, itemIDs(got))

	_, err = s.DeleteGlossaryTerm(ctx, "T1")
	require.NoError(t, err)
	got, err = c.Delete(ctx, "proj", "T1")
	require.NoError(t, err)
	assert.True(t, sequencing.IsDense(got))

	persisted, err := seq.ListOrdered(ctx, "proj")
	require.NoError(t, err)
	assert.Equal(t, []string{"T4", "T2", "T3"}, itemIDs(persisted))
	assert.True(t, sequencing.IsDense(persisted))
}

func itemIDs(items []sequencing.Item) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.ID)
	}
	return out
}
