// Package storetest provides real-SQL fixtures for tests.
package storetest

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"termbase/api/internal/sequencing"
	"termbase/api/internal/store"
)

// NewStore opens a private in-memory SQLite database with every migration
// applied. It is closed when the test completes.
func NewStore(t *testing.T) *store.Store {
	t.Helper()
	ctx := context.Background()
	conn, err := store.OpenSQLite(ctx, ":memory:")
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := store.ApplyMigrations(ctx, conn, store.DialectSQLite, store.MigrationSource("")); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	return store.New(conn, store.DialectSQLite)
}

// Tree is a minimal org → project → actor → usecase → feature chain.
type Tree struct {
	Org     store.Organization
	Project store.Project
	Actor   store.Actor
	Usecase store.Usecase
	Feature store.Feature
}

// Seed creates a Tree with fixed ids prefixed by name.
func Seed(t *testing.T, s *store.Store, name string) Tree {
	t.Helper()
	ctx := context.Background()
	var tree Tree
	var err error

	if tree.Org, err = s.CreateOrganization(ctx, store.Organization{ID: name + "-org", Name: name, Slug: name}); err != nil {
		t.Fatalf("seed organization: %v", err)
	}
	if tree.Project, err = s.CreateProject(ctx, store.Project{ID: name + "-project", OrgID: tree.Org.ID, Name: name + " project"}); err != nil {
		t.Fatalf("seed project: %v", err)
	}
	if tree.Actor, err = s.CreateActor(ctx, store.Actor{ID: name + "-actor", ProjectID: tree.Project.ID, Name: "Admin"}); err != nil {
		t.Fatalf("seed actor: %v", err)
	}
	if tree.Usecase, err = s.CreateUsecase(ctx, store.Usecase{ID: name + "-usecase", ActorID: tree.Actor.ID, Name: "Manage", Sequence: 1}); err != nil {
		t.Fatalf("seed usecase: %v", err)
	}
	if tree.Feature, err = s.CreateFeature(ctx, store.Feature{ID: name + "-feature", UsecaseID: tree.Usecase.ID, Name: "Export", Sequence: 1}); err != nil {
		t.Fatalf("seed feature: %v", err)
	}
	return tree
}

// Terms inserts glossary terms named by ids with sequences 1..N.
func Terms(t *testing.T, s *store.Store, projectID string, ids ...string) {
	t.Helper()
	for i, id := range ids {
		_, err := s.CreateGlossaryTerm(context.Background(), store.GlossaryTerm{
			ID:        id,
			ProjectID: projectID,
			Term:      id,
			Sequence:  i + 1,
		})
		if err != nil {
			t.Fatalf("seed glossary term %s: %v", id, err)
		}
	}
}

// FailOnNthWrite wraps a sequencing.Store and fails the Nth SetSequence call
// (counting from 1) with Err, or every call when FailOn is zero or less.
// Reads pass through. It simulates a backend that drops a connection part
// way through a batch.
type FailOnNthWrite struct {
	sequencing.Store
	FailOn int32
	Err    error

	count atomic.Int32
}

func (f *FailOnNthWrite) SetSequence(ctx context.Context, id string, sequence int) error {
	if n := f.count.Add(1); f.FailOn <= 0 || n == f.FailOn {
		if f.Err != nil {
			return f.Err
		}
		return fmt.Errorf("injected failure on write %d", n)
	}
	return f.Store.SetSequence(ctx, id, sequence)
}

func (f *FailOnNthWrite) BatchSetSequence(ctx context.Context, updates []sequencing.Update) error {
	return sequencing.ApplyBatch(ctx, updates, f.SetSequence)
}
