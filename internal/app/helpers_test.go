package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"termbase/api/internal/config"
	"termbase/api/internal/rbac"
	"termbase/api/internal/sequencing"
	"termbase/api/internal/store"
	"termbase/api/internal/store/storetest"
)

type testEnv struct {
	svc   *Service
	store *store.Store
	tree  storetest.Tree
	// editor belongs to tree.Org.
	editor Principal
}

func testConfig() config.Config {
	return config.Config{JWTSecret: "test-secret", AccessTTL: time.Hour, CORSOrigin: "*"}
}

func newTestEnv(t *testing.T, opts Options) testEnv {
	t.Helper()
	s := storetest.NewStore(t)
	tree := storetest.Seed(t, s, "acme")
	svc, err := New(testConfig(), s, opts)
	require.NoError(t, err)
	return testEnv{
		svc:    svc,
		store:  s,
		tree:   tree,
		editor: Principal{UserID: "u-1", Name: "Avery", OrgID: tree.Org.ID, Role: rbac.RoleEditor},
	}
}

// failWrites fails every SetSequence for the wrapped kind.
func failWrites(kind store.Kind) func(store.Kind, sequencing.Store) sequencing.Store {
	return func(k store.Kind, inner sequencing.Store) sequencing.Store {
		if k != kind {
			return inner
		}
		return &storetest.FailOnNthWrite{Store: inner, FailOn: 0, Err: errors.New("connection reset")}
	}
}

// failNthWrite fails only the nth SetSequence for the wrapped kind.
func failNthWrite(kind store.Kind, n int32) func(store.Kind, sequencing.Store) sequencing.Store {
	return func(k store.Kind, inner sequencing.Store) sequencing.Store {
		if k != kind {
			return inner
		}
		return &storetest.FailOnNthWrite{Store: inner, FailOn: n, Err: errors.New("connection reset")}
	}
}

func termIDs(items []sequencing.Item) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.ID)
	}
	return out
}

func sequences(items []sequencing.Item) []int {
	out := make([]int, 0, len(items))
	for _, item := range items {
		out = append(out, item.Sequence)
	}
	return out
}

func persisted(t *testing.T, s *store.Store, kind store.Kind, scopeID string) []sequencing.Item {
	t.Helper()
	seq, err := s.Sequences(kind)
	require.NoError(t, err)
	items, err := seq.ListOrdered(context.Background(), scopeID)
	require.NoError(t, err)
	return items
}

func requireStatus(t *testing.T, err error, status int, code string) {
	t.Helper()
	require.Error(t, err)
	gotStatus, gotCode, _, _ := mapError(err)
	require.Equal(t, status, gotStatus, "error: %v", err)
	require.Equal(t, code, gotCode)
}
