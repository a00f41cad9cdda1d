package store

import (
	"context"
	"errors"
	"fmt"

	"termbase/api/internal/sequencing"
)

// Kind names one family of sequenced siblings.
type Kind string

const (
	KindGlossary      Kind = "glossary"
	KindUsecase       Kind = "usecase"
	KindFeature       Kind = "feature"
	KindFeaturePolicy Kind = "feature_policy"
)

// Kinds lists every sequenced kind.
var Kinds = []Kind{KindGlossary, KindUsecase, KindFeature, KindFeaturePolicy}

type scopeSpec struct {
	table  string
	parent string
	label  string
	from   string
	// project resolves a scope id to its owning project.
	project string
}

var scopeSpecs = map[Kind]scopeSpec{
	KindGlossary: {
		table:   "glossary_terms",
		parent:  "project_id",
		label:   "s.term",
		from:    "glossary_terms s",
		project: `SELECT id FROM projects WHERE id=$1`,
	},
	KindUsecase: {
		table:   "usecases",
		parent:  "actor_id",
		label:   "s.name",
		from:    "usecases s",
		project: `SELECT project_id FROM actors WHERE id=$1`,
	},
	KindFeature: {
		table:  "features",
		parent: "usecase_id",
		label:  "s.name",
		from:   "features s",
		project: `
			SELECT a.project_id FROM usecases u
			JOIN actors a ON a.id = u.actor_id
			WHERE u.id=$1`,
	},
	KindFeaturePolicy: {
		table:  "feature_policies",
		parent: "feature_id",
		label:  "p.title",
		from:   "feature_policies s JOIN policies p ON p.id = s.policy_id",
		project: `
			SELECT a.project_id FROM features f
			JOIN usecases u ON u.id = f.usecase_id
			JOIN actors a ON a.id = u.actor_id
			WHERE f.id=$1`,
	},
}

// ErrUnknownKind is returned for a kind outside Kinds.
var ErrUnknownKind = errors.New("unknown sequence kind")

// ParseKind validates a kind name from a URL or flag.
func ParseKind(value string) (Kind, error) {
	kind := Kind(value)
	if _, ok := scopeSpecs[kind]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, value)
	}
	return kind, nil
}

// ScopeProject returns the project that owns scopeID of the given kind.
func (s *Store) ScopeProject(ctx context.Context, kind Kind, scopeID string) (string, error) {
	spec, ok := scopeSpecs[kind]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	var projectID string
	if err := s.queryRow(ctx, spec.project, scopeID).Scan(&projectID); err != nil {
		return "", notFound("resolve "+string(kind)+" scope", err)
	}
	return projectID, nil
}

// SequenceStore is the sequencing.Store for one kind of sibling. Each write
// is its own statement; a batch is never wrapped in a transaction, so a
// failure part way leaves the earlier rows updated.
type SequenceStore struct {
	store *Store
	kind  Kind
	spec  scopeSpec
}

var _ sequencing.Store = (*SequenceStore)(nil)

// Sequences returns the sequencing.Store for kind.
func (s *Store) Sequences(kind Kind) (*SequenceStore, error) {
	spec, ok := scopeSpecs[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return &SequenceStore{store: s, kind: kind, spec: spec}, nil
}

func (q *SequenceStore) Kind() Kind {
	return q.kind
}

func (q *SequenceStore) MaxSequence(ctx context.Context, scopeID string) (int, error) {
	var highest int
	err := q.store.queryRow(ctx,
		fmt.Sprintf(`SELECT COALESCE(MAX(sequence), 0) FROM %s WHERE %s=$1`, q.spec.table, q.spec.parent),
		scopeID).Scan(&highest)
	if err != nil {
		return 0, fmt.Errorf("max %s sequence: %w", q.kind, err)
	}
	return highest, nil
}

func (q *SequenceStore) ListOrdered(ctx context.Context, scopeID string) ([]sequencing.Item, error) {
	rows, err := q.store.query(ctx, fmt.Sprintf(`
		SELECT s.id, s.%s, s.sequence, %s, s.updated_at
		FROM %s
		WHERE s.%s=$1
		ORDER BY s.sequence ASC, s.id ASC
	`, q.spec.parent, q.spec.label, q.spec.from, q.spec.parent), scopeID)
	if err != nil {
		return nil, fmt.Errorf("list %s order: %w", q.kind, err)
	}
	defer rows.Close()

	items := make([]sequencing.Item, 0)
	for rows.Next() {
		var item sequencing.Item
		if err := rows.Scan(&item.ID, &item.ScopeID, &item.Sequence, &item.Label, timestamp{&item.UpdatedAt}); err != nil {
			return nil, fmt.Errorf("scan %s order: %w", q.kind, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s order: %w", q.kind, err)
	}
	return items, nil
}

func (q *SequenceStore) SetSequence(ctx context.Context, id string, sequence int) error {
	result, err := q.store.exec(ctx,
		fmt.Sprintf(`UPDATE %s SET sequence=$2, updated_at=$3 WHERE id=$1`, q.spec.table),
		id, sequence, q.store.stamp())
	if err != nil {
		return fmt.Errorf("set %s sequence %s: %w", q.kind, id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set %s sequence %s: rows affected: %w", q.kind, id, err)
	}
	if affected == 0 {
		return fmt.Errorf("set %s sequence %s: %w", q.kind, id, sequencing.ErrNotFound)
	}
	return nil
}

func (q *SequenceStore) BatchSetSequence(ctx context.Context, updates []sequencing.Update) error {
	return sequencing.ApplyBatch(ctx, updates, q.SetSequence)
}
