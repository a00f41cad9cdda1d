package store

import (
	"context"
	"fmt"
	"strings"
)

func (s *Store) CreatePolicy(ctx context.Context, policy Policy) (Policy, error) {
	now := s.now().UTC()
	policy.CreatedAt, policy.UpdatedAt = now, now
	_, err := s.exec(ctx, `
		INSERT INTO policies (id, project_id, title, content, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, policy.ID, policy.ProjectID, policy.Title, policy.Content, s.dialect.timeArg(now), s.dialect.timeArg(now))
	if err != nil {
		return Policy{}, classify("insert policy", err)
	}
	return policy, nil
}

func (s *Store) GetPolicy(ctx context.Context, policyID string) (Policy, error) {
	var p Policy
	err := s.queryRow(ctx, `
		SELECT id, project_id, title, content, created_at, updated_at
		FROM policies
		WHERE id=$1
	`, policyID).Scan(&p.ID, &p.ProjectID, &p.Title, &p.Content, timestamp{&p.CreatedAt}, timestamp{&p.UpdatedAt})
	if err != nil {
		return Policy{}, notFound("get policy", err)
	}
	return p, nil
}

func (s *Store) ListPolicies(ctx context.Context, projectID string) ([]Policy, error) {
	rows, err := s.query(ctx, `
		SELECT id, project_id, title, content, created_at, updated_at
		FROM policies
		WHERE project_id=$1
		ORDER BY title ASC, id ASC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list policies: %w", err)
	}
	defer rows.Close()
	return scanPolicies(rows)
}

func scanPolicies(rows interface {
	Next() bool
	Scan(...any) error
	Err() error
}) ([]Policy, error) {
	items := make([]Policy, 0)
	for rows.Next() {
		var p Policy
		if err := rows.Scan(&p.ID, &p.ProjectID, &p.Title, &p.Content, timestamp{&p.CreatedAt}, timestamp{&p.UpdatedAt}); err != nil {
			return nil, fmt.Errorf("scan policy: %w", err)
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate policies: %w", err)
	}
	return items, nil
}

func (s *Store) UpdatePolicy(ctx context.Context, policyID, title, content string) error {
	result, err := s.exec(ctx, `
		UPDATE policies SET title=$2, content=$3, updated_at=$4 WHERE id=$1
	`, policyID, title, content, s.stamp())
	if err != nil {
		return classify("update policy", err)
	}
	return expectRow("update policy", result)
}

// DeletePolicy removes a policy from the library together with every
// feature binding and glossary link that referenced it. It returns the
// feature scopes that lost a binding.
func (s *Store) DeletePolicy(ctx context.Context, policyID string) ([]string, error) {
	rows, err := s.query(ctx, `
		SELECT DISTINCT feature_id FROM feature_policies WHERE policy_id=$1 ORDER BY feature_id
	`, policyID)
	if err != nil {
		return nil, fmt.Errorf("list policy bindings: %w", err)
	}
	features := make([]string, 0)
	for rows.Next() {
		var featureID string
		if err := rows.Scan(&featureID); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan policy binding: %w", err)
		}
		features = append(features, featureID)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate policy bindings: %w", err)
	}
	rows.Close()

	if _, err := s.exec(ctx, `DELETE FROM feature_policies WHERE policy_id=$1`, policyID); err != nil {
		return nil, fmt.Errorf("delete policy bindings: %w", err)
	}
	if _, err := s.exec(ctx, `DELETE FROM glossary_links WHERE policy_id=$1`, policyID); err != nil {
		return nil, fmt.Errorf("delete policy links: %w", err)
	}
	result, err := s.exec(ctx, `DELETE FROM policies WHERE id=$1`, policyID)
	if err != nil {
		return nil, fmt.Errorf("delete policy: %w", err)
	}
	if err := expectRow("delete policy", result); err != nil {
		return nil, err
	}
	return features, nil
}

func (s *Store) CreateGlossaryTerm(ctx context.Context, term GlossaryTerm) (GlossaryTerm, error) {
	now := s.now().UTC()
	term.CreatedAt, term.UpdatedAt = now, now
	_, err := s.exec(ctx, `
		INSERT INTO glossary_terms (id, project_id, term, definition, sequence, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, term.ID, term.ProjectID, term.Term, term.Definition, term.Sequence, s.dialect.timeArg(now), s.dialect.timeArg(now))
	if err != nil {
		return GlossaryTerm{}, classify("insert glossary term", err)
	}
	return term, nil
}

func (s *Store) GetGlossaryTerm(ctx context.Context, termID string) (GlossaryTerm, error) {
	var t GlossaryTerm
	err := s.queryRow(ctx, `
		SELECT id, project_id, term, definition, sequence, created_at, updated_at
		FROM glossary_terms
		WHERE id=$1
	`, termID).Scan(&t.ID, &t.ProjectID, &t.Term, &t.Definition, &t.Sequence, timestamp{&t.CreatedAt}, timestamp{&t.UpdatedAt})
	if err != nil {
		return GlossaryTerm{}, notFound("get glossary term", err)
	}
	return t, nil
}

// ListGlossaryTerms returns a project's glossary in persisted order.
func (s *Store) ListGlossaryTerms(ctx context.Context, projectID string) ([]GlossaryTerm, error) {
	rows, err := s.query(ctx, `
		SELECT id, project_id, term, definition, sequence, created_at, updated_at
		FROM glossary_terms
		WHERE project_id=$1
		ORDER BY sequence ASC, id ASC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list glossary terms: %w", err)
	}
	defer rows.Close()
	return scanGlossaryTerms(rows)
}

func scanGlossaryTerms(rows interface {
	Next() bool
	Scan(...any) error
	Err() error
}) ([]GlossaryTerm, error) {
	items := make([]GlossaryTerm, 0)
	for rows.Next() {
		var t GlossaryTerm
		if err := rows.Scan(&t.ID, &t.ProjectID, &t.Term, &t.Definition, &t.Sequence, timestamp{&t.CreatedAt}, timestamp{&t.UpdatedAt}); err != nil {
			return nil, fmt.Errorf("scan glossary term: %w", err)
		}
		items = append(items, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate glossary terms: %w", err)
	}
	return items, nil
}

func (s *Store) UpdateGlossaryTerm(ctx context.Context, termID, term, definition string) error {
	result, err := s.exec(ctx, `
		UPDATE glossary_terms SET term=$2, definition=$3, updated_at=$4 WHERE id=$1
	`, termID, term, definition, s.stamp())
	if err != nil {
		return classify("update glossary term", err)
	}
	return expectRow("update glossary term", result)
}

// DeleteGlossaryTerm drops the term's policy links, then the term, and
// returns the project scope that now needs renumbering.
func (s *Store) DeleteGlossaryTerm(ctx context.Context, termID string) (string, error) {
	if _, err := s.exec(ctx, `DELETE FROM glossary_links WHERE term_id=$1`, termID); err != nil {
		return "", fmt.Errorf("delete glossary links: %w", err)
	}
	return s.deleteSequenced(ctx, "glossary_terms", "project_id", termID)
}

func (s *Store) LinkTerm(ctx context.Context, policyID, termID string) (GlossaryLink, error) {
	now := s.now().UTC()
	if _, err := s.exec(ctx, `
		INSERT INTO glossary_links (policy_id, term_id, created_at) VALUES ($1, $2, $3)
	`, policyID, termID, s.dialect.timeArg(now)); err != nil {
		return GlossaryLink{}, classify("link glossary term", err)
	}
	term, err := s.GetGlossaryTerm(ctx, termID)
	if err != nil {
		return GlossaryLink{}, err
	}
	return GlossaryLink{PolicyID: policyID, TermID: termID, Term: term, CreatedAt: now}, nil
}

func (s *Store) UnlinkTerm(ctx context.Context, policyID, termID string) error {
	result, err := s.exec(ctx, `DELETE FROM glossary_links WHERE policy_id=$1 AND term_id=$2`, policyID, termID)
	if err != nil {
		return fmt.Errorf("unlink glossary term: %w", err)
	}
	return expectRow("unlink glossary term", result)
}

// ListPolicyTerms returns the glossary terms linked to a policy in glossary
// order.
func (s *Store) ListPolicyTerms(ctx context.Context, policyID string) ([]GlossaryLink, error) {
	rows, err := s.query(ctx, `
		SELECT l.policy_id, l.created_at,
			t.id, t.project_id, t.term, t.definition, t.sequence, t.created_at, t.updated_at
		FROM glossary_links l
		JOIN glossary_terms t ON t.id = l.term_id
		WHERE l.policy_id=$1
		ORDER BY t.sequence ASC, t.id ASC
	`, policyID)
	if err != nil {
		return nil, fmt.Errorf("list policy terms: %w", err)
	}
	defer rows.Close()

	items := make([]GlossaryLink, 0)
	for rows.Next() {
		var link GlossaryLink
		t := &link.Term
		if err := rows.Scan(&link.PolicyID, timestamp{&link.CreatedAt},
			&t.ID, &t.ProjectID, &t.Term, &t.Definition, &t.Sequence, timestamp{&t.CreatedAt}, timestamp{&t.UpdatedAt}); err != nil {
			return nil, fmt.Errorf("scan policy term: %w", err)
		}
		link.TermID = t.ID
		items = append(items, link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate policy terms: %w", err)
	}
	return items, nil
}

// SearchGlossaryTerms is a case-insensitive substring match over term and
// definition, used when no search index is available.
func (s *Store) SearchGlossaryTerms(ctx context.Context, projectID, text string, limit int) ([]GlossaryTerm, error) {
	rows, err := s.query(ctx, `
		SELECT id, project_id, term, definition, sequence, created_at, updated_at
		FROM glossary_terms
		WHERE project_id=$1 AND (LOWER(term) LIKE $2 OR LOWER(definition) LIKE $2)
		ORDER BY sequence ASC, id ASC
		LIMIT $3
	`, projectID, likePattern(text), limit)
	if err != nil {
		return nil, fmt.Errorf("search glossary terms: %w", err)
	}
	defer rows.Close()
	return scanGlossaryTerms(rows)
}

// SearchPolicies is the policy counterpart of SearchGlossaryTerms.
func (s *Store) SearchPolicies(ctx context.Context, projectID, text string, limit int) ([]Policy, error) {
	rows, err := s.query(ctx, `
		SELECT id, project_id, title, content, created_at, updated_at
		FROM policies
		WHERE project_id=$1 AND (LOWER(title) LIKE $2 OR LOWER(content) LIKE $2)
		ORDER BY title ASC, id ASC
		LIMIT $3
	`, projectID, likePattern(text), limit)
	if err != nil {
		return nil, fmt.Errorf("search policies: %w", err)
	}
	defer rows.Close()
	return scanPolicies(rows)
}

// AllGlossaryTerms and AllPolicies feed a full search reindex.
func (s *Store) AllGlossaryTerms(ctx context.Context) ([]GlossaryTerm, error) {
	rows, err := s.query(ctx, `
		SELECT id, project_id, term, definition, sequence, created_at, updated_at
		FROM glossary_terms
		ORDER BY project_id, sequence, id
	`)
	if err != nil {
		return nil, fmt.Errorf("load glossary terms: %w", err)
	}
	defer rows.Close()
	return scanGlossaryTerms(rows)
}

func (s *Store) AllPolicies(ctx context.Context) ([]Policy, error) {
	rows, err := s.query(ctx, `
		SELECT id, project_id, title, content, created_at, updated_at
		FROM policies
		ORDER BY project_id, title, id
	`)
	if err != nil {
		return nil, fmt.Errorf("load policies: %w", err)
	}
	defer rows.Close()
	return scanPolicies(rows)
}

func likePattern(text string) string {
	escaped := strings.NewReplacer("%", "", "_", "").Replace(strings.ToLower(strings.TrimSpace(text)))
	return "%" + escaped + "%"
}
