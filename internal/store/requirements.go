package store

import (
	"context"
	"fmt"
)

func (s *Store) CreateUsecase(ctx context.Context, usecase Usecase) (Usecase, error) {
	now := s.now().UTC()
	usecase.CreatedAt, usecase.UpdatedAt = now, now
	_, err := s.exec(ctx, `
		INSERT INTO usecases (id, actor_id, name, description, sequence, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, usecase.ID, usecase.ActorID, usecase.Name, usecase.Description, usecase.Sequence,
		s.dialect.timeArg(now), s.dialect.timeArg(now))
	if err != nil {
		return Usecase{}, classify("insert usecase", err)
	}
	return usecase, nil
}

func (s *Store) GetUsecase(ctx context.Context, usecaseID string) (Usecase, error) {
	var uc Usecase
	err := s.queryRow(ctx, `
		SELECT id, actor_id, name, description, sequence, created_at, updated_at
		FROM usecases
		WHERE id=$1
	`, usecaseID).Scan(&uc.ID, &uc.ActorID, &uc.Name, &uc.Description, &uc.Sequence,
		timestamp{&uc.CreatedAt}, timestamp{&uc.UpdatedAt})
	if err != nil {
		return Usecase{}, notFound("get usecase", err)
	}
	return uc, nil
}

// ListUsecases returns an actor's usecases in persisted order.
func (s *Store) ListUsecases(ctx context.Context, actorID string) ([]Usecase, error) {
	rows, err := s.query(ctx, `
		SELECT id, actor_id, name, description, sequence, created_at, updated_at
		FROM usecases
		WHERE actor_id=$1
		ORDER BY sequence ASC, id ASC
	`, actorID)
	if err != nil {
		return nil, fmt.Errorf("list usecases: %w", err)
	}
	defer rows.Close()

	items := make([]Usecase, 0)
	for rows.Next() {
		var uc Usecase
		if err := rows.Scan(&uc.ID, &uc.ActorID, &uc.Name, &uc.Description, &uc.Sequence,
			timestamp{&uc.CreatedAt}, timestamp{&uc.UpdatedAt}); err != nil {
			return nil, fmt.Errorf("scan usecase: %w", err)
		}
		items = append(items, uc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate usecases: %w", err)
	}
	return items, nil
}

// UpdateUsecase edits content only; sequence is owned by the sequencing
// subsystem.
func (s *Store) UpdateUsecase(ctx context.Context, usecaseID, name, description string) error {
	result, err := s.exec(ctx, `
		UPDATE usecases SET name=$2, description=$3, updated_at=$4 WHERE id=$1
	`, usecaseID, name, description, s.stamp())
	if err != nil {
		return classify("update usecase", err)
	}
	return expectRow("update usecase", result)
}

// DeleteUsecase removes the usecase with its features and returns the actor
// scope that now needs renumbering.
func (s *Store) DeleteUsecase(ctx context.Context, usecaseID string) (string, error) {
	return s.deleteSequenced(ctx, "usecases", "actor_id", usecaseID)
}

func (s *Store) CreateFeature(ctx context.Context, feature Feature) (Feature, error) {
	now := s.now().UTC()
	feature.CreatedAt, feature.UpdatedAt = now, now
	_, err := s.exec(ctx, `
		INSERT INTO features (id, usecase_id, name, description, acceptance_criteria, sequence, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, feature.ID, feature.UsecaseID, feature.Name, feature.Description, feature.AcceptanceCriteria,
		feature.Sequence, s.dialect.timeArg(now), s.dialect.timeArg(now))
	if err != nil {
		return Feature{}, classify("insert feature", err)
	}
	return feature, nil
}

func (s *Store) GetFeature(ctx context.Context, featureID string) (Feature, error) {
	var f Feature
	err := s.queryRow(ctx, `
		SELECT id, usecase_id, name, description, acceptance_criteria, sequence, created_at, updated_at
		FROM features
		WHERE id=$1
	`, featureID).Scan(&f.ID, &f.UsecaseID, &f.Name, &f.Description, &f.AcceptanceCriteria, &f.Sequence,
		timestamp{&f.CreatedAt}, timestamp{&f.UpdatedAt})
	if err != nil {
		return Feature{}, notFound("get feature", err)
	}
	return f, nil
}

func (s *Store) ListFeatures(ctx context.Context, usecaseID string) ([]Feature, error) {
	rows, err := s.query(ctx, `
		SELECT id, usecase_id, name, description, acceptance_criteria, sequence, created_at, updated_at
		FROM features
		WHERE usecase_id=$1
		ORDER BY sequence ASC, id ASC
	`, usecaseID)
	if err != nil {
		return nil, fmt.Errorf("list features: %w", err)
	}
	defer rows.Close()

	items := make([]Feature, 0)
	for rows.Next() {
		var f Feature
		if err := rows.Scan(&f.ID, &f.UsecaseID, &f.Name, &f.Description, &f.AcceptanceCriteria, &f.Sequence,
			timestamp{&f.CreatedAt}, timestamp{&f.UpdatedAt}); err != nil {
			return nil, fmt.Errorf("scan feature: %w", err)
		}
		items = append(items, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate features: %w", err)
	}
	return items, nil
}

func (s *Store) UpdateFeature(ctx context.Context, featureID, name, description, acceptanceCriteria string) error {
	result, err := s.exec(ctx, `
		UPDATE features SET name=$2, description=$3, acceptance_criteria=$4, updated_at=$5 WHERE id=$1
	`, featureID, name, description, acceptanceCriteria, s.stamp())
	if err != nil {
		return classify("update feature", err)
	}
	return expectRow("update feature", result)
}

// DeleteFeature removes the feature with its policy bindings and returns
// the usecase scope that now needs renumbering.
func (s *Store) DeleteFeature(ctx context.Context, featureID string) (string, error) {
	return s.deleteSequenced(ctx, "features", "usecase_id", featureID)
}

func (s *Store) BindPolicy(ctx context.Context, binding FeaturePolicy) (FeaturePolicy, error) {
	now := s.now().UTC()
	binding.CreatedAt, binding.UpdatedAt = now, now
	_, err := s.exec(ctx, `
		INSERT INTO feature_policies (id, feature_id, policy_id, sequence, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, binding.ID, binding.FeatureID, binding.PolicyID, binding.Sequence, s.dialect.timeArg(now), s.dialect.timeArg(now))
	if err != nil {
		return FeaturePolicy{}, classify("bind policy", err)
	}
	policy, err := s.GetPolicy(ctx, binding.PolicyID)
	if err != nil {
		return FeaturePolicy{}, err
	}
	binding.Policy = policy
	return binding, nil
}

const featurePolicyColumns = `
	fp.id, fp.feature_id, fp.policy_id, fp.sequence, fp.created_at, fp.updated_at,
	p.id, p.project_id, p.title, p.content, p.created_at, p.updated_at`

func scanFeaturePolicy(row interface{ Scan(...any) error }) (FeaturePolicy, error) {
	var fp FeaturePolicy
	err := row.Scan(&fp.ID, &fp.FeatureID, &fp.PolicyID, &fp.Sequence, timestamp{&fp.CreatedAt}, timestamp{&fp.UpdatedAt},
		&fp.Policy.ID, &fp.Policy.ProjectID, &fp.Policy.Title, &fp.Policy.Content,
		timestamp{&fp.Policy.CreatedAt}, timestamp{&fp.Policy.UpdatedAt})
	return fp, err
}

func (s *Store) GetFeaturePolicy(ctx context.Context, bindingID string) (FeaturePolicy, error) {
	fp, err := scanFeaturePolicy(s.queryRow(ctx, `
		SELECT `+featurePolicyColumns+`
		FROM feature_policies fp
		JOIN policies p ON p.id = fp.policy_id
		WHERE fp.id=$1
	`, bindingID))
	if err != nil {
		return FeaturePolicy{}, notFound("get feature policy", err)
	}
	return fp, nil
}

// ListFeaturePolicies returns a feature's bindings in persisted order with
// the bound policy joined in.
func (s *Store) ListFeaturePolicies(ctx context.Context, featureID string) ([]FeaturePolicy, error) {
	rows, err := s.query(ctx, `
		SELECT `+featurePolicyColumns+`
		FROM feature_policies fp
		JOIN policies p ON p.id = fp.policy_id
		WHERE fp.feature_id=$1
		ORDER BY fp.sequence ASC, fp.id ASC
	`, featureID)
	if err != nil {
		return nil, fmt.Errorf("list feature policies: %w", err)
	}
	defer rows.Close()

	items := make([]FeaturePolicy, 0)
	for rows.Next() {
		fp, err := scanFeaturePolicy(rows)
		if err != nil {
			return nil, fmt.Errorf("scan feature policy: %w", err)
		}
		items = append(items, fp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feature policies: %w", err)
	}
	return items, nil
}

// UnbindPolicy removes one binding and returns the feature scope it left.
func (s *Store) UnbindPolicy(ctx context.Context, bindingID string) (string, error) {
	return s.deleteSequenced(ctx, "feature_policies", "feature_id", bindingID)
}

// deleteSequenced deletes one row from a sequenced table and reports its
// parent scope. table and parent come from package constants only.
func (s *Store) deleteSequenced(ctx context.Context, table, parent, id string) (string, error) {
	var scopeID string
	err := s.queryRow(ctx, fmt.Sprintf(`SELECT %s FROM %s WHERE id=$1`, parent, table), id).Scan(&scopeID)
	if err != nil {
		return "", notFound("delete from "+table, err)
	}
	result, err := s.exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id=$1`, table), id)
	if err != nil {
		return "", fmt.Errorf("delete from %s: %w", table, err)
	}
	if err := expectRow("delete from "+table, result); err != nil {
		return "", err
	}
	return scopeID, nil
}
