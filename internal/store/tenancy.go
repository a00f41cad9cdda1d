package store

import (
	"context"
	"fmt"
)

func (s *Store) CreateOrganization(ctx context.Context, org Organization) (Organization, error) {
	now := s.now().UTC()
	org.CreatedAt, org.UpdatedAt = now, now
	_, err := s.exec(ctx, `
		INSERT INTO organizations (id, name, slug, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, org.ID, org.Name, org.Slug, s.dialect.timeArg(now), s.dialect.timeArg(now))
	if err != nil {
		return Organization{}, classify("insert organization", err)
	}
	return org, nil
}

func (s *Store) GetOrganization(ctx context.Context, orgID string) (Organization, error) {
	var org Organization
	err := s.queryRow(ctx, `
		SELECT id, name, slug, created_at, updated_at
		FROM organizations
		WHERE id=$1
	`, orgID).Scan(&org.ID, &org.Name, &org.Slug, timestamp{&org.CreatedAt}, timestamp{&org.UpdatedAt})
	if err != nil {
		return Organization{}, notFound("get organization", err)
	}
	return org, nil
}

func (s *Store) ListOrganizations(ctx context.Context) ([]Organization, error) {
	rows, err := s.query(ctx, `
		SELECT id, name, slug, created_at, updated_at
		FROM organizations
		ORDER BY name ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	defer rows.Close()

	items := make([]Organization, 0)
	for rows.Next() {
		var org Organization
		if err := rows.Scan(&org.ID, &org.Name, &org.Slug, timestamp{&org.CreatedAt}, timestamp{&org.UpdatedAt}); err != nil {
			return nil, fmt.Errorf("scan organization: %w", err)
		}
		items = append(items, org)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate organizations: %w", err)
	}
	return items, nil
}

func (s *Store) CreateProject(ctx context.Context, project Project) (Project, error) {
	now := s.now().UTC()
	project.CreatedAt, project.UpdatedAt = now, now
	_, err := s.exec(ctx, `
		INSERT INTO projects (id, org_id, name, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, project.ID, project.OrgID, project.Name, project.Description, s.dialect.timeArg(now), s.dialect.timeArg(now))
	if err != nil {
		return Project{}, classify("insert project", err)
	}
	return project, nil
}

func (s *Store) GetProject(ctx context.Context, projectID string) (Project, error) {
	var project Project
	err := s.queryRow(ctx, `
		SELECT id, org_id, name, description, created_at, updated_at
		FROM projects
		WHERE id=$1
	`, projectID).Scan(&project.ID, &project.OrgID, &project.Name, &project.Description,
		timestamp{&project.CreatedAt}, timestamp{&project.UpdatedAt})
	if err != nil {
		return Project{}, notFound("get project", err)
	}
	return project, nil
}

func (s *Store) ListProjects(ctx context.Context, orgID string) ([]Project, error) {
	rows, err := s.query(ctx, `
		SELECT id, org_id, name, description, created_at, updated_at
		FROM projects
		WHERE org_id=$1
		ORDER BY name ASC, id ASC
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	items := make([]Project, 0)
	for rows.Next() {
		var project Project
		if err := rows.Scan(&project.ID, &project.OrgID, &project.Name, &project.Description,
			timestamp{&project.CreatedAt}, timestamp{&project.UpdatedAt}); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		items = append(items, project)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}
	return items, nil
}

func (s *Store) UpdateProject(ctx context.Context, projectID, name, description string) error {
	result, err := s.exec(ctx, `
		UPDATE projects SET name=$2, description=$3, updated_at=$4 WHERE id=$1
	`, projectID, name, description, s.stamp())
	if err != nil {
		return classify("update project", err)
	}
	return expectRow("update project", result)
}

// DeleteProject removes the project; every child row goes with it through
// ON DELETE CASCADE, so no scope survives to be renumbered.
func (s *Store) DeleteProject(ctx context.Context, projectID string) error {
	result, err := s.exec(ctx, `DELETE FROM projects WHERE id=$1`, projectID)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return expectRow("delete project", result)
}

func (s *Store) CreateActor(ctx context.Context, actor Actor) (Actor, error) {
	now := s.now().UTC()
	actor.CreatedAt, actor.UpdatedAt = now, now
	_, err := s.exec(ctx, `
		INSERT INTO actors (id, project_id, name, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, actor.ID, actor.ProjectID, actor.Name, actor.Description, s.dialect.timeArg(now), s.dialect.timeArg(now))
	if err != nil {
		return Actor{}, classify("insert actor", err)
	}
	return actor, nil
}

func (s *Store) GetActor(ctx context.Context, actorID string) (Actor, error) {
	var actor Actor
	err := s.queryRow(ctx, `
		SELECT id, project_id, name, description, created_at, updated_at
		FROM actors
		WHERE id=$1
	`, actorID).Scan(&actor.ID, &actor.ProjectID, &actor.Name, &actor.Description,
		timestamp{&actor.CreatedAt}, timestamp{&actor.UpdatedAt})
	if err != nil {
		return Actor{}, notFound("get actor", err)
	}
	return actor, nil
}

func (s *Store) ListActors(ctx context.Context, projectID string) ([]Actor, error) {
	rows, err := s.query(ctx, `
		SELECT id, project_id, name, description, created_at, updated_at
		FROM actors
		WHERE project_id=$1
		ORDER BY name ASC, id ASC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list actors: %w", err)
	}
	defer rows.Close()

	items := make([]Actor, 0)
	for rows.Next() {
		var actor Actor
		if err := rows.Scan(&actor.ID, &actor.ProjectID, &actor.Name, &actor.Description,
			timestamp{&actor.CreatedAt}, timestamp{&actor.UpdatedAt}); err != nil {
			return nil, fmt.Errorf("scan actor: %w", err)
		}
		items = append(items, actor)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate actors: %w", err)
	}
	return items, nil
}

func (s *Store) UpdateActor(ctx context.Context, actorID, name, description string) error {
	result, err := s.exec(ctx, `
		UPDATE actors SET name=$2, description=$3, updated_at=$4 WHERE id=$1
	`, actorID, name, description, s.stamp())
	if err != nil {
		return classify("update actor", err)
	}
	return expectRow("update actor", result)
}

// DeleteActor removes the actor together with its usecases, their features
// and feature bindings.
func (s *Store) DeleteActor(ctx context.Context, actorID string) error {
	result, err := s.exec(ctx, `DELETE FROM actors WHERE id=$1`, actorID)
	if err != nil {
		return fmt.Errorf("delete actor: %w", err)
	}
	return expectRow("delete actor", result)
}
