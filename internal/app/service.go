package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"termbase/api/internal/auth"
	"termbase/api/internal/config"
	"termbase/api/internal/rbac"
	"termbase/api/internal/scopelock"
	"termbase/api/internal/search"
	"termbase/api/internal/sequencing"
	"termbase/api/internal/store"
	"termbase/api/internal/util"
)

// Principal is the caller identified by a bearer token.
type Principal struct {
	UserID string
	Name   string
	OrgID  string
	Role   rbac.Role
}

type Options struct {
	// Locker serialises reorders per scope. Defaults to an in-process lock.
	Locker scopelock.Locker
	// Search defaults to SQL-only search over the store.
	Search *search.Service
	Logger *slog.Logger
	// WrapSequences, when set, decorates the sequence store of each kind
	// before a coordinator is built over it.
	WrapSequences func(store.Kind, sequencing.Store) sequencing.Store
}

type Service struct {
	cfg    config.Config
	store  *store.Store
	coords map[store.Kind]*sequencing.Coordinator
	locks  scopelock.Locker
	search *search.Service
	logger *slog.Logger
}

func New(cfg config.Config, dataStore *store.Store, opts Options) (*Service, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		cfg:    cfg,
		store:  dataStore,
		coords: make(map[store.Kind]*sequencing.Coordinator, len(store.Kinds)),
		locks:  opts.Locker,
		search: opts.Search,
		logger: logger.With(slog.String("component", "app")),
	}
	if s.locks == nil {
		s.locks = scopelock.NewMemory()
	}
	if s.search == nil {
		s.search = search.NewService(nil, search.NewSQL(dataStore), logger)
	}

	for _, kind := range store.Kinds {
		seq, err := dataStore.Sequences(kind)
		if err != nil {
			return nil, err
		}
		var backing sequencing.Store = seq
		if opts.WrapSequences != nil {
			backing = opts.WrapSequences(kind, seq)
		}
		s.coords[kind] = sequencing.NewCoordinator(backing,
			sequencing.WithLogger(logger.With(slog.String("kind", string(kind)))))
	}
	return s, nil
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) Can(p Principal, action rbac.Action) bool {
	return rbac.Can(p.Role, action)
}

// IssueToken mints an access token for a user of orgID.
func (s *Service) IssueToken(userID, name, orgID, role string) (string, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(orgID) == "" {
		return "", validationError("subject and organization are required")
	}
	claims := auth.NewClaims(userID, name, orgID, string(rbac.Normalize(role)), s.cfg.AccessTTL)
	return auth.IssueToken([]byte(s.cfg.JWTSecret), claims)
}

func (s *Service) Authenticate(token string) (Principal, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Principal{}, err
	}
	return Principal{
		UserID: claims.Sub,
		Name:   claims.Name,
		OrgID:  claims.Org,
		Role:   rbac.Normalize(claims.Role),
	}, nil
}

// project loads a project and hides it from callers of other organizations.
func (s *Service) project(ctx context.Context, p Principal, projectID string) (store.Project, error) {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return store.Project{}, err
	}
	if project.OrgID != p.OrgID {
		return store.Project{}, errNotFound
	}
	return project, nil
}

// scope resolves the project that owns a sequencing scope and checks that
// the caller may see it.
func (s *Service) scope(ctx context.Context, p Principal, kind store.Kind, scopeID string) (string, error) {
	projectID, err := s.store.ScopeProject(ctx, kind, scopeID)
	if err != nil {
		return "", err
	}
	if _, err := s.project(ctx, p, projectID); err != nil {
		return "", err
	}
	return projectID, nil
}

func (s *Service) CreateOrganization(ctx context.Context, name, slug string) (store.Organization, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return store.Organization{}, validationError("name is required")
	}
	slug = strings.TrimSpace(slug)
	if slug == "" {
		slug = slugify(name)
	}
	return s.store.CreateOrganization(ctx, store.Organization{ID: util.NewID("org"), Name: name, Slug: slug})
}

// ListOrganizations returns the caller's own organization.
func (s *Service) ListOrganizations(ctx context.Context, p Principal) ([]store.Organization, error) {
	org, err := s.store.GetOrganization(ctx, p.OrgID)
	if errors.Is(err, store.ErrNotFound) {
		return []store.Organization{}, nil
	}
	if err != nil {
		return nil, err
	}
	return []store.Organization{org}, nil
}

func (s *Service) GetOrganization(ctx context.Context, p Principal, orgID string) (store.Organization, error) {
	if orgID != p.OrgID {
		return store.Organization{}, errNotFound
	}
	return s.store.GetOrganization(ctx, orgID)
}

func (s *Service) CreateProject(ctx context.Context, p Principal, name, description string) (store.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return store.Project{}, validationError("name is required")
	}
	return s.store.CreateProject(ctx, store.Project{
		ID:          util.NewID("proj"),
		OrgID:       p.OrgID,
		Name:        name,
		Description: strings.TrimSpace(description),
	})
}

func (s *Service) ListProjects(ctx context.Context, p Principal) ([]store.Project, error) {
	return s.store.ListProjects(ctx, p.OrgID)
}

func (s *Service) GetProject(ctx context.Context, p Principal, projectID string) (store.Project, error) {
	return s.project(ctx, p, projectID)
}

func (s *Service) UpdateProject(ctx context.Context, p Principal, projectID, name, description string) (store.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return store.Project{}, validationError("name is required")
	}
	if _, err := s.project(ctx, p, projectID); err != nil {
		return store.Project{}, err
	}
	if err := s.store.UpdateProject(ctx, projectID, name, strings.TrimSpace(description)); err != nil {
		return store.Project{}, err
	}
	return s.store.GetProject(ctx, projectID)
}

// DeleteProject cascades to every scope inside the project, so nothing is
// left to renumber.
func (s *Service) DeleteProject(ctx context.Context, p Principal, projectID string) error {
	if _, err := s.project(ctx, p, projectID); err != nil {
		return err
	}
	terms, policies, err := s.projectSearchDocs(ctx, projectID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteProject(ctx, projectID); err != nil {
		return err
	}
	for _, id := range terms {
		s.search.DeleteTerm(id)
	}
	for _, id := range policies {
		s.search.DeletePolicy(id)
	}
	return nil
}

func (s *Service) projectSearchDocs(ctx context.Context, projectID string) (terms, policies []string, err error) {
	if !s.search.Indexing() {
		return nil, nil, nil
	}
	glossary, err := s.store.ListGlossaryTerms(ctx, projectID)
	if err != nil {
		return nil, nil, err
	}
	library, err := s.store.ListPolicies(ctx, projectID)
	if err != nil {
		return nil, nil, err
	}
	for _, term := range glossary {
		terms = append(terms, term.ID)
	}
	for _, policy := range library {
		policies = append(policies, policy.ID)
	}
	return terms, policies, nil
}

func (s *Service) CreateActor(ctx context.Context, p Principal, projectID, name, description string) (store.Actor, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return store.Actor{}, validationError("name is required")
	}
	if _, err := s.project(ctx, p, projectID); err != nil {
		return store.Actor{}, err
	}
	return s.store.CreateActor(ctx, store.Actor{
		ID:          util.NewID("actor"),
		ProjectID:   projectID,
		Name:        name,
		Description: strings.TrimSpace(description),
	})
}

func (s *Service) ListActors(ctx context.Context, p Principal, projectID string) ([]store.Actor, error) {
	if _, err := s.project(ctx, p, projectID); err != nil {
		return nil, err
	}
	return s.store.ListActors(ctx, projectID)
}

func (s *Service) actor(ctx context.Context, p Principal, actorID string) (store.Actor, error) {
	actor, err := s.store.GetActor(ctx, actorID)
	if err != nil {
		return store.Actor{}, err
	}
	if _, err := s.project(ctx, p, actor.ProjectID); err != nil {
		return store.Actor{}, err
	}
	return actor, nil
}

func (s *Service) UpdateActor(ctx context.Context, p Principal, actorID, name, description string) (store.Actor, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return store.Actor{}, validationError("name is required")
	}
	if _, err := s.actor(ctx, p, actorID); err != nil {
		return store.Actor{}, err
	}
	if err := s.store.UpdateActor(ctx, actorID, name, strings.TrimSpace(description)); err != nil {
		return store.Actor{}, err
	}
	return s.store.GetActor(ctx, actorID)
}

func (s *Service) DeleteActor(ctx context.Context, p Principal, actorID string) error {
	if _, err := s.actor(ctx, p, actorID); err != nil {
		return err
	}
	return s.store.DeleteActor(ctx, actorID)
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(name string) string {
	slug := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(name), "-"), "-")
	if slug == "" {
		return util.NewID("org")
	}
	return slug
}

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return validationError(fmt.Sprintf("%s is required", field))
	}
	return nil
}
