package store

import "time"

type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Project struct {
	ID          string    `json:"id"`
	OrgID       string    `json:"orgId"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type Actor struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"projectId"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Usecase is sequenced within its actor.
type Usecase struct {
	ID          string    `json:"id"`
	ActorID     string    `json:"actorId"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Sequence    int       `json:"sequence"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Feature is sequenced within its usecase.
type Feature struct {
	ID                 string    `json:"id"`
	UsecaseID          string    `json:"usecaseId"`
	Name               string    `json:"name"`
	Description        string    `json:"description"`
	AcceptanceCriteria string    `json:"acceptanceCriteria"`
	Sequence           int       `json:"sequence"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// Policy lives in the project-wide policy library and is bound to features
// through FeaturePolicy.
type Policy struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"projectId"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// FeaturePolicy binds a policy to a feature; the binding, not the policy,
// carries the sequence.
type FeaturePolicy struct {
	ID        string    `json:"id"`
	FeatureID string    `json:"featureId"`
	PolicyID  string    `json:"policyId"`
	Sequence  int       `json:"sequence"`
	Policy    Policy    `json:"policy"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// GlossaryTerm is sequenced within its project.
type GlossaryTerm struct {
	ID         string    `json:"id"`
	ProjectID  string    `json:"projectId"`
	Term       string    `json:"term"`
	Definition string    `json:"definition"`
	Sequence   int       `json:"sequence"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// GlossaryLink tags a policy with a glossary term.
type GlossaryLink struct {
	PolicyID  string       `json:"policyId"`
	TermID    string       `json:"termId"`
	Term      GlossaryTerm `json:"term"`
	CreatedAt time.Time    `json:"createdAt"`
}
