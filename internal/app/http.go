package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"termbase/api/internal/rbac"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
	logger     *slog.Logger
}

func NewHTTPServer(service *Service, corsOrigin string, logger *slog.Logger) *HTTPServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPServer{service: service, corsOrigin: corsOrigin, logger: logger.With(slog.String("component", "http"))}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		s.handleReady(w, r)
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) < 2 || parts[0] != "api" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	principal, ok := s.requirePrincipal(w, r)
	if !ok {
		return
	}

	switch parts[1] {
	case "organizations":
		s.handleOrganizations(w, r, principal, parts)
	case "projects":
		s.handleProjects(w, r, principal, parts)
	case "actors":
		s.handleActors(w, r, principal, parts)
	case "usecases":
		s.handleUsecases(w, r, principal, parts)
	case "features":
		s.handleFeatures(w, r, principal, parts)
	case "feature-policies":
		s.handleFeaturePolicies(w, r, principal, parts)
	case "glossary":
		s.handleGlossary(w, r, principal, parts)
	case "policies":
		s.handlePolicies(w, r, principal, parts)
	case "scopes":
		s.handleScopes(w, r, principal, parts)
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{
		"database": map[string]any{"status": "ok"},
	}

	if err := s.service.Ping(ctx); err != nil {
		s.logger.Warn("readiness check failed", slog.String("error", err.Error()))
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
		checks["database"] = map[string]any{"status": "error"}
	}

	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

// /api/organizations[/{id}]
func (s *HTTPServer) handleOrganizations(w http.ResponseWriter, r *http.Request, p Principal, parts []string) {
	if len(parts) == 2 && r.Method == http.MethodGet {
		if !s.allow(w, p, rbac.ActionRead) {
			return
		}
		items, err := s.service.ListOrganizations(r.Context(), p)
		s.respond(w, r, http.StatusOK, listPayload(items), err)
		return
	}
	if len(parts) == 2 && r.Method == http.MethodPost {
		if !s.allow(w, p, rbac.ActionAdmin) {
			return
		}
		var body struct {
			Name string `json:"name"`
			Slug string `json:"slug"`
		}
		if !readBody(w, r, &body) {
			return
		}
		org, err := s.service.CreateOrganization(r.Context(), body.Name, body.Slug)
		s.respond(w, r, http.StatusCreated, org, err)
		return
	}
	if len(parts) == 3 && r.Method == http.MethodGet {
		if !s.allow(w, p, rbac.ActionRead) {
			return
		}
		org, err := s.service.GetOrganization(r.Context(), p, parts[2])
		s.respond(w, r, http.StatusOK, org, err)
		return
	}
	notAllowed(w, parts, 3)
}

// /api/projects[/{id}[/actors|glossary|policies|search]]
func (s *HTTPServer) handleProjects(w http.ResponseWriter, r *http.Request, p Principal, parts []string) {
	ctx := r.Context()
	switch len(parts) {
	case 2:
		switch r.Method {
		case http.MethodGet:
			if !s.allow(w, p, rbac.ActionRead) {
				return
			}
			items, err := s.service.ListProjects(ctx, p)
			s.respond(w, r, http.StatusOK, listPayload(items), err)
		case http.MethodPost:
			if !s.allow(w, p, rbac.ActionWrite) {
				return
			}
			var body nameBody
			if !readBody(w, r, &body) {
				return
			}
			project, err := s.service.CreateProject(ctx, p, body.Name, body.Description)
			s.respond(w, r, http.StatusCreated, project, err)
		default:
			methodNotAllowed(w)
		}
		return
	case 3:
		projectID := parts[2]
		switch r.Method {
		case http.MethodGet:
			if !s.allow(w, p, rbac.ActionRead) {
				return
			}
			project, err := s.service.GetProject(ctx, p, projectID)
			s.respond(w, r, http.StatusOK, project, err)
		case http.MethodPut:
			if !s.allow(w, p, rbac.ActionWrite) {
				return
			}
			var body nameBody
			if !readBody(w, r, &body) {
				return
			}
			project, err := s.service.UpdateProject(ctx, p, projectID, body.Name, body.Description)
			s.respond(w, r, http.StatusOK, project, err)
		case http.MethodDelete:
			if !s.allow(w, p, rbac.ActionAdmin) {
				return
			}
			err := s.service.DeleteProject(ctx, p, projectID)
			s.respond(w, r, http.StatusOK, map[string]any{"ok": true}, err)
		default:
			methodNotAllowed(w)
		}
		return
	case 4:
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	projectID := parts[2]
	switch parts[3] {
	case "actors":
		switch r.Method {
		case http.MethodGet:
			if !s.allow(w, p, rbac.ActionRead) {
				return
			}
			items, err := s.service.ListActors(ctx, p, projectID)
			s.respond(w, r, http.StatusOK, listPayload(items), err)
		case http.MethodPost:
			if !s.allow(w, p, rbac.ActionWrite) {
				return
			}
			var body nameBody
			if !readBody(w, r, &body) {
				return
			}
			actor, err := s.service.CreateActor(ctx, p, projectID, body.Name, body.Description)
			s.respond(w, r, http.StatusCreated, actor, err)
		default:
			methodNotAllowed(w)
		}
	case "glossary":
		switch r.Method {
		case http.MethodGet:
			if !s.allow(w, p, rbac.ActionRead) {
				return
			}
			items, err := s.service.ListTerms(ctx, p, projectID, strings.TrimSpace(r.URL.Query().Get("sort")))
			s.respond(w, r, http.StatusOK, listPayload(items), err)
		case http.MethodPost:
			if !s.allow(w, p, rbac.ActionWrite) {
				return
			}
			var body termBody
			if !readBody(w, r, &body) {
				return
			}
			term, err := s.service.CreateTerm(ctx, p, projectID, body.Term, body.Definition)
			s.respond(w, r, http.StatusCreated, term, err)
		default:
			methodNotAllowed(w)
		}
	case "policies":
		switch r.Method {
		case http.MethodGet:
			if !s.allow(w, p, rbac.ActionRead) {
				return
			}
			items, err := s.service.ListPolicies(ctx, p, projectID)
			s.respond(w, r, http.StatusOK, listPayload(items), err)
		case http.MethodPost:
			if !s.allow(w, p, rbac.ActionWrite) {
				return
			}
			var body policyBody
			if !readBody(w, r, &body) {
				return
			}
			policy, err := s.service.CreatePolicy(ctx, p, projectID, body.Title, body.Content)
			s.respond(w, r, http.StatusCreated, policy, err)
		default:
			methodNotAllowed(w)
		}
	case "search":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		if !s.allow(w, p, rbac.ActionRead) {
			return
		}
		query := r.URL.Query()
		limit, ok := intParam(w, query.Get("limit"), "limit")
		if !ok {
			return
		}
		offset, ok := intParam(w, query.Get("offset"), "offset")
		if !ok {
			return
		}
		resp, err := s.service.Search(ctx, p, projectID, query.Get("q"), strings.TrimSpace(query.Get("type")), limit, offset)
		s.respond(w, r, http.StatusOK, resp, err)
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

// /api/actors/{id}[/usecases]
func (s *HTTPServer) handleActors(w http.ResponseWriter, r *http.Request, p Principal, parts []string) {
	ctx := r.Context()
	if len(parts) == 3 {
		actorID := parts[2]
		switch r.Method {
		case http.MethodPut:
			if !s.allow(w, p, rbac.ActionWrite) {
				return
			}
			var body nameBody
			if !readBody(w, r, &body) {
				return
			}
			actor, err := s.service.UpdateActor(ctx, p, actorID, body.Name, body.Description)
			s.respond(w, r, http.StatusOK, actor, err)
		case http.MethodDelete:
			if !s.allow(w, p, rbac.ActionWrite) {
				return
			}
			err := s.service.DeleteActor(ctx, p, actorID)
			s.respond(w, r, http.StatusOK, map[string]any{"ok": true, "id": actorID}, err)
		default:
			methodNotAllowed(w)
		}
		return
	}
	if len(parts) == 4 && parts[3] == "usecases" {
		actorID := parts[2]
		switch r.Method {
		case http.MethodGet:
			if !s.allow(w, p, rbac.ActionRead) {
				return
			}
			items, err := s.service.ListUsecases(ctx, p, actorID)
			s.respond(w, r, http.StatusOK, listPayload(items), err)
		case http.MethodPost:
			if !s.allow(w, p, rbac.ActionWrite) {
				return
			}
			var body nameBody
			if !readBody(w, r, &body) {
				return
			}
			usecase, err := s.service.CreateUsecase(ctx, p, actorID, body.Name, body.Description)
			s.respond(w, r, http.StatusCreated, usecase, err)
		default:
			methodNotAllowed(w)
		}
		return
	}
	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

// /api/usecases/{id}[/features]
func (s *HTTPServer) handleUsecases(w http.ResponseWriter, r *http.Request, p Principal, parts []string) {
	ctx := r.Context()
	if len(parts) == 3 {
		usecaseID := parts[2]
		switch r.Method {
		case http.MethodPut:
			if !s.allow(w, p, rbac.ActionWrite) {
				return
			}
			var body nameBody
			if !readBody(w, r, &body) {
				return
			}
			usecase, err := s.service.UpdateUsecase(ctx, p, usecaseID, body.Name, body.Description)
			s.respond(w, r, http.StatusOK, usecase, err)
		case http.MethodDelete:
			if !s.allow(w, p, rbac.ActionWrite) {
				return
			}
			result, err := s.service.DeleteUsecase(ctx, p, usecaseID)
			s.respond(w, r, http.StatusOK, result, err)
		default:
			methodNotAllowed(w)
		}
		return
	}
	if len(parts) == 4 && parts[3] == "features" {
		usecaseID := parts[2]
		switch r.Method {
		case http.MethodGet:
			if !s.allow(w, p, rbac.ActionRead) {
				return
			}
			items, err := s.service.ListFeatures(ctx, p, usecaseID)
			s.respond(w, r, http.StatusOK, listPayload(items), err)
		case http.MethodPost:
			if !s.allow(w, p, rbac.ActionWrite) {
				return
			}
			var body featureBody
			if !readBody(w, r, &body) {
				return
			}
			feature, err := s.service.CreateFeature(ctx, p, usecaseID, body.Name, body.Description, body.AcceptanceCriteria)
			s.respond(w, r, http.StatusCreated, feature, err)
		default:
			methodNotAllowed(w)
		}
		return
	}
	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

// /api/features/{id}[/policies]
func (s *HTTPServer) handleFeatures(w http.ResponseWriter, r *http.Request, p Principal, parts []string) {
	ctx := r.Context()
	if len(parts) == 3 {
		featureID := parts[2]
		switch r.Method {
		case http.MethodPut:
			if !s.allow(w, p, rbac.ActionWrite) {
				return
			}
			var body featureBody
			if !readBody(w, r, &body) {
				return
			}
			feature, err := s.service.UpdateFeature(ctx, p, featureID, body.Name, body.Description, body.AcceptanceCriteria)
			s.respond(w, r, http.StatusOK, feature, err)
		case http.MethodDelete:
			if !s.allow(w, p, rbac.ActionWrite) {
				return
			}
			result, err := s.service.DeleteFeature(ctx, p, featureID)
			s.respond(w, r, http.StatusOK, result, err)
		default:
			methodNotAllowed(w)
		}
		return
	}
	if len(parts) == 4 && parts[3] == "policies" {
		featureID := parts[2]
		switch r.Method {
		case http.MethodGet:
			if !s.allow(w, p, rbac.ActionRead) {
				return
			}
			items, err := s.service.ListFeaturePolicies(ctx, p, featureID)
			s.respond(w, r, http.StatusOK, listPayload(items), err)
		case http.MethodPost:
			if !s.allow(w, p, rbac.ActionWrite) {
				return
			}
			var body struct {
				PolicyID string `json:"policyId"`
			}
			if !readBody(w, r, &body) {
				return
			}
			binding, err := s.service.BindPolicy(ctx, p, featureID, body.PolicyID)
			s.respond(w, r, http.StatusCreated, binding, err)
		default:
			methodNotAllowed(w)
		}
		return
	}
	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

// /api/feature-policies/{id}
func (s *HTTPServer) handleFeaturePolicies(w http.ResponseWriter, r *http.Request, p Principal, parts []string) {
	if len(parts) != 3 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	if r.Method != http.MethodDelete {
		methodNotAllowed(w)
		return
	}
	if !s.allow(w, p, rbac.ActionWrite) {
		return
	}
	result, err := s.service.UnbindPolicy(r.Context(), p, parts[2])
	s.respond(w, r, http.StatusOK, result, err)
}

// /api/glossary/{id}
func (s *HTTPServer) handleGlossary(w http.ResponseWriter, r *http.Request, p Principal, parts []string) {
	if len(parts) != 3 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	termID := parts[2]
	switch r.Method {
	case http.MethodPut:
		if !s.allow(w, p, rbac.ActionWrite) {
			return
		}
		var body termBody
		if !readBody(w, r, &body) {
			return
		}
		term, err := s.service.UpdateTerm(r.Context(), p, termID, body.Term, body.Definition)
		s.respond(w, r, http.StatusOK, term, err)
	case http.MethodDelete:
		if !s.allow(w, p, rbac.ActionWrite) {
			return
		}
		result, err := s.service.DeleteTerm(r.Context(), p, termID)
		s.respond(w, r, http.StatusOK, result, err)
	default:
		methodNotAllowed(w)
	}
}

// /api/policies/{id}[/terms]
func (s *HTTPServer) handlePolicies(w http.ResponseWriter, r *http.Request, p Principal, parts []string) {
	ctx := r.Context()
	if len(parts) == 3 {
		policyID := parts[2]
		switch r.Method {
		case http.MethodPut:
			if !s.allow(w, p, rbac.ActionWrite) {
				return
			}
			var body policyBody
			if !readBody(w, r, &body) {
				return
			}
			policy, err := s.service.UpdatePolicy(ctx, p, policyID, body.Title, body.Content)
			s.respond(w, r, http.StatusOK, policy, err)
		case http.MethodDelete:
			if !s.allow(w, p, rbac.ActionWrite) {
				return
			}
			result, err := s.service.DeletePolicy(ctx, p, policyID)
			s.respond(w, r, http.StatusOK, result, err)
		default:
			methodNotAllowed(w)
		}
		return
	}
	if len(parts) == 4 && parts[3] == "terms" {
		policyID := parts[2]
		switch r.Method {
		case http.MethodGet:
			if !s.allow(w, p, rbac.ActionRead) {
				return
			}
			items, err := s.service.ListPolicyTerms(ctx, p, policyID)
			s.respond(w, r, http.StatusOK, listPayload(items), err)
		case http.MethodPost:
			if !s.allow(w, p, rbac.ActionWrite) {
				return
			}
			var body struct {
				TermID string `json:"termId"`
			}
			if !readBody(w, r, &body) {
				return
			}
			link, err := s.service.LinkTerm(ctx, p, policyID, body.TermID)
			s.respond(w, r, http.StatusCreated, link, err)
		case http.MethodDelete:
			if !s.allow(w, p, rbac.ActionWrite) {
				return
			}
			termID := strings.TrimSpace(r.URL.Query().Get("termId"))
			err := s.service.UnlinkTerm(ctx, p, policyID, termID)
			s.respond(w, r, http.StatusOK, map[string]any{"ok": true}, err)
		default:
			methodNotAllowed(w)
		}
		return
	}
	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

// /api/scopes/{kind}/{scopeId}[/reorder|/repair]
func (s *HTTPServer) handleScopes(w http.ResponseWriter, r *http.Request, p Principal, parts []string) {
	ctx := r.Context()
	if len(parts) == 4 {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		if !s.allow(w, p, rbac.ActionRead) {
			return
		}
		items, err := s.service.ListScope(ctx, p, parts[2], parts[3], strings.TrimSpace(r.URL.Query().Get("sort")))
		s.respond(w, r, http.StatusOK, listPayload(items), err)
		return
	}
	if len(parts) != 5 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	kind, scopeID := parts[2], parts[3]
	switch parts[4] {
	case "reorder":
		if !s.allow(w, p, rbac.ActionWrite) {
			return
		}
		var body struct {
			ItemID   string `json:"itemId"`
			NewIndex *int   `json:"newIndex"`
		}
		if !readBody(w, r, &body) {
			return
		}
		if body.NewIndex == nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "newIndex is required", nil)
			return
		}
		result, err := s.service.Reorder(ctx, p, kind, scopeID, body.ItemID, *body.NewIndex)
		s.respond(w, r, http.StatusOK, result, err)
	case "repair":
		if !s.allow(w, p, rbac.ActionAdmin) {
			return
		}
		result, err := s.service.Repair(ctx, p, kind, scopeID)
		s.respond(w, r, http.StatusOK, result, err)
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

type nameBody struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type termBody struct {
	Term       string `json:"term"`
	Definition string `json:"definition"`
}

type policyBody struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type featureBody struct {
	Name               string `json:"name"`
	Description        string `json:"description"`
	AcceptanceCriteria string `json:"acceptanceCriteria"`
}

func listPayload[T any](items []T) map[string]any {
	if items == nil {
		items = []T{}
	}
	return map[string]any{"items": items}
}

// respond writes payload on success, or the mapped error.
func (s *HTTPServer) respond(w http.ResponseWriter, r *http.Request, status int, payload any, err error) {
	if err != nil {
		code, errCode, message, details := mapError(err)
		if code >= http.StatusInternalServerError {
			s.logger.Error("request failed",
				slog.String("request_id", requestID(r.Context())),
				slog.String("path", r.URL.Path),
				slog.String("error", err.Error()))
		}
		writeError(w, code, errCode, message, details)
		return
	}
	writeJSON(w, status, payload)
}

func (s *HTTPServer) allow(w http.ResponseWriter, p Principal, action rbac.Action) bool {
	if !s.service.Can(p, action) {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
		return false
	}
	return true
}

func (s *HTTPServer) requirePrincipal(w http.ResponseWriter, r *http.Request) (Principal, bool) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return Principal{}, false
	}
	principal, err := s.service.Authenticate(token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return Principal{}, false
	}
	return principal, true
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", reqID)

		next.ServeHTTP(writer, r)

		s.logger.Info("request",
			slog.String("request_id", reqID),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", writer.status),
			slog.Int64("duration_ms", time.Since(started).Milliseconds()),
		)
	})
}

type requestIDKey struct{}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
}

func notAllowed(w http.ResponseWriter, parts []string, maxLen int) {
	if len(parts) > maxLen {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	methodNotAllowed(w)
}

// readBody decodes the JSON body into target, answering 400 itself when it
// cannot.
func readBody(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := decodeBody(r, target); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return false
	}
	return true
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func intParam(w http.ResponseWriter, raw, name string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, true
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", name+" must be an integer", nil)
		return 0, false
	}
	return parsed, true
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}
