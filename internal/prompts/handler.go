package prompts

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/JaimeStill/covenant/pkg/handlers"
	"github.com/JaimeStill/covenant/pkg/openapi"
	"github.com/JaimeStill/covenant/pkg/pagination"
	"github.com/JaimeStill/covenant/pkg/routes"
)

// Handler provides HTTP endpoints for prompt operations.
type Handler struct {
	sys        System
	logger     *slog.Logger
	pagination pagination.Config
}

// SearchRequest combines pagination and filter criteria for the search endpoint.
type SearchRequest struct {
	pagination.PageRequest
	Filters
}

// StageContent is the body of the per-stage instruction and spec endpoints.
// PromptID names the active override that supplied Content, if any.
type StageContent struct {
	Stage    Stage      `json:"stage"`
	Content  string     `json:"content"`
	PromptID *uuid.UUID `json:"prompt_id,omitempty"`
}

// NewHandler creates a Handler with the given system, logger, and pagination config.
func NewHandler(
	sys System,
	logger *slog.Logger,
	pagination pagination.Config,
) *Handler {
	return &Handler{
		sys:        sys,
		logger:     logger.With("handler", "prompts"),
		pagination: pagination,
	}
}

// Routes returns the route group definition for prompt endpoints.
func (h *Handler) Routes() routes.Group {
	idParam := openapi.PathParam("id", "Prompt ID")
	stageParam := openapi.EnumPathParam("stage", "Capability stage", stageEnum...)

	return routes.Group{
		Prefix:  "/prompts",
		Tags:    []string{"Prompts"},
		Schemas: schemas,
		Routes: []routes.Route{
			{
				Method: "GET", Pattern: "", Handler: h.List,
				OpenAPI: &openapi.Operation{
					Summary: "List prompt overrides",
					Parameters: openapi.PageParams("Search name and description",
						openapi.QueryParam("stage", "string", "Capability stage", false),
						openapi.QueryParam("name", "string", "Name contains", false),
						openapi.QueryParam("active", "boolean", "Active flag", false),
					),
					Responses: map[int]*openapi.Response{
						200: openapi.ResponseJSON("Prompt page", "PromptPage"),
					},
				},
			},
			{
				Method: "GET", Pattern: "/stages", Handler: h.Stages,
				OpenAPI: &openapi.Operation{
					Summary: "List capability stages",
					Responses: map[int]*openapi.Response{
						200: {Description: "Stage names"},
					},
				},
			},
			{
				Method: "GET", Pattern: "/{id}", Handler: h.Find,
				OpenAPI: &openapi.Operation{
					Summary:    "Get a prompt override",
					Parameters: []*openapi.Parameter{idParam},
					Responses: map[int]*openapi.Response{
						200: openapi.ResponseJSON("Prompt", "Prompt"),
						404: openapi.ResponseRef("NotFound"),
					},
				},
			},
			{
				Method: "GET", Pattern: "/{stage}/instructions", Handler: h.Instructions,
				OpenAPI: &openapi.Operation{
					Summary:    "Get the effective instructions for a stage",
					Parameters: []*openapi.Parameter{stageParam},
					Responses: map[int]*openapi.Response{
						200: openapi.ResponseJSON("Stage instructions", "StageContent"),
						400: openapi.ResponseRef("BadRequest"),
					},
				},
			},
			{
				Method: "GET", Pattern: "/{stage}/spec", Handler: h.Spec,
				OpenAPI: &openapi.Operation{
					Summary:    "Get the fixed output specification for a stage",
					Parameters: []*openapi.Parameter{stageParam},
					Responses: map[int]*openapi.Response{
						200: openapi.ResponseJSON("Stage output specification", "StageContent"),
						400: openapi.ResponseRef("BadRequest"),
					},
				},
			},
			{
				Method: "POST", Pattern: "", Handler: h.Create,
				OpenAPI: &openapi.Operation{
					Summary:     "Create a prompt override",
					RequestBody: openapi.RequestBodyJSON("PromptCommand", true),
					Responses: map[int]*openapi.Response{
						201: openapi.ResponseJSON("Prompt created", "Prompt"),
						400: openapi.ResponseRef("BadRequest"),
						409: openapi.ResponseRef("Conflict"),
					},
				},
			},
			{
				Method: "PUT", Pattern: "/{id}", Handler: h.Update,
				OpenAPI: &openapi.Operation{
					Summary:     "Update a prompt override",
					Parameters:  []*openapi.Parameter{idParam},
					RequestBody: openapi.RequestBodyJSON("PromptCommand", true),
					Responses: map[int]*openapi.Response{
						200: openapi.ResponseJSON("Prompt updated", "Prompt"),
						400: openapi.ResponseRef("BadRequest"),
						404: openapi.ResponseRef("NotFound"),
						409: openapi.ResponseRef("Conflict"),
					},
				},
			},
			{
				Method: "DELETE", Pattern: "/{id}", Handler: h.Delete,
				OpenAPI: &openapi.Operation{
					Summary:    "Delete a prompt override",
					Parameters: []*openapi.Parameter{idParam},
					Responses: map[int]*openapi.Response{
						204: {Description: "Prompt deleted"},
						404: openapi.ResponseRef("NotFound"),
					},
				},
			},
			{
				Method: "POST", Pattern: "/search", Handler: h.Search,
				OpenAPI: &openapi.Operation{
					Summary:     "Search prompt overrides",
					RequestBody: openapi.RequestBodyJSON("PromptSearch", true),
					Responses: map[int]*openapi.Response{
						200: openapi.ResponseJSON("Prompt page", "PromptPage"),
						400: openapi.ResponseRef("BadRequest"),
					},
				},
			},
			{
				Method: "POST", Pattern: "/{id}/activate", Handler: h.Activate,
				OpenAPI: &openapi.Operation{
					Summary:    "Make a prompt the active override for its stage",
					Parameters: []*openapi.Parameter{idParam},
					Responses: map[int]*openapi.Response{
						200: openapi.ResponseJSON("Prompt activated", "Prompt"),
						404: openapi.ResponseRef("NotFound"),
					},
				},
			},
			{
				Method: "POST", Pattern: "/{id}/deactivate", Handler: h.Deactivate,
				OpenAPI: &openapi.Operation{
					Summary:    "Fall back to the built-in instructions for the prompt's stage",
					Parameters: []*openapi.Parameter{idParam},
					Responses: map[int]*openapi.Response{
						200: openapi.ResponseJSON("Prompt deactivated", "Prompt"),
						404: openapi.ResponseRef("NotFound"),
					},
				},
			},
		},
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)
	h.list(w, r, page, FiltersFromQuery(r.URL.Query()))
}

// Search takes paging and filters as a JSON body instead of the query string.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	req.PageRequest.Normalize(h.pagination)
	h.list(w, r, req.PageRequest, req.Filters)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, page pagination.PageRequest, filters Filters) {
	result, err := h.sys.List(r.Context(), page, filters)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, result)
}

func (h *Handler) Stages(w http.ResponseWriter, r *http.Request) {
	handlers.RespondJSON(w, http.StatusOK, Stages())
}

func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	h.respond(w, http.StatusOK)(h.sys.Find(r.Context(), id))
}

// Instructions reports the effective instructions for a stage and, when an
// override is active, which prompt supplied them.
func (h *Handler) Instructions(w http.ResponseWriter, r *http.Request) {
	stage, ok := h.pathStage(w, r)
	if !ok {
		return
	}

	content := StageContent{Stage: stage}

	active, err := h.sys.Active(r.Context(), stage)
	switch {
	case err == nil:
		content.Content = active.Instructions
		content.PromptID = &active.ID
	case errors.Is(err, ErrNotFound):
		content.Content, err = DefaultInstructions(stage)
		if err != nil {
			handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
			return
		}
	default:
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, content)
}

// Spec reports the output specification appended to every call for a stage.
func (h *Handler) Spec(w http.ResponseWriter, r *http.Request) {
	stage, ok := h.pathStage(w, r)
	if !ok {
		return
	}

	text, err := h.sys.Spec(r.Context(), stage)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, StageContent{Stage: stage, Content: text})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var cmd CreateCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}
	h.respond(w, http.StatusCreated)(h.sys.Create(r.Context(), cmd))
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var cmd UpdateCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}
	h.respond(w, http.StatusOK)(h.sys.Update(r.Context(), id, cmd))
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	if err := h.sys.Delete(r.Context(), id); err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Activate makes the prompt its stage's override, replacing any other.
func (h *Handler) Activate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	h.respond(w, http.StatusOK)(h.sys.Activate(r.Context(), id))
}

// Deactivate returns the prompt's stage to its built-in instructions.
func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	h.respond(w, http.StatusOK)(h.sys.Deactivate(r.Context(), id))
}

// respond writes the prompt with status, or the mapped error.
func (h *Handler) respond(w http.ResponseWriter, status int) func(*Prompt, error) {
	return func(p *Prompt, err error) {
		if err != nil {
			handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
			return
		}
		handlers.RespondJSON(w, status, p)
	}
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("invalid prompt id: %w", err))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) pathStage(w http.ResponseWriter, r *http.Request) (Stage, bool) {
	stage, err := ParseStage(r.PathValue("stage"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return "", false
	}
	return stage, true
}
