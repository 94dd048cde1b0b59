package amendments

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/JaimeStill/covenant/pkg/handlers"
	"github.com/JaimeStill/covenant/pkg/openapi"
	"github.com/JaimeStill/covenant/pkg/pagination"
	"github.com/JaimeStill/covenant/pkg/routes"
)

// Handler provides HTTP endpoints for amendment operations.
type Handler struct {
	sys        System
	runner     Runner
	logger     *slog.Logger
	pagination pagination.Config
}

// SearchRequest combines pagination and filter criteria for the search endpoint.
type SearchRequest struct {
	pagination.PageRequest
	Filters
}

func NewHandler(
	sys System,
	runner Runner,
	logger *slog.Logger,
	pagination pagination.Config,
) *Handler {
	return &Handler{
		sys:        sys,
		runner:     runner,
		logger:     logger.With("handler", "amendments"),
		pagination: pagination,
	}
}

// Routes returns the route group definition for amendment endpoints.
func (h *Handler) Routes() routes.Group {
	idParam := openapi.PathParam("id", "Amendment ID")

	return routes.Group{
		Prefix:  "/amendments",
		Tags:    []string{"Amendments"},
		Schemas: schemas,
		Routes: []routes.Route{
			{
				Method: "GET", Pattern: "", Handler: h.List,
				OpenAPI: &openapi.Operation{
					Summary: "List amendments",
					Parameters: openapi.PageParams("Search proposed text and rationale",
						openapi.QueryParam("contract_id", "string", "Owning contract", false),
						openapi.QueryParam("clause_id", "string", "Amended clause", false),
						openapi.QueryParam("status", "string", "Review status", false),
						openapi.QueryParam("amendment_type", "string", "Amendment type", false),
					),
					Responses: map[int]*openapi.Response{
						200: openapi.ResponseJSON("Amendment page", "AmendmentPage"),
					},
				},
			},
			{
				Method: "GET", Pattern: "/{id}", Handler: h.Find,
				OpenAPI: &openapi.Operation{
					Summary:    "Get an amendment",
					Parameters: []*openapi.Parameter{idParam},
					Responses: map[int]*openapi.Response{
						200: openapi.ResponseJSON("Amendment", "Amendment"),
						404: openapi.ResponseRef("NotFound"),
					},
				},
			},
			{
				Method: "POST", Pattern: "", Handler: h.Create,
				OpenAPI: &openapi.Operation{
					Summary:     "Create a draft amendment",
					RequestBody: openapi.RequestBodyJSON("AmendmentCreate", true),
					Responses: map[int]*openapi.Response{
						201: openapi.ResponseJSON("Created amendment", "Amendment"),
						400: openapi.ResponseRef("BadRequest"),
						404: openapi.ResponseRef("NotFound"),
						422: openapi.ResponseRef("Unprocessable"),
					},
				},
			},
			{
				Method: "POST", Pattern: "/search", Handler: h.Search,
				OpenAPI: &openapi.Operation{
					Summary:     "Search amendments",
					RequestBody: openapi.RequestBodyJSON("AmendmentSearch", true),
					Responses: map[int]*openapi.Response{
						200: openapi.ResponseJSON("Amendment page", "AmendmentPage"),
						400: openapi.ResponseRef("BadRequest"),
					},
				},
			},
			{
				Method: "PATCH", Pattern: "/{id}/status", Handler: h.Transition,
				OpenAPI: &openapi.Operation{
					Summary:     "Move an amendment to a new review status",
					Parameters:  []*openapi.Parameter{idParam},
					RequestBody: openapi.RequestBodyJSON("AmendmentTransition", true),
					Responses: map[int]*openapi.Response{
						200: openapi.ResponseJSON("Updated amendment", "Amendment"),
						400: openapi.ResponseRef("BadRequest"),
						404: openapi.ResponseRef("NotFound"),
						409: openapi.ResponseRef("Conflict"),
					},
				},
			},
			{
				Method: "DELETE", Pattern: "/{id}", Handler: h.Delete,
				OpenAPI: &openapi.Operation{
					Summary:    "Delete a draft or rejected amendment",
					Parameters: []*openapi.Parameter{idParam},
					Responses: map[int]*openapi.Response{
						204: {Description: "Amendment deleted"},
						404: openapi.ResponseRef("NotFound"),
						409: openapi.ResponseRef("Conflict"),
					},
				},
			},
			{
				Method: "POST", Pattern: "/contract/{id}/generate", Handler: h.Generate,
				OpenAPI: &openapi.Operation{
					Summary:    "Generate draft amendments for every eligible clause",
					Parameters: []*openapi.Parameter{openapi.PathParam("id", "Contract ID")},
					Responses: map[int]*openapi.Response{
						201: {
							Description: "Draft amendments",
							Content: map[string]*openapi.MediaType{
								"application/json": {Schema: &openapi.Schema{Type: "array", Items: openapi.SchemaRef("Amendment")}},
							},
						},
						404: openapi.ResponseRef("NotFound"),
						409: openapi.ResponseRef("Conflict"),
						422: openapi.ResponseRef("Unprocessable"),
					},
				},
			},
		},
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)
	filters := FiltersFromQuery(r.URL.Query())

	result, err := h.sys.List(r.Context(), page, filters)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	a, err := h.sys.Find(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, a)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var cmd CreateCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	if cmd.ContractID == uuid.Nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("%w: contract_id is required", ErrInvalidAmendment))
		return
	}

	a, err := h.sys.Create(r.Context(), cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, a)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	req.PageRequest.Normalize(h.pagination)

	result, err := h.sys.List(r.Context(), req.PageRequest, req.Filters)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// Transition applies a review decision. Illegal moves return 409 and leave
// the amendment unchanged.
func (h *Handler) Transition(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var cmd TransitionCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	a, err := h.sys.Transition(r.Context(), id, cmd.Status)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, a)
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

// Generate drafts amendments for every medium or high risk clause of a contract.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	items, err := h.runner.GenerateAmendments(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, items)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("invalid id: %w", err))
		return uuid.Nil, false
	}
	return id, true
}
