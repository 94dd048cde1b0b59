package clauses

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

// Handler provides HTTP endpoints for clause operations.
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

// NewHandler creates a Handler. Assessment and drafting are delegated to runner.
func NewHandler(
	sys System,
	runner Runner,
	logger *slog.Logger,
	pagination pagination.Config,
) *Handler {
	return &Handler{
		sys:        sys,
		runner:     runner,
		logger:     logger.With("handler", "clauses"),
		pagination: pagination,
	}
}

// Routes returns the route group definition for clause endpoints.
func (h *Handler) Routes() routes.Group {
	idParam := openapi.PathParam("id", "Clause ID")

	return routes.Group{
		Prefix:  "/clauses",
		Tags:    []string{"Clauses"},
		Schemas: schemas,
		Routes: []routes.Route{
			{
				Method: "GET", Pattern: "", Handler: h.List,
				OpenAPI: &openapi.Operation{
					Summary: "List clauses",
					Parameters: openapi.PageParams("Search title and text",
						openapi.QueryParam("contract_id", "string", "Owning contract", false),
						openapi.QueryParam("clause_type", "string", "Clause type", false),
						openapi.QueryParam("risk_level", "string", "Risk level", false),
					),
					Responses: map[int]*openapi.Response{
						200: openapi.ResponseJSON("Clause page", "ClausePage"),
					},
				},
			},
			{
				Method: "GET", Pattern: "/contract/{id}", Handler: h.ByContract,
				OpenAPI: &openapi.Operation{
					Summary:    "List a contract's clauses in document order",
					Parameters: []*openapi.Parameter{openapi.PathParam("id", "Contract ID")},
					Responses: map[int]*openapi.Response{
						200: {
							Description: "Ordered clauses",
							Content: map[string]*openapi.MediaType{
								"application/json": {Schema: &openapi.Schema{Type: "array", Items: openapi.SchemaRef("Clause")}},
							},
						},
					},
				},
			},
			{
				Method: "POST", Pattern: "/contract/{id}/assess-risk", Handler: h.AssessContract,
				OpenAPI: &openapi.Operation{
					Summary:     "Re-assess every clause of an analyzed contract",
					Description: "Clauses whose re-assessment fails keep their stored risk fields.",
					Parameters:  []*openapi.Parameter{openapi.PathParam("id", "Contract ID")},
					Responses: map[int]*openapi.Response{
						200: {
							Description: "Clauses in document order",
							Content: map[string]*openapi.MediaType{
								"application/json": {Schema: &openapi.Schema{Type: "array", Items: openapi.SchemaRef("Clause")}},
							},
						},
						404: openapi.ResponseRef("NotFound"),
						409: openapi.ResponseRef("Conflict"),
					},
				},
			},
			{
				Method: "GET", Pattern: "/{id}", Handler: h.Find,
				OpenAPI: &openapi.Operation{
					Summary:    "Get a clause",
					Parameters: []*openapi.Parameter{idParam},
					Responses: map[int]*openapi.Response{
						200: openapi.ResponseJSON("Clause", "Clause"),
						404: openapi.ResponseRef("NotFound"),
					},
				},
			},
			{
				Method: "POST", Pattern: "/search", Handler: h.Search,
				OpenAPI: &openapi.Operation{
					Summary:     "Search clauses",
					RequestBody: openapi.RequestBodyJSON("ClauseSearch", true),
					Responses: map[int]*openapi.Response{
						200: openapi.ResponseJSON("Clause page", "ClausePage"),
						400: openapi.ResponseRef("BadRequest"),
					},
				},
			},
			{
				Method: "POST", Pattern: "/{id}/assess-risk", Handler: h.AssessRisk,
				OpenAPI: &openapi.Operation{
					Summary:    "Re-assess one clause synchronously",
					Parameters: []*openapi.Parameter{idParam},
					Responses: map[int]*openapi.Response{
						200: openapi.ResponseJSON("Assessed clause", "Clause"),
						404: openapi.ResponseRef("NotFound"),
						409: openapi.ResponseRef("Conflict"),
					},
				},
			},
			{
				Method: "POST", Pattern: "/{id}/amendments", Handler: h.GenerateAmendments,
				OpenAPI: &openapi.Operation{
					Summary:    "Generate draft amendments for one clause",
					Parameters: []*openapi.Parameter{idParam},
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

// List returns a paginated list of clauses with optional query parameter filters.
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

// ByContract returns every clause of a contract ordered by position.
func (h *Handler) ByContract(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	items, err := h.sys.ByContract(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, items)
}

// Find returns a single clause by its UUID path parameter.
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	c, err := h.sys.Find(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, c)
}

// Search accepts a JSON body with pagination and filter criteria and returns matching clauses.
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

// AssessRisk re-scores a clause and returns it with the new risk fields.
func (h *Handler) AssessRisk(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	c, err := h.runner.AssessClause(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, c)
}

// AssessContract re-scores every clause of the contract in the path.
func (h *Handler) AssessContract(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	items, err := h.runner.AssessContract(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, items)
}

// GenerateAmendments drafts amendments for a medium or high risk clause.
func (h *Handler) GenerateAmendments(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	items, err := h.runner.GenerateClauseAmendments(r.Context(), id)
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
