package contracts

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/JaimeStill/covenant/internal/normalize"
	"github.com/JaimeStill/covenant/pkg/formatting"
	"github.com/JaimeStill/covenant/pkg/handlers"
	"github.com/JaimeStill/covenant/pkg/openapi"
	"github.com/JaimeStill/covenant/pkg/pagination"
	"github.com/JaimeStill/covenant/pkg/routes"
)

// Handler provides HTTP endpoints for contract operations.
type Handler struct {
	sys           System
	runner        Runner
	logger        *slog.Logger
	pagination    pagination.Config
	maxUploadSize int64
}

// SearchRequest combines pagination and filter criteria for the search endpoint.
type SearchRequest struct {
	pagination.PageRequest
	Filters
}

// NewHandler creates a Handler. Upload, analyze and cancel are delegated to runner.
func NewHandler(
	sys System,
	runner Runner,
	logger *slog.Logger,
	pagination pagination.Config,
	maxUploadSize int64,
) *Handler {
	return &Handler{
		sys:           sys,
		runner:        runner,
		logger:        logger.With("handler", "contracts"),
		pagination:    pagination,
		maxUploadSize: maxUploadSize,
	}
}

// Routes returns the route group definition for contract endpoints.
func (h *Handler) Routes() routes.Group {
	idParam := openapi.PathParam("id", "Contract ID")

	return routes.Group{
		Prefix:  "/contracts",
		Tags:    []string{"Contracts"},
		Schemas: schemas,
		Routes: []routes.Route{
			{
				Method: "GET", Pattern: "", Handler: h.List,
				OpenAPI: &openapi.Operation{
					Summary: "List contracts",
					Parameters: openapi.PageParams("Search filename, title and summary",
						openapi.QueryParam("status", "string", "Pipeline status", false),
						openapi.QueryParam("contract_type", "string", "Contract type", false),
						openapi.QueryParam("filename", "string", "Filename contains", false),
						openapi.QueryParam("risk_score", "string", "Derived risk level", false),
					),
					Responses: map[int]*openapi.Response{
						200: openapi.ResponseJSON("Contract page", "ContractPage"),
					},
				},
			},
			{
				Method: "GET", Pattern: "/{id}", Handler: h.Find,
				OpenAPI: &openapi.Operation{
					Summary:    "Get a contract with derived risk",
					Parameters: []*openapi.Parameter{idParam},
					Responses: map[int]*openapi.Response{
						200: openapi.ResponseJSON("Contract", "Contract"),
						404: openapi.ResponseRef("NotFound"),
					},
				},
			},
			{
				Method: "GET", Pattern: "/{id}/text", Handler: h.Text,
				OpenAPI: &openapi.Operation{
					Summary:    "Get the normalized text cache",
					Parameters: []*openapi.Parameter{idParam},
					Responses: map[int]*openapi.Response{
						200: openapi.ResponseJSON("Normalized text", "NormalizedText"),
						404: openapi.ResponseRef("NotFound"),
					},
				},
			},
			{
				Method: "GET", Pattern: "/{id}/source", Handler: h.Source,
				OpenAPI: &openapi.Operation{
					Summary:    "Download the uploaded document",
					Parameters: []*openapi.Parameter{idParam},
					Responses: map[int]*openapi.Response{
						200: {Description: "Original document bytes in the stored media type"},
						404: openapi.ResponseRef("NotFound"),
					},
				},
			},
			{
				Method: "POST", Pattern: "", Handler: h.Upload,
				OpenAPI: &openapi.Operation{
					Summary:     "Upload a contract and start analysis",
					RequestBody: uploadBody,
					Responses: map[int]*openapi.Response{
						202: openapi.ResponseJSON("Contract accepted", "Contract"),
						400: openapi.ResponseRef("BadRequest"),
						413: openapi.ResponseRef("PayloadTooLarge"),
						415: openapi.ResponseRef("UnsupportedMediaType"),
					},
				},
			},
			{
				Method: "POST", Pattern: "/search", Handler: h.Search,
				OpenAPI: &openapi.Operation{
					Summary:     "Search contracts",
					RequestBody: openapi.RequestBodyJSON("ContractSearch", true),
					Responses: map[int]*openapi.Response{
						200: openapi.ResponseJSON("Contract page", "ContractPage"),
						400: openapi.ResponseRef("BadRequest"),
					},
				},
			},
			{
				Method: "POST", Pattern: "/{id}/analyze", Handler: h.Analyze,
				OpenAPI: &openapi.Operation{
					Summary:    "Re-trigger the pipeline from the current status",
					Parameters: []*openapi.Parameter{idParam},
					Responses: map[int]*openapi.Response{
						202: openapi.ResponseJSON("Contract accepted", "Contract"),
						404: openapi.ResponseRef("NotFound"),
						409: openapi.ResponseRef("Conflict"),
					},
				},
			},
			{
				Method: "POST", Pattern: "/{id}/cancel", Handler: h.Cancel,
				OpenAPI: &openapi.Operation{
					Summary:    "Cancel the pipeline at the next stage boundary",
					Parameters: []*openapi.Parameter{idParam},
					Responses: map[int]*openapi.Response{
						202: openapi.ResponseJSON("Cancellation accepted", "Contract"),
						404: openapi.ResponseRef("NotFound"),
						409: openapi.ResponseRef("Conflict"),
					},
				},
			},
		},
	}
}

// List returns a paginated list of contracts with optional query parameter filters.
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

// Find returns a single contract by its UUID path parameter.
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

// Text returns the normalized text cache and page markers.
func (h *Handler) Text(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	doc, err := h.sys.Text(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, doc)
}

// Source streams the uploaded document as an attachment.
func (h *Handler) Source(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	blob, c, err := h.sys.Source(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	defer blob.Close()

	w.Header().Set("Content-Type", c.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": c.Filename}))
	w.Header().Set("Content-Length", strconv.FormatInt(c.SizeBytes, 10))
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, blob); err != nil {
		h.logger.Warn("source stream interrupted", "id", id, "error", err)
	}
}

// Search accepts a JSON body with pagination and filter criteria and returns matching contracts.
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

// Upload accepts a multipart form with a file and optional title and
// contract_type. The contract is created in uploaded status and analysis
// starts in the background.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		handlers.RespondError(w, h.logger, http.StatusRequestEntityTooLarge,
			fmt.Errorf("%w: limit is %s", ErrFileTooLarge, formatting.FormatBytes(h.maxUploadSize, 1)))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("%w: missing file field", ErrInvalidFile))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidFile)
		return
	}
	if len(data) == 0 {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("%w: empty file", ErrInvalidFile))
		return
	}

	mediaType := normalize.ResolveMediaType(header.Header.Get("Content-Type"), header.Filename, data)
	if !normalize.Supported(mediaType) {
		err := fmt.Errorf("%w: %s", normalize.ErrUnsupportedFormat, mediaType)
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	cmd := CreateCommand{
		Data:         data,
		Filename:     header.Filename,
		ContentType:  mediaType,
		Title:        strings.TrimSpace(r.FormValue("title")),
		ContractType: strings.TrimSpace(r.FormValue("contract_type")),
	}

	c, err := h.runner.Submit(r.Context(), cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusAccepted, c)
}

// Analyze re-triggers the pipeline from the contract's current status.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	c, err := h.runner.Analyze(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusAccepted, c)
}

// Cancel requests cancellation of the contract's pipeline run.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	c, err := h.runner.Cancel(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusAccepted, c)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("invalid contract id: %w", err))
		return uuid.Nil, false
	}
	return id, true
}
