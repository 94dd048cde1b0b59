package analytics

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/JaimeStill/covenant/pkg/handlers"
	"github.com/JaimeStill/covenant/pkg/openapi"
	"github.com/JaimeStill/covenant/pkg/routes"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Handler provides HTTP endpoints for dashboard analytics.
type Handler struct {
	sys    System
	logger *slog.Logger
}

func NewHandler(sys System, logger *slog.Logger) *Handler {
	return &Handler{
		sys:    sys,
		logger: logger.With("handler", "analytics"),
	}
}

// Routes returns the route group definition for analytics endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix:  "/analytics",
		Tags:    []string{"Analytics"},
		Schemas: schemas,
		Routes: []routes.Route{
			{
				Method: "GET", Pattern: "", Handler: h.Analytics,
				OpenAPI: &openapi.Operation{
					Summary: "Dashboard distributions",
					Parameters: []*openapi.Parameter{
						openapi.QueryParam("top", "integer", "Number of high risk clause types to return", false),
					},
					Responses: map[int]*openapi.Response{
						200: openapi.ResponseJSON("Analytics", "Analytics"),
						400: openapi.ResponseRef("BadRequest"),
					},
				},
			},
			{
				Method: "GET", Pattern: "/stats", Handler: h.Stats,
				OpenAPI: &openapi.Operation{
					Summary: "Dashboard counters",
					Responses: map[int]*openapi.Response{
						200: openapi.ResponseJSON("Dashboard stats", "DashboardStats"),
					},
				},
			},
			{
				Method: "GET", Pattern: "/export", Handler: h.Export,
				OpenAPI: &openapi.Operation{
					Summary: "Download analytics as an XLSX workbook",
					Responses: map[int]*openapi.Response{
						200: {
							Description: "XLSX workbook",
							Content: map[string]*openapi.MediaType{
								xlsxContentType: {Schema: &openapi.Schema{Type: "string", Format: "binary"}},
							},
						},
					},
				},
			},
		},
	}
}

func (h *Handler) Analytics(w http.ResponseWriter, r *http.Request) {
	top, err := parseTop(r)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	snap, err := h.sys.Snapshot(r.Context())
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, Compute(snap, top))
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	snap, err := h.sys.Snapshot(r.Context())
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, Stats(snap))
}

func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	top, err := parseTop(r)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	snap, err := h.sys.Snapshot(r.Context())
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	data, err := Export(Compute(snap, top), Stats(snap))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	filename := fmt.Sprintf("covenant-analytics-%s.xlsx", time.Now().UTC().Format("20060102"))

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func parseTop(r *http.Request) (int, error) {
	v := r.URL.Query().Get("top")
	if v == "" {
		return DefaultTop, nil
	}

	top, err := strconv.Atoi(v)
	if err != nil || top < 1 {
		return 0, fmt.Errorf("invalid top %q: must be a positive integer", v)
	}
	return top, nil
}
