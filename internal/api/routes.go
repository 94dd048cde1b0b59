package api

import (
	"fmt"
	"net/http"

	"github.com/JaimeStill/covenant/internal/config"
	"github.com/JaimeStill/covenant/pkg/openapi"
	"github.com/JaimeStill/covenant/pkg/routes"
)

func routeGroups(domain *Domain, cfg *config.Config) []routes.Group {
	return []routes.Group{
		domain.Contracts.Handler(domain.Pipeline, cfg.API.MaxUploadSizeBytes()).Routes(),
		domain.Clauses.Handler(domain.Pipeline).Routes(),
		domain.Amendments.Handler(domain.Pipeline).Routes(),
		domain.Analytics.Handler().Routes(),
		domain.Prompts.Handler().Routes(),
	}
}

func registerRoutes(mux *http.ServeMux, domain *Domain, cfg *config.Config) error {
	groups := routeGroups(domain, cfg)
	routes.Register(mux, groups...)

	spec, err := buildSpec(cfg, groups)
	if err != nil {
		return err
	}
	mux.HandleFunc("GET /openapi.json", openapi.ServeSpec(spec))

	return nil
}

// buildSpec renders the OpenAPI document once at startup.
func buildSpec(cfg *config.Config, groups []routes.Group) ([]byte, error) {
	spec := openapi.NewSpec(cfg.API.OpenAPI.Title, cfg.Version)
	spec.SetDescription(cfg.API.OpenAPI.Description)
	spec.AddServer(cfg.API.OpenAPI.Server(cfg.API.BasePath))

	routes.Document(spec, "", groups...)

	data, err := openapi.MarshalJSON(spec)
	if err != nil {
		return nil, fmt.Errorf("marshal openapi spec: %w", err)
	}
	return data, nil
}
