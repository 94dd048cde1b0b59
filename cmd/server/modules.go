package main

import (
	"encoding/json"
	"net/http"

	"github.com/JaimeStill/covenant/internal/api"
	"github.com/JaimeStill/covenant/internal/config"
	"github.com/JaimeStill/covenant/internal/infrastructure"
	"github.com/JaimeStill/covenant/pkg/middleware"
	"github.com/JaimeStill/covenant/pkg/module"
	"github.com/JaimeStill/covenant/web/scalar"
)

// Modules are the prefixed surfaces the router dispatches to.
type Modules []*module.Module

func NewModules(infra *infrastructure.Infrastructure, cfg *config.Config) (Modules, error) {
	apiModule, err := api.NewModule(cfg, infra)
	if err != nil {
		return nil, err
	}

	docs := scalar.NewModule("/scalar", cfg.API.OpenAPI.Title, cfg.API.BasePath+"/openapi.json")
	docs.Use(middleware.Logger(infra.Logger))

	return Modules{apiModule, docs}, nil
}

func (m Modules) Mount(router *module.Router) {
	for _, mod := range m {
		router.Mount(mod)
	}
}

func buildRouter(infra *infrastructure.Infrastructure) *module.Router {
	router := module.NewRouter()

	router.HandleNative("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, map[string]any{"status": "ok"})
	})

	router.HandleNative("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if !infra.Ready() {
			writeStatus(w, http.StatusServiceUnavailable, map[string]any{
				"status":     "not ready",
				"subsystems": infra.Readiness(),
			})
			return
		}
		writeStatus(w, http.StatusOK, map[string]any{"status": "ready"})
	})

	return router
}

func writeStatus(w http.ResponseWriter, status int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
