// Package infrastructure assembles the process-wide dependencies the domain
// systems share.
package infrastructure

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/JaimeStill/covenant/internal/config"
	"github.com/JaimeStill/covenant/pkg/database"
	"github.com/JaimeStill/covenant/pkg/lifecycle"
	"github.com/JaimeStill/covenant/pkg/storage"
)

// Infrastructure is built once per process and handed to every module.
type Infrastructure struct {
	Lifecycle *lifecycle.Coordinator
	Logger    *slog.Logger
	Database  database.System
	Storage   storage.System
}

// New constructs every system without connecting anything. Start registers
// the connection hooks.
func New(cfg *config.Config) (*Infrastructure, error) {
	logger := cfg.Logging.NewLogger(os.Stderr).With(
		"service", "covenant",
		"version", cfg.Version,
	)

	db, err := database.New(&cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	store, err := storage.New(&cfg.Storage, logger)
	if err != nil {
		db.Connection().Close()
		return nil, fmt.Errorf("storage: %w", err)
	}

	return &Infrastructure{
		Lifecycle: lifecycle.New(),
		Logger:    logger,
		Database:  db,
		Storage:   store,
	}, nil
}

func (i *Infrastructure) Start() error {
	if err := i.Database.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("start database: %w", err)
	}
	if err := i.Storage.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("start storage: %w", err)
	}
	return nil
}

// Readiness reports each readiness-checked subsystem by name.
func (i *Infrastructure) Readiness() map[string]bool {
	return map[string]bool{
		"lifecycle": i.Lifecycle.Ready(),
		"database":  i.Database.Ready(),
	}
}

// Ready reports whether every subsystem in Readiness is ready.
func (i *Infrastructure) Ready() bool {
	for _, ok := range i.Readiness() {
		if !ok {
			return false
		}
	}
	return true
}
