package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/afero"

	"github.com/conneroisu/pagegen/internal/builder"
	"github.com/conneroisu/pagegen/internal/config"
	"github.com/conneroisu/pagegen/internal/errors"
	"github.com/conneroisu/pagegen/internal/kit"
	"github.com/conneroisu/pagegen/internal/logging"
	"github.com/conneroisu/pagegen/internal/metrics"
	"github.com/conneroisu/pagegen/internal/pages"
)

// project is a loaded configuration with its modules installed.
type project struct {
	config  *config.Config
	logger  logging.Logger
	session *kit.Session
	errors  *errors.ErrorHandler
}

func newLogger(cfg *config.Config) (logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, errors.NewConfigError("log.level", err.Error())
	}
	return logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	}), nil
}

// loadProject reads the configuration and installs the built-in modules
// into a new session on fsys.
func loadProject(ctx context.Context, fsys afero.Fs) (*project, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}

	session := kit.NewSession(cfg, fsys, logger)
	if err := kit.NewModuleManager(session).Install(ctx, pages.Module()); err != nil {
		return nil, err
	}

	return &project{
		config:  cfg,
		logger:  logger,
		session: session,
		errors:  errors.NewErrorHandler(logger),
	}, nil
}

func (p *project) builder(collector *metrics.Collector) (*builder.Builder, error) {
	return builder.New(p.session, collector)
}
