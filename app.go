package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/cleanlist/pkg/config"
	"github.com/ekaya-inc/cleanlist/pkg/database"
	"github.com/ekaya-inc/cleanlist/pkg/logging"
	"github.com/ekaya-inc/cleanlist/pkg/models"
	"github.com/ekaya-inc/cleanlist/pkg/repositories"
	"github.com/ekaya-inc/cleanlist/pkg/services"
	"github.com/ekaya-inc/cleanlist/pkg/verification"
)

// app holds the components shared by the serve and process commands.
type app struct {
	schema    *models.TargetSchema
	pipeline  *services.Pipeline
	templates *services.TemplateService
	closers   []func()
}

// newApp loads the schema and wires the pipeline and template store.
// A missing or degenerate schema is fatal.
func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	registry, err := services.LoadSchemaRegistry(cfg.SchemaPath)
	if err != nil {
		return nil, err
	}
	schema := registry.Schema()

	client := verification.NewClient(cfg.Verification.BaseURL, cfg.Verification.Timeout, logger)
	pool := services.NewWorkerPool(services.WorkerPoolConfig{MaxConcurrent: cfg.Verification.MaxConcurrent}, logger)
	validator := services.NewEmailValidator(client, pool,
		services.ValidatorOptions{PrecheckFormat: cfg.Verification.PrecheckFormat}, logger)
	pipeline := services.NewPipeline(schema, services.NewDataLoader(logger), validator, cfg.Verification.APIKey, logger)

	repo, closeRepo, err := openTemplateRepository(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("schema", cfg.SchemaPath),
		zap.Strings("fields", schema.Names()),
		zap.String("identifier", schema.IdentifierField),
		zap.String("template_driver", cfg.Templates.Driver),
		zap.String("verification_url", cfg.Verification.BaseURL),
		zap.Bool("default_api_key", cfg.Verification.APIKey != ""),
		zap.String("version", cfg.Version))

	return &app{
		schema:    schema,
		pipeline:  pipeline,
		templates: services.NewTemplateService(repo, logger),
		closers:   []func(){closeRepo},
	}, nil
}

// Close releases the template store.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// openTemplateRepository opens the store selected by templates.driver and
// applies migrations for the SQL drivers.
func openTemplateRepository(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repositories.TemplateRepository, func(), error) {
	switch cfg.Templates.Driver {
	case config.TemplateDriverPostgres:
		migrationDB, err := sqlOpenPostgres(cfg.Database.URL())
		if err != nil {
			return nil, nil, err
		}
		if err := database.RunMigrations(migrationDB, database.DialectPostgres, cfg.Templates.MigrationsPath, logger); err != nil {
			return nil, nil, err
		}

		db, err := database.NewConnection(ctx, &database.Config{
			URL:            cfg.Database.URL(),
			MaxConnections: cfg.Database.MaxConnections,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("template store: %s", logging.SanitizeError(err))
		}
		return repositories.NewPostgresTemplateRepository(db), db.Close, nil

	case config.TemplateDriverSQLite:
		migrationDB, err := database.OpenSQLite(ctx, cfg.Templates.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		if err := database.RunMigrations(migrationDB, database.DialectSQLite, cfg.Templates.MigrationsPath, logger); err != nil {
			return nil, nil, err
		}

		db, err := database.OpenSQLite(ctx, cfg.Templates.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return repositories.NewSQLiteTemplateRepository(db), func() { _ = db.Close() }, nil

	case config.TemplateDriverRedis:
		client, err := database.NewRedisClient(ctx, &cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		return repositories.NewRedisTemplateRepository(client, cfg.Redis.Key), func() { _ = client.Close() }, nil

	default:
		return repositories.NewFileTemplateRepository(cfg.Templates.Dir, logger), func() {}, nil
	}
}
