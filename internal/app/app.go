package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"
	"msgsort/internal/admincmd"
	"msgsort/internal/config"
	"msgsort/internal/metrics"
	"msgsort/internal/services"
	"msgsort/internal/store"
	"msgsort/internal/store/primary"
	"msgsort/internal/store/sqlite"
	"msgsort/pkg/categorizer"
)

type App struct {
	Config    *config.Config
	Store     store.Store
	JobClient store.JobClient // nil when no Redis address is configured
	Metrics   *metrics.Recorder

	Registry    *categorizer.Registry
	Categorizer *categorizer.Categorizer

	// --- Initialized Services ---
	CategoryService *services.CategoryService
	MessageService  *services.MessageService
	StatsService    *services.StatsService
	ExportService   *services.ExportService
	Commands        *admincmd.Executor
}

// NewApp opens the configured store, applies the schema, connects the job
// client and loads the category registry.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	st, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}

	var jc store.JobClient
	if cfg.Redis.Address != "" {
		jc, err = store.NewAsynqJobClient(RedisOpt(cfg))
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("init job client: %w", err)
		}
	}

	a, err := NewWithStore(ctx, cfg, st, jc, metrics.New(nil))
	if err != nil {
		if jc != nil {
			_ = jc.Close()
		}
		st.Close()
		return nil, err
	}
	log.Info("Application initialization complete.")
	return a, nil
}

// NewWithStore wires the services around an already opened store.
func NewWithStore(ctx context.Context, cfg *config.Config, st store.Store, jc store.JobClient, m *metrics.Recorder) (*App, error) {
	c, err := categorizer.New(cfg.CategorizerConfig())
	if err != nil {
		return nil, fmt.Errorf("init categorizer: %w", err)
	}

	a := &App{
		Config:      cfg,
		Store:       st,
		JobClient:   jc,
		Metrics:     m,
		Registry:    categorizer.NewRegistry(),
		Categorizer: c,
	}
	a.CategoryService = services.NewCategoryService(st, a.Registry, c.Config().DefaultCategory, m)
	a.CategoryService.SetRefreshInterval(cfg.Categorizer.RefreshInterval)
	a.MessageService = services.NewMessageService(st, a.CategoryService, c, m)
	a.StatsService = services.NewStatsService(st)
	a.ExportService = services.NewExportService(a.CategoryService)
	a.Commands = admincmd.NewExecutor(a.CategoryService, a.StatsService, a.ExportService, m)

	if _, err := a.CategoryService.Load(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

// OpenStore opens the backend selected by database.driver.
func OpenStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Database.Driver {
	case config.DriverSQLite:
		path, err := config.ResolveDataPath(cfg.Database.SQLite.Path, "msgsort.db")
		if err != nil {
			return nil, err
		}
		st, err := sqlite.Open(path)
		if err != nil {
			return nil, fmt.Errorf("init sqlite store: %w", err)
		}
		log.WithField("path", path).Debug("Using SQLite store")
		return st, nil
	case config.DriverPostgres, "":
		ps, err := primary.NewPrimaryStore(ctx, cfg.Database.Primary.DSN)
		if err != nil {
			return nil, fmt.Errorf("init primary store: %w", err)
		}
		return ps, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

func RedisOpt(cfg *config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
}

// Close releases the job client and the store.
func (a *App) Close() error {
	var errs []error
	if a.JobClient != nil {
		if err := a.JobClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close job client: %w", err))
		}
	}
	if a.Store != nil {
		a.Store.Close()
	}
	return errors.Join(errs...)
}
