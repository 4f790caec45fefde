package container

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garyjia/tripflow/internal/application/dispatcher"
	"github.com/garyjia/tripflow/internal/application/port"
	"github.com/garyjia/tripflow/internal/application/service"
	"github.com/garyjia/tripflow/internal/domain/event"
	"github.com/garyjia/tripflow/internal/domain/workflow"
	"github.com/garyjia/tripflow/internal/infrastructure/export"
	"github.com/garyjia/tripflow/internal/infrastructure/persistence/repository"
	"github.com/garyjia/tripflow/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/tripflow/internal/infrastructure/worker"
	"github.com/garyjia/tripflow/migrations"
	"github.com/garyjia/tripflow/pkg/database"
	"go.uber.org/zap"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	SqlDB          *sql.DB
	TransactionMgr *sqlite.DB
}

// ProvideDatabase opens the SQLite pool, applies pending migrations and wraps the
// pool in the transaction manager.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		BusyTimeout:     cfg.BusyTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}

	migrator := database.NewMigrator(db, logger)
	if cfg.MigrationsDir != "" {
		err = migrator.RunMigrationsFromDir(cfg.MigrationsDir)
	} else {
		err = migrator.RunMigrations(migrations.FS)
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		SqlDB:          db.DB,
		TransactionMgr: sqlite.NewDB(db.DB, logger, sqlite.WithMaxRetries(cfg.MaxRetries)),
	}, nil
}

// ProvideRepositories creates all repositories from a database connection.
func ProvideRepositories(sqlDB *sql.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if sqlDB == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		User:          repository.NewUserRepository(sqlDB, logger),
		Department:    repository.NewDepartmentRepository(sqlDB, logger),
		Project:       repository.NewProjectRepository(sqlDB, logger),
		Trip:          repository.NewTripRepository(sqlDB, logger),
		AdminRequest:  repository.NewAdminRequestRepository(sqlDB, logger),
		WorkflowStep:  repository.NewWorkflowStepRepository(sqlDB, logger),
		StatusHistory: repository.NewStatusHistoryRepository(sqlDB, logger),
		BudgetHistory: repository.NewBudgetHistoryRepository(sqlDB, logger),
		Audit:         repository.NewAuditRepository(sqlDB, logger),
		Rate:          repository.NewRateRepository(sqlDB, logger),
		Delegation:    repository.NewDelegationRepository(sqlDB, logger),
	}, nil
}

// ServiceDeps holds dependencies for creating services.
type ServiceDeps struct {
	Repos     *RepositoryBundle
	TxManager port.TransactionManager
	Distance  port.DistanceResolver
	Events    port.EventPublisher
	Workflow  WorkflowConfig
	Budget    BudgetConfig
	Clock     service.Clock
	Logger    *zap.Logger
}

// ProvideServices creates all application services.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}
	if deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.TxManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	logger := &zapLoggerAdapter{logger: deps.Logger}
	repos := deps.Repos
	tripRepos := service.TripRepositories{
		Users:       repos.User,
		Departments: repos.Department,
		Projects:    repos.Project,
		Trips:       repos.Trip,
		Steps:       repos.WorkflowStep,
		Statuses:    repos.StatusHistory,
		Rates:       repos.Rate,
		Delegations: repos.Delegation,
		Events:      deps.Events,
	}

	audit := service.NewAuditService(repos.Audit, deps.Clock, logger)
	exporter := export.NewLedgerExcel(deps.Budget.CurrencyPlaces, deps.Logger)
	ledger := service.NewLedgerService(
		repos.Department,
		repos.Project,
		repos.Trip,
		repos.BudgetHistory,
		audit,
		exporter,
		deps.TxManager,
		deps.Clock,
		logger,
	)

	options := workflow.GeneratorOptions{
		UrgentAdminReview: deps.Workflow.UrgentAdminReview,
		AdminReviewerID:   deps.Workflow.AdminReviewerID,
	}

	return &ServiceBundle{
		Audit:        audit,
		Ledger:       ledger,
		Trip:         service.NewTripService(tripRepos, ledger, audit, deps.Distance, deps.TxManager, options, deps.Clock, logger),
		Approval:     service.NewApprovalService(tripRepos, ledger, audit, deps.TxManager, deps.Clock, logger),
		AdminRequest: service.NewAdminRequestService(tripRepos, repos.AdminRequest, ledger, audit, deps.TxManager, deps.Clock, logger),
		Org:          service.NewOrgService(tripRepos, ledger, audit, deps.TxManager, deps.Clock, logger),
	}, nil
}

// ProvideDispatcher creates the domain event dispatcher with an event-log subscriber on every type.
func ProvideDispatcher(logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	d := dispatcher.NewDispatcher(dispatcher.WithLogger(&zapLoggerAdapter{logger: logger}))

	eventLog := logger.Named("events")
	for _, t := range event.AllTypes() {
		d.Subscribe(t, "event-log", func(ctx context.Context, evt *event.Event) error {
			eventLog.Info("Domain event",
				zap.String("event_type", evt.Type.String()),
				zap.String("event_id", evt.ID),
				zap.Int64("request_id", evt.RequestID),
				zap.Int64("actor_id", evt.ActorID),
				zap.Any("payload", evt.Payload))
			return nil
		})
	}
	return d, nil
}

// ProvideWorkers creates the worker manager and registers the workers enabled by config.
func ProvideWorkers(services *ServiceBundle, cfg *BudgetConfig, logger *zap.Logger) (*worker.WorkerManager, error) {
	if services == nil {
		return nil, fmt.Errorf("services are required")
	}
	if cfg == nil {
		return nil, fmt.Errorf("budget config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	manager := worker.NewWorkerManager(logger)

	if cfg.SystemActorID > 0 {
		manager.Register(worker.NewBonusResetWorker(worker.BonusResetWorkerConfig{
			Interval: cfg.BonusResetInterval,
			ActorID:  cfg.SystemActorID,
		}, services.Ledger, logger))
	} else {
		logger.Info("Bonus reset worker disabled, budget.system_actor_id not set")
	}

	return manager, nil
}
