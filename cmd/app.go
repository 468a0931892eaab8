package cmd

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/hse-inspection/internal"
	"github.com/frahmantamala/hse-inspection/internal/audit"
	"github.com/frahmantamala/hse-inspection/internal/auth"
	collectionDatamodel "github.com/frahmantamala/hse-inspection/internal/core/datamodel/collection"
	"github.com/frahmantamala/hse-inspection/internal/inspection"
	"github.com/frahmantamala/hse-inspection/internal/notification"
	"github.com/frahmantamala/hse-inspection/internal/pin"
	"github.com/frahmantamala/hse-inspection/internal/store"
	storePostgres "github.com/frahmantamala/hse-inspection/internal/store/postgres"
	"github.com/frahmantamala/hse-inspection/internal/user"
	"github.com/frahmantamala/hse-inspection/pkg/logger"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// Dependencies holds the services every command builds on.
type Dependencies struct {
	Config        *internal.Config
	Logger        *slog.Logger
	Registry      *prometheus.Registry
	Store         *store.Store
	Audit         *audit.Service
	Users         *user.Service
	Tokens        *auth.JWTTokenGenerator
	AuthMetrics   *auth.Metrics
	Auth          *auth.Service
	Notifications *notification.Service
	Inspections   *inspection.Service

	closers []func() error
}

func (d *Dependencies) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func initializeDependencies(cfg *internal.Config) (*Dependencies, error) {
	logger.Init(cfg.Observability.Logging.Format, cfg.Observability.Logging.Level)
	lg := logger.LoggerWrapper()

	deps := &Dependencies{
		Config:   cfg,
		Logger:   lg,
		Registry: prometheus.NewRegistry(),
	}
	deps.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	backend, closeDB, err := openBackend(cfg.Database, lg)
	if err != nil {
		return nil, err
	}
	deps.closers = append(deps.closers, closeDB)
	deps.Store = store.New(backend)

	hasher, err := pin.NewHasher(cfg.Security.PINHashScheme, cfg.Security.BCryptCost)
	if err != nil {
		_ = deps.Close()
		return nil, fmt.Errorf("failed to build pin hasher: %w", err)
	}

	deps.Audit = audit.NewService(audit.NewStoreRepository(deps.Store), lg,
		audit.WithCaps(audit.Caps{
			Entries:        cfg.Audit.MaxEntries,
			AccessEntries:  cfg.Audit.MaxAccessEntries,
			SecurityEvents: cfg.Audit.MaxSecurityEvents,
		}),
		audit.WithRegisterer(deps.Registry),
	)
	lookupKey := cfg.Security.PINLookupKey
	if lookupKey == "" {
		lookupKey = cfg.Security.JWTSecret
	}
	deps.Users = user.NewService(user.NewStoreRepository(deps.Store), hasher, deps.Audit, lg,
		user.WithPINIndex(pin.NewIndex([]byte(lookupKey))),
	)
	deps.Tokens = auth.NewJWTTokenGenerator(cfg.Security.JWTSecret, cfg.Security.SessionDuration)
	deps.AuthMetrics = auth.NewMetrics(deps.Registry)
	deps.Auth = auth.NewService(deps.Users, deps.Tokens, deps.Audit, lg,
		auth.WithLimiter(auth.NewLoginLimiter(cfg.Security.LoginRatePerMinute, cfg.Security.LoginBurst)),
		auth.WithMetrics(deps.AuthMetrics),
	)
	deps.Notifications = notification.NewService(notification.NewStoreRepository(deps.Store), deps.Audit, lg)
	deps.Inspections = inspection.NewService(inspection.NewStoreRepository(deps.Store), deps.Audit, lg)

	return deps, nil
}

// openBackend picks the collection backend for the configured driver.
func openBackend(cfg internal.DatabaseConfig, lg *slog.Logger) (store.Backend, func() error, error) {
	gormCfg := &gorm.Config{Logger: gormLogger.Default.LogMode(gormLogger.Silent)}

	switch cfg.Driver {
	case internal.DriverPostgres:
		db, err := initDB(cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: db.DB}), gormCfg)
		if err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("failed to open gorm on postgres: %w", err)
		}
		lg.Info("collection store ready", "driver", cfg.Driver)
		return storePostgres.NewCollectionRepository(gdb), db.Close, nil

	case internal.DriverSQLite:
		gdb, err := gorm.Open(sqlite.Open(cfg.Source), gormCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite: %w", err)
		}
		// SQLite has no goose migrations; the table is created in place.
		if err := gdb.AutoMigrate(&collectionDatamodel.Document{}); err != nil {
			return nil, nil, fmt.Errorf("failed to migrate sqlite: %w", err)
		}
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, nil, err
		}
		lg.Info("collection store ready", "driver", cfg.Driver, "source", cfg.Source)
		return storePostgres.NewCollectionRepository(gdb), sqlDB.Close, nil

	case internal.DriverMemory:
		lg.Warn("collection store is in memory; data is lost on exit")
		return store.NewMemory(), func() error { return nil }, nil
	}
	return nil, nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// verify connection; close underlying *sql.DB on failure
	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}
