// Package storage implements the workspace ledger using GORM.
// Two backends are provided: SQLite (default, zero-config, pure Go via the
// glebarez driver) and PostgreSQL. All GORM usage is confined to this
// package — the workspace domain types remain ORM-free.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/starbridge-ai/starbridge/internal/config"
	"github.com/starbridge-ai/starbridge/internal/workspace"
)

// Driver names accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// WorkspaceModel maps to the "workspaces" table.
type WorkspaceModel struct {
	ID          string `gorm:"primaryKey"`
	ProjectName string `gorm:"not null"`
	Path        string `gorm:"not null"`
	CreatedAt   time.Time
	DeletedAt   *time.Time `gorm:"index"`
}

func (WorkspaceModel) TableName() string { return "workspaces" }

// Store is the GORM-backed workspace ledger.
type Store struct {
	db     *gorm.DB
	driver string
	logger *slog.Logger
}

// Open connects the configured backend and runs migrations. Returns nil when
// cfg is nil (ledger disabled).
func Open(cfg *config.StorageConfig, sqlitePath string, slogger *slog.Logger) (*Store, error) {
	if cfg == nil {
		return nil, nil
	}

	gormLogger := logger.New(
		slogAdapter{slogger},
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		},
	)
	gormCfg := &gorm.Config{
		Logger:  gormLogger,
		NowFunc: func() time.Time { return time.Now().UTC() },
	}

	var (
		db     *gorm.DB
		err    error
		driver = cfg.StorageDriver()
	)
	switch driver {
	case DriverSQLite:
		if err := os.MkdirAll(filepath.Dir(sqlitePath), 0750); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
		dsn := fmt.Sprintf("%s?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)", sqlitePath)
		db, err = gorm.Open(sqlite.Open(dsn), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite database: %w", err)
		}
	case DriverPostgres:
		db, err = gorm.Open(postgres.Open(cfg.Postgres.DSN), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("getting underlying sql.DB: %w", err)
		}
		sqlDB.SetMaxOpenConns(maxOpen(cfg.Postgres))
		sqlDB.SetMaxIdleConns(maxIdle(cfg.Postgres))
		sqlDB.SetConnMaxLifetime(maxLifetime(cfg.Postgres))
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", driver)
	}

	if err := db.AutoMigrate(&WorkspaceModel{}); err != nil {
		return nil, fmt.Errorf("auto-migrating: %w", err)
	}

	slogger.Info("workspace ledger opened", slog.String("driver", driver))
	return &Store{db: db, driver: driver, logger: slogger}, nil
}

func maxOpen(p *config.PostgresStorageConfig) int {
	if p != nil && p.MaxOpenConns > 0 {
		return p.MaxOpenConns
	}
	return 25
}

func maxIdle(p *config.PostgresStorageConfig) int {
	if p != nil && p.MaxIdleConns > 0 {
		return p.MaxIdleConns
	}
	return 5
}

func maxLifetime(p *config.PostgresStorageConfig) time.Duration {
	if p != nil && p.ConnMaxLifetimeS > 0 {
		return time.Duration(p.ConnMaxLifetimeS) * time.Second
	}
	return 30 * time.Minute
}

// RecordCreate inserts a ledger entry for a freshly created workspace.
func (s *Store) RecordCreate(ctx context.Context, rec *workspace.Record) error {
	model := WorkspaceModel{
		ID:          rec.ID,
		ProjectName: rec.ProjectName,
		Path:        rec.Path,
		CreatedAt:   rec.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("recording workspace create: %w", err)
	}
	return nil
}

// RecordDelete marks a workspace as deleted. Missing rows are not an error;
// workspaces may predate the ledger.
func (s *Store) RecordDelete(ctx context.Context, id string, at time.Time) error {
	err := s.db.WithContext(ctx).
		Model(&WorkspaceModel{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Update("deleted_at", at).Error
	if err != nil {
		return fmt.Errorf("recording workspace delete: %w", err)
	}
	return nil
}

// List returns ledger records, newest first.
func (s *Store) List(ctx context.Context, includeDeleted bool) ([]workspace.Record, error) {
	q := s.db.WithContext(ctx).Order("created_at DESC")
	if !includeDeleted {
		q = q.Where("deleted_at IS NULL")
	}
	var models []WorkspaceModel
	if err := q.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("listing workspaces: %w", err)
	}
	return toRecords(models), nil
}

// ListOlderThan returns live workspaces created before the cutoff. Used by
// the retention janitor.
func (s *Store) ListOlderThan(ctx context.Context, cutoff time.Time) ([]workspace.Record, error) {
	var models []WorkspaceModel
	err := s.db.WithContext(ctx).
		Where("deleted_at IS NULL AND created_at < ?", cutoff).
		Order("created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("listing old workspaces: %w", err)
	}
	return toRecords(models), nil
}

func toRecords(models []WorkspaceModel) []workspace.Record {
	records := make([]workspace.Record, 0, len(models))
	for _, m := range models {
		records = append(records, workspace.Record{
			ID:          m.ID,
			ProjectName: m.ProjectName,
			Path:        m.Path,
			CreatedAt:   m.CreatedAt,
			DeletedAt:   m.DeletedAt,
		})
	}
	return records
}

// Ping checks the database connection for health/readiness probes.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Driver returns the backend driver name.
func (s *Store) Driver() string {
	return s.driver
}

// slogAdapter wraps *slog.Logger for GORM's logger.Writer interface.
type slogAdapter struct {
	logger *slog.Logger
}

func (s slogAdapter) Printf(format string, args ...any) {
	s.logger.Info(fmt.Sprintf(format, args...))
}

// compile-time interface check
var _ workspace.Ledger = (*Store)(nil)
