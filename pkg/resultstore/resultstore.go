// Package resultstore exports report generations to a SQL database.
package resultstore

import (
	"context"
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ethpandaops/buildmatrixoor/pkg/config"
)

// defaultListLimit caps list queries when no limit is given.
const defaultListLimit = 100

// Store persists report snapshots.
type Store interface {
	Start(ctx context.Context) error
	Stop() error

	// SaveSnapshot writes a snapshot and its cells in one transaction and
	// sets the snapshot ID.
	SaveSnapshot(ctx context.Context, snap *Snapshot, cells []CellResult) error
	// ListSnapshots returns the newest snapshots first.
	ListSnapshots(ctx context.Context, limit int) ([]Snapshot, error)
	// ListResults returns the cells of project, newest first.
	ListResults(ctx context.Context, project string, limit int) ([]CellResult, error)
}

// Compile-time interface check.
var _ Store = (*store)(nil)

type store struct {
	log logrus.FieldLogger
	cfg *config.DatabaseConfig
	db  *gorm.DB
}

// NewStore creates a new Store backed by the configured database driver.
func NewStore(
	log logrus.FieldLogger,
	cfg *config.DatabaseConfig,
) Store {
	return &store{
		log: log.WithField("component", "resultstore"),
		cfg: cfg,
	}
}

// Start opens the database connection and runs migrations.
func (s *store) Start(ctx context.Context) error {
	var dialector gorm.Dialector

	switch s.cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(s.cfg.SQLite.Path)
	case "postgres":
		dsn := fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			s.cfg.Postgres.Host,
			s.cfg.Postgres.Port,
			s.cfg.Postgres.User,
			s.cfg.Postgres.Password,
			s.cfg.Postgres.Database,
			s.cfg.Postgres.SSLMode,
		)
		dialector = postgres.Open(dsn)
	default:
		return fmt.Errorf("unsupported database driver: %s", s.cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Discard})
	if err != nil {
		return fmt.Errorf("opening result database: %w", err)
	}

	s.db = db

	if err := s.db.WithContext(ctx).AutoMigrate(
		&Snapshot{},
		&CellResult{},
	); err != nil {
		return fmt.Errorf("running result migrations: %w", err)
	}

	s.log.WithField("driver", s.cfg.Driver).
		Info("Result database connected")

	return nil
}

// Stop closes the underlying database connection.
func (s *store) Stop() error {
	if s.db == nil {
		return nil
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("getting underlying db: %w", err)
	}

	return sqlDB.Close()
}

func (s *store) SaveSnapshot(ctx context.Context, snap *Snapshot, cells []CellResult) error {
	const batchSize = 100

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(snap).Error; err != nil {
			return fmt.Errorf("inserting snapshot: %w", err)
		}

		if len(cells) == 0 {
			return nil
		}

		for i := range cells {
			cells[i].SnapshotID = snap.ID
		}

		if err := tx.CreateInBatches(cells, batchSize).Error; err != nil {
			return fmt.Errorf("inserting cell results: %w", err)
		}

		return nil
	})
}

func (s *store) ListSnapshots(ctx context.Context, limit int) ([]Snapshot, error) {
	var snaps []Snapshot
	if err := s.db.WithContext(ctx).
		Order("generated_at DESC, id DESC").
		Limit(listLimit(limit)).
		Find(&snaps).Error; err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}

	return snaps, nil
}

func (s *store) ListResults(ctx context.Context, project string, limit int) ([]CellResult, error) {
	var cells []CellResult
	if err := s.db.WithContext(ctx).
		Where("project = ?", project).
		Order("snapshot_id DESC, platform, runtime").
		Limit(listLimit(limit)).
		Find(&cells).Error; err != nil {
		return nil, fmt.Errorf("listing results: %w", err)
	}

	return cells, nil
}

func listLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}

	return limit
}
