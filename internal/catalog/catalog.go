// Package catalog maintains a queryable index of persisted episodes in a
// relational database. The catalog is informational only: the on-disk
// episode layout remains the dataset of record, and the per-scene quota is
// always derived from the filesystem, never from catalog rows.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/stexplore/strec/internal/lifecycle"
)

// Episode is one catalog row per persisted episode.
type Episode struct {
	ID         uint   `gorm:"primarykey"`
	EpisodeID  string `gorm:"index:idx_scene_episode,unique"`
	SceneID    string `gorm:"index:idx_scene_episode,unique;index"`
	Steps      int
	MapFile    string
	EpisodeDir string
	PathLength float64
	Trajectory datatypes.JSON
	CreatedAt  time.Time
}

// Manager handles catalog database connections and writes.
type Manager struct {
	DB             *gorm.DB
	IsValid        bool
	SqliteFilePath string
	Logger         zerolog.Logger
}

// NewManager creates a new catalog manager. sqlitePath is the fallback
// database file used when Postgres is unreachable; empty means in-memory.
func NewManager(log zerolog.Logger, sqlitePath string) *Manager {
	return &Manager{
		SqliteFilePath: sqlitePath,
		Logger:         log,
	}
}

// Connect establishes a database connection, falling back to SQLite if
// Postgres fails, then migrates the schema.
func (m *Manager) Connect() error {
	var err error

	m.DB, err = openPostgres()
	if err != nil {
		m.Logger.Warn().Err(err).Msg("Failed to connect to Postgres, using SQLite catalog")
		m.DB, err = openSqlite(m.SqliteFilePath)
		if err != nil {
			return fmt.Errorf("failed to open SQLite catalog: %w", err)
		}
		if m.SqliteFilePath != "" {
			m.Logger.Info().Str("path", m.SqliteFilePath).Msg("Using SQLite catalog")
		}
	} else {
		m.Logger.Info().Msg("Connected to Postgres catalog")
	}

	if err := m.DB.AutoMigrate(&Episode{}); err != nil {
		return fmt.Errorf("failed to migrate catalog schema: %w", err)
	}

	m.IsValid = true
	return nil
}

// Close releases the underlying connection.
func (m *Manager) Close() error {
	if m.DB == nil {
		return nil
	}
	sqlDB, err := m.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// EpisodeSaved records a persisted episode; satisfies the lifecycle
// reporter contract.
func (m *Manager) EpisodeSaved(ctx context.Context, ep lifecycle.SavedEpisode) error {
	if !m.IsValid {
		return fmt.Errorf("catalog not connected")
	}

	traj, err := json.Marshal(ep.Trajectory)
	if err != nil {
		return fmt.Errorf("marshaling trajectory: %w", err)
	}

	row := Episode{
		EpisodeID:  ep.EpisodeID,
		SceneID:    ep.SceneID,
		Steps:      ep.Steps,
		MapFile:    ep.MapPath,
		EpisodeDir: ep.EpisodeDir,
		PathLength: ep.PathLength,
		Trajectory: datatypes.JSON(traj),
	}
	if err := m.DB.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("inserting catalog row: %w", err)
	}

	m.Logger.Debug().Str("scene", ep.SceneID).Str("episode", ep.EpisodeID).
		Msg("Cataloged episode")
	return nil
}

// CountByScene returns the number of cataloged episodes for a scene.
func (m *Manager) CountByScene(ctx context.Context, sceneID string) (int64, error) {
	var n int64
	err := m.DB.WithContext(ctx).Model(&Episode{}).
		Where("scene_id = ?", sceneID).Count(&n).Error
	return n, err
}

func openPostgres() (*gorm.DB, error) {
	dsn := fmt.Sprintf(`host=%s port=%s user=%s password=%s dbname=%s sslmode=disable`,
		viper.GetString("db.host"),
		viper.GetString("db.port"),
		viper.GetString("db.username"),
		viper.GetString("db.password"),
		viper.GetString("db.database"),
	)

	return gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
}

func openSqlite(path string) (*gorm.DB, error) {
	if path == "" {
		path = "file::memory:?cache=shared"
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		"PRAGMA temp_store = MEMORY;",
	}
	for _, pragma := range pragmas {
		if err := db.Exec(pragma).Error; err != nil {
			return nil, fmt.Errorf("error setting PRAGMA: %s", err)
		}
	}
	return db, nil
}
