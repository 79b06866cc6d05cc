package database

import (
	"fmt"
	"log/slog"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/readstats/internal/entities"
)

// connection options applied to every pooled sqlite connection; immediate
// transactions keep concurrent library rebuilds from deadlocking on upgrade
const dsnOptions = "_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate"

type Database struct {
	DB *gorm.DB
}

// NewDatabase opens the sqlite database at dbPath and migrates all entities.
func NewDatabase(dbPath string) (*Database, error) {
	return Open(dbPath, logger.Warn)
}

// Open is NewDatabase with an explicit gorm log level.
func Open(dbPath string, level logger.LogLevel) (*Database, error) {
	db, err := gorm.Open(sqlite.Open(DSN(dbPath)), &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	slog.Info("database initialized", "path", dbPath)

	return &Database{DB: db}, nil
}

// DSN appends the connection options to a sqlite file path.
func DSN(dbPath string) string {
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	return dbPath + sep + dsnOptions
}

// Migrate creates or updates every table the application owns.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&entities.User{},
		&entities.Book{},
		&entities.ReadingSession{},
		&entities.Highlight{},
		&entities.WebDAVCredential{},
		&entities.SyncRun{},
		&entities.Setting{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
