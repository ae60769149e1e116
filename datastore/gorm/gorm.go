package gorm

import (
	"fmt"
	"strings"

	"github.com/flow-hydraulics/wallet-orchestrator/configs"
	"github.com/flow-hydraulics/wallet-orchestrator/migrations"
	"github.com/go-gormigrate/gormigrate/v2"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	dbTypePostgresql = "psql"
	dbTypeMysql      = "mysql"
	dbTypeSqlite     = "sqlite"
)

// New opens the configured database and runs all pending migrations.
func New(cfg *configs.Config) (*gorm.DB, error) {
	var d gorm.Dialector
	switch cfg.DatabaseType {
	default:
		return nil, fmt.Errorf("database type '%s' not supported", cfg.DatabaseType)
	case dbTypePostgresql:
		d = postgres.Open(cfg.DatabaseDSN)
	case dbTypeMysql:
		d = mysql.Open(cfg.DatabaseDSN)
	case dbTypeSqlite:
		d = sqlite.Open(sqliteDSN(cfg.DatabaseDSN))
	}

	db, err := gorm.Open(d, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	if cfg.DatabaseType == dbTypeSqlite {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		// sqlite allows a single writer
		sqlDB.SetMaxOpenConns(1)
	}

	m := gormigrate.New(db, gormigrate.DefaultOptions, migrations.List())
	if err := m.Migrate(); err != nil {
		Close(db)
		return nil, fmt.Errorf("error while migrating database: %w", err)
	}

	log.
		WithFields(log.Fields{"type": cfg.DatabaseType}).
		Debug("Database migrated")

	return db, nil
}

func Close(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		log.WithFields(log.Fields{"error": err}).Warn("unable to close database")
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.WithFields(log.Fields{"error": err}).Warn("unable to close database")
	}
}

// sqliteDSN adds a busy timeout so writers wait for the lock instead of
// failing with "database is locked".
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_busy_timeout") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_busy_timeout=5000"
}
