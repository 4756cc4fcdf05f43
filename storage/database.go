package storage

import (
	"fmt"
	"time"

	"cookbook-api/config"
	"cookbook-api/models"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// memoryDSN ist eine private In-Memory-Datenbank pro Verbindung, daher wird der Pool auf eine Verbindung begrenzt.
const memoryDSN = ":memory:"

// Open öffnet den konfigurierten Store und migriert das Schema.
func Open(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	gormCfg := &gorm.Config{Logger: newGormLogger(log, cfg.DBLogSQL)}

	if cfg.Ephemeral() {
		log.Info("TESTING enabled, using in-memory store")
		return openSQLite(memoryDSN, gormCfg)
	}

	var (
		db  *gorm.DB
		err error
	)
	switch cfg.DBDriver {
	case config.DriverSQLite:
		db, err = openSQLite(cfg.SQLitePath+"?_pragma=foreign_keys(1)", gormCfg)
	case config.DriverPostgres:
		db, err = gorm.Open(postgres.Open(cfg.DSN()), gormCfg)
		if err == nil {
			err = configurePool(db, cfg.DBMaxOpenConns)
		}
	default:
		err = fmt.Errorf("unknown driver %q", cfg.DBDriver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.DBDriver, err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// OpenMemory öffnet einen frischen, migrierten In-Memory-Store.
func OpenMemory(log *zap.Logger) (*gorm.DB, error) {
	return openSQLite(memoryDSN, &gorm.Config{Logger: newGormLogger(log, false)})
}

func openSQLite(dsn string, gormCfg *gorm.Config) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), gormCfg)
	if err != nil {
		return nil, err
	}
	// SQLite serialisiert Schreibzugriffe ohnehin
	if err := configurePool(db, 1); err != nil {
		return nil, err
	}
	if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if dsn == memoryDSN {
		if err := Migrate(db); err != nil {
			return nil, err
		}
	}
	return db, nil
}

func configurePool(db *gorm.DB, maxOpen int) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxOpen)
	if maxOpen > 1 {
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}
	return nil
}

// Migrate legt die Tabellen recipes und recipe_ingredients an.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Recipe{}, &models.Ingredient{}); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}

// newGormLogger leitet gorm-Ausgaben an zap weiter. SQL wird nur bei logSQL protokolliert.
func newGormLogger(log *zap.Logger, logSQL bool) logger.Interface {
	level := logger.Warn
	if logSQL {
		level = logger.Info
	}
	return logger.New(zap.NewStdLog(log.Named("gorm")), logger.Config{
		SlowThreshold:             time.Second,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
	})
}
