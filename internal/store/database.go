package store

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open connects to the database and migrates the schema. The DSN selects
// the driver: a MySQL DSN (user:pass@tcp(host)/db) opens MySQL, anything
// else is treated as a sqlite file path.
func Open(dsn string, logger *slog.Logger) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	}

	var (
		db  *gorm.DB
		err error
	)
	if isMySQLDSN(dsn) {
		db, err = gorm.Open(mysql.Open(dsn), gormCfg)
	} else {
		if dir := filepath.Dir(dsn); dir != "." && dsn != ":memory:" {
			if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
				return nil, fmt.Errorf("create data directory: %w", mkErr)
			}
		}
		db, err = gorm.Open(sqlite.Open(dsn), gormCfg)
	}
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get underlying sql.DB: %w", err)
	}
	if isMySQLDSN(dsn) {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)
	} else {
		// Single connection so sqlite writes serialize at the driver.
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(&Product{}, &PricePoint{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	logger.Info("database initialized", "driver", driverName(dsn))
	return db, nil
}

func isMySQLDSN(dsn string) bool {
	return strings.Contains(dsn, "@tcp(")
}

func driverName(dsn string) string {
	if isMySQLDSN(dsn) {
		return "mysql"
	}
	return "sqlite"
}
