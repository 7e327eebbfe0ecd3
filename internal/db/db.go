package db

import (
	"database/sql"
	"fmt"
	"strings"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"tradeflow/internal/config"
	"tradeflow/internal/models"
)

type DB struct {
	Gorm *gorm.DB
	SQL  *sql.DB
}

func dialector(cfg config.DBConfig) (gorm.Dialector, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "mysql":
		return mysql.Open(cfg.DSN), nil
	case "postgres", "postgresql":
		return postgres.Open(cfg.DSN), nil
	case "sqlite":
		return sqlite.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported db driver %q", cfg.Driver)
	}
}

func Open(cfg config.DBConfig) (*DB, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("db dsn not set")
	}
	d, err := dialector(cfg)
	if err != nil {
		return nil, err
	}

	mode := logger.Silent
	if cfg.LogQueries {
		mode = logger.Info
	}
	gdb, err := gorm.Open(d, &gorm.Config{Logger: logger.Default.LogMode(mode)})
	if err != nil {
		return nil, err
	}

	sqldb, err := gdb.DB()
	if err != nil {
		return nil, err
	}

	// sqlite serializes writers; a single connection keeps transactions from
	// tripping over SQLITE_BUSY.
	if gdb.Dialector.Name() == "sqlite" {
		sqldb.SetMaxOpenConns(1)
	} else {
		sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
		sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	sqldb.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqldb.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqldb.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}

	return &DB{Gorm: gdb, SQL: sqldb}, nil
}

func Close(db *DB) error {
	if db == nil || db.SQL == nil {
		return nil
	}
	return db.SQL.Close()
}

// Models lists every table owned by the service, in dependency order.
func Models() []any {
	return []any{
		&models.Role{},
		&models.Permission{},
		&models.RolePermission{},
		&models.User{},
		&models.UserPermission{},
		&models.Security{},
		&models.Fund{},
		&models.Strategy{},
		&models.TradeRecommendation{},
		&models.RecommendationStrategy{},
		&models.RecommendationFund{},
		&models.TradeTicket{},
		&models.RecommendationStatusHistory{},
		&models.TradeTicketStatusHistory{},
		&models.AuditTrail{},
	}
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}
