// Package testutil builds migrated, seeded sqlite databases for package tests.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"tradeflow/internal/config"
	"tradeflow/internal/db"
	"tradeflow/internal/models"
	"tradeflow/internal/seed"
)

// NewDB opens a fresh sqlite database under t.TempDir, migrates it and seeds
// reference data.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := db.Open(config.DBConfig{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "tradeflow.db") + "?_foreign_keys=on&_busy_timeout=5000",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(conn) })

	require.NoError(t, db.AutoMigrate(conn.Gorm))
	require.NoError(t, seed.ReferenceData(conn.Gorm))
	return conn.Gorm
}

// User creates an active user with the named role.
func User(t *testing.T, gdb *gorm.DB, roleName, name string) *models.User {
	t.Helper()
	var role models.Role
	require.NoError(t, gdb.Where("name = ?", roleName).First(&role).Error)
	u := &models.User{
		OktaID:   "okta-" + name,
		Email:    name + "@example.com",
		Name:     name,
		RoleID:   role.ID,
		IsActive: true,
	}
	require.NoError(t, gdb.Create(u).Error)
	u.Role = &role
	return u
}

func Analyst(t *testing.T, gdb *gorm.DB, name string) *models.User {
	return User(t, gdb, models.RoleAnalyst, name)
}

func PM(t *testing.T, gdb *gorm.DB, name string) *models.User {
	return User(t, gdb, models.RolePortfolioManager, name)
}

func Admin(t *testing.T, gdb *gorm.DB, name string) *models.User {
	return User(t, gdb, models.RoleAdministrator, name)
}

// Security creates an active IVP security.
func Security(t *testing.T, gdb *gorm.DB, ticker string) *models.Security {
	t.Helper()
	s := &models.Security{
		Ticker:        ticker,
		Name:          ticker + " Inc",
		SourceType:    models.SourceIVP,
		IVPSecurityID: "IVP-" + ticker,
		IsActive:      true,
		PriorityLevel: "NORMAL",
	}
	require.NoError(t, gdb.Create(s).Error)
	return s
}

func FundID(t *testing.T, gdb *gorm.DB, code string) int64 {
	t.Helper()
	var f models.Fund
	require.NoError(t, gdb.Where("code = ?", code).First(&f).Error)
	return f.ID
}

func StrategyID(t *testing.T, gdb *gorm.DB, name string) int64 {
	t.Helper()
	var s models.Strategy
	require.NoError(t, gdb.Where("name = ?", name).First(&s).Error)
	return s.ID
}

func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
