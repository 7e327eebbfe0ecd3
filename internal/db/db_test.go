package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeflow/internal/config"
	"tradeflow/internal/models"
)

func TestOpen_SQLiteAndMigrate(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "tradeflow.db")
	conn, err := Open(config.DBConfig{Driver: "sqlite", DSN: dsn})
	require.NoError(t, err)
	defer Close(conn)

	require.NoError(t, AutoMigrate(conn.Gorm))
	for _, m := range Models() {
		assert.True(t, conn.Gorm.Migrator().HasTable(m), "table for %T", m)
	}
	assert.True(t, conn.Gorm.Migrator().HasTable("audit_trail"))
	assert.True(t, conn.Gorm.Migrator().HasColumn(&models.AuditTrail{}, "table_name"))
}

func TestOpen_Errors(t *testing.T) {
	_, err := Open(config.DBConfig{Driver: "sqlite"})
	assert.Error(t, err)

	_, err = Open(config.DBConfig{Driver: "oracle", DSN: "x"})
	assert.ErrorContains(t, err, "unsupported db driver")
}
