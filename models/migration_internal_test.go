package models

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func TestResetHardwareSequence(t *testing.T) {
	pg, err := gorm.Open(postgres.New(postgres.Config{DSN: "host=localhost user=books dbname=books sslmode=disable"}),
		&gorm.Config{DryRun: true, DisableAutomaticPing: true})
	require.NoError(t, err)

	var captured string
	err = pg.Callback().Raw().After("gorm:raw").Register("test:capture", func(db *gorm.DB) {
		captured = db.Statement.SQL.String()
	})
	require.NoError(t, err)
	require.NoError(t, resetHardwareSequence(pg))
	assert.Contains(t, captured, "pg_get_serial_sequence('hardware', 'id')")

	lite, err := gorm.Open(sqlite.Open(t.TempDir()+"/seq.db"), &gorm.Config{})
	require.NoError(t, err)
	assert.NoError(t, resetHardwareSequence(lite), "no-op outside postgres")
}
