package models_test

import (
	"os"
	"path/filepath"
	"testing"

	"bitbucket.org/mmdatafocus/ticketbooks_backend/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClientTable(t *testing.T) {
	table, migrated, err := models.ParseClientTable([]byte(`{
		"acme": {"name": "Acme Corp", "support_rate": "$125.00", "contract": false, "address": "1 Main St"},
		"globex": {"display_name": "Globex", "support_rate": 90, "contract": true},
		"broken": "not an object"
	}`))
	require.NoError(t, err)
	assert.False(t, migrated)
	require.Len(t, table, 2)

	acme, ok := table.GetEntry("acme")
	require.True(t, ok)
	assert.True(t, acme.HasSupportRate())
	assert.True(t, acme.SupportRate.Decimal.Equal(decimal.NewFromInt(125)))
	assert.Equal(t, "1 Main St", acme.Extra["address"])

	name, ok := table.ResolveName("globex")
	require.True(t, ok)
	assert.Equal(t, "Globex", name)
	globex, _ := table.GetEntry("globex")
	assert.True(t, globex.Contract)

	_, ok = table.ResolveName("missing")
	assert.False(t, ok)
}

func TestParseClientTable_LegacyLayout(t *testing.T) {
	table, migrated, err := models.ParseClientTable([]byte(`{
		"Acme Corp": {"key": "acme", "support_rate": 100}
	}`))
	require.NoError(t, err)
	assert.True(t, migrated)
	name, ok := table.ResolveName("acme")
	require.True(t, ok)
	assert.Equal(t, "Acme Corp", name)
}

func TestLoadClientTable(t *testing.T) {
	dir := t.TempDir()

	empty, err := models.LoadClientTable(filepath.Join(dir, "missing.json"))
	require.NoError(t, err)
	assert.Empty(t, empty)

	path := filepath.Join(dir, "client_table.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"Initech": {"key": "initech", "support_rate": "80"}}`), 0o644))

	table, err := models.LoadClientTable(path)
	require.NoError(t, err)
	name, ok := table.ResolveName("initech")
	require.True(t, ok)
	assert.Equal(t, "Initech", name)

	// the legacy file is rewritten keyed by client key
	again, migrated, err := parseFile(t, path)
	require.NoError(t, err)
	assert.False(t, migrated)
	_, ok = again.GetEntry("initech")
	assert.True(t, ok)
}

func parseFile(t *testing.T, path string) (models.ClientTable, bool, error) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return models.ParseClientTable(data)
}
