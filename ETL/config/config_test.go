package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envFrom(m map[string]string) func(string) (string, bool) {
	return func(name string) (string, bool) {
		v, ok := m[name]
		return v, ok
	}
}

func TestFromEnvDefaults(t *testing.T) {
	c, err := FromEnv(envFrom(nil))
	require.NoError(t, err)
	assert.Equal(t, DefaultSyncConfig(), c)
	assert.Equal(t, "bolt://localhost:7687", c.Graph.URI)
	assert.Equal(t, 5000, c.FactBatchSize)
	assert.NoError(t, c.Validate())
}

func TestFromEnvOverrides(t *testing.T) {
	c, err := FromEnv(envFrom(map[string]string{
		"NEO4J_URI":               "neo4j://graph:7687",
		"NEO4J_PASSWORD":          "secret",
		"SYNC_JOURNAL_ENABLED":    "true",
		"JOURNAL_DB_PORT":         "3307",
		"SYNC_RUN_INTERVAL":       "6h",
		"SYNC_WORKERS":            "4",
		"SYNC_BATCHES_PER_SECOND": "2.5",
		"SYNC_DATA_DIR":           "  /srv/data  ",
		"SYNC_LOG_DIR":            "",
	}))
	require.NoError(t, err)
	assert.Equal(t, "neo4j://graph:7687", c.Graph.URI)
	assert.Equal(t, "secret", c.Graph.Password)
	assert.True(t, c.JournalEnabled)
	assert.Equal(t, 3307, c.Journal.Port)
	assert.Equal(t, 6*time.Hour, c.RunInterval)
	assert.Equal(t, 4, c.Workers)
	assert.Equal(t, 2.5, c.BatchesPerSecond)
	assert.Equal(t, "/srv/data", c.DataDir)
	assert.Empty(t, c.LogDir)
}

func TestFromEnvReportsAllErrors(t *testing.T) {
	_, err := FromEnv(envFrom(map[string]string{
		"SYNC_WORKERS":      "many",
		"SYNC_RUN_INTERVAL": "daily",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SYNC_WORKERS")
	assert.Contains(t, err.Error(), "SYNC_RUN_INTERVAL")
}

func TestValidate(t *testing.T) {
	c := DefaultSyncConfig()
	c.EdgeBatchSize = 0
	c.BatchesPerSecond = -1
	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SYNC_EDGE_BATCH_SIZE")
	assert.Contains(t, err.Error(), "SYNC_BATCHES_PER_SECOND")
}

func TestJournalDSN(t *testing.T) {
	dsn := JournalDSN(DatabaseConfig{User: "sync", Password: "pw", Host: "db", Port: 3306, DBName: "budget_sync"})
	assert.Equal(t, "sync:pw@tcp(db:3306)/budget_sync?parseTime=true", dsn)
}
