package db

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The embedded schema is the single source of the dedup DDL; these checks
// pin the pieces the runtime behavior depends on.
func TestSchemaCarriesDedupIndexes(t *testing.T) {
	require.NotEmpty(t, schemaDDL, "schema must be embedded")

	assert.Contains(t, schemaDDL, "ux_pending_tasks_lead_seq")
	assert.Contains(t, schemaDDL, "ON pending_tasks (lead_id, seq) WHERE active")
	assert.Contains(t, schemaDDL, "ux_pending_tasks_lead_content")
	assert.Contains(t, schemaDDL, "ON pending_tasks (lead_id, content) WHERE active AND content <> ''")
}

func TestSchemaIsIdempotent(t *testing.T) {
	for _, stmt := range []string{"CREATE TABLE", "CREATE UNIQUE INDEX", "CREATE INDEX"} {
		count := strings.Count(schemaDDL, stmt)
		withGuard := strings.Count(schemaDDL, stmt+" IF NOT EXISTS")
		assert.Equal(t, count, withGuard, "%s statements must carry IF NOT EXISTS", stmt)
	}
}

func TestSchemaCoversAllTables(t *testing.T) {
	for _, table := range []string{"leads", "pending_tasks", "task_log", "auto_response_settings"} {
		assert.Contains(t, schemaDDL, "CREATE TABLE IF NOT EXISTS "+table)
	}
}
