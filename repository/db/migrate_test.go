package db

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const migrationsDir = "../../migrations"

func TestMigrationRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		dsn  string
		path string
	}{
		{name: "empty dsn", dsn: "", path: migrationsDir},
		{name: "empty path", dsn: defaultTestDBConnStr, path: ""},
		{name: "dsn without scheme", dsn: "tasks_db", path: migrationsDir},
		{name: "scheme without driver", dsn: "mongodb://localhost:27017/tasks", path: migrationsDir},
		{name: "missing migrations directory", dsn: defaultTestDBConnStr, path: "/nonexistent/migrations"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, Migration(tt.dsn, tt.path))
		})
	}
}

// Every version must ship an up and a down script and versions must be
// contiguous from 1.
func TestMigrationFilesArePaired(t *testing.T) {
	entries, err := os.ReadDir(migrationsDir)
	require.NoError(t, err)

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		}
	}
	require.NotEmpty(t, ups)
	assert.Equal(t, ups, downs)

	var versions []string
	for base := range ups {
		versions = append(versions, strings.SplitN(base, "_", 2)[0])
	}
	sort.Strings(versions)
	for i, v := range versions {
		n, err := strconv.Atoi(v)
		require.NoError(t, err)
		assert.Equal(t, i+1, n, "migration %s out of sequence", v)
	}
}

func TestMigrationSchemaCoversTables(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join(migrationsDir, "*.up.sql"))
	require.NoError(t, err)

	var schema strings.Builder
	for _, m := range matches {
		b, err := os.ReadFile(m)
		require.NoError(t, err)
		schema.Write(b)
	}
	for _, table := range []string{"users", "tasks", "subtasks", "email_verifications"} {
		assert.Contains(t, schema.String(), "CREATE TABLE IF NOT EXISTS "+table, table)
	}
}
