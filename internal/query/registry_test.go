// internal/query/registry_test.go
package query

import (
	"io/fs"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github-org-mirror/migrations"
)

var createTable = regexp.MustCompile(`(?s)CREATE TABLE IF NOT EXISTS (\w+) \((.*?)\n\);`)

// schemaColumns reads the column names of every table created by the up migrations.
func schemaColumns(t *testing.T) map[string]map[string]bool {
	files, err := fs.Glob(migrations.FS, "*.up.sql")
	require.NoError(t, err)

	tables := make(map[string]map[string]bool)
	for _, name := range files {
		body, err := fs.ReadFile(migrations.FS, name)
		require.NoError(t, err)
		for _, m := range createTable.FindAllStringSubmatch(string(body), -1) {
			cols := make(map[string]bool)
			for _, line := range strings.Split(m[2], "\n") {
				fields := strings.Fields(line)
				if len(fields) == 0 || fields[0] == "UNIQUE" || fields[0] == "PRIMARY" {
					continue
				}
				cols[fields[0]] = true
			}
			tables[m[1]] = cols
		}
	}
	return tables
}

func TestRegistry_MatchesSchema(t *testing.T) {
	tables := schemaColumns(t)

	for _, c := range Collections() {
		t.Run(c.Name, func(t *testing.T) {
			cols, ok := tables[c.Table]
			require.True(t, ok, "table %s is not migrated", c.Table)
			for field := range c.Columns {
				assert.True(t, cols[field], "column %s.%s does not exist", c.Table, field)
			}
			for _, field := range c.SearchFields {
				assert.True(t, cols[field], "search field %s.%s does not exist", c.Table, field)
			}
		})
	}
}
